package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/radek-zitek-cloud/sentinel-auth/internal/models"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/repositories"
)

// PermissionRepository is the Mongo-backed repositories.PermissionRepository.
type PermissionRepository struct {
	collection *mongo.Collection
}

func NewPermissionRepository(db *mongo.Database) *PermissionRepository {
	return &PermissionRepository{collection: db.Collection("permissions")}
}

func (r *PermissionRepository) Create(ctx context.Context, permission *models.Permission) error {
	if permission.ID == "" {
		permission.ID = models.NewID()
	}
	if permission.CreatedAt.IsZero() {
		permission.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, permission)
	if mongo.IsDuplicateKeyError(err) {
		return repositories.ErrDuplicate
	}
	return err
}

func (r *PermissionRepository) GetByID(ctx context.Context, id string) (*models.Permission, error) {
	var permission models.Permission
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&permission)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &permission, nil
}

func (r *PermissionRepository) GetByCode(ctx context.Context, code string) (*models.Permission, error) {
	var permission models.Permission
	err := r.collection.FindOne(ctx, bson.M{"code": code}).Decode(&permission)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &permission, nil
}

func (r *PermissionRepository) Update(ctx context.Context, permission *models.Permission) error {
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": permission.ID}, permission)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *PermissionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *PermissionRepository) List(ctx context.Context, filter interface{}) ([]*models.Permission, error) {
	f := filter
	if f == nil {
		f = bson.M{}
	}
	cursor, err := r.collection.Find(ctx, f)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var permissions []*models.Permission
	if err := cursor.All(ctx, &permissions); err != nil {
		return nil, err
	}
	return permissions, nil
}

func (r *PermissionRepository) Count(ctx context.Context, filter interface{}) (int64, error) {
	f := filter
	if f == nil {
		f = bson.M{}
	}
	return r.collection.CountDocuments(ctx, f)
}
