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

// UserPermissionGrantRepository is the Mongo-backed
// repositories.UserPermissionGrantRepository.
type UserPermissionGrantRepository struct {
	collection *mongo.Collection
}

func NewUserPermissionGrantRepository(db *mongo.Database) *UserPermissionGrantRepository {
	return &UserPermissionGrantRepository{collection: db.Collection("user_permission_grants")}
}

func (r *UserPermissionGrantRepository) Grant(ctx context.Context, grant *models.UserPermissionGrant) error {
	if grant.GrantedAt.IsZero() {
		grant.GrantedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, grant)
	if mongo.IsDuplicateKeyError(err) {
		return repositories.ErrDuplicate
	}
	return err
}

func (r *UserPermissionGrantRepository) Revoke(ctx context.Context, userID, permissionID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID, "permission_id": permissionID})
	return err
}

func (r *UserPermissionGrantRepository) ListByUser(ctx context.Context, userID string) ([]*models.UserPermissionGrant, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var grants []*models.UserPermissionGrant
	if err := cursor.All(ctx, &grants); err != nil {
		return nil, err
	}
	return grants, nil
}

// ResourceGrantRepository is the Mongo-backed
// repositories.ResourceGrantRepository.
type ResourceGrantRepository struct {
	collection *mongo.Collection
}

func NewResourceGrantRepository(db *mongo.Database) *ResourceGrantRepository {
	return &ResourceGrantRepository{collection: db.Collection("resource_grants")}
}

func (r *ResourceGrantRepository) Grant(ctx context.Context, grant *models.ResourceGrant) error {
	if grant.ID == "" {
		grant.ID = models.NewID()
	}
	if grant.GrantedAt.IsZero() {
		grant.GrantedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, grant)
	if mongo.IsDuplicateKeyError(err) {
		return repositories.ErrDuplicate
	}
	return err
}

func (r *ResourceGrantRepository) Revoke(ctx context.Context, userID, resourceType, resourceID, permissionID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{
		"user_id":       userID,
		"resource_type": resourceType,
		"resource_id":   resourceID,
		"permission_id": permissionID,
	})
	return err
}

func (r *ResourceGrantRepository) ListByUser(ctx context.Context, userID string) ([]*models.ResourceGrant, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var grants []*models.ResourceGrant
	if err := cursor.All(ctx, &grants); err != nil {
		return nil, err
	}
	return grants, nil
}

func (r *ResourceGrantRepository) Find(ctx context.Context, userID, resourceType, resourceID, permissionID string) (*models.ResourceGrant, error) {
	var grant models.ResourceGrant
	err := r.collection.FindOne(ctx, bson.M{
		"user_id":       userID,
		"resource_type": resourceType,
		"resource_id":   resourceID,
		"permission_id": permissionID,
	}).Decode(&grant)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &grant, nil
}
