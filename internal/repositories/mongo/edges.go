package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/radek-zitek-cloud/sentinel-auth/internal/models"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/repositories"
)

// RolePermissionRepository is the Mongo-backed
// repositories.RolePermissionRepository.
type RolePermissionRepository struct {
	collection *mongo.Collection
}

func NewRolePermissionRepository(db *mongo.Database) *RolePermissionRepository {
	return &RolePermissionRepository{collection: db.Collection("role_permissions")}
}

func (r *RolePermissionRepository) Grant(ctx context.Context, edge *models.RolePermission) error {
	if edge.GrantedAt.IsZero() {
		edge.GrantedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, edge)
	if mongo.IsDuplicateKeyError(err) {
		return repositories.ErrDuplicate
	}
	return err
}

func (r *RolePermissionRepository) Revoke(ctx context.Context, roleID, permissionID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"role_id": roleID, "permission_id": permissionID})
	return err
}

func (r *RolePermissionRepository) ListByRole(ctx context.Context, roleID string) ([]*models.RolePermission, error) {
	return r.listByRoles(ctx, []string{roleID})
}

func (r *RolePermissionRepository) ListByRoles(ctx context.Context, roleIDs []string) ([]*models.RolePermission, error) {
	return r.listByRoles(ctx, roleIDs)
}

func (r *RolePermissionRepository) listByRoles(ctx context.Context, roleIDs []string) ([]*models.RolePermission, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"role_id": bson.M{"$in": roleIDs}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var edges []*models.RolePermission
	if err := cursor.All(ctx, &edges); err != nil {
		return nil, err
	}
	return edges, nil
}

// UserRoleRepository is the Mongo-backed repositories.UserRoleRepository.
type UserRoleRepository struct {
	collection *mongo.Collection
}

func NewUserRoleRepository(db *mongo.Database) *UserRoleRepository {
	return &UserRoleRepository{collection: db.Collection("user_roles")}
}

func (r *UserRoleRepository) Grant(ctx context.Context, edge *models.UserRole) error {
	if edge.GrantedAt.IsZero() {
		edge.GrantedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, edge)
	if mongo.IsDuplicateKeyError(err) {
		return repositories.ErrDuplicate
	}
	return err
}

func (r *UserRoleRepository) Revoke(ctx context.Context, userID, roleID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID, "role_id": roleID})
	return err
}

func (r *UserRoleRepository) ListByUser(ctx context.Context, userID string) ([]*models.UserRole, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var edges []*models.UserRole
	if err := cursor.All(ctx, &edges); err != nil {
		return nil, err
	}
	return edges, nil
}
