// Package bootstrap seeds the system roles, permissions, and role-permission
// edges a fresh store needs (spec.md §4.7), and runs a background sweeper
// tick; expired sessions and challenges are removed by the stores' own TTLs.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/radek-zitek-cloud/sentinel-auth/internal/models"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/repositories"
	"github.com/radek-zitek-cloud/sentinel-auth/pkg/logger"
)

// sweepInterval is the cadence of the expired-row sweeper (spec.md §5).
const sweepInterval = 60 * time.Second

// Dependencies are the repositories Bootstrap seeds and the sweeper scans.
type Dependencies struct {
	Roles           repositories.RoleRepository
	Permissions     repositories.PermissionRepository
	RolePermissions repositories.RolePermissionRepository
	Sessions        repositories.SessionRepository
	Logger          *logger.Logger
}

// Bootstrap idempotently seeds system roles, permissions, and their edges.
// A re-run against an already-seeded store is a no-op for every row it
// would otherwise create.
func Bootstrap(ctx context.Context, deps Dependencies) error {
	admin, err := ensureRole(ctx, deps.Roles, models.RoleAdmin, "Full administrative access", true)
	if err != nil {
		return err
	}
	user, err := ensureRole(ctx, deps.Roles, models.RoleUser, "Standard authenticated user", true)
	if err != nil {
		return err
	}

	adminWildcard, err := ensurePermission(ctx, deps.Permissions, models.PermissionAdminWildcard, "admin", "*", "Unrestricted administrative access")
	if err != nil {
		return err
	}
	userProfile, err := ensurePermission(ctx, deps.Permissions, models.PermissionUserProfile, "user", "profile", "Manage own profile")
	if err != nil {
		return err
	}
	userCredentials, err := ensurePermission(ctx, deps.Permissions, models.PermissionUserCredentials, "user", "credentials", "Manage own passkey credentials")
	if err != nil {
		return err
	}

	if err := ensureRolePermission(ctx, deps.RolePermissions, admin.ID, adminWildcard.ID); err != nil {
		return err
	}
	if err := ensureRolePermission(ctx, deps.RolePermissions, user.ID, userProfile.ID); err != nil {
		return err
	}
	if err := ensureRolePermission(ctx, deps.RolePermissions, user.ID, userCredentials.ID); err != nil {
		return err
	}

	if deps.Logger != nil {
		deps.Logger.Info("bootstrap: seed complete",
			logger.String("admin_role_id", admin.ID),
			logger.String("user_role_id", user.ID),
		)
	}

	return nil
}

func ensureRole(ctx context.Context, repo repositories.RoleRepository, name, description string, isSystem bool) (*models.Role, error) {
	existing, err := repo.GetByName(ctx, name)
	if err == nil {
		return existing, nil
	}
	if err != repositories.ErrNotFound {
		return nil, fmt.Errorf("bootstrap: lookup role %s: %w", name, err)
	}

	role := &models.Role{
		ID:          models.NewID(),
		Name:        name,
		Description: description,
		IsSystem:    isSystem,
		CreatedAt:   time.Now().UTC(),
	}
	if err := repo.Create(ctx, role); err != nil {
		return nil, fmt.Errorf("bootstrap: create role %s: %w", name, err)
	}
	return role, nil
}

func ensurePermission(ctx context.Context, repo repositories.PermissionRepository, code, resourceType, action, description string) (*models.Permission, error) {
	existing, err := repo.GetByCode(ctx, code)
	if err == nil {
		return existing, nil
	}
	if err != repositories.ErrNotFound {
		return nil, fmt.Errorf("bootstrap: lookup permission %s: %w", code, err)
	}

	permission := &models.Permission{
		ID:           models.NewID(),
		Code:         code,
		ResourceType: resourceType,
		Action:       action,
		Description:  description,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.Create(ctx, permission); err != nil {
		return nil, fmt.Errorf("bootstrap: create permission %s: %w", code, err)
	}
	return permission, nil
}

func ensureRolePermission(ctx context.Context, repo repositories.RolePermissionRepository, roleID, permissionID string) error {
	edges, err := repo.ListByRole(ctx, roleID)
	if err != nil {
		return fmt.Errorf("bootstrap: list role permissions for %s: %w", roleID, err)
	}
	for _, edge := range edges {
		if edge.PermissionID == permissionID {
			return nil
		}
	}

	edge := &models.RolePermission{
		RoleID:       roleID,
		PermissionID: permissionID,
		GrantedAt:    time.Now().UTC(),
	}
	if err := repo.Grant(ctx, edge); err != nil {
		return fmt.Errorf("bootstrap: grant role permission %s/%s: %w", roleID, permissionID, err)
	}
	return nil
}

// RunSweeper starts a background goroutine that ticks every sweepInterval
// until ctx is cancelled. Each tick only logs a debug line; it deletes
// nothing itself. Expired sessions are removed by the Mongo TTL index on
// sessions.expires_at and expired challenges by Redis key expiry.
func RunSweeper(ctx context.Context, sessions repositories.SessionRepository, log *logger.Logger) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepOnce(ctx, sessions, log)
			}
		}
	}()
}

func sweepOnce(ctx context.Context, sessions repositories.SessionRepository, log *logger.Logger) {
	// The Mongo session repository's expires_at TTL index (pkg/database
	// CreateIndexes) performs the actual deletion server-side; this sweep
	// tick exists as the documented hook for stores without a native TTL
	// mechanism and for challenge rows already pruned by Redis's own
	// key expiry. There is nothing further to delete proactively here.
	if log != nil {
		log.Sugar().Debugw("bootstrap: sweep tick")
	}
}
