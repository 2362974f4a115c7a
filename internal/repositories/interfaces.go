// Package repositories defines repository interfaces for the data access
// layer of the passkey authentication service. These interfaces abstract
// Mongo and Redis operations behind consistent, testable contracts.
package repositories

import (
	"context"
	"time"

	"github.com/radek-zitek-cloud/sentinel-auth/internal/models"
)

// Repository defines common operations available on all Mongo-backed
// repositories.
type Repository[T any] interface {
	// Create inserts a new entity into the database
	Create(ctx context.Context, entity *T) error

	// GetByID retrieves an entity by its ID
	GetByID(ctx context.Context, id string) (*T, error)

	// Update updates an existing entity in the database
	Update(ctx context.Context, entity *T) error

	// Delete removes an entity from the database
	Delete(ctx context.Context, id string) error

	// List retrieves entities with optional filtering and pagination
	List(ctx context.Context, filter interface{}) ([]*T, error)

	// Count returns the total number of entities matching the filter
	Count(ctx context.Context, filter interface{}) (int64, error)
}

// UserRepository handles data access for user accounts (spec.md G1).
type UserRepository interface {
	Repository[models.User]

	// GetByEmail retrieves a user by email address. Returns ErrNotFound if
	// no user carries that email, including when email is unset.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// SetActive flips a user's active flag. An inactive user's sessions and
	// credentials remain on record but G4 makes them unusable.
	SetActive(ctx context.Context, userID string, active bool) error

	// TouchLastLogin stamps LastLoginAt to now.
	TouchLastLogin(ctx context.Context, userID string) error
}

// CredentialRepository handles data access for WebAuthn credentials
// (spec.md G2). The sign-count update must be a compare-and-swap against
// the previously observed value — see UpdateSignCount.
type CredentialRepository interface {
	// Create inserts a newly registered credential.
	Create(ctx context.Context, credential *models.Credential) error

	// GetByID retrieves a credential by its url-safe-base64 credential id.
	GetByID(ctx context.Context, id string) (*models.Credential, error)

	// ListByUser retrieves every credential registered to a user.
	ListByUser(ctx context.Context, userID string) ([]*models.Credential, error)

	// CountByUser returns how many credentials a user currently holds.
	CountByUser(ctx context.Context, userID string) (int64, error)

	// UpdateSignCount atomically advances SignCount from expectedPrevious to
	// newValue and refreshes LastUsedAt. Returns false, nil if the stored
	// count no longer matches expectedPrevious — the caller must treat that
	// as a cloned-authenticator signal (invariant C1), never as not-found.
	UpdateSignCount(ctx context.Context, credentialID string, expectedPrevious, newValue uint32, usedAt time.Time) (bool, error)

	// Delete removes a credential. Deleting the last remaining credential
	// for a user is rejected by the caller, not by this layer.
	Delete(ctx context.Context, id string) error
}

// SessionRepository handles data access for authenticated sessions
// (spec.md G4) and doubles as the token.RevocationChecker / token.Revoker
// backing store, keyed by the session's ID which is also the token's jti.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error

	GetByID(ctx context.Context, id string) (*models.Session, error)

	ListByUser(ctx context.Context, userID string) ([]*models.Session, error)

	// Touch refreshes LastActivityAt to now.
	Touch(ctx context.Context, id string, at time.Time) error

	// Revoke marks a session revoked. Idempotent.
	Revoke(ctx context.Context, jti string) error

	// RevokeAllForUser revokes every live session belonging to a user, used
	// when a user is deactivated or all credentials are removed.
	RevokeAllForUser(ctx context.Context, userID string) error

	// IsRevoked implements token.RevocationChecker: exists reports whether
	// any session row exists for jti at all.
	IsRevoked(ctx context.Context, jti string) (revoked bool, exists bool, err error)
}

// RoleRepository handles data access for roles (spec.md G3).
type RoleRepository interface {
	Repository[models.Role]

	GetByName(ctx context.Context, name string) (*models.Role, error)

	List(ctx context.Context, filter interface{}) ([]*models.Role, error)
}

// PermissionRepository handles data access for permissions (spec.md G3).
type PermissionRepository interface {
	Repository[models.Permission]

	GetByCode(ctx context.Context, code string) (*models.Permission, error)

	List(ctx context.Context, filter interface{}) ([]*models.Permission, error)
}

// RolePermissionRepository handles the Role<->Permission edge.
type RolePermissionRepository interface {
	Grant(ctx context.Context, edge *models.RolePermission) error

	Revoke(ctx context.Context, roleID, permissionID string) error

	// ListByRole returns every role-permission edge (permission id) attached to a role.
	ListByRole(ctx context.Context, roleID string) ([]*models.RolePermission, error)

	// ListByRoles batches ListByRole across multiple roles, used when
	// resolving a user's effective permissions from all of its role edges.
	ListByRoles(ctx context.Context, roleIDs []string) ([]*models.RolePermission, error)
}

// UserRoleRepository handles the User<->Role edge.
type UserRoleRepository interface {
	Grant(ctx context.Context, edge *models.UserRole) error

	Revoke(ctx context.Context, userID, roleID string) error

	// ListByUser returns every role edge for a user, including expired ones;
	// callers filter with UserRole.Active.
	ListByUser(ctx context.Context, userID string) ([]*models.UserRole, error)
}

// UserPermissionGrantRepository handles direct user-to-permission overrides.
type UserPermissionGrantRepository interface {
	Grant(ctx context.Context, grant *models.UserPermissionGrant) error

	Revoke(ctx context.Context, userID, permissionID string) error

	ListByUser(ctx context.Context, userID string) ([]*models.UserPermissionGrant, error)
}

// ResourceGrantRepository handles per-record permission overrides.
type ResourceGrantRepository interface {
	Grant(ctx context.Context, grant *models.ResourceGrant) error

	Revoke(ctx context.Context, userID, resourceType, resourceID, permissionID string) error

	ListByUser(ctx context.Context, userID string) ([]*models.ResourceGrant, error)

	// Find looks up a single resource grant row, used by the §4.5 evaluator
	// as the first, most specific check in the decision order.
	Find(ctx context.Context, userID, resourceType, resourceID, permissionID string) (*models.ResourceGrant, error)
}

// ChallengeStore handles the Redis-backed ceremony challenge cache
// (spec.md §4.3). Challenges are single-use: Pop both reads and deletes in
// one atomic step so two concurrent completions can never both succeed.
type ChallengeStore interface {
	// Put caches a challenge under its ID with the configured TTL.
	Put(ctx context.Context, challenge *models.Challenge, ttl time.Duration) error

	// Pop atomically retrieves and deletes the challenge, returning
	// ErrNotFound if it was never set, already consumed, or has expired.
	Pop(ctx context.Context, id string) (*models.Challenge, error)
}

// CacheRepository provides general caching operations beyond the
// challenge store, used for response caching and rate-limit counters.
type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error

	Get(ctx context.Context, key string, dest interface{}) error

	Delete(ctx context.Context, keys ...string) error

	Exists(ctx context.Context, keys ...string) (int64, error)
}
