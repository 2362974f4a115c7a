package models

import "time"

// Ceremony kinds a Challenge may be bound to.
const (
	ChallengeKindRegistration = "registration"
	ChallengeKindAuthentication = "authentication"
)

// Challenge is a single-use, short-lived nonce bound to one in-flight
// ceremony. The TTL defaults to 5 minutes and is set by Challenge.Lifetime in
// internal/config.
//
// Invariant Ch1: a challenge is accepted at most once — the store deletes it
// on successful completion and otherwise lets it expire.
type Challenge struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"user_id,omitempty" json:"userId,omitempty"`
	Nonce     []byte    `bson:"nonce" json:"nonce"`
	Kind      string    `bson:"kind" json:"kind"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	ExpiresAt time.Time `bson:"expires_at" json:"expiresAt"`
}

// Expired reports whether the challenge's TTL has elapsed as of now.
func (c *Challenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// Session is created at the end of a successful ceremony. Its ID is the
// token identifier (jti) minted alongside it, so the session row doubles as
// the revocation record for an otherwise self-contained signed token.
//
// Terminal when ExpiresAt < now OR Revoked = true (G4: a session is valid
// only if its user is also active).
type Session struct {
	ID             string    `bson:"_id" json:"id"`
	UserID         string    `bson:"user_id" json:"userId" validate:"required"`
	CredentialID   string    `bson:"credential_id,omitempty" json:"credentialId,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
	ExpiresAt      time.Time `bson:"expires_at" json:"expiresAt"`
	LastActivityAt time.Time `bson:"last_activity_at" json:"lastActivityAt"`
	IPAddress      string    `bson:"ip_address,omitempty" json:"ipAddress,omitempty"`
	UserAgent      string    `bson:"user_agent,omitempty" json:"userAgent,omitempty"`
	Revoked        bool      `bson:"revoked" json:"revoked"`
}

// Live reports whether the session is still usable as of now.
func (s *Session) Live(now time.Time) bool {
	return !s.Revoked && s.ExpiresAt.After(now)
}

// Role is a named, flat permission bundle assigned to users via UserRole
// edges. ParentRoleID is reserved for future hierarchical resolution — the
// evaluator in internal/authz never walks it.
type Role struct {
	ID           string    `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name" validate:"required"`
	Description  string    `bson:"description,omitempty" json:"description,omitempty"`
	IsSystem     bool      `bson:"is_system" json:"isSystem"`
	ParentRoleID string    `bson:"parent_role_id,omitempty" json:"parentRoleId,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
}

// Permission is addressed by its Code, the canonical matching key used
// throughout internal/authz. ResourceType and Action are denormalized
// copies of Code's segments, kept for query convenience only.
type Permission struct {
	ID           string    `bson:"_id" json:"id"`
	Code         string    `bson:"code" json:"code" validate:"required"`
	ResourceType string    `bson:"resource_type" json:"resourceType"`
	Action       string    `bson:"action" json:"action"`
	Description  string    `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
}

// RolePermission is the Role<->Permission edge. An edge with a nonzero,
// past GrantedAt has no expiry of its own — only UserRole edges expire.
type RolePermission struct {
	RoleID       string    `bson:"role_id" json:"roleId"`
	PermissionID string    `bson:"permission_id" json:"permissionId"`
	GrantedAt    time.Time `bson:"granted_at" json:"grantedAt"`
}

// UserRole is the User<->Role edge. An edge with ExpiresAt <= now is inert
// and must be excluded from effective-permission resolution.
type UserRole struct {
	UserID    string     `bson:"user_id" json:"userId"`
	RoleID    string     `bson:"role_id" json:"roleId"`
	GrantedAt time.Time  `bson:"granted_at" json:"grantedAt"`
	GrantedBy string     `bson:"granted_by,omitempty" json:"grantedBy,omitempty"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty" json:"expiresAt,omitempty"`
}

// Active reports whether the edge currently confers its role.
func (ur *UserRole) Active(now time.Time) bool {
	return ur.ExpiresAt == nil || ur.ExpiresAt.After(now)
}

// Scope kinds for a UserPermissionGrant.
const (
	ScopeAll   = "all"
	ScopeRecord = "record"
	ScopeQuery  = "query"
)

// UserPermissionGrant is a direct override bypassing roles entirely: the
// permission applies to the user regardless of role membership, within the
// declared scope.
type UserPermissionGrant struct {
	UserID       string     `bson:"user_id" json:"userId"`
	PermissionID string     `bson:"permission_id" json:"permissionId"`
	ScopeType    string     `bson:"scope_type" json:"scopeType"`
	ScopeValue   string     `bson:"scope_value,omitempty" json:"scopeValue,omitempty"`
	GrantedAt    time.Time  `bson:"granted_at" json:"grantedAt"`
	GrantedBy    string     `bson:"granted_by,omitempty" json:"grantedBy,omitempty"`
	ExpiresAt    *time.Time `bson:"expires_at,omitempty" json:"expiresAt,omitempty"`
	Reason       string     `bson:"reason,omitempty" json:"reason,omitempty"`
}

// Active reports whether the grant currently applies.
func (g *UserPermissionGrant) Active(now time.Time) bool {
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

// ResourceGrant permits a user a named permission only for one identified
// record. Unique on (UserID, ResourceType, ResourceID, PermissionID).
type ResourceGrant struct {
	ID           string     `bson:"_id" json:"id"`
	UserID       string     `bson:"user_id" json:"userId"`
	ResourceType string     `bson:"resource_type" json:"resourceType"`
	ResourceID   string     `bson:"resource_id" json:"resourceId"`
	PermissionID string     `bson:"permission_id" json:"permissionId"`
	GrantedAt    time.Time  `bson:"granted_at" json:"grantedAt"`
	GrantedBy    string     `bson:"granted_by,omitempty" json:"grantedBy,omitempty"`
	ExpiresAt    *time.Time `bson:"expires_at,omitempty" json:"expiresAt,omitempty"`
}

// Active reports whether the resource grant currently applies.
func (g *ResourceGrant) Active(now time.Time) bool {
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

// System role/permission names seeded by internal/bootstrap (spec.md §4.7).
const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	PermissionAdminWildcard     = "admin:*"
	PermissionUserProfile       = "user:profile"
	PermissionUserCredentials   = "user:credentials"
)
