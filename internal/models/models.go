// Package models contains the core domain entities for the passkey
// authentication and authorization service: users, credentials, and the
// base auditing fields shared by every persisted entity.
package models

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel contains fields common to every persisted entity. Unlike a
// Mongo-native ObjectID, IDs here are version-4 random UUID strings stored
// verbatim in the BSON _id field.
type BaseModel struct {
	ID        string    `bson:"_id" json:"id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// NewID generates a version-4 random identifier, per invariant G1.
func NewID() string {
	return uuid.NewString()
}

// Touch stamps CreatedAt on first use and always refreshes UpdatedAt.
func (b *BaseModel) Touch() {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// User is the identity anchor for passkey credentials, sessions, role
// assignments, and grants. Created at first successful registration;
// soft-deactivated rather than hard-deleted while referencing rows exist.
type User struct {
	BaseModel `bson:",inline"`

	DisplayName string                 `bson:"display_name" json:"displayName" validate:"required,min=1,max=200"`
	Email       string                 `bson:"email,omitempty" json:"email,omitempty" validate:"omitempty,email"`
	IsActive    bool                   `bson:"is_active" json:"isActive"`
	LastLoginAt time.Time              `bson:"last_login_at,omitempty" json:"lastLoginAt,omitempty"`
	Metadata    map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// Credential is a single passkey bound to exactly one user. The ID is the
// url-safe base64 encoding of the authenticator-issued credential
// identifier (see pkg/codec) — never generated server-side.
//
// Invariant C1: SignCount is non-decreasing across successful assertions.
type Credential struct {
	UserID            string    `bson:"user_id" json:"userId" validate:"required"`
	ID                string    `bson:"_id" json:"id"`
	PublicKey         []byte    `bson:"public_key" json:"-"`
	SignCount         uint32    `bson:"sign_count" json:"signCount"`
	AAGUID            string    `bson:"aaguid,omitempty" json:"aaguid,omitempty"`
	Transports        []string  `bson:"transports,omitempty" json:"transports,omitempty"`
	AttestationFormat string    `bson:"attestation_format,omitempty" json:"attestationFormat,omitempty"`
	CreatedAt         time.Time `bson:"created_at" json:"createdAt"`
	LastUsedAt        time.Time `bson:"last_used_at,omitempty" json:"lastUsedAt,omitempty"`
	DeviceName        string    `bson:"device_name,omitempty" json:"deviceName,omitempty"`
	BackupEligible    bool      `bson:"backup_eligible" json:"backupEligible"`
	BackedUp          bool      `bson:"backed_up" json:"backedUp"`
}
