// Package token implements the signed bearer token service (spec.md §4.2):
// mint, validate, revoke, and bearer-header extraction for the compact
// signed tokens the gateway issues at the end of a passkey ceremony.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Distinct terminal validation failures. Each maps 1:1 to the reason
// strings and HTTP statuses in spec.md §7 — callers should use errors.Is,
// never string-match the Error() text.
var (
	ErrInvalidFormat    = errors.New("invalid token format")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrExpired          = errors.New("token expired")
	ErrRevoked          = errors.New("token revoked")
)

// SigningKeySize is the required length, in bytes, of a service signing key.
const SigningKeySize = 32

// Claims carries the subject attributes minted into a token payload. Roles
// are the names held at mint time — never resolved effective permissions.
type Claims struct {
	Subject     string   `json:"sub"`
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles"`
	IssuedAt    int64    `json:"iat"`
	ExpiresAt   int64    `json:"exp"`
	ID          string   `json:"jti"`
}

// jwtClaims is the wire shape handed to golang-jwt, which requires its
// standard claim interface for expiry enforcement.
type jwtClaims struct {
	jwt.RegisteredClaims
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles"`
}

// RevocationChecker answers whether a minted token's session has been
// revoked. Implemented by internal/repositories against the Session store.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (revoked bool, exists bool, err error)
}

// Revoker marks a session row revoked by token identifier.
type Revoker interface {
	Revoke(ctx context.Context, jti string) error
}

// Service mints and validates tokens under a single symmetric signing key.
type Service struct {
	signingKey []byte
}

// NewService constructs a token Service. The key must be exactly
// SigningKeySize bytes, per spec.md §4.2.
func NewService(signingKey []byte) (*Service, error) {
	if len(signingKey) != SigningKeySize {
		return nil, fmt.Errorf("token: signing key must be %d bytes, got %d", SigningKeySize, len(signingKey))
	}
	return &Service{signingKey: signingKey}, nil
}

// Mint produces a signed token for the given subject attributes with the
// requested lifetime, returning the compact token string and the claims
// that were embedded.
func (s *Service) Mint(subject, displayName, email string, roles []string, lifetime time.Duration) (string, *Claims, error) {
	now := time.Now().UTC()
	jti, err := newJTI()
	if err != nil {
		return "", nil, fmt.Errorf("token: generate jti: %w", err)
	}

	expiresAt := now.Add(lifetime)
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
		DisplayName: displayName,
		Email:       email,
		Roles:       roles,
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", nil, fmt.Errorf("token: sign: %w", err)
	}

	return raw, &Claims{
		Subject:     subject,
		DisplayName: displayName,
		Email:       email,
		Roles:       roles,
		IssuedAt:    now.Unix(),
		ExpiresAt:   expiresAt.Unix(),
		ID:          jti,
	}, nil
}

// Validate performs, in order: structural check, signature verification,
// expiry check, and — unless checkRevocation is false — a revocation check
// against checker. The first failing step's sentinel error is returned.
func (s *Service) Validate(ctx context.Context, raw string, checkRevocation bool, checker RevocationChecker) (*Claims, error) {
	if strings.Count(raw, ".") != 2 {
		return nil, ErrInvalidFormat
	}

	var claims jwtClaims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidFormat
		}
		return s.signingKey, nil
	})

	switch {
	case err == nil && parsed.Valid:
		// fall through
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrInvalidFormat
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case err != nil:
		return nil, ErrInvalidFormat
	default:
		return nil, ErrInvalidSignature
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpired
	}

	if checkRevocation {
		if checker == nil {
			return nil, ErrRevoked
		}
		revoked, _, err := checker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("token: revocation check: %w", err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}

	return &Claims{
		Subject:     claims.Subject,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
		Roles:       claims.Roles,
		IssuedAt:    claims.IssuedAt.Unix(),
		ExpiresAt:   claims.ExpiresAt.Unix(),
		ID:          claims.ID,
	}, nil
}

// Revoke marks the session identified by jti revoked. Idempotent; a no-op
// if no session row exists for jti (bootstrap tokens minted before a
// session row is recorded are, by design, unrevocable).
func Revoke(ctx context.Context, revoker Revoker, jti string) error {
	return revoker.Revoke(ctx, jti)
}

// ExtractBearer returns the token carried by an Authorization header value
// iff it matches "Bearer <nonempty>" exactly — ASCII-case-sensitive scheme,
// exactly one separating space. Any other shape reports "not present."
func ExtractBearer(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	rest := header[len(prefix):]
	if rest == "" || strings.Contains(rest, " ") {
		return "", false
	}
	return rest, true
}

func newJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
