package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	revoked map[string]bool
}

func (f *fakeChecker) IsRevoked(ctx context.Context, jti string) (bool, bool, error) {
	return f.revoked[jti], true, nil
}

func key(fill byte) []byte {
	k := make([]byte, SigningKeySize)
	for i := range k {
		k[i] = fill
	}
	return k
}

func TestMintAndValidate(t *testing.T) {
	svc, err := NewService(key(1))
	require.NoError(t, err)

	t.Run("validates a freshly minted token", func(t *testing.T) {
		raw, claims, err := svc.Mint("user-1", "Ada", "ada@example.com", []string{"user"}, time.Hour)
		require.NoError(t, err)

		got, err := svc.Validate(context.Background(), raw, false, nil)
		require.NoError(t, err)
		assert.Equal(t, claims.Subject, got.Subject)
		assert.Equal(t, []string{"user"}, got.Roles)
	})

	t.Run("rejects a token signed under a different key", func(t *testing.T) {
		raw, _, err := svc.Mint("user-1", "Ada", "", nil, time.Hour)
		require.NoError(t, err)

		other, err := NewService(key(2))
		require.NoError(t, err)

		_, err = other.Validate(context.Background(), raw, false, nil)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("rejects a malformed token", func(t *testing.T) {
		_, err := svc.Validate(context.Background(), "not-a-token", false, nil)
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		raw, _, err := svc.Mint("user-1", "Ada", "", nil, -time.Minute)
		require.NoError(t, err)

		_, err = svc.Validate(context.Background(), raw, false, nil)
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("honors revocation by default and can skip it", func(t *testing.T) {
		raw, claims, err := svc.Mint("user-1", "Ada", "", nil, time.Hour)
		require.NoError(t, err)

		checker := &fakeChecker{revoked: map[string]bool{claims.ID: true}}

		_, err = svc.Validate(context.Background(), raw, true, checker)
		assert.ErrorIs(t, err, ErrRevoked)

		_, err = svc.Validate(context.Background(), raw, false, checker)
		assert.NoError(t, err)
	})
}

func TestExtractBearer(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"", "", false},
		{"Bearer abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearerabc", "", false},
		{"Bearer ", "", false},
	}

	for _, c := range cases {
		tok, ok := ExtractBearer(c.header)
		assert.Equal(t, c.ok, ok, "header %q", c.header)
		assert.Equal(t, c.token, tok, "header %q", c.header)
	}
}

func TestNewServiceRejectsWrongKeySize(t *testing.T) {
	_, err := NewService([]byte("too-short"))
	assert.Error(t, err)
}
