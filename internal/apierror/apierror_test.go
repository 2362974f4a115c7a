package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFixesReasonRegardlessOfCause(t *testing.T) {
	cause := errors.New("role X exists but lacks permission Y on record Z")
	err := New(CeremonyVerificationFailed, cause)

	require.Equal(t, "verification failed", err.Reason)
	require.NotContains(t, err.Reason, "role X")
	require.True(t, errors.Is(err, err))
	require.ErrorIs(t, err, cause)
}

func TestStatusCoversEveryKind(t *testing.T) {
	kinds := []struct {
		kind   Kind
		status int
	}{
		{MissingCredential, http.StatusUnauthorized},
		{InvalidTokenFormat, http.StatusUnauthorized},
		{InvalidSignature, http.StatusUnauthorized},
		{TokenExpired, http.StatusUnauthorized},
		{TokenRevoked, http.StatusUnauthorized},
		{ChallengeNotFound, http.StatusBadRequest},
		{CeremonyVerificationFailed, http.StatusBadRequest},
		{CounterRegressed, http.StatusBadRequest},
		{BadRequest, http.StatusBadRequest},
		{Unavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range kinds {
		require.Equal(t, tc.status, Status(tc.kind), "kind %s", tc.kind)
	}
}

func TestStatusFailsClosedOnUnknownKind(t *testing.T) {
	require.Equal(t, http.StatusInternalServerError, Status(Kind("made-up")))
}

func TestAsExtractsWrappedError(t *testing.T) {
	apiErr := New(TokenExpired, errors.New("exp in the past"))
	wrapped := errors.New("middleware: " + apiErr.Error())

	_, ok := As(wrapped)
	require.False(t, ok, "As must not match on message text, only on error chain identity")

	found, ok := As(fmt.Errorf("middleware: %w", apiErr))
	require.True(t, ok)
	require.Equal(t, TokenExpired, found.Kind)
}
