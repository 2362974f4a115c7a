// Package apierror maps the internal failures distinguished across the
// ceremony engine, token service, and authorization engine onto a closed set
// of kinds, each with a stable HTTP status and reason string (spec.md §7).
// The gateway is the only layer that translates an arbitrary error into a
// response; every other package returns Go errors, never HTTP concerns.
package apierror

import (
	"errors"
	"net/http"
)

// Kind identifies one of the error categories spec.md §7 enumerates.
type Kind string

const (
	MissingCredential          Kind = "missing_credential"
	InvalidTokenFormat         Kind = "invalid_token_format"
	InvalidSignature           Kind = "invalid_signature"
	TokenExpired               Kind = "token_expired"
	TokenRevoked               Kind = "token_revoked"
	ChallengeNotFound          Kind = "challenge_not_found"
	CeremonyVerificationFailed Kind = "ceremony_verification_failed"
	CounterRegressed           Kind = "counter_regressed"
	BadRequest                 Kind = "bad_request"
	Unavailable                Kind = "unavailable"
)

// reasons and statuses are fixed per kind — never derived from the
// underlying error's message, so a denial never leaks store-internal detail.
var reasons = map[Kind]string{
	MissingCredential:          "no bearer token",
	InvalidTokenFormat:         "invalid token format",
	InvalidSignature:           "invalid signature",
	TokenExpired:               "token expired",
	TokenRevoked:               "token revoked",
	ChallengeNotFound:          "challenge not found",
	CeremonyVerificationFailed: "verification failed",
	CounterRegressed:           "cloned authenticator suspected",
	BadRequest:                 "bad request",
	Unavailable:                "database error",
}

var statuses = map[Kind]int{
	MissingCredential:          http.StatusUnauthorized,
	InvalidTokenFormat:         http.StatusUnauthorized,
	InvalidSignature:           http.StatusUnauthorized,
	TokenExpired:               http.StatusUnauthorized,
	TokenRevoked:               http.StatusUnauthorized,
	ChallengeNotFound:          http.StatusBadRequest,
	CeremonyVerificationFailed: http.StatusBadRequest,
	CounterRegressed:           http.StatusBadRequest,
	BadRequest:                 http.StatusBadRequest,
	Unavailable:                http.StatusServiceUnavailable,
}

// Error is the typed variant returned at package boundaries. Wrap an
// underlying cause with New so callers retain errors.Is/As compatibility
// while the gateway still gets a fixed, leak-free reason string.
type Error struct {
	Kind   Kind
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Reason + ": " + e.cause.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs an Error for kind, optionally wrapping cause. cause is
// retained only for internal logging — Reason never includes it.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Reason: reasons[kind], cause: cause}
}

// Status returns the HTTP status for kind, or 500 for a kind not in the
// closed set (fail-closed on anything unrecognized, per spec.md §7).
func Status(kind Kind) int {
	if s, ok := statuses[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Reason returns the stable reason string for kind.
func Reason(kind Kind) string {
	if r, ok := reasons[kind]; ok {
		return r
	}
	return "internal error"
}

// As extracts an *Error from err, if any is present in its chain.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
