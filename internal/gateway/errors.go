package gateway

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/radek-zitek-cloud/sentinel-auth/internal/apierror"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/ceremony"
	"github.com/radek-zitek-cloud/sentinel-auth/pkg/token"
)

// mapTokenError maps a pkg/token validation failure onto its apierror kind.
func mapTokenError(err error) *apierror.Error {
	switch {
	case errors.Is(err, token.ErrInvalidFormat):
		return apierror.New(apierror.InvalidTokenFormat, err)
	case errors.Is(err, token.ErrInvalidSignature):
		return apierror.New(apierror.InvalidSignature, err)
	case errors.Is(err, token.ErrExpired):
		return apierror.New(apierror.TokenExpired, err)
	case errors.Is(err, token.ErrRevoked):
		return apierror.New(apierror.TokenRevoked, err)
	default:
		return apierror.New(apierror.Unavailable, err)
	}
}

// mapCeremonyError maps an internal/ceremony failure onto its apierror kind.
func mapCeremonyError(err error) *apierror.Error {
	switch {
	case errors.Is(err, ceremony.ChallengeNotFoundError()):
		return apierror.New(apierror.ChallengeNotFound, err)
	case errors.Is(err, ceremony.CounterRegressedError()):
		return apierror.New(apierror.CounterRegressed, err)
	case errors.Is(err, ceremony.VerificationFailedError()):
		return apierror.New(apierror.CeremonyVerificationFailed, err)
	default:
		return apierror.New(apierror.Unavailable, err)
	}
}

// writeAPIError serializes apiErr as the closed {error, reason} response
// shape spec.md §7 defines, at apiErr's fixed HTTP status.
func writeAPIError(c *gin.Context, apiErr *apierror.Error) {
	c.JSON(apierror.Status(apiErr.Kind), gin.H{
		"error":  string(apiErr.Kind),
		"reason": apiErr.Reason,
	})
}
