package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/radek-zitek-cloud/sentinel-auth/internal/apierror"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/authz"
)

func (gw *Gateway) checkHandler(c *gin.Context) {
	sub := currentSubject(c)

	permission := c.Query("permission")
	if permission == "" {
		writeAPIError(c, apierror.New(apierror.BadRequest, nil))
		return
	}

	result, err := gw.authz.Check(c.Request.Context(), sub.Claims.Subject, authz.CheckRequest{
		Permission:   permission,
		ResourceType: c.Query("resourceType"),
		ResourceID:   c.Query("resourceId"),
	})
	if err != nil {
		writeAPIError(c, apierror.New(apierror.Unavailable, err))
		return
	}

	c.JSON(http.StatusOK, result)
}

func (gw *Gateway) permissionsHandler(c *gin.Context) {
	sub := currentSubject(c)

	effective, err := gw.authz.Effective(c.Request.Context(), sub.Claims.Subject)
	if err != nil {
		writeAPIError(c, apierror.New(apierror.Unavailable, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"permissions": effective})
}

type evaluateCheckInput struct {
	Permission   string `json:"permission" binding:"required"`
	ResourceType string `json:"resourceType"`
	ResourceID   string `json:"resourceId"`
}

type evaluateRequest struct {
	Checks []evaluateCheckInput `json:"checks" binding:"required"`
}

// evaluateResult is the per-check entry spec.md §6 documents for
// POST /authz/evaluate: the request echoed back alongside its verdict, since
// the response array's only ordering guarantee is "same order as input" —
// callers still need the permission/resourceId to match a result to its
// check without relying on index arithmetic.
type evaluateResult struct {
	Permission string `json:"permission"`
	ResourceID string `json:"resourceId,omitempty"`
	Allowed    bool   `json:"allowed"`
}

func (gw *Gateway) evaluateHandler(c *gin.Context) {
	sub := currentSubject(c)

	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIError(c, apierror.New(apierror.BadRequest, err))
		return
	}

	checks := make([]authz.CheckRequest, len(req.Checks))
	for i, ci := range req.Checks {
		checks[i] = authz.CheckRequest{
			Permission:   ci.Permission,
			ResourceType: ci.ResourceType,
			ResourceID:   ci.ResourceID,
		}
	}

	outcomes, err := gw.authz.Evaluate(c.Request.Context(), sub.Claims.Subject, checks)
	if err != nil {
		writeAPIError(c, apierror.New(apierror.Unavailable, err))
		return
	}

	results := make([]evaluateResult, len(outcomes))
	for i, outcome := range outcomes {
		results[i] = evaluateResult{
			Permission: req.Checks[i].Permission,
			ResourceID: req.Checks[i].ResourceID,
			Allowed:    outcome.Allowed,
		}
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}
