// Package gateway implements the request/response edge of the service
// (spec.md §4.6): routing, bearer-token extraction and validation, a
// request-local subject context, and translation of engine errors into the
// closed apierror response shape. The gateway fails closed — any
// unexpected error becomes 401 or 503, never a default allow.
package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/radek-zitek-cloud/sentinel-auth/internal/authz"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/ceremony"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/config"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/repositories"
	"github.com/radek-zitek-cloud/sentinel-auth/pkg/database"
	"github.com/radek-zitek-cloud/sentinel-auth/pkg/logger"
	"github.com/radek-zitek-cloud/sentinel-auth/pkg/token"
)

// Gateway owns the gin router and the engines it dispatches requests to.
type Gateway struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.Client
	tokens   *token.Service
	sessions repositories.SessionRepository
	ceremony *ceremony.Engine
	authz    *authz.Engine
	router   *gin.Engine
}

// New constructs a Gateway and registers every route in spec.md §6.
func New(
	cfg *config.Config,
	log *logger.Logger,
	db *database.Client,
	tokens *token.Service,
	sessions repositories.SessionRepository,
	ceremonyEngine *ceremony.Engine,
	authzEngine *authz.Engine,
) *Gateway {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	gw := &Gateway{
		cfg:      cfg,
		log:      log,
		db:       db,
		tokens:   tokens,
		sessions: sessions,
		ceremony: ceremonyEngine,
		authz:    authzEngine,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gw.correlationMiddleware())
	router.Use(gw.requestLoggingMiddleware())
	router.Use(gw.corsMiddleware())

	router.GET("/health", gw.healthHandler)
	router.GET("/ready", gw.readyHandler)

	auth := router.Group("/auth")
	auth.POST("/register/begin", gw.registerBeginHandler)
	auth.POST("/register/complete", gw.registerCompleteHandler)
	auth.POST("/login/begin", gw.loginBeginHandler)
	auth.POST("/login/complete", gw.loginCompleteHandler)
	auth.GET("/session", gw.requireSubject(), gw.sessionHandler)
	auth.POST("/logout", gw.requireSubject(), gw.logoutHandler)

	authzGroup := router.Group("/authz")
	authzGroup.Use(gw.requireSubject())
	authzGroup.GET("/check", gw.checkHandler)
	authzGroup.GET("/permissions", gw.permissionsHandler)
	authzGroup.POST("/evaluate", gw.evaluateHandler)

	gw.router = router
	return gw
}

// Handler returns the http.Handler to mount on an http.Server.
func (gw *Gateway) Handler() http.Handler { return gw.router }

func (gw *Gateway) healthHandler(c *gin.Context) {
	ctx := c.Request.Context()
	dbHealth := gw.db.HealthCheck(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if dbHealth.Status != "healthy" {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   gw.cfg.App.Version,
		"checks": gin.H{
			"database": dbHealth,
		},
	})
}

func (gw *Gateway) readyHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"version":   gw.cfg.App.Version,
	})
}
