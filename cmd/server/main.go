// Package main is the entry point for the sentinel-auth passkey
// authentication and authorization service. It wires configuration,
// persistence, the ceremony/authorization engines, and the HTTP gateway,
// then serves with graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/radek-zitek-cloud/sentinel-auth/internal/authz"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/bootstrap"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/ceremony"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/config"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/gateway"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/repositories/mongo"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/repositories/rediscache"
	"github.com/radek-zitek-cloud/sentinel-auth/pkg/cache"
	"github.com/radek-zitek-cloud/sentinel-auth/pkg/database"
	"github.com/radek-zitek-cloud/sentinel-auth/pkg/logger"
	"github.com/radek-zitek-cloud/sentinel-auth/pkg/token"
)

// Application holds every long-lived dependency the process owns.
type Application struct {
	config  *config.Config
	logger  *logger.Logger
	db      *database.Client
	cache   *cache.Client
	gateway *gateway.Gateway
	server  *http.Server

	sweepCancel context.CancelFunc
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app, err := NewApplication(ctx)
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(ctx); err != nil {
		app.logger.Error(ctx, "Failed to start application", err)
		os.Exit(1)
	}

	app.WaitForShutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "Error during shutdown", err)
		os.Exit(1)
	}

	app.logger.Info("Application shutdown complete")
}

// NewApplication loads configuration, connects to Mongo and Redis, wires the
// repository/engine/gateway stack, and seeds system roles and permissions.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	cfg.LogConfigSummary()

	log.Info("Application initialization started",
		logger.String("name", cfg.App.Name),
		logger.String("version", cfg.App.Version),
		logger.String("environment", cfg.App.Environment),
	)

	log.Info("Connecting to MongoDB...")
	dbClient, err := database.NewClient(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Creating database indexes...")
	if err := dbClient.CreateIndexes(ctx); err != nil {
		log.Error(ctx, "Failed to create database indexes", err)
	}

	log.Info("Connecting to Redis...")
	cacheClient, err := cache.NewClient(&cfg.Cache, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cache: %w", err)
	}

	signingKey, err := cfg.Jwt.SigningKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	tokenService, err := token.NewService(signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to construct token service: %w", err)
	}

	db := dbClient.Database()
	users := mongo.NewUserRepository(db)
	credentials := mongo.NewCredentialRepository(db)
	sessions := mongo.NewSessionRepository(db)
	roles := mongo.NewRoleRepository(db)
	permissions := mongo.NewPermissionRepository(db)
	rolePermissions := mongo.NewRolePermissionRepository(db)
	userRoles := mongo.NewUserRoleRepository(db)
	userGrants := mongo.NewUserPermissionGrantRepository(db)
	resourceGrants := mongo.NewResourceGrantRepository(db)
	challenges := rediscache.NewChallengeStore(cacheClient)

	ceremonyEngine := ceremony.New(
		ceremony.Config{
			ServerDomain:    cfg.Fido2.ServerDomain,
			Origins:         cfg.Fido2.Origins,
			ChallengeTTL:    cfg.Challenge.Lifetime,
			SessionLifetime: cfg.Session.DefaultLifetime,
		},
		users,
		credentials,
		sessions,
		challenges,
		tokenService,
	)

	authzEngine := authz.New(roles, permissions, rolePermissions, userRoles, userGrants, resourceGrants)

	log.Info("Seeding system roles and permissions...")
	if err := bootstrap.Bootstrap(ctx, bootstrap.Dependencies{
		Roles:           roles,
		Permissions:     permissions,
		RolePermissions: rolePermissions,
		Sessions:        sessions,
		Logger:          log,
	}); err != nil {
		return nil, fmt.Errorf("failed to bootstrap: %w", err)
	}

	gw := gateway.New(cfg, log, dbClient, tokenService, sessions, ceremonyEngine, authzEngine)

	app := &Application{
		config:  cfg,
		logger:  log,
		db:      dbClient,
		cache:   cacheClient,
		gateway: gw,
	}

	app.server = &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      gw.Handler(),
		ReadTimeout:  cfg.App.Timeout,
		WriteTimeout: cfg.App.Timeout,
		IdleTimeout:  2 * cfg.App.Timeout,
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	bootstrap.RunSweeper(sweepCtx, sessions, log)
	app.sweepCancel = sweepCancel

	log.Info("Application initialized successfully")
	return app, nil
}

// Start begins serving HTTP requests on the configured port.
func (app *Application) Start(ctx context.Context) error {
	app.logger.Info("Starting HTTP server", logger.String("address", app.server.Addr))

	go func() {
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Error(ctx, "HTTP server error", err)
		}
	}()

	return nil
}

// WaitForShutdown blocks until a termination signal arrives.
func (app *Application) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	app.logger.Info("Received shutdown signal", logger.String("signal", sig.String()))
}

// Shutdown stops the sweeper, the HTTP server, and closes backing stores.
func (app *Application) Shutdown(ctx context.Context) error {
	app.logger.Info("Starting graceful shutdown...")

	if app.sweepCancel != nil {
		app.sweepCancel()
	}

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error(ctx, "HTTP server shutdown error", err)
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	if err := app.cache.Close(); err != nil {
		app.logger.Error(ctx, "Cache connection close error", err)
	}

	if err := app.db.Close(ctx); err != nil {
		app.logger.Error(ctx, "Database connection close error", err)
		return fmt.Errorf("database connection close failed: %w", err)
	}

	_ = app.logger.Sync()

	return nil
}
