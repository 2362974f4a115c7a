// Package main provides the idempotent seeding tool for the sentinel-auth
// store: system roles, permissions, and their edges (spec.md §4.7).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/radek-zitek-cloud/sentinel-auth/internal/bootstrap"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/config"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/repositories/mongo"
	"github.com/radek-zitek-cloud/sentinel-auth/pkg/database"
	"github.com/radek-zitek-cloud/sentinel-auth/pkg/logger"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Logger)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Connecting to database for bootstrap...",
		logger.String("database", cfg.Database.Database),
	)

	dbClient, err := database.NewClient(&cfg.Database, log)
	if err != nil {
		log.Error(ctx, "Failed to connect to database", err)
		os.Exit(1)
	}
	defer dbClient.Close(ctx)

	if err := dbClient.CreateIndexes(ctx); err != nil {
		log.Error(ctx, "Failed to create database indexes", err)
		os.Exit(1)
	}

	db := dbClient.Database()
	deps := bootstrap.Dependencies{
		Roles:           mongo.NewRoleRepository(db),
		Permissions:     mongo.NewPermissionRepository(db),
		RolePermissions: mongo.NewRolePermissionRepository(db),
		Sessions:        mongo.NewSessionRepository(db),
		Logger:          log,
	}

	if err := bootstrap.Bootstrap(ctx, deps); err != nil {
		log.Error(ctx, "Bootstrap failed", err)
		os.Exit(1)
	}

	log.Info("Bootstrap completed successfully")
}
