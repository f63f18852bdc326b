// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

// Package main is the entry point for the Skyrank ranking service.
//
// Skyrank reorders flight offers for a traveler by blending a trained
// ranking model with the traveler's booking preferences, and flags the top
// K offers as recommended.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: defaults, config.yaml, .env and environment (Koanf v2)
//  2. Database: DuckDB holding the booking mirror and model artifacts
//  3. Booking source: DuckDB or PostgreSQL, behind a circuit breaker
//  4. Artifact store: DuckDB, Badger or plain files
//  5. Profiles: builder with memory or Redis cache
//  6. Training pipeline and ranking engine
//  7. HTTP API (chi) and the suture supervisor tree
//
// # Signal Handling
//
// SIGINT and SIGTERM stop the tree: the HTTP server drains in-flight
// requests, training runs started over HTTP finish, and the database is
// closed.
//
// # Example Usage
//
//	export DUCKDB_PATH=/data/skyrank.duckdb
//	export TRAINING_STRATEGY=knn
//	./skyrank
//
// With PostgreSQL as the booking system of record and a shared Redis cache:
//
//	export BOOKINGS_BACKEND=postgres
//	export BOOKINGS_DSN="host=db user=skyrank dbname=bookings sslmode=disable"
//	export PROFILES_CACHE=redis
//	export REDIS_ADDR=redis:6379
//	./skyrank
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/skyrank/internal/config"
	"github.com/tomtom215/skyrank/internal/logging"
	"github.com/tomtom215/skyrank/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.LogConfig())

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Str("bookings_backend", cfg.Bookings.Backend).
		Str("artifacts_backend", cfg.Artifacts.Backend).
		Str("profile_cache", cfg.Profiles.Cache).
		Str("strategy", string(cfg.Training.Pipeline.Strategy)).
		Msg("Starting Skyrank")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*); set explicit origins outside development")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server stopped with error")
	}
	logging.Info().Msg("Server stopped")
}

// run builds the application and blocks until a shutdown signal.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logging.Logger())
	if err != nil {
		return err
	}
	defer app.Close()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}
	app.Register(tree)

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	logging.Info().Msg("Shutdown signal received")

	err = <-errCh
	if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
