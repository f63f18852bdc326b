// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/skyrank/internal/api"
	"github.com/tomtom215/skyrank/internal/bookings"
	"github.com/tomtom215/skyrank/internal/config"
	"github.com/tomtom215/skyrank/internal/database"
	"github.com/tomtom215/skyrank/internal/recommend"
	"github.com/tomtom215/skyrank/internal/recommend/profile"
	"github.com/tomtom215/skyrank/internal/recommend/storage"
	"github.com/tomtom215/skyrank/internal/recommend/training"
	"github.com/tomtom215/skyrank/internal/supervisor"
	"github.com/tomtom215/skyrank/internal/supervisor/services"
)

// App holds the wired components of the service.
type App struct {
	cfg    *config.Config
	logger zerolog.Logger

	db       *database.DB
	source   bookings.Source
	store    storage.ArtifactStore
	profiles *profile.Builder
	pipeline *training.Pipeline // nil when training is disabled
	engine   *recommend.Engine
	handler  *api.Handler
	server   *http.Server

	checks  map[string]api.CheckFunc
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// buildApp wires every component from cfg. On error, whatever was already
// opened is closed.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *App, err error) {
	app := &App{
		cfg:    cfg,
		logger: logger,
		checks: make(map[string]api.CheckFunc),
	}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	app.db, err = database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	app.onClose("duckdb", app.db.Close)
	app.checks["duckdb"] = app.db.Ping

	if app.source, err = app.buildBookingSource(); err != nil {
		return nil, err
	}
	if app.store, err = app.buildArtifactStore(); err != nil {
		return nil, err
	}
	cache, err := app.buildProfileCache(ctx)
	if err != nil {
		return nil, err
	}

	app.profiles = profile.NewBuilder(app.source, cache, cfg.Profiles.Builder(), logger)

	if cfg.Training.Enabled {
		app.pipeline, err = training.NewPipeline(app.source, app.store, cfg.Training.Pipeline, logger)
		if err != nil {
			return nil, fmt.Errorf("create training pipeline: %w", err)
		}
	}

	app.engine, err = recommend.NewEngine(&cfg.Ranking, app.store, app.profiles, logger)
	if err != nil {
		return nil, fmt.Errorf("create ranking engine: %w", err)
	}

	var trainer api.Trainer
	if app.pipeline != nil {
		app.engine.SetTrainer(app.pipeline)
		trainer = app.pipeline
	}

	app.handler = api.NewHandler(api.Dependencies{
		Ranker:   app.engine,
		Trainer:  trainer,
		Models:   app.store,
		Profiles: app.profiles,
		Checks:   app.checks,
	}, api.Options{
		TrainTimeout: cfg.Training.Pipeline.Timeout,
		MaxBodyBytes: cfg.Security.MaxBodyBytes,
	}, logger)

	router := api.NewRouter(app.handler, &api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		CORSAllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Security.RateLimitReqs,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
		RateLimitDisabled:  cfg.Security.RateLimitDisabled,
	})

	app.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	return app, nil
}

// buildBookingSource selects the booking history backend and wraps it in
// the circuit breaker when enabled.
func (a *App) buildBookingSource() (bookings.Source, error) {
	var source bookings.Source
	switch a.cfg.Bookings.Backend {
	case "postgres":
		pg, err := bookings.OpenPostgres(a.cfg.Bookings, a.logger)
		if err != nil {
			return nil, err
		}
		a.onClose("postgres", pg.Close)
		a.checks["bookings"] = pg.Ping
		source = pg
	default:
		source = a.db
	}

	if a.cfg.Bookings.Breaker.Enabled {
		source = bookings.NewBreaker(source, "bookings-"+a.cfg.Bookings.Backend, a.cfg.Bookings.Breaker, a.logger)
	}
	return source, nil
}

// buildArtifactStore opens the configured artifact backend.
func (a *App) buildArtifactStore() (storage.ArtifactStore, error) {
	switch a.cfg.Artifacts.Backend {
	case config.ArtifactBackendBadger:
		store, err := storage.OpenBadgerStore(a.cfg.Artifacts.Dir)
		if err != nil {
			return nil, err
		}
		a.onClose("badger", store.Close)
		return store, nil
	case config.ArtifactBackendFile:
		store, err := storage.NewFileStore(a.cfg.Artifacts.Dir)
		if err != nil {
			return nil, fmt.Errorf("open file artifact store: %w", err)
		}
		return store, nil
	default:
		return database.NewArtifactStore(a.db), nil
	}
}

// buildProfileCache returns the configured cache, or nil for "none".
func (a *App) buildProfileCache(ctx context.Context) (profile.Cache, error) {
	switch a.cfg.Profiles.Cache {
	case config.ProfileCacheRedis:
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		rc, err := profile.NewRedisCache(connectCtx, a.cfg.Profiles.Redis, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis profile cache: %w", err)
		}
		a.onClose("redis", rc.Close)
		a.checks["redis"] = rc.Ping
		return rc, nil
	case config.ProfileCacheNone:
		return nil, nil
	default:
		return profile.NewMemoryCache(a.cfg.Profiles.MemoryEntries), nil
	}
}

// Register adds the long-running services to the supervisor tree.
func (a *App) Register(tree *supervisor.SupervisorTree) {
	if a.cfg.Profiles.RefreshInterval > 0 && a.cfg.Profiles.Cache != config.ProfileCacheNone {
		tree.AddDataService(services.NewProfileRefreshService(a.source, a.profiles, services.ProfileRefreshConfig{
			Interval:    a.cfg.Profiles.RefreshInterval,
			Window:      a.cfg.Profiles.RefreshWindow,
			Concurrency: a.cfg.Profiles.RefreshConcurrency,
		}, a.logger))
	}

	if a.pipeline != nil {
		tree.AddTrainingService(services.NewTrainingSchedulerService(a.pipeline, a.engine, services.TrainingSchedulerConfig{
			OnStartup: a.cfg.Training.OnStartup,
			Interval:  a.cfg.Training.Interval,
			Timeout:   a.cfg.Training.Pipeline.Timeout,
		}, a.logger))
	}

	httpSvc := services.NewHTTPServerService(a.server, a.cfg.Server.ShutdownTimeout, a.logger)
	httpSvc.OnShutdown(func() {
		a.handler.Wait()
		a.engine.Wait()
	})
	tree.AddAPIService(httpSvc)
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Error().Err(err).Str("resource", c.name).Msg("Error closing resource")
		}
	}
	a.closers = nil
}
