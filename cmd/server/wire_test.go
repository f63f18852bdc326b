// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/skyrank/internal/bookings"
	"github.com/tomtom215/skyrank/internal/config"
	"github.com/tomtom215/skyrank/internal/database"
	"github.com/tomtom215/skyrank/internal/recommend"
	"github.com/tomtom215/skyrank/internal/recommend/profile"
	"github.com/tomtom215/skyrank/internal/recommend/storage"
	"github.com/tomtom215/skyrank/internal/recommend/training"
	"github.com/tomtom215/skyrank/internal/supervisor"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{
			Port:            3860,
			Host:            "127.0.0.1",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			IdleTimeout:     5 * time.Second,
			ShutdownTimeout: time.Second,
			Environment:     "development",
		},
		Database:  database.Config{Path: filepath.Join(dir, "skyrank.duckdb"), MaxMemory: "256MB"},
		Bookings:  bookings.DefaultConfig(),
		Artifacts: config.ArtifactsConfig{Backend: config.ArtifactBackendDuckDB},
		Ranking:   *recommend.DefaultConfig(),
		Training: config.TrainingConfig{
			Enabled:  true,
			Interval: time.Hour,
			Pipeline: training.DefaultConfig(),
		},
		Profiles: config.ProfilesConfig{
			Lookback:           365 * 24 * time.Hour,
			MaxBookings:        50,
			CacheTTL:           time.Minute,
			Cache:              config.ProfileCacheMemory,
			MemoryEntries:      100,
			RefreshInterval:    time.Hour,
			RefreshWindow:      24 * time.Hour,
			RefreshConcurrency: 2,
		},
		Security: config.SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			MaxBodyBytes:    1 << 20,
		},
	}
}

func TestBuildApp(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *config.Config, dir string)
		wantStore string
		wantCache bool
	}{
		{name: "duckdb artifacts with memory cache", wantStore: "*database.ArtifactStore", wantCache: true},
		{
			name: "file artifacts without cache",
			mutate: func(c *config.Config, dir string) {
				c.Artifacts = config.ArtifactsConfig{Backend: config.ArtifactBackendFile, Dir: dir}
				c.Profiles.Cache = config.ProfileCacheNone
			},
			wantStore: "*storage.FileStore",
		},
		{
			name: "badger artifacts",
			mutate: func(c *config.Config, dir string) {
				c.Artifacts = config.ArtifactsConfig{Backend: config.ArtifactBackendBadger, Dir: dir}
			},
			wantStore: "*storage.BadgerStore",
			wantCache: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if tt.mutate != nil {
				tt.mutate(cfg, t.TempDir())
			}

			app, err := buildApp(context.Background(), cfg, zerolog.Nop())
			if err != nil {
				t.Fatalf("buildApp() error = %v", err)
			}
			defer app.Close()

			switch tt.wantStore {
			case "*database.ArtifactStore":
				if _, ok := app.store.(*database.ArtifactStore); !ok {
					t.Errorf("store = %T, want %s", app.store, tt.wantStore)
				}
			case "*storage.FileStore":
				if _, ok := app.store.(*storage.FileStore); !ok {
					t.Errorf("store = %T, want %s", app.store, tt.wantStore)
				}
			case "*storage.BadgerStore":
				if _, ok := app.store.(*storage.BadgerStore); !ok {
					t.Errorf("store = %T, want %s", app.store, tt.wantStore)
				}
			}

			if _, ok := app.source.(*bookings.Breaker); !ok {
				t.Errorf("source = %T, want circuit breaker", app.source)
			}
			if app.pipeline == nil {
				t.Error("training pipeline not created")
			}
		})
	}
}

func TestBuildApp_ServesHTTP(t *testing.T) {
	cfg := testConfig(t)
	app, err := buildApp(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("buildApp() error = %v", err)
	}
	defer app.Close()

	for _, path := range []string{"/api/v1/health/live", "/api/v1/health/ready", "/api/v1/training/status", "/metrics"} {
		w := httptest.NewRecorder()
		app.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200 (body %s)", path, w.Code, w.Body.String())
		}
	}

	// No artifact yet: 404 rather than an error.
	w := httptest.NewRecorder()
	app.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/models/active", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("GET /api/v1/models/active = %d, want 404", w.Code)
	}
}

func TestBuildApp_TrainingDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Training.Enabled = false

	app, err := buildApp(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("buildApp() error = %v", err)
	}
	defer app.Close()

	if app.pipeline != nil {
		t.Error("pipeline created with training disabled")
	}
	w := httptest.NewRecorder()
	app.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/training/run", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("POST /api/v1/training/run = %d, want 503", w.Code)
	}
}

func TestBuildApp_RedisUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Profiles.Cache = config.ProfileCacheRedis
	cfg.Profiles.Redis = profile.RedisConfig{Addr: "127.0.0.1:1"}

	if _, err := buildApp(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("buildApp() expected error for unreachable redis")
	}
}

func TestApp_RegisterAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = 0 // ephemeral
	cfg.Training.OnStartup = false

	app, err := buildApp(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("buildApp() error = %v", err)
	}
	defer app.Close()

	tree, err := supervisor.NewSupervisorTree(nil, supervisor.TreeConfig{ShutdownTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}
	app.Register(tree)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor tree did not stop")
	}
}
