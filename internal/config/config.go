// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package config

import (
	"time"

	"github.com/tomtom215/skyrank/internal/bookings"
	"github.com/tomtom215/skyrank/internal/database"
	"github.com/tomtom215/skyrank/internal/recommend"
	"github.com/tomtom215/skyrank/internal/recommend/profile"
	"github.com/tomtom215/skyrank/internal/recommend/training"
)

// Artifact store backends.
const (
	ArtifactBackendDuckDB = "duckdb"
	ArtifactBackendBadger = "badger"
	ArtifactBackendFile   = "file"
)

// Profile cache backends.
const (
	ProfileCacheMemory = "memory"
	ProfileCacheRedis  = "redis"
	ProfileCacheNone   = "none"
)

// Config holds all application configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in defaults for every setting
//  2. Config File: optional YAML file
//  3. Environment Variables: override any mapped setting
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Database  database.Config  `koanf:"database"`
	Bookings  bookings.Config  `koanf:"bookings"`
	Artifacts ArtifactsConfig  `koanf:"artifacts"`
	Ranking   recommend.Config `koanf:"ranking"`
	Training  TrainingConfig   `koanf:"training"`
	Profiles  ProfilesConfig   `koanf:"profiles"`
	Security  SecurityConfig   `koanf:"security"`
	Logging   LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int    `koanf:"port" validate:"min=1,max=65535"`
	Host string `koanf:"host"`

	// ReadTimeout bounds reading a request including the body.
	// Default: 15s
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// WriteTimeout bounds writing the response. Synchronous training
	// requests (?wait=true) are bounded by this too.
	// Default: 60s
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// IdleTimeout bounds keep-alive connections.
	// Default: 120s
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// ShutdownTimeout is the grace period for in-flight requests.
	// Default: 15s
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Environment is "development", "staging" or "production".
	// Default: development
	Environment string `koanf:"environment" validate:"oneof=development staging production"`
}

// ArtifactsConfig selects where model artifacts are persisted.
type ArtifactsConfig struct {
	// Backend is duckdb (the service database), badger or file.
	// Default: duckdb
	Backend string `koanf:"backend" validate:"oneof=duckdb badger file"`

	// Dir is the directory of the badger and file backends.
	// Default: /data/artifacts
	Dir string `koanf:"dir"`
}

// TrainingConfig holds the training pipeline and its schedule.
type TrainingConfig struct {
	// Enabled runs the scheduled trainer.
	// Default: true
	Enabled bool `koanf:"enabled"`

	// Interval between scheduled runs.
	// Default: 24h
	Interval time.Duration `koanf:"interval"`

	// OnStartup runs once immediately after start.
	// Default: false
	OnStartup bool `koanf:"on_startup"`

	// Pipeline configures estimator fitting and evaluation.
	Pipeline training.Config `koanf:"pipeline"`
}

// ProfilesConfig holds profile construction, caching and refresh settings.
type ProfilesConfig struct {
	// Lookback bounds the booking history by creation time.
	// Default: 8760h (365 days)
	Lookback time.Duration `koanf:"lookback"`

	// MaxBookings caps the bookings aggregated per profile.
	// Default: 50
	MaxBookings int `koanf:"max_bookings" validate:"min=1"`

	// CacheTTL is how long a profile stays cached.
	// Default: 15m
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// Cache is memory, redis or none.
	// Default: memory
	Cache string `koanf:"cache" validate:"oneof=memory redis none"`

	// MemoryEntries bounds the in-process cache.
	// Default: 10000
	MemoryEntries int `koanf:"memory_entries" validate:"min=1"`

	// Redis configures the shared cache.
	Redis profile.RedisConfig `koanf:"redis"`

	// RefreshInterval is the period of the scheduled profile rebuild.
	// Zero disables it.
	// Default: 1h
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// RefreshWindow selects travelers with bookings created this recently.
	// Default: 24h
	RefreshWindow time.Duration `koanf:"refresh_window"`

	// RefreshConcurrency bounds concurrent rebuilds.
	// Default: 4
	RefreshConcurrency int `koanf:"refresh_concurrency" validate:"min=1"`
}

// Builder returns the profile builder settings.
func (p *ProfilesConfig) Builder() profile.Config {
	return profile.Config{
		Lookback:    p.Lookback,
		MaxBookings: p.MaxBookings,
		CacheTTL:    p.CacheTTL,
	}
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// MaxBodyBytes caps request bodies.
	// Default: 4194304 (4 MiB)
	MaxBodyBytes int64 `koanf:"max_body_bytes" validate:"min=1024"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Default: false
	Caller bool `koanf:"caller"`
}

// Load reads configuration from all sources. See LoadWithKoanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
