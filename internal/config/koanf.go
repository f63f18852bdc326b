// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/skyrank/internal/bookings"
	"github.com/tomtom215/skyrank/internal/database"
	"github.com/tomtom215/skyrank/internal/recommend"
	"github.com/tomtom215/skyrank/internal/recommend/profile"
	"github.com/tomtom215/skyrank/internal/recommend/training"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/skyrank/config.yaml",
	"/etc/skyrank/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotEnvFile is loaded into the process environment before the env layer.
// Variables already set take precedence over the file.
const DotEnvFile = ".env"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	profileDefaults := profile.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			Port:            3860,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		Database: database.Config{
			Path:      "/data/skyrank.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Bookings: bookings.DefaultConfig(),
		Artifacts: ArtifactsConfig{
			Backend: ArtifactBackendDuckDB,
			Dir:     "/data/artifacts",
		},
		Ranking: *recommend.DefaultConfig(),
		Training: TrainingConfig{
			Enabled:   true,
			Interval:  24 * time.Hour,
			OnStartup: false,
			Pipeline:  training.DefaultConfig(),
		},
		Profiles: ProfilesConfig{
			Lookback:      profileDefaults.Lookback,
			MaxBookings:   profileDefaults.MaxBookings,
			CacheTTL:      profileDefaults.CacheTTL,
			Cache:         ProfileCacheMemory,
			MemoryEntries: 10000,
			Redis: profile.RedisConfig{
				Addr:      "127.0.0.1:6379",
				KeyPrefix: "skyrank:profile:",
			},
			RefreshInterval:    time.Hour,
			RefreshWindow:      24 * time.Hour,
			RefreshConcurrency: 4,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			MaxBodyBytes:      4 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in defaults
//  2. Config File: optional YAML config file (if exists)
//  3. Environment Variables: override any mapped setting
func LoadWithKoanf() (*Config, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads path into the environment when it exists.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Booking history source
	"bookings_backend":                    "bookings.backend",
	"bookings_dsn":                        "bookings.dsn",
	"bookings_max_open_conns":             "bookings.max_open_conns",
	"bookings_query_timeout":              "bookings.query_timeout",
	"bookings_breaker_enabled":            "bookings.breaker.enabled",
	"bookings_breaker_failures":           "bookings.breaker.consecutive_failures",
	"bookings_breaker_timeout":            "bookings.breaker.timeout",
	"bookings_breaker_interval":           "bookings.breaker.interval",
	"bookings_breaker_half_open_requests": "bookings.breaker.half_open_requests",

	// Artifact store
	"artifacts_backend": "artifacts.backend",
	"artifacts_dir":     "artifacts.dir",

	// Ranking
	"ranking_min_bookings":             "ranking.min_bookings",
	"ranking_default_k":                "ranking.default_k",
	"ranking_max_k":                    "ranking.max_k",
	"ranking_max_offers":               "ranking.max_offers",
	"ranking_cold_start_score":         "ranking.cold_start_score",
	"ranking_failure_score":            "ranking.failure_score",
	"ranking_artifact_refresh":         "ranking.artifact_refresh",
	"ranking_train_on_missing_model":   "ranking.train_on_missing_model",
	"ranking_on_demand_train_interval": "ranking.on_demand_train_interval",
	"ranking_weight_base":              "ranking.weights.base",
	"ranking_weight_airline":           "ranking.weights.airline",
	"ranking_weight_price":             "ranking.weights.price",
	"ranking_weight_duration":          "ranking.weights.duration",
	"ranking_weight_time":              "ranking.weights.time",
	"ranking_weight_day_of_week":       "ranking.weights.day_of_week",
	"ranking_weight_month":             "ranking.weights.month",
	"ranking_weight_price_adjust":      "ranking.weights.price_adjust",
	"ranking_weight_direct_bonus":      "ranking.weights.direct_bonus",

	// Training
	"training_enabled":         "training.enabled",
	"training_interval":        "training.interval",
	"training_on_startup":      "training.on_startup",
	"training_strategy":        "training.pipeline.strategy",
	"training_lookback":        "training.pipeline.lookback",
	"training_min_samples":     "training.pipeline.min_samples",
	"training_unknown_policy":  "training.pipeline.unknown_policy",
	"training_test_fraction":   "training.pipeline.test_fraction",
	"training_cross_validate":  "training.pipeline.cross_validate",
	"training_eval_folds":      "training.pipeline.eval_folds",
	"training_neighbors":       "training.pipeline.neighbors",
	"training_timeout":         "training.pipeline.timeout",
	"training_keep_artifacts":  "training.pipeline.keep_artifacts",
	"training_forest_trees":    "training.pipeline.forest.trees",
	"training_forest_depth":    "training.pipeline.forest.max_depth",
	"training_forest_seed":     "training.pipeline.forest.seed",
	"training_forest_workers":  "training.pipeline.forest.workers",
	"training_forest_features": "training.pipeline.forest.max_features",

	// Profiles
	"profiles_lookback":            "profiles.lookback",
	"profiles_max_bookings":        "profiles.max_bookings",
	"profiles_cache_ttl":           "profiles.cache_ttl",
	"profiles_cache":               "profiles.cache",
	"profiles_memory_entries":      "profiles.memory_entries",
	"profiles_refresh_interval":    "profiles.refresh_interval",
	"profiles_refresh_window":      "profiles.refresh_window",
	"profiles_refresh_concurrency": "profiles.refresh_concurrency",
	"redis_addr":                   "profiles.redis.addr",
	"redis_password":               "profiles.redis.password",
	"redis_db":                     "profiles.redis.db",
	"redis_key_prefix":             "profiles.redis.key_prefix",

	// Security
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"max_body_bytes":      "security.max_body_bytes",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - TRAINING_STRATEGY -> training.pipeline.strategy
//   - REDIS_ADDR -> profiles.redis.addr
//
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
