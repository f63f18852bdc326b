// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/skyrank/internal/recommend/model"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 3860 {
		t.Errorf("Server.Port = %d, want 3860", cfg.Server.Port)
	}
	if cfg.Database.Path != "/data/skyrank.duckdb" {
		t.Errorf("Database.Path = %q, want /data/skyrank.duckdb", cfg.Database.Path)
	}
	if cfg.Bookings.Backend != "duckdb" {
		t.Errorf("Bookings.Backend = %q, want duckdb", cfg.Bookings.Backend)
	}
	if cfg.Artifacts.Backend != ArtifactBackendDuckDB {
		t.Errorf("Artifacts.Backend = %q, want duckdb", cfg.Artifacts.Backend)
	}
	if cfg.Ranking.DefaultK != 3 {
		t.Errorf("Ranking.DefaultK = %d, want 3", cfg.Ranking.DefaultK)
	}
	if cfg.Ranking.MinBookings != 3 {
		t.Errorf("Ranking.MinBookings = %d, want 3", cfg.Ranking.MinBookings)
	}
	if cfg.Training.Interval != 24*time.Hour {
		t.Errorf("Training.Interval = %v, want 24h", cfg.Training.Interval)
	}
	if cfg.Training.Pipeline.Strategy != model.KindClassifier {
		t.Errorf("Training.Pipeline.Strategy = %q, want classifier", cfg.Training.Pipeline.Strategy)
	}
	if cfg.Profiles.Cache != ProfileCacheMemory {
		t.Errorf("Profiles.Cache = %q, want memory", cfg.Profiles.Cache)
	}
	if len(cfg.Security.CORSOrigins) != 1 || cfg.Security.CORSOrigins[0] != "*" {
		t.Errorf("Security.CORSOrigins = %v, want [*]", cfg.Security.CORSOrigins)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

// TestEnvTransformFunc verifies environment variable name transformations
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"HTTP_PORT", "server.port"},
		{"DUCKDB_PATH", "database.path"},
		{"BOOKINGS_BREAKER_FAILURES", "bookings.breaker.consecutive_failures"},
		{"ARTIFACTS_BACKEND", "artifacts.backend"},
		{"RANKING_WEIGHT_AIRLINE", "ranking.weights.airline"},
		{"TRAINING_STRATEGY", "training.pipeline.strategy"},
		{"TRAINING_FOREST_TREES", "training.pipeline.forest.trees"},
		{"REDIS_ADDR", "profiles.redis.addr"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"log_level", "logging.level"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestEnvMappingsTargetKnownKeys(t *testing.T) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	for env, path := range envMappings {
		if !k.Exists(path) {
			t.Errorf("%s maps to unknown key %q", env, path)
		}
	}
}

func TestProcessSliceFields(t *testing.T) {
	k := koanf.New(".")
	if err := k.Set("security.cors_origins", " https://a.example.com, ,https://b.example.com "); err != nil {
		t.Fatal(err)
	}
	if err := processSliceFields(k); err != nil {
		t.Fatalf("processSliceFields() error = %v", err)
	}
	got := k.Strings("security.cors_origins")
	if len(got) != 2 || got[0] != "https://a.example.com" || got[1] != "https://b.example.com" {
		t.Errorf("cors_origins = %v", got)
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("TRAINING_STRATEGY", "knn")
	t.Setenv("TRAINING_INTERVAL", "6h")
	t.Setenv("RANKING_DEFAULT_K", "5")
	t.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("PROFILES_CACHE", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Training.Pipeline.Strategy != model.KindKNN {
		t.Errorf("Strategy = %q, want knn", cfg.Training.Pipeline.Strategy)
	}
	if cfg.Training.Interval != 6*time.Hour {
		t.Errorf("Training.Interval = %v, want 6h", cfg.Training.Interval)
	}
	if cfg.Ranking.DefaultK != 5 {
		t.Errorf("Ranking.DefaultK = %d, want 5", cfg.Ranking.DefaultK)
	}
	if len(cfg.Security.CORSOrigins) != 2 {
		t.Errorf("CORSOrigins = %v, want 2 entries", cfg.Security.CORSOrigins)
	}
	if cfg.Profiles.Redis.Addr != "redis:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Profiles.Redis.Addr)
	}
	// untouched defaults survive
	if cfg.Ranking.Weights.Airline != 0.35 {
		t.Errorf("Weights.Airline = %v, want 0.35", cfg.Ranking.Weights.Airline)
	}
}

func TestLoadWithKoanf_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skyrank.yaml")
	yaml := `
server:
  port: 4000
ranking:
  default_k: 2
  weights:
    airline: 0.5
  rules:
    - name: short-direct
      expr: offer.direct && offer.duration_hours < 3.0
      adjust: 0.05
artifacts:
  backend: badger
  dir: /tmp/artifacts
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "4001")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 4001 {
		t.Errorf("env should win over file: Port = %d, want 4001", cfg.Server.Port)
	}
	if cfg.Ranking.DefaultK != 2 {
		t.Errorf("DefaultK = %d, want 2", cfg.Ranking.DefaultK)
	}
	if cfg.Ranking.Weights.Airline != 0.5 || cfg.Ranking.Weights.Price != 0.30 {
		t.Errorf("Weights = %+v, want airline from file and price default", cfg.Ranking.Weights)
	}
	if len(cfg.Ranking.Rules) != 1 || cfg.Ranking.Rules[0].Name != "short-direct" {
		t.Errorf("Rules = %+v", cfg.Ranking.Rules)
	}
	if cfg.Artifacts.Backend != ArtifactBackendBadger {
		t.Errorf("Artifacts.Backend = %q, want badger", cfg.Artifacts.Backend)
	}
}

func TestLoadWithKoanf_InvalidFails(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("TRAINING_STRATEGY", "svm")

	if _, err := LoadWithKoanf(); err == nil {
		t.Fatal("LoadWithKoanf() should reject an unknown strategy")
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SKYRANK_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SKYRANK_TEST_DOTENV", "")
	if err := os.Unsetenv("SKYRANK_TEST_DOTENV"); err != nil {
		t.Fatal(err)
	}
	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv() error = %v", err)
	}
	if got := os.Getenv("SKYRANK_TEST_DOTENV"); got != "loaded" {
		t.Errorf("SKYRANK_TEST_DOTENV = %q, want loaded", got)
	}
}
