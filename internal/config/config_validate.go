// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/skyrank/internal/logging"
	"github.com/tomtom215/skyrank/internal/validation"
)

// Validate checks that the configuration is complete and consistent.
// Struct tags are checked first, then cross-field rules per section.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if err := c.Bookings.Validate(); err != nil {
		return err
	}

	if err := c.validateArtifacts(); err != nil {
		return err
	}

	if err := c.Ranking.Validate(); err != nil {
		return fmt.Errorf("ranking: %w", err)
	}

	if err := c.validateTraining(); err != nil {
		return err
	}

	if err := c.validateProfiles(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateArtifacts requires a directory for the on-disk backends.
func (c *Config) validateArtifacts() error {
	if c.Artifacts.Backend != ArtifactBackendDuckDB && c.Artifacts.Dir == "" {
		return fmt.Errorf("ARTIFACTS_DIR is required for the %s artifact backend", c.Artifacts.Backend)
	}
	return nil
}

func (c *Config) validateTraining() error {
	if err := c.Training.Pipeline.Validate(); err != nil {
		return fmt.Errorf("training: %w", err)
	}
	if c.Training.Enabled && c.Training.Interval < time.Minute {
		return fmt.Errorf("TRAINING_INTERVAL must be at least 1m, got %v", c.Training.Interval)
	}
	return nil
}

func (c *Config) validateProfiles() error {
	if c.Profiles.Lookback <= 0 {
		return fmt.Errorf("PROFILES_LOOKBACK must be positive")
	}
	if c.Profiles.Cache == ProfileCacheRedis && c.Profiles.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when PROFILES_CACHE=redis")
	}
	if c.Profiles.RefreshInterval < 0 {
		return fmt.Errorf("PROFILES_REFRESH_INTERVAL must not be negative")
	}
	if c.Profiles.RefreshInterval > 0 && c.Profiles.RefreshWindow <= 0 {
		return fmt.Errorf("PROFILES_REFRESH_WINDOW must be positive when refresh is enabled")
	}
	return nil
}

// Rate limit constants
const (
	minRateLimitRequests = 1           // Minimum 1 request allowed
	maxRateLimitRequests = 100000      // Maximum 100K requests per window
	minRateLimitWindow   = time.Second // Minimum 1 second window
	maxRateLimitWindow   = time.Hour   // Maximum 1 hour window
)

// validateSecurity checks rate limit bounds and rejects wildcard CORS in production.
func (c *Config) validateSecurity() error {
	if c.IsProduction() && c.hasWildcardCORS() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production; " +
			"set specific origins, e.g. CORS_ORIGINS=https://app.example.com")
	}

	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS reports whether the CORS setting deserves a startup warning.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS() && !c.IsDevelopment()
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// LogConfig converts the logging section to a logging.Config.
func (c *Config) LogConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.Logging.Level
	if c.Logging.Format != "" {
		lc.Format = c.Logging.Format
	}
	lc.Caller = c.Logging.Caller
	return lc
}
