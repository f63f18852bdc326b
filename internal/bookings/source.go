// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/skyrank/internal/models"
)

// Backends.
const (
	BackendDuckDB   = "duckdb"
	BackendPostgres = "postgres"
)

// Source is everything the ranking service reads from booking history.
type Source interface {
	// TravelerIDsByEmail returns the ids of every account registered with email.
	TravelerIDsByEmail(ctx context.Context, email string) ([]string, error)

	// ConfirmedBookings returns confirmed bookings of the given travelers
	// created at or after since, newest first, at most limit rows.
	ConfirmedBookings(ctx context.Context, travelerIDs []string, since time.Time, limit int) ([]models.Booking, error)

	// AllConfirmedBookings returns every confirmed booking created at or
	// after since.
	AllConfirmedBookings(ctx context.Context, since time.Time) ([]models.Booking, error)

	// RecentTravelerIDs returns travelers with a confirmed booking created
	// at or after since.
	RecentTravelerIDs(ctx context.Context, since time.Time) ([]string, error)
}

// Config selects and tunes the booking source.
type Config struct {
	// Backend is "duckdb" (local mirror) or "postgres".
	// Default: duckdb.
	Backend string `koanf:"backend" validate:"oneof=duckdb postgres"`

	// DSN is the PostgreSQL connection string for the postgres backend.
	DSN string `koanf:"dsn"`

	// MaxOpenConns caps the PostgreSQL pool.
	// Default: 10.
	MaxOpenConns int `koanf:"max_open_conns" validate:"gte=1"`

	// QueryTimeout bounds each query.
	// Default: 10s.
	QueryTimeout time.Duration `koanf:"query_timeout"`

	// Breaker configures the circuit breaker around the source.
	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// Enabled wraps the source in a circuit breaker.
	// Default: true.
	Enabled bool `koanf:"enabled"`

	// ConsecutiveFailures opens the circuit.
	// Default: 5.
	ConsecutiveFailures uint32 `koanf:"consecutive_failures" validate:"gte=1"`

	// Timeout is how long the circuit stays open before a trial call.
	// Default: 30s.
	Timeout time.Duration `koanf:"timeout"`

	// Interval resets failure counts while closed.
	// Default: 1m.
	Interval time.Duration `koanf:"interval"`

	// HalfOpenRequests is the number of trial calls allowed half-open.
	// Default: 2.
	HalfOpenRequests uint32 `koanf:"half_open_requests" validate:"gte=1"`
}

// DefaultConfig returns the default booking source configuration.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendDuckDB,
		MaxOpenConns: 10,
		QueryTimeout: 10 * time.Second,
		Breaker: BreakerConfig{
			Enabled:             true,
			ConsecutiveFailures: 5,
			Timeout:             30 * time.Second,
			Interval:            time.Minute,
			HalfOpenRequests:    2,
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendDuckDB:
	case BackendPostgres:
		if c.DSN == "" {
			return fmt.Errorf("bookings.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("bookings.backend must be duckdb or postgres, got %q", c.Backend)
	}
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("bookings.max_open_conns must be positive, got %d", c.MaxOpenConns)
	}
	if c.Breaker.Enabled && (c.Breaker.ConsecutiveFailures == 0 || c.Breaker.Timeout <= 0) {
		return fmt.Errorf("bookings.breaker requires consecutive_failures and timeout")
	}
	return nil
}
