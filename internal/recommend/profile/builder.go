// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/skyrank/internal/models"
)

// ErrUnknownTraveler is returned when a subject resolves to no account.
var ErrUnknownTraveler = errors.New("unknown traveler")

// BookingSource is read access to booking history. Implemented by the
// DuckDB repository and the Postgres booking source.
type BookingSource interface {
	// TravelerIDsByEmail returns the ids of every account registered with email.
	TravelerIDsByEmail(ctx context.Context, email string) ([]string, error)

	// ConfirmedBookings returns confirmed bookings of the given travelers
	// created at or after since, newest first, at most limit rows.
	ConfirmedBookings(ctx context.Context, travelerIDs []string, since time.Time, limit int) ([]models.Booking, error)
}

// Subject identifies whose profile to build. Either field may be empty,
// not both.
type Subject struct {
	TravelerID string
	Email      string
}

// Config controls profile construction.
type Config struct {
	// Lookback bounds the booking history by creation time.
	// Default: 365 days.
	Lookback time.Duration

	// MaxBookings caps the number of bookings aggregated.
	// Default: 50.
	MaxBookings int

	// CacheTTL is how long a built profile stays in the cache.
	// Default: 15m.
	CacheTTL time.Duration
}

// DefaultConfig returns the default profile configuration.
func DefaultConfig() Config {
	return Config{
		Lookback:    365 * 24 * time.Hour,
		MaxBookings: 50,
		CacheTTL:    15 * time.Minute,
	}
}

// Builder builds traveler profiles. Safe for concurrent use.
type Builder struct {
	source BookingSource
	cache  Cache
	config Config
	now    func() time.Time
	logger zerolog.Logger
}

// NewBuilder creates a profile builder. cache may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBuilder(source BookingSource, cache Cache, cfg Config, logger zerolog.Logger) *Builder {
	if cfg.MaxBookings <= 0 {
		cfg.MaxBookings = DefaultConfig().MaxBookings
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultConfig().Lookback
	}
	return &Builder{
		source: source,
		cache:  cache,
		config: cfg,
		now:    time.Now,
		logger: logger.With().Str("component", "profile").Logger(),
	}
}

// Build returns the profile of subject, from cache when possible.
// Returns ErrUnknownTraveler when no account matches.
func (b *Builder) Build(ctx context.Context, subject Subject) (*TravelerProfile, error) {
	ids, err := b.resolve(ctx, subject)
	if err != nil {
		return nil, err
	}

	key := cacheKey(ids)
	if b.cache != nil {
		if p, ok := b.cache.Get(ctx, key); ok {
			return p, nil
		}
	}

	p, err := b.buildFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	if b.cache != nil {
		b.cache.Set(ctx, key, p, b.config.CacheTTL)
	}
	return p, nil
}

// Refresh rebuilds a traveler's profile bypassing the cache and stores
// the result. Used by the scheduled refresh.
func (b *Builder) Refresh(ctx context.Context, travelerID string) (*TravelerProfile, error) {
	ids := []string{travelerID}
	p, err := b.buildFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	if b.cache != nil {
		b.cache.Set(ctx, cacheKey(ids), p, b.config.CacheTTL)
	}
	return p, nil
}

func (b *Builder) buildFor(ctx context.Context, ids []string) (*TravelerProfile, error) {
	now := b.now()
	bookings, err := b.source.ConfirmedBookings(ctx, ids, now.Add(-b.config.Lookback), b.config.MaxBookings)
	if err != nil {
		return nil, fmt.Errorf("load booking history: %w", err)
	}

	p := FromBookings(ids, bookings, now)
	b.logger.Debug().
		Strs("traveler_ids", ids).
		Int("bookings", p.BookingCount).
		Float64("avg_price", p.AvgPrice).
		Msg("built traveler profile")
	return p, nil
}

// resolve collects the traveler id and every account sharing the email.
func (b *Builder) resolve(ctx context.Context, subject Subject) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	add(strings.TrimSpace(subject.TravelerID))

	if email := strings.TrimSpace(subject.Email); email != "" {
		linked, err := b.source.TravelerIDsByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("resolve email: %w", err)
		}
		for _, id := range linked {
			add(id)
		}
	}

	if len(ids) == 0 {
		return nil, ErrUnknownTraveler
	}
	return ids, nil
}

func cacheKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
