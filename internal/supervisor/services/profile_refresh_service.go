// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/skyrank/internal/metrics"
	"github.com/tomtom215/skyrank/internal/recommend/profile"
)

// RecentTravelers lists travelers with confirmed bookings created since a
// point in time. Implemented by bookings.Source.
type RecentTravelers interface {
	RecentTravelerIDs(ctx context.Context, since time.Time) ([]string, error)
}

// ProfileRefresher rebuilds one traveler's profile and stores it in the
// cache. Implemented by *profile.Builder.
type ProfileRefresher interface {
	Refresh(ctx context.Context, travelerID string) (*profile.TravelerProfile, error)
}

// ProfileRefreshConfig holds configuration for the profile refresh.
type ProfileRefreshConfig struct {
	// Interval between refresh passes.
	// Default: 1h
	Interval time.Duration

	// Window selects travelers whose bookings were created within it.
	// Default: 24h
	Window time.Duration

	// Concurrency bounds parallel rebuilds.
	// Default: 4
	Concurrency int
}

// RefreshResult summarizes one refresh pass.
type RefreshResult struct {
	Travelers int
	Refreshed int
	Failed    int
}

// ProfileRefreshService keeps cached profiles of recently active travelers
// fresh, so ranking right after a booking sees it without waiting for the
// cache TTL.
type ProfileRefreshService struct {
	travelers RecentTravelers
	profiles  ProfileRefresher
	config    ProfileRefreshConfig
	logger    zerolog.Logger
}

// NewProfileRefreshService creates the service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewProfileRefreshService(travelers RecentTravelers, profiles ProfileRefresher, cfg ProfileRefreshConfig, logger zerolog.Logger) *ProfileRefreshService {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &ProfileRefreshService{
		travelers: travelers,
		profiles:  profiles,
		config:    cfg,
		logger:    logger.With().Str("service", "profile-refresh").Logger(),
	}
}

// Serve implements suture.Service. The first pass runs one interval after
// start.
func (s *ProfileRefreshService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RefreshOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("profile refresh pass failed")
			}
		}
	}
}

// RefreshOnce rebuilds the profiles of all recently active travelers.
// A failure for one traveler does not stop the others; the returned error
// only reports failure to list travelers.
func (s *ProfileRefreshService) RefreshOnce(ctx context.Context) (RefreshResult, error) {
	start := time.Now()
	ids, err := s.travelers.RecentTravelerIDs(ctx, start.Add(-s.config.Window))
	if err != nil {
		return RefreshResult{}, err
	}

	var refreshed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			_, err := s.profiles.Refresh(gctx, id)
			metrics.RecordProfileRefresh(err)
			if err != nil {
				failed.Add(1)
				s.logger.Debug().Err(err).Str("traveler_id", id).Msg("profile refresh failed")
				return nil
			}
			refreshed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	result := RefreshResult{
		Travelers: len(ids),
		Refreshed: int(refreshed.Load()),
		Failed:    int(failed.Load()),
	}
	s.logger.Info().
		Int("travelers", result.Travelers).
		Int("refreshed", result.Refreshed).
		Int("failed", result.Failed).
		Dur("duration", time.Since(start)).
		Msg("profile refresh pass complete")
	return result, nil
}

// String implements fmt.Stringer.
func (s *ProfileRefreshService) String() string {
	return "profile-refresh"
}
