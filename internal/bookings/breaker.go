// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/skyrank/internal/metrics"
	"github.com/tomtom215/skyrank/internal/models"
)

// Breaker wraps a Source with a circuit breaker.
//
// The breaker uses real time for its open and reset windows; tests drive
// it through failures rather than mocking time.
type Breaker struct {
	source Source
	cb     *gobreaker.CircuitBreaker[any]
	name   string
	logger zerolog.Logger
}

var _ Source = (*Breaker)(nil)

// NewBreaker wraps source. name labels logs and the state gauge.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBreaker(source Source, name string, cfg BreakerConfig, logger zerolog.Logger) *Breaker {
	b := &Breaker{
		source: source,
		name:   name,
		logger: logger.With().Str("component", "bookings").Str("breaker", name).Logger(),
	}
	metrics.SetCircuitState(name, stateToInt(gobreaker.StateClosed))

	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
			if trip {
				b.logger.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("Opening booking source circuit")
			}
			return trip
		},
		// A caller giving up is not a backend failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("Booking source circuit state transition")
			metrics.SetCircuitState(name, stateToInt(to))
		},
	})
	return b
}

// State returns the current circuit state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// run executes fn through the breaker and casts its result.
func run[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	result, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("booking source %s unavailable: %w", b.name, err)
		}
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// TravelerIDsByEmail implements Source.
func (b *Breaker) TravelerIDsByEmail(ctx context.Context, email string) ([]string, error) {
	return run(b, func() ([]string, error) {
		return b.source.TravelerIDsByEmail(ctx, email)
	})
}

// ConfirmedBookings implements Source.
func (b *Breaker) ConfirmedBookings(ctx context.Context, travelerIDs []string, since time.Time, limit int) ([]models.Booking, error) {
	return run(b, func() ([]models.Booking, error) {
		return b.source.ConfirmedBookings(ctx, travelerIDs, since, limit)
	})
}

// AllConfirmedBookings implements Source.
func (b *Breaker) AllConfirmedBookings(ctx context.Context, since time.Time) ([]models.Booking, error) {
	return run(b, func() ([]models.Booking, error) {
		return b.source.AllConfirmedBookings(ctx, since)
	})
}

// RecentTravelerIDs implements Source.
func (b *Breaker) RecentTravelerIDs(ctx context.Context, since time.Time) ([]string, error) {
	return run(b, func() ([]string, error) {
		return b.source.RecentTravelerIDs(ctx, since)
	})
}

// stateToInt converts a circuit state to its gauge value.
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
