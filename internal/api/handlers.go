// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/skyrank/internal/recommend"
	"github.com/tomtom215/skyrank/internal/recommend/profile"
	"github.com/tomtom215/skyrank/internal/recommend/storage"
	"github.com/tomtom215/skyrank/internal/recommend/training"
)

// Ranker ranks offers. Implemented by *recommend.Engine.
type Ranker interface {
	Rank(ctx context.Context, req recommend.RankRequest) (*recommend.RankResponse, error)
	InvalidateModel()
	Stats() recommend.Stats
}

// Trainer runs training jobs. Implemented by *training.Pipeline.
type Trainer interface {
	Run(ctx context.Context) (*storage.Artifact, error)
	Status() training.Status
}

// ProfileBuilder builds traveler profiles. Implemented by *profile.Builder.
type ProfileBuilder interface {
	Build(ctx context.Context, subject profile.Subject) (*profile.TravelerProfile, error)
}

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

// Dependencies are the services behind the handlers. Trainer may be nil,
// in which case training endpoints answer 503.
type Dependencies struct {
	Ranker   Ranker
	Trainer  Trainer
	Models   storage.ArtifactStore
	Profiles ProfileBuilder

	// Checks are run by the readiness probe, keyed by dependency name.
	Checks map[string]CheckFunc
}

// Options tune handler behavior.
type Options struct {
	// TrainTimeout bounds training runs started over HTTP.
	// Default: 10m
	TrainTimeout time.Duration

	// CheckTimeout bounds each readiness check.
	// Default: 2s
	CheckTimeout time.Duration

	// MaxBodyBytes caps request bodies.
	// Default: 4 MiB
	MaxBodyBytes int64
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_rank.go: offer ranking
//   - handlers_training.go: training trigger and status
//   - handlers_models.go: artifact history and activation
//   - handlers_profiles.go: traveler profiles
//   - handlers_health.go: liveness and readiness
type Handler struct {
	ranker   Ranker
	trainer  Trainer
	models   storage.ArtifactStore
	profiles ProfileBuilder
	checks   map[string]CheckFunc

	opts      Options
	logger    zerolog.Logger
	startTime time.Time

	// Background training runs started by TrainingRun
	runs sync.WaitGroup
}

// NewHandler creates the API handler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(deps Dependencies, opts Options, logger zerolog.Logger) *Handler {
	if opts.TrainTimeout <= 0 {
		opts.TrainTimeout = 10 * time.Minute
	}
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 2 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 4 << 20
	}
	return &Handler{
		ranker:    deps.Ranker,
		trainer:   deps.Trainer,
		models:    deps.Models,
		profiles:  deps.Profiles,
		checks:    deps.Checks,
		opts:      opts,
		logger:    logger.With().Str("component", "api").Logger(),
		startTime: time.Now(),
	}
}

// Wait blocks until training runs started over HTTP have finished.
func (h *Handler) Wait() {
	h.runs.Wait()
}
