// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/skyrank/internal/recommend/storage"
	"github.com/tomtom215/skyrank/internal/recommend/training"
)

// Trainer runs one training job. Implemented by *training.Pipeline.
type Trainer interface {
	Run(ctx context.Context) (*storage.Artifact, error)
}

// ModelInvalidator is told when a new artifact became active.
// Implemented by *recommend.Engine.
type ModelInvalidator interface {
	InvalidateModel()
}

// TrainingSchedulerConfig holds configuration for the training scheduler.
type TrainingSchedulerConfig struct {
	// OnStartup runs a training job as soon as the service starts.
	OnStartup bool

	// Interval between scheduled runs.
	// Default: 24h
	Interval time.Duration

	// Timeout bounds a single run.
	// Default: 30m
	Timeout time.Duration
}

// TrainingSchedulerService retrains the ranking model periodically.
type TrainingSchedulerService struct {
	trainer Trainer
	models  ModelInvalidator
	config  TrainingSchedulerConfig
	logger  zerolog.Logger
}

// NewTrainingSchedulerService creates the scheduler. models may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewTrainingSchedulerService(trainer Trainer, models ModelInvalidator, cfg TrainingSchedulerConfig, logger zerolog.Logger) *TrainingSchedulerService {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &TrainingSchedulerService{
		trainer: trainer,
		models:  models,
		config:  cfg,
		logger:  logger.With().Str("service", "training-scheduler").Logger(),
	}
}

// Serve implements suture.Service.
func (s *TrainingSchedulerService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("on_startup", s.config.OnStartup).
		Dur("interval", s.config.Interval).
		Msg("training scheduler starting")

	if s.config.OnStartup {
		s.runOnce(ctx, "startup")
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("training scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx, "schedule")
		}
	}
}

// runOnce trains and logs the outcome. It reports whether a new artifact
// became active.
func (s *TrainingSchedulerService) runOnce(ctx context.Context, trigger string) bool {
	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	artifact, err := s.trainer.Run(runCtx)
	switch {
	case err == nil:
	case errors.Is(err, training.ErrInsufficientTrainingData):
		// Expected on a fresh install; the previous artifact stays active.
		s.logger.Info().Err(err).Str("trigger", trigger).Msg("training skipped")
		return false
	case errors.Is(err, training.ErrTrainingInProgress):
		s.logger.Debug().Str("trigger", trigger).Msg("training already running, skipped")
		return false
	case ctx.Err() != nil:
		return false
	default:
		s.logger.Warn().Err(err).Str("trigger", trigger).Msg("scheduled training failed")
		return false
	}

	if s.models != nil {
		s.models.InvalidateModel()
	}
	s.logger.Info().
		Str("trigger", trigger).
		Str("artifact_id", artifact.ID).
		Int("version", artifact.Version).
		Int("samples", artifact.SampleSize).
		Dur("duration", time.Since(start)).
		Msg("training complete")
	return true
}

// String implements fmt.Stringer.
func (s *TrainingSchedulerService) String() string {
	return "training-scheduler"
}
