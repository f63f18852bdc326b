// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package training

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/skyrank/internal/metrics"
	"github.com/tomtom215/skyrank/internal/models"
	"github.com/tomtom215/skyrank/internal/recommend/model"
	"github.com/tomtom215/skyrank/internal/recommend/storage"
)

var (
	// ErrInsufficientTrainingData is returned when fewer confirmed bookings
	// than the configured minimum are available.
	ErrInsufficientTrainingData = errors.New("insufficient training data")

	// ErrTrainingInProgress is returned when a run is already executing.
	ErrTrainingInProgress = errors.New("training already in progress")
)

// BookingSource loads the training corpus.
type BookingSource interface {
	// AllConfirmedBookings returns every confirmed booking created at or
	// after since.
	AllConfirmedBookings(ctx context.Context, since time.Time) ([]models.Booking, error)
}

// Config controls a training run.
type Config struct {
	// Strategy selects the estimator.
	// Default: classifier.
	Strategy model.Kind `koanf:"strategy" validate:"oneof=knn classifier regressor"`

	// Lookback bounds the booking history used for training.
	// Default: 8760h (365 days).
	Lookback time.Duration `koanf:"lookback"`

	// MinSamples is the smallest corpus that may be trained on.
	// Default: 10.
	MinSamples int `koanf:"min_samples" validate:"min=1"`

	// UnknownPolicy is stored with the encoder and decides where unseen
	// categories land at scoring time.
	// Default: unknown_bucket.
	UnknownPolicy model.UnknownPolicy `koanf:"unknown_policy" validate:"oneof=unknown_bucket first_category"`

	// TestFraction is the hold-out share when not cross-validating. Zero
	// means 0.25, or 0.3 for the regressor.
	TestFraction float64 `koanf:"test_fraction" validate:"min=0,max=0.9"`

	// CrossValidate enables k-fold evaluation with EvalFolds folds.
	// Default: false.
	CrossValidate bool `koanf:"cross_validate"`

	// EvalFolds is the fold count for cross validation.
	// Default: 5.
	EvalFolds int `koanf:"eval_folds" validate:"min=2"`

	// Neighbors is the KNN neighborhood size, capped at the sample count.
	// Default: 5.
	Neighbors int `koanf:"neighbors" validate:"min=1"`

	// Forest holds random forest hyperparameters.
	Forest model.ForestConfig `koanf:"forest"`

	// Timeout bounds one run.
	// Default: 10m.
	Timeout time.Duration `koanf:"timeout"`

	// KeepArtifacts is how many artifacts to retain after a successful run.
	// Zero disables pruning.
	// Default: 10.
	KeepArtifacts int `koanf:"keep_artifacts" validate:"min=0"`
}

// DefaultConfig returns the default training configuration.
func DefaultConfig() Config {
	return Config{
		Strategy:      model.KindClassifier,
		Lookback:      365 * 24 * time.Hour,
		MinSamples:    10,
		UnknownPolicy: model.UnknownBucket,
		EvalFolds:     5,
		Neighbors:     model.DefaultNeighbors,
		Forest:        model.DefaultForestConfig(),
		Timeout:       10 * time.Minute,
		KeepArtifacts: 10,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Strategy.Valid() {
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	if !c.UnknownPolicy.Valid() {
		return fmt.Errorf("unknown unknown_policy %q", c.UnknownPolicy)
	}
	if c.MinSamples < 1 {
		return fmt.Errorf("min_samples must be at least 1")
	}
	if c.Lookback <= 0 {
		return fmt.Errorf("lookback must be positive")
	}
	if c.TestFraction < 0 || c.TestFraction >= 1 {
		return fmt.Errorf("test_fraction must be in [0, 1)")
	}
	if c.CrossValidate && c.EvalFolds < 2 {
		return fmt.Errorf("eval_folds must be at least 2")
	}
	if err := c.Forest.Validate(); err != nil {
		return fmt.Errorf("forest: %w", err)
	}
	return nil
}

func (c *Config) testFraction() float64 {
	if c.TestFraction > 0 {
		return c.TestFraction
	}
	if c.Strategy == model.KindRegressor {
		return 0.3
	}
	return 0.25
}

// Status reports the pipeline's current and last run.
type Status struct {
	Running           bool      `json:"running"`
	Strategy          string    `json:"strategy"`
	LastStartedAt     time.Time `json:"last_started_at,omitempty"`
	LastCompletedAt   time.Time `json:"last_completed_at,omitempty"`
	LastDurationMS    int64     `json:"last_duration_ms"`
	LastError         string    `json:"last_error,omitempty"`
	LastArtifactID    string    `json:"last_artifact_id,omitempty"`
	LastVersion       int       `json:"last_version,omitempty"`
	LastSampleSize    int       `json:"last_sample_size"`
	RunsTotal         int64     `json:"runs_total"`
	FailedRunsTotal   int64     `json:"failed_runs_total"`
	LastSuccessfulRun time.Time `json:"last_successful_run,omitempty"`
}

// Pipeline trains and publishes ranking artifacts.
type Pipeline struct {
	source BookingSource
	store  storage.ArtifactStore
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	runMu sync.Mutex

	statusMu sync.RWMutex
	status   Status

	runs     atomic.Int64
	failures atomic.Int64
}

// NewPipeline creates a training pipeline.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPipeline(source BookingSource, store storage.ArtifactStore, cfg Config, logger zerolog.Logger) (*Pipeline, error) {
	if source == nil {
		return nil, fmt.Errorf("booking source is required")
	}
	if store == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training config: %w", err)
	}
	return &Pipeline{
		source: source,
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "training").Logger(),
		now:    time.Now,
		status: Status{Strategy: string(cfg.Strategy)},
	}, nil
}

// Run executes one training run. On success the new artifact is persisted
// and active. Returns ErrTrainingInProgress if a run is already executing.
func (p *Pipeline) Run(ctx context.Context) (*storage.Artifact, error) {
	if !p.runMu.TryLock() {
		return nil, ErrTrainingInProgress
	}
	defer p.runMu.Unlock()

	start := p.now()
	p.runs.Add(1)
	p.updateStatus(func(s *Status) {
		s.Running = true
		s.LastStartedAt = start
		s.LastError = ""
	})

	runCtx := ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	p.logger.Info().Str("strategy", string(p.cfg.Strategy)).Msg("starting model training")

	artifact, samples, err := p.run(runCtx, start)
	duration := p.now().Sub(start)

	if err != nil {
		p.failures.Add(1)
		result := "error"
		if errors.Is(err, ErrInsufficientTrainingData) {
			result = "insufficient_data"
		}
		metrics.RecordTrainingRun(string(p.cfg.Strategy), result, duration, samples)
		p.updateStatus(func(s *Status) {
			s.Running = false
			s.LastCompletedAt = p.now()
			s.LastDurationMS = duration.Milliseconds()
			s.LastError = err.Error()
			s.LastSampleSize = samples
		})
		p.logger.Error().Err(err).Int("samples", samples).Msg("model training failed")
		return nil, err
	}

	metrics.RecordTrainingRun(string(p.cfg.Strategy), "success", duration, samples)
	metrics.SetActiveArtifactVersion(artifact.Version)
	p.updateStatus(func(s *Status) {
		s.Running = false
		s.LastCompletedAt = p.now()
		s.LastSuccessfulRun = s.LastCompletedAt
		s.LastDurationMS = duration.Milliseconds()
		s.LastArtifactID = artifact.ID
		s.LastVersion = artifact.Version
		s.LastSampleSize = samples
	})

	p.logger.Info().
		Str("artifact_id", artifact.ID).
		Int("version", artifact.Version).
		Int("samples", samples).
		Float64("accuracy", artifact.Metrics["accuracy"]).
		Float64("ndcg", artifact.Metrics["ndcg"]).
		Int64("duration_ms", duration.Milliseconds()).
		Msg("model training complete")

	return artifact, nil
}

func (p *Pipeline) run(ctx context.Context, start time.Time) (*storage.Artifact, int, error) {
	since := start.Add(-p.cfg.Lookback)
	bookings, err := p.source.AllConfirmedBookings(ctx, since)
	if err != nil {
		return nil, 0, fmt.Errorf("load training bookings: %w", err)
	}
	samples := len(bookings)
	if samples < p.cfg.MinSamples {
		return nil, samples, fmt.Errorf("%w: %d confirmed bookings, need %d", ErrInsufficientTrainingData, samples, p.cfg.MinSamples)
	}

	ds, err := BuildDataset(RowsFromBookings(bookings), p.cfg.UnknownPolicy)
	if err != nil {
		return nil, samples, fmt.Errorf("build dataset: %w", err)
	}
	p.logger.Debug().
		Int("rows", len(ds.Rows)).
		Int("features", ds.Featurizer.Width()).
		Int("price_bands", ds.NumBands).
		Msg("built training dataset")

	all := make([]int, len(ds.Rows))
	for i := range all {
		all[i] = i
	}
	fit := p.fitter(ds)
	est, err := fit(ctx, all)
	if err != nil {
		return nil, samples, fmt.Errorf("fit %s: %w", p.cfg.Strategy, err)
	}

	ev := Evaluator{Kind: p.cfg.Strategy, TestFraction: p.cfg.testFraction(), Seed: p.cfg.Forest.Seed}
	if p.cfg.CrossValidate {
		ev.Folds = p.cfg.EvalFolds
	}
	scores, err := ev.Evaluate(ctx, ds, fit)
	if err != nil {
		return nil, samples, fmt.Errorf("evaluate: %w", err)
	}

	artifact, err := p.pack(ds, est, scores, start)
	if err != nil {
		return nil, samples, err
	}
	if err := ctx.Err(); err != nil {
		return nil, samples, fmt.Errorf("training cancelled: %w", err)
	}
	if err := p.store.SaveNew(ctx, artifact); err != nil {
		return nil, samples, fmt.Errorf("save artifact: %w", err)
	}

	if p.cfg.KeepArtifacts > 0 {
		if err := p.store.Prune(ctx, p.cfg.KeepArtifacts); err != nil {
			p.logger.Warn().Err(err).Msg("failed to prune old artifacts")
		}
	}
	return artifact, samples, nil
}

// fitter returns a function fitting the configured strategy on a subset.
func (p *Pipeline) fitter(ds *Dataset) fitFunc {
	return func(ctx context.Context, idx []int) (model.Estimator, error) {
		x := make([][]float64, len(idx))
		bands := make([]int, len(idx))
		rel := make([]float64, len(idx))
		for j, i := range idx {
			x[j] = ds.X[i]
			bands[j] = ds.Bands[i]
			rel[j] = ds.Relevance[i]
		}

		switch p.cfg.Strategy {
		case model.KindKNN:
			return model.FitKNN(x, bands, p.cfg.Neighbors)
		case model.KindClassifier:
			return model.FitForestClassifier(ctx, x, bands, ds.NumBands, p.cfg.Forest)
		case model.KindRegressor:
			return model.FitForestRegressor(ctx, x, rel, p.cfg.Forest)
		default:
			return nil, fmt.Errorf("unknown strategy %q", p.cfg.Strategy)
		}
	}
}

func (p *Pipeline) pack(ds *Dataset, est model.Estimator, scores map[string]float64, start time.Time) (*storage.Artifact, error) {
	encBlob, err := model.Marshal(ds.Featurizer.Encoder)
	if err != nil {
		return nil, fmt.Errorf("serialize encoder: %w", err)
	}
	scalerBlob, err := model.Marshal(ds.Featurizer.Scaler)
	if err != nil {
		return nil, fmt.Errorf("serialize scaler: %w", err)
	}
	modelBlob, err := model.Marshal(est)
	if err != nil {
		return nil, fmt.Errorf("serialize model: %w", err)
	}

	return &storage.Artifact{
		Metadata: storage.Metadata{
			Strategy:           string(p.cfg.Strategy),
			UnknownPolicy:      string(p.cfg.UnknownPolicy),
			TrainedAt:          start.UTC(),
			SampleSize:         len(ds.Rows),
			FeatureCount:       ds.Featurizer.Width(),
			Metrics:            scores,
			TrainingDurationMS: p.now().Sub(start).Milliseconds(),
		},
		Encoder: encBlob,
		Scaler:  scalerBlob,
		Model:   modelBlob,
	}, nil
}

// Status returns a snapshot of the pipeline state.
func (p *Pipeline) Status() Status {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()

	s := p.status
	s.RunsTotal = p.runs.Load()
	s.FailedRunsTotal = p.failures.Load()
	return s
}

// Strategy returns the configured estimator kind.
func (p *Pipeline) Strategy() model.Kind {
	return p.cfg.Strategy
}

func (p *Pipeline) updateStatus(fn func(*Status)) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	fn(&p.status)
}
