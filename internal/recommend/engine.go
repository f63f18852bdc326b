// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/skyrank/internal/logging"
	"github.com/tomtom215/skyrank/internal/metrics"
	"github.com/tomtom215/skyrank/internal/recommend/features"
	"github.com/tomtom215/skyrank/internal/recommend/model"
	"github.com/tomtom215/skyrank/internal/recommend/profile"
	"github.com/tomtom215/skyrank/internal/recommend/storage"
)

// ProfileSource builds traveler profiles. Implemented by *profile.Builder.
type ProfileSource interface {
	Build(ctx context.Context, subject profile.Subject) (*profile.TravelerProfile, error)
}

// Trainer runs a training job. Implemented by *training.Pipeline.
type Trainer interface {
	Run(ctx context.Context) (*storage.Artifact, error)
}

// activeModel is a decoded artifact ready for scoring.
type activeModel struct {
	meta       storage.Metadata
	featurizer *model.Featurizer
	estimator  model.Estimator
}

// Engine ranks offers. It is safe for concurrent use.
type Engine struct {
	config    *Config
	logger    zerolog.Logger
	store     storage.ArtifactStore
	profiles  ProfileSource
	extractor *features.Extractor
	scorer    scorer
	now       func() time.Time

	// Decoded artifact, replaced whole on activation changes
	active    atomic.Pointer[activeModel]
	checkedAt atomic.Int64
	loadMu    sync.Mutex

	// On-demand training
	trainer      Trainer
	trainLimiter *rate.Limiter
	trainWG      sync.WaitGroup

	// Counters
	requestCount atomic.Int64
	coldStarts   atomic.Int64
	unchanged    atomic.Int64
	offerErrors  atomic.Int64
}

// Stats are engine counters since start.
type Stats struct {
	Requests        int64  `json:"requests"`
	ColdStarts      int64  `json:"cold_starts"`
	Unchanged       int64  `json:"unchanged"`
	OfferErrors     int64  `json:"offer_errors"`
	ArtifactID      string `json:"artifact_id,omitempty"`
	ArtifactVersion int    `json:"artifact_version,omitempty"`
}

// NewEngine creates a ranking engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, store storage.ArtifactStore, profiles ProfileSource, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("profile source is required")
	}

	rules, err := CompileRules(cfg.Rules)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:    cfg.Clone(),
		logger:    logger.With().Str("component", "recommend").Logger(),
		store:     store,
		profiles:  profiles,
		extractor: features.NewExtractor(nil),
		scorer:    scorer{weights: cfg.Weights, rules: rules},
		now:       time.Now,
	}
	if cfg.OnDemandTrainInterval > 0 {
		e.trainLimiter = rate.NewLimiter(rate.Every(cfg.OnDemandTrainInterval), 1)
	}
	if rules.Len() > 0 {
		e.logger.Info().Int("rules", rules.Len()).Msg("compiled ranking rules")
	}
	return e, nil
}

// SetTrainer enables on-demand training when no model is available.
func (e *Engine) SetTrainer(t Trainer) {
	e.trainer = t
}

// Rank scores, sorts and flags offers for a traveler. It only returns an
// error for requests that cannot be processed at all; every other problem
// degrades to an unchanged or cold start ordering.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) Rank(ctx context.Context, req RankRequest) (*RankResponse, error) {
	start := e.now()
	e.requestCount.Add(1)

	if req.K < 0 {
		return nil, fmt.Errorf("%w: k must not be negative", ErrInvalidRequest)
	}
	if len(req.Offers) > e.config.MaxOffers {
		return nil, fmt.Errorf("%w: %d offers exceeds the limit of %d", ErrInvalidRequest, len(req.Offers), e.config.MaxOffers)
	}
	k := req.K
	if k == 0 {
		k = e.config.DefaultK
	}
	k = min(k, e.config.MaxK)

	logCtx := e.logger.With().
		Str("traveler_id", req.TravelerID).
		Int("offers", len(req.Offers))
	if id := logging.RequestIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("request_id", id)
	}
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("correlation_id", id)
	}
	logger := logCtx.Logger()

	resp := e.rank(ctx, req, k, &logger)
	resp.RequestID = logging.RequestIDFromContext(ctx)
	resp.LatencyMS = e.now().Sub(start).Milliseconds()

	metrics.RecordRank(string(resp.Reason), e.now().Sub(start), countScored(resp.Offers), resp.Failed)
	logger.Debug().
		Str("reason", string(resp.Reason)).
		Int("recommended", resp.Recommended).
		Int("failed", resp.Failed).
		Int64("latency_ms", resp.LatencyMS).
		Msg("ranked offers")
	return resp, nil
}

//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) rank(ctx context.Context, req RankRequest, k int, logger *zerolog.Logger) *RankResponse {
	if len(req.Offers) == 0 {
		return e.unchangedResponse(req, ReasonEmpty)
	}
	subject := profile.Subject{
		TravelerID: strings.TrimSpace(req.TravelerID),
		Email:      strings.TrimSpace(req.Email),
	}
	if subject.TravelerID == "" && subject.Email == "" {
		return e.unchangedResponse(req, ReasonNoTraveler)
	}

	p, err := e.profiles.Build(ctx, subject)
	if err != nil {
		if errors.Is(err, profile.ErrUnknownTraveler) {
			return e.unchangedResponse(req, ReasonUnknownTraveler)
		}
		logger.Warn().Err(err).Msg("profile unavailable, returning offers unchanged")
		return e.unchangedResponse(req, ReasonProfileUnavailable)
	}

	m, err := e.loadActive(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("model unavailable, returning offers unchanged")
		e.maybeTrain()
		resp := e.unchangedResponse(req, ReasonModelUnavailable)
		resp.BookingCount = p.BookingCount
		return resp
	}

	var resp *RankResponse
	if p.BookingCount < e.config.MinBookings {
		e.coldStarts.Add(1)
		resp = e.coldStart(req, k)
	} else {
		resp = e.personalize(req, k, m, p, logger)
	}
	resp.ArtifactID = m.meta.ID
	resp.ArtifactVersion = m.meta.Version
	resp.BookingCount = p.BookingCount
	return resp
}

//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) unchangedResponse(req RankRequest, reason Reason) *RankResponse {
	e.unchanged.Add(1)
	offers := make([]ScoredOffer, len(req.Offers))
	for i, raw := range req.Offers {
		offers[i] = ScoredOffer{Offer: raw, Index: i}
	}
	return &RankResponse{Offers: offers, Reason: reason}
}

// coldStart gives every offer the same minimal score and orders by price.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) coldStart(req RankRequest, k int) *RankResponse {
	offers := make([]ScoredOffer, len(req.Offers))
	prices := make([]float64, len(req.Offers))
	for i, raw := range req.Offers {
		rec := e.extractor.Extract(raw)
		prices[i] = rec.Price
		offers[i] = ScoredOffer{Offer: raw, Index: i, Score: e.config.ColdStartScore, Scored: true}
	}
	sort.SliceStable(offers, func(a, b int) bool {
		return prices[offers[a].Index] < prices[offers[b].Index]
	})
	n := flagTopK(offers, k)
	return &RankResponse{Offers: offers, Personalized: false, Reason: ReasonColdStart, Recommended: n}
}

//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) personalize(req RankRequest, k int, m *activeModel, p *profile.TravelerProfile, logger *zerolog.Logger) *RankResponse {
	offers := make([]ScoredOffer, len(req.Offers))
	failed := 0
	for i, raw := range req.Offers {
		offers[i] = e.scoreOffer(raw, i, m, p, req.Debug)
		if offers[i].Error != "" {
			failed++
			logger.Warn().Int("offer_index", i).Str("error", offers[i].Error).Msg("offer scoring failed")
		}
	}
	e.offerErrors.Add(int64(failed))

	// Failed offers go after every scored one, whatever their score.
	sort.SliceStable(offers, func(a, b int) bool {
		aFailed, bFailed := offers[a].Error != "", offers[b].Error != ""
		if aFailed != bFailed {
			return bFailed
		}
		return offers[a].Score > offers[b].Score
	})
	n := flagTopK(offers, k)
	return &RankResponse{
		Offers:       offers,
		Personalized: true,
		Reason:       ReasonPersonalized,
		Recommended:  n,
		Failed:       failed,
	}
}

// scoreOffer scores one offer. Errors and panics are contained to the
// offer, which then gets the failure score.
func (e *Engine) scoreOffer(raw []byte, index int, m *activeModel, p *profile.TravelerProfile, debug bool) (out ScoredOffer) {
	out = ScoredOffer{Offer: raw, Index: index, Scored: true}
	defer func() {
		if r := recover(); r != nil {
			out.Score = e.config.FailureScore
			out.Components = nil
			out.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	rec := e.extractor.Extract(raw)
	vec, unseen, err := m.featurizer.Vector(rec.Categorical(), rec.Price, rec.Direct)
	if err != nil {
		out.Score = e.config.FailureScore
		out.Error = err.Error()
		return out
	}
	base, err := m.estimator.BaseScore(vec)
	if err != nil {
		out.Score = e.config.FailureScore
		out.Error = err.Error()
		return out
	}

	c, err := e.scorer.score(&rec, base, p)
	if err != nil {
		out.Score = e.config.FailureScore
		out.Error = err.Error()
		return out
	}
	c.UnseenCategories = unseen
	out.Score = c.Total()
	if debug {
		out.Components = &c
	}
	return out
}

// flagTopK marks the first k offers that scored without error and
// returns how many were flagged.
func flagTopK(offers []ScoredOffer, k int) int {
	n := 0
	for i := range offers {
		if n >= k {
			break
		}
		if offers[i].Error != "" {
			continue
		}
		offers[i].Recommended = true
		n++
	}
	return n
}

func countScored(offers []ScoredOffer) int {
	n := 0
	for i := range offers {
		if offers[i].Scored && offers[i].Error == "" {
			n++
		}
	}
	return n
}

// loadActive returns the decoded active artifact, rechecking the store at
// most every ArtifactRefresh. A store error keeps serving the cached model.
func (e *Engine) loadActive(ctx context.Context) (*activeModel, error) {
	cached := e.active.Load()
	if cached != nil && e.fresh() {
		return cached, nil
	}

	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	cached = e.active.Load()
	if cached != nil && e.fresh() {
		return cached, nil
	}

	a, err := e.store.LoadActive(ctx)
	if err != nil {
		if cached != nil && !errors.Is(err, storage.ErrNoActiveArtifact) {
			e.logger.Warn().Err(err).Msg("artifact store unavailable, keeping cached model")
			e.checkedAt.Store(e.now().UnixNano())
			return cached, nil
		}
		e.active.Store(nil)
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	if cached != nil && cached.meta.ID == a.ID {
		e.checkedAt.Store(e.now().UnixNano())
		return cached, nil
	}

	m, err := decodeArtifact(a)
	if err != nil {
		e.active.Store(nil)
		return nil, fmt.Errorf("%w: artifact %s: %w", ErrModelUnavailable, a.ID, err)
	}
	e.active.Store(m)
	e.checkedAt.Store(e.now().UnixNano())
	metrics.SetActiveArtifactVersion(a.Version)

	e.logger.Info().
		Str("artifact_id", a.ID).
		Int("version", a.Version).
		Str("strategy", a.Strategy).
		Int("features", a.FeatureCount).
		Msg("loaded ranking model")
	return m, nil
}

func (e *Engine) fresh() bool {
	if e.config.ArtifactRefresh <= 0 {
		return false
	}
	return e.now().UnixNano()-e.checkedAt.Load() < int64(e.config.ArtifactRefresh)
}

// InvalidateModel forces the next request to recheck the artifact store.
func (e *Engine) InvalidateModel() {
	e.checkedAt.Store(0)
}

func decodeArtifact(a *storage.Artifact) (*activeModel, error) {
	kind := model.Kind(a.Strategy)
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown strategy %q", a.Strategy)
	}
	enc, err := model.UnmarshalEncoder(a.Encoder)
	if err != nil {
		return nil, fmt.Errorf("decode encoder: %w", err)
	}
	scaler, err := model.UnmarshalScaler(a.Scaler)
	if err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	est, err := model.UnmarshalEstimator(kind, a.Model)
	if err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}

	fz := &model.Featurizer{Encoder: enc, Scaler: scaler}
	if est.NumFeatures() != fz.Width() {
		return nil, fmt.Errorf("model expects %d features, encoder and scaler produce %d", est.NumFeatures(), fz.Width())
	}
	return &activeModel{meta: a.Metadata, featurizer: fz, estimator: est}, nil
}

// maybeTrain starts a background training run when enabled and allowed
// by the limiter.
func (e *Engine) maybeTrain() {
	if !e.config.TrainOnMissingModel || e.trainer == nil || e.trainLimiter == nil {
		return
	}
	if !e.trainLimiter.Allow() {
		return
	}

	e.trainWG.Add(1)
	go func() {
		defer e.trainWG.Done()
		ctx := logging.ContextWithNewCorrelationID(context.Background())
		if _, err := e.trainer.Run(ctx); err != nil {
			e.logger.Warn().Err(err).Msg("on-demand training failed")
			return
		}
		e.InvalidateModel()
		e.logger.Info().Msg("on-demand training completed")
	}()
}

// Wait blocks until background training started by the engine finishes.
func (e *Engine) Wait() {
	e.trainWG.Wait()
}

// Stats returns the engine counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		Requests:    e.requestCount.Load(),
		ColdStarts:  e.coldStarts.Load(),
		Unchanged:   e.unchanged.Load(),
		OfferErrors: e.offerErrors.Load(),
	}
	if m := e.active.Load(); m != nil {
		s.ArtifactID = m.meta.ID
		s.ArtifactVersion = m.meta.Version
	}
	return s
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.config.Clone()
}
