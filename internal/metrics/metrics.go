// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ranking Metrics
	RankRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyrank_rank_requests_total",
			Help: "Total number of ranking requests by outcome",
		},
		[]string{"outcome"}, // "personalized", "cold_start", "model_unavailable", "unknown_traveler", ...
	)

	RankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skyrank_rank_duration_seconds",
			Help:    "Duration of ranking requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	OffersScoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skyrank_offers_scored_total",
			Help: "Total number of offers scored",
		},
	)

	OfferScoringFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skyrank_offer_scoring_failures_total",
			Help: "Total number of offers that fell back to the failure score",
		},
	)

	// Training Metrics
	TrainingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyrank_training_runs_total",
			Help: "Total number of training runs by strategy and result",
		},
		[]string{"strategy", "result"}, // result: "success", "insufficient_data", "error"
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skyrank_training_duration_seconds",
			Help:    "Duration of training runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
	)

	TrainingSamples = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skyrank_training_samples",
			Help: "Number of bookings used by the last training run",
		},
	)

	ActiveArtifactVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skyrank_active_artifact_version",
			Help: "Version of the model artifact currently used for scoring",
		},
	)

	// Profile Metrics
	ProfileCacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyrank_profile_cache_requests_total",
			Help: "Total number of profile cache lookups by backend and result",
		},
		[]string{"backend", "result"}, // result: "hit", "miss"
	)

	ProfileRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyrank_profile_refresh_total",
			Help: "Total number of scheduled profile rebuilds by result",
		},
		[]string{"result"},
	)

	// Booking Source Metrics
	BookingSourceCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skyrank_booking_source_circuit_state",
			Help: "Circuit breaker state of the booking source (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skyrank_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyrank_db_query_errors_total",
			Help: "Total number of database query errors",
		},
		[]string{"operation", "table"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyrank_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skyrank_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Application Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skyrank_app_info",
			Help: "Application version information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordRank records one ranking request.
func RecordRank(outcome string, duration time.Duration, scored, failed int) {
	RankRequestsTotal.WithLabelValues(outcome).Inc()
	RankDuration.Observe(duration.Seconds())
	OffersScoredTotal.Add(float64(scored))
	OfferScoringFailuresTotal.Add(float64(failed))
}

// RecordTrainingRun records a finished training run.
func RecordTrainingRun(strategy, result string, duration time.Duration, samples int) {
	TrainingRunsTotal.WithLabelValues(strategy, result).Inc()
	TrainingDuration.Observe(duration.Seconds())
	if samples > 0 {
		TrainingSamples.Set(float64(samples))
	}
}

// SetActiveArtifactVersion publishes the artifact version used for scoring.
func SetActiveArtifactVersion(version int) {
	ActiveArtifactVersion.Set(float64(version))
}

// RecordProfileCache records a profile cache lookup.
func RecordProfileCache(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	ProfileCacheRequestsTotal.WithLabelValues(backend, result).Inc()
}

// RecordProfileRefresh records one scheduled profile rebuild.
func RecordProfileRefresh(err error) {
	if err != nil {
		ProfileRefreshTotal.WithLabelValues("error").Inc()
		return
	}
	ProfileRefreshTotal.WithLabelValues("success").Inc()
}

// SetCircuitState publishes a circuit breaker state.
func SetCircuitState(name string, state int) {
	BookingSourceCircuitState.WithLabelValues(name).Set(float64(state))
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
