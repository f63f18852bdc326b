// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

/*
Package metrics defines the Prometheus collectors exported at /metrics.

Collectors are registered with promauto on the default registry. Callers
use the Record* helpers rather than touching collectors directly:

	metrics.RecordRank("personalized", time.Since(start), len(offers), failed)
	metrics.RecordTrainingRun("classifier", "success", elapsed, samples)

Metric families:

  - skyrank_rank_*: ranking requests, latency and per-offer failures
  - skyrank_training_*: training runs, duration and sample size
  - skyrank_active_artifact_version: model version serving traffic
  - skyrank_profile_*: profile cache efficiency and scheduled refreshes
  - skyrank_booking_source_circuit_state: booking backend breaker
  - skyrank_db_*, skyrank_api_*: storage and HTTP layers
*/
package metrics
