// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

// Package recommend ranks flight offers for a traveler.
//
// # Architecture
//
// The Engine blends a learned base score with preference bonuses:
//
//   - features: normalizes raw offer JSON into a canonical Record
//   - profile: aggregates confirmed booking history into ordered preferences
//   - model: encoder, scaler and estimators (knn, forest classifier, forest regressor)
//   - training: fits and evaluates models and publishes artifacts
//   - storage: versioned artifact store with exactly one active artifact
//
// # Scoring
//
// For each offer the final score is
//
//	base*w.base + airline + price + price_adjust + duration + direct + time
//	    + day_of_week + month + rules
//
// where each preference bonus is the configured weight scaled by the
// inverse rank of the offer's category in the traveler's ordered list
// (first place earns the full weight, the last place earns nothing, a
// single-entry list always earns the full weight). Scores are floored at 0.
//
// # Degradation
//
// Ranking never fails because of one offer or a missing model. Offers are
// returned unchanged when personalization is impossible, travelers with
// little history get a price-ascending cold start ordering, and an offer
// that fails to score receives a minimal score and is never recommended.
//
// # Usage
//
//	engine, err := recommend.NewEngine(cfg, store, builder, logger)
//	resp, err := engine.Rank(ctx, recommend.RankRequest{
//	    TravelerID: "t-42",
//	    Offers:     offers,
//	})
//
// # Thread Safety
//
// Rank is safe for concurrent use. The decoded artifact is shared behind an
// atomic pointer and replaced whole when the store's active artifact
// changes, so scoring never waits on training.
package recommend
