// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package model

import "fmt"

// Kind identifies a model strategy.
type Kind string

const (
	KindKNN        Kind = "knn"
	KindClassifier Kind = "classifier"
	KindRegressor  Kind = "regressor"
)

// Valid reports whether k is a known strategy.
func (k Kind) Valid() bool {
	switch k {
	case KindKNN, KindClassifier, KindRegressor:
		return true
	}
	return false
}

// Estimator produces the base relevance score of a feature vector.
type Estimator interface {
	Kind() Kind
	NumFeatures() int
	// BaseScore returns a score in [0, 1].
	BaseScore(x []float64) (float64, error)
}

func checkWidth(x []float64, want int) error {
	if len(x) != want {
		return fmt.Errorf("feature vector has %d values, want %d", len(x), want)
	}
	return nil
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
