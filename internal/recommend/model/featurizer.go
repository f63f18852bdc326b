// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package model

import "fmt"

// Featurizer builds model input vectors: [one-hot..., scaled price, direct].
type Featurizer struct {
	Encoder *OneHotEncoder
	Scaler  *StandardScaler
}

// Width is the length of the vectors produced by Vector.
func (f *Featurizer) Width() int {
	return f.Encoder.Width() + 2
}

// Vector encodes one sample. unseen names the categorical columns whose
// value was not seen during fitting.
func (f *Featurizer) Vector(categorical []string, price float64, direct bool) (vec []float64, unseen []string, err error) {
	onehot, unseen, err := f.Encoder.Encode(categorical)
	if err != nil {
		return nil, nil, fmt.Errorf("encode categories: %w", err)
	}
	scaled, err := f.Scaler.Transform([]float64{price})
	if err != nil {
		return nil, nil, fmt.Errorf("scale price: %w", err)
	}

	vec = make([]float64, 0, len(onehot)+2)
	vec = append(vec, onehot...)
	vec = append(vec, scaled[0])
	if direct {
		vec = append(vec, 1)
	} else {
		vec = append(vec, 0)
	}
	return vec, unseen, nil
}
