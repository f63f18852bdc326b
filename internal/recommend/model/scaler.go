// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package model

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centers each column and scales it to unit variance.
// Columns with zero variance are only centered.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// FitStandardScaler computes per-column mean and population standard deviation.
func FitStandardScaler(rows [][]float64) (*StandardScaler, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows")
	}
	width := len(rows[0])
	for r, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d values, want %d", r, len(row), width)
		}
	}

	mean := make([]float64, width)
	scale := make([]float64, width)
	col := make([]float64, len(rows))
	for c := 0; c < width; c++ {
		for r, row := range rows {
			col[r] = row[c]
		}
		mean[c], scale[c] = stat.PopMeanStdDev(col, nil)
		if scale[c] == 0 {
			scale[c] = 1
		}
	}
	return &StandardScaler{Mean: mean, Scale: scale}, nil
}

// Transform scales x into a new slice.
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("got %d values, want %d", len(x), len(s.Mean))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return out, nil
}
