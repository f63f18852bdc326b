// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package model

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// DefaultNeighbors is the neighborhood size used when fitting a KNN index.
const DefaultNeighbors = 5

// KNNIndex scores a vector by its closeness to historical bookings.
// Brute force Euclidean search; booking histories are small.
type KNNIndex struct {
	Points [][]float64
	Labels []int
	K      int
	Dim    int
}

// FitKNN indexes points. labels are optional and enable Vote. The
// neighborhood size is min(k, len(points)).
func FitKNN(points [][]float64, labels []int, k int) (*KNNIndex, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no points")
	}
	if labels != nil && len(labels) != len(points) {
		return nil, fmt.Errorf("got %d labels for %d points", len(labels), len(points))
	}
	if k <= 0 {
		k = DefaultNeighbors
	}
	dim := len(points[0])
	for i, p := range points {
		if len(p) != dim {
			return nil, fmt.Errorf("point %d has %d values, want %d", i, len(p), dim)
		}
	}
	return &KNNIndex{
		Points: points,
		Labels: labels,
		K:      min(k, len(points)),
		Dim:    dim,
	}, nil
}

// Kind implements Estimator.
func (m *KNNIndex) Kind() Kind { return KindKNN }

// NumFeatures implements Estimator.
func (m *KNNIndex) NumFeatures() int { return m.Dim }

// Neighbors returns the indices and distances of the K nearest points,
// closest first. Equal distances keep index order.
func (m *KNNIndex) Neighbors(x []float64) ([]int, []float64, error) {
	if err := checkWidth(x, m.Dim); err != nil {
		return nil, nil, err
	}
	order := make([]int, len(m.Points))
	dist := make([]float64, len(m.Points))
	for i, p := range m.Points {
		order[i] = i
		dist[i] = euclidean(x, p)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dist[order[a]] < dist[order[b]]
	})

	idx := order[:m.K]
	d := make([]float64, m.K)
	for i, j := range idx {
		d[i] = dist[j]
	}
	return idx, d, nil
}

// BaseScore is 1/(1+mean neighbor distance).
func (m *KNNIndex) BaseScore(x []float64) (float64, error) {
	_, dist, err := m.Neighbors(x)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, d := range dist {
		sum += d
	}
	return 1 / (1 + sum/float64(len(dist))), nil
}

// Vote returns the majority label among the neighbors, the smallest label
// on ties.
func (m *KNNIndex) Vote(x []float64) (int, error) {
	if m.Labels == nil {
		return 0, fmt.Errorf("index has no labels")
	}
	idx, _, err := m.Neighbors(x)
	if err != nil {
		return 0, err
	}
	counts := make(map[int]int)
	for _, i := range idx {
		counts[m.Labels[i]]++
	}
	best, bestCount := 0, -1
	for label, c := range counts {
		if c > bestCount || (c == bestCount && label < best) {
			best, bestCount = label, c
		}
	}
	return best, nil
}

func euclidean(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}
