// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package training

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/tomtom215/skyrank/internal/models"
	"github.com/tomtom215/skyrank/internal/recommend/features"
	"github.com/tomtom215/skyrank/internal/recommend/model"
)

// RelevanceLevels is the number of graded steps above zero used when a
// continuous relevance score is viewed as a class label.
const RelevanceLevels = 3

// Row is one training example derived from a booking.
type Row struct {
	TravelerID  string
	Airline     string
	Price       float64
	DayOfWeek   int
	Month       int
	Direct      bool
	Categorical []string
}

// Dataset is the fitted feature space plus every target view of the rows.
type Dataset struct {
	Rows       []Row
	X          [][]float64
	Featurizer *model.Featurizer

	// Bands are price quantile classes, NumBands wide.
	Bands    []int
	NumBands int

	// Relevance is the synthetic per-traveler relevance in [0, 1].
	Relevance []float64
}

// RowsFromBookings converts bookings into training rows. Seat and meal use
// the same placeholders the extractor assigns to offers.
func RowsFromBookings(bookings []models.Booking) []Row {
	rows := make([]Row, 0, len(bookings))
	for i := range bookings {
		b := &bookings[i]
		airline := b.Airline
		if airline == "" {
			airline = features.DefaultAirline
		}
		dow := b.DayOfWeek()
		month := int(b.DepartureDate.Month())
		rows = append(rows, Row{
			TravelerID: b.TravelerID,
			Airline:    airline,
			Price:      b.Price,
			DayOfWeek:  dow,
			Month:      month,
			Direct:     b.Direct,
			Categorical: features.CategoricalValues(
				airline, features.DefaultSeatPreference, features.DefaultMealPreference, dow, month),
		})
	}
	return rows
}

// BuildDataset fits the encoder and scaler over rows and derives targets.
func BuildDataset(rows []Row, policy model.UnknownPolicy) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no training rows")
	}

	cats := make([][]string, len(rows))
	prices := make([][]float64, len(rows))
	for i := range rows {
		cats[i] = rows[i].Categorical
		prices[i] = []float64{rows[i].Price}
	}

	enc, err := model.FitOneHot(features.CategoricalColumns, cats, policy)
	if err != nil {
		return nil, fmt.Errorf("fit encoder: %w", err)
	}
	scaler, err := model.FitStandardScaler(prices)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	fz := &model.Featurizer{Encoder: enc, Scaler: scaler}

	x := make([][]float64, len(rows))
	for i := range rows {
		vec, _, err := fz.Vector(rows[i].Categorical, rows[i].Price, rows[i].Direct)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		x[i] = vec
	}

	flat := make([]float64, len(rows))
	for i := range rows {
		flat[i] = rows[i].Price
	}
	bands, numBands := PriceBands(flat)

	return &Dataset{
		Rows:       rows,
		X:          x,
		Featurizer: fz,
		Bands:      bands,
		NumBands:   numBands,
		Relevance:  Relevance(rows),
	}, nil
}

// PriceBands labels prices by quartile. With fewer than four distinct
// prices it falls back to a binary split at the median.
func PriceBands(prices []float64) (labels []int, numClasses int) {
	labels = make([]int, len(prices))
	if len(prices) == 0 {
		return labels, 2
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	distinct := 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			distinct++
		}
	}

	if distinct < 4 {
		median := quantile(sorted, 0.5)
		for i, p := range prices {
			if p > median {
				labels[i] = 1
			}
		}
		return labels, 2
	}

	var cuts []float64
	for _, q := range []float64{0.25, 0.5, 0.75} {
		c := quantile(sorted, q)
		if len(cuts) == 0 || c > cuts[len(cuts)-1] {
			cuts = append(cuts, c)
		}
	}
	for i, p := range prices {
		for _, c := range cuts {
			if p > c {
				labels[i]++
			}
		}
	}
	return labels, len(cuts) + 1
}

// quantile returns the empirical q-quantile of sorted.
func quantile(sorted []float64, q float64) float64 {
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}

// Relevance scores each row against its traveler's own history:
// 0.4 * airline frequency / max frequency + 0.6 * price score, where the
// price score steps down as the price rises relative to the traveler's
// average. Travelers with fewer than two bookings get a neutral 1/3.
func Relevance(rows []Row) []float64 {
	groups := make(map[string][]int)
	for i := range rows {
		groups[rows[i].TravelerID] = append(groups[rows[i].TravelerID], i)
	}

	out := make([]float64, len(rows))
	for _, idx := range groups {
		if len(idx) < 2 {
			for _, i := range idx {
				out[i] = 1.0 / 3.0
			}
			continue
		}

		counts := make(map[string]int)
		maxCount := 0
		var sum float64
		for _, i := range idx {
			counts[rows[i].Airline]++
			maxCount = max(maxCount, counts[rows[i].Airline])
			sum += rows[i].Price
		}
		avg := sum / float64(len(idx))

		for _, i := range idx {
			airlineScore := float64(counts[rows[i].Airline]) / float64(maxCount)
			out[i] = 0.4*airlineScore + 0.6*priceScore(rows[i].Price, avg)
		}
	}
	return out
}

func priceScore(price, avg float64) float64 {
	if avg <= 0 {
		return 0
	}
	switch ratio := price / avg; {
	case ratio <= 0.8:
		return 1.0
	case ratio <= 1.0:
		return 0.8
	case ratio <= 1.2:
		return 0.6
	default:
		return 0.4
	}
}

// Level maps a relevance score in [0, 1] to a class in 0..RelevanceLevels.
func Level(score float64) int {
	l := int(math.Round(score * RelevanceLevels))
	return min(max(l, 0), RelevanceLevels)
}
