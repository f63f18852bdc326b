// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package training

import (
	"math"
	"testing"
	"time"

	"github.com/tomtom215/skyrank/internal/models"
	"github.com/tomtom215/skyrank/internal/recommend/model"
)

func TestPriceBands(t *testing.T) {
	tests := []struct {
		name        string
		prices      []float64
		wantLabels  []int
		wantClasses int
	}{
		{
			name:        "quartiles",
			prices:      []float64{100, 200, 300, 400, 500, 600, 700, 800},
			wantLabels:  []int{0, 0, 1, 1, 2, 2, 3, 3},
			wantClasses: 4,
		},
		{
			name:        "median fallback",
			prices:      []float64{100, 100, 200, 300},
			wantLabels:  []int{0, 0, 1, 1},
			wantClasses: 2,
		},
		{
			name:        "quartiles with ties",
			prices:      []float64{100, 100, 200, 300, 400, 400, 500, 600},
			wantLabels:  []int{0, 0, 1, 1, 2, 2, 3, 3},
			wantClasses: 4,
		},
		{
			name:        "single price",
			prices:      []float64{250, 250, 250},
			wantLabels:  []int{0, 0, 0},
			wantClasses: 2,
		},
		{
			name:        "empty",
			prices:      nil,
			wantLabels:  []int{},
			wantClasses: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels, classes := PriceBands(tt.prices)
			if classes != tt.wantClasses {
				t.Errorf("classes = %d, want %d", classes, tt.wantClasses)
			}
			if len(labels) != len(tt.wantLabels) {
				t.Fatalf("labels = %v, want %v", labels, tt.wantLabels)
			}
			for i := range labels {
				if labels[i] != tt.wantLabels[i] {
					t.Errorf("labels = %v, want %v", labels, tt.wantLabels)
					break
				}
			}
		})
	}
}

func TestRelevance(t *testing.T) {
	rows := []Row{
		{TravelerID: "a", Airline: "AF", Price: 100},
		{TravelerID: "a", Airline: "AF", Price: 300},
		{TravelerID: "a", Airline: "BA", Price: 200},
		{TravelerID: "solo", Airline: "LH", Price: 500},
	}
	got := Relevance(rows)

	// avg 200: AF@100 ratio 0.5 -> 1.0, AF@300 ratio 1.5 -> 0.4, BA@200 ratio 1.0 -> 0.8
	want := []float64{
		0.4*1 + 0.6*1.0,
		0.4*1 + 0.6*0.4,
		0.4*0.5 + 0.6*0.8,
		1.0 / 3.0,
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("relevance[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		score float64
		want  int
	}{
		{-0.5, 0},
		{0, 0},
		{1.0 / 3.0, 1},
		{0.5, 2},
		{0.9, 3},
		{1.4, 3},
	}
	for _, tt := range tests {
		if got := Level(tt.score); got != tt.want {
			t.Errorf("Level(%v) = %d, want %d", tt.score, got, tt.want)
		}
	}
}

func TestRowsFromBookings(t *testing.T) {
	bookings := []models.Booking{{
		TravelerID:    "t1",
		Price:         120,
		DepartureDate: time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC), // Wednesday
		Direct:        true,
	}}
	rows := RowsFromBookings(bookings)
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	r := rows[0]
	if r.Airline != "Unknown" {
		t.Errorf("Airline = %q, want Unknown", r.Airline)
	}
	if r.DayOfWeek != 2 || r.Month != 7 {
		t.Errorf("DayOfWeek, Month = %d, %d, want 2, 7", r.DayOfWeek, r.Month)
	}
	want := []string{"Unknown", "window", "regular", "2", "7"}
	for i := range want {
		if r.Categorical[i] != want[i] {
			t.Errorf("Categorical = %v, want %v", r.Categorical, want)
			break
		}
	}
}

func TestBuildDataset(t *testing.T) {
	ds, err := BuildDataset(RowsFromBookings(sampleBookings(20)), model.UnknownBucket)
	if err != nil {
		t.Fatalf("BuildDataset() error = %v", err)
	}
	if len(ds.X) != 20 || len(ds.Bands) != 20 || len(ds.Relevance) != 20 {
		t.Fatal("expected one vector and target per row")
	}
	width := ds.Featurizer.Width()
	for i, x := range ds.X {
		if len(x) != width {
			t.Fatalf("row %d width = %d, want %d", i, len(x), width)
		}
	}
	if ds.NumBands != 4 {
		t.Errorf("NumBands = %d, want 4", ds.NumBands)
	}

	if _, err := BuildDataset(nil, model.UnknownBucket); err == nil {
		t.Error("expected error for empty rows")
	}
}
