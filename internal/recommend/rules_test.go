// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package recommend

import (
	"reflect"
	"testing"

	"github.com/tomtom215/skyrank/internal/recommend/features"
	"github.com/tomtom215/skyrank/internal/recommend/profile"
)

func TestCompileRules(t *testing.T) {
	tests := []struct {
		name    string
		rules   []Rule
		wantErr bool
	}{
		{"empty", nil, false},
		{"bool expression", []Rule{{Name: "short", Expr: `offer.duration_hours < 3.0`, Adjust: 0.1}}, false},
		{"map access is dyn", []Rule{{Expr: `offer.direct`, Adjust: 0.1}}, false},
		{"syntax error", []Rule{{Name: "bad", Expr: `offer.price >`}}, true},
		{"unknown variable", []Rule{{Name: "bad", Expr: `flight.price > 1.0`}}, true},
		{"non bool result", []Rule{{Name: "num", Expr: `1 + 2`}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := CompileRules(tt.rules)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CompileRules() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && rs.Len() != len(tt.rules) {
				t.Errorf("Len() = %d, want %d", rs.Len(), len(tt.rules))
			}
		})
	}
}

func TestRuleSet_Apply(t *testing.T) {
	rs, err := CompileRules([]Rule{
		{Name: "short_direct", Expr: `offer.direct && offer.duration_hours < 3.0`, Adjust: 0.2},
		{Name: "favorite", Expr: `offer.airline in profile.preferred_airlines`, Adjust: 0.1},
		{Expr: `offer.price > profile.avg_price * 2.0`, Adjust: -0.5},
		{Name: "morning", Expr: `offer.time_of_day == "morning" && offer.departure_hour >= 6`, Adjust: 0.05},
	})
	if err != nil {
		t.Fatal(err)
	}
	p := &profile.TravelerProfile{PreferredAirlines: []string{"BA"}, AvgPrice: 100}

	tests := []struct {
		name        string
		rec         features.Record
		wantAdjust  float64
		wantMatches []string
	}{
		{
			"short direct favorite",
			features.Record{Airline: "BA", Price: 90, DurationHours: 2, Direct: true, DepartureHour: 14},
			0.3, []string{"short_direct", "favorite"},
		},
		{
			"expensive unnamed rule",
			features.Record{Airline: "KL", Price: 250, DurationHours: 5, DepartureHour: 8},
			-0.45, []string{"rule[2]", "morning"},
		},
		{
			"nothing matches",
			features.Record{Airline: "KL", Price: 100, DurationHours: 5, DepartureHour: 20},
			0, nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adjust, matches, err := rs.Apply(&tt.rec, p)
			if err != nil {
				t.Fatal(err)
			}
			if !approx(adjust, tt.wantAdjust) {
				t.Errorf("adjust = %v, want %v", adjust, tt.wantAdjust)
			}
			if !reflect.DeepEqual(matches, tt.wantMatches) {
				t.Errorf("matches = %v, want %v", matches, tt.wantMatches)
			}
		})
	}
}

func TestRuleSet_ApplyRuntimeError(t *testing.T) {
	rs, err := CompileRules([]Rule{{Name: "missing", Expr: `profile.loyalty_tier == "gold"`}})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := rs.Apply(&features.Record{}, &profile.TravelerProfile{}); err == nil {
		t.Error("expected an error for a missing map key")
	}
}

func TestRuleSet_NilIsEmpty(t *testing.T) {
	var rs *RuleSet
	adjust, matches, err := rs.Apply(&features.Record{}, &profile.TravelerProfile{})
	if err != nil || adjust != 0 || matches != nil {
		t.Errorf("nil RuleSet Apply() = %v, %v, %v", adjust, matches, err)
	}
}
