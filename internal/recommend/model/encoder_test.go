// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package model

import (
	"math"
	"reflect"
	"testing"
)

func fitTestEncoder(t *testing.T, policy UnknownPolicy) *OneHotEncoder {
	t.Helper()
	enc, err := FitOneHot([]string{"airline", "month"}, [][]string{
		{"BA", "5"},
		{"AF", "6"},
		{"AF", "5"},
	}, policy)
	if err != nil {
		t.Fatalf("FitOneHot() error = %v", err)
	}
	return enc
}

func TestOneHotEncoder_Categories(t *testing.T) {
	t.Parallel()

	enc := fitTestEncoder(t, UnknownBucket)
	want := [][]string{{"AF", "BA", UnknownCategory}, {"5", "6", UnknownCategory}}
	if !reflect.DeepEqual(enc.Categories, want) {
		t.Errorf("Categories = %v, want %v", enc.Categories, want)
	}
	if enc.Width() != 6 {
		t.Errorf("Width() = %d, want 6", enc.Width())
	}
}

func TestOneHotEncoder_Encode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		policy UnknownPolicy
		values []string
		want   []float64
		unseen []string
	}{
		{"known values", UnknownBucket, []string{"BA", "6"}, []float64{0, 1, 0, 0, 1, 0}, nil},
		{"unseen to bucket", UnknownBucket, []string{"KL", "5"}, []float64{0, 0, 1, 1, 0, 0}, []string{"airline"}},
		{"unseen to first category", FirstCategory, []string{"KL", "12"}, []float64{1, 0, 1, 0}, []string{"airline", "month"}},
		{"sentinel value is unseen", UnknownBucket, []string{UnknownCategory, "5"}, []float64{0, 0, 1, 1, 0, 0}, []string{"airline"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			enc := fitTestEncoder(t, tt.policy)
			got, unseen, err := enc.Encode(tt.values)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Encode() = %v, want %v", got, tt.want)
			}
			if !reflect.DeepEqual(unseen, tt.unseen) {
				t.Errorf("unseen = %v, want %v", unseen, tt.unseen)
			}
		})
	}
}

func TestOneHotEncoder_Errors(t *testing.T) {
	t.Parallel()

	if _, err := FitOneHot(nil, [][]string{{"a"}}, UnknownBucket); err == nil {
		t.Error("expected error for no columns")
	}
	if _, err := FitOneHot([]string{"a"}, nil, UnknownBucket); err == nil {
		t.Error("expected error for no rows")
	}
	if _, err := FitOneHot([]string{"a"}, [][]string{{"x", "y"}}, UnknownBucket); err == nil {
		t.Error("expected error for ragged row")
	}
	if _, err := FitOneHot([]string{"a"}, [][]string{{"x"}}, "sometimes"); err == nil {
		t.Error("expected error for invalid policy")
	}

	enc := fitTestEncoder(t, UnknownBucket)
	if _, _, err := enc.Encode([]string{"AF"}); err == nil {
		t.Error("expected error for wrong arity")
	}
}

func TestStandardScaler(t *testing.T) {
	t.Parallel()

	s, err := FitStandardScaler([][]float64{{100, 1}, {200, 1}, {300, 1}})
	if err != nil {
		t.Fatalf("FitStandardScaler() error = %v", err)
	}
	if s.Mean[0] != 200 {
		t.Errorf("Mean = %v, want 200", s.Mean[0])
	}
	if want := math.Sqrt(20000.0 / 3); math.Abs(s.Scale[0]-want) > 1e-9 {
		t.Errorf("Scale = %v, want population std %v", s.Scale[0], want)
	}
	if s.Scale[1] != 1 {
		t.Errorf("zero variance column scale = %v, want 1", s.Scale[1])
	}

	out, err := s.Transform([]float64{200 + s.Scale[0], 1})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if math.Abs(out[0]-1) > 1e-9 || out[1] != 0 {
		t.Errorf("Transform() = %v, want [1 0]", out)
	}

	if _, err := s.Transform([]float64{1}); err == nil {
		t.Error("expected width error")
	}
}

func TestFeaturizer_Vector(t *testing.T) {
	t.Parallel()

	enc := fitTestEncoder(t, UnknownBucket)
	scaler, err := FitStandardScaler([][]float64{{100}, {300}})
	if err != nil {
		t.Fatal(err)
	}
	f := &Featurizer{Encoder: enc, Scaler: scaler}

	vec, unseen, err := f.Vector([]string{"AF", "5"}, 200, true)
	if err != nil {
		t.Fatalf("Vector() error = %v", err)
	}
	want := []float64{1, 0, 0, 1, 0, 0, 0, 1}
	if !reflect.DeepEqual(vec, want) {
		t.Errorf("Vector() = %v, want %v", vec, want)
	}
	if len(unseen) != 0 {
		t.Errorf("unseen = %v", unseen)
	}
	if f.Width() != len(vec) {
		t.Errorf("Width() = %d, want %d", f.Width(), len(vec))
	}
}
