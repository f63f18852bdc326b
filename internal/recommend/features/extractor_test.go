// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package features

import (
	"math"
	"testing"
	"time"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC) }

func TestExtract_Defaults(t *testing.T) {
	t.Parallel()

	ext := NewExtractor(fixedNow)
	inputs := []string{`{}`, `[]`, `null`, `"offer"`, `not json at all`, ``}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			rec := ext.Extract([]byte(in))

			if rec.Airline != "Unknown" {
				t.Errorf("Airline = %q, want Unknown", rec.Airline)
			}
			if rec.Price != 0 {
				t.Errorf("Price = %v, want 0", rec.Price)
			}
			if rec.DepartureTime != "12:00" || rec.DepartureHour != 12 {
				t.Errorf("DepartureTime = %q/%d, want 12:00/12", rec.DepartureTime, rec.DepartureHour)
			}
			if rec.DurationHours != 2.0 {
				t.Errorf("DurationHours = %v, want 2.0", rec.DurationHours)
			}
			if !rec.Direct {
				t.Error("Direct should default to true")
			}
			want := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
			if !rec.DepartureDate.Equal(want) {
				t.Errorf("DepartureDate = %v, want %v", rec.DepartureDate, want)
			}
			// 2026-03-04 is a Wednesday.
			if rec.DayOfWeek != 2 || rec.Month != 3 {
				t.Errorf("DayOfWeek/Month = %d/%d, want 2/3", rec.DayOfWeek, rec.Month)
			}
			if rec.SeatPreference != "window" || rec.MealPreference != "regular" {
				t.Errorf("placeholders = %q/%q", rec.SeatPreference, rec.MealPreference)
			}
			if len(rec.Defaulted) != 6 {
				t.Errorf("Defaulted = %v, want 6 fields", rec.Defaulted)
			}
		})
	}
}

func TestExtract_ProviderShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		airline  string
		price    float64
		hour     int
		duration float64
		direct   bool
		date     string
	}{
		{
			name:     "nested provider shape",
			raw:      `{"airlines":{"full":"Air France"},"departDateTime":{"date":"2024-05-06","time":"08:45"},"price":"EUR 1,299.50","duration":"2h30m","isDirect":false}`,
			airline:  "Air France",
			price:    1299.50,
			hour:     8,
			duration: 2.5,
			direct:   false,
			date:     "2024-05-06",
		},
		{
			name:     "flat shape",
			raw:      `{"airline":"BA","departureDate":"06/05/2024","departureTime":"18:10:00","amount":420,"flightDuration":"45m","stops":0}`,
			airline:  "BA",
			price:    420,
			hour:     18,
			duration: 0.75,
			direct:   true,
			date:     "2024-05-06",
		},
		{
			name:     "structured time and price object",
			raw:      `{"carrier":"KL","departure":{"date":"2024-12-25","time":{"hour":6,"minute":5}},"price":{"total":"310.00","currency":"EUR"},"travelDuration":7.5,"segments":[{},{}]}`,
			airline:  "KL",
			price:    310,
			hour:     6,
			duration: 7.5,
			direct:   false,
			date:     "2024-12-25",
		},
		{
			name:     "iso duration and numeric hour",
			raw:      `{"airlineName":"LH","depart":{"date":"2024-01-15","time":23},"totalPrice":99.99,"duration":"PT1H15M","stopovers":2}`,
			airline:  "LH",
			price:    99.99,
			hour:     23,
			duration: 1.25,
			direct:   false,
			date:     "2024-01-15",
		},
		{
			name:     "unparseable values fall through to later paths",
			raw:      `{"airline":"","carrier":"IB","departureDate":"soon","depart_date":"2024-07-01","departureTime":"late","depart_time":"07:00","price":"free","amount":"120","duration":"long","isDirect":"maybe","direct":true}`,
			airline:  "IB",
			price:    120,
			hour:     7,
			duration: 2.0,
			direct:   true,
			date:     "2024-07-01",
		},
	}

	ext := NewExtractor(fixedNow)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := ext.Extract([]byte(tt.raw))

			if rec.Airline != tt.airline {
				t.Errorf("Airline = %q, want %q", rec.Airline, tt.airline)
			}
			if math.Abs(rec.Price-tt.price) > 1e-9 {
				t.Errorf("Price = %v, want %v", rec.Price, tt.price)
			}
			if rec.DepartureHour != tt.hour {
				t.Errorf("DepartureHour = %d, want %d", rec.DepartureHour, tt.hour)
			}
			if math.Abs(rec.DurationHours-tt.duration) > 1e-9 {
				t.Errorf("DurationHours = %v, want %v", rec.DurationHours, tt.duration)
			}
			if rec.Direct != tt.direct {
				t.Errorf("Direct = %v, want %v", rec.Direct, tt.direct)
			}
			if got := rec.DepartureDate.Format("2006-01-02"); got != tt.date {
				t.Errorf("DepartureDate = %s, want %s", got, tt.date)
			}
		})
	}
}

func TestExtract_OptionalFields(t *testing.T) {
	t.Parallel()

	rec := NewExtractor(fixedNow).Extract([]byte(`{"flight":{"number":1234},"price":{"amount":55,"currency":"USD"}}`))
	if rec.FlightNumber != "1234" {
		t.Errorf("FlightNumber = %q, want 1234", rec.FlightNumber)
	}
	if rec.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", rec.Currency)
	}
	if rec.Price != 55 {
		t.Errorf("Price = %v, want 55", rec.Price)
	}
}

func TestExtract_Categorical(t *testing.T) {
	t.Parallel()

	rec := NewExtractor(fixedNow).Extract([]byte(`{"airline":"AF","departureDate":"2024-05-06"}`))
	got := rec.Categorical()
	want := []string{"AF", "window", "regular", "0", "5"}
	if len(got) != len(want) {
		t.Fatalf("Categorical() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Categorical()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtract_Deterministic(t *testing.T) {
	t.Parallel()

	ext := NewExtractor(fixedNow)
	raw := []byte(`{"airline":"AF","price":250,"departureDate":"2024-05-06","departureTime":"09:00"}`)
	a, b := ext.Extract(raw), ext.Extract(raw)
	if a.Airline != b.Airline || a.Price != b.Price || a.DepartureHour != b.DepartureHour || !a.DepartureDate.Equal(b.DepartureDate) {
		t.Errorf("extraction not deterministic: %+v vs %+v", a, b)
	}
}
