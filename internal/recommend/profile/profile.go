// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

// Package profile aggregates a traveler's confirmed booking history into
// ordered preference lists used by the scorer.
package profile

import (
	"sort"
	"time"

	"github.com/tomtom215/skyrank/internal/models"
	"github.com/tomtom215/skyrank/internal/recommend/features"
)

// TravelerProfile summarizes booking history. Every preference list is
// ordered by descending frequency, ties broken by first encounter in the
// newest-first history.
type TravelerProfile struct {
	TravelerIDs  []string `json:"traveler_ids"`
	BookingCount int      `json:"booking_count"`

	PreferredAirlines  []string `json:"preferred_airlines"`
	PriceCategories    []string `json:"price_categories"`
	DepartureTimes     []string `json:"departure_times"`
	DurationCategories []string `json:"duration_categories"`
	DaysOfWeek         []int    `json:"days_of_week"`
	Months             []int    `json:"months"`

	AvgPrice      float64 `json:"avg_price"`
	PriceRange    float64 `json:"price_range"`
	PrefersDirect bool    `json:"prefers_direct"`

	AirlineCounts map[string]int `json:"airline_counts"`
	TimeCounts    map[string]int `json:"time_counts"`

	BuiltAt time.Time `json:"built_at"`
}

// FromBookings aggregates bookings, which must be newest first.
func FromBookings(travelerIDs []string, bookings []models.Booking, builtAt time.Time) *TravelerProfile {
	p := &TravelerProfile{
		TravelerIDs:        travelerIDs,
		BookingCount:       len(bookings),
		PreferredAirlines:  []string{},
		PriceCategories:    []string{},
		DepartureTimes:     []string{},
		DurationCategories: []string{},
		DaysOfWeek:         []int{},
		Months:             []int{},
		PrefersDirect:      true,
		AirlineCounts:      map[string]int{},
		TimeCounts:         map[string]int{},
		BuiltAt:            builtAt,
	}
	if len(bookings) == 0 {
		return p
	}

	airlines := make([]string, 0, len(bookings))
	times := make([]string, 0, len(bookings))
	durations := make([]string, 0, len(bookings))
	days := make([]int, 0, len(bookings))
	months := make([]int, 0, len(bookings))

	var total float64
	minPrice, maxPrice := bookings[0].Price, bookings[0].Price
	direct := 0
	for i := range bookings {
		b := &bookings[i]
		airlines = append(airlines, b.Airline)
		times = append(times, features.CategorizeHour(b.DepartureHour()))
		durations = append(durations, features.CategorizeDuration(b.DurationHours))
		days = append(days, b.DayOfWeek())
		months = append(months, int(b.DepartureDate.Month()))

		total += b.Price
		minPrice = min(minPrice, b.Price)
		maxPrice = max(maxPrice, b.Price)
		if b.Direct {
			direct++
		}
	}

	p.AvgPrice = total / float64(len(bookings))
	if len(bookings) >= 2 {
		p.PriceRange = maxPrice - minPrice
	}
	p.PrefersDirect = direct*2 > len(bookings)

	prices := make([]string, len(bookings))
	for i := range bookings {
		prices[i] = features.CategorizePrice(bookings[i].Price, p.AvgPrice)
	}

	p.PreferredAirlines, p.AirlineCounts = rankByFrequency(airlines)
	p.DepartureTimes, p.TimeCounts = rankByFrequency(times)
	p.PriceCategories, _ = rankByFrequency(prices)
	p.DurationCategories, _ = rankByFrequency(durations)
	p.DaysOfWeek, _ = rankByFrequency(days)
	p.Months, _ = rankByFrequency(months)
	return p
}

// rankByFrequency returns the distinct values ordered by descending count,
// ties by first occurrence, along with the counts.
func rankByFrequency[T comparable](values []T) ([]T, map[T]int) {
	counts := make(map[T]int, len(values))
	order := make([]T, 0, len(values))
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	return order, counts
}

// Position returns the index of v in list, or -1.
func Position[T comparable](list []T, v T) int {
	for i, item := range list {
		if item == v {
			return i
		}
	}
	return -1
}
