// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package features

// Time-of-day buckets.
const (
	Morning   = "morning"
	Afternoon = "afternoon"
	Evening   = "evening"
	Night     = "night"
)

// Duration buckets.
const (
	Short  = "short"
	Medium = "medium"
	Long   = "long"
)

// Price buckets, relative to a traveler's average price.
const (
	PriceLow    = "low"
	PriceMedium = "medium"
	PriceHigh   = "high"
)

// Price bucket boundaries as ratios of the average.
const (
	LowPriceRatio  = 0.8
	HighPriceRatio = 1.2
)

// CategorizeHour buckets a departure hour: morning [5,12), afternoon
// [12,17), evening [17,22), night otherwise.
func CategorizeHour(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return Morning
	case hour >= 12 && hour < 17:
		return Afternoon
	case hour >= 17 && hour < 22:
		return Evening
	default:
		return Night
	}
}

// CategorizeDuration buckets a duration in hours.
func CategorizeDuration(hours float64) string {
	switch {
	case hours < 2:
		return Short
	case hours <= 5:
		return Medium
	default:
		return Long
	}
}

// CategorizePrice buckets price against avg.
func CategorizePrice(price, avg float64) string {
	switch {
	case price < avg*LowPriceRatio:
		return PriceLow
	case price > avg*HighPriceRatio:
		return PriceHigh
	default:
		return PriceMedium
	}
}
