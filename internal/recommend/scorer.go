// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package recommend

import (
	"github.com/tomtom215/skyrank/internal/recommend/features"
	"github.com/tomtom215/skyrank/internal/recommend/profile"
)

// Price ratios against the traveler's average that trigger the price
// adjustment.
const (
	CheapPriceRatio     = 0.8
	ExpensivePriceRatio = 1.3
)

// Components is the per-offer score breakdown.
type Components struct {
	Base        float64  `json:"base"`
	Airline     float64  `json:"airline"`
	Price       float64  `json:"price"`
	PriceAdjust float64  `json:"price_adjust"`
	Duration    float64  `json:"duration"`
	Direct      float64  `json:"direct"`
	Time        float64  `json:"time"`
	DayOfWeek   float64  `json:"day_of_week"`
	Month       float64  `json:"month"`
	Rules       float64  `json:"rules"`
	RuleMatches []string `json:"rule_matches,omitempty"`

	// UnseenCategories lists encoder columns whose value was not seen
	// during training.
	UnseenCategories []string `json:"unseen_categories,omitempty"`
}

// Total sums the components, floored at zero.
func (c *Components) Total() float64 {
	sum := c.Base + c.Airline + c.Price + c.PriceAdjust + c.Duration +
		c.Direct + c.Time + c.DayOfWeek + c.Month + c.Rules
	return max(sum, 0)
}

// scorer combines a base score with preference bonuses.
type scorer struct {
	weights Weights
	rules   *RuleSet
}

// score fills every component except UnseenCategories.
func (s *scorer) score(rec *features.Record, base float64, p *profile.TravelerProfile) (Components, error) {
	w := s.weights
	c := Components{Base: w.Base * base}

	c.Airline = rankBonus(p.PreferredAirlines, rec.Airline, w.Airline)

	c.Price = rankBonus(p.PriceCategories, features.CategorizePrice(rec.Price, p.AvgPrice), w.Price)
	if p.AvgPrice > 0 {
		switch {
		case rec.Price < CheapPriceRatio*p.AvgPrice:
			c.PriceAdjust = w.PriceAdjust
		case rec.Price > ExpensivePriceRatio*p.AvgPrice:
			c.PriceAdjust = -w.PriceAdjust
		}
	}

	c.Duration = rankBonus(p.DurationCategories, features.CategorizeDuration(rec.DurationHours), w.Duration)
	if rec.Direct && p.PrefersDirect {
		c.Direct = w.DirectBonus
	}

	c.Time = rankBonus(p.DepartureTimes, features.CategorizeHour(rec.DepartureHour), w.Time)
	c.DayOfWeek = rankBonus(p.DaysOfWeek, rec.DayOfWeek, w.DayOfWeek)
	c.Month = rankBonus(p.Months, rec.Month, w.Month)

	adjust, matched, err := s.rules.Apply(rec, p)
	if err != nil {
		return c, err
	}
	c.Rules = adjust
	c.RuleMatches = matched
	return c, nil
}

// rankBonus awards weight scaled by the inverse rank of v in list: full
// weight at the head, zero at the tail, full weight for a single-entry
// list and nothing when v is absent.
func rankBonus[T comparable](list []T, v T, weight float64) float64 {
	pos := profile.Position(list, v)
	if pos < 0 {
		return 0
	}
	if len(list) == 1 {
		return weight
	}
	return weight * (1 - float64(pos)/float64(len(list)-1))
}
