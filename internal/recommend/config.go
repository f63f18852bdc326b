// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package recommend

import (
	"fmt"
	"time"
)

// Config contains all configuration for the ranking engine.
type Config struct {
	// Weights defines the contribution of each score component.
	// Weights are not normalized.
	Weights Weights `koanf:"weights" json:"weights"`

	// MinBookings is the confirmed booking count below which the cold
	// start ordering is used.
	// Default: 3.
	MinBookings int `koanf:"min_bookings" json:"min_bookings"`

	// DefaultK is the number of offers flagged as recommended.
	// Default: 3.
	DefaultK int `koanf:"default_k" json:"default_k"`

	// MaxK caps the K a caller may request.
	// Default: 50.
	MaxK int `koanf:"max_k" json:"max_k"`

	// MaxOffers caps the offers accepted per request.
	// Default: 500.
	MaxOffers int `koanf:"max_offers" json:"max_offers"`

	// ColdStartScore is assigned to every offer under cold start.
	// Default: 0.1.
	ColdStartScore float64 `koanf:"cold_start_score" json:"cold_start_score"`

	// FailureScore is assigned to an offer that failed to score. Failed
	// offers sort after every scored offer regardless of this value.
	// Default: 0.01.
	FailureScore float64 `koanf:"failure_score" json:"failure_score"`

	// ArtifactRefresh is how often the active artifact id is rechecked.
	// Default: 30s.
	ArtifactRefresh time.Duration `koanf:"artifact_refresh" json:"artifact_refresh"`

	// TrainOnMissingModel starts a background training run when no
	// artifact is available.
	// Default: false.
	TrainOnMissingModel bool `koanf:"train_on_missing_model" json:"train_on_missing_model"`

	// OnDemandTrainInterval is the minimum gap between on-demand runs.
	// Default: 10m.
	OnDemandTrainInterval time.Duration `koanf:"on_demand_train_interval" json:"on_demand_train_interval"`

	// Rules are optional CEL score adjustments.
	Rules []Rule `koanf:"rules" json:"rules,omitempty"`
}

// Weights defines the contribution of each score component.
type Weights struct {
	// Base scales the model score.
	// Default: 0.20.
	Base float64 `koanf:"base" json:"base"`

	// Airline is the full bonus for the traveler's most booked airline.
	// Default: 0.35.
	Airline float64 `koanf:"airline" json:"airline"`

	// Price is the full bonus for the most booked price category.
	// Default: 0.30.
	Price float64 `koanf:"price" json:"price"`

	// Duration is the full bonus for the most booked duration category.
	// Default: 0.20.
	Duration float64 `koanf:"duration" json:"duration"`

	// Time is the full bonus for the most booked time of day.
	// Default: 0.15.
	Time float64 `koanf:"time" json:"time"`

	// DayOfWeek is the full bonus for the most booked weekday.
	// Default: 0.05.
	DayOfWeek float64 `koanf:"day_of_week" json:"day_of_week"`

	// Month is the full bonus for the most booked month.
	// Default: 0.05.
	Month float64 `koanf:"month" json:"month"`

	// PriceAdjust is added below 0.8x and subtracted above 1.3x the
	// traveler's average price.
	// Default: 0.10.
	PriceAdjust float64 `koanf:"price_adjust" json:"price_adjust"`

	// DirectBonus is added for a direct offer when the traveler prefers
	// direct flights.
	// Default: 0.05.
	DirectBonus float64 `koanf:"direct_bonus" json:"direct_bonus"`
}

// DefaultWeights returns the default component weights.
func DefaultWeights() Weights {
	return Weights{
		Base:        0.20,
		Airline:     0.35,
		Price:       0.30,
		Duration:    0.20,
		Time:        0.15,
		DayOfWeek:   0.05,
		Month:       0.05,
		PriceAdjust: 0.10,
		DirectBonus: 0.05,
	}
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Weights:               DefaultWeights(),
		MinBookings:           3,
		DefaultK:              3,
		MaxK:                  50,
		MaxOffers:             500,
		ColdStartScore:        0.1,
		FailureScore:          0.01,
		ArtifactRefresh:       30 * time.Second,
		OnDemandTrainInterval: 10 * time.Minute,
	}
}

// Validate checks the configuration and compiles rules.
func (c *Config) Validate() error {
	w := c.Weights
	for name, v := range map[string]float64{
		"base": w.Base, "airline": w.Airline, "price": w.Price, "duration": w.Duration,
		"time": w.Time, "day_of_week": w.DayOfWeek, "month": w.Month,
		"price_adjust": w.PriceAdjust, "direct_bonus": w.DirectBonus,
	} {
		if v < 0 {
			return fmt.Errorf("weights.%s must be non-negative, got %f", name, v)
		}
	}

	if c.MinBookings < 0 {
		return fmt.Errorf("min_bookings must be non-negative, got %d", c.MinBookings)
	}
	if c.DefaultK < 1 {
		return fmt.Errorf("default_k must be positive, got %d", c.DefaultK)
	}
	if c.MaxK < c.DefaultK {
		return fmt.Errorf("max_k must be >= default_k, got %d < %d", c.MaxK, c.DefaultK)
	}
	if c.MaxOffers < 1 {
		return fmt.Errorf("max_offers must be positive, got %d", c.MaxOffers)
	}
	if c.ColdStartScore <= 0 {
		return fmt.Errorf("cold_start_score must be positive, got %f", c.ColdStartScore)
	}
	if c.FailureScore < 0 {
		return fmt.Errorf("failure_score must be non-negative, got %f", c.FailureScore)
	}
	if c.ArtifactRefresh < 0 {
		return fmt.Errorf("artifact_refresh must be non-negative, got %v", c.ArtifactRefresh)
	}
	if c.TrainOnMissingModel && c.OnDemandTrainInterval <= 0 {
		return fmt.Errorf("on_demand_train_interval must be positive, got %v", c.OnDemandTrainInterval)
	}
	if _, err := CompileRules(c.Rules); err != nil {
		return err
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.Rules = append([]Rule(nil), c.Rules...)
	return &out
}
