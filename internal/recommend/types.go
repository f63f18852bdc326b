// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package recommend

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var (
	// ErrModelUnavailable means no usable artifact is active.
	ErrModelUnavailable = errors.New("ranking model unavailable")

	// ErrInvalidRequest is returned for requests that cannot be ranked.
	ErrInvalidRequest = errors.New("invalid rank request")
)

// Reason explains why a response was not personalized, or how it was.
type Reason string

// Reasons reported on RankResponse.
const (
	ReasonPersonalized       Reason = "personalized"
	ReasonColdStart          Reason = "cold_start"
	ReasonEmpty              Reason = "empty"
	ReasonNoTraveler         Reason = "no_traveler"
	ReasonUnknownTraveler    Reason = "unknown_traveler"
	ReasonModelUnavailable   Reason = "model_unavailable"
	ReasonProfileUnavailable Reason = "profile_unavailable"
)

// RankRequest asks for offers to be ranked for a traveler.
type RankRequest struct {
	// TravelerID identifies the traveler's account.
	TravelerID string `json:"traveler_id,omitempty"`

	// Email resolves every account registered with it. Used alone when
	// TravelerID is empty.
	Email string `json:"email,omitempty"`

	// Offers are raw offer documents of any shape.
	Offers []json.RawMessage `json:"offers"`

	// K is the number of offers to flag. Zero means the configured default.
	K int `json:"k,omitempty"`

	// Debug includes the score breakdown on each offer.
	Debug bool `json:"debug,omitempty"`
}

// RankResponse is the ranked result.
type RankResponse struct {
	// Offers has one entry per input offer.
	Offers []ScoredOffer `json:"offers"`

	// Personalized is false when offers are returned unchanged.
	Personalized bool   `json:"personalized"`
	Reason       Reason `json:"reason"`

	ArtifactID      string `json:"artifact_id,omitempty"`
	ArtifactVersion int    `json:"artifact_version,omitempty"`
	BookingCount    int    `json:"booking_count"`
	Recommended     int    `json:"recommended"`
	Failed          int    `json:"failed,omitempty"`
	LatencyMS       int64  `json:"latency_ms"`
	RequestID       string `json:"request_id,omitempty"`
}

// ScoredOffer is an input offer with its ranking annotations.
type ScoredOffer struct {
	// Offer is the raw input document.
	Offer json.RawMessage

	// Index is the offer's position in the request.
	Index int

	Score       float64
	Recommended bool

	// Scored is false for offers returned unchanged.
	Scored bool

	// Error describes a scoring failure; the offer got the failure score.
	Error string

	// Components is set when the request asked for debug output.
	Components *Components
}

// MarshalJSON renders the original offer with recommendation_score and
// is_recommended added. Offers that are not JSON objects are wrapped as
// {"offer": ...}. Unscored offers are rendered exactly as received.
func (o ScoredOffer) MarshalJSON() ([]byte, error) {
	raw := bytes.TrimSpace(o.Offer)
	if len(raw) == 0 {
		raw = []byte("null")
	}
	if !o.Scored {
		return raw, nil
	}

	fields := make(map[string]json.RawMessage)
	if raw[0] != '{' || json.Unmarshal(raw, &fields) != nil {
		fields = map[string]json.RawMessage{"offer": raw}
	}

	add := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		fields[key] = b
		return nil
	}
	if err := add("recommendation_score", o.Score); err != nil {
		return nil, err
	}
	if err := add("is_recommended", o.Recommended); err != nil {
		return nil, err
	}
	if o.Components != nil {
		if err := add("score_components", o.Components); err != nil {
			return nil, err
		}
	}
	if o.Error != "" {
		if err := add("scoring_error", o.Error); err != nil {
			return nil, err
		}
	}
	return json.Marshal(fields)
}
