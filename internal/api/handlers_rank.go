// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/skyrank/internal/recommend"
)

// RankRequestBody is the body of POST /api/v1/rank.
//
// Offers may be any JSON documents. A missing traveler is not an error:
// the offers come back unchanged with reason "no_traveler".
type RankRequestBody struct {
	TravelerID string            `json:"traveler_id,omitempty" validate:"omitempty,identifier"`
	Email      string            `json:"email,omitempty" validate:"omitempty,email,max=254"`
	K          int               `json:"k,omitempty" validate:"gte=0"`
	Debug      bool              `json:"debug,omitempty"`
	Offers     []json.RawMessage `json:"offers"`
}

// Rank handles POST /api/v1/rank.
//
// The response data is a recommend.RankResponse. Offers carry
// recommendation_score and is_recommended and are sorted by descending
// score; when ranking is not possible they are returned in input order
// without annotations and "personalized" is false. ?debug=true adds the
// score breakdown per offer.
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var body RankRequestBody
	if err := decodeJSONBody(r, &body); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	if apiErr := validateRequest(&body); apiErr != nil {
		respondAPIError(w, r, apiErr)
		return
	}

	resp, err := h.ranker.Rank(r.Context(), recommend.RankRequest{
		TravelerID: body.TravelerID,
		Email:      body.Email,
		Offers:     body.Offers,
		K:          body.K,
		Debug:      body.Debug || getBoolParam(r, "debug"),
	})
	if err != nil {
		if errors.Is(err, recommend.ErrInvalidRequest) {
			respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error(), nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, CodeRanking, "Failed to rank offers", err)
		return
	}

	respondSuccess(w, r, http.StatusOK, resp, time.Since(start))
}

// respondDecodeError maps body decoding failures to 413 or 400.
func respondDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, r, http.StatusRequestEntityTooLarge, CodeValidation, "Request body too large", nil)
		return
	}
	respondError(w, r, http.StatusBadRequest, CodeInvalidJSON, "Request body is not valid JSON", nil)
}
