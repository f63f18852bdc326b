// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/skyrank/internal/recommend/profile"
)

// TravelerPath identifies a traveler in the URL.
type TravelerPath struct {
	ID string `json:"traveler_id" validate:"required,identifier"`
}

// TravelerProfile handles GET /api/v1/travelers/{id}/profile.
// Accounts sharing the traveler's email are merged into the profile.
func (h *Handler) TravelerProfile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	path := TravelerPath{ID: chi.URLParam(r, "id")}
	if apiErr := validateRequest(&path); apiErr != nil {
		respondAPIError(w, r, apiErr)
		return
	}

	p, err := h.profiles.Build(r.Context(), profile.Subject{TravelerID: path.ID})
	switch {
	case errors.Is(err, profile.ErrUnknownTraveler):
		respondError(w, r, http.StatusNotFound, CodeNotFound, "Traveler not found", nil)
		return
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, CodeProfile, "Failed to build traveler profile", err)
		return
	}

	respondSuccess(w, r, http.StatusOK, p, time.Since(start))
}
