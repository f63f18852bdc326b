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

	"github.com/tomtom215/skyrank/internal/recommend/storage"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// ModelPath identifies an artifact in the URL.
type ModelPath struct {
	ID string `json:"id" validate:"required,identifier"`
}

// ModelActivated is returned after a successful activation.
type ModelActivated struct {
	Activated string `json:"activated"`
}

// ListModels handles GET /api/v1/models?limit=N.
// Returns artifact metadata newest first; exactly one entry is active.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	limit := getIntParam(r, "limit", defaultHistoryLimit)
	if limit < 1 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	history, err := h.models.ListHistory(r.Context(), limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeStorage, "Failed to list model artifacts", err)
		return
	}
	if history == nil {
		history = []storage.Metadata{}
	}

	respondSuccess(w, r, http.StatusOK, history, time.Since(start))
}

// ActiveModel handles GET /api/v1/models/active.
func (h *Handler) ActiveModel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	artifact, err := h.models.LoadActive(r.Context())
	switch {
	case errors.Is(err, storage.ErrNoActiveArtifact):
		respondError(w, r, http.StatusNotFound, CodeNotFound, "No model artifact is active", nil)
		return
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, CodeStorage, "Failed to load the active model artifact", err)
		return
	}

	respondSuccess(w, r, http.StatusOK, artifact.Metadata, time.Since(start))
}

// ActivateModel handles POST /api/v1/models/{id}/activate.
// The engine picks the artifact up on its next request.
func (h *Handler) ActivateModel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	path := ModelPath{ID: chi.URLParam(r, "id")}
	if apiErr := validateRequest(&path); apiErr != nil {
		respondAPIError(w, r, apiErr)
		return
	}

	err := h.models.Activate(r.Context(), path.ID)
	switch {
	case errors.Is(err, storage.ErrArtifactNotFound):
		respondError(w, r, http.StatusNotFound, CodeNotFound, "Model artifact not found", nil)
		return
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, CodeStorage, "Failed to activate model artifact", err)
		return
	}
	h.ranker.InvalidateModel()

	respondSuccess(w, r, http.StatusOK, ModelActivated{Activated: path.ID}, time.Since(start))
}
