// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/skyrank/internal/logging"
	"github.com/tomtom215/skyrank/internal/recommend/storage"
	"github.com/tomtom215/skyrank/internal/recommend/training"
)

// TrainingRunResponse is returned by a synchronous training run.
type TrainingRunResponse struct {
	Artifact storage.Metadata `json:"artifact"`
}

// TrainingAccepted is returned when a run was started in the background.
type TrainingAccepted struct {
	Accepted bool            `json:"accepted"`
	Status   training.Status `json:"status"`
}

// TrainingRun handles POST /api/v1/training/run.
//
// Without ?wait=true the run starts in the background and the handler
// answers 202. With it the handler blocks until the run finishes and
// returns the new artifact's metadata. A run already in progress yields
// 409; too little history yields 422 and leaves the active artifact as is.
func (h *Handler) TrainingRun(w http.ResponseWriter, r *http.Request) {
	if h.trainer == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeTrainingDisabled, "Training is disabled", nil)
		return
	}

	if !getBoolParam(r, "wait") {
		h.startBackgroundRun(w, r)
		return
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.TrainTimeout)
	defer cancel()

	artifact, err := h.trainer.Run(ctx)
	if err != nil {
		h.respondTrainingError(w, r, err)
		return
	}
	h.ranker.InvalidateModel()

	respondSuccess(w, r, http.StatusOK, TrainingRunResponse{Artifact: artifact.Metadata}, time.Since(start))
}

func (h *Handler) startBackgroundRun(w http.ResponseWriter, r *http.Request) {
	if h.trainer.Status().Running {
		respondError(w, r, http.StatusConflict, CodeTrainingInProgress, "A training run is already in progress", nil)
		return
	}

	// Detached from the request so the run outlives the response; ids stay
	// attached for log correlation.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.opts.TrainTimeout)
	h.runs.Add(1)
	go func() {
		defer h.runs.Done()
		defer cancel()

		logger := logging.Ctx(ctx)
		artifact, err := h.trainer.Run(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("training run requested over HTTP failed")
			return
		}
		h.ranker.InvalidateModel()
		logger.Info().
			Str("artifact_id", artifact.ID).
			Int("version", artifact.Version).
			Msg("training run requested over HTTP completed")
	}()

	respondSuccess(w, r, http.StatusAccepted, TrainingAccepted{Accepted: true, Status: h.trainer.Status()}, 0)
}

func (h *Handler) respondTrainingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, training.ErrTrainingInProgress):
		respondError(w, r, http.StatusConflict, CodeTrainingInProgress, "A training run is already in progress", nil)
	case errors.Is(err, training.ErrInsufficientTrainingData):
		respondError(w, r, http.StatusUnprocessableEntity, CodeInsufficientData, err.Error(), nil)
	default:
		respondError(w, r, http.StatusInternalServerError, CodeTraining, "Training run failed", err)
	}
}

// TrainingStatus handles GET /api/v1/training/status.
func (h *Handler) TrainingStatus(w http.ResponseWriter, r *http.Request) {
	if h.trainer == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeTrainingDisabled, "Training is disabled", nil)
		return
	}
	respondSuccess(w, r, http.StatusOK, h.trainer.Status(), 0)
}
