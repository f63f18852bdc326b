// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/skyrank/internal/models"
	"github.com/tomtom215/skyrank/internal/recommend"
)

// ReadinessStatus is the body of the readiness probe.
type ReadinessStatus struct {
	Ready   bool              `json:"ready"`
	Checks  map[string]string `json:"checks"`
	Ranking recommend.Stats   `json:"ranking"`
	Uptime  float64           `json:"uptime_seconds"`
}

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}, 0)
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// Every registered check runs concurrently with its own timeout; any
// failure answers 503. A missing model is not a failure: ranking then
// degrades to returning offers unchanged.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]string, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, check CheckFunc) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), h.opts.CheckTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				results[i] = err.Error()
				return
			}
			results[i] = "ok"
		}(i, h.checks[name])
	}
	wg.Wait()

	status := ReadinessStatus{
		Ready:  true,
		Checks: make(map[string]string, len(names)),
		Uptime: time.Since(h.startTime).Seconds(),
	}
	for i, name := range names {
		status.Checks[name] = results[i]
		if results[i] != "ok" {
			status.Ready = false
		}
	}
	if h.ranker != nil {
		status.Ranking = h.ranker.Stats()
	}

	if !status.Ready {
		respondJSON(w, r, http.StatusServiceUnavailable, &models.APIResponse{
			Status:   "error",
			Data:     status,
			Metadata: models.Metadata{Timestamp: time.Now().UTC()},
			Error:    &models.APIError{Code: CodeNotReady, Message: "One or more dependencies are unavailable"},
		})
		return
	}
	respondSuccess(w, r, http.StatusOK, status, 0)
}
