// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router sets up HTTP routes using the Chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router over handler. A nil config uses
// DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, config *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(config),
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered
	r.Use(PrometheusMetrics)

	// ========================
	// Health Endpoints
	// ========================
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// ========================
	// Core API Endpoints
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(MaxBodyBytes(router.handler.opts.MaxBodyBytes))

		r.Post("/rank", router.handler.Rank)

		r.Route("/training", func(r chi.Router) {
			r.With(router.chiMiddleware.RateLimitTraining()).Post("/run", router.handler.TrainingRun)
			r.Get("/status", router.handler.TrainingStatus)
		})

		r.Route("/models", func(r chi.Router) {
			r.Get("/", router.handler.ListModels)
			r.Get("/active", router.handler.ActiveModel)
			r.Post("/{id}/activate", router.handler.ActivateModel)
		})

		r.Get("/travelers/{id}/profile", router.handler.TravelerProfile)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
