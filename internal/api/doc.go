// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

/*
Package api exposes the ranking engine, the training pipeline and the model
registry over HTTP using the Chi router.

# Endpoints

Ranking:
  - POST /api/v1/rank: rank offers for a traveler

Training and models:
  - POST /api/v1/training/run: start a run (202), or run synchronously with ?wait=true
  - GET  /api/v1/training/status: current and last run
  - GET  /api/v1/models: artifact history, newest first
  - GET  /api/v1/models/active: metadata of the active artifact
  - POST /api/v1/models/{id}/activate: roll back or forward to an artifact

Profiles:
  - GET /api/v1/travelers/{id}/profile: preference profile

Operations:
  - GET /api/v1/health/live, /api/v1/health/ready
  - GET /metrics: Prometheus exposition

# Responses

Every endpoint except /metrics answers with models.APIResponse:

	{"status":"success","data":{...},"metadata":{"timestamp":"...","request_id":"..."}}
	{"status":"error","data":null,"error":{"code":"VALIDATION_ERROR","message":"..."}}

A rank response carries the offers exactly as received plus
recommendation_score and is_recommended, sorted by descending score.

# Middleware

Global: request id with logging context, real IP, panic recovery, CORS,
security headers and Prometheus request metrics. Ranking and training
routes are rate limited per client IP with go-chi/httprate.
*/
package api
