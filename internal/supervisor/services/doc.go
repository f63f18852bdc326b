// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

// Package services wraps the long-running parts of Skyrank as suture
// services: the HTTP server, the training scheduler and the profile refresh.
//
// Every Serve method blocks until its context is canceled and returns
// ctx.Err() on a clean stop. Errors from a single iteration (a failed
// training run, an unreachable booking source) are logged and retried on the
// next tick instead of being returned, so suture only restarts a service for
// genuine faults such as a listener that cannot bind.
package services
