// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package api

// Machine-readable error codes of the API error envelope.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidJSON        = "INVALID_JSON"
	CodeNotFound           = "NOT_FOUND"
	CodeTrainingInProgress = "TRAINING_IN_PROGRESS"
	CodeTrainingDisabled   = "TRAINING_DISABLED"
	CodeInsufficientData   = "INSUFFICIENT_DATA"
	CodeStorage            = "STORAGE_ERROR"
	CodeRanking            = "RANKING_ERROR"
	CodeProfile            = "PROFILE_ERROR"
	CodeTraining           = "TRAINING_ERROR"
	CodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	CodeNotReady           = "NOT_READY"
)
