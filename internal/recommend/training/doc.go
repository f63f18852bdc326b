// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

// Package training fits ranking models from confirmed booking history.
//
// A run loads confirmed bookings inside the lookback window, builds one row
// per booking, fits a one-hot encoder and a price scaler, fits the
// configured estimator (knn, classifier or regressor), evaluates it on held
// out data and persists the result as a new active artifact.
//
// Runs are serialized. A run that fails at any stage leaves the previously
// active artifact in place.
package training
