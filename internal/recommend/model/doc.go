// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

/*
Package model contains the trainable components of a ranking artifact.

An artifact is three pieces fitted together by the training pipeline:

  - OneHotEncoder: categorical columns (airline, seat, meal, weekday,
    month) to indicator vectors, with an explicit unknown bucket
  - StandardScaler: zero-mean, unit-variance price
  - an Estimator producing a base relevance score in [0, 1]:
    KNNIndex (similarity to past bookings), or a RandomForest used as
    a classifier over price bands or as a relevance regressor

Featurizer combines encoder and scaler into the feature vector layout
[one-hot..., scaled price, direct]. Fitting is deterministic for a fixed
seed. Fitted components are immutable and safe for concurrent use.

Components serialize with gob and gzip (see Marshal and the Unmarshal
functions) so the storage layer can persist them as opaque blobs.
*/
package model
