// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

// Package storage persists trained ranking artifacts.
//
// An Artifact bundles three opaque blobs (encoder, scaler, estimator) with
// metadata describing how and when it was trained. Artifacts are created by
// training, read by scoring, and never mutated in place. Exactly one
// artifact is active at a time.
//
// # Backends
//
//   - FileStore: a directory of {id}.gob.gz files plus an ACTIVE pointer
//     file replaced by rename
//   - BadgerStore: artifact:{id} records and an artifact:active pointer
//     written in one transaction
//   - the DuckDB model_artifacts table (package database)
//
// All backends activate a new artifact atomically: a concurrent reader
// sees either the previous or the new complete artifact.
//
// # Integrity
//
// A SHA-256 checksum over the three blobs is computed by Seal before
// saving and checked by Verify after loading.
package storage
