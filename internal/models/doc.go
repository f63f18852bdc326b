// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

/*
Package models defines the data structures shared across Skyrank.

Key Components:

  - Traveler: an account that books flights; accounts sharing an email
    belong to the same person
  - Booking: one historical flight booking, the raw material for traveler
    profiles and model training
  - APIResponse: the envelope every HTTP endpoint returns

Booking history arrives from either the local DuckDB mirror or the
Postgres booking system of record. Both produce the same Booking value.
*/
package models
