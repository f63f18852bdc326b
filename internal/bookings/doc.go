// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

/*
Package bookings reads booking history from the booking system of record.

Two implementations satisfy Source:

  - PostgresSource reads the booking system's PostgreSQL schema through gorm
  - database.DB reads the local DuckDB mirror

Breaker wraps any Source with a circuit breaker. When the history backend
fails repeatedly the breaker opens and calls fail fast with
gobreaker.ErrOpenState, so ranking degrades to unchanged offers without
waiting on timeouts.

Circuit breaker states are exported as the skyrank_booking_source_circuit_state
gauge: 0 closed, 1 half-open, 2 open.
*/
package bookings
