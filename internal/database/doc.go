// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

/*
Package database provides the DuckDB service database for Skyrank.

The database holds three tables:

  - travelers: traveler accounts, keyed by id, with the email used to merge
    accounts when a profile is requested by email
  - bookings: the local booking history mirror used for profiles and
    training when the bookings backend is "duckdb"
  - model_artifacts: versioned ranking model artifacts with a single active row

Schema:

The schema is created by versioned migrations tracked in schema_migrations.
Migrations are append-only; each runs exactly once per database file.

Booking Access:

DB implements both booking sources consumed by the ranking engine:

	profile.BookingSource   - TravelerIDsByEmail, ConfirmedBookings
	training.BookingSource  - AllConfirmedBookings

plus RecentTravelerIDs for the scheduled profile refresh.

Artifact Store:

ArtifactStore implements storage.ArtifactStore on model_artifacts. SaveNew
and Activate deactivate the previous row and activate the new one inside a
single transaction. Readers select the newest active row, so a concurrent
reader observes either the old or the new artifact.

Thread Safety:

All methods are safe for concurrent use. DuckDB transaction conflicts on
artifact writes are retried with a short backoff.

Usage Example:

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
	    return err
	}
	defer db.Close()

	store := database.NewArtifactStore(db)
	builder := profile.NewBuilder(db, cache, profileCfg, logger)
*/
package database
