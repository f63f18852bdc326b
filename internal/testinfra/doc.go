// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

// Package testinfra provides containers for integration tests.
//
// All files carry the integration build tag; run with:
//
//	go test -tags integration ./...
//
// # PostgreSQL
//
// PostgresContainer backs the gorm booking source:
//
//	pg, err := testinfra.NewPostgresContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer testinfra.CleanupContainer(t, ctx, pg)
//
//	src, err := bookings.OpenPostgres(bookings.Config{DSN: pg.DSN, MaxOpenConns: 2}, zerolog.Nop())
//
// # Redis
//
// RedisContainer backs the shared profile cache:
//
//	rd, err := testinfra.NewRedisContainer(ctx)
//	cache, err := profile.NewRedisCache(ctx, profile.RedisConfig{Addr: rd.Addr}, zerolog.Nop())
//
// Tests are skipped when Docker is unavailable.
package testinfra
