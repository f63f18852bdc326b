// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

/*
Package config loads Skyrank configuration with Koanf v2.

# Configuration Sources

Sources are layered, later layers overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. YAML file: CONFIG_PATH, config.yaml, config.yml, /etc/skyrank/config.yaml
 3. Environment variables, after an optional .env file is loaded

Only mapped environment variables are read (see envTransformFunc); anything
else in the environment is ignored.

# Sections

  - server:    HTTP listener
  - database:  DuckDB service database
  - bookings:  booking history backend (duckdb or postgres) and its breaker
  - artifacts: model artifact store backend (duckdb, badger or file)
  - ranking:   scorer weights, K, cold start and CEL rules
  - training:  estimator, evaluation and schedule
  - profiles:  lookback, cache backend and scheduled refresh
  - security:  CORS and rate limiting
  - logging:   level, format and caller

# Environment Variables

A selection of the supported variables:

	HTTP_PORT=3860
	DUCKDB_PATH=/data/skyrank.duckdb
	BOOKINGS_BACKEND=postgres
	BOOKINGS_DSN=postgres://skyrank:secret@db:5432/bookings
	ARTIFACTS_BACKEND=badger
	RANKING_DEFAULT_K=3
	TRAINING_STRATEGY=knn
	TRAINING_INTERVAL=24h
	PROFILES_CACHE=redis
	REDIS_ADDR=redis:6379
	CORS_ORIGINS=https://app.example.com,https://admin.example.com
	LOG_LEVEL=debug

# Usage

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
*/
package config
