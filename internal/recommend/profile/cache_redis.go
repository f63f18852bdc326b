// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package profile

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tomtom215/skyrank/internal/metrics"
)

// RedisCache shares profiles between service replicas through Redis.
// Values are JSON encoded TravelerProfiles.
type RedisCache struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// NewRedisCache connects to Redis and verifies the connection with PING.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRedisCache(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "skyrank:profile:"
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "profile-cache").Logger(),
	}, nil
}

// Get returns the cached profile, treating any Redis error as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (*TravelerProfile, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", key).Msg("profile cache read failed")
		}
		metrics.RecordProfileCache("redis", false)
		return nil, false
	}

	var p TravelerProfile
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cached profile")
		metrics.RecordProfileCache("redis", false)
		return nil, false
	}
	metrics.RecordProfileCache("redis", true)
	return &p, true
}

// Set stores the profile with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, p *TravelerProfile, ttl time.Duration) {
	data, err := json.Marshal(p)
	if err != nil {
		c.logger.Warn().Err(err).Msg("encode profile for cache")
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("profile cache write failed")
	}
}

// Ping checks connectivity; used by the readiness probe.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
