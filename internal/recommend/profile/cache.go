// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package profile

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/skyrank/internal/metrics"
)

// Cache stores built profiles. Implementations swallow backend errors:
// a cache failure degrades to a rebuild, never to a failed request.
type Cache interface {
	Get(ctx context.Context, key string) (*TravelerProfile, bool)
	Set(ctx context.Context, key string, p *TravelerProfile, ttl time.Duration)
}

type memoryEntry struct {
	profile   *TravelerProfile
	expiresAt time.Time
}

// MemoryCache is an in-process Cache bounded by entry count.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

// NewMemoryCache creates an in-process cache holding at most maxEntries profiles.
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns a cached, unexpired profile.
func (c *MemoryCache) Get(_ context.Context, key string) (*TravelerProfile, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		metrics.RecordProfileCache("memory", false)
		return nil, false
	}
	metrics.RecordProfileCache("memory", true)
	return entry.profile, true
}

// Set stores p until ttl elapses.
func (c *MemoryCache) Set(_ context.Context, key string, p *TravelerProfile, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictExpiredLocked()
	}
	if len(c.entries) >= c.maxEntries {
		// Still full: drop an arbitrary entry.
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[key] = memoryEntry{profile: p, expiresAt: c.now().Add(ttl)}
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictExpiredLocked removes expired entries. Must be called with mu held.
func (c *MemoryCache) evictExpiredLocked() {
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
