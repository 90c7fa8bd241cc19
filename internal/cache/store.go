// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

// Package cache provides the shared key-value store backing the daily
// anonymization salt and the dedup window, plus local in-process caches.
package cache

import (
	"context"
	"time"
)

// Store is the shared cache contract used by the salt manager and the
// dedup window. Redis backs multi-replica deployments; the in-memory
// implementation serves single-replica and test setups.
//
// Usage:
//
//	store, err := cache.NewStore(cfg.Cache)
//	if err != nil { ... }
//	defer store.Close()
//
//	created, err := store.SetNX(ctx, "dedup:track:abc", "1", 24*time.Hour)
type Store interface {
	// Get retrieves a value. The second return is false when the key is
	// absent or expired; err is reserved for backend failures.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value with the given TTL, overwriting any existing entry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores the value only if the key is absent. Returns true when
	// this call created the entry. The atomicity of this operation is what
	// makes the dedup window and salt creation race-safe across replicas.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes a key. Removing an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// StoreConfig selects and configures a Store backend.
type StoreConfig struct {
	// RedisURL selects the Redis backend when non-empty
	// (e.g. redis://localhost:6379/0). Empty selects the in-memory store.
	RedisURL string
}

// NewStore creates a Store from configuration. An empty RedisURL yields
// the in-process store: correct for one replica, no cross-replica dedup
// agreement.
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.RedisURL == "" {
		return NewMemory(), nil
	}
	return NewRedis(cfg.RedisURL)
}

// Verify interface implementations at compile time
var (
	_ Store = (*Memory)(nil)
	_ Store = (*Redis)(nil)
)
