// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package cache

import (
	"context"
	"sync"
	"time"
)

// memEntry represents a cached item with expiration
type memEntry struct {
	value     string
	expiresAt time.Time
}

// Memory provides a thread-safe in-memory Store with per-key TTL.
//
// Thread Safety:
//   - Safe for concurrent access from multiple goroutines
//   - Uses sync.RWMutex for read/write locking
//   - Background cleanup goroutine runs until Close
//
// Performance:
//   - O(1) lookups with Go map
//   - Cleanup sweeps every 5 minutes; reads also expire lazily
//   - Tracks hits, misses, evictions for monitoring
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	stats   MemoryStats
	stop    chan struct{}
	once    sync.Once
}

// MemoryStats tracks in-memory cache performance counters.
type MemoryStats struct {
	mu          sync.RWMutex
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// NewMemory creates an in-memory Store and starts its cleanup goroutine.
func NewMemory() *Memory {
	m := &Memory{
		entries: make(map[string]memEntry),
		stats: MemoryStats{
			LastCleanup: time.Now(),
		},
		stop: make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

// Get retrieves a value, expiring it lazily when its TTL has passed.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	entry, exists := m.entries[key]
	m.mu.RUnlock()

	if !exists {
		m.recordMiss()
		return "", false, nil
	}

	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		m.recordMiss()
		m.recordEviction()
		return "", false, nil
	}

	m.recordHit()
	return entry.value, true, nil
}

// Set stores a value with the given TTL, overwriting any existing entry.
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}

	m.stats.mu.Lock()
	m.stats.TotalKeys = int64(len(m.entries))
	m.stats.mu.Unlock()
	return nil
}

// SetNX stores the value only if the key is absent or expired. The check
// and write happen under one lock, so concurrent callers agree on a
// single winner.
func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, exists := m.entries[key]; exists && now.Before(entry.expiresAt) {
		return false, nil
	}

	m.entries[key] = memEntry{
		value:     value,
		expiresAt: now.Add(ttl),
	}

	m.stats.mu.Lock()
	m.stats.TotalKeys = int64(len(m.entries))
	m.stats.mu.Unlock()
	return true, nil
}

// Delete removes a key. Deleting an absent key is a no-op.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()

	m.recordEviction()
	return nil
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

// GetStats returns a snapshot of current cache counters.
func (m *Memory) GetStats() MemoryStats {
	m.stats.mu.RLock()
	defer m.stats.mu.RUnlock()

	return MemoryStats{
		Hits:        m.stats.Hits,
		Misses:      m.stats.Misses,
		Evictions:   m.stats.Evictions,
		TotalKeys:   m.stats.TotalKeys,
		LastCleanup: m.stats.LastCleanup,
	}
}

// HitRate returns the cache hit rate as a percentage
func (m *Memory) HitRate() float64 {
	stats := m.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

// cleanupLoop periodically removes expired entries until Close.
func (m *Memory) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stop:
			return
		}
	}
}

// cleanup removes all expired entries
func (m *Memory) cleanup() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	evictions := int64(0)
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
			evictions++
		}
	}

	m.stats.mu.Lock()
	m.stats.Evictions += evictions
	m.stats.TotalKeys = int64(len(m.entries))
	m.stats.LastCleanup = now
	m.stats.mu.Unlock()
}

// recordHit increments the hit counter
func (m *Memory) recordHit() {
	m.stats.mu.Lock()
	m.stats.Hits++
	m.stats.mu.Unlock()
}

// recordMiss increments the miss counter
func (m *Memory) recordMiss() {
	m.stats.mu.Lock()
	m.stats.Misses++
	m.stats.mu.Unlock()
}

// recordEviction increments the eviction counter
func (m *Memory) recordEviction() {
	m.stats.mu.Lock()
	m.stats.Evictions++
	m.stats.mu.Unlock()
}
