// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package validation

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/databuddy-analytics/basket/internal/config"
)

const (
	rateLimitCleanupInterval = 10 * time.Minute
	rateLimitStaleAfter      = time.Hour
)

// RateLimiter is the per-tenant rate oracle. Each client id gets its
// own token bucket, created on first use and evicted after an hour of
// inactivity by a background sweep.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rateLimiterEntry
	rate     rate.Limit
	burst    int
	disabled bool
	stop     chan struct{}
}

// rateLimiterEntry wraps a token bucket with its last access time.
type rateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewRateLimiter creates the oracle and starts its cleanup sweep.
// Callers must Stop it on shutdown.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rateLimiterEntry),
		rate:     rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.Burst,
		disabled: cfg.Disabled,
		stop:     make(chan struct{}),
	}
	go rl.startCleanup(rateLimitCleanupInterval)
	return rl
}

// Allow reports whether the tenant may submit another request now.
func (rl *RateLimiter) Allow(clientID string) bool {
	if rl.disabled {
		return true
	}

	rl.mu.Lock()
	entry, exists := rl.limiters[clientID]
	if !exists {
		entry = &rateLimiterEntry{
			limiter:    rate.NewLimiter(rl.rate, rl.burst),
			lastAccess: time.Now(),
		}
		rl.limiters[clientID] = entry
	} else {
		entry.lastAccess = time.Now()
	}
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.Allow()
}

// startCleanup periodically drops buckets for idle tenants.
func (rl *RateLimiter) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := time.Now().Add(-rateLimitStaleAfter)
	for clientID, entry := range rl.limiters {
		if entry.lastAccess.Before(threshold) {
			delete(rl.limiters, clientID)
		}
	}
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stop)
}
