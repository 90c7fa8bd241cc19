// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package validation

import (
	"testing"
	"time"

	"github.com/databuddy-analytics/basket/internal/config"
)

func TestRateLimiter_Burst(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 3})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("tenant-1") {
			t.Fatalf("Allow() call %d should pass within burst", i+1)
		}
	}
	if rl.Allow("tenant-1") {
		t.Error("Allow() should deny once the burst is exhausted")
	}
}

func TestRateLimiter_PerTenantIsolation(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	defer rl.Stop()

	if !rl.Allow("tenant-a") {
		t.Fatal("first request for tenant-a should pass")
	}
	if rl.Allow("tenant-a") {
		t.Error("second request for tenant-a should be denied")
	}
	if !rl.Allow("tenant-b") {
		t.Error("tenant-b should have its own untouched bucket")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1, Disabled: true})
	defer rl.Stop()

	for i := 0; i < 50; i++ {
		if !rl.Allow("tenant-1") {
			t.Fatal("disabled limiter should always allow")
		}
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 100, Burst: 1})
	defer rl.Stop()

	if !rl.Allow("tenant-1") {
		t.Fatal("first request should pass")
	}
	if rl.Allow("tenant-1") {
		t.Fatal("bucket should be empty immediately after")
	}

	// 100 req/s refills one token within 10ms.
	time.Sleep(20 * time.Millisecond)
	if !rl.Allow("tenant-1") {
		t.Error("bucket should have refilled")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	defer rl.Stop()

	rl.Allow("stale-tenant")
	rl.Allow("fresh-tenant")

	rl.mu.Lock()
	rl.limiters["stale-tenant"].lastAccess = time.Now().Add(-2 * time.Hour)
	rl.mu.Unlock()

	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.limiters["stale-tenant"]; ok {
		t.Error("cleanup() should evict entries idle for over an hour")
	}
	if _, ok := rl.limiters["fresh-tenant"]; !ok {
		t.Error("cleanup() should keep recently used entries")
	}
}
