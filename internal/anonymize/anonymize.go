// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

// Package anonymize derives the per-day salted anonymous ids.
//
// A raw client identifier is never stored; records carry
// SHA-256(raw || daily_salt) hex. The salt lives in the shared cache
// under "salt:{day}" with a 24h TTL and set-if-absent creation, so all
// replicas agree on it within a UTC day and linkability is bounded to
// that day. When the cache is unreachable the anonymizer degrades to a
// process-local ephemeral salt for the current day, trading
// cross-replica agreement for availability.
package anonymize

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/databuddy-analytics/basket/internal/cache"
	"github.com/databuddy-analytics/basket/internal/logging"
	"github.com/databuddy-analytics/basket/internal/metrics"
)

const (
	millisPerDay = 86_400_000
	saltBytes    = 32
	saltTTL      = 24 * time.Hour
)

// Anonymizer owns daily salt resolution. Safe for concurrent use.
type Anonymizer struct {
	store cache.Store
	now   func() time.Time

	mu           sync.Mutex
	fallbackDay  int64
	fallbackSalt string
	degraded     bool
}

// New creates an anonymizer backed by the shared cache.
func New(store cache.Store) *Anonymizer {
	return NewWithClock(store, time.Now)
}

// NewWithClock injects the clock; tests use it to cross day boundaries.
func NewWithClock(store cache.Store, now func() time.Time) *Anonymizer {
	return &Anonymizer{store: store, now: now}
}

// DailySalt returns the shared salt for the current UTC day, creating
// it on first use. Callers resolve the salt once per request and reuse
// it for every event in that request, so a midnight crossing mid-batch
// still salts consistently.
func (a *Anonymizer) DailySalt(ctx context.Context) string {
	day := a.now().UnixMilli() / millisPerDay
	key := fmt.Sprintf("salt:%d", day)

	value, found, err := a.store.Get(ctx, key)
	if err != nil {
		return a.ephemeralSalt(day, err)
	}
	if found {
		a.markHealthy()
		return value
	}

	fresh := randomHex(saltBytes)
	created, err := a.store.SetNX(ctx, key, fresh, saltTTL)
	if err != nil {
		return a.ephemeralSalt(day, err)
	}
	if !created {
		// Lost the creation race; read the winner's value.
		value, found, err = a.store.Get(ctx, key)
		if err != nil {
			return a.ephemeralSalt(day, err)
		}
		if found {
			a.markHealthy()
			return value
		}
	}
	a.markHealthy()
	return fresh
}

// Salt returns SHA-256(rawID || salt), hex-encoded. Pure and
// deterministic: identical inputs always yield the identical id.
func Salt(rawID, salt string) string {
	sum := sha256.Sum256([]byte(rawID + salt))
	return hex.EncodeToString(sum[:])
}

// Anonymize is the one-shot form: resolves the daily salt and salts
// rawID with it. Batch callers should resolve DailySalt once instead.
func (a *Anonymizer) Anonymize(ctx context.Context, rawID string) string {
	return Salt(rawID, a.DailySalt(ctx))
}

// ephemeralSalt serves salt from process memory while the cache is
// unreachable. The salt is regenerated per UTC day, matching the
// rotation contract; the warning fires once per outage, the counter on
// every degraded call.
func (a *Anonymizer) ephemeralSalt(day int64, cause error) string {
	metrics.SaltFallbackTotal.Inc()

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.degraded {
		a.degraded = true
		logging.Warn().
			Err(cause).
			Int64("day", day).
			Msg("salt cache unavailable, using process-local ephemeral salt")
	}
	if a.fallbackDay != day || a.fallbackSalt == "" {
		a.fallbackDay = day
		a.fallbackSalt = randomHex(saltBytes)
	}
	return a.fallbackSalt
}

func (a *Anonymizer) markHealthy() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.degraded {
		a.degraded = false
		logging.Info().Msg("salt cache recovered, shared salt restored")
	}
}

// randomHex returns n random bytes hex-encoded. rand.Read never fails.
func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
