// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

// Package dedup suppresses replayed events within a TTL window.
//
// Accepting an event claims "dedup:{type}:{id}" in the shared cache
// with set-if-absent semantics, so racing replicas agree on at most one
// acceptance per key. The window is 24h, extended to 48h for
// pagehide-class "exit_*" ids, which browsers are prone to re-firing
// when a tab is restored. Deduplication is advisory: a cache error
// fails open and admits the event, since dropping live traffic costs
// more than a rare double row downstream.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/databuddy-analytics/basket/internal/cache"
	"github.com/databuddy-analytics/basket/internal/logging"
	"github.com/databuddy-analytics/basket/internal/metrics"
)

const (
	defaultWindow = 24 * time.Hour
	exitWindow    = 48 * time.Hour
	exitPrefix    = "exit_"
)

// Check outcomes recorded in metrics.
const (
	outcomeFirstSeen = "first_seen"
	outcomeDuplicate = "duplicate"
	outcomeError     = "error"
)

// Deduplicator is the event replay window. Safe for concurrent use.
type Deduplicator struct {
	store cache.Store
}

// New creates a deduplicator backed by the shared cache.
func New(store cache.Store) *Deduplicator {
	return &Deduplicator{store: store}
}

// IsDuplicate reports whether (eventType, eventID) was already accepted
// within its window, claiming the key when first seen. Events without
// an id are never duplicates.
func (d *Deduplicator) IsDuplicate(ctx context.Context, eventType, eventID string) bool {
	if eventID == "" {
		return false
	}

	key := fmt.Sprintf("dedup:%s:%s", eventType, eventID)
	created, err := d.store.SetNX(ctx, key, "1", windowFor(eventID))
	if err != nil {
		metrics.RecordDedupCheck(outcomeError)
		metrics.RecordCacheError("dedup")
		logging.Debug().
			Err(err).
			Str("event_type", eventType).
			Msg("dedup check failed, admitting event")
		return false
	}

	if created {
		metrics.RecordDedupCheck(outcomeFirstSeen)
		return false
	}
	metrics.RecordDedupCheck(outcomeDuplicate)
	return true
}

// windowFor returns the TTL for an event id.
func windowFor(eventID string) time.Duration {
	if strings.HasPrefix(eventID, exitPrefix) {
		return exitWindow
	}
	return defaultWindow
}
