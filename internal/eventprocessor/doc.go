// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

// Package eventprocessor turns validated raw events into canonical
// records and delivers them to Kafka, falling back to direct ClickHouse
// inserts when the broker path is unavailable.
//
// # Overview
//
// The package owns the delivery half of the ingestion pipeline:
//
//	RawEvent ──> Builder ──> Record ──> Pipeline.Publish
//	                                        │
//	                          broker up     │     broker down
//	                        ┌───────────────┴───────────────┐
//	                        ▼                               ▼
//	                  Producer (Kafka)              FallbackBuffer
//	                  gzip, key=tenant              grouped bulk
//	                  one topic per kind            inserts (store)
//
// Delivery is best effort from the client's point of view: a request is
// acknowledged once its records are handed to the pipeline, and broker
// failures are absorbed by the fallback buffer rather than surfaced as
// HTTP errors.
//
// # Builder
//
// BuildRecord assembles one of the five canonical record shapes from a
// validated raw event plus tenant id, enrichment, and the already
// salted visitor id. It owns the defensive field rules: performance
// metrics are clamped to [0, 600000] ms, non-finite numbers become
// NULL, malformed session ids are replaced with fresh random ids, and
// non-object properties collapse to "{}".
//
// # Producer
//
// The Producer wraps a franz-go client with three gates that keep a
// dead broker from stalling intake:
//
//   - a weighted semaphore caps in-flight publishes
//   - a reconnect cooldown stops per-event dial storms after a failure
//   - a circuit breaker short-circuits publishes after consecutive
//     failures and probes recovery with a single request
//
// Any gate that trips routes the record to the fallback buffer. The
// Producer never touches the buffer itself; routing lives in Pipeline.
//
// # Fallback buffer
//
// The FallbackBuffer accumulates records the broker could not take and
// flushes them to the EventStore on a timer, on a soft size threshold,
// and once more during shutdown. Failed groups are re-enqueued with a
// bounded retry count; a hard cap sheds load when the store is also
// down.
//
// # Concurrency
//
// Publish is safe for concurrent use. Buffer flushes swap the queue
// under a mutex and insert outside it, so enqueues never block on the
// store. Close drains the buffer and waits for in-flight publishes
// before releasing the broker connection.
package eventprocessor
