// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package instruments the ingestion pipeline using the Prometheus client
library, exposing metrics for throughput, rejection reasons, broker health,
fallback-buffer pressure, and store performance.

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:4000/metrics

# Available Metrics

Intake Metrics:
  - intake_events_total: Events received, by outcome (counter)
    Labels: type, status (success, ignored, error)
  - intake_rejections_total: Rejections by stable error code (counter)
    Labels: code
  - intake_batch_size: Events per batch request (histogram)
  - intake_payload_bytes: Raw request body size (histogram)

API Metrics:
  - api_requests_total: Total HTTP requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
  - api_active_requests: In-flight requests (gauge)
  - api_rate_limit_hits_total: Middleware rate-limit rejections (counter)
    Labels: endpoint

Broker Metrics:
  - kafka_publishes_total: Publish attempts (counter)
    Labels: topic, result (success, failure, rejected)
  - kafka_publish_duration_seconds: Publish round-trip latency (histogram)
    Labels: topic
  - kafka_connected: Broker connectivity, 1 when connected (gauge)
  - kafka_reconnects_total: Reconnect attempts after failure (counter)
  - kafka_in_flight_publishes: Publishes holding a semaphore slot (gauge)

Circuit Breaker Metrics:
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total: Requests through the breaker (counter)
    Labels: name, result (success, failure, rejected)
  - circuit_breaker_state_transitions_total: State changes (counter)
    Labels: name, from_state, to_state

Fallback Buffer Metrics:
  - buffer_size: Events currently queued (gauge)
  - buffer_enqueued_total: Events entering the buffer (counter)
  - buffer_dropped_total: Events discarded at the hard limit (counter)
  - buffer_inserted_total: Events flushed into the store (counter)
  - buffer_retries_total: Insert retry attempts (counter)
  - buffer_flush_duration_seconds: Flush cycle duration (histogram)
  - buffer_flush_batch_size: Events per flush cycle (histogram)

Store Metrics:
  - store_insert_duration_seconds: Bulk insert duration (histogram)
    Labels: table
  - store_insert_errors_total: Failed bulk inserts (counter)
    Labels: table
  - store_rows_inserted_total: Rows written (counter)
    Labels: table

Pipeline Metrics:
  - dedup_checks_total: Dedup window decisions (counter)
    Labels: outcome (unique, duplicate, error)
  - salt_fallback_total: Ephemeral-salt activations during cache outages (counter)
  - geo_lookups_total: GeoIP lookups (counter)
    Labels: result (ok, miss, error, disabled)
  - cache_hits_total / cache_misses_total / cache_errors_total: Shared-cache
    operations (counters)
    Labels: cache_type (salt, dedup)

System Metrics:
  - app_info: Version and build information (gauge)
    Labels: version, go_version
  - app_uptime_seconds: Process uptime (gauge)

# Integration

Metrics are registered via promauto at package load. The HTTP handler comes
from promhttp and is mounted by the API router.
*/
package metrics
