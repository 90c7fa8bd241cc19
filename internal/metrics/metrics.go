// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Intake Metrics
	IntakeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_events_total",
			Help: "Total number of events received, by type and outcome",
		},
		[]string{"type", "status"}, // status: "success", "ignored", "error"
	)

	IntakeRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_rejections_total",
			Help: "Total number of rejected or ignored events by stable error code",
		},
		[]string{"code"},
	)

	IntakeBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intake_batch_size",
			Help:    "Number of events in batch intake requests",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	IntakePayloadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intake_payload_bytes",
			Help:    "Raw request body size in bytes",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576},
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of middleware rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Broker Metrics
	KafkaPublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_publishes_total",
			Help: "Total number of broker publish attempts",
		},
		[]string{"topic", "result"}, // result: "success", "failure", "rejected"
	)

	KafkaPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_publish_duration_seconds",
			Help:    "Broker publish round-trip duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)

	KafkaConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kafka_connected",
			Help: "Broker connectivity (1=connected, 0=disconnected)",
		},
	)

	KafkaReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kafka_reconnects_total",
			Help: "Total number of broker reconnect attempts after failure",
		},
	)

	KafkaInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kafka_in_flight_publishes",
			Help: "Current number of publishes holding a semaphore slot",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Fallback Buffer Metrics
	BufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buffer_size",
			Help: "Current number of events in the fallback buffer",
		},
	)

	BufferEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buffer_enqueued_total",
			Help: "Total number of events entering the fallback buffer",
		},
	)

	BufferDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buffer_dropped_total",
			Help: "Total number of events discarded at the buffer hard limit",
		},
	)

	BufferInsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buffer_inserted_total",
			Help: "Total number of buffered events flushed into the store",
		},
	)

	BufferRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buffer_retries_total",
			Help: "Total number of buffered insert retry attempts",
		},
	)

	BufferFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "buffer_flush_duration_seconds",
			Help:    "Duration of fallback buffer flush cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	BufferFlushBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "buffer_flush_batch_size",
			Help:    "Number of events drained per flush cycle",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 5000, 10000},
		},
	)

	// Store Metrics
	StoreInsertDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_insert_duration_seconds",
			Help:    "Duration of bulk inserts in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	StoreInsertErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_insert_errors_total",
			Help: "Total number of failed bulk inserts",
		},
		[]string{"table"},
	)

	StoreRowsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_rows_inserted_total",
			Help: "Total number of rows written to the store",
		},
		[]string{"table"},
	)

	// Pipeline Metrics
	DedupChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_checks_total",
			Help: "Total number of dedup window decisions",
		},
		[]string{"outcome"}, // "unique", "duplicate", "error"
	)

	SaltFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "salt_fallback_total",
			Help: "Total number of ephemeral salt activations during cache outages",
		},
	)

	GeoLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_lookups_total",
			Help: "Total number of GeoIP lookups",
		},
		[]string{"result"}, // "ok", "miss", "error", "disabled"
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "salt", "dedup"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"cache_type"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordIntakeEvent records one event outcome. Rejections and ignores also
// carry their stable error code.
func RecordIntakeEvent(eventType, status, code string) {
	IntakeEventsTotal.WithLabelValues(eventType, status).Inc()
	if code != "" {
		IntakeRejectionsTotal.WithLabelValues(code).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordKafkaPublish records a broker publish attempt and its outcome.
func RecordKafkaPublish(topic string, duration time.Duration, err error) {
	KafkaPublishDuration.WithLabelValues(topic).Observe(duration.Seconds())
	result := "success"
	if err != nil {
		result = "failure"
	}
	KafkaPublishesTotal.WithLabelValues(topic, result).Inc()
}

// RecordKafkaRejected records a publish refused before reaching the broker
// (open breaker or saturated semaphore).
func RecordKafkaRejected(topic string) {
	KafkaPublishesTotal.WithLabelValues(topic, "rejected").Inc()
}

// SetKafkaConnected sets the broker connectivity gauge.
func SetKafkaConnected(connected bool) {
	if connected {
		KafkaConnected.Set(1)
	} else {
		KafkaConnected.Set(0)
	}
}

// RecordBreakerTransition records a circuit breaker state change and
// updates the state gauge.
func RecordBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordBreakerRequest records one request outcome through a breaker.
func RecordBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// RecordBufferFlush records one flush cycle.
func RecordBufferFlush(duration time.Duration, batchSize int) {
	BufferFlushDuration.Observe(duration.Seconds())
	BufferFlushBatchSize.Observe(float64(batchSize))
}

// RecordStoreInsert records a bulk insert attempt against one table.
func RecordStoreInsert(table string, rows int, duration time.Duration, err error) {
	StoreInsertDuration.WithLabelValues(table).Observe(duration.Seconds())
	if err != nil {
		StoreInsertErrors.WithLabelValues(table).Inc()
		return
	}
	StoreRowsInserted.WithLabelValues(table).Add(float64(rows))
}

// RecordDedupCheck records one dedup window decision.
func RecordDedupCheck(outcome string) {
	DedupChecksTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheHit records a cache hit for the given cache type
func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss for the given cache type
func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordCacheError records a cache operation error for the given cache type
func RecordCacheError(cacheType string) {
	CacheErrors.WithLabelValues(cacheType).Inc()
}

// SetAppInfo publishes the version and Go runtime labels once at startup.
func SetAppInfo(version string) {
	AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
}
