// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// getCounterValue extracts the current value from a counter.
func getCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m io_prometheus_client.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

// getGaugeValue extracts the current value from a gauge.
func getGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m io_prometheus_client.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("writing gauge metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

// getHistogramCount extracts the sample count from a histogram.
func getHistogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m io_prometheus_client.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("writing histogram metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestRecordIntakeEvent(t *testing.T) {
	successBefore := getCounterValue(t, IntakeEventsTotal.WithLabelValues("track", "success"))
	rejectBefore := getCounterValue(t, IntakeRejectionsTotal.WithLabelValues("duplicate"))

	RecordIntakeEvent("track", "success", "")
	RecordIntakeEvent("track", "success", "duplicate")

	successAfter := getCounterValue(t, IntakeEventsTotal.WithLabelValues("track", "success"))
	if successAfter != successBefore+2 {
		t.Errorf("intake_events_total = %v, want %v", successAfter, successBefore+2)
	}
	rejectAfter := getCounterValue(t, IntakeRejectionsTotal.WithLabelValues("duplicate"))
	if rejectAfter != rejectBefore+1 {
		t.Errorf("intake_rejections_total = %v, want %v", rejectAfter, rejectBefore+1)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := getCounterValue(t, APIRequestsTotal.WithLabelValues("POST", "/batch", "200"))

	RecordAPIRequest("POST", "/batch", "200", 15*time.Millisecond)

	after := getCounterValue(t, APIRequestsTotal.WithLabelValues("POST", "/batch", "200"))
	if after != before+1 {
		t.Errorf("api_requests_total = %v, want %v", after, before+1)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	base := getGaugeValue(t, APIActiveRequests)

	TrackActiveRequest(true)
	if v := getGaugeValue(t, APIActiveRequests); v != base+1 {
		t.Errorf("api_active_requests = %v, want %v", v, base+1)
	}
	TrackActiveRequest(false)
	if v := getGaugeValue(t, APIActiveRequests); v != base {
		t.Errorf("api_active_requests = %v, want %v", v, base)
	}
}

func TestRecordKafkaPublish(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		before := getCounterValue(t, KafkaPublishesTotal.WithLabelValues("analytics-events", "success"))
		RecordKafkaPublish("analytics-events", 5*time.Millisecond, nil)
		after := getCounterValue(t, KafkaPublishesTotal.WithLabelValues("analytics-events", "success"))
		if after != before+1 {
			t.Errorf("kafka_publishes_total{success} = %v, want %v", after, before+1)
		}
	})

	t.Run("failure", func(t *testing.T) {
		before := getCounterValue(t, KafkaPublishesTotal.WithLabelValues("analytics-errors", "failure"))
		RecordKafkaPublish("analytics-errors", 5*time.Millisecond, errors.New("broker down"))
		after := getCounterValue(t, KafkaPublishesTotal.WithLabelValues("analytics-errors", "failure"))
		if after != before+1 {
			t.Errorf("kafka_publishes_total{failure} = %v, want %v", after, before+1)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		before := getCounterValue(t, KafkaPublishesTotal.WithLabelValues("analytics-events", "rejected"))
		RecordKafkaRejected("analytics-events")
		after := getCounterValue(t, KafkaPublishesTotal.WithLabelValues("analytics-events", "rejected"))
		if after != before+1 {
			t.Errorf("kafka_publishes_total{rejected} = %v, want %v", after, before+1)
		}
	})
}

func TestSetKafkaConnected(t *testing.T) {
	SetKafkaConnected(true)
	if v := getGaugeValue(t, KafkaConnected); v != 1 {
		t.Errorf("kafka_connected = %v, want 1", v)
	}
	SetKafkaConnected(false)
	if v := getGaugeValue(t, KafkaConnected); v != 0 {
		t.Errorf("kafka_connected = %v, want 0", v)
	}
}

func TestRecordBreakerTransition(t *testing.T) {
	RecordBreakerTransition("kafka", "closed", "open")

	if v := getGaugeValue(t, CircuitBreakerState.WithLabelValues("kafka")); v != 2 {
		t.Errorf("circuit_breaker_state = %v, want 2 (open)", v)
	}

	RecordBreakerTransition("kafka", "open", "half-open")
	if v := getGaugeValue(t, CircuitBreakerState.WithLabelValues("kafka")); v != 1 {
		t.Errorf("circuit_breaker_state = %v, want 1 (half-open)", v)
	}

	RecordBreakerTransition("kafka", "half-open", "closed")
	if v := getGaugeValue(t, CircuitBreakerState.WithLabelValues("kafka")); v != 0 {
		t.Errorf("circuit_breaker_state = %v, want 0 (closed)", v)
	}
}

func TestBreakerStateValue(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"half-open", 1},
		{"open", 2},
		{"unknown", 0},
	}
	for _, tt := range tests {
		if got := breakerStateValue(tt.state); got != tt.want {
			t.Errorf("breakerStateValue(%q) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestRecordStoreInsert(t *testing.T) {
	t.Run("success adds rows", func(t *testing.T) {
		rowsBefore := getCounterValue(t, StoreRowsInserted.WithLabelValues("events"))
		RecordStoreInsert("events", 42, 10*time.Millisecond, nil)
		rowsAfter := getCounterValue(t, StoreRowsInserted.WithLabelValues("events"))
		if rowsAfter != rowsBefore+42 {
			t.Errorf("store_rows_inserted_total = %v, want %v", rowsAfter, rowsBefore+42)
		}
	})

	t.Run("failure counts error not rows", func(t *testing.T) {
		rowsBefore := getCounterValue(t, StoreRowsInserted.WithLabelValues("errors"))
		errsBefore := getCounterValue(t, StoreInsertErrors.WithLabelValues("errors"))
		RecordStoreInsert("errors", 10, 10*time.Millisecond, errors.New("connection refused"))
		if v := getCounterValue(t, StoreRowsInserted.WithLabelValues("errors")); v != rowsBefore {
			t.Errorf("store_rows_inserted_total moved on failure: %v", v)
		}
		if v := getCounterValue(t, StoreInsertErrors.WithLabelValues("errors")); v != errsBefore+1 {
			t.Errorf("store_insert_errors_total = %v, want %v", v, errsBefore+1)
		}
	})
}

func TestRecordBufferFlush(t *testing.T) {
	durBefore := getHistogramCount(t, BufferFlushDuration)
	sizeBefore := getHistogramCount(t, BufferFlushBatchSize)

	RecordBufferFlush(20*time.Millisecond, 150)

	if v := getHistogramCount(t, BufferFlushDuration); v != durBefore+1 {
		t.Errorf("buffer_flush_duration_seconds count = %d, want %d", v, durBefore+1)
	}
	if v := getHistogramCount(t, BufferFlushBatchSize); v != sizeBefore+1 {
		t.Errorf("buffer_flush_batch_size count = %d, want %d", v, sizeBefore+1)
	}
}

func TestRecordDedupCheck(t *testing.T) {
	for _, outcome := range []string{"unique", "duplicate", "error"} {
		before := getCounterValue(t, DedupChecksTotal.WithLabelValues(outcome))
		RecordDedupCheck(outcome)
		after := getCounterValue(t, DedupChecksTotal.WithLabelValues(outcome))
		if after != before+1 {
			t.Errorf("dedup_checks_total{%s} = %v, want %v", outcome, after, before+1)
		}
	}
}

func TestRecordCacheMetrics(t *testing.T) {
	hitBefore := getCounterValue(t, CacheHits.WithLabelValues("salt"))
	missBefore := getCounterValue(t, CacheMisses.WithLabelValues("salt"))
	errBefore := getCounterValue(t, CacheErrors.WithLabelValues("dedup"))

	RecordCacheHit("salt")
	RecordCacheMiss("salt")
	RecordCacheError("dedup")

	if v := getCounterValue(t, CacheHits.WithLabelValues("salt")); v != hitBefore+1 {
		t.Errorf("cache_hits_total = %v, want %v", v, hitBefore+1)
	}
	if v := getCounterValue(t, CacheMisses.WithLabelValues("salt")); v != missBefore+1 {
		t.Errorf("cache_misses_total = %v, want %v", v, missBefore+1)
	}
	if v := getCounterValue(t, CacheErrors.WithLabelValues("dedup")); v != errBefore+1 {
		t.Errorf("cache_errors_total = %v, want %v", v, errBefore+1)
	}
}

func TestSetAppInfo(t *testing.T) {
	SetAppInfo("test-version")

	// The gauge must exist with value 1 for the version label.
	found := false
	ch := make(chan prometheus.Metric, 10)
	AppInfo.Collect(ch)
	close(ch)
	for m := range ch {
		var dto io_prometheus_client.Metric
		if err := m.Write(&dto); err != nil {
			t.Fatalf("writing app_info metric: %v", err)
		}
		for _, l := range dto.GetLabel() {
			if l.GetName() == "version" && l.GetValue() == "test-version" {
				found = true
				if dto.GetGauge().GetValue() != 1 {
					t.Errorf("app_info = %v, want 1", dto.GetGauge().GetValue())
				}
			}
		}
	}
	if !found {
		t.Error("app_info gauge with version label not found")
	}
}
