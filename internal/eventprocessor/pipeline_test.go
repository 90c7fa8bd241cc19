// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package eventprocessor

import (
	"context"
	"errors"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/databuddy-analytics/basket/internal/models"
)

// bogusRecord has no routing destination.
type bogusRecord struct{}

func (bogusRecord) EventType() string { return "bogus" }
func (bogusRecord) TenantID() string  { return "client-1" }

func newTestPipeline(t *testing.T, producer *Producer) (*Pipeline, *mockStore) {
	t.Helper()
	store := newMockStore()
	buf, err := NewFallbackBuffer(store, testBufferConfig())
	if err != nil {
		t.Fatalf("NewFallbackBuffer() error = %v", err)
	}
	pipeline, err := NewPipeline(producer, buf)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	return pipeline, store
}

func TestNewPipeline_NilBuffer(t *testing.T) {
	if _, err := NewPipeline(nil, nil); err == nil {
		t.Error("NewPipeline(nil, nil) error = nil, want error")
	}
}

func TestPipeline_FallbackOnly(t *testing.T) {
	pipeline, store := newTestPipeline(t, nil)
	ctx := context.Background()

	if err := pipeline.Publish(ctx, testTrackRecord("t-1")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	health := pipeline.Health()
	if health.Status != "disabled" || health.Enabled {
		t.Errorf("Health() = %+v, want disabled without a broker", health)
	}
	if stats := pipeline.Stats(); stats.Buffered != 1 || stats.BufferSize != 1 {
		t.Errorf("Stats() = %+v, want one buffered record", stats)
	}

	if err := pipeline.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := len(store.Rows("events")); got != 1 {
		t.Errorf("events rows = %d, want 1", got)
	}
}

func TestPipeline_BrokerDelivery(t *testing.T) {
	brokers := newFakeCluster(t)
	p := newTestProducer(t, testKafkaConfig(brokers))
	pipeline, _ := newTestPipeline(t, p)
	ctx := context.Background()

	if err := p.EnsureTopics(ctx); err != nil {
		t.Fatalf("EnsureTopics() error = %v", err)
	}
	if err := pipeline.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer pipeline.Shutdown(ctx) //nolint:errcheck

	ev := &models.RawEvent{
		Type:      models.EventTypeTrack,
		Name:      "screen_view",
		SessionID: "sess-1",
		Path:      "/landing",
	}
	rec, dest, err := BuildRecord(BuildInput{
		TenantID:    "client-1",
		Event:       ev,
		AnonymousID: "salted-visitor",
		Now:         time.Now(),
	})
	if err != nil {
		t.Fatalf("BuildRecord() error = %v", err)
	}
	if err := pipeline.Publish(ctx, rec); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	records := consumeRecords(t, brokers, dest.Topic, 1)
	if got := string(records[0].Key); got != "client-1" {
		t.Errorf("record key = %q, want client-1", got)
	}

	var decoded models.TrackRecord
	if err := json.Unmarshal(records[0].Value, &decoded); err != nil {
		t.Fatalf("message value is not a track record: %v", err)
	}
	if decoded.EventName != "screen_view" || decoded.Path != "/landing" {
		t.Errorf("decoded record = %+v, want the built fields", decoded)
	}
	if decoded.AnonymousID != "salted-visitor" {
		t.Errorf("AnonymousID = %q, want salted-visitor", decoded.AnonymousID)
	}

	if stats := pipeline.Stats(); stats.Sent != 1 || stats.Buffered != 0 {
		t.Errorf("Stats() = %+v, want one sent and none buffered", stats)
	}
	if health := pipeline.Health(); health.Status != "ok" || !health.Connected {
		t.Errorf("Health() = %+v, want ok and connected", health)
	}
}

func TestPipeline_FallsBackWhenBrokerDown(t *testing.T) {
	cfg := testKafkaConfig([]string{"127.0.0.1:1"})
	cfg.PublishTimeout = time.Second
	p := newTestProducer(t, cfg)
	pipeline, _ := newTestPipeline(t, p)
	ctx := context.Background()

	// The client must never see the broker failure.
	if err := pipeline.Publish(ctx, testTrackRecord("t-1")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if stats := pipeline.Stats(); stats.Buffered != 1 {
		t.Errorf("Stats().Buffered = %d, want 1", stats.Buffered)
	}
	if health := pipeline.Health(); health.Status != "degraded" || !health.Failed {
		t.Errorf("Health() = %+v, want degraded and failed", health)
	}
}

func TestPipeline_PublishAll(t *testing.T) {
	brokers := newFakeCluster(t)
	p := newTestProducer(t, testKafkaConfig(brokers))
	pipeline, _ := newTestPipeline(t, p)
	ctx := context.Background()

	if err := p.EnsureTopics(ctx); err != nil {
		t.Fatalf("EnsureTopics() error = %v", err)
	}

	recs := []models.Record{
		testTrackRecord("t-1"),
		testTrackRecord("t-2"),
		&models.CustomEventRecord{ID: "c-1", ClientID: "client-1", EventName: "signup", Properties: "{}"},
	}
	if err := pipeline.PublishAll(ctx, recs); err != nil {
		t.Fatalf("PublishAll() error = %v", err)
	}

	trackRecords := consumeRecords(t, brokers, TopicEvents, 2)
	if len(trackRecords) != 2 {
		t.Errorf("track records = %d, want 2", len(trackRecords))
	}
	customRecords := consumeRecords(t, brokers, TopicCustomEvents, 1)
	if len(customRecords) != 1 {
		t.Errorf("custom records = %d, want 1", len(customRecords))
	}
	if stats := pipeline.Stats(); stats.Sent != 3 {
		t.Errorf("Stats().Sent = %d, want 3", stats.Sent)
	}
}

func TestPipeline_PublishAllFallsBack(t *testing.T) {
	cfg := testKafkaConfig([]string{"127.0.0.1:1"})
	cfg.PublishTimeout = time.Second
	p := newTestProducer(t, cfg)
	pipeline, store := newTestPipeline(t, p)
	ctx := context.Background()

	recs := []models.Record{
		testTrackRecord("t-1"),
		testTrackRecord("t-2"),
		&models.CustomEventRecord{ID: "c-1", ClientID: "client-1", EventName: "signup", Properties: "{}"},
	}
	if err := pipeline.PublishAll(ctx, recs); err != nil {
		t.Fatalf("PublishAll() error = %v", err)
	}

	// Every record of the failed sets lands in the buffer individually.
	if stats := pipeline.Stats(); stats.Buffered != 3 {
		t.Errorf("Stats().Buffered = %d, want 3", stats.Buffered)
	}
	if err := pipeline.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := len(store.Rows("events")); got != 2 {
		t.Errorf("events rows = %d, want 2", got)
	}
	if got := len(store.Rows("custom_events")); got != 1 {
		t.Errorf("custom_events rows = %d, want 1", got)
	}
}

func TestPipeline_UnknownRecordType(t *testing.T) {
	pipeline, _ := newTestPipeline(t, nil)

	err := pipeline.Publish(context.Background(), bogusRecord{})
	if !errors.Is(err, ErrUnknownEventType) {
		t.Errorf("Publish(bogus) error = %v, want ErrUnknownEventType", err)
	}
	err = pipeline.PublishAll(context.Background(), []models.Record{bogusRecord{}})
	if !errors.Is(err, ErrUnknownEventType) {
		t.Errorf("PublishAll(bogus) error = %v, want ErrUnknownEventType", err)
	}
}

func TestPipeline_ShutdownDrains(t *testing.T) {
	cfg := testKafkaConfig([]string{"127.0.0.1:1"})
	cfg.PublishTimeout = time.Second
	p := newTestProducer(t, cfg)
	pipeline, store := newTestPipeline(t, p)
	ctx := context.Background()

	if err := pipeline.Publish(ctx, testTrackRecord("t-1")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pipeline.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if got := len(store.Rows("events")); got != 1 {
		t.Errorf("events rows = %d, want the buffered record flushed", got)
	}

	if err := pipeline.Publish(ctx, testTrackRecord("t-late")); !errors.Is(err, ErrPipelineClosed) {
		t.Errorf("Publish() after Shutdown error = %v, want ErrPipelineClosed", err)
	}
	// Shutdown twice is a no-op.
	if err := pipeline.Shutdown(shutdownCtx); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestStatsLogger_StopsOnCancel(t *testing.T) {
	pipeline, _ := newTestPipeline(t, nil)
	logger := NewStatsLogger(pipeline, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- logger.Serve(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not stop on cancel")
	}

	if got := logger.String(); got != "pipeline-stats" {
		t.Errorf("String() = %q, want pipeline-stats", got)
	}
}
