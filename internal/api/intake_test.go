// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/databuddy-analytics/basket/internal/anonymize"
	"github.com/databuddy-analytics/basket/internal/cache"
	"github.com/databuddy-analytics/basket/internal/config"
	"github.com/databuddy-analytics/basket/internal/dedup"
	"github.com/databuddy-analytics/basket/internal/enrich"
	"github.com/databuddy-analytics/basket/internal/eventprocessor"
	"github.com/databuddy-analytics/basket/internal/models"
	"github.com/databuddy-analytics/basket/internal/validation"
)

const trackBody = `{"type":"track","name":"screen_view","anonymousId":"a","sessionId":"s","timestamp":1700000000000,"path":"/x"}`

// fakeStore collects bulk inserts so tests can assert what drained out
// of the fallback buffer.
type fakeStore struct {
	mu   sync.Mutex
	rows map[string][]models.Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string][]models.Record)}
}

func (s *fakeStore) InsertRows(_ context.Context, table string, rows []models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[table] = append(s.rows[table], rows...)
	return nil
}

func (s *fakeStore) Rows(table string) []models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Record(nil), s.rows[table]...)
}

func testConfig() *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{Environment: "production"},
		Buffer:     config.BufferConfig{FlushInterval: time.Hour, SoftLimit: 100, HardLimit: 1000, MaxRetries: 3},
		Validation: config.ValidationConfig{MaxPayloadBytes: 1 << 20},
		Security:   config.SecurityConfig{CORSOrigins: []string{"*"}},
	}
}

type testEnv struct {
	handler  *Handler
	pipeline *eventprocessor.Pipeline
	store    *fakeStore
	anon     *anonymize.Anonymizer
}

// newTestEnv wires a handler onto a fallback-only pipeline unless a
// producer is supplied. Records drain into the fake store on Shutdown.
func newTestEnv(t *testing.T, cfg *config.Config, producer *eventprocessor.Producer, mutate func(*Deps)) *testEnv {
	t.Helper()

	store := newFakeStore()
	buf, err := eventprocessor.NewFallbackBuffer(store, cfg.Buffer)
	if err != nil {
		t.Fatalf("NewFallbackBuffer() error = %v", err)
	}
	pipeline, err := eventprocessor.NewPipeline(producer, buf)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	t.Cleanup(func() { _ = pipeline.Shutdown(context.Background()) })

	mem := cache.NewMemory()
	anon := anonymize.New(mem)
	deps := Deps{
		Config:     cfg,
		Anonymizer: anon,
		Dedup:      dedup.New(mem),
		Enricher:   enrich.New(nil),
		Pipeline:   pipeline,
		Cache:      mem,
		Version:    "test",
	}
	if mutate != nil {
		mutate(&deps)
	}
	handler, err := NewHandler(deps)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return &testEnv{handler: handler, pipeline: pipeline, store: store, anon: anon}
}

// drain shuts the pipeline down so buffered records land in the store.
func (env *testEnv) drain(t *testing.T) {
	t.Helper()
	if err := env.pipeline.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func postJSON(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) models.IntakeResult {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var res models.IntakeResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	return res
}

func decodeBatch(t *testing.T, rec *httptest.ResponseRecorder) models.BatchResult {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var res models.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding batch result: %v", err)
	}
	return res
}

func TestNewHandler_RequiredDeps(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil, nil)
	mem := cache.NewMemory()
	valid := Deps{
		Config:     testConfig(),
		Anonymizer: anonymize.New(mem),
		Dedup:      dedup.New(mem),
		Enricher:   enrich.New(nil),
		Pipeline:   env.pipeline,
	}

	tests := []struct {
		name    string
		mutate  func(*Deps)
		wantErr string
	}{
		{"nil config", func(d *Deps) { d.Config = nil }, "config required"},
		{"nil pipeline", func(d *Deps) { d.Pipeline = nil }, "pipeline required"},
		{"nil anonymizer", func(d *Deps) { d.Anonymizer = nil }, "anonymizer required"},
		{"nil dedup", func(d *Deps) { d.Dedup = nil }, "deduplicator required"},
		{"nil enricher", func(d *Deps) { d.Enricher = nil }, "enricher required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := valid
			tt.mutate(&deps)
			_, err := NewHandler(deps)
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("NewHandler() error = %v, want %q", err, tt.wantErr)
			}
		})
	}

	if _, err := NewHandler(valid); err != nil {
		t.Errorf("NewHandler() with full deps error = %v", err)
	}
}

func TestHandleEvent_TrackSuccess(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil, nil)

	rec := httptest.NewRecorder()
	env.handler.HandleEvent(rec, postJSON("/?client_id=client-1", trackBody))

	res := decodeResult(t, rec)
	if res.Status != models.StatusSuccess || res.Type != models.EventTypeTrack {
		t.Fatalf("result = %+v, want a track success", res)
	}

	env.drain(t)
	rows := env.store.Rows("events")
	if len(rows) != 1 {
		t.Fatalf("events rows = %d, want 1", len(rows))
	}
	track, ok := rows[0].(*models.TrackRecord)
	if !ok {
		t.Fatalf("row type = %T, want *models.TrackRecord", rows[0])
	}
	if track.ClientID != "client-1" || track.EventName != "screen_view" || track.Path != "/x" {
		t.Errorf("row = %+v, want the submitted fields", track)
	}

	salt := env.anon.DailySalt(context.Background())
	if want := anonymize.Salt("a", salt); track.AnonymousID != want {
		t.Errorf("AnonymousID = %q, want %q", track.AnonymousID, want)
	}
}

func TestHandleEvent_PolicyDenials(t *testing.T) {
	dir := validation.NewTenantDirectory([]config.TenantConfig{
		{ClientID: "client-1", Name: "Site", Active: true, AllowedOrigins: []string{"https://app.example.com"}},
		{ClientID: "paused", Name: "Paused", Active: false},
	})
	env := newTestEnv(t, testConfig(), nil, func(d *Deps) { d.Tenants = dir })

	tests := []struct {
		name     string
		clientID string
		origin   string
		wantMsg  string
	}{
		{"missing client id", "", "", "Missing client_id"},
		{"unknown client id", "ghost", "", "Unknown client_id"},
		{"inactive tenant", "paused", "", "Tenant is inactive"},
		{"origin not allowed", "client-1", "https://evil.example", "Origin not allowed for this tenant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/"
			if tt.clientID != "" {
				target += "?client_id=" + tt.clientID
			}
			req := postJSON(target, trackBody)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			env.handler.HandleEvent(rec, req)

			res := decodeResult(t, rec)
			if res.Status != models.StatusError || res.Code != models.CodeAuthFailed {
				t.Errorf("result = %+v, want an auth_failed error", res)
			}
			if res.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", res.Message, tt.wantMsg)
			}
		})
	}

	env.drain(t)
	if got := len(env.store.Rows("events")); got != 0 {
		t.Errorf("events rows = %d, want none for denied requests", got)
	}
}

func TestHandleEvent_RateLimited(t *testing.T) {
	limiter := validation.NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	t.Cleanup(limiter.Stop)
	env := newTestEnv(t, testConfig(), nil, func(d *Deps) { d.RateLimit = limiter })

	rec := httptest.NewRecorder()
	env.handler.HandleEvent(rec, postJSON("/?client_id=client-1", trackBody))
	if res := decodeResult(t, rec); res.Status != models.StatusSuccess {
		t.Fatalf("first result = %+v, want success", res)
	}

	rec = httptest.NewRecorder()
	env.handler.HandleEvent(rec, postJSON("/?client_id=client-1", trackBody))
	res := decodeResult(t, rec)
	if res.Status != models.StatusError || res.Code != models.CodeRateLimited {
		t.Errorf("second result = %+v, want rate_limited", res)
	}
	if res.Message != "Rate limit exceeded" {
		t.Errorf("message = %q, want %q", res.Message, "Rate limit exceeded")
	}
}

func TestHandleEvent_InvalidJSON(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil, nil)

	rec := httptest.NewRecorder()
	env.handler.HandleEvent(rec, postJSON("/?client_id=client-1", "{not json"))

	res := decodeResult(t, rec)
	if res.Status != models.StatusError || res.Code != models.CodeInvalidRequest {
		t.Errorf("result = %+v, want invalid_request", res)
	}
	if res.Message != "Invalid JSON payload" {
		t.Errorf("message = %q, want %q", res.Message, "Invalid JSON payload")
	}
}

func TestHandleEvent_UnknownType(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil, nil)

	rec := httptest.NewRecorder()
	env.handler.HandleEvent(rec, postJSON("/?client_id=client-1", `{"type":"blorp"}`))

	res := decodeResult(t, rec)
	if res.Status != models.StatusError || res.Code != models.CodeInvalidRequest {
		t.Errorf("result = %+v, want invalid_request", res)
	}
	if res.Message != "Unknown event type" {
		t.Errorf("message = %q, want %q", res.Message, "Unknown event type")
	}
}

func TestHandleEvent_BotIgnored(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil, nil)

	req := postJSON("/?client_id=client-1", trackBody)
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	rec := httptest.NewRecorder()
	env.handler.HandleEvent(rec, req)

	res := decodeResult(t, rec)
	if res.Status != models.StatusIgnored || res.Reason != models.ReasonBot {
		t.Errorf("result = %+v, want ignored with bot reason", res)
	}

	env.drain(t)
	if got := len(env.store.Rows("events")); got != 0 {
		t.Errorf("events rows = %d, want none for bot traffic", got)
	}
}

func TestHandleEvent_FilteredMessageIgnored(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil, nil)

	body := `{"type":"error","payload":{"eventId":"e-f","message":"Script error.","path":"/x"}}`
	rec := httptest.NewRecorder()
	env.handler.HandleEvent(rec, postJSON("/?client_id=client-1", body))

	res := decodeResult(t, rec)
	if res.Status != models.StatusIgnored || res.Type != models.EventTypeError {
		t.Fatalf("result = %+v, want an ignored error event", res)
	}
	if res.Reason != models.ReasonFilteredMessage {
		t.Errorf("reason = %q, want %q", res.Reason, models.ReasonFilteredMessage)
	}

	env.drain(t)
	if got := len(env.store.Rows("errors")); got != 0 {
		t.Errorf("errors rows = %d, want none for filtered messages", got)
	}
}

func TestHandleEvent_SchemaInvalid(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil, nil)

	rec := httptest.NewRecorder()
	env.handler.HandleEvent(rec, postJSON("/?client_id=client-1", `{"type":"track"}`))

	res := decodeResult(t, rec)
	if res.Status != models.StatusError || res.Code != models.CodeSchemaInvalid {
		t.Fatalf("result = %+v, want schema_invalid", res)
	}
	if res.Type != models.EventTypeTrack {
		t.Errorf("type = %q, want track", res.Type)
	}
	if len(res.Errors) == 0 {
		t.Error("errors list is empty, want the validation issues")
	}
}

func TestHandleEvent_DevelopmentSkipsSchema(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Environment = "development"
	env := newTestEnv(t, cfg, nil, nil)

	rec := httptest.NewRecorder()
	env.handler.HandleEvent(rec, postJSON("/?client_id=client-1", `{"type":"track"}`))

	if res := decodeResult(t, rec); res.Status != models.StatusSuccess {
		t.Fatalf("result = %+v, want success in development mode", res)
	}

	env.drain(t)
	if got := len(env.store.Rows("events")); got != 1 {
		t.Errorf("events rows = %d, want 1", got)
	}
}

func TestHandleEvent_DuplicateSkipped(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil, nil)
	body := `{"type":"error","payload":{"eventId":"e1","message":"boom","path":"/x"}}`

	rec := httptest.NewRecorder()
	env.handler.HandleEvent(rec, postJSON("/?client_id=client-1", body))
	first := decodeResult(t, rec)
	if first.Status != models.StatusSuccess || first.EventID != "e1" {
		t.Fatalf("first result = %+v, want success with eventId e1", first)
	}

	rec = httptest.NewRecorder()
	env.handler.HandleEvent(rec, postJSON("/?client_id=client-1", body))
	second := decodeResult(t, rec)
	if second.Status != models.StatusSuccess || second.Type != models.EventTypeError {
		t.Fatalf("second result = %+v, want a silent duplicate success", second)
	}

	env.drain(t)
	if got := len(env.store.Rows("errors")); got != 1 {
		t.Errorf("errors rows = %d, want exactly one for the replayed event", got)
	}
}

func TestHandleEvent_BrokerDownFallsBack(t *testing.T) {
	kcfg := config.KafkaConfig{
		Brokers:           []string{"127.0.0.1:1"},
		ClientID:          "basket-test",
		PublishTimeout:    time.Second,
		MaxInFlight:       4,
		ReconnectCooldown: 10 * time.Second,
	}
	breaker := eventprocessor.NewPublishBreaker(config.BreakerConfig{FailureThreshold: 5, Timeout: time.Second})
	producer, err := eventprocessor.NewProducer(kcfg, breaker)
	if err != nil {
		t.Fatalf("NewProducer() error = %v", err)
	}
	t.Cleanup(producer.Close)
	env := newTestEnv(t, testConfig(), producer, nil)

	// The outage must stay invisible to the client.
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		env.handler.HandleEvent(rec, postJSON("/?client_id=client-1", trackBody))
		if res := decodeResult(t, rec); res.Status != models.StatusSuccess {
			t.Fatalf("result %d = %+v, want success despite the outage", i, res)
		}
	}

	hrec := httptest.NewRecorder()
	env.handler.HandleHealth(hrec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health models.HealthResponse
	if err := json.Unmarshal(hrec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if health.Status != "degraded" || !health.Kafka.Failed {
		t.Errorf("health = %+v, want degraded with a failed broker", health)
	}
	if health.ProducerStats.BufferSize != 2 {
		t.Errorf("bufferSize = %d, want 2", health.ProducerStats.BufferSize)
	}

	env.drain(t)
	if got := len(env.store.Rows("events")); got != 2 {
		t.Errorf("events rows = %d, want both records drained to the store", got)
	}
}

func TestHandleBatch_MixedResults(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil, nil)

	body := `[
		{"type":"track","name":"screen_view","anonymousId":"a","path":"/x"},
		{"type":"blorp"},
		{"type":"error","payload":{"eventId":"e-f","message":"Script error.","path":"/x"}}
	]`
	rec := httptest.NewRecorder()
	env.handler.HandleBatch(rec, postJSON("/batch?client_id=client-1", body))

	res := decodeBatch(t, rec)
	if res.Status != models.StatusSuccess || !res.Batch || res.Processed != 3 {
		t.Fatalf("container = %+v, want success with 3 processed", res)
	}
	if len(res.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(res.Results))
	}
	if got := res.Results[0]; got.Status != models.StatusSuccess || got.Type != models.EventTypeTrack {
		t.Errorf("results[0] = %+v, want a track success", got)
	}
	if got := res.Results[1]; got.Status != models.StatusError || got.Code != models.CodeInvalidRequest {
		t.Errorf("results[1] = %+v, want invalid_request", got)
	}
	if got := res.Results[2]; got.Status != models.StatusIgnored || got.Reason != models.ReasonFilteredMessage {
		t.Errorf("results[2] = %+v, want ignored with filtered reason", got)
	}

	env.drain(t)
	if got := len(env.store.Rows("events")); got != 1 {
		t.Errorf("events rows = %d, want 1", got)
	}
	if got := len(env.store.Rows("errors")); got != 0 {
		t.Errorf("errors rows = %d, want none", got)
	}
}

func TestHandleBatch_ExactlyMaxAccepted(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil, nil)

	events := make([]models.RawEvent, validation.MaxBatchSize)
	for i := range events {
		events[i] = models.RawEvent{Type: models.EventTypeTrack, Name: "screen_view", Path: "/p"}
	}
	body, err := json.Marshal(events)
	if err != nil {
		t.Fatalf("marshaling batch: %v", err)
	}

	rec := httptest.NewRecorder()
	env.handler.HandleBatch(rec, postJSON("/batch?client_id=client-1", string(body)))

	res := decodeBatch(t, rec)
	if res.Status != models.StatusSuccess || res.Processed != validation.MaxBatchSize {
		t.Fatalf("container = %+v, want all %d processed", res, validation.MaxBatchSize)
	}
	for i, r := range res.Results {
		if r.Status != models.StatusSuccess {
			t.Fatalf("results[%d] = %+v, want success", i, r)
		}
	}

	env.drain(t)
	if got := len(env.store.Rows("events")); got != validation.MaxBatchSize {
		t.Errorf("events rows = %d, want %d", got, validation.MaxBatchSize)
	}
}

func TestHandleBatch_TooLarge(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil, nil)

	events := make([]models.RawEvent, validation.MaxBatchSize+1)
	for i := range events {
		events[i] = models.RawEvent{Type: models.EventTypeTrack, Name: "screen_view"}
	}
	body, err := json.Marshal(events)
	if err != nil {
		t.Fatalf("marshaling batch: %v", err)
	}

	rec := httptest.NewRecorder()
	env.handler.HandleBatch(rec, postJSON("/batch?client_id=client-1", string(body)))

	res := decodeBatch(t, rec)
	if res.Status != models.StatusError || res.Code != models.CodeInvalidRequest {
		t.Fatalf("container = %+v, want a whole-batch error", res)
	}
	if res.Message != "Batch too large" {
		t.Errorf("message = %q, want %q", res.Message, "Batch too large")
	}
	if res.Processed != 0 || len(res.Results) != 0 {
		t.Errorf("container = %+v, want nothing processed", res)
	}
}

func TestHandleBatch_NonArray(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil, nil)

	rec := httptest.NewRecorder()
	env.handler.HandleBatch(rec, postJSON("/batch?client_id=client-1", trackBody))

	res := decodeBatch(t, rec)
	if res.Status != models.StatusError || res.Code != models.CodeInvalidRequest {
		t.Fatalf("container = %+v, want a whole-batch error", res)
	}
	if res.Message != "Invalid batch format: expected a JSON array" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestHandleBatch_Empty(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil, nil)

	rec := httptest.NewRecorder()
	env.handler.HandleBatch(rec, postJSON("/batch?client_id=client-1", "[]"))

	res := decodeBatch(t, rec)
	if res.Status != models.StatusSuccess || res.Processed != 0 || len(res.Results) != 0 {
		t.Errorf("container = %+v, want an empty success", res)
	}
}

func TestHandleBatch_AuthFailed(t *testing.T) {
	dir := validation.NewTenantDirectory([]config.TenantConfig{
		{ClientID: "client-1", Name: "Site", Active: true},
	})
	env := newTestEnv(t, testConfig(), nil, func(d *Deps) { d.Tenants = dir })

	rec := httptest.NewRecorder()
	env.handler.HandleBatch(rec, postJSON("/batch?client_id=ghost", `[`+trackBody+`]`))

	res := decodeBatch(t, rec)
	if res.Status != models.StatusError || !res.Batch || res.Code != models.CodeAuthFailed {
		t.Fatalf("container = %+v, want a batch-level auth_failed", res)
	}
	if res.Message != "Unknown client_id" {
		t.Errorf("message = %q, want %q", res.Message, "Unknown client_id")
	}
}

func TestHandleBatch_DuplicatesWithinBatch(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil, nil)

	body := `[
		{"type":"track","name":"screen_view","eventId":"same","path":"/x"},
		{"type":"track","name":"screen_view","eventId":"same","path":"/x"}
	]`
	rec := httptest.NewRecorder()
	env.handler.HandleBatch(rec, postJSON("/batch?client_id=client-1", body))

	res := decodeBatch(t, rec)
	if res.Status != models.StatusSuccess || res.Processed != 2 {
		t.Fatalf("container = %+v, want success with 2 processed", res)
	}
	for i, r := range res.Results {
		if r.Status != models.StatusSuccess {
			t.Errorf("results[%d] = %+v, want success either way", i, r)
		}
	}

	env.drain(t)
	if got := len(env.store.Rows("events")); got != 1 {
		t.Errorf("events rows = %d, want the dedup window to keep one", got)
	}
}
