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

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kfake"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/databuddy-analytics/basket/internal/config"
)

// newFakeCluster starts an in-process Kafka cluster for the test.
func newFakeCluster(t *testing.T) []string {
	t.Helper()
	cluster, err := kfake.NewCluster()
	if err != nil {
		t.Fatalf("kfake.NewCluster() error = %v", err)
	}
	t.Cleanup(cluster.Close)
	return cluster.ListenAddrs()
}

func testKafkaConfig(brokers []string) config.KafkaConfig {
	return config.KafkaConfig{
		Brokers:           brokers,
		ClientID:          "basket-test",
		PublishTimeout:    5 * time.Second,
		MaxInFlight:       4,
		ReconnectCooldown: 10 * time.Second,
	}
}

func newTestProducer(t *testing.T, cfg config.KafkaConfig) *Producer {
	t.Helper()
	breaker := NewPublishBreaker(config.BreakerConfig{FailureThreshold: 5, Timeout: time.Second})
	p, err := NewProducer(cfg, breaker)
	if err != nil {
		t.Fatalf("NewProducer() error = %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

// consumeRecords reads n records from topic with a fresh consumer.
func consumeRecords(t *testing.T, brokers []string, topic string, n int) []*kgo.Record {
	t.Helper()
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		t.Fatalf("kgo.NewClient() error = %v", err)
	}
	t.Cleanup(client.Close)
	client.AddConsumeTopics(topic)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out []*kgo.Record
	for len(out) < n {
		fetches := client.PollRecords(ctx, n-len(out))
		if errs := fetches.Errors(); len(errs) > 0 {
			t.Fatalf("PollRecords() errors = %v", errs)
		}
		out = append(out, fetches.Records()...)
	}
	return out
}

func TestNewProducer_Disabled(t *testing.T) {
	breaker := NewPublishBreaker(config.BreakerConfig{FailureThreshold: 5, Timeout: time.Second})

	_, err := NewProducer(config.KafkaConfig{}, breaker)
	if !errors.Is(err, ErrBrokerDisabled) {
		t.Errorf("NewProducer(no brokers) error = %v, want ErrBrokerDisabled", err)
	}

	_, err = NewProducer(testKafkaConfig([]string{"localhost:9092"}), nil)
	if err == nil {
		t.Error("NewProducer(nil breaker) error = nil, want error")
	}
}

func TestProducer_Send(t *testing.T) {
	brokers := newFakeCluster(t)
	p := newTestProducer(t, testKafkaConfig(brokers))
	ctx := context.Background()

	if err := p.EnsureTopics(ctx); err != nil {
		t.Fatalf("EnsureTopics() error = %v", err)
	}

	value := []byte(`{"id":"rec-1","client_id":"client-1"}`)
	if err := p.Send(ctx, TopicEvents, "client-1", value); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if !p.Connected() {
		t.Error("Connected() = false after a successful send")
	}
	if sent, failed := p.Counts(); sent != 1 || failed != 0 {
		t.Errorf("Counts() = (%d, %d), want (1, 0)", sent, failed)
	}

	records := consumeRecords(t, brokers, TopicEvents, 1)
	if got := string(records[0].Key); got != "client-1" {
		t.Errorf("record key = %q, want the tenant id", got)
	}
	if got := string(records[0].Value); got != string(value) {
		t.Errorf("record value = %q, want %q", got, value)
	}
}

func TestProducer_SendBatch(t *testing.T) {
	brokers := newFakeCluster(t)
	p := newTestProducer(t, testKafkaConfig(brokers))
	ctx := context.Background()

	if err := p.EnsureTopics(ctx); err != nil {
		t.Fatalf("EnsureTopics() error = %v", err)
	}

	values := [][]byte{
		[]byte(`{"id":"rec-1"}`),
		[]byte(`{"id":"rec-2"}`),
		[]byte(`{"id":"rec-3"}`),
	}
	if err := p.SendBatch(ctx, TopicCustomEvents, "client-1", values); err != nil {
		t.Fatalf("SendBatch() error = %v", err)
	}
	if sent, _ := p.Counts(); sent != 3 {
		t.Errorf("Counts() sent = %d, want 3", sent)
	}

	records := consumeRecords(t, brokers, TopicCustomEvents, 3)
	// One key means one partition, so the batch order survives.
	for i, rec := range records {
		if got := string(rec.Value); got != string(values[i]) {
			t.Errorf("record %d value = %q, want %q", i, got, values[i])
		}
		if got := string(rec.Key); got != "client-1" {
			t.Errorf("record %d key = %q, want client-1", i, got)
		}
	}
}

func TestProducer_SendBatchEmpty(t *testing.T) {
	// No broker at all: an empty batch must not touch the network.
	p := newTestProducer(t, testKafkaConfig([]string{"127.0.0.1:1"}))
	if err := p.SendBatch(context.Background(), TopicEvents, "client-1", nil); err != nil {
		t.Errorf("SendBatch(empty) error = %v, want nil", err)
	}
}

func TestProducer_CooldownGate(t *testing.T) {
	cfg := testKafkaConfig([]string{"127.0.0.1:1"})
	cfg.PublishTimeout = 2 * time.Second
	cfg.ReconnectCooldown = 10 * time.Second
	p := newTestProducer(t, cfg)
	ctx := context.Background()

	// First send dials, fails, and arms the cooldown.
	err := p.Send(ctx, TopicEvents, "client-1", []byte("{}"))
	if !errors.Is(err, ErrBrokerUnavailable) {
		t.Fatalf("Send() error = %v, want ErrBrokerUnavailable", err)
	}
	if p.Connected() {
		t.Error("Connected() = true against a dead broker")
	}
	if !p.Failed() {
		t.Error("Failed() = false after a failed dial")
	}

	// Within the cooldown the gate rejects without dialing, so even a
	// short deadline is never hit.
	gateCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = p.Send(gateCtx, TopicEvents, "client-1", []byte("{}"))
	if !errors.Is(err, ErrBrokerUnavailable) {
		t.Fatalf("Send() within cooldown error = %v, want ErrBrokerUnavailable", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cooldown gate took %v, want an immediate rejection", elapsed)
	}
}

func TestProducer_Connect(t *testing.T) {
	brokers := newFakeCluster(t)
	p := newTestProducer(t, testKafkaConfig(brokers))

	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !p.Connected() {
		t.Error("Connected() = false after Connect")
	}
	if p.Failed() {
		t.Error("Failed() = true after a clean Connect")
	}
}

func TestProducer_EnsureTopics(t *testing.T) {
	brokers := newFakeCluster(t)
	p := newTestProducer(t, testKafkaConfig(brokers))
	ctx := context.Background()

	if err := p.EnsureTopics(ctx); err != nil {
		t.Fatalf("EnsureTopics() error = %v", err)
	}
	// Idempotent: existing topics are not an error.
	if err := p.EnsureTopics(ctx); err != nil {
		t.Fatalf("second EnsureTopics() error = %v", err)
	}

	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		t.Fatalf("kgo.NewClient() error = %v", err)
	}
	t.Cleanup(client.Close)

	listed, err := kadm.NewClient(client).ListTopics(ctx)
	if err != nil {
		t.Fatalf("ListTopics() error = %v", err)
	}
	for _, topic := range Topics() {
		if !listed.Has(topic) {
			t.Errorf("topic %q missing after EnsureTopics", topic)
		}
	}
}

func TestProducer_SendAfterClose(t *testing.T) {
	brokers := newFakeCluster(t)
	p := newTestProducer(t, testKafkaConfig(brokers))

	p.Close()
	err := p.Send(context.Background(), TopicEvents, "client-1", []byte("{}"))
	if !errors.Is(err, ErrPublishRejected) {
		t.Errorf("Send() after Close error = %v, want ErrPublishRejected", err)
	}
}

func TestProducer_Drain(t *testing.T) {
	brokers := newFakeCluster(t)
	p := newTestProducer(t, testKafkaConfig(brokers))
	ctx := context.Background()

	if err := p.EnsureTopics(ctx); err != nil {
		t.Fatalf("EnsureTopics() error = %v", err)
	}
	if err := p.Send(ctx, TopicEvents, "client-1", []byte("{}")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	drainCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Drain(drainCtx); err != nil {
		t.Errorf("Drain() error = %v", err)
	}
}
