// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/semaphore"

	"github.com/databuddy-analytics/basket/internal/config"
	"github.com/databuddy-analytics/basket/internal/logging"
	"github.com/databuddy-analytics/basket/internal/metrics"
)

// Producer defaults applied when the config leaves a knob zero.
const (
	defaultPublishTimeout    = 10 * time.Second
	defaultMaxInFlight       = 15
	defaultReconnectCooldown = 60 * time.Second
)

// Producer publishes canonical records to Kafka. Three gates protect
// intake latency when the broker is down:
//
//   - the semaphore caps concurrent publishes
//   - the cooldown blocks reconnection attempts after a failure
//   - the circuit breaker short-circuits after consecutive failures
//
// Any gate failure surfaces as an error; the caller decides where the
// record goes next. The Producer never enqueues to the fallback
// buffer itself.
type Producer struct {
	client      *kgo.Client
	breaker     *gobreaker.CircuitBreaker[any]
	sem         *semaphore.Weighted
	maxInFlight int64

	publishTimeout    time.Duration
	reconnectCooldown time.Duration

	mu        sync.Mutex
	connected bool
	failed    bool
	lastRetry time.Time

	sent       atomic.Int64
	sendErrors atomic.Int64
	closed     atomic.Bool
}

// NewProducer builds a producer for the configured brokers. The
// client dials lazily: the first Send, or an explicit Connect, makes
// the connection. Messages are gzip-compressed and keyed by tenant so
// one tenant's events stay ordered within a partition.
func NewProducer(cfg config.KafkaConfig, breaker *gobreaker.CircuitBreaker[any]) (*Producer, error) {
	if !cfg.Enabled() {
		return nil, ErrBrokerDisabled
	}
	if breaker == nil {
		return nil, fmt.Errorf("breaker required")
	}

	publishTimeout := cfg.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	cooldown := cfg.ReconnectCooldown
	if cooldown <= 0 {
		cooldown = defaultReconnectCooldown
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerBatchCompression(kgo.GzipCompression()),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Producer{
		client:            client,
		breaker:           breaker,
		sem:               semaphore.NewWeighted(maxInFlight),
		maxInFlight:       maxInFlight,
		publishTimeout:    publishTimeout,
		reconnectCooldown: cooldown,
	}, nil
}

// Connect probes the brokers once, outside the cooldown gate. Used at
// startup so the first request does not pay the dial cost; a failure
// here is not fatal, the producer keeps falling back until the broker
// appears.
func (p *Producer) Connect(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()
	if err := p.client.Ping(pingCtx); err != nil {
		p.markFailed()
		return fmt.Errorf("ping kafka: %w", err)
	}
	p.markConnected()
	return nil
}

// EnsureTopics creates the five analytics topics with broker-default
// partitioning. Topics that already exist are fine.
func (p *Producer) EnsureTopics(ctx context.Context) error {
	topics := Topics()
	resps, err := kadm.NewClient(p.client).CreateTopics(ctx, -1, -1, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, resp := range resps.Sorted() {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	logging.Debug().Int("topics", len(topics)).Msg("Broker topics ensured")
	return nil
}

// Send publishes one record value to topic, keyed by tenant. Errors
// mean the record did not reach the broker and should be buffered.
func (p *Producer) Send(ctx context.Context, topic, tenantID string, value []byte) error {
	return p.send(ctx, topic, func() error {
		return p.produce(topic, tenantID, [][]byte{value})
	})
}

// SendBatch publishes several record values as one message set. On
// failure the whole set is undelivered; the caller buffers each value
// individually.
func (p *Producer) SendBatch(ctx context.Context, topic, tenantID string, values [][]byte) error {
	if len(values) == 0 {
		return nil
	}
	return p.send(ctx, topic, func() error {
		return p.produce(topic, tenantID, values)
	})
}

// send runs the gate sequence: slot, connection state, then the
// breaker-wrapped publish.
func (p *Producer) send(ctx context.Context, topic string, fn func() error) error {
	if p.closed.Load() {
		return fmt.Errorf("%w: producer closed", ErrPublishRejected)
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		metrics.RecordKafkaRejected(topic)
		return fmt.Errorf("%w: in-flight limit: %w", ErrPublishRejected, err)
	}
	metrics.KafkaInFlight.Inc()
	defer func() {
		metrics.KafkaInFlight.Dec()
		p.sem.Release(1)
	}()

	if err := p.ensureConnected(ctx); err != nil {
		return err
	}

	_, err := ExecuteWithBreaker(p.breaker, func() (any, error) {
		return nil, fn()
	})
	if err != nil && BreakerRejected(err) {
		metrics.RecordKafkaRejected(topic)
		return fmt.Errorf("%w: circuit open: %w", ErrPublishRejected, err)
	}
	return err
}

// ensureConnected applies the reconnect cooldown: after a failure the
// producer stays in fallback mode for the cooldown window instead of
// re-dialing a dead broker on every event.
func (p *Producer) ensureConnected(ctx context.Context) error {
	p.mu.Lock()
	if p.connected {
		p.mu.Unlock()
		return nil
	}
	if p.failed && time.Since(p.lastRetry) < p.reconnectCooldown {
		p.mu.Unlock()
		return fmt.Errorf("%w: reconnect cooldown", ErrBrokerUnavailable)
	}
	p.mu.Unlock()

	pingCtx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()
	if err := p.client.Ping(pingCtx); err != nil {
		p.markFailed()
		return fmt.Errorf("%w: connect: %w", ErrBrokerUnavailable, err)
	}
	p.markConnected()
	return nil
}

// produce performs the broker round trip on a detached context, so a
// cancelled HTTP request cannot retract a publish already in flight.
func (p *Producer) produce(topic, tenantID string, values [][]byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.publishTimeout)
	defer cancel()

	records := make([]*kgo.Record, len(values))
	for i, v := range values {
		records[i] = &kgo.Record{Topic: topic, Key: []byte(tenantID), Value: v}
	}

	start := time.Now()
	err := p.client.ProduceSync(ctx, records...).FirstErr()
	metrics.RecordKafkaPublish(topic, time.Since(start), err)
	if err != nil {
		p.sendErrors.Add(int64(len(records)))
		p.markFailed()
		return fmt.Errorf("produce %d records to %s: %w", len(records), topic, err)
	}
	p.sent.Add(int64(len(records)))
	p.markConnected()
	return nil
}

func (p *Producer) markConnected() {
	p.mu.Lock()
	wasConnected := p.connected
	wasFailed := p.failed
	p.connected = true
	p.failed = false
	p.mu.Unlock()

	if !wasConnected {
		metrics.SetKafkaConnected(true)
		if wasFailed {
			metrics.KafkaReconnectsTotal.Inc()
		}
		logging.Info().Msg("Connected to Kafka")
	}
}

func (p *Producer) markFailed() {
	p.mu.Lock()
	wasConnected := p.connected
	p.connected = false
	p.failed = true
	p.lastRetry = time.Now()
	p.mu.Unlock()

	if wasConnected {
		metrics.SetKafkaConnected(false)
		logging.Warn().
			Dur("cooldown", p.reconnectCooldown).
			Msg("Kafka unavailable, routing to fallback buffer")
	}
}

// Connected reports current broker connectivity.
func (p *Producer) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Failed reports whether the last broker interaction failed.
func (p *Producer) Failed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// Counts returns records published and records that failed to publish.
func (p *Producer) Counts() (sent, failed int64) {
	return p.sent.Load(), p.sendErrors.Load()
}

// Drain blocks until in-flight publishes finish or ctx expires.
func (p *Producer) Drain(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, p.maxInFlight); err != nil {
		return fmt.Errorf("drain producer: %w", err)
	}
	p.sem.Release(p.maxInFlight)
	return nil
}

// Close releases the broker connection. Publishes after Close are
// rejected.
func (p *Producer) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.client.Close()
	metrics.SetKafkaConnected(false)
}
