// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/databuddy-analytics/basket/internal/logging"
	"github.com/databuddy-analytics/basket/internal/models"
)

// Pipeline routes canonical records to the broker with the fallback
// buffer behind it. Infrastructure failures stay inside the pipeline:
// once a record is accepted, the caller never sees a broker error.
type Pipeline struct {
	producer *Producer
	buffer   *FallbackBuffer
	closed   atomic.Bool
}

// NewPipeline wires the delivery path. producer may be nil for
// fallback-only mode, where every record goes straight to the store
// buffer.
func NewPipeline(producer *Producer, buffer *FallbackBuffer) (*Pipeline, error) {
	if buffer == nil {
		return nil, fmt.Errorf("buffer required")
	}
	return &Pipeline{producer: producer, buffer: buffer}, nil
}

// Start runs the buffer flush loop and makes a best-effort broker
// connection. A dead broker at startup is not an error; records fall
// back until it appears.
func (p *Pipeline) Start(ctx context.Context) error {
	if err := p.buffer.Start(ctx); err != nil {
		return fmt.Errorf("start buffer: %w", err)
	}
	if p.producer != nil {
		if err := p.producer.Connect(ctx); err != nil {
			logging.Warn().Err(err).Msg("Kafka unreachable at startup, fallback path active")
		}
	}
	return nil
}

// Publish delivers one record. The broker path is tried first; any
// gate or publish failure lands the record in the fallback buffer.
func (p *Pipeline) Publish(ctx context.Context, rec models.Record) error {
	if p.closed.Load() {
		return ErrPipelineClosed
	}
	dest, ok := DestinationFor(rec.EventType())
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, rec.EventType())
	}

	if p.producer != nil {
		data, err := SerializeRecord(rec)
		if err != nil {
			return err
		}
		err = p.producer.Send(ctx, dest.Topic, rec.TenantID(), data)
		if err == nil {
			return nil
		}
		logging.Debug().
			Err(err).
			Str("topic", dest.Topic).
			Msg("Broker publish failed, buffering record")
	}

	p.buffer.Enqueue(dest.Table, rec)
	return nil
}

// PublishAll delivers a batch, one broker message set per topic and
// tenant. When a set fails, its records are buffered individually so
// partial batches never vanish.
func (p *Pipeline) PublishAll(ctx context.Context, recs []models.Record) error {
	if p.closed.Load() {
		return ErrPipelineClosed
	}

	type group struct {
		dest   Destination
		tenant string
		recs   []models.Record
	}
	groups := make(map[string]*group)
	order := make([]string, 0, 4)
	for _, rec := range recs {
		dest, ok := DestinationFor(rec.EventType())
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownEventType, rec.EventType())
		}
		key := dest.Topic + "\x00" + rec.TenantID()
		g, seen := groups[key]
		if !seen {
			g = &group{dest: dest, tenant: rec.TenantID()}
			groups[key] = g
			order = append(order, key)
		}
		g.recs = append(g.recs, rec)
	}

	for _, key := range order {
		g := groups[key]
		if p.producer == nil {
			p.bufferAll(g.dest.Table, g.recs)
			continue
		}

		values := make([][]byte, 0, len(g.recs))
		for _, rec := range g.recs {
			data, err := SerializeRecord(rec)
			if err != nil {
				return err
			}
			values = append(values, data)
		}
		if err := p.producer.SendBatch(ctx, g.dest.Topic, g.tenant, values); err != nil {
			logging.Debug().
				Err(err).
				Str("topic", g.dest.Topic).
				Int("records", len(g.recs)).
				Msg("Broker batch failed, buffering records")
			p.bufferAll(g.dest.Table, g.recs)
		}
	}
	return nil
}

func (p *Pipeline) bufferAll(table string, recs []models.Record) {
	for _, rec := range recs {
		p.buffer.Enqueue(table, rec)
	}
}

// Stats snapshots delivery counters for /health and the stats log.
func (p *Pipeline) Stats() models.ProducerStats {
	var sent, failed int64
	if p.producer != nil {
		sent, failed = p.producer.Counts()
	}
	bs := p.buffer.Stats()
	return models.ProducerStats{
		Sent:       sent,
		Failed:     failed,
		Buffered:   bs.Enqueued,
		BufferSize: bs.Size,
		Dropped:    bs.Dropped,
		Flushed:    bs.Flushes,
		Retried:    bs.Retried,
		Inserted:   bs.Inserted,
	}
}

// Health reports the broker leg's state. Fallback-only mode is
// "disabled" rather than unhealthy: the service still ingests.
func (p *Pipeline) Health() models.KafkaHealth {
	if p.producer == nil {
		return models.KafkaHealth{Status: "disabled"}
	}
	connected := p.producer.Connected()
	failed := p.producer.Failed()
	status := "ok"
	if !connected || failed {
		status = "degraded"
	}
	return models.KafkaHealth{
		Status:    status,
		Enabled:   true,
		Connected: connected,
		Failed:    failed,
	}
}

// Shutdown drains the pipeline: stop the flush timer and run a final
// flush, wait out in-flight publishes, then release the broker
// connection. Records arriving during shutdown are dropped.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	if p.closed.Swap(true) {
		return nil
	}

	var errs []error
	if err := p.buffer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("drain buffer: %w", err))
	}
	if p.producer != nil {
		if err := p.producer.Drain(ctx); err != nil {
			errs = append(errs, err)
		}
		p.producer.Close()
	}
	return errors.Join(errs...)
}
