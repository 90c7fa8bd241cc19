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

	"github.com/databuddy-analytics/basket/internal/config"
	"github.com/databuddy-analytics/basket/internal/logging"
	"github.com/databuddy-analytics/basket/internal/metrics"
	"github.com/databuddy-analytics/basket/internal/models"
)

// flushTimeout bounds a single flush cycle against a slow store.
const flushTimeout = 30 * time.Second

// bufferedRow is one record awaiting a fallback insert, tagged with
// its destination table and how many flushes have already failed it.
type bufferedRow struct {
	table   string
	record  models.Record
	retries int
}

// BufferStats is a point-in-time snapshot of buffer activity.
type BufferStats struct {
	Size     int
	Enqueued int64
	Inserted int64
	Retried  int64
	Dropped  int64
	Flushes  int64
}

// FallbackBuffer holds records the broker path could not deliver and
// writes them to the EventStore in table-grouped bulk inserts.
//
// Flushes run on a fixed interval, immediately when the queue crosses
// the soft limit, and once more on Close. Past the hard limit new
// records are dropped rather than grow the queue without bound.
type FallbackBuffer struct {
	store EventStore
	cfg   config.BufferConfig

	mu    sync.Mutex
	queue []bufferedRow

	// flushMu serializes flush cycles so the timer, the soft-limit
	// trigger, and Close never interleave inserts.
	flushMu sync.Mutex

	closed   atomic.Bool
	started  atomic.Bool
	stopChan chan struct{}
	doneChan chan struct{}
	flushWg  sync.WaitGroup

	// flushPending keeps the soft-limit trigger from stacking up
	// goroutines while the store is slow.
	flushPending atomic.Bool

	enqueued atomic.Int64
	inserted atomic.Int64
	retried  atomic.Int64
	dropped  atomic.Int64
	flushes  atomic.Int64

	// overflowLogged collapses a drop burst into a single log line.
	overflowLogged atomic.Bool
}

// NewFallbackBuffer creates a buffer flushing to store. Start must be
// called to run the interval flush loop.
func NewFallbackBuffer(store EventStore, cfg config.BufferConfig) (*FallbackBuffer, error) {
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.FlushInterval <= 0 {
		return nil, fmt.Errorf("flush interval must be positive")
	}
	if cfg.SoftLimit <= 0 {
		return nil, fmt.Errorf("soft limit must be positive")
	}
	if cfg.HardLimit < cfg.SoftLimit {
		return nil, fmt.Errorf("hard limit must be at least the soft limit")
	}
	if cfg.MaxRetries <= 0 {
		return nil, fmt.Errorf("max retries must be positive")
	}

	return &FallbackBuffer{
		store:    store,
		cfg:      cfg,
		queue:    make([]bufferedRow, 0, cfg.SoftLimit),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start launches the interval flush loop. Calling Start twice is a
// no-op; calling it after Close is an error.
func (b *FallbackBuffer) Start(ctx context.Context) error {
	if b.closed.Load() {
		return ErrBufferClosed
	}
	if b.started.Swap(true) {
		return nil
	}
	go b.flushLoop(ctx)
	return nil
}

func (b *FallbackBuffer) flushLoop(ctx context.Context) {
	defer close(b.doneChan)

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopChan:
			return
		case <-ticker.C:
			// Detached context: a cancelled caller must not abort an
			// insert that is already carrying buffered records.
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			if err := b.flush(flushCtx); err != nil {
				logging.Warn().Err(err).Msg("Interval flush failed")
			}
			cancel()
		}
	}
}

// Enqueue adds a record bound for table. It returns false when the
// record was dropped: the buffer is closed or at its hard limit.
func (b *FallbackBuffer) Enqueue(table string, rec models.Record) bool {
	if b.closed.Load() {
		b.dropped.Add(1)
		metrics.BufferDroppedTotal.Inc()
		return false
	}

	b.mu.Lock()
	if len(b.queue) >= b.cfg.HardLimit {
		b.mu.Unlock()
		b.dropped.Add(1)
		metrics.BufferDroppedTotal.Inc()
		if !b.overflowLogged.Swap(true) {
			logging.Error().
				Int("hard_limit", b.cfg.HardLimit).
				Str("table", table).
				Msg("Fallback buffer full, dropping records")
		}
		return false
	}
	b.queue = append(b.queue, bufferedRow{table: table, record: rec})
	size := len(b.queue)
	b.mu.Unlock()

	b.enqueued.Add(1)
	metrics.BufferEnqueuedTotal.Inc()
	metrics.BufferSize.Set(float64(size))

	if size >= b.cfg.SoftLimit && !b.flushPending.Swap(true) {
		b.flushWg.Add(1)
		go func() {
			defer b.flushWg.Done()
			defer b.flushPending.Store(false)
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			if err := b.flush(flushCtx); err != nil {
				logging.Warn().Err(err).Msg("Soft limit flush failed")
			}
		}()
	}
	return true
}

// Flush forces a flush cycle outside the interval schedule.
func (b *FallbackBuffer) Flush(ctx context.Context) error {
	return b.flush(ctx)
}

// flush swaps out the queue, groups it by table, and bulk inserts each
// group. Failed groups are re-enqueued with a bumped retry count;
// rows that exhaust MaxRetries are dropped. The store is never called
// while the queue mutex is held.
func (b *FallbackBuffer) flush(ctx context.Context) error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	if len(b.queue) == 0 {
		b.mu.Unlock()
		return nil
	}
	batch := b.queue
	b.queue = make([]bufferedRow, 0, b.cfg.SoftLimit)
	b.mu.Unlock()

	start := time.Now()

	groups := make(map[string][]bufferedRow)
	order := make([]string, 0, 4)
	for _, row := range batch {
		if _, seen := groups[row.table]; !seen {
			order = append(order, row.table)
		}
		groups[row.table] = append(groups[row.table], row)
	}

	var (
		flushErrs []error
		requeue   []bufferedRow
		inserted  int
		exhausted int
	)
	for _, table := range order {
		rows := groups[table]
		records := make([]models.Record, len(rows))
		for i, r := range rows {
			records[i] = r.record
		}
		if err := b.store.InsertRows(ctx, table, records); err != nil {
			flushErrs = append(flushErrs, fmt.Errorf("flush %d rows to %s: %w", len(rows), table, err))
			for _, r := range rows {
				r.retries++
				if r.retries >= b.cfg.MaxRetries {
					exhausted++
					continue
				}
				requeue = append(requeue, r)
			}
			continue
		}
		inserted += len(rows)
	}

	if inserted > 0 {
		b.inserted.Add(int64(inserted))
		metrics.BufferInsertedTotal.Add(float64(inserted))
	}
	if n := len(requeue); n > 0 {
		b.retried.Add(int64(n))
		metrics.BufferRetriesTotal.Add(float64(n))
	}
	if exhausted > 0 {
		b.dropped.Add(int64(exhausted))
		metrics.BufferDroppedTotal.Add(float64(exhausted))
		logging.Error().
			Int("records", exhausted).
			Int("max_retries", b.cfg.MaxRetries).
			Msg("Dropping records after repeated insert failures")
	}

	b.mu.Lock()
	if len(requeue) > 0 {
		b.queue = append(requeue, b.queue...)
		if over := len(b.queue) - b.cfg.HardLimit; over > 0 {
			b.queue = b.queue[:b.cfg.HardLimit]
			b.dropped.Add(int64(over))
			metrics.BufferDroppedTotal.Add(float64(over))
		}
	}
	size := len(b.queue)
	b.mu.Unlock()

	b.flushes.Add(1)
	metrics.RecordBufferFlush(time.Since(start), len(batch))
	metrics.BufferSize.Set(float64(size))
	if size < b.cfg.HardLimit {
		b.overflowLogged.Store(false)
	}

	if len(flushErrs) > 0 {
		return errors.Join(flushErrs...)
	}
	logging.Debug().
		Int("records", inserted).
		Int("tables", len(order)).
		Dur("duration", time.Since(start)).
		Msg("Fallback flush complete")
	return nil
}

// Close stops the flush loop, waits for in-flight soft-limit flushes,
// and performs one final flush. Records arriving after Close are
// dropped.
func (b *FallbackBuffer) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	if b.started.Load() {
		close(b.stopChan)
		<-b.doneChan
	}
	b.flushWg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	return b.flush(ctx)
}

// Size returns the number of records currently queued.
func (b *FallbackBuffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Stats returns a snapshot of buffer counters.
func (b *FallbackBuffer) Stats() BufferStats {
	return BufferStats{
		Size:     b.Size(),
		Enqueued: b.enqueued.Load(),
		Inserted: b.inserted.Load(),
		Retried:  b.retried.Load(),
		Dropped:  b.dropped.Load(),
		Flushes:  b.flushes.Load(),
	}
}
