// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package eventprocessor

import (
	"context"
	"time"

	"github.com/databuddy-analytics/basket/internal/logging"
)

// defaultStatsInterval spaces the periodic throughput log line.
const defaultStatsInterval = time.Minute

// StatsLogger periodically logs pipeline delivery counters. It runs
// as a supervised service and exits when its context is cancelled.
type StatsLogger struct {
	pipeline *Pipeline
	interval time.Duration
}

// NewStatsLogger creates a stats logger; a non-positive interval
// falls back to one minute.
func NewStatsLogger(pipeline *Pipeline, interval time.Duration) *StatsLogger {
	if interval <= 0 {
		interval = defaultStatsInterval
	}
	return &StatsLogger{pipeline: pipeline, interval: interval}
}

// Serve implements suture.Service.
func (s *StatsLogger) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			st := s.pipeline.Stats()
			logging.Info().
				Int64("sent", st.Sent).
				Int64("failed", st.Failed).
				Int64("buffered", st.Buffered).
				Int("buffer_size", st.BufferSize).
				Int64("dropped", st.Dropped).
				Int64("retried", st.Retried).
				Int64("inserted", st.Inserted).
				Msg("Pipeline stats")
		}
	}
}

// String names the service in supervisor logs.
func (s *StatsLogger) String() string {
	return "pipeline-stats"
}
