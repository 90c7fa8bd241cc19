// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package supervisor

import (
	"context"
	"time"

	"github.com/databuddy-analytics/basket/internal/eventprocessor"
)

// PipelineService runs the delivery pipeline under the supervisor:
// Start launches the buffer flush loop and probes the broker, and
// context cancellation drives the drain sequence (final flush, wait out
// in-flight publishes, close the broker connection) bounded by
// drainTimeout.
type PipelineService struct {
	pipeline     *eventprocessor.Pipeline
	drainTimeout time.Duration
}

// NewPipelineService creates the wrapper. A non-positive drainTimeout
// defaults to 15 seconds.
func NewPipelineService(pipeline *eventprocessor.Pipeline, drainTimeout time.Duration) *PipelineService {
	if drainTimeout <= 0 {
		drainTimeout = 15 * time.Second
	}
	return &PipelineService{
		pipeline:     pipeline,
		drainTimeout: drainTimeout,
	}
}

// Serve implements suture.Service.
func (s *PipelineService) Serve(ctx context.Context) error {
	if err := s.pipeline.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	// The drain must outlive the canceled service context: it is the
	// last chance buffered records have to reach the store.
	drainCtx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
	defer cancel()

	if err := s.pipeline.Shutdown(drainCtx); err != nil {
		return err
	}
	return ctx.Err()
}

// String names the service in supervisor logs.
func (s *PipelineService) String() string {
	return "event-pipeline"
}
