// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package eventprocessor

import (
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/databuddy-analytics/basket/internal/config"
	"github.com/databuddy-analytics/basket/internal/logging"
	"github.com/databuddy-analytics/basket/internal/metrics"
)

// breakerName labels the publish breaker in logs and metrics.
const breakerName = "kafka-publish"

// NewPublishBreaker builds the circuit breaker guarding broker
// publishes. The breaker opens after FailureThreshold consecutive
// failures, stays open for Timeout, then admits a single half-open
// probe. Interval is left at zero so the consecutive-failure count
// only resets on success or state change.
func NewPublishBreaker(cfg config.BreakerConfig) *gobreaker.CircuitBreaker[any] {
	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerTransition(name, from.String(), to.String())
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	}
	return gobreaker.NewCircuitBreaker[any](settings)
}

// ExecuteWithBreaker runs fn through the breaker and records the
// outcome: success, failure, or rejected without execution.
func ExecuteWithBreaker(cb *gobreaker.CircuitBreaker[any], fn func() (any, error)) (any, error) {
	result, err := cb.Execute(fn)
	switch {
	case err == nil:
		metrics.RecordBreakerRequest(cb.Name(), "success")
	case BreakerRejected(err):
		metrics.RecordBreakerRequest(cb.Name(), "rejected")
	default:
		metrics.RecordBreakerRequest(cb.Name(), "failure")
	}
	return result, err
}

// BreakerRejected reports whether err means the breaker refused to run
// the request at all, as opposed to the request itself failing.
func BreakerRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests)
}

// BreakerState returns the breaker state as its metric label value:
// closed, half-open, or open.
func BreakerState(cb *gobreaker.CircuitBreaker[any]) string {
	return cb.State().String()
}
