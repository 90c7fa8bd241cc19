// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package eventprocessor

import "errors"

var (
	// ErrBrokerDisabled is returned when no brokers are configured and
	// a caller asks for a Producer anyway.
	ErrBrokerDisabled = errors.New("eventprocessor: broker not configured")

	// ErrBrokerUnavailable is returned when the reconnect cooldown is
	// still running after a failed connection attempt.
	ErrBrokerUnavailable = errors.New("eventprocessor: broker unavailable")

	// ErrPublishRejected is returned when a publish is refused before
	// reaching the broker, by the in-flight cap or the circuit breaker.
	ErrPublishRejected = errors.New("eventprocessor: publish rejected")

	// ErrUnknownEventType is returned when a record's event type has no
	// routing destination.
	ErrUnknownEventType = errors.New("eventprocessor: unknown event type")

	// ErrBufferClosed is returned when records arrive after the
	// fallback buffer has been drained and closed.
	ErrBufferClosed = errors.New("eventprocessor: buffer closed")

	// ErrPipelineClosed is returned by Publish after Shutdown.
	ErrPipelineClosed = errors.New("eventprocessor: pipeline closed")
)
