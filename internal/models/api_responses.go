// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package models

// Stable error codes carried in result bodies. The HTTP status stays
// 200 for well-formed requests; clients branch on these instead.
const (
	CodeInvalidRequest    = "invalid_request"
	CodeAuthFailed        = "auth_failed"
	CodeRateLimited       = "rate_limited"
	CodeSchemaInvalid     = "schema_invalid"
	CodeIgnoredBot        = "ignored_bot"
	CodeIgnoredFiltered   = "ignored_filtered"
	CodeDuplicate         = "duplicate"
	CodeBrokerUnavailable = "broker_unavailable"
	CodeBufferOverflow    = "buffer_overflow"
	CodeInternalError     = "internal_error"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusIgnored = "ignored"
	StatusError   = "error"
)

// Ignore reasons reported alongside StatusIgnored.
const (
	ReasonBot             = "bot_detected"
	ReasonFilteredMessage = "filtered_message"
)

// IntakeResult is the per-event response shape for both the single
// endpoint and batch result entries.
type IntakeResult struct {
	Status  string   `json:"status"`
	Type    string   `json:"type,omitempty"`
	EventID string   `json:"eventId,omitempty"`
	Message string   `json:"message,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	Code    string   `json:"code,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// BatchResult is the container response for POST /batch. The container
// status is "success" even when individual entries failed; "error" is
// reserved for whole-batch failures such as an oversize array or an
// invalid tenant.
type BatchResult struct {
	Status    string         `json:"status"`
	Batch     bool           `json:"batch"`
	Processed int            `json:"processed"`
	Results   []IntakeResult `json:"results"`
	Message   string         `json:"message,omitempty"`
	Code      string         `json:"code,omitempty"`
}

// ProducerStats mirrors the pipeline counters exposed under /health.
// Field names match the SDK-facing contract, including the camelCase
// bufferSize.
type ProducerStats struct {
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Buffered   int64 `json:"buffered"`
	BufferSize int   `json:"bufferSize"`
	Dropped    int64 `json:"dropped"`
	Flushed    int64 `json:"flushed"`
	Retried    int64 `json:"retried"`
	Inserted   int64 `json:"inserted"`
}

// KafkaHealth reports broker connectivity under /health.
type KafkaHealth struct {
	Status    string `json:"status"` // "ok", "degraded", "disabled"
	Enabled   bool   `json:"enabled"`
	Connected bool   `json:"connected"`
	Failed    bool   `json:"failed"`
}

// HealthResponse is the GET /health body. Cache and Store are
// reachability probes, omitted when the dependency is not wired.
type HealthResponse struct {
	Status        string        `json:"status"`
	Kafka         KafkaHealth   `json:"kafka"`
	ProducerStats ProducerStats `json:"producer_stats"`
	Cache         string        `json:"cache,omitempty"`
	Store         string        `json:"store,omitempty"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Version       string        `json:"version"`
}
