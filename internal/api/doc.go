// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

// Package api provides the HTTP intake surface: the chi router, the
// single-event and batch handlers, and the health endpoint.
//
// Endpoints:
//
//	POST /?client_id=X   one event object
//	POST /batch          JSON array of events, up to 100
//	GET  /health         broker state, producer counters, probes
//	GET  /metrics        Prometheus exposition
//	OPTIONS *            CORS preflight, 204
//
// The intake contract is body-status, not HTTP-status: every
// well-formed request answers 200 and reports the outcome in the
// result body, because tracker SDKs fire-and-forget and only inspect
// the body when they inspect anything at all. Per-request checks
// (tenant, origin, rate) run once; per-event checks (bot, sanitize,
// schema, filter, dedup) run per event, concurrently for batches,
// with results reported per position.
//
// Accepted events flow through the anonymizer, the enricher, and the
// record builder, then hand off to the eventprocessor pipeline. The
// pipeline owns delivery; a broker outage is invisible to the client.
package api
