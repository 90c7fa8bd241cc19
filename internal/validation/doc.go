// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

// Package validation gates the intake pipeline: tenant authorization,
// per-tenant rate limiting, bot detection, payload sanitization, and
// per-kind schema checks.
//
// # Overview
//
// Intake runs the checks in two phases. Request-level checks execute once
// per HTTP request (single event or batch):
//   - Tenant lookup and origin allowlist (TenantDirectory.Authorize)
//   - Per-tenant rate limiting (RateLimiter.Allow)
//
// Event-level checks execute per event, after request-level checks pass:
//   - Bot detection on the User-Agent header (BotDetector)
//   - Filtered-message suppression for noisy browser errors (FilteredMessage)
//   - String sanitization and length clamping (SanitizeEvent)
//   - Per-kind schema validation (CheckSchema), skipped in development mode
//
// A denial never maps to an HTTP error status; callers translate the
// returned PolicyError or RequestValidationError into the response body.
//
// # Tenant Authorization
//
// TenantDirectory is built from the static tenant list in configuration.
// With no tenants configured the directory is permissive and accepts any
// non-empty client id, which keeps single-tenant deployments zero-config.
// Origin allowlists support exact origins, "*", and "*.domain" wildcards;
// requests without an Origin header (server-side SDKs) pass the check.
//
// # Rate Limiting
//
// RateLimiter keeps one token bucket per client id using golang.org/x/time
// rate. Buckets are created on first use and evicted after an hour of
// inactivity by a background sweep.
//
// # Bot Detection
//
// BotDetector matches the User-Agent against heuristic substrings
// ("bot", "crawl", "headless", ...) and a list of known crawler names
// using an Aho-Corasick automaton, so cost is one pass over the string
// regardless of pattern count. An empty User-Agent is not treated as a
// bot. Matched traffic is reported as ignored, not as an error.
//
// # Sanitization
//
// CleanString strips control characters (keeping tabs and newlines, which
// stack traces need) and clamps to a per-field cap:
//
//	MaxShortLen  = 255   event names, ids, UTM tags
//	MaxTextLen   = 1024  error messages, link text
//	MaxStringLen = 2048  titles, anonymous ids, stack traces
//	MaxPathLen   = 4096  paths, referrers, hrefs
//
// SanitizeEvent applies the caps to every envelope string so records never
// carry oversized fields downstream.
//
// # Schema Validation
//
// CheckSchema dispatches on the event type and validates the kind's
// required fields with go-playground/validator v10 through a thread-safe
// singleton (GetValidator). Failures are translated to human-readable
// messages and aggregated in a RequestValidationError:
//
//	if verr := validation.CheckSchema(ev); verr != nil {
//	    // verr.Issues() -> ["name is required", ...]
//	}
//
// # See Also
//
//   - internal/api: intake handlers running the two phases
//   - internal/eventprocessor: record assembly after validation
//   - github.com/go-playground/validator/v10: underlying struct validator
package validation
