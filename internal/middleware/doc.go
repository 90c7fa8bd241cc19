// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

// Package middleware provides the HTTP middleware shared by the intake
// router: request ids, client IP resolution behind proxies, structured
// access logs, Prometheus instrumentation, panic recovery, and request
// body size limits.
//
// All middleware uses the standard func(http.Handler) http.Handler
// shape and composes with chi's Use/Group.
package middleware
