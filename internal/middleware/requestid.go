// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package middleware

import (
	"net/http"

	"github.com/databuddy-analytics/basket/internal/logging"
)

// RequestIDHeader carries the request id on both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID ensures every request carries an id: the inbound
// X-Request-ID is reused when present (upstream proxies set one),
// otherwise a fresh id is generated. The id is echoed on the response
// header and installed into the logging context so every log line of
// the request carries it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = logging.GenerateRequestID()
		}

		w.Header().Set(RequestIDHeader, id)

		ctx := logging.ContextWithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
