// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package middleware

import (
	"net/http"
	"time"

	"github.com/databuddy-analytics/basket/internal/logging"
)

// Tracker SDK identification headers, recorded on access logs when the
// client sends them.
const (
	SDKNameHeader    = "databuddy-sdk-name"
	SDKVersionHeader = "databuddy-sdk-version"
)

// quietPaths are logged at Debug instead of Info. Monitoring polls them
// constantly and they would drown the intake traffic in the logs.
var quietPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// AccessLog emits one structured log line per request with method,
// path, status, duration, response size, and client address. The
// request id lands on the line through the logging context installed by
// RequestID.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		logger := logging.Ctx(r.Context())
		evt := logger.Info()
		if _, quiet := quietPaths[r.URL.Path]; quiet {
			evt = logger.Debug()
		}

		evt = evt.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.status).
			Dur("duration", time.Since(start)).
			Int64("bytes", ww.bytes).
			Str("remote_addr", r.RemoteAddr)

		if name := r.Header.Get(SDKNameHeader); name != "" {
			evt = evt.Str("sdk_name", name)
			if version := r.Header.Get(SDKVersionHeader); version != "" {
				evt = evt.Str("sdk_version", version)
			}
		}

		evt.Msg("Request handled")
	})
}
