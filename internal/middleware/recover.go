// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/goccy/go-json"

	"github.com/databuddy-analytics/basket/internal/logging"
	"github.com/databuddy-analytics/basket/internal/models"
)

// Recover converts handler panics into a generic internal-error result
// body. The intake contract keeps HTTP 200 even for server-side
// failures because tracker SDKs branch on the body status, not the
// response code. The panic and stack are logged at Error.
//
// When the response already started, nothing more can be written and
// only the log line is emitted. http.ErrAbortHandler passes through
// untouched; it is the server's own connection-teardown signal.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logging.Ctx(r.Context()).Error().
				Interface("panic", rec).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("Handler panic recovered")

			if ww.wrote {
				return
			}

			body := models.IntakeResult{
				Status:  models.StatusError,
				Code:    models.CodeInternalError,
				Message: "Internal server error",
			}
			ww.Header().Set("Content-Type", "application/json; charset=utf-8")
			ww.WriteHeader(http.StatusOK)
			if err := json.NewEncoder(ww).Encode(body); err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to write panic response")
			}
		}()

		next.ServeHTTP(ww, r)
	})
}
