// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/databuddy-analytics/basket/internal/config"
	"github.com/databuddy-analytics/basket/internal/middleware"
)

// Health and metrics are rate limited per IP, permissively enough that
// second-interval monitoring never trips the limit.
const (
	observabilityRequests = 1000
	observabilityWindow   = time.Minute
)

// Router assembles the HTTP surface around a Handler.
type Router struct {
	handler *Handler
	cfg     *config.Config
}

// NewRouter pairs a handler with the server configuration.
func NewRouter(handler *Handler, cfg *config.Config) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup wires the middleware stack and routes. Order matters: the
// request id must exist before anything logs, recovery sits inside the
// metrics wrapper so a panicking route still counts, and CORS is global
// so preflights reach the catch-all OPTIONS route with headers already
// attached.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP(router.cfg.Security.TrustedProxies))
	r.Use(middleware.AccessLog)
	r.Use(middleware.Metrics)
	r.Use(middleware.Recover)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: allowOrigin(router.cfg.Security.CORSOrigins),
		AllowedMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"Origin",
			middleware.SDKNameHeader,
			middleware.SDKVersionHeader,
		},
		ExposedHeaders:     []string{middleware.RequestIDHeader},
		AllowCredentials:   true,
		MaxAge:             86400,
		OptionsPassthrough: true,
	}))

	// ========================
	// Intake Endpoints
	// ========================
	r.Group(func(r chi.Router) {
		r.Use(middleware.BodyLimit(router.cfg.Validation.MaxPayloadBytes))
		r.Post("/", router.handler.HandleEvent)
		r.Post("/batch", router.handler.HandleBatch)
	})

	// ========================
	// Observability Endpoints
	// ========================
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(observabilityRequests, observabilityWindow))
		r.Get("/health", router.handler.HandleHealth)
		r.Handle("/metrics", promhttp.Handler())
	})

	// Preflights for any path answer 204; the cors middleware has
	// already attached the headers in passthrough mode.
	r.Options("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

// allowOrigin builds the CORS origin predicate. A "*" entry echoes any
// origin back, which keeps credentialed requests working where a
// literal wildcard would not. Tenant-level origin allowlists are
// enforced separately during intake.
func allowOrigin(origins []string) func(r *http.Request, origin string) bool {
	exact := make(map[string]struct{}, len(origins))
	echoAll := false
	for _, o := range origins {
		if o == "*" {
			echoAll = true
			continue
		}
		exact[strings.ToLower(o)] = struct{}{}
	}
	return func(_ *http.Request, origin string) bool {
		if echoAll {
			return true
		}
		_, ok := exact[strings.ToLower(origin)]
		return ok
	}
}
