// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package api

import (
	"net/http"
	"time"

	"github.com/databuddy-analytics/basket/internal/logging"
	"github.com/databuddy-analytics/basket/internal/models"
)

// HandleHealth reports pipeline connectivity, producer counters, and
// dependency reachability. Always 200; callers read the body status.
// A disabled broker is not degraded, the service still ingests through
// the fallback path.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := models.HealthResponse{
		Status:        "ok",
		Kafka:         h.pipeline.Health(),
		ProducerStats: h.pipeline.Stats(),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Version:       h.version,
	}
	if resp.Kafka.Status == "degraded" {
		resp.Status = "degraded"
	}

	if h.cache != nil {
		resp.Cache = "ok"
		if _, _, err := h.cache.Get(ctx, "health:probe"); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Cache health probe failed")
			resp.Cache = "unreachable"
			resp.Status = "degraded"
		}
	}
	if h.store != nil {
		resp.Store = "ok"
		if err := h.store.Ping(ctx); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Store health probe failed")
			resp.Store = "unreachable"
			resp.Status = "degraded"
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
