// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/databuddy-analytics/basket/internal/logging"
	"github.com/databuddy-analytics/basket/internal/models"
)

// respondJSON writes a JSON body with proper headers.
func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// respondResult writes a single-event result. Always 200; the outcome
// lives in the body status.
func respondResult(w http.ResponseWriter, res models.IntakeResult) {
	respondJSON(w, http.StatusOK, res)
}

// respondBatchError writes a whole-batch failure container. Reserved
// for problems with the request itself, never for individual events.
func respondBatchError(w http.ResponseWriter, code, message string) {
	respondJSON(w, http.StatusOK, models.BatchResult{
		Status:  models.StatusError,
		Batch:   true,
		Results: []models.IntakeResult{},
		Code:    code,
		Message: message,
	})
}
