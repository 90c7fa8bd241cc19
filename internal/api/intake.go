// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/databuddy-analytics/basket/internal/anonymize"
	"github.com/databuddy-analytics/basket/internal/eventprocessor"
	"github.com/databuddy-analytics/basket/internal/logging"
	"github.com/databuddy-analytics/basket/internal/metrics"
	"github.com/databuddy-analytics/basket/internal/models"
	"github.com/databuddy-analytics/basket/internal/validation"
)

// requestMeta carries the request-level inputs shared by every event in
// the request. The daily salt is resolved once here, so a batch
// straddling UTC midnight salts all its events with the same value, and
// the enrichment is derived once since it depends only on connection
// facts.
type requestMeta struct {
	tenantID   string
	userAgent  string
	salt       string
	enrichment models.Enrichment
}

// authorize runs the request-level checks shared by both intake
// endpoints: tenant resolution, origin allowlist, and rate limit.
// Denials come back as a PolicyError; callers convert them to an error
// result body, never to an HTTP error status.
func (h *Handler) authorize(r *http.Request) (string, *validation.PolicyError) {
	clientID := r.URL.Query().Get("client_id")
	tenant, perr := h.tenants.Authorize(clientID, r.Header.Get("Origin"))
	if perr != nil {
		return "", perr
	}
	if h.limiter != nil && !h.limiter.Allow(tenant.ClientID) {
		return "", &validation.PolicyError{
			Code:    models.CodeRateLimited,
			Message: "Rate limit exceeded",
		}
	}
	return tenant.ClientID, nil
}

// newRequestMeta captures the shared per-request facts after the
// request has been authorized.
func (h *Handler) newRequestMeta(r *http.Request, tenantID string) requestMeta {
	return requestMeta{
		tenantID:   tenantID,
		userAgent:  r.UserAgent(),
		salt:       h.anonymizer.DailySalt(r.Context()),
		enrichment: h.enricher.Enrich(r.RemoteAddr, r.UserAgent()),
	}
}

// readBody drains the request body. The size cap is enforced upstream
// by the body-limit middleware, so an overrun surfaces here as
// *http.MaxBytesError.
func readBody(r *http.Request) ([]byte, *models.IntakeResult) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			res := errorResult(models.CodeInvalidRequest, "Payload too large")
			return nil, &res
		}
		res := errorResult(models.CodeInvalidRequest, "Unable to read request body")
		return nil, &res
	}
	metrics.IntakePayloadBytes.Observe(float64(len(body)))
	return body, nil
}

func errorResult(code, message string) models.IntakeResult {
	return models.IntakeResult{Status: models.StatusError, Code: code, Message: message}
}

// typeLabel bounds metric cardinality against client-supplied type
// strings.
func typeLabel(eventType string) string {
	if models.KnownEventType(eventType) {
		return eventType
	}
	return "unknown"
}

// prepareEvent runs the per-event stages on one decoded element: bot
// filtering, sanitization, schema validation, noise filtering, dedup,
// anonymization, and record assembly. A nil record means the event
// reached a terminal result (error, ignored, or duplicate) and must not
// be published; those outcomes are counted here, while publish outcomes
// are counted by the caller.
func (h *Handler) prepareEvent(ctx context.Context, meta requestMeta, raw json.RawMessage) (models.IntakeResult, models.Record) {
	var ev models.RawEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		metrics.RecordIntakeEvent("unknown", models.StatusError, models.CodeInvalidRequest)
		return errorResult(models.CodeInvalidRequest, "Invalid JSON payload"), nil
	}

	// Bot traffic is acknowledged and dropped before anything else runs.
	if botName, isBot := h.bots.Match(meta.userAgent); isBot {
		logging.Ctx(ctx).Debug().
			Str("client_id", meta.tenantID).
			Str("bot", botName).
			Msg("Bot event ignored")
		metrics.RecordIntakeEvent(typeLabel(ev.Type), models.StatusIgnored, models.CodeIgnoredBot)
		return models.IntakeResult{
			Status: models.StatusIgnored,
			Type:   ev.Type,
			Reason: models.ReasonBot,
		}, nil
	}

	if !models.KnownEventType(ev.Type) {
		metrics.RecordIntakeEvent("unknown", models.StatusError, models.CodeInvalidRequest)
		return errorResult(models.CodeInvalidRequest, "Unknown event type"), nil
	}

	validation.SanitizeEvent(&ev)

	if !h.development {
		if verr := validation.CheckSchema(&ev); verr != nil {
			issues := verr.Issues()
			logging.Ctx(ctx).Warn().
				Str("client_id", meta.tenantID).
				Str("event_type", ev.Type).
				Strs("issues", issues).
				Msg("blocked_traffic")
			metrics.RecordIntakeEvent(ev.Type, models.StatusError, models.CodeSchemaInvalid)
			res := errorResult(models.CodeSchemaInvalid, "Event failed validation")
			res.Type = ev.Type
			res.Errors = issues
			return res, nil
		}
	}

	// Known-noise error messages are acknowledged and dropped.
	if ev.Type == models.EventTypeError {
		if payload, err := ev.ErrorPayload(); err == nil && validation.FilteredMessage(payload.Message) {
			metrics.RecordIntakeEvent(ev.Type, models.StatusIgnored, models.CodeIgnoredFiltered)
			return models.IntakeResult{
				Status: models.StatusIgnored,
				Type:   ev.Type,
				Reason: models.ReasonFilteredMessage,
			}, nil
		}
	}

	// Replays acknowledge success without producing a second record.
	eventID := ev.DedupEventID()
	if eventID != "" && h.dedup.IsDuplicate(ctx, ev.Type, eventID) {
		logging.Ctx(ctx).Debug().
			Str("client_id", meta.tenantID).
			Str("event_type", ev.Type).
			Str("event_id", eventID).
			Msg("Duplicate event skipped")
		metrics.RecordIntakeEvent(ev.Type, models.StatusSuccess, models.CodeDuplicate)
		return models.IntakeResult{Status: models.StatusSuccess, Type: ev.Type}, nil
	}

	anonID := ""
	if rawID := ev.RawAnonymousID(); rawID != "" {
		anonID = anonymize.Salt(rawID, meta.salt)
	}

	rec, _, err := eventprocessor.BuildRecord(eventprocessor.BuildInput{
		TenantID:    meta.tenantID,
		Event:       &ev,
		AnonymousID: anonID,
		Enrichment:  meta.enrichment,
		Now:         time.Now(),
	})
	if err != nil {
		// Unknown types were rejected above; anything left is a payload
		// decode problem.
		logging.Ctx(ctx).Debug().
			Err(err).
			Str("event_type", ev.Type).
			Msg("Record assembly failed")
		metrics.RecordIntakeEvent(ev.Type, models.StatusError, models.CodeInvalidRequest)
		return errorResult(models.CodeInvalidRequest, "Invalid event payload"), nil
	}

	return models.IntakeResult{
		Status:  models.StatusSuccess,
		Type:    ev.Type,
		EventID: eventID,
	}, rec
}

// HandleEvent accepts one event object on POST /. Well-formed requests
// always answer 200; the outcome lives in the body status field.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	tenantID, perr := h.authorize(r)
	if perr != nil {
		metrics.RecordIntakeEvent("unknown", models.StatusError, perr.Code)
		respondResult(w, errorResult(perr.Code, perr.Message))
		return
	}

	body, fail := readBody(r)
	if fail != nil {
		metrics.RecordIntakeEvent("unknown", models.StatusError, fail.Code)
		respondResult(w, *fail)
		return
	}

	meta := h.newRequestMeta(r, tenantID)
	res, rec := h.prepareEvent(r.Context(), meta, body)
	if rec != nil {
		if err := h.pipeline.Publish(r.Context(), rec); err != nil {
			logging.Ctx(r.Context()).Error().
				Err(err).
				Str("event_type", rec.EventType()).
				Msg("Publish failed after intake")
			metrics.RecordIntakeEvent(rec.EventType(), models.StatusError, models.CodeInternalError)
			respondResult(w, errorResult(models.CodeInternalError, "Failed to process event"))
			return
		}
		metrics.RecordIntakeEvent(rec.EventType(), models.StatusSuccess, "")
	}
	respondResult(w, res)
}

// HandleBatch accepts a JSON array of up to MaxBatchSize events on
// POST /batch. Request-level checks run once, then elements fan out
// concurrently with results kept in their submitted positions. Element
// failures become individual result entries and never abort the batch;
// the container status stays "success" unless the batch itself is
// unusable.
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	tenantID, perr := h.authorize(r)
	if perr != nil {
		metrics.RecordIntakeEvent("unknown", models.StatusError, perr.Code)
		respondBatchError(w, perr.Code, perr.Message)
		return
	}

	body, fail := readBody(r)
	if fail != nil {
		metrics.RecordIntakeEvent("unknown", models.StatusError, fail.Code)
		respondBatchError(w, fail.Code, fail.Message)
		return
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(body, &elements); err != nil {
		metrics.RecordIntakeEvent("unknown", models.StatusError, models.CodeInvalidRequest)
		respondBatchError(w, models.CodeInvalidRequest, "Invalid batch format: expected a JSON array")
		return
	}
	if len(elements) > validation.MaxBatchSize {
		metrics.RecordIntakeEvent("unknown", models.StatusError, models.CodeInvalidRequest)
		respondBatchError(w, models.CodeInvalidRequest, "Batch too large")
		return
	}
	metrics.IntakeBatchSize.Observe(float64(len(elements)))

	meta := h.newRequestMeta(r, tenantID)
	results := make([]models.IntakeResult, len(elements))
	records := make([]models.Record, len(elements))

	var wg sync.WaitGroup
	for i, raw := range elements {
		wg.Add(1)
		go func(i int, raw json.RawMessage) {
			defer wg.Done()
			results[i], records[i] = h.prepareEvent(r.Context(), meta, raw)
		}(i, raw)
	}
	wg.Wait()

	accepted := make([]models.Record, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			accepted = append(accepted, rec)
		}
	}

	if len(accepted) > 0 {
		if err := h.pipeline.PublishAll(r.Context(), accepted); err != nil {
			logging.Ctx(r.Context()).Error().
				Err(err).
				Int("events", len(accepted)).
				Msg("Batch publish failed after intake")
			for i, rec := range records {
				if rec == nil {
					continue
				}
				metrics.RecordIntakeEvent(rec.EventType(), models.StatusError, models.CodeInternalError)
				results[i] = errorResult(models.CodeInternalError, "Failed to process event")
			}
		} else {
			for _, rec := range accepted {
				metrics.RecordIntakeEvent(rec.EventType(), models.StatusSuccess, "")
			}
		}
	}

	respondJSON(w, http.StatusOK, models.BatchResult{
		Status:    models.StatusSuccess,
		Batch:     true,
		Processed: len(elements),
		Results:   results,
	})
}
