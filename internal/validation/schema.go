// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package validation

import (
	"strings"

	"github.com/databuddy-analytics/basket/internal/models"
)

// MaxBatchSize caps the /batch array length.
const MaxBatchSize = 100

// filteredMessages are browser noise reported by every page load
// somewhere: opaque cross-origin script failures and the two benign
// ResizeObserver loop warnings. Events carrying them are ignored, not
// ingested.
var filteredMessages = map[string]struct{}{
	"Script error.":                      {},
	"Script error":                       {},
	"ResizeObserver loop limit exceeded": {},
	"ResizeObserver loop completed with undelivered notifications.": {},
}

// FilteredMessage reports whether an error message is in the noise
// filter set.
func FilteredMessage(msg string) bool {
	_, ok := filteredMessages[strings.TrimSpace(msg)]
	return ok
}

// Per-kind schema shapes. Length caps mirror the sanitization caps, so
// after SanitizeEvent only the required tags can fire.

type trackSchema struct {
	Name string `validate:"required,max=255"`
}

type errorSchema struct {
	Message string `validate:"required,max=1024"`
}

type customSchema struct {
	Name string `validate:"required,max=255"`
}

type outgoingLinkSchema struct {
	Href string `validate:"required,max=4096"`
}

// CheckSchema validates the kind-specific required fields of a raw
// event. Returns nil when the event satisfies its schema. Callers skip
// this check in development mode.
func CheckSchema(ev *models.RawEvent) *RequestValidationError {
	switch ev.Type {
	case models.EventTypeTrack:
		return ValidateStruct(&trackSchema{Name: ev.Name})

	case models.EventTypeError:
		p, err := ev.ErrorPayload()
		if err != nil {
			return payloadDecodeError()
		}
		return ValidateStruct(&errorSchema{Message: p.Message})

	case models.EventTypeWebVitals:
		p, err := ev.WebVitalsPayload()
		if err != nil {
			return payloadDecodeError()
		}
		if p.FCP == nil && p.LCP == nil && p.CLS == nil && p.FID == nil && p.INP == nil {
			return &RequestValidationError{errors: []ValidationError{{
				field:   "Payload",
				tag:     "required",
				message: "web_vitals requires at least one metric",
			}}}
		}
		return nil

	case models.EventTypeCustom:
		return ValidateStruct(&customSchema{Name: ev.Name})

	case models.EventTypeOutgoingLink:
		return ValidateStruct(&outgoingLinkSchema{Href: ev.Href})
	}

	// Unknown types are rejected before schema validation runs.
	return nil
}

func payloadDecodeError() *RequestValidationError {
	return &RequestValidationError{errors: []ValidationError{{
		field:   "Payload",
		tag:     "json",
		message: "payload must be a JSON object",
	}}}
}
