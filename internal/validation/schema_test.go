// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package validation

import (
	"encoding/json"
	"testing"

	"github.com/databuddy-analytics/basket/internal/models"
)

func TestFilteredMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want bool
	}{
		{name: "cross-origin script error", msg: "Script error.", want: true},
		{name: "script error without period", msg: "Script error", want: true},
		{name: "resize observer limit", msg: "ResizeObserver loop limit exceeded", want: true},
		{name: "resize observer undelivered", msg: "ResizeObserver loop completed with undelivered notifications.", want: true},
		{name: "padded whitespace", msg: "  Script error.  ", want: true},
		{name: "real error", msg: "TypeError: x is undefined", want: false},
		{name: "empty message", msg: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FilteredMessage(tt.msg); got != tt.want {
				t.Errorf("FilteredMessage(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}

func TestCheckSchema(t *testing.T) {
	tests := []struct {
		name      string
		event     models.RawEvent
		wantValid bool
	}{
		{
			name:      "track with name",
			event:     models.RawEvent{Type: models.EventTypeTrack, Name: "screen_view"},
			wantValid: true,
		},
		{
			name:      "track without name",
			event:     models.RawEvent{Type: models.EventTypeTrack},
			wantValid: false,
		},
		{
			name: "error with message",
			event: models.RawEvent{
				Type:    models.EventTypeError,
				Payload: json.RawMessage(`{"eventId":"e1","message":"boom"}`),
			},
			wantValid: true,
		},
		{
			name: "error without message",
			event: models.RawEvent{
				Type:    models.EventTypeError,
				Payload: json.RawMessage(`{"eventId":"e1"}`),
			},
			wantValid: false,
		},
		{
			name: "error with malformed payload",
			event: models.RawEvent{
				Type:    models.EventTypeError,
				Payload: json.RawMessage(`[1,2,3]`),
			},
			wantValid: false,
		},
		{
			name: "web vitals with one metric",
			event: models.RawEvent{
				Type:    models.EventTypeWebVitals,
				Payload: json.RawMessage(`{"lcp":2500.5}`),
			},
			wantValid: true,
		},
		{
			name: "web vitals without metrics",
			event: models.RawEvent{
				Type:    models.EventTypeWebVitals,
				Payload: json.RawMessage(`{"eventId":"v1"}`),
			},
			wantValid: false,
		},
		{
			name:      "custom with name",
			event:     models.RawEvent{Type: models.EventTypeCustom, Name: "signup_clicked"},
			wantValid: true,
		},
		{
			name:      "custom without name",
			event:     models.RawEvent{Type: models.EventTypeCustom},
			wantValid: false,
		},
		{
			name:      "outgoing link with href",
			event:     models.RawEvent{Type: models.EventTypeOutgoingLink, Href: "https://example.com"},
			wantValid: true,
		},
		{
			name:      "outgoing link without href",
			event:     models.RawEvent{Type: models.EventTypeOutgoingLink},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := CheckSchema(&tt.event)
			if tt.wantValid && verr != nil {
				t.Errorf("CheckSchema() returned unexpected error: %v", verr)
			}
			if !tt.wantValid {
				if verr == nil {
					t.Fatal("CheckSchema() should have failed")
				}
				if len(verr.Issues()) == 0 {
					t.Error("schema failure should carry at least one issue")
				}
			}
		})
	}
}

func TestCheckSchema_EnvelopeFallback(t *testing.T) {
	// An error event may carry its message in the payload while the ids
	// live on the envelope.
	ev := models.RawEvent{
		Type:    models.EventTypeError,
		EventID: "e1",
		Payload: json.RawMessage(`{"message":"ReferenceError: x"}`),
	}
	if verr := CheckSchema(&ev); verr != nil {
		t.Errorf("CheckSchema() returned unexpected error: %v", verr)
	}
}
