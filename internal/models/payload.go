// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package models

import (
	"github.com/goccy/go-json"
)

// Event type discriminators. Unknown values are rejected at intake.
const (
	EventTypeTrack        = "track"
	EventTypeError        = "error"
	EventTypeWebVitals    = "web_vitals"
	EventTypeCustom       = "custom"
	EventTypeOutgoingLink = "outgoing_link"
)

// KnownEventType reports whether t is one of the five event kinds.
func KnownEventType(t string) bool {
	switch t {
	case EventTypeTrack, EventTypeError, EventTypeWebVitals, EventTypeCustom, EventTypeOutgoingLink:
		return true
	}
	return false
}

// RawEvent is the inbound SDK wire shape. Type discriminates the event
// kind; the remaining fields are populated per kind and may be absent.
//
// The track kind carries its fields top-level. The error and web_vitals
// kinds wrap theirs under Payload (with ids either top-level or inside
// the payload; payload values win). Numeric fields arrive as JSON
// numbers and use pointers so absent values stay distinguishable from
// zero.
type RawEvent struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`

	// Identity
	EventID     string   `json:"eventId,omitempty"`
	AnonymousID string   `json:"anonymousId,omitempty"`
	SessionID   string   `json:"sessionId,omitempty"`
	Timestamp   *float64 `json:"timestamp,omitempty"` // client clock, ms

	SessionStartTime *float64 `json:"sessionStartTime,omitempty"`

	// Page context
	Path     string `json:"path,omitempty"`
	Title    string `json:"title,omitempty"`
	Referrer string `json:"referrer,omitempty"`

	// Client context
	ScreenResolution string `json:"screen_resolution,omitempty"`
	ViewportSize     string `json:"viewport_size,omitempty"`
	Language         string `json:"language,omitempty"`
	Timezone         string `json:"timezone,omitempty"`
	ConnectionType   string `json:"connection_type,omitempty"`

	// UTM attribution
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	UTMTerm     string `json:"utm_term,omitempty"`
	UTMContent  string `json:"utm_content,omitempty"`

	// Performance metrics (milliseconds)
	LoadTime         *float64 `json:"load_time,omitempty"`
	DOMReadyTime     *float64 `json:"dom_ready_time,omitempty"`
	TTFB             *float64 `json:"ttfb,omitempty"`
	ConnectionTime   *float64 `json:"connection_time,omitempty"`
	RequestTime      *float64 `json:"request_time,omitempty"`
	RenderTime       *float64 `json:"render_time,omitempty"`
	RedirectTime     *float64 `json:"redirect_time,omitempty"`
	DomainLookupTime *float64 `json:"domain_lookup_time,omitempty"`
	FCP              *float64 `json:"fcp,omitempty"`
	LCP              *float64 `json:"lcp,omitempty"`

	// Engagement
	TimeOnPage       *float64 `json:"time_on_page,omitempty"`
	ScrollDepth      *float64 `json:"scroll_depth,omitempty"`
	InteractionCount *float64 `json:"interaction_count,omitempty"`
	PageCount        *float64 `json:"page_count,omitempty"`

	// Outgoing link
	Href string `json:"href,omitempty"`
	Text string `json:"text,omitempty"`

	// Properties is an arbitrary JSON object; non-object input is stored
	// as "{}" in the canonical record.
	Properties json.RawMessage `json:"properties,omitempty"`

	// Payload wraps the error and web_vitals kinds.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is the wrapped body of an error event.
type ErrorPayload struct {
	EventID     string   `json:"eventId,omitempty"`
	AnonymousID string   `json:"anonymousId,omitempty"`
	SessionID   string   `json:"sessionId,omitempty"`
	Timestamp   *float64 `json:"timestamp,omitempty"`
	Path        string   `json:"path,omitempty"`

	Message   string   `json:"message"`
	Filename  string   `json:"filename,omitempty"`
	Lineno    *float64 `json:"lineno,omitempty"`
	Colno     *float64 `json:"colno,omitempty"`
	Stack     string   `json:"stack,omitempty"`
	ErrorType string   `json:"errorType,omitempty"`
}

// WebVitalsPayload is the wrapped body of a web_vitals event.
type WebVitalsPayload struct {
	EventID     string   `json:"eventId,omitempty"`
	AnonymousID string   `json:"anonymousId,omitempty"`
	SessionID   string   `json:"sessionId,omitempty"`
	Timestamp   *float64 `json:"timestamp,omitempty"`
	Path        string   `json:"path,omitempty"`

	FCP *float64 `json:"fcp,omitempty"`
	LCP *float64 `json:"lcp,omitempty"`
	CLS *float64 `json:"cls,omitempty"`
	FID *float64 `json:"fid,omitempty"`
	INP *float64 `json:"inp,omitempty"`
}

// ErrorPayload decodes the wrapped error body. Ids and timestamp fall
// back to the envelope when the payload omits them.
func (e *RawEvent) ErrorPayload() (ErrorPayload, error) {
	var p ErrorPayload
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return ErrorPayload{}, err
		}
	}
	if p.EventID == "" {
		p.EventID = e.EventID
	}
	if p.AnonymousID == "" {
		p.AnonymousID = e.AnonymousID
	}
	if p.SessionID == "" {
		p.SessionID = e.SessionID
	}
	if p.Timestamp == nil {
		p.Timestamp = e.Timestamp
	}
	if p.Path == "" {
		p.Path = e.Path
	}
	return p, nil
}

// WebVitalsPayload decodes the wrapped web_vitals body with the same
// envelope fallbacks as ErrorPayload.
func (e *RawEvent) WebVitalsPayload() (WebVitalsPayload, error) {
	var p WebVitalsPayload
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return WebVitalsPayload{}, err
		}
	}
	if p.EventID == "" {
		p.EventID = e.EventID
	}
	if p.AnonymousID == "" {
		p.AnonymousID = e.AnonymousID
	}
	if p.SessionID == "" {
		p.SessionID = e.SessionID
	}
	if p.Timestamp == nil {
		p.Timestamp = e.Timestamp
	}
	if p.Path == "" {
		p.Path = e.Path
	}
	return p, nil
}

// DedupEventID returns the id used for the dedup window: the wrapped
// payload's eventId when present, else the envelope's.
func (e *RawEvent) DedupEventID() string {
	switch e.Type {
	case EventTypeError:
		if p, err := e.ErrorPayload(); err == nil && p.EventID != "" {
			return p.EventID
		}
	case EventTypeWebVitals:
		if p, err := e.WebVitalsPayload(); err == nil && p.EventID != "" {
			return p.EventID
		}
	}
	return e.EventID
}

// RawAnonymousID returns the visitor id to salt, with the same
// payload-over-envelope precedence as DedupEventID.
func (e *RawEvent) RawAnonymousID() string {
	switch e.Type {
	case EventTypeError:
		if p, err := e.ErrorPayload(); err == nil && p.AnonymousID != "" {
			return p.AnonymousID
		}
	case EventTypeWebVitals:
		if p, err := e.WebVitalsPayload(); err == nil && p.AnonymousID != "" {
			return p.AnonymousID
		}
	}
	return e.AnonymousID
}
