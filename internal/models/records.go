// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package models

import "time"

// Record is the common surface of the five canonical record shapes.
// The producer keys broker messages by TenantID and routes by EventType.
type Record interface {
	EventType() string
	TenantID() string
}

// Enrichment carries the privacy-safe derivations attached to every
// canonical record. IP is the truncated form (/24 for IPv4, /48 for
// IPv6), never the raw client address. Missing lookups yield empty
// strings, never nulls.
type Enrichment struct {
	IP      string
	Country string
	Region  string
	City    string

	BrowserName    string
	BrowserVersion string
	OSName         string
	OSVersion      string
	DeviceType     string
	DeviceBrand    string
	DeviceModel    string
}

// TrackRecord is the canonical shape for page/app events.
//
// Destination: topic analytics-events, table events.
//
// Performance metrics are nullable: absent metrics stay distinguishable
// from measured zeros. Present metrics are already clamped to
// [0, 600000] ms by the builder.
type TrackRecord struct {
	ID          string `json:"id" ch:"id"`
	ClientID    string `json:"client_id" ch:"client_id"`
	EventName   string `json:"event_name" ch:"event_name"`
	AnonymousID string `json:"anonymous_id" ch:"anonymous_id"`
	SessionID   string `json:"session_id" ch:"session_id"`
	EventID     string `json:"event_id" ch:"event_id"`
	Timestamp   int64  `json:"timestamp" ch:"timestamp"`

	SessionStartTime int64 `json:"session_start_time" ch:"session_start_time"`

	// Page context
	Path     string `json:"path" ch:"path"`
	Title    string `json:"title" ch:"title"`
	Referrer string `json:"referrer" ch:"referrer"`

	// Client context
	ScreenResolution string `json:"screen_resolution" ch:"screen_resolution"`
	ViewportSize     string `json:"viewport_size" ch:"viewport_size"`
	Language         string `json:"language" ch:"language"`
	Timezone         string `json:"timezone" ch:"timezone"`
	ConnectionType   string `json:"connection_type" ch:"connection_type"`

	// UTM attribution
	UTMSource   string `json:"utm_source" ch:"utm_source"`
	UTMMedium   string `json:"utm_medium" ch:"utm_medium"`
	UTMCampaign string `json:"utm_campaign" ch:"utm_campaign"`
	UTMTerm     string `json:"utm_term" ch:"utm_term"`
	UTMContent  string `json:"utm_content" ch:"utm_content"`

	// Performance metrics (ms, nullable)
	LoadTime         *float64 `json:"load_time" ch:"load_time"`
	DOMReadyTime     *float64 `json:"dom_ready_time" ch:"dom_ready_time"`
	TTFB             *float64 `json:"ttfb" ch:"ttfb"`
	ConnectionTime   *float64 `json:"connection_time" ch:"connection_time"`
	RequestTime      *float64 `json:"request_time" ch:"request_time"`
	RenderTime       *float64 `json:"render_time" ch:"render_time"`
	RedirectTime     *float64 `json:"redirect_time" ch:"redirect_time"`
	DomainLookupTime *float64 `json:"domain_lookup_time" ch:"domain_lookup_time"`
	FCP              *float64 `json:"fcp" ch:"fcp"`
	LCP              *float64 `json:"lcp" ch:"lcp"`

	// Engagement
	TimeOnPage       *float64 `json:"time_on_page" ch:"time_on_page"`
	ScrollDepth      *float64 `json:"scroll_depth" ch:"scroll_depth"`
	InteractionCount *int32   `json:"interaction_count" ch:"interaction_count"`
	PageCount        int32    `json:"page_count" ch:"page_count"`

	// Enrichment
	IP             string `json:"ip" ch:"ip"`
	Country        string `json:"country" ch:"country"`
	Region         string `json:"region" ch:"region"`
	City           string `json:"city" ch:"city"`
	BrowserName    string `json:"browser_name" ch:"browser_name"`
	BrowserVersion string `json:"browser_version" ch:"browser_version"`
	OSName         string `json:"os_name" ch:"os_name"`
	OSVersion      string `json:"os_version" ch:"os_version"`
	DeviceType     string `json:"device_type" ch:"device_type"`
	DeviceBrand    string `json:"device_brand" ch:"device_brand"`
	DeviceModel    string `json:"device_model" ch:"device_model"`

	Properties string    `json:"properties" ch:"properties"`
	CreatedAt  time.Time `json:"created_at" ch:"created_at"`
}

func (r *TrackRecord) EventType() string { return EventTypeTrack }
func (r *TrackRecord) TenantID() string  { return r.ClientID }

// ErrorRecord is the canonical shape for client error events.
//
// Destination: topic analytics-errors, table errors.
type ErrorRecord struct {
	ID          string `json:"id" ch:"id"`
	ClientID    string `json:"client_id" ch:"client_id"`
	AnonymousID string `json:"anonymous_id" ch:"anonymous_id"`
	SessionID   string `json:"session_id" ch:"session_id"`
	EventID     string `json:"event_id" ch:"event_id"`
	Timestamp   int64  `json:"timestamp" ch:"timestamp"`

	Path      string `json:"path" ch:"path"`
	Message   string `json:"message" ch:"message"`
	Filename  string `json:"filename" ch:"filename"`
	Lineno    int32  `json:"lineno" ch:"lineno"`
	Colno     int32  `json:"colno" ch:"colno"`
	Stack     string `json:"stack" ch:"stack"`
	ErrorType string `json:"error_type" ch:"error_type"`

	// Enrichment
	IP             string `json:"ip" ch:"ip"`
	Country        string `json:"country" ch:"country"`
	Region         string `json:"region" ch:"region"`
	City           string `json:"city" ch:"city"`
	BrowserName    string `json:"browser_name" ch:"browser_name"`
	BrowserVersion string `json:"browser_version" ch:"browser_version"`
	OSName         string `json:"os_name" ch:"os_name"`
	OSVersion      string `json:"os_version" ch:"os_version"`
	DeviceType     string `json:"device_type" ch:"device_type"`
	DeviceBrand    string `json:"device_brand" ch:"device_brand"`
	DeviceModel    string `json:"device_model" ch:"device_model"`

	CreatedAt time.Time `json:"created_at" ch:"created_at"`
}

func (r *ErrorRecord) EventType() string { return EventTypeError }
func (r *ErrorRecord) TenantID() string  { return r.ClientID }

// WebVitalsRecord is the canonical shape for Core Web Vitals samples.
//
// Destination: topic analytics-web-vitals, table web_vitals.
type WebVitalsRecord struct {
	ID          string `json:"id" ch:"id"`
	ClientID    string `json:"client_id" ch:"client_id"`
	AnonymousID string `json:"anonymous_id" ch:"anonymous_id"`
	SessionID   string `json:"session_id" ch:"session_id"`
	EventID     string `json:"event_id" ch:"event_id"`
	Timestamp   int64  `json:"timestamp" ch:"timestamp"`

	Path string `json:"path" ch:"path"`

	FCP *float64 `json:"fcp" ch:"fcp"`
	LCP *float64 `json:"lcp" ch:"lcp"`
	CLS *float64 `json:"cls" ch:"cls"`
	FID *float64 `json:"fid" ch:"fid"`
	INP *float64 `json:"inp" ch:"inp"`

	// Enrichment
	IP             string `json:"ip" ch:"ip"`
	Country        string `json:"country" ch:"country"`
	Region         string `json:"region" ch:"region"`
	City           string `json:"city" ch:"city"`
	BrowserName    string `json:"browser_name" ch:"browser_name"`
	BrowserVersion string `json:"browser_version" ch:"browser_version"`
	OSName         string `json:"os_name" ch:"os_name"`
	OSVersion      string `json:"os_version" ch:"os_version"`
	DeviceType     string `json:"device_type" ch:"device_type"`
	DeviceBrand    string `json:"device_brand" ch:"device_brand"`
	DeviceModel    string `json:"device_model" ch:"device_model"`

	CreatedAt time.Time `json:"created_at" ch:"created_at"`
}

func (r *WebVitalsRecord) EventType() string { return EventTypeWebVitals }
func (r *WebVitalsRecord) TenantID() string  { return r.ClientID }

// CustomEventRecord is the canonical shape for application-defined events.
//
// Destination: topic analytics-custom-events, table custom_events.
type CustomEventRecord struct {
	ID          string `json:"id" ch:"id"`
	ClientID    string `json:"client_id" ch:"client_id"`
	EventName   string `json:"event_name" ch:"event_name"`
	AnonymousID string `json:"anonymous_id" ch:"anonymous_id"`
	SessionID   string `json:"session_id" ch:"session_id"`
	EventID     string `json:"event_id" ch:"event_id"`
	Timestamp   int64  `json:"timestamp" ch:"timestamp"`

	Properties string `json:"properties" ch:"properties"`

	// Enrichment
	IP             string `json:"ip" ch:"ip"`
	Country        string `json:"country" ch:"country"`
	Region         string `json:"region" ch:"region"`
	City           string `json:"city" ch:"city"`
	BrowserName    string `json:"browser_name" ch:"browser_name"`
	BrowserVersion string `json:"browser_version" ch:"browser_version"`
	OSName         string `json:"os_name" ch:"os_name"`
	OSVersion      string `json:"os_version" ch:"os_version"`
	DeviceType     string `json:"device_type" ch:"device_type"`
	DeviceBrand    string `json:"device_brand" ch:"device_brand"`
	DeviceModel    string `json:"device_model" ch:"device_model"`

	CreatedAt time.Time `json:"created_at" ch:"created_at"`
}

func (r *CustomEventRecord) EventType() string { return EventTypeCustom }
func (r *CustomEventRecord) TenantID() string  { return r.ClientID }

// OutgoingLinkRecord is the canonical shape for outbound link clicks.
//
// Destination: topic analytics-outgoing-links, table outgoing_links.
type OutgoingLinkRecord struct {
	ID          string `json:"id" ch:"id"`
	ClientID    string `json:"client_id" ch:"client_id"`
	AnonymousID string `json:"anonymous_id" ch:"anonymous_id"`
	SessionID   string `json:"session_id" ch:"session_id"`
	EventID     string `json:"event_id" ch:"event_id"`
	Timestamp   int64  `json:"timestamp" ch:"timestamp"`

	Href string `json:"href" ch:"href"`
	Text string `json:"text" ch:"text"`

	Properties string `json:"properties" ch:"properties"`

	// Enrichment
	IP             string `json:"ip" ch:"ip"`
	Country        string `json:"country" ch:"country"`
	Region         string `json:"region" ch:"region"`
	City           string `json:"city" ch:"city"`
	BrowserName    string `json:"browser_name" ch:"browser_name"`
	BrowserVersion string `json:"browser_version" ch:"browser_version"`
	OSName         string `json:"os_name" ch:"os_name"`
	OSVersion      string `json:"os_version" ch:"os_version"`
	DeviceType     string `json:"device_type" ch:"device_type"`
	DeviceBrand    string `json:"device_brand" ch:"device_brand"`
	DeviceModel    string `json:"device_model" ch:"device_model"`

	CreatedAt time.Time `json:"created_at" ch:"created_at"`
}

func (r *OutgoingLinkRecord) EventType() string { return EventTypeOutgoingLink }
func (r *OutgoingLinkRecord) TenantID() string  { return r.ClientID }

// Verify interface implementations at compile time
var (
	_ Record = (*TrackRecord)(nil)
	_ Record = (*ErrorRecord)(nil)
	_ Record = (*WebVitalsRecord)(nil)
	_ Record = (*CustomEventRecord)(nil)
	_ Record = (*OutgoingLinkRecord)(nil)
)
