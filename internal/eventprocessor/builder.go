// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package eventprocessor

import (
	"bytes"
	"fmt"
	"math"
	"regexp"
	"time"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/databuddy-analytics/basket/internal/models"
	"github.com/databuddy-analytics/basket/internal/validation"
)

// maxMetricMillis caps every performance and engagement metric at ten
// minutes. Values beyond this are clock skew or instrumentation bugs,
// not real page timings.
const maxMetricMillis = 600000

// maxEpochMillis bounds client-reported clocks to values a JS
// Date.now() can actually produce (2^53, the float64 integer limit).
// Anything past it would overflow the int64 conversion.
const maxEpochMillis = 1 << 53

// sessionIDPattern is the only shape accepted for client session ids.
// Anything else is replaced with a fresh random id rather than stored.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// BuildInput carries everything record assembly needs. AnonymousID is
// the salted visitor id; the raw client value never reaches this stage.
type BuildInput struct {
	TenantID    string
	Event       *models.RawEvent
	AnonymousID string
	Enrichment  models.Enrichment
	Now         time.Time
}

// BuildRecord assembles the canonical record for a validated raw event
// and resolves its delivery destination. Field-level defense lives
// here: metric clamping, id fallbacks, and properties normalization.
// The input event is not modified.
func BuildRecord(in BuildInput) (models.Record, Destination, error) {
	ev := in.Event
	if ev == nil {
		return nil, Destination{}, fmt.Errorf("cannot build record from nil event")
	}
	dest, ok := DestinationFor(ev.Type)
	if !ok {
		return nil, Destination{}, fmt.Errorf("%w: %q", ErrUnknownEventType, ev.Type)
	}

	var (
		rec models.Record
		err error
	)
	switch ev.Type {
	case models.EventTypeTrack:
		rec = buildTrack(in)
	case models.EventTypeError:
		rec, err = buildError(in)
	case models.EventTypeWebVitals:
		rec, err = buildWebVitals(in)
	case models.EventTypeCustom:
		rec = buildCustom(in)
	case models.EventTypeOutgoingLink:
		rec = buildOutgoingLink(in)
	}
	if err != nil {
		return nil, Destination{}, err
	}
	return rec, dest, nil
}

func buildTrack(in BuildInput) *models.TrackRecord {
	ev := in.Event
	ts := timestampMillis(ev.Timestamp, in.Now)

	return &models.TrackRecord{
		ID:          uuid.NewString(),
		ClientID:    in.TenantID,
		EventName:   ev.Name,
		AnonymousID: in.AnonymousID,
		SessionID:   sessionID(ev.SessionID),
		EventID:     eventID(ev.EventID),
		Timestamp:   ts,

		SessionStartTime: sessionStartMillis(ev.SessionStartTime, ts),

		Path:     ev.Path,
		Title:    ev.Title,
		Referrer: ev.Referrer,

		ScreenResolution: ev.ScreenResolution,
		ViewportSize:     ev.ViewportSize,
		Language:         ev.Language,
		Timezone:         ev.Timezone,
		ConnectionType:   ev.ConnectionType,

		UTMSource:   ev.UTMSource,
		UTMMedium:   ev.UTMMedium,
		UTMCampaign: ev.UTMCampaign,
		UTMTerm:     ev.UTMTerm,
		UTMContent:  ev.UTMContent,

		LoadTime:         clampMetric(ev.LoadTime),
		DOMReadyTime:     clampMetric(ev.DOMReadyTime),
		TTFB:             clampMetric(ev.TTFB),
		ConnectionTime:   clampMetric(ev.ConnectionTime),
		RequestTime:      clampMetric(ev.RequestTime),
		RenderTime:       clampMetric(ev.RenderTime),
		RedirectTime:     clampMetric(ev.RedirectTime),
		DomainLookupTime: clampMetric(ev.DomainLookupTime),
		FCP:              clampMetric(ev.FCP),
		LCP:              clampMetric(ev.LCP),

		TimeOnPage:       clampMetric(ev.TimeOnPage),
		ScrollDepth:      clampMetric(ev.ScrollDepth),
		InteractionCount: clampCount(ev.InteractionCount),
		PageCount:        pageCount(ev.PageCount),

		IP:             in.Enrichment.IP,
		Country:        in.Enrichment.Country,
		Region:         in.Enrichment.Region,
		City:           in.Enrichment.City,
		BrowserName:    in.Enrichment.BrowserName,
		BrowserVersion: in.Enrichment.BrowserVersion,
		OSName:         in.Enrichment.OSName,
		OSVersion:      in.Enrichment.OSVersion,
		DeviceType:     in.Enrichment.DeviceType,
		DeviceBrand:    in.Enrichment.DeviceBrand,
		DeviceModel:    in.Enrichment.DeviceModel,

		Properties: normalizeProperties(ev.Properties),
		CreatedAt:  in.Now.UTC(),
	}
}

func buildError(in BuildInput) (*models.ErrorRecord, error) {
	p, err := in.Event.ErrorPayload()
	if err != nil {
		return nil, fmt.Errorf("decode error payload: %w", err)
	}
	validation.SanitizeErrorPayload(&p)

	return &models.ErrorRecord{
		ID:          uuid.NewString(),
		ClientID:    in.TenantID,
		AnonymousID: in.AnonymousID,
		SessionID:   sessionID(p.SessionID),
		EventID:     eventID(p.EventID),
		Timestamp:   timestampMillis(p.Timestamp, in.Now),

		Path:      p.Path,
		Message:   p.Message,
		Filename:  p.Filename,
		Lineno:    positionValue(p.Lineno),
		Colno:     positionValue(p.Colno),
		Stack:     p.Stack,
		ErrorType: p.ErrorType,

		IP:             in.Enrichment.IP,
		Country:        in.Enrichment.Country,
		Region:         in.Enrichment.Region,
		City:           in.Enrichment.City,
		BrowserName:    in.Enrichment.BrowserName,
		BrowserVersion: in.Enrichment.BrowserVersion,
		OSName:         in.Enrichment.OSName,
		OSVersion:      in.Enrichment.OSVersion,
		DeviceType:     in.Enrichment.DeviceType,
		DeviceBrand:    in.Enrichment.DeviceBrand,
		DeviceModel:    in.Enrichment.DeviceModel,

		CreatedAt: in.Now.UTC(),
	}, nil
}

func buildWebVitals(in BuildInput) (*models.WebVitalsRecord, error) {
	p, err := in.Event.WebVitalsPayload()
	if err != nil {
		return nil, fmt.Errorf("decode web_vitals payload: %w", err)
	}
	validation.SanitizeWebVitalsPayload(&p)

	return &models.WebVitalsRecord{
		ID:          uuid.NewString(),
		ClientID:    in.TenantID,
		AnonymousID: in.AnonymousID,
		SessionID:   sessionID(p.SessionID),
		EventID:     eventID(p.EventID),
		Timestamp:   timestampMillis(p.Timestamp, in.Now),

		Path: p.Path,

		FCP: clampMetric(p.FCP),
		LCP: clampMetric(p.LCP),
		CLS: clampMetric(p.CLS),
		FID: clampMetric(p.FID),
		INP: clampMetric(p.INP),

		IP:             in.Enrichment.IP,
		Country:        in.Enrichment.Country,
		Region:         in.Enrichment.Region,
		City:           in.Enrichment.City,
		BrowserName:    in.Enrichment.BrowserName,
		BrowserVersion: in.Enrichment.BrowserVersion,
		OSName:         in.Enrichment.OSName,
		OSVersion:      in.Enrichment.OSVersion,
		DeviceType:     in.Enrichment.DeviceType,
		DeviceBrand:    in.Enrichment.DeviceBrand,
		DeviceModel:    in.Enrichment.DeviceModel,

		CreatedAt: in.Now.UTC(),
	}, nil
}

func buildCustom(in BuildInput) *models.CustomEventRecord {
	ev := in.Event

	return &models.CustomEventRecord{
		ID:          uuid.NewString(),
		ClientID:    in.TenantID,
		EventName:   ev.Name,
		AnonymousID: in.AnonymousID,
		SessionID:   sessionID(ev.SessionID),
		EventID:     eventID(ev.EventID),
		Timestamp:   timestampMillis(ev.Timestamp, in.Now),

		Properties: normalizeProperties(ev.Properties),

		IP:             in.Enrichment.IP,
		Country:        in.Enrichment.Country,
		Region:         in.Enrichment.Region,
		City:           in.Enrichment.City,
		BrowserName:    in.Enrichment.BrowserName,
		BrowserVersion: in.Enrichment.BrowserVersion,
		OSName:         in.Enrichment.OSName,
		OSVersion:      in.Enrichment.OSVersion,
		DeviceType:     in.Enrichment.DeviceType,
		DeviceBrand:    in.Enrichment.DeviceBrand,
		DeviceModel:    in.Enrichment.DeviceModel,

		CreatedAt: in.Now.UTC(),
	}
}

func buildOutgoingLink(in BuildInput) *models.OutgoingLinkRecord {
	ev := in.Event

	return &models.OutgoingLinkRecord{
		ID:          uuid.NewString(),
		ClientID:    in.TenantID,
		AnonymousID: in.AnonymousID,
		SessionID:   sessionID(ev.SessionID),
		EventID:     eventID(ev.EventID),
		Timestamp:   timestampMillis(ev.Timestamp, in.Now),

		Href: ev.Href,
		Text: ev.Text,

		Properties: normalizeProperties(ev.Properties),

		IP:             in.Enrichment.IP,
		Country:        in.Enrichment.Country,
		Region:         in.Enrichment.Region,
		City:           in.Enrichment.City,
		BrowserName:    in.Enrichment.BrowserName,
		BrowserVersion: in.Enrichment.BrowserVersion,
		OSName:         in.Enrichment.OSName,
		OSVersion:      in.Enrichment.OSVersion,
		DeviceType:     in.Enrichment.DeviceType,
		DeviceBrand:    in.Enrichment.DeviceBrand,
		DeviceModel:    in.Enrichment.DeviceModel,

		CreatedAt: in.Now.UTC(),
	}
}

// sessionID keeps a well-formed client session id and replaces
// anything else, including absent ids, with a fresh random one.
func sessionID(raw string) string {
	if sessionIDPattern.MatchString(raw) {
		return raw
	}
	return uuid.NewString()
}

// eventID keeps the client's id when present and within the short
// field cap, otherwise generates one.
func eventID(raw string) string {
	if raw != "" && utf8.RuneCountInString(raw) <= validation.MaxShortLen {
		return raw
	}
	return uuid.NewString()
}

// timestampMillis honors a finite positive client timestamp and falls
// back to the server clock. Negative or absurdly large clocks are
// hostile or broken SDKs, not real times.
func timestampMillis(ts *float64, now time.Time) int64 {
	if ts != nil && validEpochMillis(*ts) {
		return int64(*ts)
	}
	return now.UnixMilli()
}

// sessionStartMillis defaults the session start to the event
// timestamp when the client did not report a usable one.
func sessionStartMillis(ts *float64, eventMillis int64) int64 {
	if ts != nil && validEpochMillis(*ts) {
		return int64(*ts)
	}
	return eventMillis
}

func validEpochMillis(f float64) bool {
	return finite(f) && f > 0 && f <= maxEpochMillis
}

// clampMetric maps an optional client metric into [0, maxMetricMillis].
// Absent and non-finite values stay NULL so they remain
// distinguishable from measured zeros.
func clampMetric(v *float64) *float64 {
	if v == nil || !finite(*v) {
		return nil
	}
	clamped := math.Min(math.Max(*v, 0), maxMetricMillis)
	return &clamped
}

// clampCount converts an optional client counter to a non-negative
// int32, NULL when absent or non-finite.
func clampCount(v *float64) *int32 {
	if v == nil || !finite(*v) {
		return nil
	}
	n := int32(math.Min(math.Max(*v, 0), math.MaxInt32))
	return &n
}

// pageCount defaults to 1: a track event implies at least one page.
func pageCount(v *float64) int32 {
	if v == nil || !finite(*v) || *v < 1 {
		return 1
	}
	return int32(math.Min(*v, math.MaxInt32))
}

// positionValue converts an optional source position to int32, zero
// when absent.
func positionValue(v *float64) int32 {
	if v == nil || !finite(*v) || *v < 0 {
		return 0
	}
	return int32(math.Min(*v, math.MaxInt32))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// normalizeProperties serializes the event's properties for storage.
// Anything that is not a JSON object collapses to "{}" so downstream
// consumers can always parse the column.
func normalizeProperties(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return "{}"
	}
	return string(trimmed)
}
