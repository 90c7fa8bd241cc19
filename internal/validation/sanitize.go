// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/databuddy-analytics/basket/internal/models"
)

// Per-field length caps, in runes. Every string reaching a canonical
// record is clamped to one of these before assembly.
const (
	MaxShortLen  = 255
	MaxTextLen   = 1024
	MaxStringLen = 2048
	MaxPathLen   = 4096
)

// CleanString strips control characters and clamps the result to max
// runes. Tabs and newlines survive so stack traces keep their shape.
// Invalid UTF-8 bytes are dropped. The input is returned unchanged when
// already clean and within the cap.
func CleanString(s string, max int) string {
	if s == "" {
		return s
	}

	dirty := false
	runes := 0
	for _, r := range s {
		runes++
		if strippedRune(r) {
			dirty = true
		}
	}
	if !dirty && runes <= max {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	kept := 0
	for _, r := range s {
		if strippedRune(r) {
			continue
		}
		if kept >= max {
			break
		}
		b.WriteRune(r)
		kept++
	}
	return b.String()
}

// strippedRune reports whether a rune is removed during sanitization.
func strippedRune(r rune) bool {
	if r == '\n' || r == '\t' {
		return false
	}
	return unicode.IsControl(r) || r == utf8.RuneError
}

// SanitizeEvent clamps every envelope string of a raw event in place.
// Fields wrapped under Payload are clamped at record-assembly time,
// after the payload is decoded.
func SanitizeEvent(ev *models.RawEvent) {
	ev.Name = CleanString(ev.Name, MaxShortLen)
	ev.EventID = CleanString(ev.EventID, MaxShortLen)
	ev.AnonymousID = CleanString(ev.AnonymousID, MaxStringLen)
	ev.SessionID = CleanString(ev.SessionID, MaxShortLen)

	ev.Path = CleanString(ev.Path, MaxPathLen)
	ev.Title = CleanString(ev.Title, MaxStringLen)
	ev.Referrer = CleanString(ev.Referrer, MaxPathLen)

	ev.ScreenResolution = CleanString(ev.ScreenResolution, MaxShortLen)
	ev.ViewportSize = CleanString(ev.ViewportSize, MaxShortLen)
	ev.Language = CleanString(ev.Language, MaxShortLen)
	ev.Timezone = CleanString(ev.Timezone, MaxShortLen)
	ev.ConnectionType = CleanString(ev.ConnectionType, MaxShortLen)

	ev.UTMSource = CleanString(ev.UTMSource, MaxShortLen)
	ev.UTMMedium = CleanString(ev.UTMMedium, MaxShortLen)
	ev.UTMCampaign = CleanString(ev.UTMCampaign, MaxShortLen)
	ev.UTMTerm = CleanString(ev.UTMTerm, MaxShortLen)
	ev.UTMContent = CleanString(ev.UTMContent, MaxShortLen)

	ev.Href = CleanString(ev.Href, MaxPathLen)
	ev.Text = CleanString(ev.Text, MaxTextLen)
}

// SanitizeErrorPayload clamps the decoded error body.
func SanitizeErrorPayload(p *models.ErrorPayload) {
	p.EventID = CleanString(p.EventID, MaxShortLen)
	p.AnonymousID = CleanString(p.AnonymousID, MaxStringLen)
	p.SessionID = CleanString(p.SessionID, MaxShortLen)
	p.Path = CleanString(p.Path, MaxPathLen)

	p.Message = CleanString(p.Message, MaxTextLen)
	p.Filename = CleanString(p.Filename, MaxPathLen)
	p.Stack = CleanString(p.Stack, MaxStringLen)
	p.ErrorType = CleanString(p.ErrorType, MaxShortLen)
}

// SanitizeWebVitalsPayload clamps the decoded web_vitals body.
func SanitizeWebVitalsPayload(p *models.WebVitalsPayload) {
	p.EventID = CleanString(p.EventID, MaxShortLen)
	p.AnonymousID = CleanString(p.AnonymousID, MaxStringLen)
	p.SessionID = CleanString(p.SessionID, MaxShortLen)
	p.Path = CleanString(p.Path, MaxPathLen)
}
