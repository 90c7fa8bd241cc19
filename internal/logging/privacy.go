// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package logging

// Log sanitization helpers. Raw client identifiers (anonymous ids, session
// ids, event ids) must never appear in full in log output; the same privacy
// contract that governs stored records governs logs.

// SanitizeID masks an opaque client-supplied identifier, keeping the first
// and last four characters.
// Example: "sess_9f2c1ab4d0" -> "sess...b4d0"
func SanitizeID(id string) string {
	if id == "" {
		return ""
	}
	if len(id) <= 12 {
		return "***"
	}
	return id[:4] + "..." + id[len(id)-4:]
}

// Truncate caps a string at maxLen bytes for log output, appending an
// ellipsis marker when cut. User agents and error messages are
// client-controlled and may be arbitrarily long.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
