// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package eventprocessor

import (
	"testing"

	"github.com/databuddy-analytics/basket/internal/database"
	"github.com/databuddy-analytics/basket/internal/models"
)

func TestDestinationFor(t *testing.T) {
	tests := []struct {
		eventType string
		topic     string
		table     string
	}{
		{models.EventTypeTrack, TopicEvents, "events"},
		{models.EventTypeError, TopicErrors, "errors"},
		{models.EventTypeWebVitals, TopicWebVitals, "web_vitals"},
		{models.EventTypeCustom, TopicCustomEvents, "custom_events"},
		{models.EventTypeOutgoingLink, TopicOutgoingLinks, "outgoing_links"},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			dest, ok := DestinationFor(tt.eventType)
			if !ok {
				t.Fatalf("DestinationFor(%q) ok = false, want true", tt.eventType)
			}
			if dest.Topic != tt.topic {
				t.Errorf("Topic = %q, want %q", dest.Topic, tt.topic)
			}
			if dest.Table != tt.table {
				t.Errorf("Table = %q, want %q", dest.Table, tt.table)
			}
		})
	}
}

func TestDestinationFor_Unknown(t *testing.T) {
	if _, ok := DestinationFor("pageview"); ok {
		t.Error("DestinationFor(pageview) ok = true, want false")
	}
	if _, ok := DestinationFor(""); ok {
		t.Error("DestinationFor(\"\") ok = true, want false")
	}
}

func TestTopics(t *testing.T) {
	topics := Topics()
	if len(topics) != len(destinations) {
		t.Fatalf("Topics() returned %d topics, want %d", len(topics), len(destinations))
	}

	seen := make(map[string]bool)
	for _, topic := range topics {
		if seen[topic] {
			t.Errorf("Topics() contains %q twice", topic)
		}
		seen[topic] = true
	}
	for _, dest := range destinations {
		if !seen[dest.Topic] {
			t.Errorf("Topics() missing %q", dest.Topic)
		}
	}
}

// Every fallback table must exist in the store schema, or buffered
// records would fail their inserts forever.
func TestDestinationTablesExistInSchema(t *testing.T) {
	schema := make(map[string]bool)
	for _, table := range database.Tables() {
		schema[table] = true
	}
	for eventType, dest := range destinations {
		if !schema[dest.Table] {
			t.Errorf("destination table %q for %q has no schema", dest.Table, eventType)
		}
	}
}
