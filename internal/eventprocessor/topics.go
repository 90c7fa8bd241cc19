// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package eventprocessor

import "github.com/databuddy-analytics/basket/internal/models"

// Kafka topics, one per event kind. Values double as the canonical
// stream names downstream consumers subscribe to.
const (
	TopicEvents        = "analytics-events"
	TopicErrors        = "analytics-errors"
	TopicWebVitals     = "analytics-web-vitals"
	TopicCustomEvents  = "analytics-custom-events"
	TopicOutgoingLinks = "analytics-outgoing-links"
)

// Destination pairs the broker topic with the fallback table for one
// event kind. Both paths land the same canonical record.
type Destination struct {
	Topic string
	Table string
}

var destinations = map[string]Destination{
	models.EventTypeTrack:        {Topic: TopicEvents, Table: "events"},
	models.EventTypeError:        {Topic: TopicErrors, Table: "errors"},
	models.EventTypeWebVitals:    {Topic: TopicWebVitals, Table: "web_vitals"},
	models.EventTypeCustom:       {Topic: TopicCustomEvents, Table: "custom_events"},
	models.EventTypeOutgoingLink: {Topic: TopicOutgoingLinks, Table: "outgoing_links"},
}

// DestinationFor resolves the topic and fallback table for an event
// type. The second return is false for unknown types.
func DestinationFor(eventType string) (Destination, bool) {
	d, ok := destinations[eventType]
	return d, ok
}

// Topics returns every broker topic the service publishes to, in a
// stable order. Used for startup topic creation.
func Topics() []string {
	return []string{
		TopicEvents,
		TopicErrors,
		TopicWebVitals,
		TopicCustomEvents,
		TopicOutgoingLinks,
	}
}
