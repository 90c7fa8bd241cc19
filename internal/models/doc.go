// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

/*
Package models defines the data structures shared across the ingestion
pipeline: inbound SDK payloads, canonical records, and API response
envelopes.

# Event Flow

An event arrives as a RawEvent (the SDK wire shape), passes validation
and enrichment, and is assembled into one of five canonical records:

  - TrackRecord (type "track") -> topic analytics-events, table events
  - ErrorRecord (type "error") -> topic analytics-errors, table errors
  - WebVitalsRecord (type "web_vitals") -> topic analytics-web-vitals, table web_vitals
  - CustomEventRecord (type "custom") -> topic analytics-custom-events, table custom_events
  - OutgoingLinkRecord (type "outgoing_link") -> topic analytics-outgoing-links, table outgoing_links

Canonical records serialize to JSON for the broker and map to ClickHouse
columns through their ch tags. String fields are already clamped and
control-character stripped by the time a record exists; nullable metric
fields use pointers so absent and zero stay distinguishable downstream.
*/
package models
