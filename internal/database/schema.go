// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/databuddy-analytics/basket/internal/logging"
)

// Destination table names. These are the only tables InsertRows accepts;
// the mapping from event type to table lives with the producer routing.
const (
	TableEvents        = "events"
	TableErrors        = "errors"
	TableWebVitals     = "web_vitals"
	TableCustomEvents  = "custom_events"
	TableOutgoingLinks = "outgoing_links"
)

// ErrUnknownTable is returned when a caller names a table outside the
// fixed destination set.
var ErrUnknownTable = errors.New("database: unknown table")

const schemaTimeout = 60 * time.Second

// schemaContext returns a context with timeout for DDL statements.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), schemaTimeout)
}

// Tables returns the destination table names in creation order.
func Tables() []string {
	return []string{
		TableEvents,
		TableErrors,
		TableWebVitals,
		TableCustomEvents,
		TableOutgoingLinks,
	}
}

// createTables bootstraps the analytics schema. Every statement is
// CREATE TABLE IF NOT EXISTS, so re-running on an initialized database
// is a no-op.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, table := range Tables() {
		if err := db.conn.Exec(ctx, tableDDL[table]); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
	}

	logging.Debug().Int("tables", len(tableDDL)).Msg("Schema bootstrap complete")
	return nil
}

// tableDDL maps each destination table to its creation statement.
//
// Column names must match the `ch` struct tags on the corresponding
// internal/models record; AppendStruct maps by tag, not position.
// Optional metrics are Nullable so absent measurements stay
// distinguishable from zeros.
var tableDDL = map[string]string{
	TableEvents: `
CREATE TABLE IF NOT EXISTS events (
	-- identity
	id String,
	client_id String,
	event_name String,
	anonymous_id String,
	session_id String,
	event_id String,
	timestamp Int64,
	session_start_time Int64,

	-- page context
	path String,
	title String,
	referrer String,

	-- client context
	screen_resolution String,
	viewport_size String,
	language String,
	timezone String,
	connection_type String,

	-- attribution
	utm_source String,
	utm_medium String,
	utm_campaign String,
	utm_term String,
	utm_content String,

	-- performance (absent metrics stay NULL)
	load_time Nullable(Float64),
	dom_ready_time Nullable(Float64),
	ttfb Nullable(Float64),
	connection_time Nullable(Float64),
	request_time Nullable(Float64),
	render_time Nullable(Float64),
	redirect_time Nullable(Float64),
	domain_lookup_time Nullable(Float64),
	fcp Nullable(Float64),
	lcp Nullable(Float64),

	-- engagement
	time_on_page Nullable(Float64),
	scroll_depth Nullable(Float64),
	interaction_count Nullable(Int32),
	page_count Int32,

	-- enrichment (ip is the truncated form)
	ip String,
	country String,
	region String,
	city String,
	browser_name String,
	browser_version String,
	os_name String,
	os_version String,
	device_type String,
	device_brand String,
	device_model String,

	properties String,
	created_at DateTime64(3)
) ENGINE = MergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (client_id, timestamp)`,

	TableErrors: `
CREATE TABLE IF NOT EXISTS errors (
	-- identity
	id String,
	client_id String,
	anonymous_id String,
	session_id String,
	event_id String,
	timestamp Int64,

	-- error detail
	path String,
	message String,
	filename String,
	lineno Int32,
	colno Int32,
	stack String,
	error_type String,

	-- enrichment
	ip String,
	country String,
	region String,
	city String,
	browser_name String,
	browser_version String,
	os_name String,
	os_version String,
	device_type String,
	device_brand String,
	device_model String,

	created_at DateTime64(3)
) ENGINE = MergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (client_id, timestamp)`,

	TableWebVitals: `
CREATE TABLE IF NOT EXISTS web_vitals (
	-- identity
	id String,
	client_id String,
	anonymous_id String,
	session_id String,
	event_id String,
	timestamp Int64,

	path String,

	-- vitals (at least one is set per row)
	fcp Nullable(Float64),
	lcp Nullable(Float64),
	cls Nullable(Float64),
	fid Nullable(Float64),
	inp Nullable(Float64),

	-- enrichment
	ip String,
	country String,
	region String,
	city String,
	browser_name String,
	browser_version String,
	os_name String,
	os_version String,
	device_type String,
	device_brand String,
	device_model String,

	created_at DateTime64(3)
) ENGINE = MergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (client_id, timestamp)`,

	TableCustomEvents: `
CREATE TABLE IF NOT EXISTS custom_events (
	-- identity
	id String,
	client_id String,
	event_name String,
	anonymous_id String,
	session_id String,
	event_id String,
	timestamp Int64,

	properties String,

	-- enrichment
	ip String,
	country String,
	region String,
	city String,
	browser_name String,
	browser_version String,
	os_name String,
	os_version String,
	device_type String,
	device_brand String,
	device_model String,

	created_at DateTime64(3)
) ENGINE = MergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (client_id, timestamp)`,

	TableOutgoingLinks: `
CREATE TABLE IF NOT EXISTS outgoing_links (
	-- identity
	id String,
	client_id String,
	anonymous_id String,
	session_id String,
	event_id String,
	timestamp Int64,

	-- link detail
	href String,
	text String,

	properties String,

	-- enrichment
	ip String,
	country String,
	region String,
	city String,
	browser_name String,
	browser_version String,
	os_name String,
	os_version String,
	device_type String,
	device_brand String,
	device_model String,

	created_at DateTime64(3)
) ENGINE = MergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (client_id, timestamp)`,
}
