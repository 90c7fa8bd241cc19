// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

// Package database implements the ClickHouse analytics store.
//
// # Overview
//
// This package is the terminal sink of the ingestion pipeline. Canonical
// records normally leave the service through the Kafka producer; when the
// broker is unreachable the fallback buffer drains directly into
// ClickHouse through this package instead. Either way the rows land in
// the same five destination tables, so downstream consumers see one
// schema regardless of the path a record took.
//
// # Schema
//
// One MergeTree table per record kind, ordered by (client_id, timestamp)
// and partitioned by calendar month:
//
//   - events: page/app tracking with nullable performance metrics
//   - errors: client-side error reports
//   - web_vitals: Core Web Vitals samples
//   - custom_events: tenant-defined events with a JSON properties blob
//   - outgoing_links: outbound click tracking
//
// Column names follow the `ch` struct tags on internal/models records;
// bulk inserts rely on AppendStruct mapping those tags, so schema and
// struct must move together. Tables are created at startup with
// CREATE TABLE IF NOT EXISTS unless clickhouse.skip_migrate disables the
// bootstrap (managed clusters where DDL rights are withheld).
//
// # Usage
//
//	db, err := database.New(cfg.ClickHouse)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	err = db.InsertRows(ctx, database.TableEvents, rows)
//
// InsertRows performs one atomic batch per call. Callers group rows by
// destination table first; a batch never spans tables.
//
// # Concurrency
//
// All exported methods are safe for concurrent use. The driver maintains
// its own connection pool; each InsertRows call acquires a connection,
// streams the batch with LZ4 transport compression, and releases it.
package database
