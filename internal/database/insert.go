// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/databuddy-analytics/basket/internal/logging"
	"github.com/databuddy-analytics/basket/internal/metrics"
	"github.com/databuddy-analytics/basket/internal/models"
)

// InsertRows writes one batch of canonical records into table as a
// single atomic insert. All rows in a call must share the table's record
// shape; the flush path groups rows per table before calling. A nil or
// empty batch is a no-op.
func (db *DB) InsertRows(ctx context.Context, table string, rows []models.Record) error {
	if len(rows) == 0 {
		return nil
	}
	if _, ok := tableDDL[table]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	start := time.Now()
	err := db.sendBatch(ctx, table, rows)
	metrics.RecordStoreInsert(table, len(rows), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("insert %d rows into %s: %w", len(rows), table, err)
	}

	logging.Debug().
		Str("table", table).
		Int("rows", len(rows)).
		Dur("elapsed", time.Since(start)).
		Msg("Bulk insert complete")

	return nil
}

func (db *DB) sendBatch(ctx context.Context, table string, rows []models.Record) error {
	batch, err := db.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, row := range rows {
		if err := batch.AppendStruct(row); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append row: %w", err)
		}
	}

	return batch.Send()
}
