// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package eventprocessor

import (
	"context"

	"github.com/databuddy-analytics/basket/internal/models"
)

// EventStore is the terminal sink for records the broker path could
// not deliver. *database.DB satisfies it; tests substitute an
// in-memory implementation.
//
// InsertRows must treat the whole batch atomically enough that a
// returned error means the batch may be retried: duplicate delivery is
// tolerated, silent loss is not.
type EventStore interface {
	InsertRows(ctx context.Context, table string, rows []models.Record) error
}
