// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package eventprocessor

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/databuddy-analytics/basket/internal/models"
)

// SerializeRecord encodes a canonical record as the broker message
// value. The wire format is plain UTF-8 JSON of the record struct; the
// event kind travels in the topic, not the payload, so the five shapes
// stay flat.
func SerializeRecord(rec models.Record) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("cannot serialize nil record")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s record: %w", rec.EventType(), err)
	}
	return data, nil
}
