// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

// Package enrich resolves request metadata into record enrichment:
// anonymized IP with coarse location, and parsed user-agent fields.
//
// IPs are truncated to /24 (IPv4) or /48 (IPv6) before any lookup, so
// the precise address never reaches the geo database or a record.
// Location comes from a local MaxMind City database when one is
// configured; lookups that miss, fail, or are skipped (private ranges,
// unparseable input) yield empty strings, never nulls.
//
// User-agent parsing is deterministic and memoized with a small LRU,
// since a handful of browser builds dominate any traffic window.
package enrich

import (
	"github.com/databuddy-analytics/basket/internal/cache"
	"github.com/databuddy-analytics/basket/internal/models"
)

const uaCacheSize = 10_000

// Enricher owns the geo database handle and the user-agent parse
// cache. Safe for concurrent use.
type Enricher struct {
	geo GeoProvider // nil when no database is configured
	ua  *cache.LRU
}

// New creates an enricher. geo may be nil, which disables location
// lookups while keeping IP anonymization.
func New(geo GeoProvider) *Enricher {
	return &Enricher{
		geo: geo,
		ua:  cache.NewLRU(uaCacheSize, 0),
	}
}

// Enrich resolves both concerns into one enrichment block.
func (e *Enricher) Enrich(remoteAddr, userAgent string) models.Enrichment {
	geo := e.Geo(remoteAddr)
	ua := e.ParseUA(userAgent)

	return models.Enrichment{
		IP:      geo.AnonymizedIP,
		Country: geo.Country,
		Region:  geo.Region,
		City:    geo.City,

		BrowserName:    ua.BrowserName,
		BrowserVersion: ua.BrowserVersion,
		OSName:         ua.OSName,
		OSVersion:      ua.OSVersion,
		DeviceType:     ua.DeviceType,
		DeviceBrand:    ua.DeviceBrand,
		DeviceModel:    ua.DeviceModel,
	}
}

// Close releases the geo database handle.
func (e *Enricher) Close() error {
	if e.geo == nil {
		return nil
	}
	return e.geo.Close()
}
