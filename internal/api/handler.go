// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package api

import (
	"context"
	"errors"
	"time"

	"github.com/databuddy-analytics/basket/internal/anonymize"
	"github.com/databuddy-analytics/basket/internal/cache"
	"github.com/databuddy-analytics/basket/internal/config"
	"github.com/databuddy-analytics/basket/internal/dedup"
	"github.com/databuddy-analytics/basket/internal/enrich"
	"github.com/databuddy-analytics/basket/internal/eventprocessor"
	"github.com/databuddy-analytics/basket/internal/validation"
)

// Pinger is the reachability probe the health endpoint runs against
// the analytics store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps bundles the pipeline stages the intake orchestrates.
//
// Config, Pipeline, Anonymizer, Dedup, and Enricher are required.
// Tenants and Bots default to permissive/built-in instances when nil.
// A nil RateLimit disables the rate gate; Cache and Store are optional
// health probes.
type Deps struct {
	Config     *config.Config
	Tenants    *validation.TenantDirectory
	RateLimit  *validation.RateLimiter
	Bots       *validation.BotDetector
	Anonymizer *anonymize.Anonymizer
	Dedup      *dedup.Deduplicator
	Enricher   *enrich.Enricher
	Pipeline   *eventprocessor.Pipeline
	Cache      cache.Store
	Store      Pinger
	Version    string
}

// Handler serves the intake and health endpoints.
type Handler struct {
	cfg        *config.Config
	tenants    *validation.TenantDirectory
	limiter    *validation.RateLimiter
	bots       *validation.BotDetector
	anonymizer *anonymize.Anonymizer
	dedup      *dedup.Deduplicator
	enricher   *enrich.Enricher
	pipeline   *eventprocessor.Pipeline
	cache      cache.Store
	store      Pinger

	version     string
	startTime   time.Time
	development bool
}

// NewHandler creates the intake handler.
func NewHandler(deps Deps) (*Handler, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("config required")
	case deps.Pipeline == nil:
		return nil, errors.New("pipeline required")
	case deps.Anonymizer == nil:
		return nil, errors.New("anonymizer required")
	case deps.Dedup == nil:
		return nil, errors.New("deduplicator required")
	case deps.Enricher == nil:
		return nil, errors.New("enricher required")
	}

	tenants := deps.Tenants
	if tenants == nil {
		tenants = validation.NewTenantDirectory(nil)
	}
	bots := deps.Bots
	if bots == nil {
		bots = validation.NewBotDetector()
	}

	return &Handler{
		cfg:         deps.Config,
		tenants:     tenants,
		limiter:     deps.RateLimit,
		bots:        bots,
		anonymizer:  deps.Anonymizer,
		dedup:       deps.Dedup,
		enricher:    deps.Enricher,
		pipeline:    deps.Pipeline,
		cache:       deps.Cache,
		store:       deps.Store,
		version:     deps.Version,
		startTime:   time.Now(),
		development: deps.Config.DevelopmentMode(),
	}, nil
}
