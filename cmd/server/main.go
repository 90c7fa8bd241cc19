// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

// Package main is the entry point for the basket ingestion server.
//
// Basket is a web-analytics event intake: it validates, anonymizes,
// deduplicates, and enriches incoming events, then publishes them to
// Kafka with a bounded in-memory fallback that writes straight to
// ClickHouse when the broker is unavailable.
//
// Startup order:
//
//  1. Configuration: koanf v2 layered loading (defaults, YAML file, env)
//  2. Logging: zerolog per the logging config
//  3. Shared cache: Redis when REDIS_URL is set, in-process otherwise
//  4. ClickHouse: connection pool and schema bootstrap
//  5. GeoIP: optional MaxMind City database
//  6. Kafka producer: optional; absent KAFKA_BROKERS means fallback-only
//  7. Supervisor tree: pipeline + stats logger, then the HTTP server
//
// Shutdown reverses the order: SIGINT/SIGTERM cancels the supervisor
// context, the HTTP server drains first, then the pipeline runs its
// final buffer flush and closes the broker connection.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/databuddy-analytics/basket/internal/anonymize"
	"github.com/databuddy-analytics/basket/internal/api"
	"github.com/databuddy-analytics/basket/internal/cache"
	"github.com/databuddy-analytics/basket/internal/config"
	"github.com/databuddy-analytics/basket/internal/database"
	"github.com/databuddy-analytics/basket/internal/dedup"
	"github.com/databuddy-analytics/basket/internal/enrich"
	"github.com/databuddy-analytics/basket/internal/eventprocessor"
	"github.com/databuddy-analytics/basket/internal/logging"
	"github.com/databuddy-analytics/basket/internal/supervisor"
	"github.com/databuddy-analytics/basket/internal/validation"
)

// version is set at build time via -ldflags.
var version = "dev"

const (
	httpShutdownTimeout  = 10 * time.Second
	pipelineDrainTimeout = 15 * time.Second
	topicEnsureTimeout   = 30 * time.Second
	readHeaderTimeout    = 10 * time.Second
	statsLogInterval     = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Int("port", cfg.Server.Port).
		Bool("kafka_enabled", cfg.Kafka.Enabled()).
		Int("tenants", len(cfg.Tenants)).
		Msg("Starting basket")

	// Shared cache: daily salt and the dedup window.
	cacheStore, err := cache.NewStore(cache.StoreConfig{RedisURL: cfg.Cache.RedisURL})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to cache")
	}
	defer closeQuietly("cache", cacheStore.Close)
	if cfg.Cache.RedisURL == "" {
		logging.Warn().Msg("REDIS_URL not set, using in-process cache (no cross-replica dedup)")
	}

	// Analytics store: fallback bulk inserts and schema bootstrap.
	db, err := database.New(cfg.ClickHouse)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize ClickHouse")
	}
	defer closeQuietly("clickhouse", db.Close)
	logging.Info().
		Strs("addr", cfg.ClickHouse.Addr).
		Str("database", cfg.ClickHouse.Database).
		Msg("Analytics store ready")

	// Geo enrichment is optional; without a database records carry the
	// anonymized IP with empty location fields.
	var geo enrich.GeoProvider
	if path := cfg.Geo.CityDBPath; path != "" {
		geo, err = enrich.OpenGeoDatabase(path)
		if err != nil {
			logging.Warn().Err(err).Str("path", path).
				Msg("GeoIP database unavailable, continuing without location enrichment")
			geo = nil
		} else {
			defer closeQuietly("geoip", geo.Close)
			logging.Info().Str("path", path).Msg("GeoIP database loaded")
		}
	}

	// Broker leg. Absent KAFKA_BROKERS every record goes straight to the
	// fallback buffer and from there to ClickHouse.
	var producer *eventprocessor.Producer
	if cfg.Kafka.Enabled() {
		breaker := eventprocessor.NewPublishBreaker(cfg.Breaker)
		producer, err = eventprocessor.NewProducer(cfg.Kafka, breaker)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create Kafka producer")
		}
		if cfg.Kafka.EnsureTopics {
			ensureCtx, cancel := context.WithTimeout(context.Background(), topicEnsureTimeout)
			if err := producer.EnsureTopics(ensureCtx); err != nil {
				logging.Warn().Err(err).Msg("Topic ensure failed, relying on broker auto-creation")
			}
			cancel()
		}
	} else {
		logging.Warn().Msg("KAFKA_BROKERS not set, running in fallback-only mode")
	}

	buffer, err := eventprocessor.NewFallbackBuffer(db, cfg.Buffer)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create fallback buffer")
	}
	pipeline, err := eventprocessor.NewPipeline(producer, buffer)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create pipeline")
	}

	var limiter *validation.RateLimiter
	if !cfg.RateLimit.Disabled {
		limiter = validation.NewRateLimiter(cfg.RateLimit)
		defer limiter.Stop()
	}

	handler, err := api.NewHandler(api.Deps{
		Config:     cfg,
		Tenants:    validation.NewTenantDirectory(cfg.Tenants),
		RateLimit:  limiter,
		Bots:       validation.NewBotDetector(),
		Anonymizer: anonymize.New(cacheStore),
		Dedup:      dedup.New(cacheStore),
		Enricher:   enrich.New(geo),
		Pipeline:   pipeline,
		Cache:      cacheStore,
		Store:      db,
		Version:    version,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create intake handler")
	}

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           api.NewRouter(handler, cfg).Setup(),
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDeliveryService(supervisor.NewPipelineService(pipeline, pipelineDrainTimeout))
	tree.AddDeliveryService(eventprocessor.NewStatsLogger(pipeline, statsLogInterval))
	tree.AddAPIService(supervisor.NewHTTPService(server, httpShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Intake listening")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutting down, draining services")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the supervisor to finish its shutdown sequence.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Basket stopped")
}

// closeQuietly closes a component during deferred teardown, logging
// rather than failing on error.
func closeQuietly(name string, fn func() error) {
	if err := fn(); err != nil {
		logging.Error().Err(err).Str("component", name).Msg("Close failed")
	}
}
