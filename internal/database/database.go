// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/databuddy-analytics/basket/internal/config"
	"github.com/databuddy-analytics/basket/internal/logging"
)

// Connection pool sizing. Bulk inserts arrive from the flush loop and
// from shutdown draining, so a handful of connections is plenty.
const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = time.Hour
)

// defaultDialTimeout guards Ping and dialing when the config carries a
// zero timeout (hand-built configs in tests).
const defaultDialTimeout = 10 * time.Second

// DB wraps a ClickHouse native-protocol connection pool and owns the
// analytics schema lifecycle.
type DB struct {
	conn driver.Conn
	cfg  config.ClickHouseConfig
}

// New opens a connection pool against the configured ClickHouse
// addresses, verifies connectivity, and bootstraps the destination
// tables unless skip_migrate is set. The returned DB must be closed by
// the caller.
func New(cfg config.ClickHouseConfig) (*DB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: dialTimeout(cfg),
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: connMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout(cfg))
	defer cancel()
	if err := db.conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse %v: %w", cfg.Addr, err)
	}

	if cfg.SkipMigrate {
		logging.Info().Msg("Skipping ClickHouse schema bootstrap")
	} else if err := db.createTables(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	logging.Info().
		Strs("addr", cfg.Addr).
		Str("database", cfg.Database).
		Msg("Connected to ClickHouse")

	return db, nil
}

// Ping verifies the server is still reachable. Used by the health
// endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.Ping(ctx)
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the underlying driver connection for integration tests
// and ad-hoc queries.
func (db *DB) Conn() driver.Conn {
	return db.conn
}

func dialTimeout(cfg config.ClickHouseConfig) time.Duration {
	if cfg.DialTimeout > 0 {
		return cfg.DialTimeout
	}
	return defaultDialTimeout
}
