// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultClickHouseImage is the server image used for store tests.
	DefaultClickHouseImage = "clickhouse/clickhouse-server:24.3-alpine"

	// clickhouseNativePort is the native protocol listener.
	clickhouseNativePort = "9000"

	// clickhouseHTTPPort serves the /ping readiness endpoint.
	clickhouseHTTPPort = "8123"
)

// ClickHouseContainer represents a running ClickHouse server for
// integration testing.
type ClickHouseContainer struct {
	testcontainers.Container

	// Addr is the host:port of the native protocol listener.
	Addr string

	// Database, Username and Password match the container environment.
	Database string
	Username string
	Password string
}

// ClickHouseOption configures the ClickHouse container.
type ClickHouseOption func(*clickhouseConfig)

type clickhouseConfig struct {
	image        string
	database     string
	startTimeout time.Duration
}

// WithClickHouseImage sets a custom server image.
func WithClickHouseImage(image string) ClickHouseOption {
	return func(c *clickhouseConfig) {
		c.image = image
	}
}

// WithClickHouseDatabase sets the database created on startup.
func WithClickHouseDatabase(database string) ClickHouseOption {
	return func(c *clickhouseConfig) {
		c.database = database
	}
}

// WithClickHouseStartTimeout sets the readiness wait timeout.
func WithClickHouseStartTimeout(timeout time.Duration) ClickHouseOption {
	return func(c *clickhouseConfig) {
		c.startTimeout = timeout
	}
}

// NewClickHouseContainer creates and starts a ClickHouse server, waiting
// until both the native listener and the HTTP /ping endpoint are up.
func NewClickHouseContainer(ctx context.Context, opts ...ClickHouseOption) (*ClickHouseContainer, error) {
	cfg := &clickhouseConfig{
		image:        DefaultClickHouseImage,
		database:     "analytics",
		startTimeout: 60 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{clickhouseNativePort + "/tcp", clickhouseHTTPPort + "/tcp"},
		Env: map[string]string{
			"CLICKHOUSE_DB":       cfg.database,
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(clickhouseNativePort+"/tcp"),
			wait.ForHTTP("/ping").WithPort(clickhouseHTTPPort+"/tcp"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create clickhouse container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, clickhouseNativePort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &ClickHouseContainer{
		Container: container,
		Addr:      fmt.Sprintf("%s:%s", host, port.Port()),
		Database:  cfg.database,
		Username:  "default",
		Password:  "",
	}, nil
}

// Terminate stops and removes the container.
func (c *ClickHouseContainer) Terminate(ctx context.Context) error {
	return c.Container.Terminate(ctx)
}
