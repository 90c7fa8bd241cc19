// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

// Package testinfra provides container-backed infrastructure for
// integration tests.
//
// This package uses testcontainers-go to run a real ClickHouse server,
// so store tests validate the actual native-protocol wire behavior
// instead of a mock. Broker tests use the in-process kfake cluster and
// cache tests use miniredis; only the store needs a container.
//
// # ClickHouse Container
//
//	func TestStore(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//
//	    ctx := context.Background()
//	    ch, err := testinfra.NewClickHouseContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, ch)
//
//	    // ch.Addr is the host:port of the native protocol listener.
//	}
//
// # CI Considerations
//
// These tests require Docker and are guarded by the integration build
// tag. They skip gracefully when the daemon is unavailable; first runs
// may need to pull the server image.
package testinfra
