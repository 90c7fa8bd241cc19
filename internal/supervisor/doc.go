// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

/*
Package supervisor provides process supervision for basket using suture v4.

The tree is two layers deep:

	RootSupervisor ("basket")
	├── DeliverySupervisor ("delivery-layer")
	│   ├── PipelineService (buffer flush loop + broker connection)
	│   └── StatsLogger
	└── APISupervisor ("api-layer")
	    └── HTTPService

Suture stops children in reverse order of addition, so the API layer
drains its in-flight requests before the delivery layer runs its final
buffer flush and closes the broker connection. Records accepted by a
request that completes during shutdown still reach the store.

Crashed services restart with exponential backoff; the thresholds are
configurable through TreeConfig and default to suture's own values.
*/
package supervisor
