// Package source defines the adapter contract for prediction-market venues.
//
// An Adapter serves pages of unified core.Record values for one source. The
// ingestion engine asks each adapter for its Capabilities to decide which
// tasks to plan: sources without a status filter get a single unfiltered
// task per kind, and sources without events get no event task.
//
// Status names are unified across sources ("active", "closed"). A
// StatusTable translates them to the names a venue expects before a request
// is made.
//
// Concrete adapters live in the kalshi and polymarket subpackages. Both use
// Client, which paces requests with a token bucket.
package source
