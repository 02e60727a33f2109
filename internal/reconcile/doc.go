// Package reconcile holds the pure functions that turn a count's
// expectation set and event log into derived views.
//
// Every view is a fold over the immutable event log. Nothing here touches
// storage or keeps state between calls, so the same inputs always produce
// the same outputs regardless of how the events were ordered on arrival.
//
//   - Aggregate / CodeTotals: per-user and per-code net quantities
//   - BrandOf: brand grouping shared by every view
//   - Progress: per-item, per-brand and overall completion with over-scan cap
//   - Resolve: discrepancy records computed at finalization
//   - Assemble: the report read by callers
package reconcile
