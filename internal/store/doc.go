// Package store provides SQLite-backed durable storage for conteo counts.
//
// The store keeps three logs and one snapshot table set:
//   - scan_events: append-only scan and correction events
//   - history: append-only audit entries, one per accepted mutation
//   - discrepancies: frozen finalization result, written once per count
//   - counts / expected_items: the snapshot store for count metadata
//
// # Critical Patterns
//
// Append-only logs:
//   - scan_events and history reject UPDATE and DELETE via triggers
//   - Corrections are new adjust events, never in-place edits
//
// Idempotent appends:
//   - scan_events.id is content-addressed; ON CONFLICT(id) DO NOTHING
//     turns a retried submission into a no-op
//   - history.event_id is UNIQUE; recording the same event twice is a no-op
//
// Deterministic reads:
//   - scan events are read ORDER BY seq ASC up to a watermark captured at
//     the start of the read, so a growing log never changes a read in flight
//   - history is read ORDER BY recorded_at ASC, event_seq ASC
//
// Finalization:
//   - FinalizeCount claims the count with UPDATE ... WHERE finalized = 0 and
//     computes the result inside the same transaction, so exactly one caller
//     computes and persists it and no scan can slip in between
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
