// Package engine implements count reconciliation.
//
// A count is created with an expectation set, receives scans and
// corrections from any number of users, and is finalized exactly once,
// which freezes its discrepancy result.
//
// ARCHITECTURE:
//
// Writes go straight to the store:
// SubmitScan, SetQuantity and RemoveScan each append one event in a single
// transaction. The store assigns a monotonic seq per event and rejects
// appends to a finalized count inside the same statement, so no write can
// slip in after the result is frozen.
//
// History is written behind the writes:
// Every accepted event enqueues a history job. Engine.Run processes jobs in
// enqueue order on one goroutine. The old value of each entry is derived
// from the events with a lower seq, so entries are correct regardless of
// when the job runs. A circuit breaker stops hammering a failing history
// store; RecoverHistory re-enqueues whatever was missed.
//
// Reads are folds:
// Aggregates, progress and reports are recomputed from the event log on
// every call. Nothing derived is cached except the immutable expectation
// set.
//
// Event Processing Flow:
// 1. Input validated (nothing is written on a validation error)
// 2. Event appended; duplicates collapse on their content-addressed ID
// 3. History job enqueued
// 4. Run() writes the history entry
//
// CRITICAL PATTERNS:
//
// Order independence:
// Aggregates and discrepancies depend only on the multiset of events.
// Verify checks this by folding the log in both directions.
//
// Exactly-once finalization:
// Finalize holds the Locker for the count and the store claims the count
// with a conditional update. Only the claiming caller resolves.
package engine
