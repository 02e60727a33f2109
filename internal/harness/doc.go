// Package harness runs reconciliation scenarios against a real engine.
//
// A scenario creates one count, replays scans, corrections and
// finalizations, then asserts on the resulting report and history.
//
// # Scenario Format
//
//	name: partial_remito
//	description: "Over-scan, missing items and an extra"
//	count:
//	  id: r-1
//	  kind: remito
//	  items:
//	    - {code: A, description: ACME Widget, expected: 5}
//	steps:
//	  - {action: scan, user: ana, code: A, quantity: 3}
//	  - {action: set, user: ana, code: A, quantity: 4}
//	  - {action: remove, user: ana, code: A}
//	  - {action: finalize, clarification: "caja abierta"}
//	  - {action: scan, user: ana, code: A, quantity: 1, expect_error: ALREADY_FINALIZED}
//	assertions:
//	  - {type: progress, overall: 0, pending: [A]}
//	  - {type: discrepancy, kind: missing, code: A, diff: -5}
//	  - {type: history_ops, operations: [insert, update, delete]}
//
// Instead of an inline count, expectation may name an expectation file
// relative to the scenario.
//
// # Assertion Types
//
//   - user_total: a user's net quantity of a code
//   - progress: overall percent and the exact pending codes
//   - brand_progress: one brand's percent
//   - discrepancy: a frozen record of a kind for a code, optionally its diff
//   - discrepancy_count, history_count: exact sizes
//   - history_ops: the exact sequence of history operations
//
// # Deterministic Testing
//
// Every scenario runs on a fresh SQLite file with testutil.StepClock and
// testutil.Sequence, so Snapshot is byte-identical across runs and can be
// compared against golden files.
package harness
