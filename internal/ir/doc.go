// Package ir provides the canonical data types shared by every conteo package.
//
// This package contains type definitions and identity helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// data model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - quantities are int64, percentages are int
//   - All JSON tags use snake_case
//   - Scan events are ordered by store-assigned Seq, never by wall clock
//   - Timestamps are carried for audit and display only
package ir
