// Package expectation loads expectation sets from files.
//
// A file describes one count to create: an optional ID, kind and reference
// plus the ordered list of expected items. YAML, JSON and CUE sources are
// accepted. Every source is unified with the embedded CUE schema, so the
// same rules apply regardless of format, and then checked with Validate
// for rules the schema cannot express, such as code uniqueness after
// normalization.
//
// Example YAML:
//
//	id: r-1001
//	kind: remito
//	reference: REM-0001-00001234
//	items:
//	  - code: "7790001000012"
//	    description: ACME Widget
//	    expected: 5
package expectation
