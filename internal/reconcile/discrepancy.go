package reconcile

import "github.com/roach88/conteo/internal/ir"

// Resolve diffs an expectation set against the net scanned totals of events.
//
// Expected items come first, in expectation order, as missing (scanned less
// than expected) or over (scanned more); exact matches are omitted. Codes
// scanned with a positive net quantity but absent from the expectation set
// follow as extras, in the order they were first scanned. A code that is in
// the expectation set is never reported as an extra.
//
// The result is never nil.
func Resolve(items []ir.ExpectedItem, events []ir.ScanEvent) []ir.Discrepancy {
	totals := Totals(events)
	records := []ir.Discrepancy{}

	expected := make(map[string]bool, len(items))
	for _, it := range items {
		expected[it.Code] = true

		scanned := totals[it.Code]
		diff := scanned - it.Expected
		if diff == 0 {
			continue
		}

		kind := ir.KindMissing
		if diff > 0 {
			kind = ir.KindOver
		}
		records = append(records, ir.Discrepancy{
			Kind:        kind,
			Code:        it.Code,
			Description: it.Description,
			Expected:    it.Expected,
			Scanned:     scanned,
			Diff:        diff,
		})
	}

	for _, code := range firstSeen(events) {
		if expected[code] {
			continue
		}
		scanned := totals[code]
		if scanned <= 0 {
			continue
		}
		records = append(records, ir.Discrepancy{
			Kind:    ir.KindExtra,
			Code:    code,
			Scanned: scanned,
			Diff:    scanned,
		})
	}

	return records
}
