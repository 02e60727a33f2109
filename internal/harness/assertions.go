package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/conteo/internal/ir"
	"github.com/roach88/conteo/internal/reconcile"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Executed steps for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nSteps:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", ev.Step, describeStep(ev))
		}
	}

	return buf.String()
}

func describeStep(ev TraceEvent) string {
	s := ev.Action
	if ev.UserID != "" {
		s += " " + ev.UserID
	}
	if ev.Code != "" {
		s += " " + ev.Code
	}
	if ev.Quantity != 0 {
		s += fmt.Sprintf(" %d", ev.Quantity)
	}
	if ev.ErrorCode != "" {
		s += " -> " + ev.ErrorCode
	}
	return s
}

// assertUserTotal checks a user's net quantity of a code.
// A user with no net quantity has total 0.
func assertUserTotal(r *Result, a Assertion) error {
	var got int64
	for _, u := range r.Report.Users {
		if u.UserID != a.User {
			continue
		}
		for _, b := range u.Brands {
			for _, line := range b.Lines {
				if line.Code == a.Code {
					got = line.Quantity
				}
			}
		}
	}

	if got != *a.Quantity {
		return &AssertionError{
			Type:     AssertUserTotal,
			Expected: fmt.Sprintf("%s has %d of %s", a.User, *a.Quantity, a.Code),
			Actual:   fmt.Sprintf("%d", got),
			Trace:    r.Trace,
		}
	}
	return nil
}

// assertProgress checks overall percent and the exact pending codes.
func assertProgress(r *Result, a Assertion) error {
	p := r.Report.Progress

	if a.Overall != nil && p.Overall != *a.Overall {
		return &AssertionError{
			Type:     AssertProgress,
			Expected: fmt.Sprintf("overall %d%%", *a.Overall),
			Actual:   fmt.Sprintf("overall %d%%", p.Overall),
			Trace:    r.Trace,
		}
	}

	if a.Pending != nil {
		pending := []string{}
		for _, it := range p.Items {
			if it.Pending {
				pending = append(pending, it.Code)
			}
		}
		if !slices.Equal(pending, a.Pending) {
			return &AssertionError{
				Type:     AssertProgress,
				Expected: fmt.Sprintf("pending %v", a.Pending),
				Actual:   fmt.Sprintf("pending %v", pending),
				Trace:    r.Trace,
			}
		}
	}
	return nil
}

func assertBrandProgress(r *Result, a Assertion) error {
	for _, b := range r.Report.Progress.Brands {
		if b.Brand != a.Brand {
			continue
		}
		if b.Percent != *a.Percent {
			return &AssertionError{
				Type:     AssertBrandProgress,
				Expected: fmt.Sprintf("%s at %d%%", a.Brand, *a.Percent),
				Actual:   fmt.Sprintf("%s at %d%%", a.Brand, b.Percent),
				Trace:    r.Trace,
			}
		}
		return nil
	}

	return &AssertionError{
		Type:     AssertBrandProgress,
		Expected: fmt.Sprintf("brand %s", a.Brand),
		Actual:   "brand not in progress",
		Trace:    r.Trace,
	}
}

// assertDiscrepancy checks that the frozen result holds a record of the
// given kind for the code, with the given diff when one is specified.
func assertDiscrepancy(r *Result, a Assertion) error {
	for _, d := range r.Report.Discrepancies {
		if d.Code != a.Code {
			continue
		}
		if string(d.Kind) != a.Kind || (a.Diff != nil && d.Diff != *a.Diff) {
			return &AssertionError{
				Type:     AssertDiscrepancy,
				Expected: formatDiscrepancy(a.Kind, a.Code, a.Diff),
				Actual:   formatDiscrepancy(string(d.Kind), d.Code, &d.Diff),
				Trace:    r.Trace,
			}
		}
		return nil
	}

	return &AssertionError{
		Type:     AssertDiscrepancy,
		Expected: formatDiscrepancy(a.Kind, a.Code, a.Diff),
		Actual:   fmt.Sprintf("no record for %s", a.Code),
		Trace:    r.Trace,
	}
}

func formatDiscrepancy(kind, code string, diff *int64) string {
	if diff == nil {
		return fmt.Sprintf("%s %s", kind, code)
	}
	return fmt.Sprintf("%s %s diff %d", kind, code, *diff)
}

func assertDiscrepancyCount(r *Result, a Assertion) error {
	if got := len(r.Report.Discrepancies); got != *a.Count {
		return &AssertionError{
			Type:     AssertDiscrepancyCount,
			Expected: fmt.Sprintf("%d records", *a.Count),
			Actual:   fmt.Sprintf("%d records", got),
			Trace:    r.Trace,
		}
	}
	return nil
}

func assertHistoryCount(r *Result, a Assertion) error {
	if got := len(r.Report.History); got != *a.Count {
		return &AssertionError{
			Type:     AssertHistoryCount,
			Expected: fmt.Sprintf("%d entries", *a.Count),
			Actual:   fmt.Sprintf("%d entries", got),
			Trace:    r.Trace,
		}
	}
	return nil
}

func assertHistoryOps(r *Result, a Assertion) error {
	ops := historyOps(r.Report.History)
	if !slices.Equal(ops, a.Operations) {
		return &AssertionError{
			Type:     AssertHistoryOps,
			Expected: fmt.Sprintf("%v", a.Operations),
			Actual:   fmt.Sprintf("%v", ops),
			Trace:    r.Trace,
		}
	}
	return nil
}

func historyOps(history []ir.HistoryEntry) []string {
	ops := make([]string, len(history))
	for i, h := range history {
		ops[i] = string(h.Operation)
	}
	return ops
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	if result.Report == nil {
		result.Report = &reconcile.Report{}
	}

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertUserTotal:
			err = assertUserTotal(result, a)
		case AssertProgress:
			err = assertProgress(result, a)
		case AssertBrandProgress:
			err = assertBrandProgress(result, a)
		case AssertDiscrepancy:
			err = assertDiscrepancy(result, a)
		case AssertDiscrepancyCount:
			err = assertDiscrepancyCount(result, a)
		case AssertHistoryCount:
			err = assertHistoryCount(result, a)
		case AssertHistoryOps:
			err = assertHistoryOps(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}

		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	return errs
}
