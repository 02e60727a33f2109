package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/conteo/internal/ir"
	"github.com/roach88/conteo/internal/reconcile"
)

// Snapshot renders the parts of a result that must stay stable across runs
// as canonical JSON: steps, progress, per-user breakdown, discrepancies and
// history. Timestamps and event IDs are left out.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	report := result.Report
	if report == nil {
		report = &reconcile.Report{}
	}

	trace := make([]any, len(result.Trace))
	for i, ev := range result.Trace {
		trace[i] = describeStep(ev)
	}

	snapshot := map[string]any{
		"scenario_name": scenarioName,
		"trace":         trace,
		"finalized":     report.Header.Finalized,
		"progress":      progressSnapshot(report.Progress),
		"users":         usersSnapshot(report.Users),
		"discrepancies": discrepanciesSnapshot(report.Discrepancies),
		"history":       historySnapshot(report.History),
	}

	data, err := ir.MarshalCanonical(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

func progressSnapshot(p reconcile.ProgressSummary) map[string]any {
	pending := []any{}
	for _, it := range p.Items {
		if it.Pending {
			pending = append(pending, it.Code)
		}
	}

	brands := make([]any, len(p.Brands))
	for i, b := range p.Brands {
		brands[i] = map[string]any{
			"brand":   b.Brand,
			"percent": b.Percent,
		}
	}

	return map[string]any{
		"overall":  p.Overall,
		"expected": p.Expected,
		"scanned":  p.Scanned,
		"counted":  p.Counted,
		"pending":  pending,
		"brands":   brands,
	}
}

func usersSnapshot(users []reconcile.UserBreakdown) []any {
	out := make([]any, len(users))
	for i, u := range users {
		brands := make([]any, len(u.Brands))
		for j, b := range u.Brands {
			lines := make([]any, len(b.Lines))
			for k, line := range b.Lines {
				lines[k] = fmt.Sprintf("%s:%d", line.Code, line.Quantity)
			}
			brands[j] = map[string]any{
				"brand": b.Brand,
				"units": b.Units,
				"lines": lines,
			}
		}
		out[i] = map[string]any{
			"user_id":     u.UserID,
			"total_items": u.TotalItems,
			"total_units": u.TotalUnits,
			"brands":      brands,
		}
	}
	return out
}

func discrepanciesSnapshot(records []ir.Discrepancy) []any {
	out := make([]any, len(records))
	for i, d := range records {
		out[i] = map[string]any{
			"kind":     string(d.Kind),
			"code":     d.Code,
			"expected": d.Expected,
			"scanned":  d.Scanned,
			"diff":     d.Diff,
		}
	}
	return out
}

func historySnapshot(history []ir.HistoryEntry) []any {
	out := make([]any, len(history))
	for i, h := range history {
		out[i] = fmt.Sprintf("%s %s %s %d->%d", h.Operation, h.Actor, h.Code, h.OldValue, h.NewValue)
	}
	return out
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
