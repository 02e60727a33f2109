package engine

import (
	"context"
	"reflect"
	"slices"

	"github.com/roach88/conteo/internal/ir"
	"github.com/roach88/conteo/internal/reconcile"
)

// VerifyResult reports whether a count's derived state can be rebuilt from
// its event log.
type VerifyResult struct {
	CountID string `json:"count_id"`
	Events  int    `json:"events"`

	// Deterministic is true when folding the log forward and in reverse
	// yields the same aggregates and discrepancies.
	Deterministic bool `json:"deterministic"`

	// ResultMatches is true when a finalized count's frozen result equals a
	// fresh resolution of its log. Always true for open counts.
	ResultMatches bool `json:"result_matches"`

	// Unaudited counts events that have no history entry.
	Unaudited int `json:"unaudited"`
}

// OK reports whether every check passed. Unaudited events are a warning,
// not a failure.
func (r VerifyResult) OK() bool {
	return r.Deterministic && r.ResultMatches
}

// Verify replays the count's event log twice, in opposite orders, and checks
// both folds agree with each other and with the frozen result.
func (e *Engine) Verify(ctx context.Context, countID string) (VerifyResult, error) {
	countID = ir.NormalizeID(countID)
	c, events, err := e.load(ctx, countID)
	if err != nil {
		return VerifyResult{}, err
	}

	unaudited, err := e.events.UnauditedEvents(ctx, countID)
	if err != nil {
		return VerifyResult{}, NewStorageError(countID, "list unaudited events", err)
	}

	reversed := slices.Clone(events)
	slices.Reverse(reversed)

	forward := reconcile.Resolve(c.Items, events)
	backward := reconcile.Resolve(c.Items, reversed)

	result := VerifyResult{
		CountID:   countID,
		Events:    len(events),
		Unaudited: len(unaudited),
		Deterministic: reflect.DeepEqual(reconcile.Aggregate(events), reconcile.Aggregate(reversed)) &&
			reflect.DeepEqual(forward, backward),
		ResultMatches: true,
	}

	if c.Finalized {
		frozen := []ir.Discrepancy{}
		if c.Result != nil {
			frozen = c.Result.Records
		}
		result.ResultMatches = reflect.DeepEqual(frozen, forward)
	}
	return result, nil
}
