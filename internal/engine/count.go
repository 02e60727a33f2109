package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/conteo/internal/ir"
	"github.com/roach88/conteo/internal/reconcile"
)

// NewCount describes a count to create. ID is generated when empty.
type NewCount struct {
	ID        string            `json:"id,omitempty" yaml:"id"`
	Kind      ir.CountKind      `json:"kind" yaml:"kind"`
	Reference string            `json:"reference,omitempty" yaml:"reference"`
	Items     []ir.ExpectedItem `json:"items" yaml:"items"`
}

// CreateCount validates and stores a new open count.
//
// Codes are trimmed and NFC-normalized and must be unique and non-empty.
// Expected quantities must be non-negative. Kind defaults to general.
func (e *Engine) CreateCount(ctx context.Context, nc NewCount) (ir.Count, error) {
	c, err := e.validateCount(nc)
	if err != nil {
		return ir.Count{}, err
	}

	if err := e.snapshots.PutCount(ctx, c); err != nil {
		return ir.Count{}, storeError(c.ID, "create count", err)
	}

	slog.Info("count created",
		"count_id", c.ID,
		"kind", c.Kind,
		"items", len(c.Items),
	)
	return c, nil
}

func (e *Engine) validateCount(nc NewCount) (ir.Count, error) {
	id := ir.NormalizeID(nc.ID)
	if id == "" {
		id = e.ids.Generate()
	}

	kind := nc.Kind
	if kind == "" {
		kind = ir.CountKindGeneral
	}
	if !ir.ValidCountKinds[kind] {
		return ir.Count{}, NewValidationError(id, "kind", fmt.Sprintf("unknown count kind %q", kind))
	}

	items := make([]ir.ExpectedItem, 0, len(nc.Items))
	seen := make(map[string]bool, len(nc.Items))
	for i, it := range nc.Items {
		code := ir.NormalizeCode(it.Code)
		field := fmt.Sprintf("items[%d]", i)
		if code == "" {
			return ir.Count{}, NewValidationError(id, field+".code", "code must not be empty")
		}
		if seen[code] {
			return ir.Count{}, NewValidationError(id, field+".code", fmt.Sprintf("duplicate code %q", code))
		}
		if it.Expected < 0 {
			return ir.Count{}, NewValidationError(id, field+".expected", "expected quantity must not be negative")
		}
		if it.Expected > ir.MaxQuantity {
			return ir.Count{}, NewValidationError(id, field+".expected", fmt.Sprintf("expected quantity must not exceed %d", ir.MaxQuantity))
		}
		seen[code] = true
		items = append(items, ir.ExpectedItem{
			Code:        code,
			Description: strings.TrimSpace(it.Description),
			Brand:       strings.TrimSpace(it.Brand),
			Expected:    it.Expected,
		})
	}

	return ir.Count{
		ID:        id,
		Kind:      kind,
		Reference: strings.TrimSpace(nc.Reference),
		CreatedAt: e.clock.Now(),
		Items:     items,
	}, nil
}

// GetCount returns a count with its expectation set and, once finalized,
// its frozen result.
func (e *Engine) GetCount(ctx context.Context, countID string) (ir.Count, error) {
	countID = ir.NormalizeID(countID)
	if countID == "" {
		return ir.Count{}, NewValidationError("", "count_id", "count id must not be empty")
	}

	c, err := e.snapshots.GetCount(ctx, countID)
	if err != nil {
		return ir.Count{}, storeError(countID, "get count", err)
	}
	return c, nil
}

// ListCounts returns every count, newest first.
func (e *Engine) ListCounts(ctx context.Context) ([]ir.Count, error) {
	counts, err := e.snapshots.ListCounts(ctx)
	if err != nil {
		return nil, NewStorageError("", "list counts", err)
	}
	return counts, nil
}

// Finalize freezes the count's discrepancy result.
//
// Attempts on the same count are serialized by the Locker, and the store
// claims the count atomically, so the result is computed exactly once over
// the complete event log. Later calls return that same result together with
// an ALREADY_FINALIZED error.
func (e *Engine) Finalize(ctx context.Context, countID, clarification string) (*ir.DiscrepancyResult, error) {
	countID = ir.NormalizeID(countID)
	if countID == "" {
		return nil, NewValidationError("", "count_id", "count id must not be empty")
	}

	release, err := e.locker.Acquire(ctx, "finalize:"+countID)
	if err != nil {
		return nil, NewStorageError(countID, "acquire finalize lock", err)
	}
	defer release()

	c, claimed, err := e.snapshots.FinalizeCount(ctx, countID, clarification, e.clock.Now(), reconcile.Resolve)
	if err != nil {
		return nil, storeError(countID, "finalize count", err)
	}

	if !claimed {
		return c.Result, NewAlreadyFinalizedError(countID)
	}

	e.observer.Finalized(c.Result.Records)
	slog.Info("count finalized",
		"count_id", countID,
		"discrepancies", len(c.Result.Records),
	)
	return c.Result, nil
}
