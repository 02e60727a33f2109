package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker"

	"github.com/roach88/conteo/internal/ir"
)

// recordHistory writes the audit entry of one accepted event.
//
// The old value is the net quantity of (count, user, code) from every event
// with a lower seq, so the entry is correct no matter when the job runs
// relative to other writers. Writing is idempotent per event ID.
//
// CRITICAL: Called only from Run() goroutine.
func (e *Engine) recordHistory(ctx context.Context, ev ir.ScanEvent) error {
	_, err := e.breaker.Execute(func() (interface{}, error) {
		entry, err := e.buildHistory(ctx, ev)
		if err != nil {
			return nil, err
		}

		inserted, err := e.history.AppendHistory(ctx, entry)
		if err != nil {
			return nil, err
		}
		if inserted {
			e.observer.HistoryRecorded(entry.Operation)
			slog.Debug("history recorded",
				"event_id", ev.ID,
				"count_id", ev.CountID,
				"operation", entry.Operation,
				"old", entry.OldValue,
				"new", entry.NewValue,
			)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("history breaker: %w", err)
	}
	return err
}

func (e *Engine) buildHistory(ctx context.Context, ev ir.ScanEvent) (ir.HistoryEntry, error) {
	old, err := e.events.QuantityBefore(ctx, ev.CountID, ev.UserID, ev.Code, ev.Seq)
	if err != nil {
		return ir.HistoryEntry{}, err
	}

	description, err := e.describe(ctx, ev.CountID, ev.Code)
	if err != nil {
		return ir.HistoryEntry{}, err
	}

	newValue := old + ev.Quantity
	return ir.HistoryEntry{
		EventID:     ev.ID,
		CountID:     ev.CountID,
		Operation:   ir.OperationFor(old, newValue),
		Actor:       ev.UserID,
		Timestamp:   ev.RecordedAt,
		Code:        ev.Code,
		Description: description,
		OldValue:    old,
		NewValue:    newValue,
		EventSeq:    ev.Seq,
	}, nil
}

// describe returns the expectation-set description of code, or "" for a
// code the count does not expect.
func (e *Engine) describe(ctx context.Context, countID, code string) (string, error) {
	items, ok := e.items[countID]
	if !ok {
		c, err := e.snapshots.GetCount(ctx, countID)
		if err != nil {
			return "", err
		}
		items = c.ItemsByCode()
		e.items[countID] = items
	}
	return items[code].Description, nil
}

// GetHistory returns the count's audit trail ordered by timestamp, then by
// the seq of the audited event.
func (e *Engine) GetHistory(ctx context.Context, countID string) ([]ir.HistoryEntry, error) {
	countID = ir.NormalizeID(countID)
	if _, err := e.GetCount(ctx, countID); err != nil {
		return nil, err
	}

	entries, err := e.history.ListHistory(ctx, countID)
	if err != nil {
		return nil, NewStorageError(countID, "list history", err)
	}
	return entries, nil
}

// RecoverHistory enqueues history jobs for every event of the count that has
// no history entry, for example after a crash or an open breaker.
// Returns how many jobs were enqueued.
func (e *Engine) RecoverHistory(ctx context.Context, countID string) (int, error) {
	countID = ir.NormalizeID(countID)
	if _, err := e.GetCount(ctx, countID); err != nil {
		return 0, err
	}

	events, err := e.events.UnauditedEvents(ctx, countID)
	if err != nil {
		return 0, NewStorageError(countID, "list unaudited events", err)
	}

	for _, ev := range events {
		e.enqueueHistory(ev)
	}
	if len(events) > 0 {
		slog.Info("history recovery enqueued", "count_id", countID, "events", len(events))
	}
	return len(events), nil
}
