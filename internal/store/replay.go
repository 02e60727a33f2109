package store

import (
	"context"
	"fmt"

	"github.com/roach88/conteo/internal/ir"
)

// CountState summarizes the durable state of a count for recovery and
// verification.
type CountState struct {
	CountID      string
	Finalized    bool
	LastSeq      int64 // Highest event seq, 0 for an empty log
	EventCount   int
	HistoryCount int
	Unaudited    int // Events with no history entry (history writes lost or pending)
}

// GetCountState retrieves the state of a count. Returns ErrNotFound if the
// count is unknown.
func (s *Store) GetCountState(ctx context.Context, countID string) (CountState, error) {
	state := CountState{CountID: countID}

	var finalized int
	err := s.db.QueryRowContext(ctx, `SELECT finalized FROM counts WHERE id = ?`, countID).Scan(&finalized)
	if err != nil {
		if exists, existsErr := countExists(ctx, s.db, countID); existsErr == nil && !exists {
			return state, fmt.Errorf("get count state %s: %w", countID, ErrNotFound)
		}
		return state, fmt.Errorf("get count state: %w", err)
	}
	state.Finalized = finalized == 1

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0), COUNT(*) FROM scan_events WHERE count_id = ?
	`, countID).Scan(&state.LastSeq, &state.EventCount)
	if err != nil {
		return state, fmt.Errorf("get count state: events: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM history WHERE count_id = ?
	`, countID).Scan(&state.HistoryCount)
	if err != nil {
		return state, fmt.Errorf("get count state: history: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM scan_events e
		WHERE e.count_id = ?
		  AND NOT EXISTS (SELECT 1 FROM history h WHERE h.event_id = e.id)
	`, countID).Scan(&state.Unaudited)
	if err != nil {
		return state, fmt.Errorf("get count state: unaudited: %w", err)
	}

	return state, nil
}

// UnauditedEvents returns the count's events that have no history entry,
// in seq order. Used to re-enqueue history after a crash.
func (s *Store) UnauditedEvents(ctx context.Context, countID string) ([]ir.ScanEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.seq, e.id, e.count_id, e.user_id, e.code, e.quantity, e.kind, e.scanned_at, e.recorded_at
		FROM scan_events e
		WHERE e.count_id = ?
		  AND NOT EXISTS (SELECT 1 FROM history h WHERE h.event_id = e.id)
		ORDER BY e.seq ASC
	`, countID)
	if err != nil {
		return nil, fmt.Errorf("unaudited events: %w", err)
	}
	defer rows.Close()

	events := []ir.ScanEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("unaudited events: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unaudited events: iterate: %w", err)
	}
	return events, nil
}
