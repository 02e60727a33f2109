package store

import (
	"context"
	"fmt"

	"github.com/roach88/conteo/internal/ir"
)

// AppendHistory records one audit entry.
// Uses ON CONFLICT(event_id) DO NOTHING: each event is audited at most once,
// so replaying a history job is a no-op. Returns whether a row was inserted.
func (s *Store) AppendHistory(ctx context.Context, h ir.HistoryEntry) (inserted bool, err error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO history
		(event_id, count_id, operation, actor, code, description, old_value, new_value, event_seq, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`,
		h.EventID,
		h.CountID,
		string(h.Operation),
		h.Actor,
		h.Code,
		h.Description,
		h.OldValue,
		h.NewValue,
		h.EventSeq,
		encodeTime(h.Timestamp),
	)
	if err != nil {
		return false, fmt.Errorf("append history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append history: rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListHistory returns the count's audit trail ordered by timestamp, ties
// broken by the seq of the audited event.
func (s *Store) ListHistory(ctx context.Context, countID string) ([]ir.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, event_id, count_id, operation, actor, code, description,
		       old_value, new_value, event_seq, recorded_at
		FROM history
		WHERE count_id = ?
		ORDER BY recorded_at ASC, event_seq ASC
	`, countID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	// Return empty slice instead of nil for consistency
	entries := []ir.HistoryEntry{}
	for rows.Next() {
		var (
			h          ir.HistoryEntry
			op         string
			recordedAt int64
		)
		err := rows.Scan(&h.Seq, &h.EventID, &h.CountID, &op, &h.Actor, &h.Code, &h.Description,
			&h.OldValue, &h.NewValue, &h.EventSeq, &recordedAt)
		if err != nil {
			return nil, fmt.Errorf("list history: scan: %w", err)
		}
		h.Operation = ir.Operation(op)
		h.Timestamp = decodeTime(recordedAt)
		entries = append(entries, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history: iterate: %w", err)
	}
	return entries, nil
}
