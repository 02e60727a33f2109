package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/roach88/conteo/internal/ir"
)

// AppendScan appends a scan event to the count's log.
// Returns the store-assigned sequence and whether a new row was inserted.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency: a retried event with the
// same content-addressed ID returns the original seq and inserted=false.
// The open-count check is part of the INSERT itself, so an append can never
// land after a concurrent finalize has claimed the count.
//
// Returns ErrNotFound for an unknown count and ErrFinalized for a closed one.
func (s *Store) AppendScan(ctx context.Context, ev ir.ScanEvent) (seq int64, inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("append scan: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	seq, inserted, err = insertEvent(ctx, tx, ev)
	if err != nil {
		return 0, false, fmt.Errorf("append scan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("append scan: commit: %w", err)
	}
	return seq, inserted, nil
}

// AppendCorrection appends an adjust event that moves the current net
// quantity of (count, user, code) to target.
//
// The delta is computed from the log inside the same transaction as the
// insert. When the delta is zero nothing is written and written is false.
// ev.Quantity and ev.Kind are ignored; the returned event carries the delta
// and the assigned seq.
func (s *Store) AppendCorrection(ctx context.Context, ev ir.ScanEvent, target int64) (stored ir.ScanEvent, written bool, err error) {
	if target < 0 {
		return ir.ScanEvent{}, false, fmt.Errorf("append correction: negative target %d", target)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.ScanEvent{}, false, fmt.Errorf("append correction: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := requireOpen(ctx, tx, ev.CountID); err != nil {
		return ir.ScanEvent{}, false, fmt.Errorf("append correction: %w", err)
	}

	current, err := netQuantity(ctx, tx, ev.CountID, ev.UserID, ev.Code, -1)
	if err != nil {
		return ir.ScanEvent{}, false, fmt.Errorf("append correction: %w", err)
	}

	delta := target - current
	if delta == 0 {
		return ir.ScanEvent{}, false, nil
	}

	ev.Quantity = delta
	ev.Kind = ir.EventAdjust
	seq, inserted, err := insertEvent(ctx, tx, ev)
	if err != nil {
		return ir.ScanEvent{}, false, fmt.Errorf("append correction: %w", err)
	}
	if !inserted {
		return ir.ScanEvent{}, false, fmt.Errorf("append correction: event id %s already used", ev.ID)
	}

	if err := tx.Commit(); err != nil {
		return ir.ScanEvent{}, false, fmt.Errorf("append correction: commit: %w", err)
	}

	ev.Seq = seq
	return ev, true, nil
}

// insertEvent performs the guarded insert shared by scans and corrections.
func insertEvent(ctx context.Context, tx *sql.Tx, ev ir.ScanEvent) (int64, bool, error) {
	// The SELECT carries a WHERE clause, which also keeps SQLite's parser
	// from reading ON CONFLICT as a join constraint.
	result, err := tx.ExecContext(ctx, `
		INSERT INTO scan_events
		(id, count_id, user_id, code, quantity, kind, scanned_at, recorded_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM counts WHERE id = ? AND finalized = 0)
		ON CONFLICT(id) DO NOTHING
	`,
		ev.ID,
		ev.CountID,
		ev.UserID,
		ev.Code,
		ev.Quantity,
		string(ev.Kind),
		encodeTime(ev.ScannedAt),
		encodeTime(ev.RecordedAt),
		ev.CountID,
	)
	if err != nil {
		return 0, false, fmt.Errorf("insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("rows affected: %w", err)
	}

	if rowsAffected > 0 {
		seq, err := result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("last insert id: %w", err)
		}
		return seq, true, nil
	}

	// Nothing inserted: either a duplicate ID or a guard failure.
	var seq int64
	err = tx.QueryRowContext(ctx, `SELECT seq FROM scan_events WHERE id = ?`, ev.ID).Scan(&seq)
	if err == nil {
		return seq, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("select existing: %w", err)
	}

	if err := requireOpen(ctx, tx, ev.CountID); err != nil {
		return 0, false, err
	}
	return 0, false, fmt.Errorf("insert %s: no row written", ev.ID)
}

// requireOpen returns ErrNotFound or ErrFinalized when the count cannot
// accept events.
func requireOpen(ctx context.Context, q querier, countID string) error {
	var finalized int
	err := q.QueryRowContext(ctx, `SELECT finalized FROM counts WHERE id = ?`, countID).Scan(&finalized)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("count %s: %w", countID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check count %s: %w", countID, err)
	}
	if finalized == 1 {
		return fmt.Errorf("count %s: %w", countID, ErrFinalized)
	}
	return nil
}

// Watermark returns the highest seq currently in the count's log, or 0 when
// the log is empty.
func (s *Store) Watermark(ctx context.Context, countID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM scan_events WHERE count_id = ?
	`, countID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("watermark: %w", err)
	}
	return seq, nil
}

// ListScans returns the count's events in seq order, up to the watermark
// observed when the call starts.
func (s *Store) ListScans(ctx context.Context, countID string) ([]ir.ScanEvent, error) {
	upTo, err := s.Watermark(ctx, countID)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}

	events := []ir.ScanEvent{}
	for ev, err := range s.ScanEvents(ctx, countID, upTo) {
		if err != nil {
			return nil, fmt.Errorf("list scans: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// ScanEvents lazily yields the count's events with seq <= upTo in seq order.
// A negative upTo means no bound.
//
// The sequence is finite and may be ranged over more than once; each range
// issues a fresh query. The store has a single connection, so the loop body
// must not call back into the store.
func (s *Store) ScanEvents(ctx context.Context, countID string, upTo int64) iter.Seq2[ir.ScanEvent, error] {
	return func(yield func(ir.ScanEvent, error) bool) {
		rows, err := queryEvents(ctx, s.db, countID, upTo)
		if err != nil {
			yield(ir.ScanEvent{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			ev, err := scanEvent(rows)
			if err != nil {
				yield(ir.ScanEvent{}, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(ir.ScanEvent{}, fmt.Errorf("scan events: iterate: %w", err))
		}
	}
}

// QuantityBefore returns the net quantity of (count, user, code) from all
// events with seq strictly less than seq.
func (s *Store) QuantityBefore(ctx context.Context, countID, userID, code string, seq int64) (int64, error) {
	qty, err := netQuantity(ctx, s.db, countID, userID, code, seq)
	if err != nil {
		return 0, fmt.Errorf("quantity before: %w", err)
	}
	return qty, nil
}

// netQuantity sums quantities with seq < before; a negative before sums all.
func netQuantity(ctx context.Context, q querier, countID, userID, code string, before int64) (int64, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0) FROM scan_events
		WHERE count_id = ? AND user_id = ? AND code = ?`
	args := []any{countID, userID, code}
	if before >= 0 {
		query += ` AND seq < ?`
		args = append(args, before)
	}

	var qty int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&qty); err != nil {
		return 0, fmt.Errorf("net quantity: %w", err)
	}
	return qty, nil
}

func queryEvents(ctx context.Context, q querier, countID string, upTo int64) (*sql.Rows, error) {
	query := `
		SELECT seq, id, count_id, user_id, code, quantity, kind, scanned_at, recorded_at
		FROM scan_events
		WHERE count_id = ?`
	args := []any{countID}
	if upTo >= 0 {
		query += ` AND seq <= ?`
		args = append(args, upTo)
	}
	query += ` ORDER BY seq ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan events: query: %w", err)
	}
	return rows, nil
}

// loadEvents materializes queryEvents inside an open transaction.
func loadEvents(ctx context.Context, q querier, countID string, upTo int64) ([]ir.ScanEvent, error) {
	rows, err := queryEvents(ctx, q, countID, upTo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []ir.ScanEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan events: iterate: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (ir.ScanEvent, error) {
	var (
		ev         ir.ScanEvent
		kind       string
		scannedAt  int64
		recordedAt int64
	)
	err := rows.Scan(&ev.Seq, &ev.ID, &ev.CountID, &ev.UserID, &ev.Code, &ev.Quantity, &kind, &scannedAt, &recordedAt)
	if err != nil {
		return ir.ScanEvent{}, fmt.Errorf("scan events: scan: %w", err)
	}
	ev.Kind = ir.EventKind(kind)
	ev.ScannedAt = decodeTime(scannedAt)
	ev.RecordedAt = decodeTime(recordedAt)
	return ev, nil
}
