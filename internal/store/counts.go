package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/conteo/internal/ir"
)

// ResolveFunc computes the discrepancy records of a count from its
// expectation set and full event log. Called inside the finalize transaction.
type ResolveFunc func(items []ir.ExpectedItem, events []ir.ScanEvent) []ir.Discrepancy

// PutCount inserts a new count together with its expectation set.
// Returns ErrExists if a count with the same ID is already stored.
//
// Items are stored in slice order; GetCount returns them in the same order.
func (s *Store) PutCount(ctx context.Context, c ir.Count) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put count: begin tx: %w", err)
	}
	defer tx.Rollback()

	kind := c.Kind
	if kind == "" {
		kind = ir.CountKindGeneral
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO counts (id, kind, reference, created_at, finalized, finalized_at, clarification)
		VALUES (?, ?, ?, ?, 0, NULL, '')
		ON CONFLICT(id) DO NOTHING
	`, c.ID, string(kind), c.Reference, encodeTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("put count: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("put count: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("put count %s: %w", c.ID, ErrExists)
	}

	for i, item := range c.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO expected_items (count_id, position, code, description, brand, expected)
			VALUES (?, ?, ?, ?, ?, ?)
		`, c.ID, i, item.Code, item.Description, item.Brand, item.Expected)
		if err != nil {
			return fmt.Errorf("put count: insert item %q: %w", item.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put count: commit: %w", err)
	}
	return nil
}

// GetCount returns a count with its expectation set and, when finalized,
// its frozen discrepancy result. Returns ErrNotFound if the count is unknown.
func (s *Store) GetCount(ctx context.Context, id string) (ir.Count, error) {
	c, err := getCount(ctx, s.db, id)
	if err != nil {
		return ir.Count{}, fmt.Errorf("get count: %w", err)
	}
	return c, nil
}

// ListCounts returns every stored count ordered by creation time, newest
// first. Expectation sets and results are included.
func (s *Store) ListCounts(ctx context.Context) ([]ir.Count, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM counts ORDER BY created_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list counts: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("list counts: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list counts: iterate: %w", err)
	}
	rows.Close()

	// Return empty slice instead of nil for consistency
	counts := make([]ir.Count, 0, len(ids))
	for _, id := range ids {
		c, err := getCount(ctx, s.db, id)
		if err != nil {
			return nil, fmt.Errorf("list counts: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, nil
}

// FinalizeCount transitions a count from open to finalized exactly once.
//
// The caller that wins the claim computes the discrepancy records with
// resolve over the complete event log and persists them in the same
// transaction; claimed is true for that caller only. Every other caller
// receives the already-frozen count with claimed false.
//
// Returns ErrNotFound if the count is unknown.
func (s *Store) FinalizeCount(ctx context.Context, id, clarification string, at time.Time, resolve ResolveFunc) (c ir.Count, claimed bool, err error) {
	claimed, err = s.claimAndResolve(ctx, id, clarification, at, resolve)
	if err != nil {
		return ir.Count{}, false, err
	}

	// The finalize transaction is closed by now, so the single connection
	// is free again.
	c, err = s.GetCount(ctx, id)
	if err != nil {
		return ir.Count{}, false, fmt.Errorf("finalize count: %w", err)
	}
	return c, claimed, nil
}

func (s *Store) claimAndResolve(ctx context.Context, id, clarification string, at time.Time, resolve ResolveFunc) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("finalize count: begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE counts
		SET finalized = 1, finalized_at = ?, clarification = ?
		WHERE id = ? AND finalized = 0
	`, encodeTime(at), strings.TrimSpace(clarification), id)
	if err != nil {
		return false, fmt.Errorf("finalize count: claim: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finalize count: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		exists, err := countExists(ctx, tx, id)
		if err != nil {
			return false, fmt.Errorf("finalize count: %w", err)
		}
		if !exists {
			return false, fmt.Errorf("finalize count %s: %w", id, ErrNotFound)
		}
		return false, nil
	}

	items, err := loadItems(ctx, tx, id)
	if err != nil {
		return false, fmt.Errorf("finalize count: %w", err)
	}
	events, err := loadEvents(ctx, tx, id, -1)
	if err != nil {
		return false, fmt.Errorf("finalize count: %w", err)
	}

	for i, d := range resolve(items, events) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO discrepancies (count_id, position, kind, code, description, expected, scanned, diff)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, string(d.Kind), d.Code, d.Description, d.Expected, d.Scanned, d.Diff)
		if err != nil {
			return false, fmt.Errorf("finalize count: insert discrepancy %q: %w", d.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("finalize count: commit: %w", err)
	}
	return true, nil
}

func getCount(ctx context.Context, q querier, id string) (ir.Count, error) {
	var (
		c           ir.Count
		kind        string
		createdAt   int64
		finalized   int
		finalizedAt sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, kind, reference, created_at, finalized, finalized_at, clarification
		FROM counts WHERE id = ?
	`, id).Scan(&c.ID, &kind, &c.Reference, &createdAt, &finalized, &finalizedAt, &c.Clarification)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Count{}, fmt.Errorf("count %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.Count{}, fmt.Errorf("count %s: %w", id, err)
	}

	c.Kind = ir.CountKind(kind)
	c.CreatedAt = decodeTime(createdAt)
	c.Finalized = finalized == 1
	c.FinalizedAt = decodeNullTime(finalizedAt)

	c.Items, err = loadItems(ctx, q, id)
	if err != nil {
		return ir.Count{}, err
	}

	if c.Finalized {
		records, err := loadDiscrepancies(ctx, q, id)
		if err != nil {
			return ir.Count{}, err
		}
		c.Result = &ir.DiscrepancyResult{
			CountID:       c.ID,
			FinalizedAt:   c.FinalizedAt,
			Clarification: c.Clarification,
			Records:       records,
		}
	}
	return c, nil
}

func countExists(ctx context.Context, q querier, id string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM counts WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("check count %s: %w", id, err)
	}
	return n > 0, nil
}

func loadItems(ctx context.Context, q querier, countID string) ([]ir.ExpectedItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT code, description, brand, expected
		FROM expected_items
		WHERE count_id = ?
		ORDER BY position ASC
	`, countID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	items := []ir.ExpectedItem{}
	for rows.Next() {
		var it ir.ExpectedItem
		if err := rows.Scan(&it.Code, &it.Description, &it.Brand, &it.Expected); err != nil {
			return nil, fmt.Errorf("load items: scan: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load items: iterate: %w", err)
	}
	return items, nil
}

func loadDiscrepancies(ctx context.Context, q querier, countID string) ([]ir.Discrepancy, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT kind, code, description, expected, scanned, diff
		FROM discrepancies
		WHERE count_id = ?
		ORDER BY position ASC
	`, countID)
	if err != nil {
		return nil, fmt.Errorf("load discrepancies: %w", err)
	}
	defer rows.Close()

	records := []ir.Discrepancy{}
	for rows.Next() {
		var (
			d    ir.Discrepancy
			kind string
		)
		if err := rows.Scan(&kind, &d.Code, &d.Description, &d.Expected, &d.Scanned, &d.Diff); err != nil {
			return nil, fmt.Errorf("load discrepancies: scan: %w", err)
		}
		d.Kind = ir.DiscrepancyKind(kind)
		records = append(records, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load discrepancies: iterate: %w", err)
	}
	return records, nil
}
