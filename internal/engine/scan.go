package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/conteo/internal/ir"
)

// SubmitScan records that userID counted quantity units of code.
//
// The event ID is derived from (count, user, code, quantity, scannedAt), so
// a retried submission returns the original ID without counting twice.
// A zero scannedAt is replaced by the engine clock, which makes the
// submission unique.
//
// Validation errors are returned before anything is written. The history
// entry is written asynchronously by Run.
func (e *Engine) SubmitScan(ctx context.Context, countID, userID, code string, quantity int64, scannedAt time.Time) (string, error) {
	countID, userID, code, err := validateEventInput(countID, userID, code)
	if err != nil {
		return "", err
	}
	if quantity <= 0 {
		return "", NewValidationError(countID, "quantity", "quantity must be positive")
	}
	if quantity > ir.MaxQuantity {
		return "", NewValidationError(countID, "quantity", fmt.Sprintf("quantity must not exceed %d", ir.MaxQuantity))
	}

	now := e.clock.Now()
	if scannedAt.IsZero() {
		scannedAt = now
	}

	id, err := ir.ScanID(countID, userID, code, quantity, scannedAt)
	if err != nil {
		return "", NewValidationError(countID, "code", err.Error())
	}

	ev := ir.ScanEvent{
		ID:         id,
		CountID:    countID,
		UserID:     userID,
		Code:       code,
		Quantity:   quantity,
		Kind:       ir.EventScan,
		ScannedAt:  scannedAt.UTC(),
		RecordedAt: now,
	}

	seq, inserted, err := e.events.AppendScan(ctx, ev)
	if err != nil {
		return "", storeError(countID, "append scan", err)
	}

	if !inserted {
		e.observer.ScanDuplicate()
		slog.Debug("duplicate scan ignored", "event_id", id, "count_id", countID, "seq", seq)
		return id, nil
	}

	ev.Seq = seq
	e.observer.ScanAccepted(ev.Kind)
	e.enqueueHistory(ev)

	slog.Debug("scan accepted",
		"event_id", id,
		"count_id", countID,
		"user_id", userID,
		"code", code,
		"quantity", quantity,
		"seq", seq,
	)
	return id, nil
}

// SetQuantity corrects userID's net quantity of code to quantity by
// appending an adjust event with the difference.
//
// Returns the ID of the adjust event, or "" when the quantity already
// matched and nothing was written.
func (e *Engine) SetQuantity(ctx context.Context, countID, userID, code string, quantity int64, at time.Time) (string, error) {
	countID, userID, code, err := validateEventInput(countID, userID, code)
	if err != nil {
		return "", err
	}
	if quantity < 0 {
		return "", NewValidationError(countID, "quantity", "quantity must not be negative")
	}
	if quantity > ir.MaxQuantity {
		return "", NewValidationError(countID, "quantity", fmt.Sprintf("quantity must not exceed %d", ir.MaxQuantity))
	}

	now := e.clock.Now()
	if at.IsZero() {
		at = now
	}

	ev := ir.ScanEvent{
		ID:         e.ids.Generate(),
		CountID:    countID,
		UserID:     userID,
		Code:       code,
		Kind:       ir.EventAdjust,
		ScannedAt:  at.UTC(),
		RecordedAt: now,
	}

	stored, written, err := e.events.AppendCorrection(ctx, ev, quantity)
	if err != nil {
		return "", storeError(countID, "append correction", err)
	}
	if !written {
		slog.Debug("correction is a no-op", "count_id", countID, "user_id", userID, "code", code)
		return "", nil
	}

	e.observer.ScanAccepted(stored.Kind)
	e.enqueueHistory(stored)

	slog.Debug("correction accepted",
		"event_id", stored.ID,
		"count_id", countID,
		"user_id", userID,
		"code", code,
		"delta", stored.Quantity,
		"seq", stored.Seq,
	)
	return stored.ID, nil
}

// RemoveScan drops userID's whole contribution for code.
func (e *Engine) RemoveScan(ctx context.Context, countID, userID, code string, at time.Time) (string, error) {
	return e.SetQuantity(ctx, countID, userID, code, 0, at)
}

// validateEventInput checks the identifiers shared by every event and
// returns them normalized.
func validateEventInput(countID, userID, code string) (string, string, string, error) {
	countID = ir.NormalizeID(countID)
	if countID == "" {
		return "", "", "", NewValidationError("", "count_id", "count id must not be empty")
	}
	userID = ir.NormalizeID(userID)
	if userID == "" {
		return "", "", "", NewValidationError(countID, "user_id", "user id must not be empty")
	}
	code = ir.NormalizeCode(code)
	if code == "" {
		return "", "", "", NewValidationError(countID, "code", "code must not be empty")
	}
	return countID, userID, code, nil
}
