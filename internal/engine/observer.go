package engine

import "github.com/roach88/conteo/internal/ir"

// Observer receives notifications of engine activity.
// Implementations must be safe for concurrent use and must not block.
// Implemented by metrics.Metrics.
type Observer interface {
	// ScanAccepted is called once per newly appended scan or adjust event.
	ScanAccepted(kind ir.EventKind)

	// ScanDuplicate is called when a retried submission matched an existing event.
	ScanDuplicate()

	// HistoryRecorded is called after a history entry is written.
	HistoryRecorded(op ir.Operation)

	// HistoryFailed is called when a history entry could not be written.
	HistoryFailed()

	// Finalized is called once per count, by the caller that froze its result.
	Finalized(records []ir.Discrepancy)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) ScanAccepted(ir.EventKind)    {}
func (NopObserver) ScanDuplicate()               {}
func (NopObserver) HistoryRecorded(ir.Operation) {}
func (NopObserver) HistoryFailed()               {}
func (NopObserver) Finalized([]ir.Discrepancy)   {}
