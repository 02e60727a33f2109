package ir

import "time"

// CountKind distinguishes delivery-note counts from general stock counts.
type CountKind string

const (
	// CountKindRemito is a count checked against a delivery note.
	CountKindRemito CountKind = "remito"
	// CountKindGeneral is a general stock count.
	CountKindGeneral CountKind = "general"
)

// ValidCountKinds defines allowed count kinds.
var ValidCountKinds = map[CountKind]bool{
	CountKindRemito:  true,
	CountKindGeneral: true,
}

// Count is one reconciliation unit: an expectation set plus the scans
// accumulated against it.
//
// Items and Result are immutable once Finalized is true.
type Count struct {
	ID            string             `json:"id"`
	Kind          CountKind          `json:"kind"`
	Reference     string             `json:"reference,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	Finalized     bool               `json:"finalized"`
	FinalizedAt   time.Time          `json:"finalized_at,omitzero"`
	Clarification string             `json:"clarification,omitempty"`
	Items         []ExpectedItem     `json:"items"`
	Result        *DiscrepancyResult `json:"result,omitempty"` // Non-nil only when finalized
}

// ItemsByCode indexes the expectation set by code.
func (c Count) ItemsByCode() map[string]ExpectedItem {
	items := make(map[string]ExpectedItem, len(c.Items))
	for _, it := range c.Items {
		items[it.Code] = it
	}
	return items
}

// MaxQuantity bounds every scanned, corrected and expected quantity.
// Sums of bounded quantities stay far from int64 overflow.
const MaxQuantity int64 = 1_000_000_000_000

// ExpectedItem is one line of an expectation set.
type ExpectedItem struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Brand       string `json:"brand,omitempty"`
	Expected    int64  `json:"expected"`
}

// EventKind distinguishes counter observations from corrections.
type EventKind string

const (
	// EventScan is a positive quantity observed by a counter.
	EventScan EventKind = "scan"
	// EventAdjust is a signed correction delta.
	EventAdjust EventKind = "adjust"
)

// ScanEvent is one append-only record in the event log.
//
// Seq is assigned by the store on append and is strictly increasing.
// ScannedAt is the caller's timestamp, RecordedAt the engine's.
type ScanEvent struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq"`
	CountID    string    `json:"count_id"`
	UserID     string    `json:"user_id"`
	Code       string    `json:"code"`
	Quantity   int64     `json:"quantity"`
	Kind       EventKind `json:"kind"`
	ScannedAt  time.Time `json:"scanned_at"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Operation is the logical mutation a history entry describes.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// OperationFor classifies a transition of a user's quantity for a code.
func OperationFor(oldValue, newValue int64) Operation {
	switch {
	case oldValue == 0:
		return OpInsert
	case newValue == 0:
		return OpDelete
	default:
		return OpUpdate
	}
}

// HistoryEntry is one audit record of a scan mutation.
type HistoryEntry struct {
	Seq         int64     `json:"seq"`
	EventID     string    `json:"event_id"`
	CountID     string    `json:"count_id"`
	Operation   Operation `json:"operation"`
	Actor       string    `json:"actor"`
	Timestamp   time.Time `json:"timestamp"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	OldValue    int64     `json:"old_value"`
	NewValue    int64     `json:"new_value"`
	EventSeq    int64     `json:"event_seq"`
}

// DiscrepancyKind tags a discrepancy record.
type DiscrepancyKind string

const (
	// KindMissing marks an expected item scanned less than expected.
	KindMissing DiscrepancyKind = "missing"
	// KindOver marks an expected item scanned more than expected.
	KindOver DiscrepancyKind = "over"
	// KindExtra marks a scanned code absent from the expectation set.
	KindExtra DiscrepancyKind = "extra"
)

// Discrepancy is one code whose scanned total differs from expectation.
// Diff is always Scanned - Expected; Expected is 0 for extras.
type Discrepancy struct {
	Kind        DiscrepancyKind `json:"kind"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Expected    int64           `json:"expected"`
	Scanned     int64           `json:"scanned"`
	Diff        int64           `json:"diff"`
}

// DiscrepancyResult is the frozen outcome of finalizing a count.
// Records hold expected-item discrepancies in expectation order followed by
// extras in first-seen order.
type DiscrepancyResult struct {
	CountID       string        `json:"count_id"`
	FinalizedAt   time.Time     `json:"finalized_at"`
	Clarification string        `json:"clarification,omitempty"`
	Records       []Discrepancy `json:"records"`
}
