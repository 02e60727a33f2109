package reconcile

import (
	"fmt"
	"time"

	"github.com/roach88/conteo/internal/ir"
)

var testEpoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// eventLog builds events with increasing seq from (user, code, qty) triples.
type eventLog struct {
	events []ir.ScanEvent
}

func (l *eventLog) add(userID, code string, qty int64) *eventLog {
	seq := int64(len(l.events) + 1)
	kind := ir.EventScan
	if qty < 0 {
		kind = ir.EventAdjust
	}
	l.events = append(l.events, ir.ScanEvent{
		ID:         fmt.Sprintf("ev-%d", seq),
		Seq:        seq,
		CountID:    "c1",
		UserID:     userID,
		Code:       code,
		Quantity:   qty,
		Kind:       kind,
		ScannedAt:  testEpoch.Add(time.Duration(seq) * time.Second),
		RecordedAt: testEpoch.Add(time.Duration(seq) * time.Second),
	})
	return l
}
