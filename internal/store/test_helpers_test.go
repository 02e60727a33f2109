package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/conteo/internal/ir"
)

var testEpoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCount creates a count with items A:5, B:3 and C:0.
func createTestCount(id string) ir.Count {
	return ir.Count{
		ID:        id,
		Kind:      ir.CountKindRemito,
		Reference: "R-0001",
		CreatedAt: testEpoch,
		Items: []ir.ExpectedItem{
			{Code: "A", Description: "ACME Widget", Expected: 5},
			{Code: "B", Description: "ACME Bolt", Brand: "acme", Expected: 3},
			{Code: "C", Description: "OK sample", Expected: 0},
		},
	}
}

func putTestCount(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.PutCount(context.Background(), createTestCount(id)); err != nil {
		t.Fatalf("PutCount(%s) failed: %v", id, err)
	}
}

var scanCounter int

// createTestScan builds a scan event with a unique ID.
func createTestScan(countID, userID, code string, qty int64) ir.ScanEvent {
	scanCounter++
	at := testEpoch.Add(time.Duration(scanCounter) * time.Second)
	return ir.ScanEvent{
		ID:         fmt.Sprintf("ev-%d", scanCounter),
		CountID:    countID,
		UserID:     userID,
		Code:       code,
		Quantity:   qty,
		Kind:       ir.EventScan,
		ScannedAt:  at,
		RecordedAt: at,
	}
}

func appendTestScan(t *testing.T, s *Store, countID, userID, code string, qty int64) ir.ScanEvent {
	t.Helper()
	ev := createTestScan(countID, userID, code, qty)
	seq, inserted, err := s.AppendScan(context.Background(), ev)
	if err != nil {
		t.Fatalf("AppendScan() failed: %v", err)
	}
	if !inserted {
		t.Fatalf("AppendScan() did not insert %s", ev.ID)
	}
	ev.Seq = seq
	return ev
}
