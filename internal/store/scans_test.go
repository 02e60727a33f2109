package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/conteo/internal/ir"
)

func TestAppendScan_AssignsIncreasingSeq(t *testing.T) {
	s := createTestStore(t)
	putTestCount(t, s, "c1")

	first := appendTestScan(t, s, "c1", "ana", "A", 2)
	second := appendTestScan(t, s, "c1", "ben", "A", 1)

	assert.Greater(t, second.Seq, first.Seq)
}

func TestAppendScan_DuplicateIDIsNoOp(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putTestCount(t, s, "c1")

	ev := createTestScan("c1", "ana", "A", 2)
	seq1, inserted1, err := s.AppendScan(ctx, ev)
	require.NoError(t, err)
	assert.True(t, inserted1)

	seq2, inserted2, err := s.AppendScan(ctx, ev)
	require.NoError(t, err)
	assert.False(t, inserted2)
	assert.Equal(t, seq1, seq2)

	events, err := s.ListScans(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestAppendScan_UnknownCount(t *testing.T) {
	s := createTestStore(t)

	_, _, err := s.AppendScan(context.Background(), createTestScan("nope", "ana", "A", 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendScan_FinalizedCount(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putTestCount(t, s, "c1")

	_, _, err := s.FinalizeCount(ctx, "c1", "", testEpoch, noDiscrepancies)
	require.NoError(t, err)

	_, _, err = s.AppendScan(ctx, createTestScan("c1", "ana", "A", 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestAppendScan_RetryAfterFinalizeReturnsOriginal(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putTestCount(t, s, "c1")

	ev := appendTestScan(t, s, "c1", "ana", "A", 1)
	_, _, err := s.FinalizeCount(ctx, "c1", "", testEpoch, noDiscrepancies)
	require.NoError(t, err)

	seq, inserted, err := s.AppendScan(ctx, ev)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, ev.Seq, seq)
}

func TestAppendScan_Concurrent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putTestCount(t, s, "c1")

	events := make([]ir.ScanEvent, 50)
	for i := range events {
		events[i] = createTestScan("c1", "ana", "A", 1)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(events))
	for _, ev := range events {
		wg.Add(1)
		go func(ev ir.ScanEvent) {
			defer wg.Done()
			if _, _, err := s.AppendScan(ctx, ev); err != nil {
				errs <- err
			}
		}(ev)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent AppendScan failed: %v", err)
	}

	qty, err := s.QuantityBefore(ctx, "c1", "ana", "A", 1<<62)
	require.NoError(t, err)
	assert.Equal(t, int64(50), qty)
}

func TestAppendCorrection_WritesDelta(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putTestCount(t, s, "c1")
	appendTestScan(t, s, "c1", "ana", "A", 5)

	ev := createTestScan("c1", "ana", "A", 0)
	stored, written, err := s.AppendCorrection(ctx, ev, 2)
	require.NoError(t, err)
	require.True(t, written)

	assert.Equal(t, int64(-3), stored.Quantity)
	assert.Equal(t, ir.EventAdjust, stored.Kind)
	assert.NotZero(t, stored.Seq)

	qty, err := s.QuantityBefore(ctx, "c1", "ana", "A", stored.Seq+1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), qty)
}

func TestAppendCorrection_ZeroDeltaWritesNothing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putTestCount(t, s, "c1")
	appendTestScan(t, s, "c1", "ana", "A", 5)

	_, written, err := s.AppendCorrection(ctx, createTestScan("c1", "ana", "A", 0), 5)
	require.NoError(t, err)
	assert.False(t, written)

	events, err := s.ListScans(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestAppendCorrection_RemoveToZero(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putTestCount(t, s, "c1")
	appendTestScan(t, s, "c1", "ana", "A", 4)
	appendTestScan(t, s, "c1", "ben", "A", 7)

	stored, written, err := s.AppendCorrection(ctx, createTestScan("c1", "ana", "A", 0), 0)
	require.NoError(t, err)
	require.True(t, written)
	assert.Equal(t, int64(-4), stored.Quantity)

	// Other users are untouched
	qty, err := s.QuantityBefore(ctx, "c1", "ben", "A", stored.Seq+1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), qty)
}

func TestAppendCorrection_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putTestCount(t, s, "c1")

	_, _, err := s.AppendCorrection(ctx, createTestScan("c1", "ana", "A", 0), -1)
	assert.Error(t, err)

	_, _, err = s.AppendCorrection(ctx, createTestScan("nope", "ana", "A", 0), 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = s.FinalizeCount(ctx, "c1", "", testEpoch, noDiscrepancies)
	require.NoError(t, err)
	_, _, err = s.AppendCorrection(ctx, createTestScan("c1", "ana", "A", 0), 1)
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestListScans_EmptyReturnsEmptySlice(t *testing.T) {
	s := createTestStore(t)
	putTestCount(t, s, "c1")

	events, err := s.ListScans(context.Background(), "c1")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestListScans_RoundTripsFields(t *testing.T) {
	s := createTestStore(t)
	putTestCount(t, s, "c1")
	want := appendTestScan(t, s, "c1", "ana", "A", 3)

	events, err := s.ListScans(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, want, events[0])
}

func TestScanEvents_RespectsWatermark(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putTestCount(t, s, "c1")

	first := appendTestScan(t, s, "c1", "ana", "A", 1)
	appendTestScan(t, s, "c1", "ana", "B", 1)

	var got []ir.ScanEvent
	for ev, err := range s.ScanEvents(ctx, "c1", first.Seq) {
		require.NoError(t, err)
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	assert.Equal(t, first.ID, got[0].ID)
}

func TestScanEvents_Restartable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putTestCount(t, s, "c1")
	appendTestScan(t, s, "c1", "ana", "A", 1)
	appendTestScan(t, s, "c1", "ana", "B", 1)

	seq := s.ScanEvents(ctx, "c1", -1)

	count := func() int {
		n := 0
		for _, err := range seq {
			require.NoError(t, err)
			n++
		}
		return n
	}
	assert.Equal(t, 2, count())
	assert.Equal(t, 2, count())
}

func TestScanEvents_EarlyBreak(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putTestCount(t, s, "c1")
	appendTestScan(t, s, "c1", "ana", "A", 1)
	appendTestScan(t, s, "c1", "ana", "B", 1)

	for range s.ScanEvents(ctx, "c1", -1) {
		break
	}

	// The connection must be released after an early break.
	_, err := s.Watermark(ctx, "c1")
	assert.NoError(t, err)
}

func TestQuantityBefore(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putTestCount(t, s, "c1")

	e1 := appendTestScan(t, s, "c1", "ana", "A", 2)
	e2 := appendTestScan(t, s, "c1", "ana", "A", 3)
	appendTestScan(t, s, "c1", "ben", "A", 10)

	before1, err := s.QuantityBefore(ctx, "c1", "ana", "A", e1.Seq)
	require.NoError(t, err)
	assert.Equal(t, int64(0), before1)

	before2, err := s.QuantityBefore(ctx, "c1", "ana", "A", e2.Seq)
	require.NoError(t, err)
	assert.Equal(t, int64(2), before2)
}

func noDiscrepancies([]ir.ExpectedItem, []ir.ScanEvent) []ir.Discrepancy {
	return nil
}
