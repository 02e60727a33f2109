package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/conteo/internal/ir"
)

func createTestHistory(eventID string, eventSeq int64, at time.Time) ir.HistoryEntry {
	return ir.HistoryEntry{
		EventID:     eventID,
		CountID:     "c1",
		Operation:   ir.OpInsert,
		Actor:       "ana",
		Timestamp:   at,
		Code:        "A",
		Description: "ACME Widget",
		OldValue:    0,
		NewValue:    1,
		EventSeq:    eventSeq,
	}
}

func TestAppendHistory_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	h := createTestHistory("e1", 1, testEpoch)

	inserted, err := s.AppendHistory(ctx, h)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.AppendHistory(ctx, h)
	require.NoError(t, err)
	assert.False(t, inserted)

	entries, err := s.ListHistory(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestListHistory_OrdersByTimeThenEventSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	later := testEpoch.Add(time.Minute)
	for _, h := range []ir.HistoryEntry{
		createTestHistory("e3", 3, later),
		createTestHistory("e2", 2, testEpoch),
		createTestHistory("e1", 1, testEpoch),
	} {
		_, err := s.AppendHistory(ctx, h)
		require.NoError(t, err)
	}

	entries, err := s.ListHistory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "e1", entries[0].EventID)
	assert.Equal(t, "e2", entries[1].EventID)
	assert.Equal(t, "e3", entries[2].EventID)
}

func TestListHistory_RoundTripsFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := createTestHistory("e1", 7, testEpoch)
	want.Operation = ir.OpUpdate
	want.OldValue = 3
	want.NewValue = 5
	_, err := s.AppendHistory(ctx, want)
	require.NoError(t, err)

	entries, err := s.ListHistory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.NotZero(t, got.Seq)
	got.Seq = 0
	assert.Equal(t, want, got)
}

func TestListHistory_EmptyReturnsEmptySlice(t *testing.T) {
	s := createTestStore(t)

	entries, err := s.ListHistory(context.Background(), "c1")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestListHistory_ScopedToCount(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	other := createTestHistory("e2", 2, testEpoch)
	other.CountID = "c2"
	_, err := s.AppendHistory(ctx, createTestHistory("e1", 1, testEpoch))
	require.NoError(t, err)
	_, err = s.AppendHistory(ctx, other)
	require.NoError(t, err)

	entries, err := s.ListHistory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].EventID)
}
