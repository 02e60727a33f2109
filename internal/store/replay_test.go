package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCountState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putTestCount(t, s, "c1")

	e1 := appendTestScan(t, s, "c1", "ana", "A", 1)
	e2 := appendTestScan(t, s, "c1", "ana", "B", 2)

	_, err := s.AppendHistory(ctx, createTestHistory(e1.ID, e1.Seq, testEpoch))
	require.NoError(t, err)

	state, err := s.GetCountState(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", state.CountID)
	assert.False(t, state.Finalized)
	assert.Equal(t, e2.Seq, state.LastSeq)
	assert.Equal(t, 2, state.EventCount)
	assert.Equal(t, 1, state.HistoryCount)
	assert.Equal(t, 1, state.Unaudited)
}

func TestGetCountState_EmptyAndFinalized(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putTestCount(t, s, "c1")

	_, _, err := s.FinalizeCount(ctx, "c1", "", testEpoch, noDiscrepancies)
	require.NoError(t, err)

	state, err := s.GetCountState(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, state.Finalized)
	assert.Zero(t, state.LastSeq)
	assert.Zero(t, state.EventCount)
	assert.Zero(t, state.Unaudited)
}

func TestGetCountState_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetCountState(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnauditedEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	putTestCount(t, s, "c1")

	e1 := appendTestScan(t, s, "c1", "ana", "A", 1)
	e2 := appendTestScan(t, s, "c1", "ana", "B", 2)
	e3 := appendTestScan(t, s, "c1", "ben", "A", 3)

	_, err := s.AppendHistory(ctx, createTestHistory(e2.ID, e2.Seq, testEpoch))
	require.NoError(t, err)

	events, err := s.UnauditedEvents(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, e1.ID, events[0].ID)
	assert.Equal(t, e3.ID, events[1].ID)
}
