package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/conteo/internal/ir"
)

func TestCreateCount(t *testing.T) {
	e, _ := newTestEngine(t)

	c, err := e.CreateCount(context.Background(), NewCount{
		ID:        " r-1001 ",
		Kind:      ir.CountKindRemito,
		Reference: "  REM-0001-00001234 ",
		Items: []ir.ExpectedItem{
			{Code: " A ", Description: " ACME Widget ", Brand: "acme", Expected: 5},
			{Code: "B", Description: "Bolt", Expected: 0},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "r-1001", c.ID)
	assert.Equal(t, ir.CountKindRemito, c.Kind)
	assert.Equal(t, "REM-0001-00001234", c.Reference)
	assert.False(t, c.Finalized)
	require.Len(t, c.Items, 2)
	assert.Equal(t, "A", c.Items[0].Code)
	assert.Equal(t, "ACME Widget", c.Items[0].Description)
	assert.Equal(t, "acme", c.Items[0].Brand)

	stored, err := e.GetCount(context.Background(), "r-1001")
	require.NoError(t, err)
	assert.Equal(t, c.Items, stored.Items)
	assert.Nil(t, stored.Result)
}

func TestCreateCount_Defaults(t *testing.T) {
	e, _ := newTestEngine(t)

	c, err := e.CreateCount(context.Background(), NewCount{})
	require.NoError(t, err)

	assert.Equal(t, "adj-1", c.ID, "ID comes from the generator")
	assert.Equal(t, ir.CountKindGeneral, c.Kind)
	assert.NotNil(t, c.Items)
	assert.Empty(t, c.Items)
}

func TestCreateCount_Validation(t *testing.T) {
	tests := []struct {
		name  string
		count NewCount
		field string
	}{
		{
			name:  "unknown kind",
			count: NewCount{ID: "x", Kind: "weekly"},
			field: "kind",
		},
		{
			name:  "empty code",
			count: NewCount{ID: "x", Items: []ir.ExpectedItem{{Code: "  ", Expected: 1}}},
			field: "items[0].code",
		},
		{
			name: "duplicate after normalization",
			count: NewCount{ID: "x", Items: []ir.ExpectedItem{
				{Code: "A", Expected: 1},
				{Code: " A", Expected: 2},
			}},
			field: "items[1].code",
		},
		{
			name:  "negative expected",
			count: NewCount{ID: "x", Items: []ir.ExpectedItem{{Code: "A", Expected: -1}}},
			field: "items[0].expected",
		},
		{
			name:  "expected above limit",
			count: NewCount{ID: "x", Items: []ir.ExpectedItem{{Code: "A", Expected: ir.MaxQuantity + 1}}},
			field: "items[0].expected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t)

			_, err := e.CreateCount(context.Background(), tt.count)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var ee *Error
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tt.field, ee.Field)

			_, err = e.GetCount(context.Background(), "x")
			assert.True(t, IsNotFound(err), "rejected count must not be stored")
		})
	}
}

func TestCreateCount_Exists(t *testing.T) {
	e, _ := newTestEngine(t)
	createABCount(t, e)

	_, err := e.CreateCount(context.Background(), NewCount{ID: "c1"})
	assert.True(t, IsExists(err))
}

func TestFinalize_Classification(t *testing.T) {
	e, _ := newTestEngine(t)
	createABCount(t, e)
	ctx := context.Background()

	submit(t, e, "c1", "ana", "A", 3)
	submit(t, e, "c1", "ben", "A", 2)
	submit(t, e, "c1", "ana", "C", 2)

	result, err := e.Finalize(ctx, "c1", "  caja 3 dañada ")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "c1", result.CountID)
	assert.Equal(t, "caja 3 dañada", result.Clarification)
	assert.False(t, result.FinalizedAt.IsZero())

	assert.Equal(t, []ir.Discrepancy{
		{Kind: ir.KindMissing, Code: "B", Description: "ACME Bolt", Expected: 3, Scanned: 0, Diff: -3},
		{Kind: ir.KindExtra, Code: "C", Description: "", Expected: 0, Scanned: 2, Diff: 2},
	}, result.Records)

	c, err := e.GetCount(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, c.Finalized)
	require.NotNil(t, c.Result)
	assert.Equal(t, result.Records, c.Result.Records)
}

func TestFinalize_ExactMatchHasNoRecords(t *testing.T) {
	e, _ := newTestEngine(t)
	createABCount(t, e)

	submit(t, e, "c1", "ana", "A", 5)
	submit(t, e, "c1", "ana", "B", 3)

	result, err := e.Finalize(context.Background(), "c1", "")
	require.NoError(t, err)
	assert.NotNil(t, result.Records)
	assert.Empty(t, result.Records)
}

func TestFinalize_SecondCallReturnsFrozenResult(t *testing.T) {
	obs := newCountingObserver()
	e, s := newTestEngine(t, WithObserver(obs))
	startEngine(t, e)
	createABCount(t, e)
	ctx := context.Background()

	submit(t, e, "c1", "ana", "A", 7)

	first, err := e.Finalize(ctx, "c1", "first")
	require.NoError(t, err)

	second, err := e.Finalize(ctx, "c1", "second")
	require.Error(t, err)
	assert.True(t, IsAlreadyFinalized(err))
	require.NotNil(t, second)
	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, "first", second.Clarification, "clarification is frozen with the result")
	assert.True(t, first.FinalizedAt.Equal(second.FinalizedAt))

	flush(t, e)
	history, err := s.ListHistory(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, history, 1, "finalization writes no history")

	obs.mu.Lock()
	assert.Equal(t, 1, obs.finalized)
	obs.mu.Unlock()
}

func TestFinalize_Concurrent(t *testing.T) {
	e, _ := newTestEngine(t)
	createABCount(t, e)
	submit(t, e, "c1", "ana", "A", 1)

	const callers = 10
	results := make([]*ir.DiscrepancyResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Finalize(context.Background(), "c1", "")
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < callers; i++ {
		if errs[i] == nil {
			winners++
		} else {
			assert.True(t, IsAlreadyFinalized(errs[i]), "unexpected error: %v", errs[i])
		}
		require.NotNil(t, results[i])
		assert.Equal(t, results[0].Records, results[i].Records)
	}
	assert.Equal(t, 1, winners, "exactly one caller freezes the result")
}

func TestFinalize_UnknownCount(t *testing.T) {
	e, _ := newTestEngine(t)

	result, err := e.Finalize(context.Background(), "missing", "")
	assert.Nil(t, result)
	assert.True(t, IsNotFound(err))
}

func TestFinalize_LockFailure(t *testing.T) {
	e, _ := newTestEngine(t, WithLocker(lockerFunc(func(context.Context, string) (func(), error) {
		return nil, context.DeadlineExceeded
	})))
	createABCount(t, e)

	_, err := e.Finalize(context.Background(), "c1", "")
	assert.True(t, IsStorageUnavailable(err))

	c, err := e.GetCount(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, c.Finalized)
}

func TestFinalize_UsesLockKey(t *testing.T) {
	var keys []string
	e, _ := newTestEngine(t, WithLocker(lockerFunc(func(_ context.Context, key string) (func(), error) {
		keys = append(keys, key)
		return func() {}, nil
	})))
	createABCount(t, e)

	_, err := e.Finalize(context.Background(), "c1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"finalize:c1"}, keys)
}

func TestFinalize_CorrectionsAfterFinalizeRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	createABCount(t, e)
	ctx := context.Background()

	_, err := e.Finalize(ctx, "c1", "")
	require.NoError(t, err)

	_, err = e.SetQuantity(ctx, "c1", "ana", "A", 4, time.Time{})
	assert.True(t, IsAlreadyFinalized(err))
}

type lockerFunc func(ctx context.Context, key string) (func(), error)

func (f lockerFunc) Acquire(ctx context.Context, key string) (func(), error) {
	return f(ctx, key)
}
