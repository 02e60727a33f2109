package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/conteo/internal/ir"
	"github.com/roach88/conteo/internal/store"
	"github.com/roach88/conteo/internal/testutil"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestEngine builds an engine with deterministic time and IDs.
// The Run loop is not started; see startEngine.
func newTestEngine(t *testing.T, opts ...EngineOption) (*Engine, *store.Store) {
	t.Helper()
	s := setupTestStore(t)
	base := []EngineOption{
		WithClock(testutil.NewStepClock(time.Time{}, time.Second)),
		WithIDGenerator(testutil.NewSequence("adj")),
	}
	return New(s, append(base, opts...)...), s
}

// startEngine runs the history loop until the test ends.
func startEngine(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func flush(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Flush(ctx))
}

// createABCount creates count "c1" expecting A:5 and B:3.
func createABCount(t *testing.T, e *Engine) ir.Count {
	t.Helper()
	c, err := e.CreateCount(context.Background(), NewCount{
		ID:   "c1",
		Kind: ir.CountKindRemito,
		Items: []ir.ExpectedItem{
			{Code: "A", Description: "ACME Widget", Expected: 5},
			{Code: "B", Description: "ACME Bolt", Expected: 3},
		},
	})
	require.NoError(t, err)
	return c
}

func submit(t *testing.T, e *Engine, countID, userID, code string, qty int64) string {
	t.Helper()
	id, err := e.SubmitScan(context.Background(), countID, userID, code, qty, time.Time{})
	require.NoError(t, err)
	return id
}
