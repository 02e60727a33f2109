package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/conteo/internal/engine"
	"github.com/roach88/conteo/internal/expectation"
	"github.com/roach88/conteo/internal/store"
	"github.com/roach88/conteo/internal/testutil"
)

// flushTimeout bounds the wait for the history loop after the last step.
const flushTimeout = 10 * time.Second

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and ID generator.
type Harness struct {
	engine  *engine.Engine
	countID string
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh SQLite database in a temporary
// directory, with the engine's history loop running.
//
// Execution flow:
// 1. Create fresh database and engine
// 2. Create the count from the inline set or the expectation file
// 3. Execute steps, checking each against its expect_error
// 4. Flush history and assemble the report
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "conteo-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	eng := engine.New(st,
		engine.WithClock(testutil.NewStepClock(time.Time{}, time.Second)),
		engine.WithIDGenerator(testutil.NewSequence("evt")),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.Run(ctx)
	}()
	defer func() {
		eng.Stop()
		<-done
	}()

	nc, err := countFor(scenario)
	if err != nil {
		return nil, err
	}

	count, err := eng.CreateCount(ctx, nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create count: %w", err)
	}

	h := &Harness{engine: eng, countID: count.ID}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, flushTimeout)
	defer flushCancel()
	if err := eng.Flush(flushCtx); err != nil {
		return nil, fmt.Errorf("failed to flush history: %w", err)
	}

	report, err := eng.GetReport(ctx, count.ID, engine.ReportOptions{IncludeHistory: true})
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}
	result.Report = &report

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

func countFor(scenario *Scenario) (engine.NewCount, error) {
	if scenario.Count != nil {
		return *scenario.Count, nil
	}
	nc, err := expectation.LoadFile(scenario.Expectation)
	if err != nil {
		return engine.NewCount{}, fmt.Errorf("failed to load expectation: %w", err)
	}
	return nc, nil
}

// executeStep runs one step and checks its outcome against ExpectError.
// Step failures are recorded in result; they never abort the scenario.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) {
	ev := TraceEvent{
		Action:   step.Action,
		UserID:   step.User,
		Code:     step.Code,
		Quantity: step.Quantity,
	}

	var err error
	switch step.Action {
	case ActionScan:
		ev.EventID, err = h.engine.SubmitScan(ctx, h.countID, step.User, step.Code, step.Quantity, time.Time{})
	case ActionSet:
		ev.EventID, err = h.engine.SetQuantity(ctx, h.countID, step.User, step.Code, step.Quantity, time.Time{})
	case ActionRemove:
		ev.EventID, err = h.engine.RemoveScan(ctx, h.countID, step.User, step.Code, time.Time{})
	case ActionFinalize:
		_, err = h.engine.Finalize(ctx, h.countID, step.Clarification)
	}

	if err != nil {
		ev.ErrorCode = string(engine.CodeOf(err))
		if ev.ErrorCode == "" {
			ev.ErrorCode = "UNKNOWN"
		}
	}
	result.AddTrace(ev)

	switch {
	case step.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", index, step.Action, err))
	case step.ExpectError != "" && ev.ErrorCode != step.ExpectError:
		actual := ev.ErrorCode
		if actual == "" {
			actual = "success"
		}
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got %s", index, step.Action, step.ExpectError, actual))
	}
}
