package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/roach88/conteo/internal/ir"
	"github.com/roach88/conteo/internal/lock"
	"github.com/roach88/conteo/internal/store"
)

// EventStore is the append-only scan event log.
type EventStore interface {
	AppendScan(ctx context.Context, ev ir.ScanEvent) (seq int64, inserted bool, err error)
	AppendCorrection(ctx context.Context, ev ir.ScanEvent, target int64) (ir.ScanEvent, bool, error)
	ListScans(ctx context.Context, countID string) ([]ir.ScanEvent, error)
	QuantityBefore(ctx context.Context, countID, userID, code string, seq int64) (int64, error)
	UnauditedEvents(ctx context.Context, countID string) ([]ir.ScanEvent, error)
}

// HistoryStore is the append-only audit trail.
type HistoryStore interface {
	AppendHistory(ctx context.Context, h ir.HistoryEntry) (bool, error)
	ListHistory(ctx context.Context, countID string) ([]ir.HistoryEntry, error)
}

// SnapshotStore holds count metadata, expectation sets and frozen results.
type SnapshotStore interface {
	PutCount(ctx context.Context, c ir.Count) error
	GetCount(ctx context.Context, id string) (ir.Count, error)
	ListCounts(ctx context.Context) ([]ir.Count, error)
	FinalizeCount(ctx context.Context, id, clarification string, at time.Time, resolve store.ResolveFunc) (ir.Count, bool, error)
}

// Store bundles the three stores. *store.Store implements it.
type Store interface {
	EventStore
	HistoryStore
	SnapshotStore
}

// Locker serializes finalization of a count.
// Implemented by lock.KeyedMutex and lock.RedisLocker.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Engine is the count reconciliation engine.
//
// Scan intake, corrections, reads and finalization are called directly from
// any goroutine; each write is one store transaction. History entries are
// written asynchronously by the single-writer Run loop.
//
// Thread-safety model:
//   - SubmitScan / SetQuantity / RemoveScan / Finalize / Get*: safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Flush(): safe from any goroutine; requires Run to be running
//
// INVARIANTS:
//   - History jobs are processed in the order they were enqueued
//   - A history failure never fails the write that produced it
type Engine struct {
	events    EventStore
	history   HistoryStore
	snapshots SnapshotStore

	observer Observer
	locker   Locker
	clock    Clock
	ids      IDGenerator
	queue    *jobQueue
	breaker  *gobreaker.CircuitBreaker

	// Expectation sets are immutable, so item lookups are cached per count.
	// Touched only by the Run goroutine.
	items map[string]map[string]ir.ExpectedItem
}

// EngineOption allows configuration of engine collaborators.
type EngineOption func(*Engine)

// WithObserver reports engine activity to o (default: no-op).
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithLocker sets the finalize lock (default: in-process lock.KeyedMutex).
func WithLocker(l Locker) EngineOption {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithClock sets the timestamp source (default: SystemClock).
func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the generator for count and correction IDs
// (default: UUIDv7Generator).
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithHistoryStore writes history somewhere other than the main store.
func WithHistoryStore(h HistoryStore) EngineOption {
	return func(e *Engine) {
		e.history = h
	}
}

// WithHistoryBreaker replaces the circuit breaker guarding history writes.
func WithHistoryBreaker(settings gobreaker.Settings) EngineOption {
	return func(e *Engine) {
		e.breaker = gobreaker.NewCircuitBreaker(settings)
	}
}

// DefaultHistoryBreaker returns the breaker settings used when none are
// given: open after 5 consecutive failures, half-open again after 30 seconds.
func DefaultHistoryBreaker() gobreaker.Settings {
	return HistoryBreakerSettings(5, 30*time.Second)
}

// HistoryBreakerSettings builds breaker settings that open after
// maxFailures consecutive failures and half-open after timeout.
func HistoryBreakerSettings(maxFailures uint32, timeout time.Duration) gobreaker.Settings {
	return gobreaker.Settings{
		Name:    "history",
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("history breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
}

// New creates an Engine over s.
//
// Options can be passed to configure the engine (e.g., WithClock).
func New(s Store, opts ...EngineOption) *Engine {
	e := &Engine{
		events:    s,
		history:   s,
		snapshots: s,
		observer:  NopObserver{},
		locker:    lock.NewKeyedMutex(),
		clock:     SystemClock{},
		ids:       UUIDv7Generator{},
		queue:     newJobQueue(),
		breaker:   gobreaker.NewCircuitBreaker(DefaultHistoryBreaker()),
		items:     make(map[string]map[string]ir.ExpectedItem),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// QueueLen returns the number of pending history jobs.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Run starts the single-writer history loop.
// Blocks until context is cancelled or Stop() is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: On history failure, the error is logged with full event
// context and processing continues. The event stays unaudited in the store
// and RecoverHistory can write its entry later.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")

	for {
		job, ok := e.queue.TryDequeue()
		if ok {
			e.processJob(ctx, job)
			continue
		}

		// No job ready - wait for signal or context cancellation
		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed,
			// so this case fires immediately once Stop was called.
			if e.queue.Len() == 0 && e.queue.Closed() {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the engine.
// Closes the job queue; Run drains what is already queued and returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Flush blocks until every history job enqueued before the call has been
// processed, or ctx is done.
func (e *Engine) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	if !e.queue.Enqueue(historyJob{barrier: barrier}) {
		return errors.New("engine stopped")
	}

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// processJob handles one queued job.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) processJob(ctx context.Context, job historyJob) {
	if job.barrier != nil {
		close(job.barrier)
		return
	}

	if err := e.recordHistory(ctx, job.event); err != nil {
		e.observer.HistoryFailed()
		logHistoryError(job.event, err)
	}
}

// enqueueHistory schedules the history entry of an accepted event.
func (e *Engine) enqueueHistory(ev ir.ScanEvent) {
	if !e.queue.Enqueue(historyJob{event: ev}) {
		e.observer.HistoryFailed()
		slog.Warn("history dropped: engine stopped",
			"event_id", ev.ID,
			"count_id", ev.CountID,
			"seq", ev.Seq,
		)
	}
}

// logHistoryError logs a failed history job with full event context
// for manual investigation.
func logHistoryError(ev ir.ScanEvent, err error) {
	slog.Error("history recording failed",
		"error", err,
		"event_id", ev.ID,
		"count_id", ev.CountID,
		"user_id", ev.UserID,
		"code", ev.Code,
		"quantity", ev.Quantity,
		"seq", ev.Seq,
	)
}
