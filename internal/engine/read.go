package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/conteo/internal/ir"
	"github.com/roach88/conteo/internal/reconcile"
)

// ReportOptions selects optional report sections.
type ReportOptions struct {
	IncludeHistory bool
}

// GetAggregate returns each user's net contribution to the count.
func (e *Engine) GetAggregate(ctx context.Context, countID string) (map[string]reconcile.UserAggregate, error) {
	_, events, err := e.load(ctx, countID)
	if err != nil {
		return nil, err
	}
	return reconcile.Aggregate(events), nil
}

// GetProgress returns the count's completion against its expectation set.
func (e *Engine) GetProgress(ctx context.Context, countID string) (reconcile.ProgressSummary, error) {
	c, events, err := e.load(ctx, countID)
	if err != nil {
		return reconcile.ProgressSummary{}, err
	}
	return reconcile.Progress(c.Items, reconcile.Totals(events)), nil
}

// GetReport assembles the count's report. The count, its events and, when
// requested, its history are loaded concurrently.
func (e *Engine) GetReport(ctx context.Context, countID string, opts ReportOptions) (reconcile.Report, error) {
	countID = ir.NormalizeID(countID)
	var (
		c       ir.Count
		events  []ir.ScanEvent
		history []ir.HistoryEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		c, err = e.GetCount(gctx, countID)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = e.events.ListScans(gctx, countID)
		if err != nil {
			return NewStorageError(countID, "list scans", err)
		}
		return nil
	})
	if opts.IncludeHistory {
		g.Go(func() error {
			var err error
			history, err = e.history.ListHistory(gctx, countID)
			if err != nil {
				return NewStorageError(countID, "list history", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return reconcile.Report{}, err
	}
	return reconcile.Assemble(c, events, history), nil
}

// load reads the count and its full event log.
func (e *Engine) load(ctx context.Context, countID string) (ir.Count, []ir.ScanEvent, error) {
	countID = ir.NormalizeID(countID)
	c, err := e.GetCount(ctx, countID)
	if err != nil {
		return ir.Count{}, nil, err
	}

	events, err := e.events.ListScans(ctx, countID)
	if err != nil {
		return ir.Count{}, nil, NewStorageError(countID, "list scans", err)
	}
	return c, events, nil
}
