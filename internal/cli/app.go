package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/conteo/internal/engine"
	"github.com/roach88/conteo/internal/lock"
	"github.com/roach88/conteo/internal/metrics"
	"github.com/roach88/conteo/internal/store"
)

// shutdownTimeout bounds how long Close waits for pending history entries.
const shutdownTimeout = 10 * time.Second

// app is one command's engine, opened over the configured database.
type app struct {
	store   *store.Store
	engine  *engine.Engine
	metrics *metrics.Metrics
	redis   *redis.Client

	metricsFile string

	cancel context.CancelFunc
	done   chan error
}

// openApp opens the database and starts the engine's history loop.
// Unless create is set, the database file must already exist.
func openApp(ctx context.Context, opts *RootOptions, create bool) (*app, error) {
	cfg := opts.Config

	if !create {
		if _, err := os.Stat(cfg.DB); errors.Is(err, os.ErrNotExist) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", cfg.DB))
		}
	}

	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	a := &app{
		store:       st,
		metrics:     metrics.New(),
		metricsFile: cfg.MetricsFile,
		done:        make(chan error, 1),
	}

	engineOpts := []engine.EngineOption{
		engine.WithObserver(a.metrics),
		engine.WithHistoryBreaker(engine.HistoryBreakerSettings(cfg.History.MaxFailures, cfg.History.BreakerTimeout)),
	}

	if cfg.RedisAddr != "" {
		rdb, err := lock.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "failed to connect to redis", err)
		}
		a.redis = rdb
		engineOpts = append(engineOpts, engine.WithLocker(lock.NewRedisLocker(rdb, lock.WithTTL(cfg.LockTTL))))
		slog.Debug("using redis finalize lock", "addr", cfg.RedisAddr, "ttl", cfg.LockTTL)
	}

	a.engine = engine.New(st, engineOpts...)

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go func() {
		a.done <- a.engine.Run(runCtx)
	}()

	return a, nil
}

// Close writes pending history entries, stops the engine, exports the
// counters when a metrics file is configured and closes the database.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.engine.Flush(ctx); err != nil {
		slog.Warn("history flush incomplete", "error", err)
	}
	a.engine.Stop()

	select {
	case <-a.done:
	case <-ctx.Done():
		a.cancel()
		<-a.done
	}
	a.cancel()

	if a.metricsFile != "" {
		if err := a.metrics.WriteTextfile(a.metricsFile); err != nil {
			slog.Warn("metrics export failed", "path", a.metricsFile, "error", err)
		}
	}

	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

// withApp opens the app, runs fn and closes the app. A close failure is
// reported only when fn succeeded.
func withApp(ctx context.Context, opts *RootOptions, create bool, fn func(a *app) error) (err error) {
	a, err := openApp(ctx, opts, create)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = WrapExitError(ExitFailure, "failed to close database", cerr)
		}
	}()
	return fn(a)
}
