package serverapp

import (
	"context"
	"log/slog"
	"time"

	"eventgraph/internal/dbexec"
	"eventgraph/internal/logging"
)

// cleanupStack runs release functions in reverse order of registration.
type cleanupStack struct {
	items []cleanupItem
}

type cleanupItem struct {
	name string
	fn   func(context.Context) error
}

func (s *cleanupStack) push(name string, fn func(context.Context) error) {
	s.items = append(s.items, cleanupItem{name: name, fn: fn})
}

// run releases every item even when earlier ones fail and reports how many failed.
func (s *cleanupStack) run(ctx context.Context, logger *logging.Logger) int {
	failed := 0
	for i := len(s.items) - 1; i >= 0; i-- {
		item := s.items[i]
		start := time.Now()
		err := item.fn(ctx)
		if err != nil {
			failed++
		}
		if logger == nil {
			continue
		}
		if err != nil {
			logger.Warn("cleanup error",
				slog.String("component", item.name),
				slog.String("error", err.Error()),
			)
			continue
		}
		logger.Info("released "+item.name, slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	}
	return failed
}

// drainPool reports what the session pool still holds once the HTTP server
// has stopped. Leases left at this point belong to requests that outlived
// the shutdown deadline.
func drainPool(logger *logging.Logger, pool *dbexec.Pool) func(context.Context) error {
	return func(context.Context) error {
		stats := pool.Stats()
		attrs := []any{
			slog.Int64("capacity", stats.Capacity),
			slog.Int64("leased", stats.Leased),
			slog.Int64("idle", stats.Idle),
		}
		if stats.Leased > 0 {
			logger.Warn("session pool still has leased sessions", attrs...)
			return nil
		}
		logger.Info("session pool drained", attrs...)
		return nil
	}
}

// Shutdown stops the HTTP server, waits for in-flight requests, reports the
// session pool, closes the database and flushes telemetry. Only the first
// call does anything.
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a.shutdownOnce.Do(func() {
		a.stateMu.Lock()
		cleanup := a.cleanup
		a.started = false
		a.stateMu.Unlock()

		start := time.Now()
		failed := cleanup.run(ctx, a.logger)
		if a.logger != nil {
			a.logger.Info("shutdown complete",
				slog.Int("steps", len(cleanup.items)),
				slog.Int("failed_steps", failed),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		}
	})

	return nil
}
