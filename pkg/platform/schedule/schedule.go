// Package schedule runs periodic background tasks until their context ends.
package schedule

import (
	"context"
	"log/slog"
	"time"
)

// Task is one unit of periodic work. Errors are logged, never fatal to the loop.
type Task func(ctx context.Context) error

// Every runs task once per interval until ctx is cancelled and returns ctx.Err().
// A non-positive interval disables the loop; Every then blocks until ctx ends.
// Each run gets its own timeout when timeout > 0.
func Every(ctx context.Context, name string, interval, timeout time.Duration, task Task, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		logger.InfoContext(ctx, "scheduled task disabled", "task", name)
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.InfoContext(ctx, "scheduled task started", "task", name, "interval", interval)

	for {
		select {
		case <-ticker.C:
			runOnce(ctx, name, timeout, task, logger)
		case <-ctx.Done():
			logger.InfoContext(ctx, "scheduled task stopped", "task", name)
			return ctx.Err()
		}
	}
}

func runOnce(ctx context.Context, name string, timeout time.Duration, task Task, logger *slog.Logger) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "scheduled task panicked", "task", name, "panic", r)
		}
	}()
	if err := task(runCtx); err != nil {
		logger.ErrorContext(ctx, "scheduled task failed", "task", name, "error", err)
	}
}
