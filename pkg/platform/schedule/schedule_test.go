package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEveryRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	done := make(chan error, 1)

	go func() {
		done <- Every(ctx, "test", 5*time.Millisecond, 0, func(context.Context) error {
			if runs.Add(1) == 3 {
				cancel()
			}
			return errors.New("keeps going")
		}, discard())
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestEverySurvivesPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var runs atomic.Int32

	go func() {
		_ = Every(ctx, "panicky", 2*time.Millisecond, 0, func(context.Context) error {
			runs.Add(1)
			panic("boom")
		}, discard())
	}()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)
}

func TestEveryAppliesPerRunTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	deadlines := make(chan bool, 1)

	go func() {
		_ = Every(ctx, "bounded", 2*time.Millisecond, time.Minute, func(runCtx context.Context) error {
			_, ok := runCtx.Deadline()
			select {
			case deadlines <- ok:
			default:
			}
			return nil
		}, discard())
	}()

	select {
	case ok := <-deadlines:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestEveryDisabled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	err := Every(ctx, "off", 0, 0, func(context.Context) error {
		called = true
		return nil
	}, discard())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}
