package tx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "memberverify/pkg/domain-errors"
)

func TestLockRunnerPropagatesErrors(t *testing.T) {
	r := NewLockRunner()
	want := errors.New("boom")
	err := r.RunInTx(context.Background(), func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

func TestLockRunnerAppliesDeadline(t *testing.T) {
	r := NewLockRunner()
	require.NoError(t, r.RunInTx(context.Background(), func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	}))
}

func TestLockRunnerRejectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewLockRunner().RunInTx(ctx, func(context.Context) error {
		t.Fatal("callback must not run")
		return nil
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestLockRunnerSerializes(t *testing.T) {
	r := NewLockRunner()
	var (
		wg      sync.WaitGroup
		active  int
		maxSeen int
		mu      sync.Mutex
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.RunInTx(context.Background(), func(context.Context) error {
				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestFromWithoutTx(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)
	assert.Equal(t, context.Background(), WithTx(context.Background(), nil))
}
