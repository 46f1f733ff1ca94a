package circuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(opts ...Option) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)}
	return New("broker", append([]Option{WithClock(clock.now)}, opts...)...), clock
}

func TestBreakerStartsClosed(t *testing.T) {
	b, _ := newTestBreaker()
	assert.Equal(t, "broker", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
	assert.True(t, b.Allow())
}

func TestBreakerOpensOnConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(3))

	for i := 0; i < 2; i++ {
		fallback, change := b.RecordFailure()
		require.False(t, fallback)
		require.False(t, change.Opened)
	}
	fallback, change := b.RecordFailure()
	assert.True(t, fallback)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())
	assert.False(t, b.Allow())
}

func TestBreakerSuccessClearsFailureStreak(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(2))

	b.RecordFailure()
	primary, change := b.RecordSuccess()
	assert.True(t, primary)
	assert.False(t, change.Closed)

	b.RecordFailure()
	assert.False(t, b.IsOpen())
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	b, clock := newTestBreaker(WithFailureThreshold(1), WithCooldown(time.Minute))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	clock.advance(59 * time.Second)
	assert.False(t, b.Allow())

	clock.advance(time.Second)
	assert.True(t, b.Allow())

	// a failed probe restarts the cooldown without another Opened transition
	fallback, change := b.RecordFailure()
	assert.True(t, fallback)
	assert.False(t, change.Opened)
	assert.False(t, b.Allow())
}

func TestBreakerClosesAfterSuccessfulProbes(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	primary, change := b.RecordSuccess()
	assert.False(t, primary)
	assert.False(t, change.Closed)
	assert.True(t, b.IsOpen())

	primary, change = b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreakerFailureDuringProbesResetsSuccesses(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	b.RecordSuccess()
	b.RecordFailure()
	primary, _ := b.RecordSuccess()
	assert.False(t, primary)
	assert.True(t, b.IsOpen())
}

func TestBreakerReset(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	assert.False(t, b.IsOpen())
	assert.True(t, b.Allow())
}

func TestBreakerInvalidOptionsKeepDefaults(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(0), WithSuccessThreshold(-1))
	assert.Equal(t, 5, b.failureThreshold)
	assert.Equal(t, 2, b.successThreshold)
}

func TestBreakerConcurrentUse(t *testing.T) {
	b := New("broker", WithFailureThreshold(1000))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(fail bool) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if fail {
					b.RecordFailure()
				} else {
					b.RecordSuccess()
				}
				b.Allow()
			}
		}(i%2 == 0)
	}
	wg.Wait()
}
