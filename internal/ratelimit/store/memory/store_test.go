package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

const (
	testLimit  = 5
	testWindow = time.Minute
)

type StoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
	now   time.Time
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) TestHit() {
	s.Run("first request allowed", func() {
		res, err := s.store.Hit(s.ctx, "contact:first", testLimit, testWindow, s.now)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(testLimit, res.Limit)
		s.Equal(testLimit-1, res.Remaining)
		s.Equal(s.now.Add(testWindow), res.ResetAt)
	})

	s.Run("requests up to limit allowed then rejected", func() {
		for i := range testLimit {
			res, err := s.store.Hit(s.ctx, "contact:limit", testLimit, testWindow, s.now)
			s.Require().NoError(err)
			s.True(res.Allowed, "request %d", i+1)
		}
		res, err := s.store.Hit(s.ctx, "contact:limit", testLimit, testWindow, s.now.Add(time.Second))
		s.Require().NoError(err)
		s.False(res.Allowed)
		s.Equal(0, res.Remaining)
		s.Equal(59, res.RetryAfter)
	})

	s.Run("rejected requests do not extend the count", func() {
		for range testLimit + 3 {
			_, err := s.store.Hit(s.ctx, "contact:over", testLimit, testWindow, s.now)
			s.Require().NoError(err)
		}
		s.Equal(testLimit, s.store.windows["contact:over"].count)
	})

	s.Run("first hit after expiry resets the window", func() {
		for range testLimit {
			_, err := s.store.Hit(s.ctx, "contact:reset", testLimit, testWindow, s.now)
			s.Require().NoError(err)
		}
		later := s.now.Add(testWindow)
		res, err := s.store.Hit(s.ctx, "contact:reset", testLimit, testWindow, later)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(testLimit-1, res.Remaining)
		s.Equal(later.Add(testWindow), res.ResetAt)
	})

	s.Run("keys are independent", func() {
		for range testLimit {
			_, err := s.store.Hit(s.ctx, "contact:a", testLimit, testWindow, s.now)
			s.Require().NoError(err)
		}
		res, err := s.store.Hit(s.ctx, "contact:b", testLimit, testWindow, s.now)
		s.Require().NoError(err)
		s.True(res.Allowed)
	})
}

func (s *StoreSuite) TestReset() {
	for range testLimit {
		_, err := s.store.Hit(s.ctx, "verify:reset", testLimit, testWindow, s.now)
		s.Require().NoError(err)
	}
	s.Require().NoError(s.store.Reset(s.ctx, "verify:reset"))

	res, err := s.store.Hit(s.ctx, "verify:reset", testLimit, testWindow, s.now)
	s.Require().NoError(err)
	s.True(res.Allowed)
}

func (s *StoreSuite) TestSweep() {
	_, err := s.store.Hit(s.ctx, "verify:old", testLimit, testWindow, s.now)
	s.Require().NoError(err)
	_, err = s.store.Hit(s.ctx, "verify:new", testLimit, testWindow, s.now.Add(30*time.Second))
	s.Require().NoError(err)

	removed := s.store.Sweep(s.now.Add(testWindow))
	s.Equal(1, removed)
	s.Len(s.store.windows, 1)
}

func (s *StoreSuite) TestStartSweepPrunesExpiredWindows() {
	past := time.Now().Add(-2 * testWindow)
	for _, key := range []string{"verify:203.0.113.1", "verify:203.0.113.2", "contact:203.0.113.3"} {
		_, err := s.store.Hit(s.ctx, key, testLimit, testWindow, past)
		s.Require().NoError(err)
	}
	_, err := s.store.Hit(s.ctx, "verify:live", testLimit, testWindow, time.Now())
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- s.store.StartSweep(ctx, 10*time.Millisecond, nil) }()

	s.Eventually(func() bool { return s.store.Len() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	s.ErrorIs(<-done, context.Canceled)
	s.Contains(s.store.windows, "verify:live")
}

func (s *StoreSuite) TestConcurrentHitsNeverExceedLimit() {
	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.store.Hit(s.ctx, "contact:race", testLimit, testWindow, s.now)
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(testLimit, allowed)
}
