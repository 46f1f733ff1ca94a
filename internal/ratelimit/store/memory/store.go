package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"memberverify/internal/ratelimit/models"
	"memberverify/pkg/platform/schedule"
)

// Store is a process-local fixed-window counter map. State is lost on restart
// and is not shared between instances; use the redis store for that.
type Store struct {
	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	count   int
	resetAt time.Time
}

func New() *Store {
	return &Store{windows: make(map[string]*window)}
}

func (s *Store) Hit(_ context.Context, key string, limit int, win time.Duration, now time.Time) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.windows[key]
	if w == nil || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(win)}
		s.windows[key] = w
	}

	if w.count >= limit {
		return models.NewResult(w.count, limit, false, w.resetAt, now), nil
	}
	w.count++
	return models.NewResult(w.count, limit, true, w.resetAt, now), nil
}

func (s *Store) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// Sweep drops windows that expired before now and returns how many were removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// Len reports how many windows are currently tracked.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// StartSweep prunes expired windows every interval until ctx is cancelled.
func (s *Store) StartSweep(ctx context.Context, interval time.Duration, logger *slog.Logger) error {
	return schedule.Every(ctx, "ratelimit-sweep", interval, 0, func(ctx context.Context) error {
		if removed := s.Sweep(time.Now()); removed > 0 && logger != nil {
			logger.DebugContext(ctx, "swept rate limit windows", "removed", removed)
		}
		return nil
	}, logger)
}
