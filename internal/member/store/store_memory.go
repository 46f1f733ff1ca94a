package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"memberverify/internal/member/models"
	"memberverify/pkg/platform/sentinel"
	"memberverify/pkg/requestcontext"
)

// InMemoryDirectory is a mutex-guarded directory for tests and local runs.
type InMemoryDirectory struct {
	mu      sync.RWMutex
	members map[string]*models.Member
	byQLID  map[models.QLID]string
	events  map[string][]models.VerificationEvent
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		members: make(map[string]*models.Member),
		byQLID:  make(map[models.QLID]string),
		events:  make(map[string][]models.VerificationEvent),
	}
}

func (s *InMemoryDirectory) Create(_ context.Context, m *models.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.members[m.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byQLID[m.QLID]; exists && m.QLID != "" {
		return sentinel.ErrConflict
	}
	s.members[m.ID] = m.Clone()
	if m.QLID != "" {
		s.byQLID[m.QLID] = m.ID
	}
	return nil
}

func (s *InMemoryDirectory) FindByID(_ context.Context, id string) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *InMemoryDirectory) FindByQLID(_ context.Context, qlid models.QLID) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byQLID[qlid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.members[id].Clone(), nil
}

func (s *InMemoryDirectory) Update(ctx context.Context, id string, fn UpdateFunc) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.members[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	events, err := fn(working)
	if err != nil {
		if errors.Is(err, ErrNoChange) {
			return current.Clone(), err
		}
		return nil, err
	}
	if working.ID != id {
		return nil, sentinel.ErrInvalidState
	}
	if err := working.Validate(); err != nil {
		return nil, err
	}
	working.UpdatedAt = requestcontext.Now(ctx)

	s.members[id] = working
	s.events[id] = append(s.events[id], events...)
	return working.Clone(), nil
}

func (s *InMemoryDirectory) AppendEvent(_ context.Context, event models.VerificationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[event.MemberID]; !ok {
		return sentinel.ErrNotFound
	}
	s.events[event.MemberID] = append(s.events[event.MemberID], event)
	return nil
}

func (s *InMemoryDirectory) ListEvents(_ context.Context, memberID string) ([]models.VerificationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.VerificationEvent, len(s.events[memberID]))
	copy(out, s.events[memberID])
	return out, nil
}

func (s *InMemoryDirectory) ListPurgeCandidates(_ context.Context, now time.Time) ([]*models.Member, error) {
	return s.filter(func(m *models.Member) bool { return m.PurgeDue(now) }), nil
}

func (s *InMemoryDirectory) ListReminderCandidates(_ context.Context, cutoff time.Time) ([]*models.Member, error) {
	return s.filter(func(m *models.Member) bool { return isReminderCandidate(m, cutoff) }), nil
}

func (s *InMemoryDirectory) filter(keep func(*models.Member) bool) []*models.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Member
	for _, m := range s.members {
		if keep(m) {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
