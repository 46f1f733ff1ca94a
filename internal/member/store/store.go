// Package store holds the member directory: member records plus their
// append-only verification event ledger.
package store

import (
	"context"
	"errors"
	"time"

	"memberverify/internal/member/models"
)

// ErrNoChange is returned by an UpdateFunc to abort an update without writing.
// Update passes it through so callers can tell a no-op from a write.
var ErrNoChange = errors.New("no change")

// UpdateFunc mutates m in place and returns the events to append alongside
// the write. Returning an error aborts the update.
type UpdateFunc func(m *models.Member) ([]models.VerificationEvent, error)

// Directory is the persistent member record store.
type Directory interface {
	Create(ctx context.Context, m *models.Member) error
	FindByID(ctx context.Context, id string) (*models.Member, error)
	FindByQLID(ctx context.Context, qlid models.QLID) (*models.Member, error)

	// Update loads the member, applies fn and persists the result together
	// with returned events as one atomic step. The invariants are validated
	// before writing.
	Update(ctx context.Context, id string, fn UpdateFunc) (*models.Member, error)

	AppendEvent(ctx context.Context, event models.VerificationEvent) error
	ListEvents(ctx context.Context, memberID string) ([]models.VerificationEvent, error)

	// ListPurgeCandidates returns members whose badge retention deadline is before now.
	ListPurgeCandidates(ctx context.Context, now time.Time) ([]*models.Member, error)

	// ListReminderCandidates returns pending, unverified, unreminded members
	// that selected a method before cutoff.
	ListReminderCandidates(ctx context.Context, cutoff time.Time) ([]*models.Member, error)
}

func isReminderCandidate(m *models.Member, cutoff time.Time) bool {
	return m.Status == models.StatusPending &&
		!m.IsVerified &&
		!m.ReminderEmailSent &&
		m.VerificationMethod != models.MethodNone &&
		m.MethodSelectedAt != nil &&
		m.MethodSelectedAt.Before(cutoff)
}
