package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a step in a member's verification history.
type EventType string

const (
	EventMethodSelected EventType = "method_selected"
	EventBadgeUploaded  EventType = "badge_uploaded"
	EventEmailSeen      EventType = "email_seen"
	EventArtifactPurged EventType = "artifact_purged"
	EventReminderSent   EventType = "reminder_sent"
	EventMemberDeleted  EventType = "member_deleted"
)

// VerificationEvent is an append-only ledger entry. Events are never updated or
// removed; concurrent duplicate writes may produce duplicate-looking entries.
type VerificationEvent struct {
	ID        string         `json:"id"`
	MemberID  string         `json:"member_id"`
	EventType EventType      `json:"event_type"`
	EventMeta map[string]any `json:"event_meta,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func NewEvent(memberID string, eventType EventType, meta map[string]any, now time.Time) VerificationEvent {
	return VerificationEvent{
		ID:        uuid.NewString(),
		MemberID:  memberID,
		EventType: eventType,
		EventMeta: meta,
		CreatedAt: now,
	}
}
