package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action names a privileged admin operation.
type Action string

const (
	ActionSoftDeleteMember Action = "soft_delete_member"
	ActionViewBadge        Action = "view_badge"
	ActionIssueToken       Action = "issue_verification_token"
	ActionTriggerPurge     Action = "trigger_artifact_purge"
)

// TargetType names the kind of record an admin action touched.
type TargetType string

const (
	TargetMember  TargetType = "member"
	TargetStorage TargetType = "storage"
)

// MaxListLimit caps how many entries one listing returns.
const MaxListLimit = 200

// Entry is an append-only record of a privileged admin action.
type Entry struct {
	ID         string         `json:"id"`
	AdminID    string         `json:"admin_id"`
	Action     Action         `json:"action"`
	TargetType TargetType     `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewEntry fills in the identifier and timestamp.
func NewEntry(adminID string, action Action, targetType TargetType, targetID string, details map[string]any, now time.Time) Entry {
	return Entry{
		ID:         uuid.NewString(),
		AdminID:    adminID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
		CreatedAt:  now,
	}
}

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	// ListRecent returns up to limit entries, newest first.
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}

// ClampLimit bounds a requested listing size to (0, MaxListLimit].
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
