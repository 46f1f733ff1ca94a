package models

import (
	"regexp"
	"strings"
	"time"

	dErrors "memberverify/pkg/domain-errors"
)

// Status is the membership lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusDeleted  Status = "deleted"
)

// VerificationStatus tracks progress through verification. The zero value is unset.
type VerificationStatus string

const (
	VerificationUnset          VerificationStatus = ""
	VerificationMethodSelected VerificationStatus = "method_selected"
	VerificationCodeVerified   VerificationStatus = "code_verified"
)

// Method is the proof mechanism chosen by an applicant. The zero value is none.
type Method string

const (
	MethodNone  Method = ""
	MethodEmail Method = "email"
	MethodBadge Method = "badge"
)

// ParseMethod accepts only the selectable methods.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodEmail, MethodBadge:
		return m, nil
	}
	return MethodNone, dErrors.New(dErrors.CodeValidation, "method must be 'email' or 'badge'")
}

func (m Method) String() string {
	if m == MethodNone {
		return "none"
	}
	return string(m)
}

// DeletionType classifies why a member was soft-deleted.
type DeletionType string

const (
	DeletionAdminAction   DeletionType = "admin_action"
	DeletionMemberRequest DeletionType = "member_request"
	DeletionDuplicate     DeletionType = "duplicate"
)

// ParseDeletionType defaults an empty value to admin_action.
func ParseDeletionType(s string) (DeletionType, error) {
	switch t := DeletionType(strings.TrimSpace(s)); t {
	case "":
		return DeletionAdminAction, nil
	case DeletionAdminAction, DeletionMemberRequest, DeletionDuplicate:
		return t, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "invalid deletion type")
}

var (
	qlidExact = regexp.MustCompile(`^[A-Z]{2}[0-9]{6}$`)
	qlidFind  = regexp.MustCompile(`(?i)\b[A-Z]{2}[0-9]{6}\b`)
)

// QLID is the corporate quicklook identifier: two letters and six digits.
type QLID string

// ParseQLID normalizes case and validates the format.
func ParseQLID(s string) (QLID, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if !qlidExact.MatchString(v) {
		return "", dErrors.New(dErrors.CodeValidation, "qlid must be two letters followed by six digits")
	}
	return QLID(v), nil
}

// FindQLID returns the first QLID-shaped token in text.
func FindQLID(text string) (QLID, bool) {
	match := qlidFind.FindString(text)
	if match == "" {
		return "", false
	}
	return QLID(strings.ToUpper(match)), true
}

func (q QLID) String() string { return string(q) }

// Member is an applicant record. It is never hard-deleted.
type Member struct {
	ID       string
	QLID     QLID
	FullName string
	Email    string

	Status             Status
	VerificationStatus VerificationStatus
	VerificationMethod Method
	IsVerified         bool
	VerifiedAt         *time.Time
	MethodSelectedAt   *time.Time

	// BadgeObjectPath and ArtifactsPurgeAt are always set and cleared together.
	BadgeObjectPath  *string
	ArtifactsPurgeAt *time.Time

	ReminderEmailSent bool

	DeletedAt      *time.Time
	DeletedBy      *string
	DeletionReason *string
	DeletionType   *DeletionType

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (m *Member) Clone() *Member {
	if m == nil {
		return nil
	}
	c := *m
	c.VerifiedAt = cloneTime(m.VerifiedAt)
	c.MethodSelectedAt = cloneTime(m.MethodSelectedAt)
	c.ArtifactsPurgeAt = cloneTime(m.ArtifactsPurgeAt)
	c.DeletedAt = cloneTime(m.DeletedAt)
	c.BadgeObjectPath = cloneString(m.BadgeObjectPath)
	c.DeletedBy = cloneString(m.DeletedBy)
	c.DeletionReason = cloneString(m.DeletionReason)
	if m.DeletionType != nil {
		t := *m.DeletionType
		c.DeletionType = &t
	}
	return &c
}

func (m *Member) IsDeleted() bool {
	return m.Status == StatusDeleted
}

// HasBadge reports whether a badge photo is currently retained.
func (m *Member) HasBadge() bool {
	return m.BadgeObjectPath != nil
}

// SelectMethod records the applicant's chosen method.
func (m *Member) SelectMethod(method Method, now time.Time) {
	m.VerificationMethod = method
	m.MethodSelectedAt = &now
	if m.VerificationStatus != VerificationCodeVerified {
		m.VerificationStatus = VerificationMethodSelected
	}
}

// SetBadge records a stored badge photo and its purge deadline.
func (m *Member) SetBadge(path string, purgeAt time.Time) {
	m.BadgeObjectPath = &path
	m.ArtifactsPurgeAt = &purgeAt
}

// ClearBadge drops both retention pointers.
func (m *Member) ClearBadge() {
	m.BadgeObjectPath = nil
	m.ArtifactsPurgeAt = nil
}

// PurgeDue reports whether the badge retention window elapsed before now.
func (m *Member) PurgeDue(now time.Time) bool {
	return m.BadgeObjectPath != nil && m.ArtifactsPurgeAt != nil && m.ArtifactsPurgeAt.Before(now)
}

// MarkVerified completes verification by method.
func (m *Member) MarkVerified(method Method, now time.Time) {
	m.VerificationStatus = VerificationCodeVerified
	m.VerificationMethod = method
	m.IsVerified = true
	m.VerifiedAt = &now
}

// EmailVerifiable reports whether an inbound corporate email may verify this member.
// A member who chose the badge path is never advanced by email.
func (m *Member) EmailVerifiable() bool {
	return m.Status == StatusPending &&
		!m.IsVerified &&
		(m.VerificationMethod == MethodNone || m.VerificationMethod == MethodEmail)
}

// SoftDelete marks the member deleted with actor and reason metadata.
func (m *Member) SoftDelete(by, reason string, kind DeletionType, now time.Time) {
	m.Status = StatusDeleted
	m.DeletedAt = &now
	m.DeletedBy = &by
	m.DeletionReason = &reason
	m.DeletionType = &kind
}

// Validate checks the record invariants.
func (m *Member) Validate() error {
	if m.ID == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "member id is required")
	}
	if (m.BadgeObjectPath == nil) != (m.ArtifactsPurgeAt == nil) {
		return dErrors.New(dErrors.CodeInvariantViolation, "badge path and purge deadline must be set together")
	}
	if m.IsVerified && (m.VerifiedAt == nil || m.VerificationStatus != VerificationCodeVerified) {
		return dErrors.New(dErrors.CodeInvariantViolation, "verified member requires verified_at and code_verified status")
	}
	if m.Status == StatusDeleted && m.DeletedAt == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "deleted member requires deleted_at")
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
