package admin

import (
	"time"

	"memberverify/internal/member/models"
	"memberverify/pkg/platform/audit"
)

// MemberResponse is the admin view of a member after a mutation.
type MemberResponse struct {
	ID             string     `json:"id"`
	QLID           string     `json:"quicklook_id"`
	FullName       string     `json:"full_name"`
	Email          string     `json:"email"`
	Status         string     `json:"status"`
	IsVerified     bool       `json:"is_verified"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	DeletedBy      *string    `json:"deleted_by,omitempty"`
	DeletionReason *string    `json:"deletion_reason,omitempty"`
	DeletionType   *string    `json:"deletion_type,omitempty"`
}

func toMemberResponse(m *models.Member) MemberResponse {
	resp := MemberResponse{
		ID:             m.ID,
		QLID:           string(m.QLID),
		FullName:       m.FullName,
		Email:          m.Email,
		Status:         string(m.Status),
		IsVerified:     m.IsVerified,
		DeletedAt:      m.DeletedAt,
		DeletedBy:      m.DeletedBy,
		DeletionReason: m.DeletionReason,
	}
	if m.DeletionType != nil {
		t := string(*m.DeletionType)
		resp.DeletionType = &t
	}
	return resp
}

// AuditLogsResponse wraps a listing of audit entries.
type AuditLogsResponse struct {
	Entries []audit.Entry `json:"entries"`
	Total   int           `json:"total"`
}

// BadgeURLResponse carries a short-lived signed read URL.
type BadgeURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenResponse carries a freshly issued verification link.
type TokenResponse struct {
	Token     string    `json:"token"`
	VerifyURL string    `json:"verify_url"`
	ExpiresAt time.Time `json:"expires_at"`
}
