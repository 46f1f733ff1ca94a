// Package admin implements privileged member operations. Every mutation and
// every read of retained evidence leaves an audit entry.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"memberverify/internal/artifact"
	"memberverify/internal/member/models"
	memberstore "memberverify/internal/member/store"
	"memberverify/internal/purge"
	"memberverify/internal/token"
	dErrors "memberverify/pkg/domain-errors"
	"memberverify/pkg/platform/audit"
	"memberverify/pkg/platform/sentinel"
	txplatform "memberverify/pkg/platform/tx"
	"memberverify/pkg/requestcontext"
)

// BadgeURLTTL bounds how long a signed badge URL stays valid.
const BadgeURLTTL = 5 * time.Minute

const purgeTarget = "badge-photos"

type TokenIssuer interface {
	Issue(memberID, qlid string) (string, error)
}

type PurgeRunner interface {
	Run(ctx context.Context) (purge.Result, error)
}

// DeleteRequest asks for a member to be soft-deleted.
type DeleteRequest struct {
	MemberID string
	AdminID  string
	Reason   string
	Type     string
}

type Service struct {
	members   memberstore.Directory
	audit     audit.Store
	artifacts artifact.Store
	tokens    TokenIssuer
	purger    PurgeRunner
	tx        txplatform.Runner
	baseURL   string
	logger    *slog.Logger
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithTxRunner makes soft delete and its audit entry commit together.
func WithTxRunner(r txplatform.Runner) Option {
	return func(s *Service) { s.tx = r }
}

func NewService(
	members memberstore.Directory,
	auditStore audit.Store,
	artifacts artifact.Store,
	tokens TokenIssuer,
	purger PurgeRunner,
	baseURL string,
	opts ...Option,
) (*Service, error) {
	switch {
	case members == nil:
		return nil, fmt.Errorf("member directory is required")
	case auditStore == nil:
		return nil, fmt.Errorf("audit store is required")
	case artifacts == nil:
		return nil, fmt.Errorf("artifact store is required")
	case tokens == nil:
		return nil, fmt.Errorf("token issuer is required")
	case purger == nil:
		return nil, fmt.Errorf("purge runner is required")
	}
	s := &Service{
		members:   members,
		audit:     auditStore,
		artifacts: artifacts,
		tokens:    tokens,
		purger:    purger,
		tx:        txplatform.NewLockRunner(),
		baseURL:   baseURL,
		logger:    slog.Default(),
		tracer:    otel.Tracer("memberverify/admin"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DeleteMember soft-deletes a member and records who did it and why.
// Deleting an already deleted member succeeds without writing anything.
func (s *Service) DeleteMember(ctx context.Context, req DeleteRequest) (*models.Member, error) {
	ctx, span := s.tracer.Start(ctx, "admin.DeleteMember")
	defer span.End()

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "deletion reason is required")
	}
	if req.AdminID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "admin id is required")
	}
	kind, err := models.ParseDeletionType(req.Type)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var result *models.Member
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		// The audit entry is written before the member row so a failed append leaves
		// the member untouched, whether or not the runner can roll back.
		m, err := s.members.Update(ctx, req.MemberID, func(cur *models.Member) ([]models.VerificationEvent, error) {
			if cur.IsDeleted() {
				return nil, memberstore.ErrNoChange
			}
			cur.SoftDelete(req.AdminID, reason, kind, now)
			entry := audit.NewEntry(req.AdminID, audit.ActionSoftDeleteMember, audit.TargetMember, cur.ID, map[string]any{
				"member_name":     cur.FullName,
				"member_email":    cur.Email,
				"quicklook_id":    string(cur.QLID),
				"deletion_reason": reason,
				"deletion_type":   string(kind),
			}, now)
			if err := s.audit.Append(ctx, entry); err != nil {
				return nil, err
			}
			return []models.VerificationEvent{
				models.NewEvent(cur.ID, models.EventMemberDeleted, map[string]any{
					"deleted_by":      req.AdminID,
					"deletion_reason": reason,
					"deletion_type":   string(kind),
				}, now),
			}, nil
		})
		if err != nil && !errors.Is(err, memberstore.ErrNoChange) {
			return err
		}
		result = m
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, s.translate(ctx, err, "failed to delete member")
	}

	s.logger.InfoContext(ctx, "member soft-deleted",
		"member_id", result.ID,
		"admin_id", req.AdminID,
		"deletion_type", kind,
	)
	return result, nil
}

// ListAuditLogs returns the most recent entries, newest first.
func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]audit.Entry, error) {
	entries, err := s.audit.ListRecent(ctx, audit.ClampLimit(limit))
	if err != nil {
		return nil, s.translate(ctx, err, "failed to list audit logs")
	}
	return entries, nil
}

// BadgeURL signs a short-lived read URL for the member's retained badge photo.
func (s *Service) BadgeURL(ctx context.Context, adminID, memberID string) (BadgeURLResponse, error) {
	ctx, span := s.tracer.Start(ctx, "admin.BadgeURL")
	defer span.End()

	m, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return BadgeURLResponse{}, s.translate(ctx, err, "failed to load member")
	}
	if !m.HasBadge() {
		return BadgeURLResponse{}, dErrors.New(dErrors.CodeNotFound, "member has no badge on file")
	}

	now := requestcontext.Now(ctx)
	signed, err := s.artifacts.SignedURL(ctx, *m.BadgeObjectPath, BadgeURLTTL)
	if errors.Is(err, artifact.ErrNotFound) {
		return BadgeURLResponse{}, dErrors.New(dErrors.CodeNotFound, "badge photo no longer stored")
	}
	if err != nil {
		return BadgeURLResponse{}, s.translate(ctx, err, "failed to sign badge url")
	}

	if err := s.audit.Append(ctx, audit.NewEntry(adminID, audit.ActionViewBadge, audit.TargetMember, m.ID, map[string]any{
		"path": *m.BadgeObjectPath,
	}, now)); err != nil {
		return BadgeURLResponse{}, s.translate(ctx, err, "failed to record badge access")
	}
	return BadgeURLResponse{URL: signed, ExpiresAt: now.Add(BadgeURLTTL)}, nil
}

// IssueToken mints a new verification link for a member who lost theirs.
func (s *Service) IssueToken(ctx context.Context, adminID, memberID string) (TokenResponse, error) {
	m, err := s.members.FindByID(ctx, memberID)
	if err == nil && m.IsDeleted() {
		err = sentinel.ErrNotFound
	}
	if err != nil {
		return TokenResponse{}, s.translate(ctx, err, "failed to load member")
	}

	tok, err := s.tokens.Issue(m.ID, string(m.QLID))
	if err != nil {
		return TokenResponse{}, s.translate(ctx, err, "failed to issue token")
	}
	now := requestcontext.Now(ctx)
	if err := s.audit.Append(ctx, audit.NewEntry(adminID, audit.ActionIssueToken, audit.TargetMember, m.ID, nil, now)); err != nil {
		return TokenResponse{}, s.translate(ctx, err, "failed to record token issue")
	}
	return TokenResponse{
		Token:     tok,
		VerifyURL: token.VerifyLink(s.baseURL, tok),
		ExpiresAt: now.Add(token.Lifetime),
	}, nil
}

// TriggerPurge runs the retention purge on demand.
func (s *Service) TriggerPurge(ctx context.Context, adminID string) (purge.Result, error) {
	res, err := s.purger.Run(ctx)
	if err != nil {
		return res, dErrors.Wrap(err, dErrors.CodeInternal, "purge failed")
	}
	if err := s.audit.Append(ctx, audit.NewEntry(adminID, audit.ActionTriggerPurge, audit.TargetStorage, purgeTarget, map[string]any{
		"processed": res.Processed,
		"deleted":   res.Deleted,
		"errors":    res.Errors,
	}, requestcontext.Now(ctx))); err != nil {
		s.logger.ErrorContext(ctx, "failed to record purge trigger", "admin_id", adminID, "error", err)
	}
	return res, nil
}

func (s *Service) translate(ctx context.Context, err error, action string) error {
	var dErr *dErrors.Error
	switch {
	case errors.As(err, &dErr):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "member not found")
	default:
		s.logger.ErrorContext(ctx, action, "error", err, "request_id", requestcontext.RequestID(ctx))
		return dErrors.Wrap(err, dErrors.CodeInternal, action)
	}
}
