package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"memberverify/internal/member/models"
	"memberverify/internal/purge"
	"memberverify/pkg/platform/audit"
	"memberverify/pkg/platform/httputil"
	"memberverify/pkg/requestcontext"
)

// AdminService is the admin surface served over HTTP.
type AdminService interface {
	DeleteMember(ctx context.Context, req DeleteRequest) (*models.Member, error)
	ListAuditLogs(ctx context.Context, limit int) ([]audit.Entry, error)
	BadgeURL(ctx context.Context, adminID, memberID string) (BadgeURLResponse, error)
	IssueToken(ctx context.Context, adminID, memberID string) (TokenResponse, error)
	TriggerPurge(ctx context.Context, adminID string) (purge.Result, error)
}

type Handler struct {
	svc    AdminService
	guard  func(http.Handler) http.Handler
	logger *slog.Logger
}

// NewHandler serves /admin routes behind guard, which must authenticate the
// caller and put the admin id into the request context.
func NewHandler(svc AdminService, guard func(http.Handler) http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, guard: guard, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard)
		}
		r.Post("/members/{id}/delete", h.handleDeleteMember)
		r.Get("/members/{id}/badge-url", h.handleBadgeURL)
		r.Post("/members/{id}/token", h.handleIssueToken)
		r.Get("/audit-logs", h.handleListAuditLogs)
		r.Post("/purge", h.handlePurge)
	})
}

type deleteMemberRequest struct {
	Reason string `json:"reason"`
	Type   string `json:"type"`
}

func (h *Handler) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[deleteMemberRequest](w, r, h.logger)
	if !ok {
		return
	}
	m, err := h.svc.DeleteMember(ctx, DeleteRequest{
		MemberID: chi.URLParam(r, "id"),
		AdminID:  requestcontext.AdminID(ctx),
		Reason:   req.Reason,
		Type:     req.Type,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toMemberResponse(m))
}

func (h *Handler) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := audit.MaxListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	entries, err := h.svc.ListAuditLogs(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, AuditLogsResponse{Entries: entries, Total: len(entries)})
}

func (h *Handler) handleBadgeURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp, err := h.svc.BadgeURL(ctx, requestcontext.AdminID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp, err := h.svc.IssueToken(ctx, requestcontext.AdminID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.svc.TriggerPurge(ctx, requestcontext.AdminID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
