// Package cron exposes the background jobs as bearer-guarded HTTP triggers so
// an external scheduler can drive them.
package cron

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"memberverify/internal/purge"
	"memberverify/internal/reminder"
	"memberverify/internal/verification/matcher"
	dErrors "memberverify/pkg/domain-errors"
	"memberverify/pkg/platform/httputil"
	adminmw "memberverify/pkg/platform/middleware/admin"
	"memberverify/pkg/requestcontext"
)

type Purger interface {
	Run(ctx context.Context) (purge.Result, error)
}

type MailChecker interface {
	Poll(ctx context.Context) (matcher.Result, error)
}

type Reminder interface {
	Run(ctx context.Context) (reminder.Result, error)
}

// Handler serves /cron/*. Any job may be nil when its backing service is not
// configured; its trigger then answers 503.
type Handler struct {
	secret    string
	purger    Purger
	checker   MailChecker
	reminders Reminder
	logger    *slog.Logger
}

type Option func(*Handler)

func WithPurger(p Purger) Option           { return func(h *Handler) { h.purger = p } }
func WithMailChecker(c MailChecker) Option { return func(h *Handler) { h.checker = c } }
func WithReminder(r Reminder) Option       { return func(h *Handler) { h.reminders = r } }

func NewHandler(secret string, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{secret: secret, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/cron", func(r chi.Router) {
		r.Use(adminmw.RequireBearer(h.secret, h.logger))
		for path, fn := range map[string]http.HandlerFunc{
			"/purge-artifacts":             h.handlePurge,
			"/check-verification-emails":   h.handleCheckEmails,
			"/send-verification-reminders": h.handleReminders,
		} {
			r.Get(path, fn)
			r.Post(path, fn)
		}
	})
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	if h.purger == nil {
		writeUnavailable(w, "artifact purge is not configured")
		return
	}
	res, err := h.purger.Run(r.Context())
	h.respond(w, r, "purge-artifacts", res, err)
}

func (h *Handler) handleCheckEmails(w http.ResponseWriter, r *http.Request) {
	if h.checker == nil {
		writeUnavailable(w, "mailbox is not configured")
		return
	}
	res, err := h.checker.Poll(r.Context())
	h.respond(w, r, "check-verification-emails", res, err)
}

func (h *Handler) handleReminders(w http.ResponseWriter, r *http.Request) {
	if h.reminders == nil {
		writeUnavailable(w, "reminder mail is not configured")
		return
	}
	res, err := h.reminders.Run(r.Context())
	h.respond(w, r, "send-verification-reminders", res, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, job string, res any, err error) {
	ctx := r.Context()
	if err != nil {
		h.logger.ErrorContext(ctx, "job trigger failed",
			"job", job,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "job failed"))
		return
	}
	h.logger.InfoContext(ctx, "job trigger completed", "job", job, "result", res)
	httputil.WriteJSON(w, http.StatusOK, res)
}

func writeUnavailable(w http.ResponseWriter, description string) {
	httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{
		Error:            "unavailable",
		ErrorDescription: description,
	})
}
