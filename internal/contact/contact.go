// Package contact forwards public contact-form submissions to the union inbox.
package contact

import (
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"

	"memberverify/internal/mailer"
	dErrors "memberverify/pkg/domain-errors"
	"memberverify/pkg/platform/httputil"
	"memberverify/pkg/requestcontext"
)

const (
	maxNameLen    = 200
	maxSubjectLen = 200
	maxMessageLen = 10000
)

// Submission is one contact-form message.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Normalize trims every field.
func (s *Submission) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.Email = strings.TrimSpace(s.Email)
	s.Subject = strings.TrimSpace(s.Subject)
	s.Message = strings.TrimSpace(s.Message)
}

func (s *Submission) Validate() error {
	if s.Name == "" || s.Email == "" || s.Subject == "" || s.Message == "" {
		return dErrors.New(dErrors.CodeValidation, "all fields are required")
	}
	if len(s.Name) > maxNameLen || len(s.Subject) > maxSubjectLen || len(s.Message) > maxMessageLen {
		return dErrors.New(dErrors.CodeValidation, "field exceeds maximum length")
	}
	addr, err := mail.ParseAddress(s.Email)
	if err != nil || addr.Address != s.Email || !strings.Contains(s.Email[strings.LastIndex(s.Email, "@")+1:], ".") {
		return dErrors.New(dErrors.CodeValidation, "invalid email address")
	}
	if strings.ContainsAny(s.Subject, "\r\n") {
		return dErrors.New(dErrors.CodeValidation, "subject must be a single line")
	}
	return nil
}

var forwardHTML = htmltemplate.Must(htmltemplate.New("contact.html").Parse(`<div style="font-family: Arial, sans-serif; padding: 20px;">
<h2>New contact form submission</h2>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Email:</strong> <a href="mailto:{{.Email}}">{{.Email}}</a></p>
<p><strong>Subject:</strong> {{.Subject}}</p>
<p style="white-space: pre-wrap;">{{.Message}}</p>
</div>`))

type Service struct {
	mail   mailer.Sender
	inbox  string
	logger *slog.Logger
}

func NewService(mail mailer.Sender, inbox string, logger *slog.Logger) (*Service, error) {
	if mail == nil {
		return nil, fmt.Errorf("mail sender is required")
	}
	if inbox == "" {
		return nil, fmt.Errorf("contact inbox is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{mail: mail, inbox: inbox, logger: logger}, nil
}

// Submit validates sub and forwards it with Reply-To set to the sender.
func (s *Service) Submit(ctx context.Context, sub Submission) error {
	sub.Normalize()
	if err := sub.Validate(); err != nil {
		return err
	}

	var html strings.Builder
	if err := forwardHTML.Execute(&html, sub); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to render message")
	}
	text := fmt.Sprintf("Name: %s\nEmail: %s\nSubject: %s\n\n%s\n", sub.Name, sub.Email, sub.Subject, sub.Message)

	if err := s.mail.Send(ctx, mailer.Message{
		To:      s.inbox,
		ReplyTo: sub.Email,
		Subject: "Contact Form: " + sub.Subject,
		Text:    text,
		HTML:    html.String(),
	}); err != nil {
		s.logger.ErrorContext(ctx, "contact form forward failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to send message")
	}
	s.logger.InfoContext(ctx, "contact form forwarded", "request_id", requestcontext.RequestID(ctx))
	return nil
}

// Handler serves POST /contact.
type Handler struct {
	svc    *Service
	logger *slog.Logger
	limit  func(http.Handler) http.Handler
}

func NewHandler(svc *Service, logger *slog.Logger, limit func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger, limit: limit}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.limit != nil {
			r.Use(h.limit)
		}
		r.Post("/contact", h.handleSubmit)
	})
}

type submitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sub, ok := httputil.DecodeJSON[Submission](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.svc.Submit(r.Context(), *sub); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, submitResponse{Success: true, Message: "Message sent successfully"})
}
