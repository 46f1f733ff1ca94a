// Package reminder emails applicants who picked a verification method but
// never completed it.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"memberverify/internal/mailer"
	"memberverify/internal/member/models"
	memberstore "memberverify/internal/member/store"
	"memberverify/internal/token"
	"memberverify/pkg/email"
	"memberverify/pkg/platform/schedule"
	"memberverify/pkg/requestcontext"
)

const (
	// Delay is how long after method selection a reminder becomes due.
	Delay = 24 * time.Hour

	defaultItemTimeout = 30 * time.Second
)

// TokenIssuer mints verification links.
type TokenIssuer interface {
	Issue(memberID, qlid string) (string, error)
}

// Result summarizes one reminder run.
type Result struct {
	Total     int       `json:"total"`
	Sent      int       `json:"sent"`
	Errors    int       `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}

type Reminder struct {
	members     memberstore.Directory
	tokens      TokenIssuer
	mail        mailer.Sender
	baseURL     string
	bcc         []string
	contact     string
	itemTimeout time.Duration
	logger      *slog.Logger
	tracer      trace.Tracer
}

type Option func(*Reminder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reminder) { r.logger = logger }
}

// WithBcc copies every reminder to the given archive addresses.
func WithBcc(addrs ...string) Option {
	return func(r *Reminder) { r.bcc = append(r.bcc, addrs...) }
}

// WithContact sets the address shown for questions.
func WithContact(addr string) Option {
	return func(r *Reminder) { r.contact = addr }
}

func New(members memberstore.Directory, tokens TokenIssuer, mail mailer.Sender, baseURL string, opts ...Option) (*Reminder, error) {
	if members == nil {
		return nil, fmt.Errorf("member directory is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if mail == nil {
		return nil, fmt.Errorf("mail sender is required")
	}
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, fmt.Errorf("valid base URL is required")
	}
	r := &Reminder{
		members:     members,
		tokens:      tokens,
		mail:        mail,
		baseURL:     baseURL,
		itemTimeout: defaultItemTimeout,
		logger:      slog.Default(),
		tracer:      otel.Tracer("memberverify/reminder"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run sends one reminder to every due member. Members are marked only after
// the mail was accepted, so a failed send is retried on the next run.
func (r *Reminder) Run(ctx context.Context) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "reminder.Run")
	defer span.End()

	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)
	res := Result{Timestamp: now}

	due, err := r.members.ListReminderCandidates(ctx, now.Add(-Delay))
	if err != nil {
		span.RecordError(err)
		r.logger.ErrorContext(ctx, "listing reminder candidates failed", "error", err)
		return res, fmt.Errorf("list reminder candidates: %w", err)
	}
	res.Total = len(due)

	for _, m := range due {
		sent, err := r.remind(ctx, m, now)
		switch {
		case err != nil:
			res.Errors++
			r.logger.ErrorContext(ctx, "verification reminder failed", "member_id", m.ID, "error", err)
		case sent:
			res.Sent++
		}
	}

	span.SetAttributes(attribute.Int("reminder.total", res.Total), attribute.Int("reminder.sent", res.Sent))
	r.logger.InfoContext(ctx, "verification reminders finished",
		"total", res.Total,
		"sent", res.Sent,
		"errors", res.Errors,
	)
	return res, nil
}

// Schedule sends reminders on every interval until ctx ends.
func (r *Reminder) Schedule(ctx context.Context, interval time.Duration) error {
	return schedule.Every(ctx, "verification-reminders", interval, 0, func(ctx context.Context) error {
		_, err := r.Run(requestcontext.WithTime(ctx, time.Now()))
		return err
	}, r.logger)
}

func (r *Reminder) remind(ctx context.Context, m *models.Member, now time.Time) (bool, error) {
	if m.Email == "" {
		return false, fmt.Errorf("member has no email address")
	}
	ctx, cancel := context.WithTimeout(ctx, r.itemTimeout)
	defer cancel()

	tok, err := r.tokens.Issue(m.ID, string(m.QLID))
	if err != nil {
		return false, fmt.Errorf("issue token: %w", err)
	}
	text, html, err := render(mailData{
		FirstName: email.GreetingName(m.FullName, m.Email),
		VerifyURL: token.VerifyLink(r.baseURL, tok),
		Contact:   r.contact,
	})
	if err != nil {
		return false, fmt.Errorf("render reminder: %w", err)
	}
	if err := r.mail.Send(ctx, mailer.Message{
		To:      m.Email,
		Bcc:     r.bcc,
		Subject: subject,
		Text:    text,
		HTML:    html,
	}); err != nil {
		return false, fmt.Errorf("send reminder: %w", err)
	}

	_, err = r.members.Update(ctx, m.ID, func(cur *models.Member) ([]models.VerificationEvent, error) {
		if cur.ReminderEmailSent {
			return nil, memberstore.ErrNoChange
		}
		cur.ReminderEmailSent = true
		return []models.VerificationEvent{
			models.NewEvent(cur.ID, models.EventReminderSent, map[string]any{"email": m.Email}, now),
		}, nil
	})
	if errors.Is(err, memberstore.ErrNoChange) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return true, nil
}
