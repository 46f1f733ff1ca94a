// Package matcher verifies members who email the intake inbox from their
// corporate mailbox with their QLID in the message.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"memberverify/internal/member/models"
	memberstore "memberverify/internal/member/store"
	"memberverify/internal/verification/metrics"
	"memberverify/pkg/platform/schedule"
	"memberverify/pkg/platform/sentinel"
	"memberverify/pkg/requestcontext"
)

const (
	defaultMaxResults  = 50
	defaultItemTimeout = 30 * time.Second
)

type outcome string

const (
	outcomeVerified outcome = "verified"
	outcomeSkipped  outcome = "skipped"
	outcomeError    outcome = "error"
)

// Result summarizes one poll.
type Result struct {
	Fetched   int       `json:"fetched"`
	Verified  int       `json:"verified"`
	Skipped   int       `json:"skipped"`
	Errors    int       `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}

type Matcher struct {
	mailbox     Mailbox
	members     memberstore.Directory
	domain      string
	intake      string
	maxResults  int64
	itemTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Matcher)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) { m.logger = logger }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Matcher) { m.metrics = mt }
}

func WithMaxResults(n int64) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.maxResults = n
		}
	}
}

func WithItemTimeout(d time.Duration) Option {
	return func(m *Matcher) {
		if d > 0 {
			m.itemTimeout = d
		}
	}
}

func New(mailbox Mailbox, members memberstore.Directory, corporateDomain, intakeAddress string, opts ...Option) (*Matcher, error) {
	if mailbox == nil {
		return nil, fmt.Errorf("mailbox is required")
	}
	if members == nil {
		return nil, fmt.Errorf("member directory is required")
	}
	if corporateDomain == "" {
		return nil, fmt.Errorf("corporate mail domain is required")
	}
	m := &Matcher{
		mailbox:     mailbox,
		members:     members,
		domain:      corporateDomain,
		intake:      intakeAddress,
		maxResults:  defaultMaxResults,
		itemTimeout: defaultItemTimeout,
		logger:      slog.Default(),
		tracer:      otel.Tracer("memberverify/matcher"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Poll processes one batch of unread messages. Only a listing failure aborts
// the poll; per-message failures are counted and the message stays unread.
func (m *Matcher) Poll(ctx context.Context) (Result, error) {
	ctx, span := m.tracer.Start(ctx, "matcher.Poll")
	defer span.End()

	res := Result{Timestamp: requestcontext.Now(ctx)}
	ids, err := m.mailbox.ListUnread(ctx, Query{FromDomain: m.domain, To: m.intake, MaxResults: m.maxResults})
	if err != nil {
		span.RecordError(err)
		m.logger.ErrorContext(ctx, "listing unread verification mail failed", "error", err)
		return res, fmt.Errorf("list unread messages: %w", err)
	}
	res.Fetched = len(ids)

	for _, id := range ids {
		switch m.processMessage(ctx, id, res.Timestamp) {
		case outcomeVerified:
			res.Verified++
		case outcomeSkipped:
			res.Skipped++
		default:
			res.Errors++
		}
	}

	span.SetAttributes(
		attribute.Int("matcher.fetched", res.Fetched),
		attribute.Int("matcher.verified", res.Verified),
		attribute.Int("matcher.errors", res.Errors),
	)
	m.logger.InfoContext(ctx, "verification mail poll finished",
		"fetched", res.Fetched,
		"verified", res.Verified,
		"skipped", res.Skipped,
		"errors", res.Errors,
	)
	return res, nil
}

// Run polls on every interval until ctx ends.
func (m *Matcher) Run(ctx context.Context, interval time.Duration) error {
	return schedule.Every(ctx, "verification-mail-poll", interval, 0, func(ctx context.Context) error {
		_, err := m.Poll(ctx)
		return err
	}, m.logger)
}

func (m *Matcher) processMessage(ctx context.Context, id string, now time.Time) outcome {
	ctx, cancel := context.WithTimeout(ctx, m.itemTimeout)
	defer cancel()

	out := m.classify(ctx, id, now)
	if out != outcomeError {
		if err := m.mailbox.MarkRead(ctx, id); err != nil {
			m.logger.WarnContext(ctx, "failed to mark message read", "message_id", id, "error", err)
		}
	}
	if m.metrics != nil {
		m.metrics.IncEmailOutcome(string(out))
	}
	return out
}

func (m *Matcher) classify(ctx context.Context, id string, now time.Time) outcome {
	msg, err := m.mailbox.Fetch(ctx, id)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to fetch message", "message_id", id, "error", err)
		return outcomeError
	}

	sender, ok := ParseSender(msg.From, m.domain)
	if !ok {
		m.logger.InfoContext(ctx, "skipping message from unrecognized sender", "message_id", id, "from", msg.From)
		return outcomeSkipped
	}

	qlid, ok := models.FindQLID(msg.Subject)
	if !ok {
		qlid, ok = models.FindQLID(msg.Snippet)
	}
	if !ok {
		m.logger.InfoContext(ctx, "skipping message without qlid", "message_id", id, "from", sender.Address)
		return outcomeSkipped
	}

	member, err := m.members.FindByQLID(ctx, qlid)
	if errors.Is(err, sentinel.ErrNotFound) {
		m.logger.InfoContext(ctx, "no member for qlid", "message_id", id, "qlid", qlid)
		return outcomeSkipped
	}
	if err != nil {
		m.logger.ErrorContext(ctx, "member lookup failed", "message_id", id, "qlid", qlid, "error", err)
		return outcomeError
	}
	if !member.EmailVerifiable() {
		m.logger.InfoContext(ctx, "member not eligible for email verification",
			"message_id", id,
			"member_id", member.ID,
			"method", member.VerificationMethod,
		)
		return outcomeSkipped
	}

	nameMatch := sender.MatchesName(member.FullName)
	if !nameMatch {
		m.logger.WarnContext(ctx, "sender name differs from member name",
			"message_id", id,
			"member_id", member.ID,
			"from", sender.Address,
		)
	}

	_, err = m.members.Update(ctx, member.ID, func(cur *models.Member) ([]models.VerificationEvent, error) {
		if !cur.EmailVerifiable() {
			return nil, memberstore.ErrNoChange
		}
		cur.MarkVerified(models.MethodEmail, now)
		return []models.VerificationEvent{
			models.NewEvent(cur.ID, models.EventEmailSeen, map[string]any{
				"qlid":       string(qlid),
				"from":       sender.Address,
				"subject":    msg.Subject,
				"date":       msg.Date,
				"message_id": msg.ID,
				"first_name": sender.FirstName,
				"last_name":  sender.LastName,
				"name_match": nameMatch,
			}, now),
		}, nil
	})
	switch {
	case errors.Is(err, memberstore.ErrNoChange):
		return outcomeSkipped
	case err != nil:
		m.logger.ErrorContext(ctx, "failed to record email verification", "member_id", member.ID, "error", err)
		return outcomeError
	}

	m.logger.InfoContext(ctx, "member verified by corporate email", "member_id", member.ID, "qlid", qlid)
	return outcomeVerified
}
