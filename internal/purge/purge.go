// Package purge deletes badge photos whose retention window has elapsed and
// clears the member's retention pointers.
//
// The same Run is invoked by the in-process scheduler, the bearer-guarded HTTP
// trigger, the admin on-demand endpoint and the one-shot purge command.
// Concurrent runs are safe: storage deletes tolerate missing objects and the
// pointer clear only applies while the member still references the deleted path.
package purge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"memberverify/internal/artifact"
	"memberverify/internal/member/models"
	memberstore "memberverify/internal/member/store"
	"memberverify/pkg/platform/schedule"
	"memberverify/pkg/requestcontext"
)

const defaultItemTimeout = 30 * time.Second

// Result summarizes one purge run.
type Result struct {
	Processed int       `json:"processed"`
	Deleted   int       `json:"deleted"`
	Errors    int       `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}

type Purger struct {
	members     memberstore.Directory
	artifacts   artifact.Store
	itemTimeout time.Duration
	logger      *slog.Logger
	metrics     *Metrics
	tracer      trace.Tracer
}

type Option func(*Purger)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Purger) { p.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(p *Purger) { p.metrics = m }
}

func WithItemTimeout(d time.Duration) Option {
	return func(p *Purger) {
		if d > 0 {
			p.itemTimeout = d
		}
	}
}

func New(members memberstore.Directory, artifacts artifact.Store, opts ...Option) (*Purger, error) {
	if members == nil {
		return nil, fmt.Errorf("member directory is required")
	}
	if artifacts == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	p := &Purger{
		members:     members,
		artifacts:   artifacts,
		itemTimeout: defaultItemTimeout,
		logger:      slog.Default(),
		tracer:      otel.Tracer("memberverify/purge"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run purges every member whose purge deadline is before now. Only a failure
// to list candidates aborts the run.
func (p *Purger) Run(ctx context.Context) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "purge.Run")
	defer span.End()

	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)
	res := Result{Timestamp: now}

	candidates, err := p.members.ListPurgeCandidates(ctx, now)
	if err != nil {
		span.RecordError(err)
		p.logger.ErrorContext(ctx, "listing purge candidates failed", "error", err)
		err = fmt.Errorf("list purge candidates: %w", err)
		p.observe(res, err)
		return res, err
	}
	res.Processed = len(candidates)

	for _, m := range candidates {
		purged, err := p.purgeMember(ctx, m, now)
		switch {
		case err != nil:
			res.Errors++
			p.logger.ErrorContext(ctx, "badge purge failed", "member_id", m.ID, "error", err)
		case purged:
			res.Deleted++
		}
	}

	span.SetAttributes(
		attribute.Int("purge.processed", res.Processed),
		attribute.Int("purge.deleted", res.Deleted),
		attribute.Int("purge.errors", res.Errors),
	)
	p.logger.InfoContext(ctx, "artifact purge finished",
		"processed", res.Processed,
		"deleted", res.Deleted,
		"errors", res.Errors,
	)
	p.observe(res, nil)
	return res, nil
}

// Schedule runs the purge on every interval until ctx ends.
func (p *Purger) Schedule(ctx context.Context, interval time.Duration) error {
	return schedule.Every(ctx, "artifact-purge", interval, 0, func(ctx context.Context) error {
		_, err := p.Run(requestcontext.WithTime(ctx, time.Now()))
		return err
	}, p.logger)
}

func (p *Purger) purgeMember(ctx context.Context, m *models.Member, now time.Time) (bool, error) {
	if m.BadgeObjectPath == nil {
		return false, nil
	}
	path := *m.BadgeObjectPath

	ctx, cancel := context.WithTimeout(ctx, p.itemTimeout)
	defer cancel()

	if err := p.artifacts.Delete(ctx, path); err != nil {
		return false, fmt.Errorf("delete %s: %w", path, err)
	}

	_, err := p.members.Update(ctx, m.ID, func(cur *models.Member) ([]models.VerificationEvent, error) {
		if cur.BadgeObjectPath == nil || *cur.BadgeObjectPath != path {
			return nil, memberstore.ErrNoChange
		}
		cur.ClearBadge()
		return []models.VerificationEvent{
			models.NewEvent(cur.ID, models.EventArtifactPurged, map[string]any{
				"purged_path": path,
				"purged_at":   now.UTC().Format(time.RFC3339),
			}, now),
		}, nil
	})
	if errors.Is(err, memberstore.ErrNoChange) {
		p.logger.InfoContext(ctx, "badge pointer moved during purge", "member_id", m.ID, "path", path)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("clear retention pointers: %w", err)
	}
	return true, nil
}

func (p *Purger) observe(res Result, err error) {
	if p.metrics != nil {
		p.metrics.observe(res, err)
	}
}
