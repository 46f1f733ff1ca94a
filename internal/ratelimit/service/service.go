package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"memberverify/internal/ratelimit/metrics"
	"memberverify/internal/ratelimit/models"
	"memberverify/internal/ratelimit/ports"
	dErrors "memberverify/pkg/domain-errors"
	"memberverify/pkg/requestcontext"
)

// Service applies fixed-window limits keyed by namespace and client identifier.
// It is advisory abuse protection for public endpoints, not a security boundary.
type Service struct {
	store    ports.Store
	policies map[models.Namespace]models.Policy
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPolicy overrides the limit for one namespace.
func WithPolicy(ns models.Namespace, p models.Policy) Option {
	return func(s *Service) {
		s.policies[ns] = p
	}
}

func New(store ports.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("rate limit store is required")
	}
	s := &Service{
		store:    store,
		policies: models.DefaultPolicies(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Check counts one request for client in namespace against limit per window.
func (s *Service) Check(ctx context.Context, ns models.Namespace, client string, limit int, window time.Duration) (*models.Result, error) {
	if limit <= 0 || window <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "rate limit and window must be positive")
	}

	res, err := s.store.Hit(ctx, models.Key(ns, client), limit, window, requestcontext.Now(ctx))
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementErrors()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}

	if s.metrics != nil {
		s.metrics.ObserveCheck(string(ns), res.Allowed)
	}
	if !res.Allowed {
		s.logger.InfoContext(ctx, "rate limit exceeded",
			"namespace", ns,
			"limit", limit,
			"retry_after", res.RetryAfter,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return res, nil
}

// CheckNamespace applies the configured policy for ns.
func (s *Service) CheckNamespace(ctx context.Context, ns models.Namespace, client string) (*models.Result, error) {
	p, ok := s.policies[ns]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInternal, fmt.Sprintf("no rate limit policy for namespace %q", ns))
	}
	return s.Check(ctx, ns, client, p.Limit, p.Window)
}
