// Package service implements the member-facing verification transitions:
// choosing a verification method and uploading badge evidence.
package service

import (
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"memberverify/internal/artifact"
	"memberverify/internal/member/models"
	memberstore "memberverify/internal/member/store"
	"memberverify/internal/token"
	"memberverify/internal/verification/metrics"
	dErrors "memberverify/pkg/domain-errors"
	"memberverify/pkg/platform/sentinel"
)

// TokenValidator proves a verification session.
type TokenValidator interface {
	Validate(tokenString string) (*token.Claims, error)
}

type Service struct {
	members   memberstore.Directory
	artifacts artifact.Store
	tokens    TokenValidator
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
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

func New(members memberstore.Directory, artifacts artifact.Store, tokens TokenValidator, opts ...Option) (*Service, error) {
	if members == nil {
		return nil, fmt.Errorf("member directory is required")
	}
	if artifacts == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token validator is required")
	}
	s := &Service{
		members:   members,
		artifacts: artifacts,
		tokens:    tokens,
		logger:    slog.Default(),
		tracer:    otel.Tracer("memberverify/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// checkBinding rejects tokens whose QLID no longer matches the member record,
// and treats soft-deleted members as missing.
func checkBinding(claims *token.Claims, m *models.Member) error {
	if m.IsDeleted() {
		return sentinel.ErrNotFound
	}
	if m.QLID != models.QLID(claims.QLID) {
		return dErrors.New(dErrors.CodeUnauthorized, "token does not match member")
	}
	return nil
}

// translate maps store errors onto domain errors.
func translate(err error, action string) error {
	var dErr *dErrors.Error
	switch {
	case errors.As(err, &dErr):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "member not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, action)
	}
}
