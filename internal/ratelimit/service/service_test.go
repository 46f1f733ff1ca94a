package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"memberverify/internal/ratelimit/models"
	"memberverify/internal/ratelimit/store/memory"
	dErrors "memberverify/pkg/domain-errors"
	"memberverify/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Hit(context.Context, string, int, time.Duration, time.Time) (*models.Result, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) Reset(context.Context, string) error { return nil }

type ServiceSuite struct {
	suite.Suite
	svc *Service
	ctx context.Context
	now time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	var err error
	s.svc, err = New(memory.New())
	s.Require().NoError(err)
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) TestNewRequiresStore() {
	_, err := New(nil)
	s.Error(err)
}

func (s *ServiceSuite) TestCheck() {
	s.Run("rejects after limit within window", func() {
		for range 2 {
			res, err := s.svc.Check(s.ctx, models.NamespaceContact, "10.0.0.1", 2, time.Minute)
			s.Require().NoError(err)
			s.True(res.Allowed)
		}
		res, err := s.svc.Check(s.ctx, models.NamespaceContact, "10.0.0.1", 2, time.Minute)
		s.Require().NoError(err)
		s.False(res.Allowed)
	})

	s.Run("namespaces do not share counters", func() {
		for range 2 {
			_, err := s.svc.Check(s.ctx, models.NamespaceContact, "10.0.0.2", 2, time.Minute)
			s.Require().NoError(err)
		}
		res, err := s.svc.Check(s.ctx, models.NamespaceVerify, "10.0.0.2", 2, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
	})

	s.Run("window resets after expiry", func() {
		for range 3 {
			_, err := s.svc.Check(s.ctx, models.NamespaceContact, "10.0.0.3", 2, time.Minute)
			s.Require().NoError(err)
		}
		later := requestcontext.WithTime(context.Background(), s.now.Add(61*time.Second))
		res, err := s.svc.Check(later, models.NamespaceContact, "10.0.0.3", 2, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
	})

	s.Run("invalid limit rejected", func() {
		_, err := s.svc.Check(s.ctx, models.NamespaceContact, "10.0.0.4", 0, time.Minute)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestCheckNamespaceUsesPolicy() {
	svc, err := New(memory.New(), WithPolicy(models.NamespaceContact, models.Policy{Limit: 1, Window: time.Minute}))
	s.Require().NoError(err)

	res, err := svc.CheckNamespace(s.ctx, models.NamespaceContact, "client")
	s.Require().NoError(err)
	s.True(res.Allowed)

	res, err = svc.CheckNamespace(s.ctx, models.NamespaceContact, "client")
	s.Require().NoError(err)
	s.False(res.Allowed)

	_, err = svc.CheckNamespace(s.ctx, models.Namespace("unknown"), "client")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestStoreFailureIsInternal() {
	svc, err := New(failingStore{})
	s.Require().NoError(err)

	_, err = svc.Check(s.ctx, models.NamespaceVerify, "client", 5, time.Minute)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
