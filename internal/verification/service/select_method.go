package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"memberverify/internal/member/models"
	memberstore "memberverify/internal/member/store"
	"memberverify/pkg/requestcontext"
)

// SelectMethod records the applicant's chosen verification method. Repeating
// the call converges on the same state; each call appends one event. Members
// already verified are left untouched. No notification is sent.
func (s *Service) SelectMethod(ctx context.Context, tokenString, rawMethod string) (*models.Member, error) {
	ctx, span := s.tracer.Start(ctx, "verification.SelectMethod")
	defer span.End()

	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	method, err := models.ParseMethod(rawMethod)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("member.id", claims.MemberID), attribute.String("verification.method", string(method)))

	now := requestcontext.Now(ctx)
	m, err := s.members.Update(ctx, claims.MemberID, func(cur *models.Member) ([]models.VerificationEvent, error) {
		if err := checkBinding(claims, cur); err != nil {
			return nil, err
		}
		if cur.IsVerified || cur.VerificationStatus == models.VerificationCodeVerified {
			return nil, memberstore.ErrNoChange
		}
		cur.SelectMethod(method, now)
		return []models.VerificationEvent{
			models.NewEvent(cur.ID, models.EventMethodSelected, map[string]any{"method": string(method)}, now),
		}, nil
	})
	if errors.Is(err, memberstore.ErrNoChange) {
		s.logger.InfoContext(ctx, "method selection ignored for verified member", "member_id", claims.MemberID)
		return m, nil
	}
	if err != nil {
		span.RecordError(err)
		s.logger.WarnContext(ctx, "method selection failed",
			"member_id", claims.MemberID,
			"method", method,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, translate(err, "failed to record verification method")
	}

	if s.metrics != nil {
		s.metrics.IncMethodSelected(string(method))
	}
	s.logger.InfoContext(ctx, "verification method selected", "member_id", m.ID, "method", method)
	return m, nil
}
