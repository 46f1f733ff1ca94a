// Package token issues and validates the signed links that bind a member to a
// verification session. Tokens are stateless: validity is proven by signature
// and expiry alone, so a leaked token stays usable until it expires.
package token

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "memberverify/pkg/domain-errors"
)

// Lifetime is fixed; it is not configurable per request.
const Lifetime = 7 * 24 * time.Hour

const defaultIssuer = "memberverify"

// VerifyPath is the member-facing page that consumes a token.
const VerifyPath = "/sr/verify"

// VerifyLink builds the verification URL for tok under baseURL.
func VerifyLink(baseURL, tok string) string {
	return strings.TrimSuffix(baseURL, "/") + VerifyPath + "?" + url.Values{"token": {tok}}.Encode()
}

// Claims is the payload carried by a verification token.
type Claims struct {
	MemberID string `json:"member_id"`
	QLID     string `json:"qlid"`
	jwt.RegisteredClaims
}

type Service struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithIssuer(issuer string) Option {
	return func(s *Service) {
		s.issuer = issuer
	}
}

func New(signingKey string, opts ...Option) *Service {
	s := &Service{
		signingKey: []byte(signingKey),
		issuer:     defaultIssuer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue signs a token for memberID and qlid that expires after Lifetime.
func (s *Service) Issue(memberID, qlid string) (string, error) {
	if strings.TrimSpace(memberID) == "" || strings.TrimSpace(qlid) == "" {
		return "", dErrors.New(dErrors.CodeValidation, "member id and qlid are required")
	}

	now := s.now()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		MemberID: memberID,
		QLID:     qlid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(Lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})

	signed, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}

// Validate checks signature, algorithm and expiry. Every failure is reported as
// an unauthorized domain error.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing token")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.MemberID == "" || claims.QLID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
