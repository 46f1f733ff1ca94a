package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "memberverify/pkg/domain-errors"
	"memberverify/pkg/testutil"
)

const (
	memberID = "4f0c2b8e-7b61-4c39-9a58-0c1e9b2f6d11"
	qlid     = "JP100345"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newService(c *clock) *Service {
	return New("test-signing-key", WithClock(c.now))
}

func Test_IssueAndValidate(t *testing.T) {
	c := &clock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newService(c)

	tok, err := svc.Issue(memberID, qlid)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, err := svc.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, memberID, claims.MemberID)
	assert.Equal(t, qlid, claims.QLID)
	assert.Equal(t, c.t.Add(Lifetime), claims.ExpiresAt.Time)
	assert.NotEmpty(t, claims.ID)
}

func Test_Validate_ExpiryBoundary(t *testing.T) {
	c := &clock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newService(c)

	tok, err := svc.Issue(memberID, qlid)
	require.NoError(t, err)

	c.t = c.t.Add(Lifetime - time.Second)
	_, err = svc.Validate(tok)
	require.NoError(t, err)

	c.t = c.t.Add(2 * time.Second)
	_, err = svc.Validate(tok)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
}

func Test_Validate_Rejections(t *testing.T) {
	c := &clock{t: time.Now()}
	svc := newService(c)
	valid, err := svc.Issue(memberID, qlid)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		MemberID: memberID,
		QLID:     qlid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(c.t.Add(time.Hour)),
			Issuer:    defaultIssuer,
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	otherKey, err := New("another-key", WithClock(c.now)).Issue(memberID, qlid)
	require.NoError(t, err)

	otherIssuer, err := New("test-signing-key", WithClock(c.now), WithIssuer("elsewhere")).Issue(memberID, qlid)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":          "",
		"malformed":      "invalid-token-string",
		"tampered":       valid[:len(valid)-2] + "xx",
		"bad signature":  otherKey,
		"alg none":       noneToken,
		"foreign issuer": otherIssuer,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Validate(tok)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		})
	}
}

func Test_Validate_MissingClaims(t *testing.T) {
	c := &clock{t: time.Now()}
	svc := newService(c)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(c.t.Add(time.Hour)),
			Issuer:    defaultIssuer,
		},
	}).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	_, err = svc.Validate(tok)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims"))
}

func Test_Issue_RequiresIdentity(t *testing.T) {
	svc := New("k")
	_, err := svc.Issue("", qlid)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func Test_VerifyLink(t *testing.T) {
	testutil.Given(t, "a base URL with a trailing slash", func(t *testing.T) {
		testutil.When(t, "building a link for a token", func(t *testing.T) {
			link := VerifyLink("https://union.example/", "a.b+c")

			testutil.Then(t, "the token is query-escaped under the verify path", func(t *testing.T) {
				assert.Equal(t, "https://union.example/sr/verify?token=a.b%2Bc", link)
			})
		})
	})
}
