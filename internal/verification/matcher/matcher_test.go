package matcher_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"memberverify/internal/member/models"
	memberstore "memberverify/internal/member/store"
	"memberverify/internal/verification/matcher"
	"memberverify/internal/verification/matcher/mocks"
	"memberverify/pkg/requestcontext"
)

//go:generate mockgen -source=mailbox.go -destination=mocks/mocks.go -package=mocks Mailbox

const (
	domain = "corp.example"
	intake = "verify@union.example"
)

type MatcherSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	mailbox *mocks.MockMailbox
	members *memberstore.InMemoryDirectory
	matcher *matcher.Matcher
}

func TestMatcherSuite(t *testing.T) {
	suite.Run(t, new(MatcherSuite))
}

func (s *MatcherSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.mailbox = mocks.NewMockMailbox(gomock.NewController(s.T()))
	s.members = memberstore.NewInMemoryDirectory()

	var err error
	s.matcher, err = matcher.New(s.mailbox, s.members, domain, intake)
	s.Require().NoError(err)
}

func (s *MatcherSuite) addMember(id, qlid string, mutate func(*models.Member)) {
	m := &models.Member{
		ID:        id,
		QLID:      models.QLID(qlid),
		FullName:  "Test Member",
		Status:    models.StatusPending,
		CreatedAt: s.now.Add(-time.Hour),
		UpdatedAt: s.now.Add(-time.Hour),
	}
	if mutate != nil {
		mutate(m)
	}
	s.Require().NoError(s.members.Create(s.ctx, m))
}

func (s *MatcherSuite) expectList(ids ...string) {
	s.mailbox.EXPECT().
		ListUnread(gomock.Any(), matcher.Query{FromDomain: domain, To: intake, MaxResults: 50}).
		Return(ids, nil)
}

func (s *MatcherSuite) expectFetch(msg *matcher.Message) {
	s.mailbox.EXPECT().Fetch(gomock.Any(), msg.ID).Return(msg, nil)
}

func (s *MatcherSuite) TestVerifiesCorporateSender() {
	s.addMember("m1", "AB123456", func(m *models.Member) { m.FullName = "Jovan Petrovic" })
	s.expectList("msg-1")
	s.expectFetch(&matcher.Message{
		ID:      "msg-1",
		From:    "Jovan Petrovic <jovan.petrovic3@corp.example>",
		To:      intake,
		Subject: "Verification ab123456",
		Date:    "Mon, 1 Jun 2026 08:00:00 +0000",
	})
	s.mailbox.EXPECT().MarkRead(gomock.Any(), "msg-1").Return(nil)

	res, err := s.matcher.Poll(s.ctx)
	s.Require().NoError(err)
	s.Equal(matcher.Result{Fetched: 1, Verified: 1, Timestamp: s.now}, res)

	m, err := s.members.FindByID(s.ctx, "m1")
	s.Require().NoError(err)
	s.True(m.IsVerified)
	s.Equal(models.VerificationCodeVerified, m.VerificationStatus)
	s.Equal(models.MethodEmail, m.VerificationMethod)
	s.Require().NotNil(m.VerifiedAt)
	s.True(m.VerifiedAt.Equal(s.now))

	events, err := s.members.ListEvents(s.ctx, "m1")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(models.EventEmailSeen, events[0].EventType)
	s.Equal("AB123456", events[0].EventMeta["qlid"])
	s.Equal("jovan", events[0].EventMeta["first_name"])
	s.Equal("petrovic", events[0].EventMeta["last_name"])
	s.Equal("msg-1", events[0].EventMeta["message_id"])
	s.Equal(true, events[0].EventMeta["name_match"])
}

func (s *MatcherSuite) TestNameMismatchIsRecorded() {
	s.addMember("m1", "AB123456", func(m *models.Member) { m.FullName = "Marija Nikolic" })
	s.expectList("msg-1")
	s.expectFetch(&matcher.Message{
		ID:      "msg-1",
		From:    "jovan.petrovic@corp.example",
		Subject: "AB123456",
	})
	s.mailbox.EXPECT().MarkRead(gomock.Any(), "msg-1").Return(nil)

	res, err := s.matcher.Poll(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Verified)

	events, err := s.members.ListEvents(s.ctx, "m1")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(false, events[0].EventMeta["name_match"])
}

func (s *MatcherSuite) TestRepeatedPollMakesNoFurtherChange() {
	s.addMember("m1", "JP100345", func(m *models.Member) { m.FullName = "Jovan Petrovic" })
	msg := &matcher.Message{
		ID:      "msg-1",
		From:    "jovan.petrovic3@corp.example",
		To:      intake,
		Subject: "JP100345",
	}
	s.expectList("msg-1")
	s.expectFetch(msg)
	s.mailbox.EXPECT().MarkRead(gomock.Any(), "msg-1").Return(nil)

	first, err := s.matcher.Poll(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, first.Verified)
	verified, err := s.members.FindByID(s.ctx, "m1")
	s.Require().NoError(err)

	s.Run("message already read", func() {
		s.expectList()
		res, err := s.matcher.Poll(s.ctx)
		s.Require().NoError(err)
		s.Equal(matcher.Result{Timestamp: s.now}, res)
	})

	s.Run("same message listed again", func() {
		s.expectList("msg-1")
		s.expectFetch(msg)
		s.mailbox.EXPECT().MarkRead(gomock.Any(), "msg-1").Return(nil)
		res, err := s.matcher.Poll(s.ctx)
		s.Require().NoError(err)
		s.Equal(matcher.Result{Fetched: 1, Skipped: 1, Timestamp: s.now}, res)
	})

	m, err := s.members.FindByID(s.ctx, "m1")
	s.Require().NoError(err)
	s.Equal(verified, m)
	events, err := s.members.ListEvents(s.ctx, "m1")
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *MatcherSuite) TestQLIDFromSnippet() {
	s.addMember("m1", "CD654321", func(m *models.Member) {
		m.SelectMethod(models.MethodEmail, s.now.Add(-time.Hour))
	})
	s.expectList("msg-1")
	s.expectFetch(&matcher.Message{
		ID:      "msg-1",
		From:    "ana.ilic@corp.example",
		Subject: "Hello",
		Snippet: "my id is cd654321, thanks",
	})
	s.mailbox.EXPECT().MarkRead(gomock.Any(), "msg-1").Return(nil)

	res, err := s.matcher.Poll(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Verified)
}

func (s *MatcherSuite) TestSkipsAndMarksRead() {
	s.addMember("badge", "EF111111", func(m *models.Member) {
		m.SelectMethod(models.MethodBadge, s.now.Add(-time.Hour))
	})
	s.addMember("done", "GH222222", func(m *models.Member) {
		m.MarkVerified(models.MethodEmail, s.now.Add(-time.Hour))
	})
	s.addMember("gone", "IJ333333", func(m *models.Member) {
		m.SoftDelete("admin", "duplicate", models.DeletionDuplicate, s.now.Add(-time.Hour))
	})

	msgs := []*matcher.Message{
		{ID: "desk", From: "supportdesk@corp.example", Subject: "AB123456"},
		{ID: "foreign", From: "jovan.petrovic@gmail.com", Subject: "AB123456"},
		{ID: "noqlid", From: "jovan.petrovic@corp.example", Subject: "hi", Snippet: "no id here"},
		{ID: "unknown", From: "jovan.petrovic@corp.example", Subject: "ZZ000000"},
		{ID: "badge", From: "jovan.petrovic@corp.example", Subject: "EF111111"},
		{ID: "done", From: "jovan.petrovic@corp.example", Subject: "GH222222"},
		{ID: "gone", From: "jovan.petrovic@corp.example", Subject: "IJ333333"},
	}
	ids := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		ids = append(ids, msg.ID)
		s.expectFetch(msg)
		s.mailbox.EXPECT().MarkRead(gomock.Any(), msg.ID).Return(nil)
	}
	s.expectList(ids...)

	res, err := s.matcher.Poll(s.ctx)
	s.Require().NoError(err)
	s.Equal(len(msgs), res.Fetched)
	s.Equal(len(msgs), res.Skipped)
	s.Zero(res.Verified)
	s.Zero(res.Errors)

	m, err := s.members.FindByID(s.ctx, "badge")
	s.Require().NoError(err)
	s.False(m.IsVerified)
}

func (s *MatcherSuite) TestFetchFailureLeavesMessageUnread() {
	s.addMember("m1", "AB123456", nil)
	s.expectList("broken", "ok")
	s.mailbox.EXPECT().Fetch(gomock.Any(), "broken").Return(nil, errors.New("503 backend error"))
	s.expectFetch(&matcher.Message{ID: "ok", From: "jovan.petrovic@corp.example", Subject: "AB123456"})
	s.mailbox.EXPECT().MarkRead(gomock.Any(), "ok").Return(nil)

	res, err := s.matcher.Poll(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Errors)
	s.Equal(1, res.Verified)
}

func (s *MatcherSuite) TestMarkReadFailureDoesNotUndoVerification() {
	s.addMember("m1", "AB123456", nil)
	s.expectList("msg-1")
	s.expectFetch(&matcher.Message{ID: "msg-1", From: "jovan.petrovic@corp.example", Subject: "AB123456"})
	s.mailbox.EXPECT().MarkRead(gomock.Any(), "msg-1").Return(errors.New("quota"))

	res, err := s.matcher.Poll(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Verified)

	// redelivery of the same message is a no-op skip
	s.expectList("msg-1")
	s.expectFetch(&matcher.Message{ID: "msg-1", From: "jovan.petrovic@corp.example", Subject: "AB123456"})
	s.mailbox.EXPECT().MarkRead(gomock.Any(), "msg-1").Return(nil)

	res, err = s.matcher.Poll(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Skipped)

	events, err := s.members.ListEvents(s.ctx, "m1")
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *MatcherSuite) TestListFailureAbortsPoll() {
	s.mailbox.EXPECT().ListUnread(gomock.Any(), gomock.Any()).Return(nil, errors.New("invalid_grant"))

	res, err := s.matcher.Poll(s.ctx)
	s.Require().Error(err)
	s.Zero(res.Fetched)
}

func (s *MatcherSuite) TestNewValidatesArguments() {
	_, err := matcher.New(nil, s.members, domain, intake)
	s.Error(err)
	_, err = matcher.New(s.mailbox, nil, domain, intake)
	s.Error(err)
	_, err = matcher.New(s.mailbox, s.members, "", intake)
	s.Error(err)
}
