package store_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"memberverify/internal/member/models"
	"memberverify/internal/member/store"
	dErrors "memberverify/pkg/domain-errors"
	"memberverify/pkg/platform/sentinel"
	"memberverify/pkg/requestcontext"
)

// DirectorySuite exercises the Directory contract against any implementation.
type DirectorySuite struct {
	suite.Suite
	newDirectory func() store.Directory
	dir          store.Directory
	ctx          context.Context
	now          time.Time
}

func (s *DirectorySuite) SetupTest() {
	s.dir = s.newDirectory()
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *DirectorySuite) seed(qlid string, mutate ...func(*models.Member)) *models.Member {
	m := &models.Member{
		ID:        uuid.NewString(),
		QLID:      models.QLID(qlid),
		FullName:  "Jovan Petrovic",
		Email:     "jovan@example.com",
		Status:    models.StatusPending,
		CreatedAt: s.now.Add(-48 * time.Hour),
		UpdatedAt: s.now.Add(-48 * time.Hour),
	}
	for _, fn := range mutate {
		fn(m)
	}
	s.Require().NoError(s.dir.Create(s.ctx, m))
	return m
}

func (s *DirectorySuite) TestCreateAndFind() {
	m := s.seed("JP100345")

	byID, err := s.dir.FindByID(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(m.QLID, byID.QLID)
	s.Equal(models.StatusPending, byID.Status)
	s.Equal(models.MethodNone, byID.VerificationMethod)
	s.Nil(byID.BadgeObjectPath)

	byQLID, err := s.dir.FindByQLID(s.ctx, "JP100345")
	s.Require().NoError(err)
	s.Equal(m.ID, byQLID.ID)

	_, err = s.dir.FindByQLID(s.ctx, "ZZ999999")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.dir.FindByID(s.ctx, uuid.NewString())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *DirectorySuite) TestCreateRejectsDuplicateQLID() {
	s.seed("JP100345")
	dup := &models.Member{ID: uuid.NewString(), QLID: "JP100345", Status: models.StatusPending, CreatedAt: s.now, UpdatedAt: s.now}
	s.ErrorIs(s.dir.Create(s.ctx, dup), sentinel.ErrConflict)
}

func (s *DirectorySuite) TestUpdateAppliesMutationAndEvents() {
	m := s.seed("AB123456")

	updated, err := s.dir.Update(s.ctx, m.ID, func(cur *models.Member) ([]models.VerificationEvent, error) {
		cur.SelectMethod(models.MethodBadge, s.now)
		cur.SetBadge(cur.ID+"/1.jpg", s.now.Add(30*24*time.Hour))
		return []models.VerificationEvent{
			models.NewEvent(cur.ID, models.EventBadgeUploaded, map[string]any{"path": cur.ID + "/1.jpg"}, s.now),
		}, nil
	})
	s.Require().NoError(err)
	s.Equal(models.MethodBadge, updated.VerificationMethod)

	reloaded, err := s.dir.FindByID(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Require().NotNil(reloaded.BadgeObjectPath)
	s.Equal(m.ID+"/1.jpg", *reloaded.BadgeObjectPath)
	s.True(reloaded.ArtifactsPurgeAt.Equal(s.now.Add(30 * 24 * time.Hour)))
	s.Equal(models.VerificationMethodSelected, reloaded.VerificationStatus)

	events, err := s.dir.ListEvents(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(models.EventBadgeUploaded, events[0].EventType)
	s.Equal(m.ID+"/1.jpg", events[0].EventMeta["path"])
}

func (s *DirectorySuite) TestUpdateRejectsInvariantViolation() {
	m := s.seed("AB123457")

	_, err := s.dir.Update(s.ctx, m.ID, func(cur *models.Member) ([]models.VerificationEvent, error) {
		path := "orphan.jpg"
		cur.BadgeObjectPath = &path
		return nil, nil
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	reloaded, err := s.dir.FindByID(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Nil(reloaded.BadgeObjectPath)
}

func (s *DirectorySuite) TestUpdateAbortsWithoutWriting() {
	m := s.seed("AB123458")
	boom := errors.New("boom")

	_, err := s.dir.Update(s.ctx, m.ID, func(cur *models.Member) ([]models.VerificationEvent, error) {
		cur.MarkVerified(models.MethodEmail, s.now)
		return nil, boom
	})
	s.ErrorIs(err, boom)

	cur, err := s.dir.Update(s.ctx, m.ID, func(cur *models.Member) ([]models.VerificationEvent, error) {
		cur.MarkVerified(models.MethodEmail, s.now)
		return nil, store.ErrNoChange
	})
	s.ErrorIs(err, store.ErrNoChange)
	s.Require().NotNil(cur)
	s.False(cur.IsVerified)

	reloaded, err := s.dir.FindByID(s.ctx, m.ID)
	s.Require().NoError(err)
	s.False(reloaded.IsVerified)

	_, err = s.dir.Update(s.ctx, uuid.NewString(), func(*models.Member) ([]models.VerificationEvent, error) { return nil, nil })
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *DirectorySuite) TestAppendEvent() {
	m := s.seed("AB123459")
	s.Require().NoError(s.dir.AppendEvent(s.ctx, models.NewEvent(m.ID, models.EventMethodSelected, map[string]any{"method": "email"}, s.now)))
	s.Require().NoError(s.dir.AppendEvent(s.ctx, models.NewEvent(m.ID, models.EventMethodSelected, map[string]any{"method": "email"}, s.now.Add(time.Second))))

	events, err := s.dir.ListEvents(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Len(events, 2)

	err = s.dir.AppendEvent(s.ctx, models.NewEvent(uuid.NewString(), models.EventMethodSelected, nil, s.now))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *DirectorySuite) TestListPurgeCandidates() {
	due := s.seed("PC000001", func(m *models.Member) { m.SetBadge("due.jpg", s.now.Add(-time.Minute)) })
	s.seed("PC000002", func(m *models.Member) { m.SetBadge("future.jpg", s.now.Add(time.Hour)) })
	s.seed("PC000003")

	out, err := s.dir.ListPurgeCandidates(s.ctx, s.now)
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal(due.ID, out[0].ID)
}

func (s *DirectorySuite) TestListReminderCandidates() {
	old := s.now.Add(-25 * time.Hour)
	recent := s.now.Add(-time.Hour)
	cutoff := s.now.Add(-24 * time.Hour)

	want := s.seed("RM000001", func(m *models.Member) { m.SelectMethod(models.MethodEmail, old) })
	s.seed("RM000002", func(m *models.Member) { m.SelectMethod(models.MethodEmail, recent) })
	s.seed("RM000003", func(m *models.Member) {
		m.SelectMethod(models.MethodBadge, old)
		m.ReminderEmailSent = true
	})
	s.seed("RM000004", func(m *models.Member) {
		m.SelectMethod(models.MethodEmail, old)
		m.MarkVerified(models.MethodEmail, old)
		m.Status = models.StatusVerified
	})
	s.seed("RM000005")

	out, err := s.dir.ListReminderCandidates(s.ctx, cutoff)
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal(want.ID, out[0].ID)
}

func (s *DirectorySuite) TestConcurrentUpdatesAreSerialized() {
	m := s.seed("CC000001")
	const workers = 20

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.dir.Update(s.ctx, m.ID, func(cur *models.Member) ([]models.VerificationEvent, error) {
				cur.SelectMethod(models.MethodEmail, s.now)
				return []models.VerificationEvent{models.NewEvent(cur.ID, models.EventMethodSelected, nil, s.now)}, nil
			})
		}()
	}
	wg.Wait()

	events, err := s.dir.ListEvents(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Len(events, workers)

	reloaded, err := s.dir.FindByID(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(models.MethodEmail, reloaded.VerificationMethod)
}
