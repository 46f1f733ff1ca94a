package purge

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"memberverify/internal/artifact"
	"memberverify/internal/artifact/mocks"
	"memberverify/internal/member/models"
	memberstore "memberverify/internal/member/store"
	"memberverify/pkg/requestcontext"
)

type PurgeSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	members   *memberstore.InMemoryDirectory
	artifacts *artifact.InMemoryStore
	purger    *Purger
}

func TestPurgeSuite(t *testing.T) {
	suite.Run(t, new(PurgeSuite))
}

func (s *PurgeSuite) SetupTest() {
	s.now = time.Date(2026, 7, 1, 3, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.members = memberstore.NewInMemoryDirectory()
	s.artifacts = artifact.NewInMemoryStore("badge-photos")

	var err error
	s.purger, err = New(s.members, s.artifacts)
	s.Require().NoError(err)
}

func (s *PurgeSuite) addBadgeMember(id string, purgeAt time.Time) string {
	path := id + "/1.jpg"
	m := &models.Member{
		ID:        id,
		QLID:      models.QLID("AB" + id[len(id)-6:]),
		Status:    models.StatusPending,
		CreatedAt: s.now.AddDate(0, -2, 0),
	}
	m.SelectMethod(models.MethodBadge, purgeAt.Add(-30*24*time.Hour))
	m.SetBadge(path, purgeAt)
	s.Require().NoError(s.members.Create(s.ctx, m))
	s.Require().NoError(s.artifacts.Put(s.ctx, path, bytes.NewReader([]byte("img")), 3, "image/jpeg"))
	return path
}

func (s *PurgeSuite) TestPurgesExpiredBadges() {
	expired := s.addBadgeMember("m-000001", s.now.Add(-time.Minute))
	s.addBadgeMember("m-000002", s.now.Add(time.Hour))
	boundary := s.addBadgeMember("m-000003", s.now)

	res, err := s.purger.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(Result{Processed: 1, Deleted: 1, Timestamp: s.now}, res)

	_, ok := s.artifacts.Get(expired)
	s.False(ok)
	_, ok = s.artifacts.Get(boundary)
	s.True(ok)

	m, err := s.members.FindByID(s.ctx, "m-000001")
	s.Require().NoError(err)
	s.Nil(m.BadgeObjectPath)
	s.Nil(m.ArtifactsPurgeAt)
	s.Equal(models.MethodBadge, m.VerificationMethod)

	events, err := s.members.ListEvents(s.ctx, "m-000001")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(models.EventArtifactPurged, events[0].EventType)
	s.Equal(expired, events[0].EventMeta["purged_path"])
	s.Equal("2026-07-01T03:00:00Z", events[0].EventMeta["purged_at"])
}

func (s *PurgeSuite) TestSecondRunIsNoOp() {
	s.addBadgeMember("m-000001", s.now.Add(-time.Hour))

	first, err := s.purger.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, first.Deleted)

	second, err := s.purger.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(Result{Timestamp: s.now}, second)

	events, err := s.members.ListEvents(s.ctx, "m-000001")
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *PurgeSuite) TestStorageFailureLeavesMemberUntouched() {
	s.addBadgeMember("m-000001", s.now.Add(-time.Hour))
	s.addBadgeMember("m-000002", s.now.Add(-time.Hour))

	ctrl := gomock.NewController(s.T())
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Delete(gomock.Any(), "m-000001/1.jpg").Return(artifact.ErrDeleteFailed)
	store.EXPECT().Delete(gomock.Any(), "m-000002/1.jpg").Return(nil)

	purger, err := New(s.members, store)
	s.Require().NoError(err)

	res, err := purger.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, res.Processed)
	s.Equal(1, res.Deleted)
	s.Equal(1, res.Errors)

	m, err := s.members.FindByID(s.ctx, "m-000001")
	s.Require().NoError(err)
	s.Require().NotNil(m.BadgeObjectPath)
	s.NotNil(m.ArtifactsPurgeAt)

	// the failed member is retried by the next run
	store.EXPECT().Delete(gomock.Any(), "m-000001/1.jpg").Return(nil)
	res, err = purger.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(Result{Processed: 1, Deleted: 1, Timestamp: s.now}, res)
}

func (s *PurgeSuite) TestPointerMovedDuringDelete() {
	s.addBadgeMember("m-000001", s.now.Add(-time.Hour))

	ctrl := gomock.NewController(s.T())
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Delete(gomock.Any(), "m-000001/1.jpg").DoAndReturn(func(ctx context.Context, _ string) error {
		_, err := s.members.Update(ctx, "m-000001", func(m *models.Member) ([]models.VerificationEvent, error) {
			m.SetBadge("m-000001/2.jpg", s.now.Add(30*24*time.Hour))
			return nil, nil
		})
		return err
	})

	purger, err := New(s.members, store)
	s.Require().NoError(err)
	res, err := purger.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(Result{Processed: 1, Timestamp: s.now}, res)

	m, err := s.members.FindByID(s.ctx, "m-000001")
	s.Require().NoError(err)
	s.Require().NotNil(m.BadgeObjectPath)
	s.Equal("m-000001/2.jpg", *m.BadgeObjectPath)
}

type brokenDirectory struct {
	*memberstore.InMemoryDirectory
}

func (brokenDirectory) ListPurgeCandidates(context.Context, time.Time) ([]*models.Member, error) {
	return nil, errors.New("database is closed")
}

func (s *PurgeSuite) TestListingFailureAbortsRun() {
	purger, err := New(brokenDirectory{s.members}, s.artifacts)
	s.Require().NoError(err)

	res, err := purger.Run(s.ctx)
	s.Require().Error(err)
	s.Zero(res.Processed)
}

func (s *PurgeSuite) TestNewRequiresDependencies() {
	_, err := New(nil, s.artifacts)
	s.Error(err)
	_, err = New(s.members, nil)
	s.Error(err)
}
