package membership

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"collabhub/internal/realtime/ports/mocks"
	id "collabhub/pkg/domain"
	"collabhub/pkg/platform/sentinel"
)

type CachedDirectorySuite struct {
	suite.Suite
	ctx   context.Context
	ctrl  *gomock.Controller
	next  *mocks.MockDirectory
	cache *CachedDirectory
}

func TestCachedDirectorySuite(t *testing.T) {
	suite.Run(t, new(CachedDirectorySuite))
}

func (s *CachedDirectorySuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.next = mocks.NewMockDirectory(s.ctrl)
	s.cache = NewCachedDirectory(s.next, time.Minute)
}

func (s *CachedDirectorySuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *CachedDirectorySuite) TestHitsAreServedFromCache() {
	s.next.EXPECT().DomainName(gomock.Any(), "dom-1").Return("Acme", nil).Times(1)

	for range 3 {
		name, err := s.cache.DomainName(s.ctx, "dom-1")
		s.Require().NoError(err)
		s.Equal("Acme", name)
	}
}

func (s *CachedDirectorySuite) TestOwnerChangesAreSeenImmediately() {
	gomock.InOrder(
		s.next.EXPECT().DomainOwner(gomock.Any(), "dom-1").Return(id.UserID("u1"), nil),
		s.next.EXPECT().DomainOwner(gomock.Any(), "dom-1").Return(id.UserID("u2"), nil),
	)

	owner, err := s.cache.DomainOwner(s.ctx, "dom-1")
	s.Require().NoError(err)
	s.Equal(id.UserID("u1"), owner)

	owner, err = s.cache.DomainOwner(s.ctx, "dom-1")
	s.Require().NoError(err)
	s.Equal(id.UserID("u2"), owner, "ownership transfer must take effect on the next event")
}

func (s *CachedDirectorySuite) TestNonPositiveTTLDisablesCaching() {
	uncached := NewCachedDirectory(s.next, 0)
	gomock.InOrder(
		s.next.EXPECT().DomainName(gomock.Any(), "dom-1").Return("Acme", nil),
		s.next.EXPECT().DomainName(gomock.Any(), "dom-1").Return("Acme Corp", nil),
	)

	name, err := uncached.DomainName(s.ctx, "dom-1")
	s.Require().NoError(err)
	s.Equal("Acme", name)

	name, err = uncached.DomainName(s.ctx, "dom-1")
	s.Require().NoError(err)
	s.Equal("Acme Corp", name, "a rename must be visible when caching is off")

	uncached.Flush()
}

func (s *CachedDirectorySuite) TestKeysDoNotCollideAcrossEntities() {
	s.next.EXPECT().DomainName(gomock.Any(), "x").Return("domain x", nil)
	s.next.EXPECT().PanelName(gomock.Any(), "x").Return("panel x", nil)
	s.next.EXPECT().UserName(gomock.Any(), id.UserID("x")).Return("user x", nil)

	domain, _ := s.cache.DomainName(s.ctx, "x")
	panel, _ := s.cache.PanelName(s.ctx, "x")
	user, _ := s.cache.UserName(s.ctx, "x")

	s.Equal("domain x", domain)
	s.Equal("panel x", panel)
	s.Equal("user x", user)
}

func (s *CachedDirectorySuite) TestFailuresAreNotCached() {
	gomock.InOrder(
		s.next.EXPECT().PanelName(gomock.Any(), "panel-9").Return("", sentinel.ErrNotFound),
		s.next.EXPECT().PanelName(gomock.Any(), "panel-9").Return("", errors.New("timeout")),
		s.next.EXPECT().PanelName(gomock.Any(), "panel-9").Return("Roadmap", nil),
	)

	_, err := s.cache.PanelName(s.ctx, "panel-9")
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.cache.PanelName(s.ctx, "panel-9")
	s.Error(err)

	name, err := s.cache.PanelName(s.ctx, "panel-9")
	s.Require().NoError(err)
	s.Equal("Roadmap", name)
}

func (s *CachedDirectorySuite) TestFlush() {
	s.next.EXPECT().UserName(gomock.Any(), id.UserID("u1")).Return("Ada", nil).Times(2)

	_, _ = s.cache.UserName(s.ctx, "u1")
	s.cache.Flush()
	_, _ = s.cache.UserName(s.ctx, "u1")
}
