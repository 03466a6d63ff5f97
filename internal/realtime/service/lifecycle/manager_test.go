package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"collabhub/internal/realtime/metrics"
	"collabhub/internal/realtime/models"
	"collabhub/internal/realtime/ports/mocks"
	"collabhub/internal/realtime/store/presence"
	id "collabhub/pkg/domain"
	"collabhub/pkg/platform/sentinel"
)

var (
	domainOne = id.DomainScope("dom-1")
	panelTwo  = id.PanelScope("p-2")
)

type ManagerSuite struct {
	suite.Suite
	ctx     context.Context
	store   *presence.InMemoryStore
	metrics *metrics.Metrics
	manager *Manager
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = presence.NewInMemory()
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	var err error
	s.manager, err = New(s.store, WithMetrics(s.metrics))
	s.Require().NoError(err)
}

func (s *ManagerSuite) online(scope id.Scope) map[id.UserID]id.ConnectionID {
	online, err := s.store.ListOnline(s.ctx, scope)
	s.Require().NoError(err)
	return online
}

func (s *ManagerSuite) TestNewRequiresStore() {
	_, err := New(nil)
	s.Error(err)
}

func (s *ManagerSuite) TestConnect() {
	s.Run("registers every handshake claim", func() {
		handshake := []byte(`[
			{"userId":"u1","scopeKind":"domain","scopeId":"dom-1"},
			{"userId":"u1","scopeKind":"panel","scopeId":"p-2"}
		]`)

		regs := s.manager.Connect(s.ctx, "c1", handshake)

		s.Len(regs, 2)
		s.Equal(map[id.UserID]id.ConnectionID{"u1": "c1"}, s.online(domainOne))
		s.Equal(map[id.UserID]id.ConnectionID{"u1": "c1"}, s.online(panelTwo))
		s.ElementsMatch(regs, s.manager.Registrations("c1"))
		s.Equal(float64(2), testutil.ToFloat64(s.metrics.PresenceRegistered))
	})

	s.Run("single object handshake", func() {
		regs := s.manager.Connect(s.ctx, "c2", []byte(`{"userId":42,"scopeKind":"domain","scopeId":"dom-1"}`))

		s.Equal([]models.Registration{{UserID: "42", Scope: domainOne}}, regs)
	})

	s.Run("malformed handshake registers nothing", func() {
		regs := s.manager.Connect(s.ctx, "c3", []byte(`not json`))

		s.Empty(regs)
		s.Empty(s.manager.Registrations("c3"))
	})

	s.Run("empty handshake registers nothing", func() {
		s.Empty(s.manager.Connect(s.ctx, "c4", nil))
	})
}

func (s *ManagerSuite) TestDisconnect() {
	s.Run("removes exactly what was registered", func() {
		s.manager.ConnectEntries(s.ctx, "c1", []models.Registration{{UserID: "u1", Scope: domainOne}})
		s.Require().NoError(s.store.Register(s.ctx, domainOne, "u2", "c9"))

		s.manager.Disconnect(s.ctx, "c1")

		s.Equal(map[id.UserID]id.ConnectionID{"u2": "c9"}, s.online(domainOne))
		s.Empty(s.manager.Registrations("c1"))
	})

	s.Run("second disconnect is a no-op", func() {
		s.manager.ConnectEntries(s.ctx, "c5", []models.Registration{{UserID: "u5", Scope: panelTwo}})
		s.manager.Disconnect(s.ctx, "c5")
		s.manager.Disconnect(s.ctx, "c5")

		s.Empty(s.online(panelTwo))
	})

	s.Run("older connection does not evict the newer one", func() {
		reg := []models.Registration{{UserID: "u7", Scope: domainOne}}
		s.manager.ConnectEntries(s.ctx, "old", reg)
		s.manager.ConnectEntries(s.ctx, "new", reg)

		s.manager.Disconnect(s.ctx, "old")

		s.Equal(id.ConnectionID("new"), s.online(domainOne)["u7"])
	})

	s.Run("cleanup runs with a cancelled context", func() {
		s.manager.ConnectEntries(s.ctx, "c6", []models.Registration{{UserID: "u6", Scope: panelTwo}})
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()

		s.manager.Disconnect(ctx, "c6")

		s.NotContains(s.online(panelTwo), id.UserID("u6"))
	})
}

func (s *ManagerSuite) TestRefresh() {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s.store = presence.NewInMemory(presence.WithLeaseTTL(time.Minute), presence.WithClock(clock))
	manager, err := New(s.store)
	s.Require().NoError(err)

	manager.ConnectEntries(s.ctx, "c1", []models.Registration{{UserID: "u1", Scope: domainOne}})
	now = now.Add(50 * time.Second)

	s.Equal(1, manager.Refresh(s.ctx))

	now = now.Add(50 * time.Second)
	s.Equal(id.ConnectionID("c1"), s.online(domainOne)["u1"], "lease extended past the original expiry")
}

func (s *ManagerSuite) TestRefreshSkipsSupersededEntries() {
	reg := []models.Registration{{UserID: "u1", Scope: domainOne}}
	s.manager.ConnectEntries(s.ctx, "old", reg)
	s.manager.ConnectEntries(s.ctx, "new", reg)

	s.Equal(1, s.manager.Refresh(s.ctx))
	s.Equal(id.ConnectionID("new"), s.online(domainOne)["u1"])
}

func (s *ManagerSuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- s.manager.Run(ctx, 5*time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		s.Fail("refresh loop did not stop")
	}
}

type ManagerFailureSuite struct {
	suite.Suite
	ctx     context.Context
	ctrl    *gomock.Controller
	store   *mocks.MockPresenceStore
	metrics *metrics.Metrics
	manager *Manager
}

func TestManagerFailureSuite(t *testing.T) {
	suite.Run(t, new(ManagerFailureSuite))
}

func (s *ManagerFailureSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockPresenceStore(s.ctrl)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	var err error
	s.manager, err = New(s.store, WithMetrics(s.metrics))
	s.Require().NoError(err)
}

func (s *ManagerFailureSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ManagerFailureSuite) TestRegisterFailureIsSwallowed() {
	errDown := errors.New("redis down")
	s.store.EXPECT().Register(gomock.Any(), domainOne, id.UserID("u1"), id.ConnectionID("c1")).Return(errDown)
	s.store.EXPECT().Register(gomock.Any(), panelTwo, id.UserID("u1"), id.ConnectionID("c1")).Return(nil)

	regs := s.manager.ConnectEntries(s.ctx, "c1", []models.Registration{
		{UserID: "u1", Scope: domainOne},
		{UserID: "u1", Scope: panelTwo},
	})

	s.Equal([]models.Registration{{UserID: "u1", Scope: panelTwo}}, regs)
	s.Equal([]models.Registration{{UserID: "u1", Scope: panelTwo}}, s.manager.Registrations("c1"))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.PresenceFailures.WithLabelValues("register")))
}

func (s *ManagerFailureSuite) TestUnregisterFailureIsSwallowed() {
	s.store.EXPECT().Register(gomock.Any(), domainOne, id.UserID("u1"), id.ConnectionID("c1")).Return(nil)
	s.store.EXPECT().UnregisterIfOwned(gomock.Any(), domainOne, id.UserID("u1"), id.ConnectionID("c1")).
		Return(false, errors.New("redis down"))

	s.manager.ConnectEntries(s.ctx, "c1", []models.Registration{{UserID: "u1", Scope: domainOne}})
	s.manager.Disconnect(s.ctx, "c1")

	s.Empty(s.manager.Registrations("c1"))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.PresenceFailures.WithLabelValues("unregister")))
}

func (s *ManagerFailureSuite) TestRenewFailureIsSwallowed() {
	s.store.EXPECT().Register(gomock.Any(), domainOne, id.UserID("u1"), id.ConnectionID("c1")).Return(nil)
	s.store.EXPECT().Renew(gomock.Any(), domainOne, id.UserID("u1"), id.ConnectionID("c1")).
		Return(false, errors.New("timeout"))

	s.manager.ConnectEntries(s.ctx, "c1", []models.Registration{{UserID: "u1", Scope: domainOne}})

	s.Zero(s.manager.Refresh(s.ctx))
	s.Len(s.manager.Registrations("c1"), 1)
}

func (s *ManagerFailureSuite) TestRefreshRetriesFailedRegistrations() {
	reg := models.Registration{UserID: "u1", Scope: domainOne}
	gomock.InOrder(
		s.store.EXPECT().Register(gomock.Any(), domainOne, id.UserID("u1"), id.ConnectionID("c1")).Return(sentinel.ErrCircuitOpen),
		s.store.EXPECT().Register(gomock.Any(), domainOne, id.UserID("u1"), id.ConnectionID("c1")).Return(errors.New("still down")),
		s.store.EXPECT().Register(gomock.Any(), domainOne, id.UserID("u1"), id.ConnectionID("c1")).Return(nil),
	)

	s.Empty(s.manager.ConnectEntries(s.ctx, "c1", []models.Registration{reg}))
	s.Equal([]models.Registration{reg}, s.manager.Pending("c1"))

	s.Zero(s.manager.Refresh(s.ctx), "store still failing")
	s.Equal([]models.Registration{reg}, s.manager.Pending("c1"))

	s.Equal(1, s.manager.Refresh(s.ctx))
	s.Empty(s.manager.Pending("c1"))
	s.Equal([]models.Registration{reg}, s.manager.Registrations("c1"))

	s.store.EXPECT().Renew(gomock.Any(), domainOne, id.UserID("u1"), id.ConnectionID("c1")).Return(true, nil)
	s.Equal(1, s.manager.Refresh(s.ctx), "restored pairs are renewed like any other")
}

func (s *ManagerFailureSuite) TestDisconnectDropsPendingRegistrations() {
	s.store.EXPECT().Register(gomock.Any(), domainOne, id.UserID("u1"), id.ConnectionID("c1")).Return(errors.New("redis down"))

	s.manager.ConnectEntries(s.ctx, "c1", []models.Registration{{UserID: "u1", Scope: domainOne}})
	s.manager.Disconnect(s.ctx, "c1")

	s.Empty(s.manager.Pending("c1"))
	s.Zero(s.manager.Refresh(s.ctx), "a closed connection is never re-registered")
}
