package presence

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"collabhub/internal/realtime/ports"
	id "collabhub/pkg/domain"
)

const testLease = 90 * time.Second

var (
	domainOne = id.DomainScope("dom-1")
	domainTwo = id.DomainScope("dom-2")
	panelNine = id.PanelScope("panel-9")
)

// storeContractSuite holds the behaviour every PresenceStore must satisfy.
// Concrete suites embed it and set newStore.
type storeContractSuite struct {
	suite.Suite
	ctx      context.Context
	mu       sync.Mutex
	now      time.Time
	store    ports.PresenceStore
	newStore func(opts ...Option) ports.PresenceStore
}

func (s *storeContractSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store = s.newStore(WithLeaseTTL(testLease), WithClock(s.clock))
}

func (s *storeContractSuite) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *storeContractSuite) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func (s *storeContractSuite) register(scope id.Scope, userID id.UserID, connID id.ConnectionID) {
	s.Require().NoError(s.store.Register(s.ctx, scope, userID, connID))
}

func (s *storeContractSuite) online(scope id.Scope) map[id.UserID]id.ConnectionID {
	online, err := s.store.ListOnline(s.ctx, scope)
	s.Require().NoError(err)
	return online
}

func (s *storeContractSuite) TestRegister() {
	s.Run("later registration for the same user wins", func() {
		s.register(domainOne, "u1", "c1")
		s.register(domainOne, "u1", "c2")

		s.Equal(map[id.UserID]id.ConnectionID{"u1": "c2"}, s.online(domainOne))
	})

	s.Run("scopes are independent", func() {
		s.register(domainTwo, "u7", "c7")
		s.register(panelNine, "u7", "c8")

		s.Equal(id.ConnectionID("c7"), s.online(domainTwo)["u7"])
		s.Equal(id.ConnectionID("c8"), s.online(panelNine)["u7"])
	})
}

func (s *storeContractSuite) TestUnregister() {
	s.Run("missing entry is a no-op", func() {
		s.NoError(s.store.Unregister(s.ctx, domainOne, "ghost"))
	})

	s.Run("removes the entry and allows re-registration", func() {
		s.register(domainOne, "u1", "c1")
		s.Require().NoError(s.store.Unregister(s.ctx, domainOne, "u1"))
		s.Empty(s.online(domainOne))

		s.register(domainOne, "u1", "c3")
		s.Equal(map[id.UserID]id.ConnectionID{"u1": "c3"}, s.online(domainOne))
	})
}

func (s *storeContractSuite) TestUnregisterIfOwned() {
	s.Run("owner removes its entry", func() {
		s.register(domainOne, "u1", "c1")

		removed, err := s.store.UnregisterIfOwned(s.ctx, domainOne, "u1", "c1")
		s.Require().NoError(err)
		s.True(removed)
		s.Empty(s.online(domainOne))
	})

	s.Run("stale connection leaves the newer entry alone", func() {
		s.register(domainTwo, "u1", "old")
		s.register(domainTwo, "u1", "new")

		removed, err := s.store.UnregisterIfOwned(s.ctx, domainTwo, "u1", "old")
		s.Require().NoError(err)
		s.False(removed)
		s.Equal(id.ConnectionID("new"), s.online(domainTwo)["u1"])
	})

	s.Run("missing entry reports false", func() {
		removed, err := s.store.UnregisterIfOwned(s.ctx, panelNine, "ghost", "c1")
		s.Require().NoError(err)
		s.False(removed)
	})
}

func (s *storeContractSuite) TestListOnline() {
	s.Run("unknown scope yields an empty map", func() {
		online := s.online(id.DomainScope("nobody"))
		s.NotNil(online)
		s.Empty(online)
	})

	s.Run("expired leases are not online", func() {
		s.register(domainOne, "u1", "c1")
		s.advance(testLease / 2)
		s.register(domainOne, "u2", "c2")
		s.advance(testLease / 2)

		s.Equal(map[id.UserID]id.ConnectionID{"u2": "c2"}, s.online(domainOne))
	})
}

func (s *storeContractSuite) TestResolveConnections() {
	s.register(domainOne, "u1", "c1")
	s.register(domainOne, "u2", "c2")
	s.register(domainOne, "u3", "c3")

	s.Run("returns only online users in request order", func() {
		conns, err := s.store.ResolveConnections(s.ctx, domainOne, []id.UserID{"u3", "x", "u1"})
		s.Require().NoError(err)
		s.Equal([]id.ConnectionID{"c3", "c1"}, conns)
	})

	s.Run("duplicate user ids yield one connection", func() {
		conns, err := s.store.ResolveConnections(s.ctx, domainOne, []id.UserID{"u2", "u2"})
		s.Require().NoError(err)
		s.Equal([]id.ConnectionID{"c2"}, conns)
	})

	s.Run("no online users yields empty", func() {
		conns, err := s.store.ResolveConnections(s.ctx, domainOne, []id.UserID{"x", "y"})
		s.Require().NoError(err)
		s.Empty(conns)
	})

	s.Run("empty request yields empty", func() {
		conns, err := s.store.ResolveConnections(s.ctx, domainOne, nil)
		s.Require().NoError(err)
		s.Empty(conns)
	})
}

func (s *storeContractSuite) TestRenew() {
	s.Run("owner extends its lease", func() {
		s.register(domainOne, "u1", "c1")
		s.advance(testLease - time.Second)

		renewed, err := s.store.Renew(s.ctx, domainOne, "u1", "c1")
		s.Require().NoError(err)
		s.True(renewed)

		s.advance(testLease - time.Second)
		s.Equal(id.ConnectionID("c1"), s.online(domainOne)["u1"])
	})

	s.Run("absent entry is recreated", func() {
		renewed, err := s.store.Renew(s.ctx, domainTwo, "u5", "c5")
		s.Require().NoError(err)
		s.True(renewed)
		s.Equal(id.ConnectionID("c5"), s.online(domainTwo)["u5"])
	})

	s.Run("entry owned by another live connection is kept", func() {
		s.register(panelNine, "u1", "newer")

		renewed, err := s.store.Renew(s.ctx, panelNine, "u1", "older")
		s.Require().NoError(err)
		s.False(renewed)
		s.Equal(id.ConnectionID("newer"), s.online(panelNine)["u1"])
	})

	s.Run("expired entry of another connection is taken over", func() {
		scope := id.PanelScope("panel-takeover")
		s.register(scope, "u1", "gone")
		s.advance(testLease)

		renewed, err := s.store.Renew(s.ctx, scope, "u1", "alive")
		s.Require().NoError(err)
		s.True(renewed)
		s.Equal(id.ConnectionID("alive"), s.online(scope)["u1"])
	})
}

func (s *storeContractSuite) TestSweep() {
	s.register(domainOne, "u1", "c1")
	s.register(panelNine, "u2", "c2")
	s.advance(testLease / 2)
	s.register(domainOne, "u3", "c3")

	removed, err := s.store.Sweep(s.ctx, s.clock().Add(testLease/2))
	s.Require().NoError(err)
	s.Equal(2, removed)

	s.Equal(map[id.UserID]id.ConnectionID{"u3": "c3"}, s.online(domainOne))
	s.Empty(s.online(panelNine))

	removed, err = s.store.Sweep(s.ctx, s.clock())
	s.Require().NoError(err)
	s.Zero(removed)
}

func (s *storeContractSuite) TestConcurrentRegistrations() {
	const users = 50

	var wg sync.WaitGroup
	for i := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			userID := id.UserID("u" + string(rune('A'+i)))
			_ = s.store.Register(s.ctx, domainOne, userID, id.ConnectionID("c-"+userID))
		}()
	}
	wg.Wait()

	s.Len(s.online(domainOne), users)
}
