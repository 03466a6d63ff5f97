package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	platformmetrics "collabhub/internal/platform/metrics"
	"collabhub/internal/realtime/models"
	"collabhub/internal/realtime/service/lifecycle"
	"collabhub/internal/realtime/store/presence"
	id "collabhub/pkg/domain"
	auth "collabhub/pkg/platform/middleware/auth"
	"collabhub/pkg/platform/sentinel"
)

var domainOne = id.DomainScope("dom-1")

// tokenValidator accepts "token-<user>" and authenticates <user>.
type tokenValidator struct{}

func (tokenValidator) ValidateToken(token string) (*auth.JWTClaims, error) {
	userID, ok := strings.CutPrefix(token, "token-")
	if !ok {
		return nil, errors.New("invalid token")
	}
	return &auth.JWTClaims{UserID: userID}, nil
}

type HubSuite struct {
	suite.Suite
	store   *presence.InMemoryStore
	metrics *platformmetrics.Metrics
	hub     *Hub
	server  *httptest.Server
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubSuite))
}

func (s *HubSuite) SetupTest() {
	s.store = presence.NewInMemory()
	manager, err := lifecycle.New(s.store)
	s.Require().NoError(err)
	s.metrics = platformmetrics.NewWithRegisterer(prometheus.NewRegistry())
	s.hub, err = New(manager, tokenValidator{}, WithMetrics(s.metrics), WithSendBuffer(4))
	s.Require().NoError(err)
	s.server = httptest.NewServer(s.hub)
}

func (s *HubSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.hub.Shutdown(ctx)
	s.server.Close()
}

func (s *HubSuite) dial(token, handshake string) (*websocket.Conn, *http.Response, error) {
	q := url.Values{}
	q.Set("token", token)
	if handshake != "" {
		q.Set("presence", handshake)
	}
	wsURL := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?" + q.Encode()
	return websocket.DefaultDialer.Dial(wsURL, nil)
}

func (s *HubSuite) online(scope id.Scope) map[id.UserID]id.ConnectionID {
	online, err := s.store.ListOnline(context.Background(), scope)
	s.Require().NoError(err)
	return online
}

func (s *HubSuite) waitOnline(scope id.Scope, userID id.UserID) id.ConnectionID {
	var connID id.ConnectionID
	s.Require().Eventually(func() bool {
		var ok bool
		connID, ok = s.online(scope)[userID]
		return ok
	}, time.Second, 5*time.Millisecond)
	return connID
}

func (s *HubSuite) TestConnectRegistersPresenceAndDelivers() {
	conn, _, err := s.dial("token-u1", `[{"userId":"u1","scopeKind":"domain","scopeId":"dom-1"}]`)
	s.Require().NoError(err)
	defer conn.Close()

	connID := s.waitOnline(domainOne, "u1")

	err = s.hub.Deliver(context.Background(), connID, models.EventAnnouncement, models.Payload{Message: "hello"})
	s.Require().NoError(err)

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(time.Second)))
	var frame struct {
		Event   string         `json:"event"`
		Payload models.Payload `json:"payload"`
	}
	s.Require().NoError(conn.ReadJSON(&frame))
	s.Equal(models.EventAnnouncement, frame.Event)
	s.Equal("hello", frame.Payload.Message)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.ConnectionsActive))
}

func (s *HubSuite) TestDisconnectRemovesPresence() {
	conn, _, err := s.dial("token-u1", `{"userId":"u1","scopeKind":"domain","scopeId":"dom-1"}`)
	s.Require().NoError(err)
	s.waitOnline(domainOne, "u1")

	s.Require().NoError(conn.Close())

	s.Eventually(func() bool {
		return len(s.online(domainOne)) == 0 && s.hub.Count() == 0
	}, time.Second, 5*time.Millisecond)
}

func (s *HubSuite) TestClaimsForOtherUsersAreDropped() {
	conn, _, err := s.dial("token-u1", `[
		{"userId":"u1","scopeKind":"domain","scopeId":"dom-1"},
		{"userId":"u2","scopeKind":"domain","scopeId":"dom-1"}
	]`)
	s.Require().NoError(err)
	defer conn.Close()

	s.waitOnline(domainOne, "u1")
	s.NotContains(s.online(domainOne), id.UserID("u2"))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.PresenceIgnored.WithLabelValues("foreign_user")))
}

func (s *HubSuite) TestMalformedHandshakeKeepsConnection() {
	conn, _, err := s.dial("token-u1", `not json`)
	s.Require().NoError(err)
	defer conn.Close()

	s.Eventually(func() bool { return s.hub.Count() == 1 }, time.Second, 5*time.Millisecond)
	s.Empty(s.online(domainOne))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.PresenceIgnored.WithLabelValues("malformed")))
	s.Zero(testutil.CollectAndCount(s.metrics.HandshakesRejected), "an accepted connection is not a rejected handshake")
}

func (s *HubSuite) TestUnauthorizedIsRejected() {
	_, resp, err := s.dial("garbage", "")
	s.Require().Error(err)
	s.Require().NotNil(resp)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Zero(s.hub.Count())
}

func (s *HubSuite) TestDeliverToUnknownConnection() {
	err := s.hub.Deliver(context.Background(), "ghost", models.EventAnnouncement, nil)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *HubSuite) TestShutdownClosesSockets() {
	conn, _, err := s.dial("token-u1", `{"userId":"u1","scopeKind":"domain","scopeId":"dom-1"}`)
	s.Require().NoError(err)
	defer conn.Close()
	s.waitOnline(domainOne, "u1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Require().NoError(s.hub.Shutdown(ctx))

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = conn.ReadMessage()
	s.True(websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	s.Empty(s.online(domainOne))
}

func TestAllowedOrigins(t *testing.T) {
	manager, err := lifecycle.New(presence.NewInMemory())
	if err != nil {
		t.Fatal(err)
	}
	hub, err := New(manager, tokenValidator{}, WithAllowedOrigins([]string{"https://app.example.com"}))
	if err != nil {
		t.Fatal(err)
	}

	allowed := httptest.NewRequest(http.MethodGet, "/ws", nil)
	allowed.Header.Set("Origin", "https://app.example.com")
	denied := httptest.NewRequest(http.MethodGet, "/ws", nil)
	denied.Header.Set("Origin", "https://evil.example.com")

	if !hub.upgrader.CheckOrigin(allowed) {
		t.Fatal("expected configured origin to be allowed")
	}
	if hub.upgrader.CheckOrigin(denied) {
		t.Fatal("expected unknown origin to be denied")
	}
}
