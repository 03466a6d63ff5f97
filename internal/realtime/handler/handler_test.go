package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"collabhub/internal/realtime/models"
	"collabhub/internal/realtime/ports/mocks"
	"collabhub/internal/realtime/store/presence"
	id "collabhub/pkg/domain"
	auth "collabhub/pkg/platform/middleware/auth"
	"collabhub/pkg/platform/sentinel"
	"collabhub/pkg/testutil"
)

const producerToken = "producer-token"

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*auth.JWTClaims, error) {
	if token != producerToken {
		return nil, errors.New("invalid token")
	}
	return &auth.JWTClaims{UserID: "svc-tasks"}, nil
}

type stubPublisher struct {
	events []models.Event
	err    error
}

func (p *stubPublisher) Publish(_ context.Context, ev models.Event) (*models.PublishResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.events = append(p.events, ev)
	return &models.PublishResult{Event: ev.EventName(), Recipients: 2, Attempted: 2}, nil
}

type HandlerSuite struct {
	suite.Suite
	publisher *stubPublisher
	presence  *presence.InMemoryStore
	router    chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.publisher = &stubPublisher{}
	s.presence = presence.NewInMemory()
	s.router = chi.NewRouter()
	New(s.publisher, s.presence, stubValidator{}, nil).Register(s.router)
}

func (s *HandlerSuite) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	token := ""
	if authed {
		token = producerToken
	}
	return testutil.DoRequest(s.router, testutil.NewJSONRequest(method, path, body, token))
}

func (s *HandlerSuite) TestPublish() {
	s.Run("valid envelope is accepted", func() {
		rec := s.do(http.MethodPost, "/internal/events",
			`{"kind":"general_announcement","scope":{"kind":"domain","id":"dom-1"},"message":"hello"}`, true)

		s.Equal(http.StatusAccepted, rec.Code)
		result := testutil.DecodeJSON[models.PublishResult](s.T(), rec)
		s.Equal(models.PublishResult{Event: models.EventAnnouncement, Recipients: 2, Attempted: 2}, result)
		s.Require().Len(s.publisher.events, 1)
		s.Equal(models.GeneralAnnouncement{
			Scope:   id.DomainScope("dom-1"),
			Content: models.Content{Message: "hello"},
		}, s.publisher.events[0])
	})

	s.Run("contract violation is 400", func() {
		rec := s.do(http.MethodPost, "/internal/events", `{"kind":"panel_announcement","domainId":"dom-1"}`, true)

		testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, "invalid_input")
	})

	s.Run("malformed json is 400", func() {
		rec := s.do(http.MethodPost, "/internal/events", `{`, true)
		testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, "invalid_input")
	})

	s.Run("oversized body is 400", func() {
		big := fmt.Sprintf(`{"kind":"general_announcement","message":"%s"}`, strings.Repeat("x", maxEventBytes))
		rec := s.do(http.MethodPost, "/internal/events", big, true)
		testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, "bad_request")
	})

	s.Run("missing token is 401", func() {
		rec := s.do(http.MethodPost, "/internal/events", `{}`, false)
		testutil.AssertStatusAndError(s.T(), rec, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("query token is 401", func() {
		body := `{"kind":"general_announcement","scope":{"kind":"domain","id":"dom-1"},"message":"spoofed"}`
		rec := s.do(http.MethodPost, "/internal/events?token="+producerToken, body, false)
		testutil.AssertStatusAndError(s.T(), rec, http.StatusUnauthorized, "unauthorized")
		s.Empty(s.publisher.events)
	})

	s.Run("end-user token is 401", func() {
		body := `{"kind":"general_announcement","scope":{"kind":"domain","id":"dom-1"},"message":"spoofed"}`
		rec := testutil.DoRequest(s.router, testutil.NewJSONRequest(http.MethodPost, "/internal/events", body, "user-mallory"))
		testutil.AssertStatusAndError(s.T(), rec, http.StatusUnauthorized, "unauthorized")
		s.Empty(s.publisher.events)
	})

	s.Run("unexpected publish failure hides details", func() {
		s.publisher.err = errors.New("boom")
		defer func() { s.publisher.err = nil }()

		rec := s.do(http.MethodPost, "/internal/events",
			`{"kind":"general_announcement","scope":{"kind":"domain","id":"dom-1"}}`, true)

		s.Equal(http.StatusInternalServerError, rec.Code)
		s.NotContains(rec.Body.String(), "boom")
	})
}

func (s *HandlerSuite) TestPresence() {
	s.Require().NoError(s.presence.Register(context.Background(), id.PanelScope("p-1"), "u1", "c1"))

	s.Run("lists online users", func() {
		rec := s.do(http.MethodGet, "/internal/presence/panel/p-1", "", true)

		s.Equal(http.StatusOK, rec.Code)
		s.Equal(PresenceResponse{Scope: "panel:p-1", Online: map[string]string{"u1": "c1"}}, testutil.DecodeJSON[PresenceResponse](s.T(), rec))
	})

	s.Run("unknown scope kind is 400", func() {
		rec := s.do(http.MethodGet, "/internal/presence/tenant/p-1", "", true)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func TestPresenceStoreUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockPresenceStore(ctrl)
	store.EXPECT().ListOnline(gomock.Any(), id.DomainScope("dom-1")).
		Return(nil, fmt.Errorf("presence store: %w", sentinel.ErrCircuitOpen))

	router := chi.NewRouter()
	New(&stubPublisher{}, store, stubValidator{}, nil).Register(router)

	rec := testutil.DoRequest(router, testutil.NewJSONRequest(http.MethodGet, "/internal/presence/domain/dom-1", "", producerToken))
	testutil.AssertStatusAndError(t, rec, http.StatusServiceUnavailable, "unavailable")
}
