// Package handler exposes the internal HTTP surface of the realtime layer:
// the event trigger endpoint and a presence diagnostics lookup.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"collabhub/internal/realtime/models"
	id "collabhub/pkg/domain"
	dErrors "collabhub/pkg/domain-errors"
	"collabhub/pkg/platform/httputil"
	auth "collabhub/pkg/platform/middleware/auth"
	"collabhub/pkg/platform/sentinel"
)

const maxEventBytes = 1 << 20

// Publisher fans out a validated event descriptor.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) (*models.PublishResult, error)
}

// PresenceReader is the read side of the presence store.
type PresenceReader interface {
	ListOnline(ctx context.Context, scope id.Scope) (map[id.UserID]id.ConnectionID, error)
}

type Handler struct {
	publisher Publisher
	presence  PresenceReader
	validator auth.JWTValidator
	logger    *slog.Logger
}

// PresenceResponse lists who is online in one scope.
type PresenceResponse struct {
	Scope  string            `json:"scope"`
	Online map[string]string `json:"online"`
}

func New(publisher Publisher, presence PresenceReader, validator auth.JWTValidator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		publisher: publisher,
		presence:  presence,
		validator: validator,
		logger:    logger,
	}
}

// Register mounts the internal routes. Every route requires a bearer token.
func (h *Handler) Register(r chi.Router) {
	r.Route("/internal", func(r chi.Router) {
		r.Use(auth.RequireAuth(h.validator, h.logger))
		r.Post("/events", h.HandlePublish)
		r.Get("/presence/{kind}/{id}", h.HandlePresence)
	})
}

// HandlePublish accepts one event envelope and fans it out synchronously.
// Delivery is best effort, so success is 202 with the attempted count.
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "request body unreadable or too large"))
		return
	}

	ev, err := models.DecodeEvent(body)
	if err != nil {
		h.logger.InfoContext(ctx, "rejected event envelope",
			"request_id", chimw.GetReqID(ctx),
			"producer", auth.GetUserID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.publisher.Publish(ctx, ev)
	if err != nil {
		h.logger.ErrorContext(ctx, "publish failed",
			"request_id", chimw.GetReqID(ctx),
			"kind", ev.Kind(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, result)
}

// HandlePresence returns the online snapshot of one scope.
func (h *Handler) HandlePresence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	scope, err := id.NewScope(chi.URLParam(r, "kind"), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	online, err := h.presence.ListOnline(ctx, scope)
	if err != nil {
		h.logger.WarnContext(ctx, "presence lookup failed",
			"request_id", chimw.GetReqID(ctx),
			"scope", scope.String(),
			"error", err,
		)
		code := dErrors.CodeInternal
		if errors.Is(err, sentinel.ErrCircuitOpen) || errors.Is(err, sentinel.ErrUnavailable) {
			code = dErrors.CodeUnavailable
		}
		httputil.WriteError(w, dErrors.Wrap(err, code, "presence store unavailable"))
		return
	}

	resp := PresenceResponse{Scope: scope.String(), Online: make(map[string]string, len(online))}
	for userID, connID := range online {
		resp.Online[userID.String()] = connID.String()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
