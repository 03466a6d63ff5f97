// Package gateway terminates client websockets and implements the outbound
// delivery transport. The hub knows which sockets are open on this process;
// who is online is the presence store's business.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mssola/useragent"

	platformmetrics "collabhub/internal/platform/metrics"
	"collabhub/internal/realtime/models"
	id "collabhub/pkg/domain"
	dErrors "collabhub/pkg/domain-errors"
	"collabhub/pkg/platform/httputil"
	auth "collabhub/pkg/platform/middleware/auth"
	"collabhub/pkg/platform/sentinel"
)

// ErrSendBufferFull is returned by Deliver when a slow client has not drained
// its queue. The frame is dropped.
var ErrSendBufferFull = errors.New("send buffer full")

const (
	defaultSendBuffer = 32
	defaultWriteWait  = 10 * time.Second
	defaultPongWait   = 60 * time.Second
)

// Lifecycle registers and releases presence for a connection.
type Lifecycle interface {
	ConnectEntries(ctx context.Context, connID id.ConnectionID, regs []models.Registration) []models.Registration
	Disconnect(ctx context.Context, connID id.ConnectionID)
}

type Hub struct {
	lifecycle Lifecycle
	validator auth.JWTValidator
	upgrader  websocket.Upgrader
	logger    *slog.Logger
	metrics   *platformmetrics.Metrics

	sendBuffer int
	writeWait  time.Duration
	pongWait   time.Duration

	mu      sync.RWMutex
	clients map[id.ConnectionID]*client
}

type Option func(*Hub)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

func WithMetrics(m *platformmetrics.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithAllowedOrigins restricts upgrades to the listed Origin values. An
// empty list, or "*", allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		if len(origins) == 0 || slices.Contains(origins, "*") {
			return
		}
		allowed := slices.Clone(origins)
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(allowed, r.Header.Get("Origin"))
		}
	}
}

// WithSendBuffer sets how many frames may queue per connection.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithKeepalive sets the pong deadline; pings go out at 9/10 of it.
func WithKeepalive(pongWait time.Duration) Option {
	return func(h *Hub) {
		if pongWait > 0 {
			h.pongWait = pongWait
		}
	}
}

func New(lifecycle Lifecycle, validator auth.JWTValidator, opts ...Option) (*Hub, error) {
	if lifecycle == nil {
		return nil, errors.New("lifecycle manager is required")
	}
	if validator == nil {
		return nil, errors.New("token validator is required")
	}
	h := &Hub{
		lifecycle: lifecycle,
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:     slog.New(slog.DiscardHandler),
		sendBuffer: defaultSendBuffer,
		writeWait:  defaultWriteWait,
		pongWait:   defaultPongWait,
		clients:    make(map[id.ConnectionID]*client),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Deliver queues one frame for connID. Unknown or closing connections yield
// sentinel.ErrNotFound; a full queue drops the frame with ErrSendBufferFull.
func (h *Hub) Deliver(_ context.Context, connID id.ConnectionID, event string, payload any) error {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("connection %s: %w", connID, sentinel.ErrNotFound)
	}

	frame, err := json.Marshal(models.Frame{Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", event, err)
	}

	select {
	case <-c.done:
		return fmt.Errorf("connection %s: %w", connID, sentinel.ErrNotFound)
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return fmt.Errorf("connection %s: %w", connID, ErrSendBufferFull)
	}
}

// ServeHTTP authenticates, upgrades, registers presence and then blocks
// serving the socket until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := auth.Authenticate(r, h.validator)
	if err != nil {
		h.rejected("unauthorized")
		h.logger.InfoContext(ctx, "websocket handshake rejected", "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid token"))
		return
	}

	regs := h.claims(ctx, userID, r.URL.Query().Get("presence"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.rejected("upgrade_failed")
		h.logger.InfoContext(ctx, "websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	c := newClient(id.NewConnectionID(), userID, conn, h.sendBuffer)
	h.add(c)

	registered := h.lifecycle.ConnectEntries(ctx, c.id, regs)
	ua := useragent.New(r.UserAgent())
	browser, version := ua.Browser()
	h.logger.InfoContext(ctx, "websocket connected",
		"conn_id", c.id,
		"user_id", userID,
		"registered", len(registered),
		"browser", browser,
		"browser_version", version,
		"os", ua.OS(),
		"mobile", ua.Mobile(),
	)

	go c.writePump(h.writeWait, h.pingPeriod(), h.frameSent)
	c.readPump(h.pongWait)

	h.lifecycle.Disconnect(ctx, c.id)
	h.remove(c)
	h.logger.InfoContext(ctx, "websocket disconnected", "conn_id", c.id, "user_id", userID)
}

// Shutdown closes every socket and waits for their presence cleanup, or
// until ctx is done.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.RLock()
	for _, c := range h.clients {
		c.close()
	}
	h.mu.RUnlock()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if h.Count() == 0 {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Count reports open sockets on this process.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// claims parses the presence query parameter and keeps only the entries
// the authenticated user may make. A malformed payload yields no claims.
func (h *Hub) claims(ctx context.Context, userID id.UserID, raw string) []models.Registration {
	regs, err := models.ParseHandshake([]byte(raw))
	if err != nil {
		h.claimsIgnored("malformed", 1)
		h.logger.WarnContext(ctx, "malformed presence handshake", "user_id", userID, "error", err)
		return nil
	}
	own := slices.DeleteFunc(regs, func(reg models.Registration) bool {
		return reg.UserID != userID
	})
	if dropped := len(regs) - len(own); dropped > 0 {
		h.claimsIgnored("foreign_user", dropped)
		h.logger.WarnContext(ctx, "dropped presence claims for another user",
			"user_id", userID,
			"dropped", dropped,
		)
	}
	return own
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ConnectionOpened()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ConnectionClosed()
	}
}

func (h *Hub) pingPeriod() time.Duration {
	return h.pongWait * 9 / 10
}

func (h *Hub) rejected(reason string) {
	if h.metrics != nil {
		h.metrics.HandshakeRejected(reason)
	}
}

func (h *Hub) claimsIgnored(reason string, n int) {
	if h.metrics != nil {
		h.metrics.PresenceClaimsIgnored(reason, n)
	}
}

func (h *Hub) frameSent() {
	if h.metrics != nil {
		h.metrics.FrameSent()
	}
}
