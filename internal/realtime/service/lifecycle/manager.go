// Package lifecycle ties connection open/close to presence registration.
//
// The manager remembers exactly which (user, scope) pairs each connection
// registered so disconnect removes those and nothing else. Store failures are
// logged and swallowed: a connection is never refused because presence could
// not be written. Pairs whose registration failed are kept pending and retried
// on every refresh until the store accepts them or the connection closes.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"collabhub/internal/realtime/metrics"
	"collabhub/internal/realtime/models"
	"collabhub/internal/realtime/ports"
	id "collabhub/pkg/domain"
)

const defaultCleanupTimeout = 5 * time.Second

type Manager struct {
	store          ports.PresenceStore
	logger         *slog.Logger
	metrics        *metrics.Metrics
	cleanupTimeout time.Duration

	mu      sync.Mutex
	conns   map[id.ConnectionID][]models.Registration
	pending map[id.ConnectionID][]models.Registration
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithCleanupTimeout bounds the presence cleanup run on disconnect.
func WithCleanupTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.cleanupTimeout = d
		}
	}
}

func New(store ports.PresenceStore, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("presence store is required")
	}
	m := &Manager{
		store:          store,
		logger:         slog.New(slog.DiscardHandler),
		cleanupTimeout: defaultCleanupTimeout,
		conns:          make(map[id.ConnectionID][]models.Registration),
		pending:        make(map[id.ConnectionID][]models.Registration),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Connect parses the handshake and registers every claim it contains.
// A malformed handshake registers nothing; the connection stays usable.
func (m *Manager) Connect(ctx context.Context, connID id.ConnectionID, handshake []byte) []models.Registration {
	regs, err := models.ParseHandshake(handshake)
	if err != nil {
		m.logger.WarnContext(ctx, "malformed presence handshake",
			"conn_id", connID,
			"error", err,
		)
		return nil
	}
	return m.ConnectEntries(ctx, connID, regs)
}

// ConnectEntries registers already-parsed claims and returns the ones the
// store accepted. Rejected claims are retried by Refresh.
func (m *Manager) ConnectEntries(ctx context.Context, connID id.ConnectionID, regs []models.Registration) []models.Registration {
	registered := make([]models.Registration, 0, len(regs))
	var failed []models.Registration
	for _, reg := range regs {
		if err := m.store.Register(ctx, reg.Scope, reg.UserID, connID); err != nil {
			m.logger.WarnContext(ctx, "presence register failed",
				"conn_id", connID,
				"user_id", reg.UserID,
				"scope", reg.Scope.String(),
				"error", err,
			)
			m.failure("register")
			failed = append(failed, reg)
			continue
		}
		registered = append(registered, reg)
		if m.metrics != nil {
			m.metrics.IncrementRegistered()
		}
	}

	m.mu.Lock()
	for _, reg := range registered {
		m.track(connID, reg)
	}
	for _, reg := range failed {
		if !slices.Contains(m.pending[connID], reg) && !slices.Contains(m.conns[connID], reg) {
			m.pending[connID] = append(m.pending[connID], reg)
		}
	}
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "connection registered presence",
		"conn_id", connID,
		"requested", len(regs),
		"registered", len(registered),
	)
	return registered
}

// Disconnect removes the presence entries connID registered. Entries since
// overwritten by a newer connection of the same user are left alone. Safe to
// call more than once; cleanup runs even when ctx is already cancelled.
func (m *Manager) Disconnect(ctx context.Context, connID id.ConnectionID) {
	m.mu.Lock()
	regs, ok := m.conns[connID]
	delete(m.conns, connID)
	delete(m.pending, connID)
	m.mu.Unlock()
	if !ok {
		return
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cleanupTimeout)
	defer cancel()

	for _, reg := range regs {
		m.unregister(cleanupCtx, connID, reg)
	}
}

// Refresh renews the lease of every tracked registration, retries pending
// ones, and returns how many pairs are live afterwards.
func (m *Manager) Refresh(ctx context.Context) int {
	m.mu.Lock()
	snapshot := make(map[id.ConnectionID][]models.Registration, len(m.conns))
	for connID, regs := range m.conns {
		snapshot[connID] = slices.Clone(regs)
	}
	retry := make(map[id.ConnectionID][]models.Registration, len(m.pending))
	for connID, regs := range m.pending {
		retry[connID] = slices.Clone(regs)
	}
	m.mu.Unlock()

	renewed := m.retryPending(ctx, retry)
	for connID, regs := range snapshot {
		for _, reg := range regs {
			ok, err := m.store.Renew(ctx, reg.Scope, reg.UserID, connID)
			if err != nil {
				m.logger.WarnContext(ctx, "presence renew failed",
					"conn_id", connID,
					"user_id", reg.UserID,
					"scope", reg.Scope.String(),
					"error", err,
				)
				m.failure("renew")
				continue
			}
			if !ok {
				// Superseded by a newer connection of the same user.
				continue
			}
			if !m.isTracked(connID, reg) {
				// Disconnect ran while renewing; undo what the renew recreated.
				m.unregister(context.WithoutCancel(ctx), connID, reg)
				continue
			}
			renewed++
		}
	}
	return renewed
}

func (m *Manager) retryPending(ctx context.Context, retry map[id.ConnectionID][]models.Registration) int {
	restored := 0
	for connID, regs := range retry {
		for _, reg := range regs {
			if err := m.store.Register(ctx, reg.Scope, reg.UserID, connID); err != nil {
				m.logger.DebugContext(ctx, "pending presence still rejected",
					"conn_id", connID,
					"user_id", reg.UserID,
					"error", err,
				)
				m.failure("register")
				continue
			}
			m.mu.Lock()
			stillOpen := slices.Contains(m.pending[connID], reg)
			if stillOpen {
				m.track(connID, reg)
			}
			m.mu.Unlock()
			if !stillOpen {
				// Disconnect ran while registering.
				m.unregister(context.WithoutCancel(ctx), connID, reg)
				continue
			}
			m.logger.InfoContext(ctx, "pending presence registered",
				"conn_id", connID,
				"user_id", reg.UserID,
				"scope", reg.Scope.String(),
			)
			if m.metrics != nil {
				m.metrics.IncrementRegistered()
			}
			restored++
		}
	}
	return restored
}

// Run refreshes leases every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Registrations returns the pairs tracked for connID.
func (m *Manager) Registrations(connID id.ConnectionID) []models.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.conns[connID])
}

// Connections reports how many connections hold tracked registrations.
func (m *Manager) Connections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

func (m *Manager) unregister(ctx context.Context, connID id.ConnectionID, reg models.Registration) {
	removed, err := m.store.UnregisterIfOwned(ctx, reg.Scope, reg.UserID, connID)
	if err != nil {
		m.logger.WarnContext(ctx, "presence unregister failed",
			"conn_id", connID,
			"user_id", reg.UserID,
			"scope", reg.Scope.String(),
			"error", err,
		)
		m.failure("unregister")
		return
	}
	if !removed {
		m.logger.DebugContext(ctx, "presence entry owned by another connection",
			"conn_id", connID,
			"user_id", reg.UserID,
			"scope", reg.Scope.String(),
		)
	}
}

// track moves reg from pending to tracked. mu must be held.
func (m *Manager) track(connID id.ConnectionID, reg models.Registration) {
	if !slices.Contains(m.conns[connID], reg) {
		m.conns[connID] = append(m.conns[connID], reg)
	}
	if pending := slices.DeleteFunc(m.pending[connID], func(r models.Registration) bool { return r == reg }); len(pending) > 0 {
		m.pending[connID] = pending
	} else {
		delete(m.pending, connID)
	}
}

// Pending returns the pairs of connID still waiting for the store.
func (m *Manager) Pending(connID id.ConnectionID) []models.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.pending[connID])
}

func (m *Manager) isTracked(connID id.ConnectionID, reg models.Registration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.conns[connID], reg)
}

func (m *Manager) failure(op string) {
	if m.metrics != nil {
		m.metrics.IncrementPresenceFailure(op)
	}
}
