package presence

import (
	"context"
	"sync"
	"time"

	"collabhub/internal/realtime/metrics"
	id "collabhub/pkg/domain"
)

// InMemoryStore implements ports.PresenceStore inside one process.
// Suitable for single-instance development and tests; multi-process
// deployments must use RedisStore.
type InMemoryStore struct {
	mu       sync.RWMutex
	scopes   map[id.Scope]map[id.UserID]memoryEntry
	leaseTTL time.Duration
	now      func() time.Time
}

type memoryEntry struct {
	connID    id.ConnectionID
	expiresAt time.Time
}

// Option configures presence stores.
type Option func(*options)

type options struct {
	leaseTTL  time.Duration
	now       func() time.Time
	keyPrefix string
	metrics   *metrics.Metrics
}

// WithLeaseTTL sets the lease granted by Register and Renew. Zero disables expiry.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.leaseTTL = ttl
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithKeyPrefix namespaces Redis keys. Ignored by the in-memory store.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

// WithMetrics records per-operation latency. Ignored by the in-memory store.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, keyPrefix: "presence"}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// NewInMemory creates an empty in-memory presence store.
func NewInMemory(opts ...Option) *InMemoryStore {
	o := buildOptions(opts)
	return &InMemoryStore{
		scopes:   make(map[id.Scope]map[id.UserID]memoryEntry),
		leaseTTL: o.leaseTTL,
		now:      o.now,
	}
}

func (s *InMemoryStore) Register(_ context.Context, scope id.Scope, userID id.UserID, connID id.ConnectionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(scope, userID, connID)
	return nil
}

func (s *InMemoryStore) Renew(_ context.Context, scope id.Scope, userID id.UserID, connID id.ConnectionID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.live(scope, userID); ok && current.connID != connID {
		return false, nil
	}
	s.put(scope, userID, connID)
	return true, nil
}

func (s *InMemoryStore) Unregister(_ context.Context, scope id.Scope, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(scope, userID)
	return nil
}

func (s *InMemoryStore) UnregisterIfOwned(_ context.Context, scope id.Scope, userID id.UserID, connID id.ConnectionID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.scopes[scope][userID]
	if !ok || entry.connID != connID {
		return false, nil
	}
	s.remove(scope, userID)
	return true, nil
}

func (s *InMemoryStore) ListOnline(_ context.Context, scope id.Scope) (map[id.UserID]id.ConnectionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	online := make(map[id.UserID]id.ConnectionID, len(s.scopes[scope]))
	for userID, entry := range s.scopes[scope] {
		if entry.expired(now) {
			continue
		}
		online[userID] = entry.connID
	}
	return online, nil
}

func (s *InMemoryStore) ResolveConnections(ctx context.Context, scope id.Scope, userIDs []id.UserID) ([]id.ConnectionID, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	online, err := s.ListOnline(ctx, scope)
	if err != nil {
		return nil, err
	}
	return pick(online, userIDs), nil
}

func (s *InMemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for scope, users := range s.scopes {
		for userID, entry := range users {
			if entry.expired(now) {
				delete(users, userID)
				removed++
			}
		}
		if len(users) == 0 {
			delete(s.scopes, scope)
		}
	}
	return removed, nil
}

func (s *InMemoryStore) put(scope id.Scope, userID id.UserID, connID id.ConnectionID) {
	users, ok := s.scopes[scope]
	if !ok {
		users = make(map[id.UserID]memoryEntry)
		s.scopes[scope] = users
	}
	entry := memoryEntry{connID: connID}
	if s.leaseTTL > 0 {
		entry.expiresAt = s.now().Add(s.leaseTTL)
	}
	users[userID] = entry
}

func (s *InMemoryStore) live(scope id.Scope, userID id.UserID) (memoryEntry, bool) {
	entry, ok := s.scopes[scope][userID]
	if !ok || entry.expired(s.now()) {
		return memoryEntry{}, false
	}
	return entry, true
}

func (s *InMemoryStore) remove(scope id.Scope, userID id.UserID) {
	users, ok := s.scopes[scope]
	if !ok {
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(s.scopes, scope)
	}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// pick returns the connections of userIDs present in online, deduplicated,
// in the order userIDs lists them.
func pick(online map[id.UserID]id.ConnectionID, userIDs []id.UserID) []id.ConnectionID {
	seen := make(map[id.ConnectionID]struct{}, len(userIDs))
	conns := make([]id.ConnectionID, 0, len(userIDs))
	for _, userID := range userIDs {
		connID, ok := online[userID]
		if !ok {
			continue
		}
		if _, dup := seen[connID]; dup {
			continue
		}
		seen[connID] = struct{}{}
		conns = append(conns, connID)
	}
	return conns
}
