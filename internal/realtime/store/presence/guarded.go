package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"collabhub/internal/realtime/ports"
	id "collabhub/pkg/domain"
	"collabhub/pkg/platform/circuit"
	"collabhub/pkg/platform/sentinel"
)

// GuardedStore wraps a presence store with a circuit breaker. While the
// breaker is open calls fail fast with sentinel.ErrCircuitOpen instead of
// waiting on a dead backend; one probe per interval is let through.
type GuardedStore struct {
	next    ports.PresenceStore
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// NewGuarded wraps next. A nil logger discards breaker transitions.
func NewGuarded(next ports.PresenceStore, breaker *circuit.Breaker, logger *slog.Logger) *GuardedStore {
	if breaker == nil {
		breaker = circuit.New("presence")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GuardedStore{next: next, breaker: breaker, logger: logger}
}

// Breaker exposes the underlying breaker for health reporting.
func (g *GuardedStore) Breaker() *circuit.Breaker {
	return g.breaker
}

func (g *GuardedStore) Register(ctx context.Context, scope id.Scope, userID id.UserID, connID id.ConnectionID) error {
	if err := g.allow(); err != nil {
		return err
	}
	return g.record(ctx, g.next.Register(ctx, scope, userID, connID))
}

func (g *GuardedStore) Renew(ctx context.Context, scope id.Scope, userID id.UserID, connID id.ConnectionID) (bool, error) {
	if err := g.allow(); err != nil {
		return false, err
	}
	ok, err := g.next.Renew(ctx, scope, userID, connID)
	return ok, g.record(ctx, err)
}

func (g *GuardedStore) Unregister(ctx context.Context, scope id.Scope, userID id.UserID) error {
	if err := g.allow(); err != nil {
		return err
	}
	return g.record(ctx, g.next.Unregister(ctx, scope, userID))
}

func (g *GuardedStore) UnregisterIfOwned(ctx context.Context, scope id.Scope, userID id.UserID, connID id.ConnectionID) (bool, error) {
	if err := g.allow(); err != nil {
		return false, err
	}
	ok, err := g.next.UnregisterIfOwned(ctx, scope, userID, connID)
	return ok, g.record(ctx, err)
}

func (g *GuardedStore) ListOnline(ctx context.Context, scope id.Scope) (map[id.UserID]id.ConnectionID, error) {
	if err := g.allow(); err != nil {
		return nil, err
	}
	online, err := g.next.ListOnline(ctx, scope)
	return online, g.record(ctx, err)
}

func (g *GuardedStore) ResolveConnections(ctx context.Context, scope id.Scope, userIDs []id.UserID) ([]id.ConnectionID, error) {
	if err := g.allow(); err != nil {
		return nil, err
	}
	conns, err := g.next.ResolveConnections(ctx, scope, userIDs)
	return conns, g.record(ctx, err)
}

func (g *GuardedStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	if err := g.allow(); err != nil {
		return 0, err
	}
	n, err := g.next.Sweep(ctx, now)
	return n, g.record(ctx, err)
}

func (g *GuardedStore) allow() error {
	if g.breaker.AllowProbe() {
		return nil
	}
	return fmt.Errorf("%s store: %w", g.breaker.Name(), sentinel.ErrCircuitOpen)
}

// record feeds the outcome to the breaker. Caller cancellation says nothing
// about backend health and is not counted.
func (g *GuardedStore) record(ctx context.Context, err error) error {
	if err == nil {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "presence store circuit closed", "breaker", g.breaker.Name())
		}
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if _, change := g.breaker.RecordFailure(); change.Opened {
		g.logger.WarnContext(ctx, "presence store circuit opened",
			"breaker", g.breaker.Name(),
			"error", err,
		)
	}
	return err
}
