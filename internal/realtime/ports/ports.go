// Package ports defines the interfaces shared by the realtime services.
// Interfaces live here because several services consume them.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	id "collabhub/pkg/domain"
)

// PresenceStore is the shared registry of who is online where. It is the
// only source of truth for presence; callers must not cache its answers
// beyond one operation.
type PresenceStore interface {
	// Register upserts (scope, userID) → connID. Last write wins.
	Register(ctx context.Context, scope id.Scope, userID id.UserID, connID id.ConnectionID) error

	// Renew extends the lease of an entry owned by connID, re-creating it when
	// absent. Returns false when another connection owns the entry.
	Renew(ctx context.Context, scope id.Scope, userID id.UserID, connID id.ConnectionID) (bool, error)

	// Unregister removes the entry if present. Absent entries are not an error.
	Unregister(ctx context.Context, scope id.Scope, userID id.UserID) error

	// UnregisterIfOwned removes the entry only when it still points at connID.
	UnregisterIfOwned(ctx context.Context, scope id.Scope, userID id.UserID, connID id.ConnectionID) (bool, error)

	// ListOnline returns a snapshot of the scope's live entries.
	ListOnline(ctx context.Context, scope id.Scope) (map[id.UserID]id.ConnectionID, error)

	// ResolveConnections returns connections of the given users that are
	// online in scope. Offline users are silently dropped.
	ResolveConnections(ctx context.Context, scope id.Scope, userIDs []id.UserID) ([]id.ConnectionID, error)

	// Sweep removes entries whose lease expired at or before now.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// MembershipResolver answers read-only membership questions.
type MembershipResolver interface {
	// MembersOf returns the members of a domain or panel. Unknown or empty
	// scopes return an empty slice and no error.
	MembersOf(ctx context.Context, scope id.Scope) ([]id.UserID, error)
}

// Directory looks up display data used only for rendering messages.
// Missing rows return sentinel.ErrNotFound.
type Directory interface {
	DomainName(ctx context.Context, domainID string) (string, error)
	PanelName(ctx context.Context, panelID string) (string, error)
	UserName(ctx context.Context, userID id.UserID) (string, error)
	DomainOwner(ctx context.Context, domainID string) (id.UserID, error)
}

// Transport delivers one event to one live connection.
type Transport interface {
	Deliver(ctx context.Context, connID id.ConnectionID, event string, payload any) error
}
