package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	dErrors "collabhub/pkg/domain-errors"
)

// UserID identifies an authenticated user. Values are opaque to this service;
// the relational store owns their format.
type UserID string

// ConnectionID identifies one live client link. Valid only while the link is up.
type ConnectionID string

// ScopeKind distinguishes tenant boundaries used for presence.
type ScopeKind string

const (
	ScopeDomain ScopeKind = "domain"
	ScopePanel  ScopeKind = "panel"
)

// IsValid reports whether k is a known scope kind.
func (k ScopeKind) IsValid() bool {
	return k == ScopeDomain || k == ScopePanel
}

// Scope is a tenant boundary under which presence is tracked.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	ID   string    `json:"id"`
}

// DomainScope builds a domain scope.
func DomainScope(id string) Scope { return Scope{Kind: ScopeDomain, ID: id} }

// PanelScope builds a panel scope.
func PanelScope(id string) Scope { return Scope{Kind: ScopePanel, ID: id} }

// String renders the scope as "kind:id".
func (s Scope) String() string {
	return string(s.Kind) + ":" + s.ID
}

// IsZero reports whether s is the zero scope.
func (s Scope) IsZero() bool {
	return s.Kind == "" && s.ID == ""
}

// Validate enforces a known kind and a non-empty id.
func (s Scope) Validate() error {
	if !s.Kind.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown scope kind %q", s.Kind))
	}
	if strings.TrimSpace(s.ID) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "scope id is required")
	}
	return nil
}

// NewScope validates and builds a scope from its parts.
func NewScope(kind, id string) (Scope, error) {
	s := Scope{Kind: ScopeKind(strings.ToLower(strings.TrimSpace(kind))), ID: strings.TrimSpace(id)}
	if err := s.Validate(); err != nil {
		return Scope{}, err
	}
	return s, nil
}

// ParseScope parses the "kind:id" text form.
func ParseScope(s string) (Scope, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return Scope{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("malformed scope %q", s))
	}
	return NewScope(kind, id)
}

// ParseUserID trims and rejects empty user ids.
func ParseUserID(s string) (UserID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	return UserID(trimmed), nil
}

func (u UserID) String() string { return string(u) }

// IsNil reports whether the id is empty.
func (u UserID) IsNil() bool { return u == "" }

// NewConnectionID allocates a fresh random connection id.
func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

func (c ConnectionID) String() string { return string(c) }

// IsNil reports whether the id is empty.
func (c ConnectionID) IsNil() bool { return c == "" }
