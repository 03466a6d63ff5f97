package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	id "collabhub/pkg/domain"
)

// Registration is one (user, scope) presence claim made by a connection.
type Registration struct {
	UserID id.UserID
	Scope  id.Scope
}

// handshakeEntry is the wire shape of one presence claim.
type handshakeEntry struct {
	UserID    flexString `json:"userId"`
	ScopeKind string     `json:"scopeKind"`
	ScopeID   flexString `json:"scopeId"`
}

// flexString accepts JSON strings and numbers, since producers send numeric
// ids as often as string ids.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

// ParseHandshake decodes the presence claims of a connect handshake: a JSON
// array of {userId, scopeKind, scopeId} objects or a single such object.
// Any invalid element rejects the whole payload. Duplicate claims collapse.
// An empty payload yields no claims and no error.
func ParseHandshake(data []byte) ([]Registration, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var entries []handshakeEntry
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decode handshake array: %w", err)
		}
	case '{':
		var single handshakeEntry
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("decode handshake object: %w", err)
		}
		entries = []handshakeEntry{single}
	default:
		return nil, fmt.Errorf("handshake must be a JSON object or array")
	}

	seen := make(map[Registration]struct{}, len(entries))
	regs := make([]Registration, 0, len(entries))
	for i, entry := range entries {
		userID, err := id.ParseUserID(string(entry.UserID))
		if err != nil {
			return nil, fmt.Errorf("handshake entry %d: %w", i, err)
		}
		scope, err := id.NewScope(entry.ScopeKind, string(entry.ScopeID))
		if err != nil {
			return nil, fmt.Errorf("handshake entry %d: %w", i, err)
		}
		reg := Registration{UserID: userID, Scope: scope}
		if _, dup := seen[reg]; dup {
			continue
		}
		seen[reg] = struct{}{}
		regs = append(regs, reg)
	}
	return regs, nil
}

// EncodeHandshake renders claims in the array wire form.
func EncodeHandshake(regs []Registration) ([]byte, error) {
	entries := make([]handshakeEntry, 0, len(regs))
	for _, r := range regs {
		entries = append(entries, handshakeEntry{
			UserID:    flexString(r.UserID),
			ScopeKind: string(r.Scope.Kind),
			ScopeID:   flexString(r.Scope.ID),
		})
	}
	return json.Marshal(entries)
}

func (r Registration) String() string {
	return strings.Join([]string{r.UserID.String(), r.Scope.String()}, "@")
}
