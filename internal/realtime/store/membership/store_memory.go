package membership

import (
	"context"
	"fmt"
	"sync"

	id "collabhub/pkg/domain"
	"collabhub/pkg/platform/sentinel"
)

type domainRecord struct {
	name  string
	owner id.UserID
}

// InMemoryStore serves membership and naming data from seeded maps. Used by
// tests and by single-process development when no database is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	members map[id.Scope][]id.UserID
	domains map[string]domainRecord
	panels  map[string]string
	users   map[id.UserID]string
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		members: make(map[id.Scope][]id.UserID),
		domains: make(map[string]domainRecord),
		panels:  make(map[string]string),
		users:   make(map[id.UserID]string),
	}
}

// SetMembers replaces the member list of scope.
func (s *InMemoryStore) SetMembers(scope id.Scope, userIDs ...id.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[scope] = append([]id.UserID(nil), userIDs...)
}

func (s *InMemoryStore) SetDomain(domainID, name string, owner id.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains[domainID] = domainRecord{name: name, owner: owner}
}

func (s *InMemoryStore) SetPanel(panelID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panels[panelID] = name
}

func (s *InMemoryStore) SetUser(userID id.UserID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = name
}

func (s *InMemoryStore) MembersOf(_ context.Context, scope id.Scope) ([]id.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]id.UserID{}, s.members[scope]...), nil
}

func (s *InMemoryStore) DomainName(_ context.Context, domainID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.domains[domainID]
	if !ok || record.name == "" {
		return "", fmt.Errorf("domain %s name: %w", domainID, sentinel.ErrNotFound)
	}
	return record.name, nil
}

func (s *InMemoryStore) PanelName(_ context.Context, panelID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.panels[panelID]
	if !ok {
		return "", fmt.Errorf("panel %s name: %w", panelID, sentinel.ErrNotFound)
	}
	return name, nil
}

func (s *InMemoryStore) UserName(_ context.Context, userID id.UserID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.users[userID]
	if !ok {
		return "", fmt.Errorf("user %s name: %w", userID, sentinel.ErrNotFound)
	}
	return name, nil
}

func (s *InMemoryStore) DomainOwner(_ context.Context, domainID string) (id.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.domains[domainID]
	if !ok || record.owner.IsNil() {
		return "", fmt.Errorf("owner of domain %s: %w", domainID, sentinel.ErrNotFound)
	}
	return record.owner, nil
}
