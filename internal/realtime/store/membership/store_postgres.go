package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "collabhub/pkg/domain"
	"collabhub/pkg/platform/sentinel"
)

// PostgresStore reads membership and naming data owned by the collaboration
// backend. It never writes.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a read-only membership store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// MembersOf lists user ids belonging to scope. Unknown scopes yield an empty slice.
func (s *PostgresStore) MembersOf(ctx context.Context, scope id.Scope) ([]id.UserID, error) {
	var query string
	switch scope.Kind {
	case id.ScopeDomain:
		query = `SELECT user_id::text FROM domain_members WHERE domain_id::text = $1 ORDER BY user_id`
	case id.ScopePanel:
		query = `SELECT user_id::text FROM panel_members WHERE panel_id::text = $1 ORDER BY user_id`
	default:
		return nil, fmt.Errorf("members of %s: unknown scope kind", scope)
	}

	rows, err := s.db.QueryContext(ctx, query, scope.ID)
	if err != nil {
		return nil, fmt.Errorf("members of %s: %w", scope, err)
	}
	defer rows.Close()

	members := []id.UserID{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan member of %s: %w", scope, err)
		}
		members = append(members, id.UserID(userID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("members of %s: %w", scope, err)
	}
	return members, nil
}

func (s *PostgresStore) DomainName(ctx context.Context, domainID string) (string, error) {
	return s.name(ctx, "domain", `SELECT name FROM domains WHERE id::text = $1`, domainID)
}

func (s *PostgresStore) PanelName(ctx context.Context, panelID string) (string, error) {
	return s.name(ctx, "panel", `SELECT name FROM panels WHERE id::text = $1`, panelID)
}

func (s *PostgresStore) UserName(ctx context.Context, userID id.UserID) (string, error) {
	return s.name(ctx, "user", `SELECT name FROM users WHERE id::text = $1`, userID.String())
}

func (s *PostgresStore) DomainOwner(ctx context.Context, domainID string) (id.UserID, error) {
	var owner sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT owner_id::text FROM domains WHERE id::text = $1`, domainID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !owner.Valid) {
		return "", fmt.Errorf("owner of domain %s: %w", domainID, sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("owner of domain %s: %w", domainID, err)
	}
	return id.UserID(owner.String), nil
}

func (s *PostgresStore) name(ctx context.Context, entity, query, key string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s %s name: %w", entity, key, sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%s %s name: %w", entity, key, err)
	}
	return name, nil
}
