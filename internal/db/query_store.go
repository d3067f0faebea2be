package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ajramos/tagmail/internal/services"
)

// SavedQuery represents a saved search query
type SavedQuery = services.SavedQuery

var _ services.QueryRepository = (*QueryStore)(nil)

var errQueryNotFound = fmt.Errorf("query %w", services.ErrNotFound)

// QueryStore handles database operations for saved queries
type QueryStore struct {
	db *sql.DB
}

// NewQueryStore creates a new query store
func NewQueryStore(store *Store) *QueryStore {
	if store == nil {
		return nil
	}
	return &QueryStore{db: store.DB()}
}

const savedQueryColumns = `id, name, query, description, created_at, last_used, use_count`

func scanSavedQuery(row interface{ Scan(...any) error }) (*SavedQuery, error) {
	q := &SavedQuery{}
	err := row.Scan(&q.ID, &q.Name, &q.Query, &q.Description, &q.CreatedAt, &q.LastUsed, &q.UseCount)
	return q, err
}

// SaveQuery saves a new query or updates an existing one with the same name
func (s *QueryStore) SaveQuery(ctx context.Context, name, query, description string) (*SavedQuery, error) {
	name, query = strings.TrimSpace(name), strings.TrimSpace(query)
	if name == "" || query == "" {
		return nil, fmt.Errorf("name and query cannot be empty")
	}

	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_queries (name, query, description, created_at, last_used, use_count)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(name) DO UPDATE SET
			query = excluded.query,
			description = excluded.description,
			last_used = excluded.last_used`,
		name, query, description, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to save query: %w", err)
	}
	return s.GetQueryByName(ctx, name)
}

// GetQueryByName retrieves a saved query by name
func (s *QueryStore) GetQueryByName(ctx context.Context, name string) (*SavedQuery, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("name cannot be empty")
	}
	q, err := scanSavedQuery(s.db.QueryRowContext(ctx,
		`SELECT `+savedQueryColumns+` FROM saved_queries WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return nil, errQueryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get query: %w", err)
	}
	return q, nil
}

// ListQueries retrieves all saved queries, most recently used first
func (s *QueryStore) ListQueries(ctx context.Context) ([]*SavedQuery, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+savedQueryColumns+` FROM saved_queries
		ORDER BY last_used DESC, use_count DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer rows.Close()

	var queries []*SavedQuery
	for rows.Next() {
		q, err := scanSavedQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return queries, nil
}

// UpdateQueryUsage increments use count and updates last used timestamp
func (s *QueryStore) UpdateQueryUsage(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("id must be positive")
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE saved_queries SET use_count = use_count + 1, last_used = ? WHERE id = ?`,
		time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update query usage: %w", err)
	}
	return expectOneRow(result)
}

// DeleteQueryByName removes a saved query by name
func (s *QueryStore) DeleteQueryByName(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM saved_queries WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete query: %w", err)
	}
	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errQueryNotFound
	}
	return nil
}
