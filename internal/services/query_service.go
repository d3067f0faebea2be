package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

const maxQueryNameLength = 100

// QueryServiceImpl implements QueryService
type QueryServiceImpl struct {
	store  QueryRepository
	logger zerolog.Logger
}

// NewQueryService creates a new query service
func NewQueryService(store QueryRepository) *QueryServiceImpl {
	return &QueryServiceImpl{store: store, logger: zerolog.Nop()}
}

// SetLogger sets the logger used to report usage bookkeeping failures
func (s *QueryServiceImpl) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

// SaveQuery saves a new query or replaces the one with the same name
func (s *QueryServiceImpl) SaveQuery(ctx context.Context, name, query, description string) (*SavedQuery, error) {
	if s.store == nil {
		return nil, fmt.Errorf("query store not available")
	}
	name = strings.TrimSpace(name)
	if err := ValidateQueryName(name); err != nil {
		return nil, err
	}
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty: %w", ErrInvalidInput)
	}

	saved, err := s.store.SaveQuery(ctx, name, query, strings.TrimSpace(description))
	if err != nil {
		return nil, fmt.Errorf("failed to save query: %w", err)
	}
	s.logger.Debug().Str("name", name).Str("query", query).Msg("query saved")
	return saved, nil
}

// GetQuery retrieves a saved query by name
func (s *QueryServiceImpl) GetQuery(ctx context.Context, name string) (*SavedQuery, error) {
	if s.store == nil {
		return nil, fmt.Errorf("query store not available")
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("query name cannot be empty: %w", ErrInvalidInput)
	}
	saved, err := s.store.GetQueryByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("failed to get query %q: %w", name, err)
	}
	return saved, nil
}

// ListQueries returns every saved query, most recently used first
func (s *QueryServiceImpl) ListQueries(ctx context.Context) ([]*SavedQuery, error) {
	if s.store == nil {
		return nil, fmt.Errorf("query store not available")
	}
	queries, err := s.store.ListQueries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	return queries, nil
}

// DeleteQuery removes a saved query by name
func (s *QueryServiceImpl) DeleteQuery(ctx context.Context, name string) error {
	if s.store == nil {
		return fmt.Errorf("query store not available")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("query name cannot be empty: %w", ErrInvalidInput)
	}
	if err := s.store.DeleteQueryByName(ctx, strings.TrimSpace(name)); err != nil {
		return fmt.Errorf("failed to delete query %q: %w", name, err)
	}
	return nil
}

// ResolveQuery returns the query text saved under name and counts the use.
// A failure to count is logged, not returned.
func (s *QueryServiceImpl) ResolveQuery(ctx context.Context, name string) (string, error) {
	saved, err := s.GetQuery(ctx, name)
	if err != nil {
		return "", err
	}
	if err := s.store.UpdateQueryUsage(ctx, saved.ID); err != nil {
		s.logger.Warn().Err(err).Str("name", saved.Name).Msg("could not record query usage")
	}
	return saved.Query, nil
}

// ValidateQueryName checks that a query name is usable
func ValidateQueryName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("query name cannot be empty: %w", ErrInvalidInput)
	}
	if len(name) > maxQueryNameLength {
		return fmt.Errorf("query name cannot exceed %d characters: %w", maxQueryNameLength, ErrInvalidInput)
	}
	if strings.ContainsAny(name, "\n\r\t") {
		return fmt.Errorf("query name cannot contain newlines or tabs: %w", ErrInvalidInput)
	}
	return nil
}
