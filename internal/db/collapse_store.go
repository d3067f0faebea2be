package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ajramos/tagmail/internal/services"
)

// CollapseStore persists group collapse state keyed by group marker
type CollapseStore struct {
	db *sql.DB
}

var _ services.CollapseStore = (*CollapseStore)(nil)

// NewCollapseStore creates a collapse store from a base store
func NewCollapseStore(store *Store) *CollapseStore {
	if store == nil {
		return nil
	}
	return &CollapseStore{db: store.DB()}
}

// IsCollapsed returns the stored state. Unknown groups report collapsed.
func (cs *CollapseStore) IsCollapsed(ctx context.Context, marker string) (bool, bool, error) {
	if cs == nil || cs.db == nil {
		return true, false, fmt.Errorf("collapse store not initialized")
	}
	var collapsed bool
	err := cs.db.QueryRowContext(ctx, `SELECT collapsed FROM group_state WHERE marker = ?`, marker).Scan(&collapsed)
	if err == sql.ErrNoRows {
		return true, false, nil
	}
	if err != nil {
		return true, false, err
	}
	return collapsed, true, nil
}

// SetCollapsed upserts the state of one group
func (cs *CollapseStore) SetCollapsed(ctx context.Context, marker string, collapsed bool) error {
	if cs == nil || cs.db == nil {
		return fmt.Errorf("collapse store not initialized")
	}
	if strings.TrimSpace(marker) == "" {
		return fmt.Errorf("group marker cannot be empty")
	}
	_, err := cs.db.ExecContext(ctx, `INSERT INTO group_state(marker, collapsed, updated_at)
VALUES(?,?,?)
ON CONFLICT(marker) DO UPDATE SET collapsed=excluded.collapsed, updated_at=excluded.updated_at;
`, marker, collapsed, time.Now().Unix())
	return err
}

// Forget drops the stored state of groups that no longer exist
func (cs *CollapseStore) Forget(ctx context.Context, markers ...string) error {
	if cs == nil || cs.db == nil {
		return fmt.Errorf("collapse store not initialized")
	}
	for _, m := range markers {
		if _, err := cs.db.ExecContext(ctx, `DELETE FROM group_state WHERE marker = ?`, m); err != nil {
			return err
		}
	}
	return nil
}
