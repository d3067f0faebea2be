package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ajramos/tagmail/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueryStore(t *testing.T) *QueryStore {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "queries.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewQueryStore(store)
}

func TestQueryStore_SaveQuery_ValidationErrors(t *testing.T) {
	qs := newTestQueryStore(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		queryName string
		query     string
	}{
		{"empty_name", "", "tag:todo"},
		{"empty_query", "todo", ""},
		{"whitespace_only", "  ", "\t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := qs.SaveQuery(ctx, tt.queryName, tt.query, "")
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "name and query cannot be empty")
		})
	}
}

func TestQueryStore_Lifecycle(t *testing.T) {
	qs := newTestQueryStore(t)
	ctx := context.Background()

	saved, err := qs.SaveQuery(ctx, "todo", "tag:todo", "open items")
	require.NoError(t, err)
	assert.Positive(t, saved.ID)
	assert.Equal(t, "tag:todo", saved.Query)

	// saving under the same name updates in place
	updated, err := qs.SaveQuery(ctx, "todo", "tag:todo -tag:deleted", "")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, updated.ID)
	assert.Equal(t, "tag:todo -tag:deleted", updated.Query)

	_, err = qs.SaveQuery(ctx, "unread", "tag:unread", "")
	require.NoError(t, err)

	require.NoError(t, qs.UpdateQueryUsage(ctx, saved.ID))
	got, err := qs.GetQueryByName(ctx, "todo")
	require.NoError(t, err)
	assert.Equal(t, 1, got.UseCount)

	all, err := qs.ListQueries(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, qs.DeleteQueryByName(ctx, "todo"))
	_, err = qs.GetQueryByName(ctx, "todo")
	assert.ErrorIs(t, err, services.ErrNotFound)
	assert.ErrorIs(t, qs.DeleteQueryByName(ctx, "todo"), services.ErrNotFound)
	assert.Error(t, qs.UpdateQueryUsage(ctx, 0))
}
