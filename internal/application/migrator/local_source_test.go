package migrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/migrator/internal/domain/migration"
)

func TestSliceFetch(t *testing.T) {
	fetch := SliceFetch([]string{"a", "b", "c", "d", "e"})
	ctx := context.Background()

	tests := []struct {
		name      string
		req       migration.PageRequest
		wantItems []string
		wantNext  string
	}{
		{"first page", migration.PageRequest{Limit: 2}, []string{"a", "b"}, "2"},
		{"middle page", migration.PageRequest{Cursor: "2", Limit: 2}, []string{"c", "d"}, "4"},
		{"last page", migration.PageRequest{Cursor: "4", Limit: 2}, []string{"e"}, ""},
		{"past the end", migration.PageRequest{Cursor: "9", Limit: 2}, nil, ""},
		{"zero limit reads one", migration.PageRequest{Limit: 0}, []string{"a"}, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := fetch(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantItems, page.Items)
			assert.Equal(t, tt.wantNext, page.NextCursor)
		})
	}

	t.Run("invalid cursor", func(t *testing.T) {
		for _, cursor := range []string{"abc", "-1"} {
			_, err := fetch(ctx, migration.PageRequest{Cursor: cursor, Limit: 2})
			assert.ErrorIs(t, err, migration.ErrInvalidOptions, cursor)
		}
	})
}

func TestStoreFetch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var ids []string
	var orders []*migration.Entity
	for i := range 3 {
		e := migration.NewEntity(migration.KindOrder)
		e.CreatedAt = testNow.Add(time.Duration(i) * time.Minute)
		orders = append(orders, mustCreate(t, store, e))
		ids = append(ids, e.ID.String())
	}
	// children and other kinds are not listed
	_, err := NewSynchronizer(store, NewMappingStore(store)).AddChild(ctx, orders[0], migration.KindLineItem, func(*migration.Entity) {})
	require.NoError(t, err)
	mustCreate(t, store, migration.NewEntity(migration.KindProduct))

	fetch := StoreFetch(store, migration.KindOrder)

	first, err := fetch(ctx, migration.PageRequest{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, ids[:2], entityIDs(first.Items))
	assert.Equal(t, "2", first.NextCursor)

	second, err := fetch(ctx, migration.PageRequest{Cursor: first.NextCursor, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, ids[2:], entityIDs(second.Items))
	assert.Empty(t, second.NextCursor)
}
