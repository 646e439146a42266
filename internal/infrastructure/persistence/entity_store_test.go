package persistence

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/persistence/models"
)

func setupEntityStoreTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.EntityModel{}, &models.EntityAttributeModel{}))
	return db
}

func newOrder(remoteID, number string) *migration.Entity {
	e := migration.NewEntity(migration.KindOrder)
	e.SetField("status", "processing")
	e.SetMeta(migration.MetaOriginalOrderID, remoteID)
	e.SetMeta(migration.MetaOrderNumber, number)
	return e
}

func TestGormEntityStore_CreateAndGet(t *testing.T) {
	store := NewGormEntityStore(setupEntityStoreTestDB(t))
	ctx := context.Background()

	order := newOrder("1001", "#1001")
	require.NoError(t, store.Create(ctx, order))
	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.False(t, order.CreatedAt.IsZero())

	found, err := store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, migration.KindOrder, found.Kind)
	assert.Equal(t, "processing", found.Field("status"))
	assert.Equal(t, "1001", found.GetMeta(migration.MetaOriginalOrderID))
	assert.Equal(t, uuid.Nil, found.ParentID)
}

func TestGormEntityStore_LongAttributeNames(t *testing.T) {
	store := NewGormEntityStore(setupEntityStoreTestDB(t))
	ctx := context.Background()

	name := "attribute_pa_" + strings.Repeat("finish-and-material-", 5)
	require.Greater(t, len(name), 64)

	variation := migration.NewEntity(migration.KindVariation)
	variation.SetField(name, "brushed-steel")
	require.NoError(t, store.Create(ctx, variation))

	found, err := store.Get(ctx, variation.ID)
	require.NoError(t, err)
	assert.Equal(t, "brushed-steel", found.Field(name))
}

func TestGormEntityStore_Get_NotFound(t *testing.T) {
	store := NewGormEntityStore(setupEntityStoreTestDB(t))

	_, err := store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, migration.ErrEntityNotFound)
}

func TestGormEntityStore_Save(t *testing.T) {
	store := NewGormEntityStore(setupEntityStoreTestDB(t))
	ctx := context.Background()

	order := newOrder("1001", "#1001")
	order.SetField("note", "gift")
	require.NoError(t, store.Create(ctx, order))

	t.Run("replaces fields and meta", func(t *testing.T) {
		order.SetField("status", "completed")
		order.ClearField("note")
		order.SetMeta(migration.NamespaceLineItems.MetaKey(), `{"1":"x"}`)
		require.NoError(t, store.Save(ctx, order))

		found, err := store.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, "completed", found.Field("status"))
		assert.Empty(t, found.Field("note"))
		assert.Equal(t, `{"1":"x"}`, found.GetMeta(migration.NamespaceLineItems.MetaKey()))
	})

	t.Run("unknown entity", func(t *testing.T) {
		ghost := migration.NewEntity(migration.KindOrder)
		ghost.ID = uuid.New()
		assert.ErrorIs(t, store.Save(ctx, ghost), migration.ErrEntityNotFound)
	})

	t.Run("unsaved entity", func(t *testing.T) {
		assert.ErrorIs(t, store.Save(ctx, migration.NewEntity(migration.KindOrder)), migration.ErrEntityNotFound)
	})
}

func TestGormEntityStore_FindByMetaAndField(t *testing.T) {
	store := NewGormEntityStore(setupEntityStoreTestDB(t))
	ctx := context.Background()

	order := newOrder("1001", "#1001")
	require.NoError(t, store.Create(ctx, order))

	product := migration.NewEntity(migration.KindProduct)
	product.SetField(migration.FieldSKU, "SKU-1")
	product.SetMeta(migration.MetaOriginalProductID, "1001")
	require.NoError(t, store.Create(ctx, product))

	t.Run("meta without kind filter matches every kind", func(t *testing.T) {
		orderFound, err := store.FindByMeta(ctx, migration.MetaOriginalOrderID, "1001")
		require.NoError(t, err)
		require.Len(t, orderFound, 1)
		assert.Equal(t, order.ID, orderFound[0].ID)
	})

	t.Run("meta with kind filter", func(t *testing.T) {
		found, err := store.FindByMeta(ctx, migration.MetaOriginalProductID, "1001", migration.KindOrder)
		require.NoError(t, err)
		assert.Empty(t, found)

		found, err = store.FindByMeta(ctx, migration.MetaOriginalProductID, "1001", migration.KindProduct, migration.KindVariation)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, product.ID, found[0].ID)
		assert.Equal(t, "SKU-1", found[0].Field(migration.FieldSKU), "attributes are hydrated")
	})

	t.Run("field lookup", func(t *testing.T) {
		found, err := store.FindByField(ctx, migration.FieldSKU, "SKU-1")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, product.ID, found[0].ID)
	})

	t.Run("no match returns an empty slice", func(t *testing.T) {
		found, err := store.FindByField(ctx, migration.FieldSKU, "missing")
		require.NoError(t, err)
		assert.NotNil(t, found)
		assert.Empty(t, found)
	})
}

func TestGormEntityStore_ChildrenAndDelete(t *testing.T) {
	store := NewGormEntityStore(setupEntityStoreTestDB(t))
	ctx := context.Background()

	order := newOrder("1001", "#1001")
	require.NoError(t, store.Create(ctx, order))

	item := migration.NewChildEntity(migration.KindLineItem, order.ID)
	item.SetMeta(migration.MetaOriginalLineItemID, "1")
	require.NoError(t, store.Create(ctx, item))

	refund := migration.NewChildEntity(migration.KindRefund, order.ID)
	require.NoError(t, store.Create(ctx, refund))

	refundItem := migration.NewChildEntity(migration.KindLineItem, refund.ID)
	require.NoError(t, store.Create(ctx, refundItem))

	t.Run("children filtered by kind", func(t *testing.T) {
		all, err := store.Children(ctx, order.ID)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		items, err := store.Children(ctx, order.ID, migration.KindLineItem)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, item.ID, items[0].ID)
		assert.Equal(t, order.ID, items[0].ParentID)
	})

	t.Run("delete cascades", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, order.ID))

		for _, id := range []uuid.UUID{order.ID, item.ID, refund.ID, refundItem.ID} {
			_, err := store.Get(ctx, id)
			assert.ErrorIs(t, err, migration.ErrEntityNotFound)
		}
		found, err := store.FindByMeta(ctx, migration.MetaOriginalLineItemID, "1")
		require.NoError(t, err)
		assert.Empty(t, found, "attributes are removed with the entity")
	})

	t.Run("delete unknown entity", func(t *testing.T) {
		assert.ErrorIs(t, store.Delete(ctx, uuid.New()), migration.ErrEntityNotFound)
	})
}

func TestGormEntityStore_List(t *testing.T) {
	store := NewGormEntityStore(setupEntityStoreTestDB(t))
	ctx := context.Background()

	var ids []uuid.UUID
	for i := range 5 {
		o := newOrder(uuid.NewString(), "#"+string(rune('A'+i)))
		require.NoError(t, store.Create(ctx, o))
		ids = append(ids, o.ID)
		require.NoError(t, store.Create(ctx, migration.NewChildEntity(migration.KindLineItem, o.ID)))
	}
	require.NoError(t, store.Create(ctx, migration.NewEntity(migration.KindProduct)))

	first, err := store.List(ctx, migration.KindOrder, 0, 3)
	require.NoError(t, err)
	second, err := store.List(ctx, migration.KindOrder, 3, 3)
	require.NoError(t, err)

	require.Len(t, first, 3)
	require.Len(t, second, 2)

	seen := map[uuid.UUID]bool{}
	for _, e := range append(first, second...) {
		assert.Equal(t, migration.KindOrder, e.Kind)
		seen[e.ID] = true
	}
	for _, id := range ids {
		assert.True(t, seen[id])
	}
}
