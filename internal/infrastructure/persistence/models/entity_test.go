package models

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"

	"github.com/erp/migrator/internal/domain/migration"
)

func TestEntityModel_TableNames(t *testing.T) {
	assert.Equal(t, "entities", EntityModel{}.TableName())
	assert.Equal(t, "entity_attributes", EntityAttributeModel{}.TableName())
}

func TestEntityAttributeModel_NameColumn(t *testing.T) {
	s, err := schema.Parse(&EntityAttributeModel{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	name := s.LookUpField("Name")
	require.NotNil(t, name)
	assert.Equal(t, "varchar(255)", name.TagSettings["TYPE"])
	assert.True(t, name.PrimaryKey)
}

func TestEntityModelFromDomain(t *testing.T) {
	now := time.Now().UTC()

	t.Run("root entity has no parent", func(t *testing.T) {
		e := migration.NewEntity(migration.KindOrder)
		e.ID = uuid.New()
		e.CreatedAt = now
		e.UpdatedAt = now
		e.SetField("status", "processing")
		e.SetMeta(migration.MetaOriginalOrderID, "1001")

		m, attrs := EntityModelFromDomain(e)

		assert.Equal(t, e.ID, m.ID)
		assert.Equal(t, "shop_order", m.Kind)
		assert.Nil(t, m.ParentID)
		require.Len(t, attrs, 2)
		assert.Equal(t, EntityAttributeModel{EntityID: e.ID, Scope: ScopeField, Name: "status", Value: "processing"}, attrs[0])
		assert.Equal(t, EntityAttributeModel{EntityID: e.ID, Scope: ScopeMeta, Name: migration.MetaOriginalOrderID, Value: "1001"}, attrs[1])
	})

	t.Run("child entity keeps parent", func(t *testing.T) {
		parentID := uuid.New()
		e := migration.NewChildEntity(migration.KindLineItem, parentID)
		e.ID = uuid.New()

		m, attrs := EntityModelFromDomain(e)

		require.NotNil(t, m.ParentID)
		assert.Equal(t, parentID, *m.ParentID)
		assert.Empty(t, attrs)
	})
}

func TestEntityModel_ToDomain(t *testing.T) {
	id := uuid.New()
	parentID := uuid.New()
	m := &EntityModel{
		BaseModel: BaseModel{ID: id},
		Kind:      "line_item",
		ParentID:  &parentID,
	}
	attrs := []EntityAttributeModel{
		{EntityID: id, Scope: ScopeField, Name: "quantity", Value: "2"},
		{EntityID: id, Scope: ScopeMeta, Name: migration.MetaOriginalLineItemID, Value: "77"},
		{EntityID: uuid.New(), Scope: ScopeField, Name: "quantity", Value: "9"},
	}

	e := m.ToDomain(attrs)

	assert.Equal(t, id, e.ID)
	assert.Equal(t, migration.KindLineItem, e.Kind)
	assert.Equal(t, parentID, e.ParentID)
	assert.Equal(t, "2", e.Field("quantity"))
	assert.Equal(t, "77", e.GetMeta(migration.MetaOriginalLineItemID))
	assert.Len(t, e.Fields, 1)
}
