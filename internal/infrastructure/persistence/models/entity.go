package models

import (
	"sort"

	"github.com/google/uuid"

	"github.com/erp/migrator/internal/domain/migration"
)

// Attribute scopes. Fields are the entity's attributes; meta holds cross
// references and mapping blobs.
const (
	ScopeField = "field"
	ScopeMeta  = "meta"
)

// EntityModel is the persistence model for a local entity
type EntityModel struct {
	BaseModel
	Kind     string     `gorm:"type:varchar(32);not null;index"`
	ParentID *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (EntityModel) TableName() string {
	return "entities"
}

// EntityAttributeModel is one field or metadata value of an entity
type EntityAttributeModel struct {
	EntityID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Scope    string    `gorm:"type:varchar(8);primaryKey;index:idx_entity_attributes_lookup,priority:1"`
	Name     string    `gorm:"type:varchar(255);primaryKey;index:idx_entity_attributes_lookup,priority:2"`
	Value    string    `gorm:"type:text;not null"`
}

// TableName returns the table name for GORM
func (EntityAttributeModel) TableName() string {
	return "entity_attributes"
}

// EntityModelFromDomain converts a domain entity into its row and attribute rows.
// Attribute rows are sorted by scope and name.
func EntityModelFromDomain(e *migration.Entity) (*EntityModel, []EntityAttributeModel) {
	m := &EntityModel{
		BaseModel: BaseModel{
			ID:        e.ID,
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		},
		Kind: e.Kind.String(),
	}
	if e.ParentID != uuid.Nil {
		parentID := e.ParentID
		m.ParentID = &parentID
	}

	attrs := make([]EntityAttributeModel, 0, len(e.Fields)+len(e.Meta))
	for name, value := range e.Fields {
		attrs = append(attrs, EntityAttributeModel{EntityID: e.ID, Scope: ScopeField, Name: name, Value: value})
	}
	for name, value := range e.Meta {
		attrs = append(attrs, EntityAttributeModel{EntityID: e.ID, Scope: ScopeMeta, Name: name, Value: value})
	}
	sort.Slice(attrs, func(i, j int) bool {
		if attrs[i].Scope != attrs[j].Scope {
			return attrs[i].Scope < attrs[j].Scope
		}
		return attrs[i].Name < attrs[j].Name
	})
	return m, attrs
}

// ToDomain converts the row and its attributes back to a domain entity.
// Attributes belonging to other entities are ignored.
func (m *EntityModel) ToDomain(attrs []EntityAttributeModel) *migration.Entity {
	e := migration.NewEntity(migration.EntityKind(m.Kind))
	e.ID = m.ID
	e.CreatedAt = m.CreatedAt
	e.UpdatedAt = m.UpdatedAt
	if m.ParentID != nil {
		e.ParentID = *m.ParentID
	}
	for _, a := range attrs {
		if a.EntityID != m.ID {
			continue
		}
		switch a.Scope {
		case ScopeField:
			e.Fields[a.Name] = a.Value
		case ScopeMeta:
			e.Meta[a.Name] = a.Value
		}
	}
	return e
}
