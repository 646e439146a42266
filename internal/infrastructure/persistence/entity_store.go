package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/persistence/models"
)

// GormEntityStore implements migration.EntityStore using GORM
type GormEntityStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormEntityStore creates a new GormEntityStore
func NewGormEntityStore(db *gorm.DB) *GormEntityStore {
	return &GormEntityStore{db: db, now: time.Now}
}

// Ensure GormEntityStore satisfies the port
var _ migration.EntityStore = (*GormEntityStore)(nil)

// ==================== Writer ====================

// Create inserts the entity with all of its attributes and assigns an ID
func (s *GormEntityStore) Create(ctx context.Context, e *migration.Entity) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := s.now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	model, attrs := models.EntityModelFromDomain(e)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("create %s: %w", e.Kind, err)
		}
		if len(attrs) > 0 {
			if err := tx.Create(&attrs).Error; err != nil {
				return fmt.Errorf("create %s attributes: %w", e.Kind, err)
			}
		}
		return nil
	})
}

// Save replaces the stored attributes of an existing entity
func (s *GormEntityStore) Save(ctx context.Context, e *migration.Entity) error {
	if e.IsNew() {
		return fmt.Errorf("save %s without id: %w", e.Kind, migration.ErrEntityNotFound)
	}
	e.UpdatedAt = s.now().UTC()

	model, attrs := models.EntityModelFromDomain(e)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.EntityModel{}).
			Where("id = ?", e.ID).
			Updates(map[string]any{
				"kind":       model.Kind,
				"parent_id":  model.ParentID,
				"updated_at": model.UpdatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("save %s: %w", e.Kind, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("save %s %s: %w", e.Kind, e.ID, migration.ErrEntityNotFound)
		}
		if err := tx.Where("entity_id = ?", e.ID).Delete(&models.EntityAttributeModel{}).Error; err != nil {
			return fmt.Errorf("clear %s attributes: %w", e.Kind, err)
		}
		if len(attrs) > 0 {
			if err := tx.Create(&attrs).Error; err != nil {
				return fmt.Errorf("save %s attributes: %w", e.Kind, err)
			}
		}
		return nil
	})
}

// Delete removes an entity and, recursively, everything it owns
func (s *GormEntityStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.EntityModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("delete %s: %w", id, migration.ErrEntityNotFound)
		}

		ids := []uuid.UUID{id}
		frontier := []uuid.UUID{id}
		for len(frontier) > 0 {
			var children []uuid.UUID
			if err := tx.Model(&models.EntityModel{}).
				Where("parent_id IN ?", frontier).
				Pluck("id", &children).Error; err != nil {
				return err
			}
			ids = append(ids, children...)
			frontier = children
		}

		if err := tx.Where("entity_id IN ?", ids).Delete(&models.EntityAttributeModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.EntityModel{}).Error
	})
}

// ==================== Reader ====================

// Get loads an entity by ID
func (s *GormEntityStore) Get(ctx context.Context, id uuid.UUID) (*migration.Entity, error) {
	var model models.EntityModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", id, migration.ErrEntityNotFound)
		}
		return nil, err
	}
	entities, err := s.hydrate(ctx, []models.EntityModel{model})
	if err != nil {
		return nil, err
	}
	return entities[0], nil
}

// FindByMeta finds entities carrying meta key=value
func (s *GormEntityStore) FindByMeta(ctx context.Context, key, value string, kinds ...migration.EntityKind) ([]*migration.Entity, error) {
	return s.findByAttribute(ctx, models.ScopeMeta, key, value, kinds)
}

// FindByField finds entities whose field name=value
func (s *GormEntityStore) FindByField(ctx context.Context, name, value string, kinds ...migration.EntityKind) ([]*migration.Entity, error) {
	return s.findByAttribute(ctx, models.ScopeField, name, value, kinds)
}

// Children lists entities owned by parentID
func (s *GormEntityStore) Children(ctx context.Context, parentID uuid.UUID, kinds ...migration.EntityKind) ([]*migration.Entity, error) {
	query := s.db.WithContext(ctx).Model(&models.EntityModel{}).Where("parent_id = ?", parentID)
	return s.find(ctx, withKinds(query, "kind", kinds))
}

// List pages through root entities of a kind in creation order
func (s *GormEntityStore) List(ctx context.Context, kind migration.EntityKind, offset, limit int) ([]*migration.Entity, error) {
	query := s.db.WithContext(ctx).
		Model(&models.EntityModel{}).
		Where("kind = ? AND parent_id IS NULL", kind.String()).
		Offset(offset).
		Limit(limit)
	return s.find(ctx, query)
}

// ==================== Helper Methods ====================

func (s *GormEntityStore) findByAttribute(ctx context.Context, scope, name, value string, kinds []migration.EntityKind) ([]*migration.Entity, error) {
	query := s.db.WithContext(ctx).
		Model(&models.EntityModel{}).
		Select("entities.*").
		Joins("JOIN entity_attributes ON entity_attributes.entity_id = entities.id").
		Where("entity_attributes.scope = ? AND entity_attributes.name = ? AND entity_attributes.value = ?", scope, name, value)
	entities, err := s.find(ctx, withKinds(query, "entities.kind", kinds))
	if err != nil {
		return nil, fmt.Errorf("find by %s %s: %w", scope, name, err)
	}
	return entities, nil
}

func (s *GormEntityStore) find(ctx context.Context, query *gorm.DB) ([]*migration.Entity, error) {
	var rows []models.EntityModel
	if err := query.Order("entities.created_at ASC, entities.id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return s.hydrate(ctx, rows)
}

// hydrate loads the attributes of all rows in one query
func (s *GormEntityStore) hydrate(ctx context.Context, rows []models.EntityModel) ([]*migration.Entity, error) {
	if len(rows) == 0 {
		return []*migration.Entity{}, nil
	}
	ids := make([]uuid.UUID, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}

	var attrs []models.EntityAttributeModel
	if err := s.db.WithContext(ctx).Where("entity_id IN ?", ids).Find(&attrs).Error; err != nil {
		return nil, fmt.Errorf("load attributes: %w", err)
	}
	byEntity := make(map[uuid.UUID][]models.EntityAttributeModel, len(rows))
	for _, a := range attrs {
		byEntity[a.EntityID] = append(byEntity[a.EntityID], a)
	}

	entities := make([]*migration.Entity, len(rows))
	for i := range rows {
		entities[i] = rows[i].ToDomain(byEntity[rows[i].ID])
	}
	return entities, nil
}

func withKinds(query *gorm.DB, column string, kinds []migration.EntityKind) *gorm.DB {
	if len(kinds) == 0 {
		return query
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return query.Where(column+" IN ?", names)
}
