package migrator

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/logger"
)

// DryRunStore wraps an entity store so that writes are logged and kept in
// memory instead of being persisted. Reads see the pending writes of the run.
type DryRunStore struct {
	next migration.EntityStore

	mu      sync.Mutex
	pending map[uuid.UUID]*migration.Entity
	deleted map[uuid.UUID]struct{}
}

var _ migration.EntityStore = (*DryRunStore)(nil)

// NewDryRunStore wraps next
func NewDryRunStore(next migration.EntityStore) *DryRunStore {
	return &DryRunStore{
		next:    next,
		pending: make(map[uuid.UUID]*migration.Entity),
		deleted: make(map[uuid.UUID]struct{}),
	}
}

// Create assigns an id and keeps the entity in memory
func (s *DryRunStore) Create(ctx context.Context, e *migration.Entity) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.pending[e.ID] = e.Clone()
	s.mu.Unlock()

	logger.L(ctx).Info("dry run: would create",
		zap.String("kind", e.Kind.String()),
		zap.String("local_id", e.ID.String()),
	)
	return nil
}

// Save keeps the entity in memory
func (s *DryRunStore) Save(ctx context.Context, e *migration.Entity) error {
	s.mu.Lock()
	s.pending[e.ID] = e.Clone()
	s.mu.Unlock()

	logger.L(ctx).Debug("dry run: would save",
		zap.String("kind", e.Kind.String()),
		zap.String("local_id", e.ID.String()),
	)
	return nil
}

// Delete hides the entity from later reads
func (s *DryRunStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	delete(s.pending, id)
	s.deleted[id] = struct{}{}
	s.mu.Unlock()

	logger.L(ctx).Info("dry run: would delete", zap.String("local_id", id.String()))
	return nil
}

// Get returns the pending version of an entity when there is one
func (s *DryRunStore) Get(ctx context.Context, id uuid.UUID) (*migration.Entity, error) {
	s.mu.Lock()
	e, ok := s.pending[id]
	_, gone := s.deleted[id]
	s.mu.Unlock()

	if gone {
		return nil, fmt.Errorf("%s: %w", id, migration.ErrEntityNotFound)
	}
	if ok {
		return e.Clone(), nil
	}
	return s.next.Get(ctx, id)
}

// FindByMeta finds stored and pending entities carrying meta key=value
func (s *DryRunStore) FindByMeta(ctx context.Context, key, value string, kinds ...migration.EntityKind) ([]*migration.Entity, error) {
	found, err := s.next.FindByMeta(ctx, key, value, kinds...)
	if err != nil {
		return nil, err
	}
	return s.merge(found, func(e *migration.Entity) bool {
		return e.GetMeta(key) == value && kindMatches(e.Kind, kinds)
	}), nil
}

// FindByField finds stored and pending entities whose field name=value
func (s *DryRunStore) FindByField(ctx context.Context, name, value string, kinds ...migration.EntityKind) ([]*migration.Entity, error) {
	found, err := s.next.FindByField(ctx, name, value, kinds...)
	if err != nil {
		return nil, err
	}
	return s.merge(found, func(e *migration.Entity) bool {
		return e.Field(name) == value && kindMatches(e.Kind, kinds)
	}), nil
}

// Children lists stored and pending children of parentID
func (s *DryRunStore) Children(ctx context.Context, parentID uuid.UUID, kinds ...migration.EntityKind) ([]*migration.Entity, error) {
	found, err := s.next.Children(ctx, parentID, kinds...)
	if err != nil {
		return nil, err
	}
	return s.merge(found, func(e *migration.Entity) bool {
		return e.ParentID == parentID && kindMatches(e.Kind, kinds)
	}), nil
}

// List pages through stored entities only
func (s *DryRunStore) List(ctx context.Context, kind migration.EntityKind, offset, limit int) ([]*migration.Entity, error) {
	found, err := s.next.List(ctx, kind, offset, limit)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*migration.Entity, 0, len(found))
	for _, e := range found {
		if _, gone := s.deleted[e.ID]; gone {
			continue
		}
		if p, ok := s.pending[e.ID]; ok {
			e = p.Clone()
		}
		out = append(out, e)
	}
	return out, nil
}

// merge overlays pending writes on stored results. Stored entities whose
// pending version no longer matches are dropped.
func (s *DryRunStore) merge(found []*migration.Entity, match func(e *migration.Entity) bool) []*migration.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*migration.Entity, 0, len(found))
	seen := make(map[uuid.UUID]struct{}, len(found))
	for _, e := range found {
		if _, gone := s.deleted[e.ID]; gone {
			continue
		}
		if p, ok := s.pending[e.ID]; ok {
			if !match(p) {
				continue
			}
			e = p.Clone()
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	var created []*migration.Entity
	for id, p := range s.pending {
		if _, ok := seen[id]; ok || !match(p) {
			continue
		}
		created = append(created, p.Clone())
	}
	slices.SortFunc(created, func(a, b *migration.Entity) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return append(out, created...)
}

func kindMatches(kind migration.EntityKind, kinds []migration.EntityKind) bool {
	return len(kinds) == 0 || slices.Contains(kinds, kind)
}
