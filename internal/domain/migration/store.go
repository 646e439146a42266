package migration

import (
	"context"

	"github.com/google/uuid"
)

// EntityStore is the port to the local store.
// Finders return an empty slice, not an error, when nothing matches.
// An empty kinds list matches every kind.
type EntityStore interface {
	// Create persists a new entity and assigns its ID
	Create(ctx context.Context, e *Entity) error

	// Get loads an entity by ID. Returns ErrEntityNotFound if it does not exist.
	Get(ctx context.Context, id uuid.UUID) (*Entity, error)

	// FindByMeta finds entities carrying meta key=value
	FindByMeta(ctx context.Context, key, value string, kinds ...EntityKind) ([]*Entity, error)

	// FindByField finds entities whose field name=value
	FindByField(ctx context.Context, name, value string, kinds ...EntityKind) ([]*Entity, error)

	// Children lists entities owned by parentID
	Children(ctx context.Context, parentID uuid.UUID, kinds ...EntityKind) ([]*Entity, error)

	// List pages through root entities of a kind in creation order
	List(ctx context.Context, kind EntityKind, offset, limit int) ([]*Entity, error)

	// Save persists all fields and metadata of an existing entity
	Save(ctx context.Context, e *Entity) error

	// Delete removes an entity and everything it owns
	Delete(ctx context.Context, id uuid.UUID) error
}

// MediaStore copies a remote file into storage the local store can serve.
type MediaStore interface {
	Sideload(ctx context.Context, sourceURL, key string) (string, error)
}

// RunLock guards a migration kind against concurrent runs on the same store.
type RunLock interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
