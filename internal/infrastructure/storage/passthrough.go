package storage

import (
	"context"

	"github.com/erp/migrator/internal/domain/migration"
)

// PassthroughMediaStore keeps media on the remote CDN: the local store
// references the source URL directly. Used when object storage is disabled.
type PassthroughMediaStore struct{}

// NewPassthroughMediaStore creates a new PassthroughMediaStore
func NewPassthroughMediaStore() *PassthroughMediaStore {
	return &PassthroughMediaStore{}
}

// Sideload returns sourceURL unchanged
func (PassthroughMediaStore) Sideload(ctx context.Context, sourceURL, key string) (string, error) {
	return sourceURL, nil
}

var _ migration.MediaStore = PassthroughMediaStore{}
