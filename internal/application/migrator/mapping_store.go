package migrator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/erp/migrator/internal/domain/migration"
)

// MappingStore persists sub-entity mappings on their parent. Products keep
// variations and images inside the _migration_data blob; every other
// mapping lives in its own _<namespace>_mapping meta key.
type MappingStore struct {
	store migration.EntityStore
}

// NewMappingStore creates a mapping store
func NewMappingStore(store migration.EntityStore) *MappingStore {
	return &MappingStore{store: store}
}

func inMigrationData(parent *migration.Entity, ns migration.Namespace) bool {
	if parent.Kind != migration.KindProduct {
		return false
	}
	return ns == migration.NamespaceVariations || ns == migration.NamespaceImages
}

// Load returns the mapping stored on parent. A missing mapping is empty.
func (m *MappingStore) Load(parent *migration.Entity, ns migration.Namespace) (migration.Mapping, error) {
	if inMigrationData(parent, ns) {
		data, err := migration.LoadMigrationData(parent, productID(parent))
		if err != nil {
			return nil, err
		}
		mapping, err := data.Mapping(ns)
		if err != nil {
			return nil, err
		}
		return mapping.Clone(), nil
	}

	mapping := migration.Mapping{}
	if err := parent.MetaJSON(ns.MetaKey(), &mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}

// Write stores mapping on parent without persisting it
func (m *MappingStore) Write(parent *migration.Entity, ns migration.Namespace, mapping migration.Mapping) error {
	if inMigrationData(parent, ns) {
		data, err := migration.LoadMigrationData(parent, productID(parent))
		if err != nil {
			return err
		}
		if err := data.SetMapping(ns, mapping); err != nil {
			return err
		}
		return parent.SetMetaJSON(migration.MetaMigrationData, data)
	}
	return parent.SetMetaJSON(ns.MetaKey(), mapping)
}

// Save stores mapping on parent and persists the parent
func (m *MappingStore) Save(ctx context.Context, parent *migration.Entity, ns migration.Namespace, mapping migration.Mapping) error {
	if err := m.Write(parent, ns, mapping); err != nil {
		return err
	}
	if err := m.store.Save(ctx, parent); err != nil {
		return fmt.Errorf("save %s mapping: %w", ns, err)
	}
	return nil
}

func productID(e *migration.Entity) int64 {
	id, _ := strconv.ParseInt(e.GetMeta(migration.MetaOriginalProductID), 10, 64)
	return id
}
