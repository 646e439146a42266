package migration

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/google/uuid"
)

// Namespace scopes a sub-entity mapping within its parent
type Namespace string

const (
	NamespaceLineItems     Namespace = "line_items"
	NamespaceShippingLines Namespace = "shipping_lines"
	NamespaceRefunds       Namespace = "refunds"
	NamespaceVariations    Namespace = "variations"
	NamespaceImages        Namespace = "images"
)

// MetaKey returns the metadata key the namespace is persisted under
func (n Namespace) MetaKey() string {
	return "_" + string(n) + "_mapping"
}

// Mapping binds remote sub-entity ids to local sub-entity ids
type Mapping map[string]uuid.UUID

// RemoteKey formats a remote id as a mapping key
func RemoteKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Get returns the local id mapped to remoteID
func (m Mapping) Get(remoteID string) (uuid.UUID, bool) {
	id, ok := m[remoteID]
	return id, ok
}

// Set records remoteID → localID
func (m Mapping) Set(remoteID string, localID uuid.UUID) {
	m[remoteID] = localID
}

// Contains reports whether localID is a value of the mapping
func (m Mapping) Contains(localID uuid.UUID) bool {
	for _, id := range m {
		if id == localID {
			return true
		}
	}
	return false
}

// DropLocal removes every entry pointing at localID
func (m Mapping) DropLocal(localID uuid.UUID) {
	maps.DeleteFunc(m, func(_ string, id uuid.UUID) bool { return id == localID })
}

// Clone returns a copy
func (m Mapping) Clone() Mapping {
	if m == nil {
		return Mapping{}
	}
	return maps.Clone(m)
}

// ---------------------------------------------------------------------------
// Product migration data
// ---------------------------------------------------------------------------

// MigrationData is the per-product bookkeeping blob
type MigrationData struct {
	ProductID         int64             `json:"product_id"`
	OriginalURL       string            `json:"original_url"`
	ImagesMapping     Mapping           `json:"images_mapping"`
	Metafields        map[string]string `json:"metafields"`
	VariationsMapping Mapping           `json:"variations_mapping"`
}

// NewMigrationData returns an empty blob for a remote product
func NewMigrationData(productID int64) *MigrationData {
	return &MigrationData{
		ProductID:         productID,
		ImagesMapping:     Mapping{},
		Metafields:        map[string]string{},
		VariationsMapping: Mapping{},
	}
}

// LoadMigrationData reads the blob stored on a product and merges it over
// fresh defaults, so keys missing from older blobs are still initialised.
func LoadMigrationData(e *Entity, productID int64) (*MigrationData, error) {
	data := NewMigrationData(productID)
	if e == nil {
		return data, nil
	}
	var saved MigrationData
	if err := e.MetaJSON(MetaMigrationData, &saved); err != nil {
		return nil, err
	}
	if saved.OriginalURL != "" {
		data.OriginalURL = saved.OriginalURL
	}
	maps.Copy(data.ImagesMapping, saved.ImagesMapping)
	maps.Copy(data.Metafields, saved.Metafields)
	maps.Copy(data.VariationsMapping, saved.VariationsMapping)
	return data, nil
}

// Mapping returns the mapping stored in the blob for a namespace
func (d *MigrationData) Mapping(ns Namespace) (Mapping, error) {
	switch ns {
	case NamespaceImages:
		return d.ImagesMapping, nil
	case NamespaceVariations:
		return d.VariationsMapping, nil
	}
	return nil, fmt.Errorf("migration data has no %s mapping", ns)
}

// SetMapping replaces the mapping for a namespace
func (d *MigrationData) SetMapping(ns Namespace, m Mapping) error {
	switch ns {
	case NamespaceImages:
		d.ImagesMapping = m.Clone()
	case NamespaceVariations:
		d.VariationsMapping = m.Clone()
	default:
		return fmt.Errorf("migration data has no %s mapping", ns)
	}
	return nil
}
