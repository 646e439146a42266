package migrator

import (
	"context"
	"errors"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/logger"
)

// MetaProductAttributes holds the attribute definitions of a variable product
const MetaProductAttributes = "_product_attributes"

// ProductAttribute is one variation attribute of a variable product
type ProductAttribute struct {
	Name      string   `json:"name"`
	Taxonomy  string   `json:"taxonomy"`
	Position  int      `json:"position"`
	Options   []string `json:"options"`
	Visible   bool     `json:"visible"`
	Variation bool     `json:"variation"`
}

// attributeTaxonomy returns pa_<slug> for an option name
func attributeTaxonomy(name string) string {
	return "pa_" + slugify(name)
}

// productAttributes builds the attributes of p from its options, with the
// values the variants actually use
func productAttributes(p *migration.RemoteProduct) []ProductAttribute {
	attrs := make([]ProductAttribute, 0, len(p.Options))
	for _, opt := range p.Options {
		attr := ProductAttribute{
			Name:      opt.Name,
			Taxonomy:  attributeTaxonomy(opt.Name),
			Position:  opt.Position,
			Visible:   true,
			Variation: true,
		}
		for i := range p.Variants {
			value := slugify(p.Variants[i].Option(opt.Position))
			if value != "" && !slices.Contains(attr.Options, value) {
				attr.Options = append(attr.Options, value)
			}
		}
		attrs = append(attrs, attr)
	}
	return attrs
}

// syncVariations creates or updates one local variation per variant and,
// with --remove-orphans, deletes the variations no variant maps to
func (imp *ProductImporter) syncVariations(ctx context.Context, sc *SyncContext, p *migration.RemoteProduct) error {
	product := sc.Parent

	var attrs []ProductAttribute
	if sc.ShouldProcess("attributes") {
		attrs = productAttributes(p)
		if err := product.SetMetaJSON(MetaProductAttributes, attrs); err != nil {
			return err
		}
		if err := imp.persist(ctx, product); err != nil {
			return err
		}
	}

	for _, v := range p.Variants {
		logger.L(ctx).Debug("processing variant", zap.Int64("variant_id", v.ID))
		_, decision, err := imp.sync.Sync(ctx, sc, SubEntity{
			Namespace: migration.NamespaceVariations,
			Kind:      migration.KindVariation,
			RemoteID:  migration.RemoteKey(v.ID),
			Conflict: func(ctx context.Context) (*migration.Entity, error) {
				return imp.variationConflict(ctx, sc, v.SKU)
			},
			Apply: func(e *migration.Entity) error {
				return imp.applyVariation(ctx, sc, e, &v, attrs)
			},
		})
		if err != nil {
			return err
		}
		logger.L(ctx).Debug("variant synchronized",
			zap.Int64("variant_id", v.ID),
			zap.String("decision", decision.String()),
		)
	}

	removed, err := imp.sync.RemoveOrphans(ctx, sc, migration.NamespaceVariations, migration.KindVariation)
	if err != nil {
		return err
	}
	if removed > 0 {
		logger.L(ctx).Info("orphan variations removed", zap.Int("count", removed))
	}
	return nil
}

// variationConflict finds an unmapped local variation already holding sku.
// Variations mapped to another variant, or owned by another product, are
// never taken over. A product holding the SKU loses it so the variation can
// take it over.
func (imp *ProductImporter) variationConflict(ctx context.Context, sc *SyncContext, sku string) (*migration.Entity, error) {
	if sku == "" {
		return nil, nil
	}
	found, err := imp.store.FindByField(ctx, migration.FieldSKU, sku, migration.KindProduct, migration.KindVariation)
	if err != nil {
		return nil, err
	}
	mapped, err := imp.sync.Mapping(sc, migration.NamespaceVariations)
	if err != nil {
		return nil, err
	}
	for _, e := range found {
		if e.Kind != migration.KindVariation || mapped.Contains(e.ID) {
			continue
		}
		owned, err := imp.ownedByOtherProduct(ctx, sc, e)
		if err != nil {
			return nil, err
		}
		if owned {
			logger.L(ctx).Debug("variation with SKU belongs to another product",
				zap.String("sku", sku),
				zap.String("local_id", e.ID.String()),
				zap.String("parent_id", e.ParentID.String()),
			)
			continue
		}
		logger.L(ctx).Info("found existing variation by SKU", zap.String("sku", sku), zap.String("local_id", e.ID.String()))
		return e, nil
	}
	for _, e := range found {
		if e.Kind != migration.KindProduct || e.ID == sc.Parent.ID {
			continue
		}
		logger.L(ctx).Info("clearing SKU of product to assign it to a variation",
			zap.String("sku", sku),
			zap.String("local_id", e.ID.String()),
		)
		e.ClearField(migration.FieldSKU)
		if err := imp.persist(ctx, e); err != nil {
			return nil, err
		}
		imp.resolver.Forget(e.ID)
	}
	return nil, nil
}

// ownedByOtherProduct reports whether v hangs off a product other than the
// one being synchronized. Variations whose parent is gone are free.
func (imp *ProductImporter) ownedByOtherProduct(ctx context.Context, sc *SyncContext, v *migration.Entity) (bool, error) {
	if v.ParentID == uuid.Nil || v.ParentID == sc.Parent.ID {
		return false, nil
	}
	if _, err := imp.store.Get(ctx, v.ParentID); err != nil {
		if errors.Is(err, migration.ErrEntityNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (imp *ProductImporter) applyVariation(ctx context.Context, sc *SyncContext, e *migration.Entity, v *migration.RemoteVariant, attrs []ProductAttribute) error {
	e.SetField("menu_order", strconv.Itoa(v.Position))
	e.SetField("status", migration.ProductPublish)
	e.SetField("name", v.Title)

	if sc.ShouldProcess("stock") {
		applyStock(e, v)
	}
	if sc.ShouldProcess("weight") {
		imp.applyWeight(ctx, sc, e, v)
	}
	if sc.ShouldProcess("images") && v.ImageID != 0 {
		images, err := imp.sync.Mapping(sc, migration.NamespaceImages)
		if err != nil {
			return err
		}
		if id, ok := images.Get(migration.RemoteKey(v.ImageID)); ok {
			setRef(e, "image_id", id)
		}
	}
	if sc.ShouldProcess("price") {
		applyPrices(e, v)
	}
	if sc.ShouldProcess("sku") && v.SKU != "" {
		e.SetField(migration.FieldSKU, v.SKU)
	}
	for _, attr := range attrs {
		e.SetField("attribute_"+attr.Taxonomy, slugify(v.Option(attr.Position)))
	}

	e.SetMeta(migration.MetaOriginalVariantID, migration.RemoteKey(v.ID))
	e.SetMeta(migration.MetaOriginalProductID, migration.RemoteKey(v.ProductID))
	return nil
}
