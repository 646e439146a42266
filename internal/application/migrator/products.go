package migrator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/logger"
)

// DefaultProductCategory is assigned to products without any collection
const DefaultProductCategory = "uncategorized"

// ProductImporter copies Shopify products, their images and variants into
// the local store
type ProductImporter struct {
	*session
	source migration.ProductSource
}

var _ Handler[migration.RemoteProduct] = (*ProductImporter)(nil)

// NewProductImporter creates a product importer for one run
func NewProductImporter(e *Engine, source migration.ProductSource, opts RunOptions) (*ProductImporter, error) {
	if opts.ProductType == "" {
		opts.ProductType = migration.ProductTypeAll
	}
	s, err := e.newSession(opts, migration.ProductFields)
	if err != nil {
		return nil, err
	}
	return &ProductImporter{session: s, source: source}, nil
}

// Run imports every product of the listing
func (imp *ProductImporter) Run(ctx context.Context) (*RunResult, error) {
	q := migration.ProductQuery{
		Before: imp.opts.Before,
		After:  imp.opts.After,
		Status: imp.opts.Status,
		IDs:    imp.opts.IDs,
		Handle: imp.opts.Handle,
	}
	fetch := func(ctx context.Context, req migration.PageRequest) (migration.Page[migration.RemoteProduct], error) {
		return imp.source.ListProducts(ctx, q, req)
	}
	return Run(ctx, imp.engine, fetch, imp, imp.opts)
}

// Kind implements Handler
func (imp *ProductImporter) Kind() migration.EntityKind {
	return migration.KindProduct
}

// RemoteID implements Handler
func (imp *ProductImporter) RemoteID(p migration.RemoteProduct) string {
	return migration.RemoteKey(p.ID)
}

// Process creates or updates the local product of p
func (imp *ProductImporter) Process(ctx context.Context, p migration.RemoteProduct) (Outcome, error) {
	log := logger.L(ctx)
	if migration.ProductExcluded(&p, imp.opts.Exclude) {
		log.Info("product excluded, skipping", zap.String("handle", p.Handle))
		return OutcomeSkipped, nil
	}
	if imp.opts.ProductType != migration.ProductTypeAll && imp.opts.ProductType != p.Type() {
		log.Info("product type not selected, skipping",
			zap.String("handle", p.Handle),
			zap.String("type", p.Type()),
		)
		return OutcomeSkipped, nil
	}

	var details *migration.ProductDetails
	err := imp.engine.retry.Do(ctx, "product details", func(ctx context.Context) error {
		var derr error
		details, derr = imp.source.ProductDetails(ctx, p.ID)
		return derr
	})
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("fetch product details: %w", err)
	}

	sku := ""
	if v := p.FirstVariant(); v != nil {
		sku = v.SKU
	}
	product, outcome, err := imp.claim(ctx, migration.KindProduct,
		ByMeta(migration.MetaOriginalProductID, migration.RemoteKey(p.ID), migration.KindProduct),
		ByField(migration.FieldSKU, sku, migration.KindProduct).When(!p.IsVariable()),
		ByField(migration.FieldSlug, p.Handle, migration.KindProduct),
	)
	if product == nil || err != nil {
		return outcome, err
	}

	// the mapping store keys the migration data by this id
	product.SetMeta(migration.MetaOriginalProductID, migration.RemoteKey(p.ID))

	sc := NewSyncContext(product, imp.fields, imp.opts.RemoveOrphans)
	imp.applyProductFields(ctx, sc, &p, details)
	if err := imp.persist(ctx, product); err != nil {
		return outcome, err
	}

	if sc.ShouldProcess("brand") {
		applyBrand(product, p.Vendor)
	}
	if sc.ShouldProcess("images") {
		if err := imp.syncImages(ctx, sc, &p); err != nil {
			return outcome, err
		}
	}
	if err := imp.persist(ctx, product); err != nil {
		return outcome, err
	}

	if p.IsVariable() {
		if err := imp.syncVariations(ctx, sc, &p); err != nil {
			return outcome, err
		}
	}

	if sc.ShouldProcess("seo") {
		applySEO(product, details)
	}

	// the mapping store rewrote the blob while syncing
	data, err := migration.LoadMigrationData(product, p.ID)
	if err != nil {
		return outcome, err
	}
	if details != nil {
		for _, m := range details.Metafields {
			data.Metafields[m.FullKey()] = m.Value
		}
	}
	if sc.ShouldProcess("catalog_visibility") && details != nil && details.OnlineStoreURL != nil {
		data.OriginalURL = *details.OnlineStoreURL
	}
	if err := product.SetMetaJSON(migration.MetaMigrationData, data); err != nil {
		return outcome, err
	}
	if err := imp.persist(ctx, product); err != nil {
		return outcome, err
	}

	log.Info("product processed",
		zap.String("local_id", product.ID.String()),
		zap.String("handle", p.Handle),
		zap.String("outcome", outcome.String()),
	)
	return outcome, nil
}

// ---------------------------------------------------------------------------
// Product fields
// ---------------------------------------------------------------------------

func (imp *ProductImporter) applyProductFields(ctx context.Context, sc *SyncContext, p *migration.RemoteProduct, details *migration.ProductDetails) {
	product := sc.Parent
	if p.IsVariable() {
		product.SetField("type", "variable")
	} else {
		product.SetField("type", "simple")
	}

	if sc.ShouldProcess("title") {
		product.SetField("name", p.Title)
	}
	if sc.ShouldProcess("slug") {
		product.SetField(migration.FieldSlug, p.Handle)
	}
	if sc.ShouldProcess("description") {
		product.SetField("description", sanitizeDescription(p.BodyHTML))
	}
	if sc.ShouldProcess("status") {
		product.SetField("status", migration.TranslateProductStatus(p.Status))
	}
	if sc.ShouldProcess("date_created") {
		product.SetTime("date_created", p.CreatedAt)
	}
	if sc.ShouldProcess("catalog_visibility") && details != nil {
		if details.OnlineStoreURL == nil {
			product.SetField("catalog_visibility", migration.VisibilityHidden)
		} else {
			product.ClearField("catalog_visibility")
		}
	}
	if sc.ShouldProcess("category") {
		product.SetField("categories", strings.Join(productCategories(p, details), ","))
	}
	if sc.ShouldProcess("tag") {
		setList(product, "tags", slugs(p.TagList()))
	}

	if p.IsVariable() {
		product.ClearField(migration.FieldSKU)
		return
	}

	v := p.FirstVariant()
	if v == nil {
		return
	}
	if sc.ShouldProcess("price") {
		applyPrices(product, v)
	}
	if sc.ShouldProcess("sku") {
		if v.SKU != "" {
			product.SetField(migration.FieldSKU, v.SKU)
		} else {
			product.ClearField(migration.FieldSKU)
		}
	}
	if sc.ShouldProcess("stock") {
		applyStock(product, v)
	}
	if sc.ShouldProcess("weight") {
		imp.applyWeight(ctx, sc, product, v)
	}
	product.SetMeta(migration.MetaOriginalVariantID, migration.RemoteKey(v.ID))
}

// productCategories returns the collection handles, the product type, or the
// default category
func productCategories(p *migration.RemoteProduct, details *migration.ProductDetails) []string {
	var out []string
	if details != nil {
		for _, c := range details.Collections {
			if c.Handle != "" {
				out = append(out, c.Handle)
			}
		}
	}
	if len(out) == 0 && p.ProductType != "" {
		out = append(out, slugify(p.ProductType))
	}
	if len(out) == 0 {
		out = append(out, DefaultProductCategory)
	}
	return out
}

func applyPrices(e *migration.Entity, v *migration.RemoteVariant) {
	regular, sale := v.Prices()
	e.SetMoney("regular_price", regular)
	if sale != nil {
		e.SetMoney("sale_price", *sale)
		e.SetMoney("price", *sale)
	} else {
		e.ClearField("sale_price")
		e.SetMoney("price", regular)
	}
}

func applyStock(e *migration.Entity, v *migration.RemoteVariant) {
	e.SetField("manage_stock", strconv.FormatBool(v.ManagesStock()))
	e.SetField("stock_quantity", strconv.Itoa(v.InventoryQuantity))
	e.SetField("stock_status", v.StockStatus())
}

func (imp *ProductImporter) applyWeight(ctx context.Context, sc *SyncContext, e *migration.Entity, v *migration.RemoteVariant) {
	weight, err := migration.ConvertWeight(v.Weight, v.WeightUnit, imp.engine.weightUnit)
	if err != nil {
		sc.Advise(ctx, migration.Warning("weight not converted: %v", err))
		return
	}
	e.SetField("weight", weight.String())
}

func applyBrand(e *migration.Entity, vendor string) {
	if vendor == "" {
		return
	}
	e.SetField("brand", vendor)
}

// applySEO writes the SEO title and description. The title defaults to the
// product name and the description to the short description; the global
// title_tag and description_tag metafields override both.
func applySEO(e *migration.Entity, details *migration.ProductDetails) {
	title := e.Field("name")
	description := e.Field("short_description")
	if t, d, hasTitle, hasDescription := details.SEO(); hasTitle || hasDescription {
		if hasTitle {
			title = t
		}
		if hasDescription {
			description = d
		}
	}
	e.SetMeta(migration.MetaSEOTitle, title)
	e.SetMeta(migration.MetaSEODescription, description)
}

// ---------------------------------------------------------------------------
// Images
// ---------------------------------------------------------------------------

// syncImages sideloads images that are not mapped yet and sets the featured
// image and the gallery. The first image is featured.
func (imp *ProductImporter) syncImages(ctx context.Context, sc *SyncContext, p *migration.RemoteProduct) error {
	product := sc.Parent
	if len(p.Images) == 0 {
		product.ClearField("image_id")
		product.ClearField("gallery_image_ids")
		return nil
	}

	for _, img := range p.Images {
		_, _, err := imp.sync.Sync(ctx, sc, SubEntity{
			Namespace: migration.NamespaceImages,
			Kind:      migration.KindImage,
			RemoteID:  migration.RemoteKey(img.ID),
			Apply: func(e *migration.Entity) error {
				e.SetField("alt", img.Alt)
				e.SetField("menu_order", strconv.Itoa(img.Position))
				e.SetMeta(migration.MetaOriginalImageID, migration.RemoteKey(img.ID))
				if e.Field("url") != "" {
					return nil
				}
				return imp.sideload(ctx, e, p, img)
			},
		})
		if err != nil {
			return err
		}
	}

	mapping, err := imp.sync.Mapping(sc, migration.NamespaceImages)
	if err != nil {
		return err
	}
	featured, _ := mapping.Get(migration.RemoteKey(p.Images[0].ID))
	setRef(product, "image_id", featured)

	var gallery []string
	for _, img := range p.Images[1:] {
		if id, ok := mapping.Get(migration.RemoteKey(img.ID)); ok && id != featured {
			gallery = append(gallery, id.String())
		}
	}
	setList(product, "gallery_image_ids", gallery)
	return nil
}

func (imp *ProductImporter) sideload(ctx context.Context, e *migration.Entity, p *migration.RemoteProduct, img migration.RemoteImage) error {
	if imp.engine.media == nil {
		e.SetField("url", img.Src)
		return nil
	}
	if imp.opts.DryRun {
		logger.L(ctx).Info("dry run: would sideload image", zap.String("src", img.Src))
		e.SetField("url", img.Src)
		return nil
	}
	key := fmt.Sprintf("products/%d/%d-%s", p.ID, img.ID, imageName(img.Src))
	url, err := imp.engine.media.Sideload(ctx, img.Src, key)
	if err != nil {
		return fmt.Errorf("sideload %s: %w", img.Src, err)
	}
	e.SetField("url", url)
	return nil
}

// imageName returns the file name of an image URL without the query string
func imageName(src string) string {
	name := src
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "image"
	}
	return name
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var (
	scriptOrStyle = regexp.MustCompile(`(?is)<(script|style)\b.*?</(script|style)>`)
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9]+`)
)

// sanitizeDescription drops script and style blocks from product HTML
func sanitizeDescription(html string) string {
	return strings.TrimSpace(scriptOrStyle.ReplaceAllString(html, ""))
}

// slugify lowercases s and joins its alphanumeric runs with dashes
func slugify(s string) string {
	return strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func slugs(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := slugify(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func setList(e *migration.Entity, field string, values []string) {
	if len(values) == 0 {
		e.ClearField(field)
		return
	}
	e.SetField(field, strings.Join(values, ","))
}
