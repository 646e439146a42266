package migration

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RemoteProduct is a product as returned by the Shopify Admin REST API.
type RemoteProduct struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Handle      string          `json:"handle"`
	BodyHTML    string          `json:"body_html"`
	Vendor      string          `json:"vendor"`
	ProductType string          `json:"product_type"`
	Status      string          `json:"status"`
	Tags        string          `json:"tags"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Variants    []RemoteVariant `json:"variants"`
	Options     []RemoteOption  `json:"options"`
	Images      []RemoteImage   `json:"images"`
}

// Product types selectable with --product-type
const (
	ProductTypeSingle   = "single"
	ProductTypeVariable = "variable"
	ProductTypeAll      = "all"
)

// IsVariable reports whether the product has more than one variant
func (p *RemoteProduct) IsVariable() bool {
	return len(p.Variants) > 1
}

// Type returns single or variable
func (p *RemoteProduct) Type() string {
	if p.IsVariable() {
		return ProductTypeVariable
	}
	return ProductTypeSingle
}

// FirstVariant returns the first variant or nil
func (p *RemoteProduct) FirstVariant() *RemoteVariant {
	if len(p.Variants) == 0 {
		return nil
	}
	return &p.Variants[0]
}

// TagList splits the comma separated tags, dropping empties
func (p *RemoteProduct) TagList() []string {
	return SplitTags(p.Tags)
}

// SplitTags splits a comma separated tag string; blank entries are dropped
func SplitTags(tags string) []string {
	var out []string
	for _, t := range strings.Split(tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// RemoteVariant is a purchasable variant of a product
type RemoteVariant struct {
	ID                  int64               `json:"id"`
	ProductID           int64               `json:"product_id"`
	Title               string              `json:"title"`
	SKU                 string              `json:"sku"`
	Position            int                 `json:"position"`
	Price               decimal.Decimal     `json:"price"`
	CompareAtPrice      decimal.NullDecimal `json:"compare_at_price"`
	InventoryManagement string              `json:"inventory_management"`
	InventoryPolicy     string              `json:"inventory_policy"`
	InventoryQuantity   int                 `json:"inventory_quantity"`
	Weight              decimal.Decimal     `json:"weight"`
	WeightUnit          string              `json:"weight_unit"`
	ImageID             int64               `json:"image_id"`
	Option1             string              `json:"option1"`
	Option2             string              `json:"option2"`
	Option3             string              `json:"option3"`
}

// Option returns the value of option at 1-based position
func (v *RemoteVariant) Option(position int) string {
	switch position {
	case 1:
		return v.Option1
	case 2:
		return v.Option2
	case 3:
		return v.Option3
	}
	return ""
}

// Prices resolves regular and sale price. Sale is empty unless the
// compare-at price is higher than the selling price.
func (v *RemoteVariant) Prices() (regular decimal.Decimal, sale *decimal.Decimal) {
	if v.CompareAtPrice.Valid && v.CompareAtPrice.Decimal.GreaterThan(v.Price) {
		price := v.Price
		return v.CompareAtPrice.Decimal, &price
	}
	return v.Price, nil
}

// Stock statuses
const (
	StockInStock    = "instock"
	StockOutOfStock = "outofstock"

	inventoryManagedByShopify = "shopify"
	inventoryPolicyDeny       = "deny"
)

// ManagesStock reports whether Shopify tracks inventory for the variant
func (v *RemoteVariant) ManagesStock() bool {
	return v.InventoryManagement == inventoryManagedByShopify
}

// StockStatus is outofstock when nothing is left and overselling is denied
func (v *RemoteVariant) StockStatus() string {
	if v.InventoryQuantity <= 0 && v.InventoryPolicy == inventoryPolicyDeny {
		return StockOutOfStock
	}
	return StockInStock
}

// RemoteOption is a product option such as Size or Color
type RemoteOption struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Position int      `json:"position"`
	Values   []string `json:"values"`
}

// RemoteImage is a product image
type RemoteImage struct {
	ID       int64  `json:"id"`
	Src      string `json:"src"`
	Alt      string `json:"alt"`
	Position int    `json:"position"`
}

// ---------------------------------------------------------------------------
// GraphQL enrichment
// ---------------------------------------------------------------------------

// ProductDetails is the per-product data only the GraphQL API exposes
type ProductDetails struct {
	OnlineStoreURL *string
	Collections    []Collection
	Metafields     []Metafield
}

// Collection is a product collection; it becomes a category locally
type Collection struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
}

// Metafield is a namespaced custom field
type Metafield struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

// FullKey returns namespace_key
func (m Metafield) FullKey() string {
	return fmt.Sprintf("%s_%s", m.Namespace, m.Key)
}

// SEO returns the title and description tags if present
func (d *ProductDetails) SEO() (title, description string, hasTitle, hasDescription bool) {
	if d == nil {
		return
	}
	for _, m := range d.Metafields {
		if m.Namespace != "global" {
			continue
		}
		switch m.Key {
		case "title_tag":
			title, hasTitle = m.Value, true
		case "description_tag":
			description, hasDescription = m.Value, true
		}
	}
	return
}

// ---------------------------------------------------------------------------
// Exclusion
// ---------------------------------------------------------------------------

// ProductExcluded reports whether the product id or its first SKU matches an
// exclude entry. Entries containing * are case-insensitive globs.
func ProductExcluded(p *RemoteProduct, exclude []string) bool {
	id := fmt.Sprint(p.ID)
	sku := ""
	if v := p.FirstVariant(); v != nil {
		sku = v.SKU
	}
	for _, pattern := range exclude {
		if pattern == id {
			return true
		}
		if sku != "" && matchGlob(pattern, sku) {
			return true
		}
	}
	return false
}

func matchGlob(pattern, subject string) bool {
	expr := "(?i)^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*") + "$"
	re, err := regexp.Compile(expr)
	if err != nil {
		return false
	}
	return re.MatchString(subject)
}
