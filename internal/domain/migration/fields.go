package migration

import (
	"fmt"
	"slices"
	"strings"
)

// Known field sets per importer
var (
	ProductFields = []string{
		"title", "slug", "description", "status", "date_created", "catalog_visibility",
		"category", "tag", "price", "sku", "stock", "weight", "brand", "images", "seo", "attributes",
	}

	OrderFields = []string{
		"status", "dates", "customer", "billing", "shipping_address", "currency", "totals", "note",
		"tags", "line_items", "shipping_lines", "tax_lines", "discounts", "refunds", "tracking", "payment",
	}

	CouponFields = []string{
		"code", "description", "amount", "dates", "usage", "restrictions",
	}
)

// FieldSelector decides which fields an importer writes. It is computed once
// per run as allow minus deny.
type FieldSelector struct {
	selected map[string]struct{}
}

// NewFieldSelector builds a selector over known. An empty allow list means
// every known field. Names outside known are rejected.
func NewFieldSelector(known, allow, deny []string) (*FieldSelector, error) {
	for _, name := range append(slices.Clone(allow), deny...) {
		if !slices.Contains(known, name) {
			return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownField, name, strings.Join(known, ", "))
		}
	}

	base := allow
	if len(base) == 0 {
		base = known
	}

	s := &FieldSelector{selected: make(map[string]struct{}, len(base))}
	for _, name := range base {
		if !slices.Contains(deny, name) {
			s.selected[name] = struct{}{}
		}
	}
	return s, nil
}

// AllFields selects every known field
func AllFields(known []string) *FieldSelector {
	s, _ := NewFieldSelector(known, nil, nil)
	return s
}

// ShouldProcess reports whether the field is selected
func (s *FieldSelector) ShouldProcess(field string) bool {
	if s == nil {
		return true
	}
	_, ok := s.selected[field]
	return ok
}

// Selected returns the selected fields in sorted order
func (s *FieldSelector) Selected() []string {
	out := make([]string, 0, len(s.selected))
	for name := range s.selected {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// ParseFieldList splits a comma separated --fields value
func ParseFieldList(value string) []string {
	var out []string
	for _, f := range strings.Split(value, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
