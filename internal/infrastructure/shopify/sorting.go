package shopify

import (
	"strings"
)

// DefaultOrderSorting is the order listing sort used when none is given
// or the given one is not supported
const DefaultOrderSorting = "id asc"

// OrderSortFields are the order columns the REST listing can sort by
var OrderSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"processed_at": true,
}

// ValidateSortOrder normalizes a sort direction to asc or desc.
// Anything other than asc is desc.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "asc") {
		return "asc"
	}
	return "desc"
}

// ValidateSortField returns sortField when the whitelist allows it and
// defaultField otherwise
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.ToLower(strings.TrimSpace(sortField))
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// OrderSorting turns "<field> [asc|desc]" into the listing's order
// parameter. Unknown fields fall back to DefaultOrderSorting.
func OrderSorting(sorting string) string {
	parts := strings.Fields(sorting)
	if len(parts) == 0 || len(parts) > 2 {
		return DefaultOrderSorting
	}
	field := ValidateSortField(parts[0], OrderSortFields, "")
	if field == "" {
		return DefaultOrderSorting
	}
	dir := "asc"
	if len(parts) == 2 {
		dir = ValidateSortOrder(parts[1])
	}
	return field + " " + dir
}
