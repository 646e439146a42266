package shopify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erp/migrator/internal/domain/migration"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "desc"},
		{"ASC", "asc"},
		{"  asc  ", "asc"},
		{"desc", "desc"},
		{"asc; DROP TABLE orders;--", "desc"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortOrder(tt.input))
		})
	}
}

func TestOrderSorting(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty uses default", "", DefaultOrderSorting},
		{"field only sorts ascending", "created_at", "created_at asc"},
		{"explicit direction", "processed_at DESC", "processed_at desc"},
		{"field is case-insensitive", "Updated_At asc", "updated_at asc"},
		{"unknown field", "total_price asc", DefaultOrderSorting},
		{"too many words", "id asc nulls", DefaultOrderSorting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, OrderSorting(tt.input))
		})
	}
}

func TestOrderFiltersNormalizeSorting(t *testing.T) {
	params := orderFilters(migration.OrderQuery{Sorting: "created_at desc"})
	assert.Equal(t, "created_at desc", params.Get("order"))

	params = orderFilters(migration.OrderQuery{})
	assert.Equal(t, DefaultOrderSorting, params.Get("order"))
}
