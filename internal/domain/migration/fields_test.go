package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFieldSelector(t *testing.T) {
	t.Run("Defaults to every known field", func(t *testing.T) {
		s, err := NewFieldSelector(ProductFields, nil, nil)
		require.NoError(t, err)
		for _, f := range ProductFields {
			assert.True(t, s.ShouldProcess(f), f)
		}
	})

	t.Run("Allow minus deny", func(t *testing.T) {
		s, err := NewFieldSelector(ProductFields, []string{"title", "price", "sku"}, []string{"price"})
		require.NoError(t, err)
		assert.True(t, s.ShouldProcess("title"))
		assert.True(t, s.ShouldProcess("sku"))
		assert.False(t, s.ShouldProcess("price"))
		assert.False(t, s.ShouldProcess("images"))
		assert.Equal(t, []string{"sku", "title"}, s.Selected())
	})

	t.Run("Deny only", func(t *testing.T) {
		s, err := NewFieldSelector(OrderFields, nil, []string{"refunds"})
		require.NoError(t, err)
		assert.False(t, s.ShouldProcess("refunds"))
		assert.True(t, s.ShouldProcess("line_items"))
	})

	t.Run("Unknown field rejected", func(t *testing.T) {
		_, err := NewFieldSelector(CouponFields, []string{"colour"}, nil)
		assert.ErrorIs(t, err, ErrUnknownField)

		_, err = NewFieldSelector(CouponFields, nil, []string{"colour"})
		assert.ErrorIs(t, err, ErrUnknownField)
	})

	t.Run("Nil selector processes everything", func(t *testing.T) {
		var s *FieldSelector
		assert.True(t, s.ShouldProcess("anything"))
	})
}

func TestParseFieldList(t *testing.T) {
	assert.Equal(t, []string{"title", "sku"}, ParseFieldList(" title, ,sku,"))
	assert.Nil(t, ParseFieldList(""))
}
