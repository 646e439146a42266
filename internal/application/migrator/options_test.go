package migrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/migrator/internal/domain/migration"
)

func TestDefaultOptions_AreValid(t *testing.T) {
	defaults := map[string]RunOptions{
		"orders":          DefaultOrderOptions(),
		"order-tags":      DefaultOrderTagOptions(),
		"products":        DefaultProductOptions(),
		"coupons":         DefaultCouponOptions(),
		"subscriptions":   DefaultSubscriptionOptions(),
		"payment-methods": DefaultPaymentMethodOptions(),
	}
	for name, opts := range defaults {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, opts.Validate())
		})
	}
}

func TestRunOptions_Validate(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(24 * time.Hour)

	tests := []struct {
		name   string
		modify func(o *RunOptions)
		want   string
	}{
		{
			name:   "zero limit",
			modify: func(o *RunOptions) { o.Limit = 0 },
			want:   "--limit: must be at least 1",
		},
		{
			name:   "page too large",
			modify: func(o *RunOptions) { o.PerPage = 251 },
			want:   "--perpage: must be at most 250",
		},
		{
			name:   "unknown product type",
			modify: func(o *RunOptions) { o.ProductType = "bundle" },
			want:   "--product-type: must be one of",
		},
		{
			name:   "non positive id",
			modify: func(o *RunOptions) { o.IDs = []int64{12, 0} },
			want:   "--ids",
		},
		{
			name: "before not after after",
			modify: func(o *RunOptions) {
				o.Before = &early
				o.After = &late
			},
			want: "--before: must be later than --after",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultProductOptions()
			tt.modify(&opts)

			err := opts.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, migration.ErrInvalidOptions)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("reports every problem", func(t *testing.T) {
		opts := DefaultOrderOptions()
		opts.Limit = 0
		opts.PerPage = 0

		err := opts.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--limit")
		assert.Contains(t, err.Error(), "--perpage")
	})
}

func TestRunOptions_Excluded(t *testing.T) {
	opts := RunOptions{Exclude: []string{"1001", " 1002 "}}

	assert.True(t, opts.Excluded("1001"))
	assert.True(t, opts.Excluded("1002"))
	assert.False(t, opts.Excluded("1003"))
}

func TestRunOptions_FieldSelector(t *testing.T) {
	t.Run("allow minus deny", func(t *testing.T) {
		opts := RunOptions{Fields: []string{"status", "tags", "note"}, ExcludeFields: []string{"note"}}
		fields, err := opts.FieldSelector(migration.OrderFields)
		require.NoError(t, err)
		assert.Equal(t, []string{"status", "tags"}, fields.Selected())
	})

	t.Run("unknown field", func(t *testing.T) {
		opts := RunOptions{Fields: []string{"colour"}}
		_, err := opts.FieldSelector(migration.ProductFields)
		assert.ErrorIs(t, err, migration.ErrUnknownField)
	})
}
