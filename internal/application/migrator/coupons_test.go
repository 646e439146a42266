package migrator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/migrator/internal/domain/migration"
)

func basicCoupon() migration.RemoteCoupon {
	ends := testNow.Add(30 * 24 * time.Hour)
	return migration.RemoteCoupon{
		ID:      "11",
		Type:    migration.CouponTypeBasic,
		Title:   "Ten off",
		Summary: "10% off selected products",
		Codes: []migration.DiscountCode{
			{ID: "1", Code: " TEN "},
			{ID: "2", Code: "TEN-B", AsyncUsageCount: 2},
			{ID: "3", Code: "  "},
		},
		AsyncUsageCount:        5,
		UsageLimit:             ptr(100),
		AppliesOncePerCustomer: true,
		CreatedAt:              orderCreated,
		EndsAt:                 &ends,
		Minimum:                &migration.MinimumRequirement{Subtotal: &migration.Money{Amount: dec("50")}},
		Customers: migration.CustomerSelection{
			Customers: []migration.CouponEmail{{ID: "5", Email: "a@example.com"}},
		},
		Gets: &migration.CustomerGets{
			AppliesOnOneTimePurchase: true,
			Value:                    migration.DiscountValue{Percentage: decimal.NewNullDecimal(dec("0.1"))},
			Items:                    migration.DiscountItems{ProductIDs: []string{"100", "999"}},
		},
	}
}

func runCoupons(t *testing.T, te *testEngine, coupons ...migration.RemoteCoupon) *RunResult {
	t.Helper()
	imp, err := NewCouponImporter(te.Engine, &fakeCouponSource{coupons: coupons}, DefaultCouponOptions())
	require.NoError(t, err)
	result, err := imp.Run(context.Background())
	require.NoError(t, err)
	return result
}

func TestCouponImporter_BasicDiscount(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	product := migration.NewEntity(migration.KindProduct)
	product.SetMeta(migration.MetaOriginalProductID, "100")
	mustCreate(t, te.store, product)

	result := runCoupons(t, te, basicCoupon())
	assert.Equal(t, 1, result.Created)

	primary := findOne(t, te.store, migration.MetaOriginalCouponID, "11", migration.KindCoupon)

	t.Run("primary code", func(t *testing.T) {
		assert.Equal(t, "ten", primary.Field(migration.FieldCode))
		assert.Equal(t, "10% off selected products", primary.Field("description"))
		assert.Equal(t, migration.DiscountPercent, primary.Field("discount_type"))
		assert.Equal(t, "10.00", primary.Field("amount"))
		assert.Equal(t, "true", primary.Field("individual_use"))
		assert.Equal(t, "2024-03-31T12:00:00Z", primary.Field("date_expires"))
	})

	t.Run("usage", func(t *testing.T) {
		assert.Equal(t, "100", primary.Field("usage_limit"))
		assert.Equal(t, "5", primary.Field("usage_count"))
		assert.Equal(t, "1", primary.Field("usage_limit_per_user"))
	})

	t.Run("restrictions", func(t *testing.T) {
		assert.Equal(t, "50.00", primary.Field("minimum_amount"))
		assert.Equal(t, "a@example.com", primary.Field("email_restrictions"))
		assert.Equal(t, product.ID.String(), primary.Field("product_ids"), "unmigrated products are left out")
	})

	t.Run("child codes", func(t *testing.T) {
		coupons, err := te.store.FindByField(ctx, migration.FieldCode, "ten-b", migration.KindCoupon)
		require.NoError(t, err)
		require.Len(t, coupons, 1)
		child := coupons[0]
		assert.Equal(t, "2", child.Field("usage_count"))
		assert.Empty(t, child.GetMeta(migration.MetaOriginalCouponID))
		assert.Equal(t, primary.Field("amount"), child.Field("amount"))

		all, err := te.store.List(ctx, migration.KindCoupon, 0, 10)
		require.NoError(t, err)
		assert.Len(t, all, 2, "blank codes are ignored")
	})

	t.Run("second run updates every code", func(t *testing.T) {
		result := runCoupons(t, te, basicCoupon())
		assert.Equal(t, 1, result.Updated)

		all, err := te.store.List(ctx, migration.KindCoupon, 0, 10)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestCouponImporter_MatchesExistingCode(t *testing.T) {
	te := newTestEngine(t)

	legacy := migration.NewEntity(migration.KindCoupon)
	legacy.SetField(migration.FieldCode, "ten")
	legacy.SetField("free_shipping", "true")
	mustCreate(t, te.store, legacy)

	result := runCoupons(t, te, basicCoupon())
	assert.Equal(t, 1, result.Updated)

	coupon := mustGet(t, te.store, legacy)
	assert.Equal(t, "11", coupon.GetMeta(migration.MetaOriginalCouponID))
	assert.Empty(t, coupon.Field("free_shipping"), "rules of the previous import are reset")
}

func TestCouponImporter_Advisories(t *testing.T) {
	future := testNow.Add(24 * time.Hour)

	tests := []struct {
		name    string
		coupon  migration.RemoteCoupon
		outcome string
		level   migration.AdvisoryLevel
		want    string
	}{
		{
			name: "unsupported type is skipped",
			coupon: migration.RemoteCoupon{
				ID: "20", Type: "DiscountCodeBxgy", Title: "Buy one get one",
				Codes: []migration.DiscountCode{{Code: "BOGO"}},
			},
			outcome: "skipped",
			level:   migration.AdvisoryWarning,
			want:    `discount type DiscountCodeBxgy is not supported, skipping "Buy one get one"`,
		},
		{
			name: "free shipping to specific countries",
			coupon: migration.RemoteCoupon{
				ID: "21", Type: migration.CouponTypeFreeShipping, DiscountClass: migration.DiscountClassShipping,
				Codes: []migration.DiscountCode{{Code: "SHIPFREE"}},
			},
			outcome: "created",
			level:   migration.AdvisoryWarning,
			want:    "free shipping for specific countries is not supported; the coupon applies to all countries",
		},
		{
			name: "start date in the future",
			coupon: migration.RemoteCoupon{
				ID: "22", Type: migration.CouponTypeBasic, StartsAt: &future,
				Codes: []migration.DiscountCode{{Code: "LATER"}},
			},
			outcome: "created",
			level:   migration.AdvisoryError,
			want:    "coupons with a start date in the future are not supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(t)
			result := runCoupons(t, te, tt.coupon)
			if tt.outcome == "skipped" {
				assert.Equal(t, 1, result.Skipped)
			} else {
				assert.Equal(t, 1, result.Created)
			}
			assert.Contains(t, te.advisories(tt.level), tt.want)
		})
	}
}

func TestCouponImporter_FreeShipping(t *testing.T) {
	te := newTestEngine(t)
	runCoupons(t, te, migration.RemoteCoupon{
		ID:            "21",
		Type:          migration.CouponTypeFreeShipping,
		DiscountClass: migration.DiscountClassShipping,
		Destination:   &migration.Destination{AllCountries: true},
		Codes:         []migration.DiscountCode{{Code: "SHIPFREE"}},
	})

	coupon := findOne(t, te.store, migration.MetaOriginalCouponID, "21", migration.KindCoupon)
	assert.Equal(t, "shipfree", coupon.Field(migration.FieldCode))
	assert.Equal(t, "true", coupon.Field("free_shipping"))
	assert.Equal(t, migration.DiscountFixedCart, coupon.Field("discount_type"))
	assert.Equal(t, "0.00", coupon.Field("amount"))
	assert.Empty(t, te.advisories(migration.AdvisoryWarning))
}

func TestNormalizeCouponCode(t *testing.T) {
	assert.Equal(t, "welcome10", normalizeCouponCode("  WELCOME10 "))
	assert.Empty(t, normalizeCouponCode("   "))
}

func TestCouponImporter_NarrowFieldsLeaveOthersUnchanged(t *testing.T) {
	te := newTestEngine(t)
	runCoupons(t, te, basicCoupon())

	changed := basicCoupon()
	changed.Summary = "Now 15% off"
	changed.Minimum = nil
	changed.Customers = migration.CustomerSelection{}
	changed.Gets.Value = migration.DiscountValue{Amount: &migration.Money{Amount: dec("5")}}

	opts := DefaultCouponOptions()
	opts.Fields = []string{"description"}
	imp, err := NewCouponImporter(te.Engine, &fakeCouponSource{coupons: []migration.RemoteCoupon{changed}}, opts)
	require.NoError(t, err)
	result, err := imp.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	primary := findOne(t, te.store, migration.MetaOriginalCouponID, "11", migration.KindCoupon)
	assert.Equal(t, "Now 15% off", primary.Field("description"))

	tests := []struct {
		field string
		want  string
	}{
		{"discount_type", migration.DiscountPercent},
		{"amount", "10.00"},
		{"minimum_amount", "50.00"},
		{"email_restrictions", "a@example.com"},
		{"individual_use", "true"},
		{"usage_limit", "100"},
		{"usage_count", "5"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, primary.Field(tt.field))
		})
	}
}
