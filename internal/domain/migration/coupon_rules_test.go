package migration

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func levels(advisories []Advisory) []AdvisoryLevel {
	out := make([]AdvisoryLevel, 0, len(advisories))
	for _, a := range advisories {
		out = append(out, a.Level)
	}
	return out
}

func TestTranslateCoupon(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	t.Run("Percentage one-time coupon", func(t *testing.T) {
		c := &RemoteCoupon{
			Title:    "Spring",
			StartsAt: &past,
			Gets: &CustomerGets{
				AppliesOnOneTimePurchase: true,
				Value:                    DiscountValue{Percentage: decimal.NewNullDecimal(decimal.RequireFromString("0.15"))},
				Items:                    DiscountItems{AllItems: true},
			},
		}
		terms, adv := TranslateCoupon(c, now)
		assert.Equal(t, DiscountPercent, terms.DiscountType)
		assert.True(t, terms.Amount.Equal(decimal.NewFromInt(15)))
		assert.Nil(t, terms.ProductIDs)
		assert.True(t, terms.IndividualUse)
		assert.Empty(t, adv)
	})

	t.Run("Percentage on subscription", func(t *testing.T) {
		c := &RemoteCoupon{
			RecurringCycleLimit: 3,
			Gets: &CustomerGets{
				AppliesOnSubscription: true,
				Value:                 DiscountValue{Percentage: decimal.NewNullDecimal(decimal.RequireFromString("0.1"))},
				Items:                 DiscountItems{AllItems: true},
			},
		}
		terms, adv := TranslateCoupon(c, now)
		assert.Equal(t, DiscountRecurringPercent, terms.DiscountType)
		assert.Equal(t, 3, terms.NumberPayments)
		assert.Empty(t, adv)
	})

	t.Run("Amount per item", func(t *testing.T) {
		c := &RemoteCoupon{
			Gets: &CustomerGets{
				AppliesOnOneTimePurchase: true,
				Value: DiscountValue{
					Amount:            &Money{Amount: decimal.RequireFromString("5.00")},
					AppliesOnEachItem: true,
				},
				Items: DiscountItems{ProductIDs: []string{"101", "102"}},
			},
		}
		terms, _ := TranslateCoupon(c, now)
		assert.Equal(t, DiscountFixedProduct, terms.DiscountType)
		assert.True(t, terms.Amount.Equal(decimal.NewFromInt(5)))
		assert.Equal(t, []string{"101", "102"}, terms.ProductIDs)
	})

	t.Run("Amount on subscription and one-time warns", func(t *testing.T) {
		c := &RemoteCoupon{
			Gets: &CustomerGets{
				AppliesOnOneTimePurchase: true,
				AppliesOnSubscription:    true,
				Value:                    DiscountValue{Amount: &Money{Amount: decimal.NewFromInt(10)}},
				Items:                    DiscountItems{AllItems: true},
			},
		}
		terms, adv := TranslateCoupon(c, now)
		assert.Equal(t, DiscountRecurringFee, terms.DiscountType)
		assert.Equal(t, []AdvisoryLevel{AdvisoryWarning}, levels(adv))
	})

	t.Run("Cycle limit without a value becomes recurring fee", func(t *testing.T) {
		c := &RemoteCoupon{
			RecurringCycleLimit:   2,
			AppliesOnSubscription: true,
			DiscountClass:         DiscountClassShipping,
			Destination:           &Destination{AllCountries: true},
		}
		terms, adv := TranslateCoupon(c, now)
		assert.Equal(t, DiscountRecurringFee, terms.DiscountType)
		assert.True(t, terms.FreeShipping)
		assert.Empty(t, adv)
	})

	t.Run("Unsupported rules", func(t *testing.T) {
		qty := "3"
		c := &RemoteCoupon{
			StartsAt:             &future,
			DiscountClass:        DiscountClassShipping,
			CombinesWith:         CombinesWith{OrderDiscounts: true},
			Minimum:              &MinimumRequirement{Quantity: &qty},
			Customers:            CustomerSelection{Segments: []CouponSegment{{ID: "1", Name: "VIP"}}},
			MaximumShippingPrice: &Money{Amount: decimal.NewFromInt(20)},
		}
		_, adv := TranslateCoupon(c, now)
		assert.Equal(t, []AdvisoryLevel{
			AdvisoryError, AdvisoryWarning, AdvisoryWarning, AdvisoryWarning, AdvisoryWarning, AdvisoryWarning,
		}, levels(adv))
	})

	t.Run("Restrictions and limits", func(t *testing.T) {
		c := &RemoteCoupon{
			AppliesOncePerCustomer: true,
			Minimum:                &MinimumRequirement{Subtotal: &Money{Amount: decimal.NewFromInt(50)}},
			Customers:              CustomerSelection{Customers: []CouponEmail{{Email: "a@example.com"}, {Email: ""}}},
		}
		terms, _ := TranslateCoupon(c, now)
		assert.True(t, terms.MinimumAmount.Valid)
		assert.True(t, terms.MinimumAmount.Decimal.Equal(decimal.NewFromInt(50)))
		assert.Equal(t, []string{"a@example.com"}, terms.EmailRestrictions)
		assert.Equal(t, 1, terms.UsagePerUser)
		assert.Equal(t, DiscountFixedCart, terms.DiscountType)
	})

	t.Run("Too many codes warns", func(t *testing.T) {
		c := &RemoteCoupon{Codes: make([]DiscountCode, MaxCouponCodes)}
		_, adv := TranslateCoupon(c, now)
		assert.Equal(t, []AdvisoryLevel{AdvisoryWarning}, levels(adv))
	})
}

func TestRemoteCoupon_Codes(t *testing.T) {
	c := &RemoteCoupon{Title: "Fallback"}
	assert.Equal(t, "Fallback", c.PrimaryCode())
	assert.Nil(t, c.ChildCodes())

	c.Codes = []DiscountCode{{Code: "A"}, {Code: "B"}, {Code: "C"}}
	assert.Equal(t, "A", c.PrimaryCode())
	assert.Equal(t, []DiscountCode{{Code: "B"}, {Code: "C"}}, c.ChildCodes())
}
