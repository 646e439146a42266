package migration

import (
	"time"

	"github.com/shopspring/decimal"
)

// Local coupon discount types
const (
	DiscountFixedCart        = "fixed_cart"
	DiscountFixedProduct     = "fixed_product"
	DiscountPercent          = "percent"
	DiscountRecurringFee     = "recurring_fee"
	DiscountRecurringPercent = "recurring_percent"
)

// MaxCouponCodes is how many codes one page of a discount carries. Reaching
// it means some codes may not have been fetched.
const MaxCouponCodes = 99

// CouponTerms is the local representation of a discount's rules
type CouponTerms struct {
	DiscountType      string
	Amount            decimal.Decimal
	FreeShipping      bool
	IndividualUse     bool
	MinimumAmount     decimal.NullDecimal
	EmailRestrictions []string
	// ProductIDs holds remote product ids; nil means every product.
	ProductIDs     []string
	NumberPayments int
	UsageLimit     *int
	UsagePerUser   int
}

// TranslateCoupon converts a remote discount into local coupon terms and
// reports every rule that is lost or approximated.
func TranslateCoupon(c *RemoteCoupon, now time.Time) (CouponTerms, []Advisory) {
	terms := CouponTerms{
		DiscountType:   DiscountFixedCart,
		IndividualUse:  true,
		NumberPayments: c.RecurringCycleLimit,
		UsageLimit:     c.UsageLimit,
	}
	if c.AppliesOncePerCustomer {
		terms.UsagePerUser = 1
	}

	advisories := unsupportedRules(c, now)

	// Restrictions
	if c.Minimum != nil && c.Minimum.Subtotal != nil {
		terms.MinimumAmount = decimal.NewNullDecimal(c.Minimum.Subtotal.Amount)
	}
	if c.Gets != nil && !c.Gets.Items.AllItems {
		terms.ProductIDs = append([]string{}, c.Gets.Items.ProductIDs...)
	}

	// Limits
	for _, customer := range c.Customers.Customers {
		if customer.Email != "" {
			terms.EmailRestrictions = append(terms.EmailRestrictions, customer.Email)
		}
	}

	advisories = append(advisories, applyDiscountType(&terms, c)...)

	if c.DiscountClass == DiscountClassShipping {
		terms.FreeShipping = true
	}

	if len(c.Codes) >= MaxCouponCodes {
		advisories = append(advisories, Warning("only the first %d codes were processed for this coupon", len(c.Codes)))
	}

	return terms, advisories
}

func unsupportedRules(c *RemoteCoupon, now time.Time) []Advisory {
	var out []Advisory

	if c.StartsAt != nil && c.StartsAt.After(now) {
		out = append(out, Error("coupons with a start date in the future are not supported"))
	}
	if c.Minimum != nil && c.Minimum.Quantity != nil {
		out = append(out, Warning("minimum product quantity is not supported"))
	}
	if len(c.Customers.Segments) > 0 {
		out = append(out, Warning("customer segmentation is not supported"))
	}
	if c.CombinesWith.Any() {
		out = append(out, Warning("combining discounts is not handled"))
	}
	if c.DiscountClass == DiscountClassShipping {
		if c.Destination == nil || !c.Destination.AllCountries {
			out = append(out, Warning("free shipping for specific countries is not supported; the coupon applies to all countries"))
		}
		if c.MaximumShippingPrice != nil {
			out = append(out, Warning("limiting free shipping to a maximum shipping price is not supported"))
		}
	}
	return out
}

// applyDiscountType picks the discount type. A discount usable on both
// one-time purchases and subscriptions becomes a subscription coupon.
func applyDiscountType(terms *CouponTerms, c *RemoteCoupon) []Advisory {
	var out []Advisory
	onSubscription := c.OnSubscription()
	needsLimit := c.RecurringCycleLimit > 0 && onSubscription
	canLimit := true

	if c.Gets != nil {
		v := c.Gets.Value
		if v.Percentage.Valid {
			terms.Amount = v.Percentage.Decimal.Mul(decimal.NewFromInt(100))
			terms.DiscountType = DiscountPercent
			canLimit = false
			if onSubscription {
				terms.DiscountType = DiscountRecurringPercent
				needsLimit = false
			}
		}
		if v.Amount != nil {
			terms.Amount = v.Amount.Amount
			terms.DiscountType = DiscountFixedCart
			canLimit = false
			if v.AppliesOnEachItem {
				terms.DiscountType = DiscountFixedProduct
			}
			if onSubscription {
				terms.DiscountType = DiscountRecurringFee
				needsLimit = false
			}
		}
	}

	switch {
	case needsLimit && canLimit:
		terms.DiscountType = DiscountRecurringFee
	case needsLimit:
		out = append(out, Error("cannot limit a coupon to a number of cycles when it is not a subscription coupon"))
	}

	if onSubscription && c.OnOneTimePurchase() {
		out = append(out, Warning("coupon applies to one-time purchases and subscriptions; importing it as a subscription coupon"))
	}
	return out
}
