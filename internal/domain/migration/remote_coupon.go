package migration

import (
	"time"

	"github.com/shopspring/decimal"
)

// Code discount types the importer understands
const (
	CouponTypeBasic        = "DiscountCodeBasic"
	CouponTypeFreeShipping = "DiscountCodeFreeShipping"
)

// Discount classes
const (
	DiscountClassShipping = "SHIPPING"
	DiscountClassOrder    = "ORDER"
	DiscountClassProduct  = "PRODUCT"
)

// RemoteCoupon is a code discount node from the Shopify GraphQL API. Basic
// and free shipping discounts are folded into one shape.
type RemoteCoupon struct {
	ID                     string              `json:"id"`
	Type                   string              `json:"__typename"`
	Title                  string              `json:"title"`
	Summary                string              `json:"summary"`
	DiscountClass          string              `json:"discountClass"`
	Codes                  []DiscountCode      `json:"codes"`
	CodeCount              int                 `json:"codeCount"`
	AsyncUsageCount        int                 `json:"asyncUsageCount"`
	UsageLimit             *int                `json:"usageLimit"`
	AppliesOncePerCustomer bool                `json:"appliesOncePerCustomer"`
	RecurringCycleLimit    int                 `json:"recurringCycleLimit"`
	CreatedAt              time.Time           `json:"createdAt"`
	UpdatedAt              *time.Time          `json:"updatedAt"`
	StartsAt               *time.Time          `json:"startsAt"`
	EndsAt                 *time.Time          `json:"endsAt"`
	CombinesWith           CombinesWith        `json:"combinesWith"`
	Minimum                *MinimumRequirement `json:"minimumRequirement"`
	Customers              CustomerSelection   `json:"customerSelection"`
	Gets                   *CustomerGets       `json:"customerGets"`
	Destination            *Destination        `json:"destinationSelection"`
	MaximumShippingPrice   *Money              `json:"maximumShippingPrice"`
	// Free shipping discounts carry these at the top level.
	AppliesOnOneTimePurchase bool `json:"appliesOnOneTimePurchase"`
	AppliesOnSubscription    bool `json:"appliesOnSubscription"`
}

// Supported reports whether the discount is a basic or free shipping code.
// Buy-X-get-Y and app discounts have no local equivalent.
func (c *RemoteCoupon) Supported() bool {
	return c.Type == CouponTypeBasic || c.Type == CouponTypeFreeShipping
}

// DiscountCode is one redeemable code of a discount
type DiscountCode struct {
	ID              string `json:"id"`
	Code            string `json:"code"`
	AsyncUsageCount int    `json:"asyncUsageCount"`
}

// PrimaryCode returns the first code, or the title when there is none
func (c *RemoteCoupon) PrimaryCode() string {
	if len(c.Codes) > 0 && c.Codes[0].Code != "" {
		return c.Codes[0].Code
	}
	return c.Title
}

// ChildCodes returns every code after the first
func (c *RemoteCoupon) ChildCodes() []DiscountCode {
	if len(c.Codes) < 2 {
		return nil
	}
	return c.Codes[1:]
}

// OnSubscription reports whether the discount applies to subscriptions
func (c *RemoteCoupon) OnSubscription() bool {
	if c.Gets != nil {
		return c.Gets.AppliesOnSubscription
	}
	return c.AppliesOnSubscription
}

// OnOneTimePurchase reports whether the discount applies to one-off orders
func (c *RemoteCoupon) OnOneTimePurchase() bool {
	if c.Gets != nil {
		return c.Gets.AppliesOnOneTimePurchase
	}
	return c.AppliesOnOneTimePurchase
}

// CombinesWith lists the discount kinds a code can stack with
type CombinesWith struct {
	OrderDiscounts    bool `json:"orderDiscounts"`
	ProductDiscounts  bool `json:"productDiscounts"`
	ShippingDiscounts bool `json:"shippingDiscounts"`
}

// Any reports whether stacking is allowed with anything
func (c CombinesWith) Any() bool {
	return c.OrderDiscounts || c.ProductDiscounts || c.ShippingDiscounts
}

// MinimumRequirement is either a subtotal or a quantity threshold
type MinimumRequirement struct {
	Subtotal *Money  `json:"greaterThanOrEqualToSubtotal"`
	Quantity *string `json:"greaterThanOrEqualToQuantity"`
}

// CustomerSelection restricts who can use a code
type CustomerSelection struct {
	AllCustomers bool            `json:"allCustomers"`
	Customers    []CouponEmail   `json:"customers"`
	Segments     []CouponSegment `json:"segments"`
}

// CouponEmail is a customer a code is restricted to
type CouponEmail struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CouponSegment is a customer segment a code is restricted to
type CouponSegment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CustomerGets describes the discount value and the items it applies to
type CustomerGets struct {
	AppliesOnOneTimePurchase bool          `json:"appliesOnOneTimePurchase"`
	AppliesOnSubscription    bool          `json:"appliesOnSubscription"`
	Value                    DiscountValue `json:"value"`
	Items                    DiscountItems `json:"items"`
}

// DiscountValue is either a percentage or an amount
type DiscountValue struct {
	Percentage        decimal.NullDecimal `json:"percentage"`
	Amount            *Money              `json:"amount"`
	AppliesOnEachItem bool                `json:"appliesOnEachItem"`
}

// DiscountItems lists the products a discount applies to
type DiscountItems struct {
	AllItems    bool     `json:"allItems"`
	ProductIDs  []string `json:"productIds"`
	Collections []string `json:"collections"`
}

// Destination restricts free shipping by country
type Destination struct {
	AllCountries       bool     `json:"allCountries"`
	Countries          []string `json:"countries"`
	IncludeRestOfWorld bool     `json:"includeRestOfWorld"`
}
