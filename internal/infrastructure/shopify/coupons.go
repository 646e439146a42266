package shopify

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/migrator/internal/domain/migration"
)

const codeDiscountsQuery = `query codeDiscounts($first: Int!, $after: String) {
  codeDiscountNodes(first: $first, after: $after) {
    pageInfo { hasNextPage endCursor }
    nodes {
      id
      codeDiscount {
        __typename
        ... on DiscountCodeBasic {
          title summary discountClass asyncUsageCount usageLimit appliesOncePerCustomer recurringCycleLimit
          createdAt updatedAt startsAt endsAt codeCount
          codes(first: 99) { nodes { id code asyncUsageCount } }
          combinesWith { orderDiscounts productDiscounts shippingDiscounts }
          minimumRequirement { ...minimum }
          customerSelection { ...customers }
          customerGets {
            appliesOnOneTimePurchase appliesOnSubscription
            value {
              ... on DiscountPercentage { percentage }
              ... on DiscountAmount { amount { amount currencyCode } appliesOnEachItem }
            }
            items {
              ... on AllDiscountItems { allItems }
              ... on DiscountProducts { products(first: 250) { nodes { id } } }
              ... on DiscountCollections { collections(first: 250) { nodes { id } } }
            }
          }
        }
        ... on DiscountCodeFreeShipping {
          title summary discountClass asyncUsageCount usageLimit appliesOncePerCustomer recurringCycleLimit
          createdAt updatedAt startsAt endsAt codeCount
          appliesOnOneTimePurchase appliesOnSubscription
          codes(first: 99) { nodes { id code asyncUsageCount } }
          combinesWith { orderDiscounts productDiscounts shippingDiscounts }
          minimumRequirement { ...minimum }
          customerSelection { ...customers }
          destinationSelection {
            ... on DiscountCountryAll { allCountries }
            ... on DiscountCountries { countries includeRestOfWorld }
          }
          maximumShippingPrice { amount currencyCode }
        }
        ... on DiscountCodeBxgy { title createdAt }
        ... on DiscountCodeApp { title createdAt }
      }
    }
  }
}

fragment minimum on DiscountMinimumRequirement {
  ... on DiscountMinimumSubtotal { greaterThanOrEqualToSubtotal { amount currencyCode } }
  ... on DiscountMinimumQuantity { greaterThanOrEqualToQuantity }
}

fragment customers on DiscountCustomerSelection {
  ... on DiscountCustomerAll { allCustomers }
  ... on DiscountCustomers { customers { id email } }
  ... on DiscountCustomerSegments { segments { id name } }
}`

// couponsPerPage is one discount per request; a discount carries up to 99
// codes and a wider page exceeds the query cost limit.
const couponsPerPage = 1

// ---------------------------------------------------------------------------
// Response shapes. GraphQL unions are decoded into one struct per union
// holding the fields of every member.
// ---------------------------------------------------------------------------

type gqlMoney struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

func (m *gqlMoney) toDomain() *migration.Money {
	if m == nil {
		return nil
	}
	return &migration.Money{Amount: m.Amount, CurrencyCode: m.CurrencyCode}
}

type gqlIDNodes struct {
	Nodes []struct {
		ID string `json:"id"`
	} `json:"nodes"`
}

func (n *gqlIDNodes) legacyIDs() []string {
	if n == nil {
		return nil
	}
	ids := make([]string, 0, len(n.Nodes))
	for _, node := range n.Nodes {
		ids = append(ids, LegacyID(node.ID))
	}
	return ids
}

type gqlCodeDiscount struct {
	Typename                 string     `json:"__typename"`
	Title                    string     `json:"title"`
	Summary                  string     `json:"summary"`
	DiscountClass            string     `json:"discountClass"`
	AsyncUsageCount          int        `json:"asyncUsageCount"`
	UsageLimit               *int       `json:"usageLimit"`
	AppliesOncePerCustomer   bool       `json:"appliesOncePerCustomer"`
	RecurringCycleLimit      int        `json:"recurringCycleLimit"`
	CreatedAt                time.Time  `json:"createdAt"`
	UpdatedAt                *time.Time `json:"updatedAt"`
	StartsAt                 *time.Time `json:"startsAt"`
	EndsAt                   *time.Time `json:"endsAt"`
	CodeCount                int        `json:"codeCount"`
	AppliesOnOneTimePurchase bool       `json:"appliesOnOneTimePurchase"`
	AppliesOnSubscription    bool       `json:"appliesOnSubscription"`
	Codes                    struct {
		Nodes []migration.DiscountCode `json:"nodes"`
	} `json:"codes"`
	CombinesWith       migration.CombinesWith `json:"combinesWith"`
	MinimumRequirement *struct {
		Subtotal *gqlMoney `json:"greaterThanOrEqualToSubtotal"`
		Quantity *string   `json:"greaterThanOrEqualToQuantity"`
	} `json:"minimumRequirement"`
	CustomerSelection *struct {
		AllCustomers bool                      `json:"allCustomers"`
		Customers    []migration.CouponEmail   `json:"customers"`
		Segments     []migration.CouponSegment `json:"segments"`
	} `json:"customerSelection"`
	CustomerGets *struct {
		AppliesOnOneTimePurchase bool `json:"appliesOnOneTimePurchase"`
		AppliesOnSubscription    bool `json:"appliesOnSubscription"`
		Value                    struct {
			Percentage        decimal.NullDecimal `json:"percentage"`
			Amount            *gqlMoney           `json:"amount"`
			AppliesOnEachItem bool                `json:"appliesOnEachItem"`
		} `json:"value"`
		Items struct {
			AllItems    bool        `json:"allItems"`
			Products    *gqlIDNodes `json:"products"`
			Collections *gqlIDNodes `json:"collections"`
		} `json:"items"`
	} `json:"customerGets"`
	DestinationSelection *struct {
		AllCountries       bool     `json:"allCountries"`
		Countries          []string `json:"countries"`
		IncludeRestOfWorld bool     `json:"includeRestOfWorld"`
	} `json:"destinationSelection"`
	MaximumShippingPrice *gqlMoney `json:"maximumShippingPrice"`
}

type codeDiscountsData struct {
	CodeDiscountNodes struct {
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
		Nodes []struct {
			ID           string          `json:"id"`
			CodeDiscount gqlCodeDiscount `json:"codeDiscount"`
		} `json:"nodes"`
	} `json:"codeDiscountNodes"`
}

// ListCoupons fetches one page of code discounts. The page size is fixed at
// one discount; req.Limit only caps it.
func (c *Client) ListCoupons(ctx context.Context, req migration.PageRequest) (migration.Page[migration.RemoteCoupon], error) {
	var page migration.Page[migration.RemoteCoupon]

	first := couponsPerPage
	if req.Limit > 0 && req.Limit < first {
		first = req.Limit
	}
	vars := map[string]any{"first": first}
	if req.Cursor != "" {
		vars["after"] = req.Cursor
	}

	var data codeDiscountsData
	if err := c.doGraphQL(ctx, "codeDiscounts", codeDiscountsQuery, vars, &data); err != nil {
		return page, err
	}

	conn := data.CodeDiscountNodes
	for _, node := range conn.Nodes {
		page.Items = append(page.Items, convertCoupon(node.ID, &node.CodeDiscount))
	}
	if conn.PageInfo.HasNextPage {
		page.NextCursor = conn.PageInfo.EndCursor
	}
	return page, nil
}

func convertCoupon(id string, d *gqlCodeDiscount) migration.RemoteCoupon {
	c := migration.RemoteCoupon{
		ID:                       LegacyID(id),
		Type:                     d.Typename,
		Title:                    d.Title,
		Summary:                  d.Summary,
		DiscountClass:            d.DiscountClass,
		Codes:                    d.Codes.Nodes,
		CodeCount:                d.CodeCount,
		AsyncUsageCount:          d.AsyncUsageCount,
		UsageLimit:               d.UsageLimit,
		AppliesOncePerCustomer:   d.AppliesOncePerCustomer,
		RecurringCycleLimit:      d.RecurringCycleLimit,
		CreatedAt:                d.CreatedAt,
		UpdatedAt:                d.UpdatedAt,
		StartsAt:                 d.StartsAt,
		EndsAt:                   d.EndsAt,
		CombinesWith:             d.CombinesWith,
		MaximumShippingPrice:     d.MaximumShippingPrice.toDomain(),
		AppliesOnOneTimePurchase: d.AppliesOnOneTimePurchase,
		AppliesOnSubscription:    d.AppliesOnSubscription,
	}

	if m := d.MinimumRequirement; m != nil && (m.Subtotal != nil || m.Quantity != nil) {
		c.Minimum = &migration.MinimumRequirement{
			Subtotal: m.Subtotal.toDomain(),
			Quantity: m.Quantity,
		}
	}

	if s := d.CustomerSelection; s != nil {
		c.Customers = migration.CustomerSelection{
			AllCustomers: s.AllCustomers,
			Customers:    s.Customers,
			Segments:     s.Segments,
		}
	}

	if g := d.CustomerGets; g != nil {
		c.Gets = &migration.CustomerGets{
			AppliesOnOneTimePurchase: g.AppliesOnOneTimePurchase,
			AppliesOnSubscription:    g.AppliesOnSubscription,
			Value: migration.DiscountValue{
				Percentage:        g.Value.Percentage,
				Amount:            g.Value.Amount.toDomain(),
				AppliesOnEachItem: g.Value.AppliesOnEachItem,
			},
			Items: migration.DiscountItems{
				AllItems:    g.Items.AllItems,
				ProductIDs:  g.Items.Products.legacyIDs(),
				Collections: g.Items.Collections.legacyIDs(),
			},
		}
	}

	if dest := d.DestinationSelection; dest != nil {
		c.Destination = &migration.Destination{
			AllCountries:       dest.AllCountries,
			Countries:          dest.Countries,
			IncludeRestOfWorld: dest.IncludeRestOfWorld,
		}
	}
	return c
}
