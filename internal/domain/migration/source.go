package migration

import (
	"context"
	"time"
)

// ---------------------------------------------------------------------------
// Paging
// ---------------------------------------------------------------------------

// Cursor tracks progress through a paginated remote listing. Token is the
// next-link URL or GraphQL end cursor; Remaining is the item budget left.
type Cursor struct {
	Token     string
	Remaining int
}

// Done reports whether the walk should stop
func (c Cursor) Done() bool {
	return c.Remaining <= 0
}

// PageRequest asks a source for one page
type PageRequest struct {
	Cursor string
	Limit  int
}

// Page is one page of remote items. NextCursor is empty on the last page.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// ---------------------------------------------------------------------------
// Sources
// ---------------------------------------------------------------------------

// OrderQuery filters the order listing
type OrderQuery struct {
	Before  *time.Time
	After   *time.Time
	Status  string
	IDs     []int64
	Sorting string
}

// OrderSource lists remote orders and their payment transactions
type OrderSource interface {
	ListOrders(ctx context.Context, q OrderQuery, req PageRequest) (Page[RemoteOrder], error)
	ListTransactions(ctx context.Context, orderID int64) ([]RemoteTransaction, error)
}

// ProductQuery filters the product listing
type ProductQuery struct {
	Before *time.Time
	After  *time.Time
	Status string
	IDs    []int64
	Handle string
}

// ProductSource lists remote products and loads their GraphQL-only details
type ProductSource interface {
	ListProducts(ctx context.Context, q ProductQuery, req PageRequest) (Page[RemoteProduct], error)
	ProductDetails(ctx context.Context, productID int64) (*ProductDetails, error)
}

// CouponSource lists code discounts
type CouponSource interface {
	ListCoupons(ctx context.Context, req PageRequest) (Page[RemoteCoupon], error)
}

// SubscriptionExport is the pair of Skio export files
type SubscriptionExport struct {
	Subscriptions []SkioSubscription
	Orders        []SkioOrder
}

// SubscriptionSource loads the Skio exports
type SubscriptionSource interface {
	LoadSubscriptions(ctx context.Context) (*SubscriptionExport, error)
}

// PaymentMethodMapping is one row of the Stripe PAN migration file
type PaymentMethodMapping struct {
	CustomerIDOld string
	SourceIDOld   string
	CustomerIDNew string
	SourceIDNew   string
}

// PaymentMappingSource loads the Stripe PAN migration rows
type PaymentMappingSource interface {
	LoadPaymentMappings(ctx context.Context) ([]PaymentMethodMapping, error)
}
