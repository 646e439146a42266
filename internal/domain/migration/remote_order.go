package migration

import (
	"time"

	"github.com/shopspring/decimal"
)

// RemoteOrder is an order as returned by the Shopify Admin REST API.
type RemoteOrder struct {
	ID                    int64                `json:"id"`
	OrderNumber           int64                `json:"order_number"`
	Name                  string               `json:"name"`
	Email                 string               `json:"email"`
	Phone                 string               `json:"phone"`
	Note                  string               `json:"note"`
	Tags                  string               `json:"tags"`
	Currency              string               `json:"currency"`
	FinancialStatus       string               `json:"financial_status"`
	FulfillmentStatus     string               `json:"fulfillment_status"`
	TaxesIncluded         bool                 `json:"taxes_included"`
	TotalPrice            decimal.Decimal      `json:"total_price"`
	SubtotalPrice         decimal.Decimal      `json:"subtotal_price"`
	TotalTax              decimal.Decimal      `json:"total_tax"`
	TotalDiscounts        decimal.Decimal      `json:"total_discounts"`
	TotalShippingPriceSet *PriceSet            `json:"total_shipping_price_set"`
	CreatedAt             time.Time            `json:"created_at"`
	UpdatedAt             time.Time            `json:"updated_at"`
	ProcessedAt           *time.Time           `json:"processed_at"`
	ClosedAt              *time.Time           `json:"closed_at"`
	CancelledAt           *time.Time           `json:"cancelled_at"`
	Customer              *RemoteCustomer      `json:"customer"`
	BillingAddress        *RemoteAddress       `json:"billing_address"`
	ShippingAddress       *RemoteAddress       `json:"shipping_address"`
	LineItems             []RemoteLineItem     `json:"line_items"`
	ShippingLines         []RemoteShippingLine `json:"shipping_lines"`
	TaxLines              []RemoteTaxLine      `json:"tax_lines"`
	DiscountApplications  []RemoteDiscount     `json:"discount_applications"`
	Refunds               []RemoteRefund       `json:"refunds"`
	Fulfillments          []RemoteFulfillment  `json:"fulfillments"`
}

// ShippingTotal returns the shop-currency shipping total
func (o *RemoteOrder) ShippingTotal() decimal.Decimal {
	if o.TotalShippingPriceSet == nil {
		total := decimal.Zero
		for _, l := range o.ShippingLines {
			total = total.Add(l.Price)
		}
		return total
	}
	return o.TotalShippingPriceSet.ShopMoney.Amount
}

// PriceSet holds an amount in shop and presentment currency
type PriceSet struct {
	ShopMoney Money `json:"shop_money"`
}

// Money is an amount with its currency
type Money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
}

// RemoteCustomer is the customer embedded in an order
type RemoteCustomer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// RemoteAddress is a billing or shipping address
type RemoteAddress struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Company      string `json:"company"`
	Address1     string `json:"address1"`
	Address2     string `json:"address2"`
	City         string `json:"city"`
	ProvinceCode string `json:"province_code"`
	Zip          string `json:"zip"`
	Country      string `json:"country"`
	CountryCode  string `json:"country_code"`
	Phone        string `json:"phone"`
}

// RemoteLineItem is one product line of an order
type RemoteLineItem struct {
	ID            int64           `json:"id"`
	ProductID     int64           `json:"product_id"`
	VariantID     int64           `json:"variant_id"`
	ProductExists bool            `json:"product_exists"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TaxLines      []RemoteTaxLine `json:"tax_lines"`
}

// Subtotal is price × quantity
func (l RemoteLineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Total is price × quantity minus the item discount
func (l RemoteLineItem) Total() decimal.Decimal {
	return l.Subtotal().Sub(l.TotalDiscount)
}

// RemoteShippingLine is one shipping charge of an order
type RemoteShippingLine struct {
	ID       int64           `json:"id"`
	Title    string          `json:"title"`
	Code     string          `json:"code"`
	Price    decimal.Decimal `json:"price"`
	TaxLines []RemoteTaxLine `json:"tax_lines"`
}

// RemoteTaxLine is a tax charged on an order or one of its lines
type RemoteTaxLine struct {
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
	Rate  decimal.Decimal `json:"rate"`
}

// DiscountTypeCode marks discount applications created from a discount code
const DiscountTypeCode = "discount_code"

// RemoteDiscount is a discount application of an order
type RemoteDiscount struct {
	Type      string          `json:"type"`
	Code      string          `json:"code"`
	Title     string          `json:"title"`
	Value     decimal.Decimal `json:"value"`
	ValueType string          `json:"value_type"`
}

// CouponCode returns the code the local coupon line is stored under
func (d RemoteDiscount) CouponCode() string {
	if d.Type == DiscountTypeCode {
		return d.Code
	}
	return d.Title
}

// RemoteRefund is a refund of an order
type RemoteRefund struct {
	ID              int64                  `json:"id"`
	Note            string                 `json:"note"`
	CreatedAt       time.Time              `json:"created_at"`
	ProcessedAt     *time.Time             `json:"processed_at"`
	RefundLineItems []RemoteRefundLineItem `json:"refund_line_items"`
	Transactions    []RemoteTransaction    `json:"transactions"`
}

// Amount sums the successful refund transactions
func (r RemoteRefund) Amount() decimal.Decimal {
	total := decimal.Zero
	for _, t := range r.Transactions {
		if t.Status == TransactionSuccess {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// RemoteRefundLineItem is a refunded quantity of one line item
type RemoteRefundLineItem struct {
	ID         int64           `json:"id"`
	LineItemID int64           `json:"line_item_id"`
	Quantity   int             `json:"quantity"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// Transaction statuses and kinds
const (
	TransactionSuccess = "success"
	TransactionFailure = "failure"

	TransactionKindSale          = "sale"
	TransactionKindCapture       = "capture"
	TransactionKindAuthorization = "authorization"
)

// Payment gateways with special handling
const (
	GatewayShopifyPayments = "shopify_payments"
	GatewayPaypal          = "paypal"
	GatewayManual          = "manual"
)

// RemoteTransaction is a payment transaction of an order or refund
type RemoteTransaction struct {
	ID             int64                 `json:"id"`
	Kind           string                `json:"kind"`
	Status         string                `json:"status"`
	Gateway        string                `json:"gateway"`
	Amount         decimal.Decimal       `json:"amount"`
	Authorization  string                `json:"authorization"`
	PaymentDetails *RemotePaymentDetails `json:"payment_details"`
	Receipt        RemoteReceipt         `json:"receipt"`
}

// RemotePaymentDetails carries the masked card number
type RemotePaymentDetails struct {
	CreditCardNumber  string `json:"credit_card_number"`
	CreditCardCompany string `json:"credit_card_company"`
}

// RemoteReceipt is the gateway receipt. Only the keys the importers read are decoded.
type RemoteReceipt struct {
	PaymentMethod       string         `json:"payment_method"`
	BillingAgreementID  string         `json:"billing_agreement_id"`
	RefundTransactionID string         `json:"refund_transaction_id"`
	Source              *ReceiptSource `json:"source"`
}

// ReceiptSource is the card source of a receipt
type ReceiptSource struct {
	ID string `json:"id"`
}

// CardLast4 returns the last four digits of the masked card number
func (t RemoteTransaction) CardLast4() string {
	if t.PaymentDetails == nil {
		return ""
	}
	n := t.PaymentDetails.CreditCardNumber
	if len(n) <= 4 {
		return n
	}
	return n[len(n)-4:]
}

// PaymentMethodID returns the gateway payment method reference
func (t RemoteTransaction) PaymentMethodID() string {
	if t.Receipt.PaymentMethod != "" {
		return t.Receipt.PaymentMethod
	}
	if t.Receipt.Source != nil {
		return t.Receipt.Source.ID
	}
	return ""
}

// PickPaymentTransaction returns the most recent transaction that carries
// reusable payment method data, or nil.
func PickPaymentTransaction(transactions []RemoteTransaction) *RemoteTransaction {
	for i := len(transactions) - 1; i >= 0; i-- {
		t := transactions[i]
		switch t.Kind {
		case TransactionKindSale, TransactionKindCapture, TransactionKindAuthorization:
		default:
			continue
		}
		if t.Status == TransactionFailure {
			continue
		}
		if t.Gateway == GatewayPaypal && t.Receipt.BillingAgreementID == "" {
			continue
		}
		return &transactions[i]
	}
	return nil
}

// RemoteFulfillment is a shipment of an order
type RemoteFulfillment struct {
	ID              int64     `json:"id"`
	TrackingCompany string    `json:"tracking_company"`
	TrackingNumbers []string  `json:"tracking_numbers"`
	TrackingURLs    []string  `json:"tracking_urls"`
	CreatedAt       time.Time `json:"created_at"`
}

// TrackingItem is one entry of the shipment tracking meta
type TrackingItem struct {
	TrackingProvider       string `json:"tracking_provider"`
	TrackingNumber         string `json:"tracking_number"`
	CustomTrackingLink     string `json:"custom_tracking_link"`
	CustomTrackingProvider string `json:"custom_tracking_provider"`
	DateShipped            string `json:"date_shipped"`
}

// TrackingItems flattens the fulfillments into tracking entries
func (o *RemoteOrder) TrackingItems() []TrackingItem {
	var items []TrackingItem
	for _, f := range o.Fulfillments {
		for i, number := range f.TrackingNumbers {
			item := TrackingItem{
				TrackingNumber:         number,
				CustomTrackingProvider: f.TrackingCompany,
				DateShipped:            f.CreatedAt.UTC().Format(time.RFC3339),
			}
			if i < len(f.TrackingURLs) {
				item.CustomTrackingLink = f.TrackingURLs[i]
			}
			items = append(items, item)
		}
	}
	return items
}
