package migration

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteLineItem_Totals(t *testing.T) {
	l := RemoteLineItem{Quantity: 3, Price: decimal.RequireFromString("9.99"), TotalDiscount: decimal.RequireFromString("2.97")}
	assert.Equal(t, "29.97", l.Subtotal().StringFixed(2))
	assert.Equal(t, "27.00", l.Total().StringFixed(2))
}

func TestRemoteRefund_Amount(t *testing.T) {
	r := RemoteRefund{Transactions: []RemoteTransaction{
		{Status: TransactionSuccess, Amount: decimal.NewFromInt(10)},
		{Status: TransactionFailure, Amount: decimal.NewFromInt(99)},
		{Status: TransactionSuccess, Amount: decimal.RequireFromString("2.50")},
		{Status: "pending", Amount: decimal.NewFromInt(7)},
	}}
	assert.Equal(t, "12.50", r.Amount().StringFixed(2))
}

func TestPickPaymentTransaction(t *testing.T) {
	t.Run("Latest usable transaction wins", func(t *testing.T) {
		txs := []RemoteTransaction{
			{ID: 1, Kind: TransactionKindAuthorization, Status: TransactionSuccess, Gateway: GatewayShopifyPayments},
			{ID: 2, Kind: TransactionKindCapture, Status: TransactionSuccess, Gateway: GatewayShopifyPayments},
			{ID: 3, Kind: "refund", Status: TransactionSuccess, Gateway: GatewayShopifyPayments},
			{ID: 4, Kind: TransactionKindSale, Status: TransactionFailure, Gateway: GatewayShopifyPayments},
		}
		got := PickPaymentTransaction(txs)
		require.NotNil(t, got)
		assert.Equal(t, int64(2), got.ID)
	})

	t.Run("PayPal without agreement skipped", func(t *testing.T) {
		txs := []RemoteTransaction{
			{ID: 1, Kind: TransactionKindSale, Status: TransactionSuccess, Gateway: GatewayPaypal, Receipt: RemoteReceipt{BillingAgreementID: "B-1"}},
			{ID: 2, Kind: TransactionKindSale, Status: TransactionSuccess, Gateway: GatewayPaypal},
		}
		got := PickPaymentTransaction(txs)
		require.NotNil(t, got)
		assert.Equal(t, int64(1), got.ID)
	})

	t.Run("Nothing usable", func(t *testing.T) {
		assert.Nil(t, PickPaymentTransaction(nil))
	})
}

func TestRemoteTransaction_PaymentData(t *testing.T) {
	tx := RemoteTransaction{
		PaymentDetails: &RemotePaymentDetails{CreditCardNumber: "•••• •••• •••• 4242"},
		Receipt:        RemoteReceipt{Source: &ReceiptSource{ID: "src_1"}},
	}
	assert.Equal(t, "4242", tx.CardLast4())
	assert.Equal(t, "src_1", tx.PaymentMethodID())

	tx.Receipt.PaymentMethod = "pm_1"
	assert.Equal(t, "pm_1", tx.PaymentMethodID())
	assert.Empty(t, RemoteTransaction{}.CardLast4())
}

func TestRemoteOrder_Decode(t *testing.T) {
	raw := `{
		"id": 450789469,
		"order_number": 1001,
		"total_price": "109.00",
		"created_at": "2024-03-01T10:00:00-05:00",
		"closed_at": null,
		"total_shipping_price_set": {"shop_money": {"amount": "10.00", "currency_code": "USD"}},
		"line_items": [{"id": 1, "price": "49.50", "quantity": 2, "total_discount": "0.00"}],
		"fulfillments": [{"tracking_company": "UPS", "tracking_numbers": ["1Z1", "1Z2"], "tracking_urls": ["https://ups/1Z1"], "created_at": "2024-03-02T00:00:00Z"}]
	}`
	var o RemoteOrder
	require.NoError(t, json.Unmarshal([]byte(raw), &o))
	assert.Equal(t, int64(1001), o.OrderNumber)
	assert.Nil(t, o.ClosedAt)
	assert.Equal(t, "10.00", o.ShippingTotal().StringFixed(2))
	assert.Equal(t, time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC), o.CreatedAt.UTC())

	items := o.TrackingItems()
	require.Len(t, items, 2)
	assert.Equal(t, "https://ups/1Z1", items[0].CustomTrackingLink)
	assert.Empty(t, items[1].CustomTrackingLink)
	assert.Equal(t, "UPS", items[1].CustomTrackingProvider)
}

func TestRemoteVariant_PricesAndStock(t *testing.T) {
	v := RemoteVariant{Price: decimal.NewFromInt(80), CompareAtPrice: decimal.NewNullDecimal(decimal.NewFromInt(100))}
	regular, sale := v.Prices()
	assert.True(t, regular.Equal(decimal.NewFromInt(100)))
	require.NotNil(t, sale)
	assert.True(t, sale.Equal(decimal.NewFromInt(80)))

	v.CompareAtPrice = decimal.NewNullDecimal(decimal.NewFromInt(50))
	regular, sale = v.Prices()
	assert.True(t, regular.Equal(decimal.NewFromInt(80)))
	assert.Nil(t, sale)

	v.InventoryPolicy = "deny"
	assert.Equal(t, StockOutOfStock, v.StockStatus())
	v.InventoryQuantity = 4
	assert.Equal(t, StockInStock, v.StockStatus())
	v.InventoryQuantity = 0
	v.InventoryPolicy = "continue"
	assert.Equal(t, StockInStock, v.StockStatus())
}

func TestProductExcluded(t *testing.T) {
	p := &RemoteProduct{ID: 77, Variants: []RemoteVariant{{SKU: "CANAL_RED"}}}
	assert.True(t, ProductExcluded(p, []string{"77"}))
	assert.True(t, ProductExcluded(p, []string{"canal_*"}))
	assert.False(t, ProductExcluded(p, []string{"CANAL"}))
	assert.False(t, ProductExcluded(p, []string{"78", "BLUE*"}))
	assert.False(t, ProductExcluded(&RemoteProduct{ID: 1}, []string{"*"}))
}

func TestProductDetails_SEO(t *testing.T) {
	d := &ProductDetails{Metafields: []Metafield{
		{Namespace: "global", Key: "title_tag", Value: "T"},
		{Namespace: "custom", Key: "description_tag", Value: "ignored"},
	}}
	title, desc, hasTitle, hasDesc := d.SEO()
	assert.Equal(t, "T", title)
	assert.Empty(t, desc)
	assert.True(t, hasTitle)
	assert.False(t, hasDesc)
	assert.Equal(t, "custom_description_tag", d.Metafields[1].FullKey())
}

func TestFlexString(t *testing.T) {
	var rows []SkioOrder
	require.NoError(t, json.Unmarshal([]byte(`[{"subscriptionId":"s1","orderPlatformNumber":1001},{"subscriptionId":"s2","orderPlatformNumber":"1002"},{"subscriptionId":"s3","orderPlatformNumber":null}]`), &rows))
	assert.Equal(t, "1001", rows[0].OrderPlatformNumber.String())
	assert.Equal(t, "1002", rows[1].OrderPlatformNumber.String())
	assert.Empty(t, rows[2].OrderPlatformNumber.String())

	assert.True(t, SameDigits("0042", "42"))
	assert.False(t, SameDigits("4242", "4243"))
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, SplitTags(" a, ,b c ,"))
	assert.Nil(t, SplitTags(""))
}
