package migration

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// EntityKind
// ---------------------------------------------------------------------------

// EntityKind identifies what a local entity represents
type EntityKind string

const (
	KindOrder        EntityKind = "shop_order"
	KindLineItem     EntityKind = "line_item"
	KindShippingLine EntityKind = "shipping"
	KindTaxLine      EntityKind = "tax"
	KindCouponLine   EntityKind = "coupon"
	KindRefund       EntityKind = "shop_order_refund"
	KindProduct      EntityKind = "product"
	KindVariation    EntityKind = "product_variation"
	KindImage        EntityKind = "attachment"
	KindCoupon       EntityKind = "shop_coupon"
	KindSubscription EntityKind = "shop_subscription"
	KindCustomer     EntityKind = "customer"
	KindPaymentToken EntityKind = "payment_token"
)

// IsValid checks if the kind is known
func (k EntityKind) IsValid() bool {
	switch k {
	case KindOrder, KindLineItem, KindShippingLine, KindTaxLine, KindCouponLine, KindRefund,
		KindProduct, KindVariation, KindImage, KindCoupon, KindSubscription, KindCustomer, KindPaymentToken:
		return true
	}
	return false
}

// String returns the string representation
func (k EntityKind) String() string {
	return string(k)
}

// ---------------------------------------------------------------------------
// Field and meta keys
// ---------------------------------------------------------------------------

// Indexed fields. The entity store can look entities up by these.
const (
	FieldSKU   = "sku"
	FieldSlug  = "slug"
	FieldEmail = "email"
	FieldCode  = "code"
	FieldToken = "token"
)

// Metadata keys shared by the importers. Cross references start with _original_.
const (
	MetaOriginalOrderID         = "_original_order_id"
	MetaOrderNumber             = "_order_number"
	MetaOriginalProductID       = "_original_product_id"
	MetaOriginalVariantID       = "_original_variant_id"
	MetaOriginalLineItemID      = "_original_line_item_id"
	MetaOriginalRefundID        = "_original_refund_id"
	MetaOriginalCouponID        = "_original_coupon_id"
	MetaOriginalImageID         = "_original_image_id"
	MetaOriginalCustomerID      = "_original_customer_id"
	MetaOriginalPaymentGateway  = "_original_payment_gateway"
	MetaOriginalPaymentMethodID = "_original_payment_method_id"
	MetaOriginalPaymentLast4    = "_original_payment_last_4"
	MetaSkioSubscriptionID      = "_skio_subscription_id"
	MetaMigrationData           = "_migration_data"
	MetaTransactionID           = "_transaction_id"
	MetaRefundCompletedDate     = "_refund_completed_date"
	MetaShipmentTracking        = "_shipment_tracking_items"
	MetaStripeCustomerID        = "_stripe_customer_id"
	MetaPaymentTokens           = "_payment_tokens"
	MetaPaymentMethodID         = "_payment_method_id"
	MetaBillingAgreementID      = "_ppec_billing_agreement_id"
	MetaRequiresManualRenewal   = "_requires_manual_renewal"
	MetaSEOTitle                = "_yoast_wpseo_title"
	MetaSEODescription          = "_yoast_wpseo_metadesc"
	MetaNumberPayments          = "_wcs_number_payments"
	MetaLineTaxData             = "_line_tax_data"
	MetaRenewalOrderIDs         = "_subscription_renewal_order_ids"
	MetaPointsEarned            = "_wc_points_earned"
)

// ---------------------------------------------------------------------------
// Entity
// ---------------------------------------------------------------------------

// Entity is a record in the local store. Attributes live in Fields; anything
// the engine needs to find the entity again lives in Meta.
type Entity struct {
	ID        uuid.UUID
	Kind      EntityKind
	ParentID  uuid.UUID
	Fields    map[string]string
	Meta      map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEntity creates an unsaved entity of the given kind
func NewEntity(kind EntityKind) *Entity {
	return &Entity{
		Kind:   kind,
		Fields: make(map[string]string),
		Meta:   make(map[string]string),
	}
}

// NewChildEntity creates an unsaved entity owned by parent
func NewChildEntity(kind EntityKind, parentID uuid.UUID) *Entity {
	e := NewEntity(kind)
	e.ParentID = parentID
	return e
}

// IsNew reports whether the entity has not been persisted yet
func (e *Entity) IsNew() bool {
	return e.ID == uuid.Nil
}

// Field returns a field value or an empty string
func (e *Entity) Field(name string) string {
	return e.Fields[name]
}

// SetField sets a field value
func (e *Entity) SetField(name, value string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[name] = value
}

// ClearField removes a field
func (e *Entity) ClearField(name string) {
	delete(e.Fields, name)
}

// SetMoney stores a monetary amount with two decimal places
func (e *Entity) SetMoney(name string, amount decimal.Decimal) {
	e.SetField(name, amount.StringFixed(2))
}

// FieldDecimal parses a field as a decimal; missing or malformed values are zero
func (e *Entity) FieldDecimal(name string) decimal.Decimal {
	d, err := decimal.NewFromString(e.Fields[name])
	if err != nil {
		return decimal.Zero
	}
	return d
}

// SetTime stores a timestamp in RFC3339; the zero time clears the field
func (e *Entity) SetTime(name string, t time.Time) {
	if t.IsZero() {
		e.ClearField(name)
		return
	}
	e.SetField(name, t.UTC().Format(time.RFC3339))
}

// GetMeta returns a metadata value or an empty string
func (e *Entity) GetMeta(key string) string {
	return e.Meta[key]
}

// SetMeta sets a metadata value
func (e *Entity) SetMeta(key, value string) {
	if e.Meta == nil {
		e.Meta = make(map[string]string)
	}
	e.Meta[key] = value
}

// DeleteMeta removes a metadata value
func (e *Entity) DeleteMeta(key string) {
	delete(e.Meta, key)
}

// SetMetaJSON serializes v into a metadata blob
func (e *Entity) SetMetaJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode meta %s: %w", key, err)
	}
	e.SetMeta(key, string(data))
	return nil
}

// MetaJSON decodes a metadata blob into v. A missing key leaves v untouched.
func (e *Entity) MetaJSON(key string, v any) error {
	raw, ok := e.Meta[key]
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode meta %s: %w", key, err)
	}
	return nil
}

// Clone returns a deep copy
func (e *Entity) Clone() *Entity {
	c := *e
	c.Fields = maps.Clone(e.Fields)
	c.Meta = maps.Clone(e.Meta)
	if c.Fields == nil {
		c.Fields = make(map[string]string)
	}
	if c.Meta == nil {
		c.Meta = make(map[string]string)
	}
	return &c
}
