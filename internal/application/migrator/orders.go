package migrator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/logger"
)

// Placeholder contact data written in test mode
const (
	maskedPhone       = "9999999999"
	maskedEmailSuffix = ".masked"
	placeholderDomain = "@example.com.invalid"
)

// OrderImporter copies Shopify orders into the local store
type OrderImporter struct {
	*session
	source migration.OrderSource
}

var _ Handler[migration.RemoteOrder] = (*OrderImporter)(nil)

// NewOrderImporter creates an order importer for one run
func NewOrderImporter(e *Engine, source migration.OrderSource, opts RunOptions) (*OrderImporter, error) {
	s, err := e.newSession(opts, migration.OrderFields)
	if err != nil {
		return nil, err
	}
	return &OrderImporter{session: s, source: source}, nil
}

// Run imports every order of the listing
func (imp *OrderImporter) Run(ctx context.Context) (*RunResult, error) {
	q := migration.OrderQuery{
		Before:  imp.opts.Before,
		After:   imp.opts.After,
		Status:  imp.opts.Status,
		IDs:     imp.opts.IDs,
		Sorting: imp.opts.Sorting,
	}
	fetch := func(ctx context.Context, req migration.PageRequest) (migration.Page[migration.RemoteOrder], error) {
		return imp.source.ListOrders(ctx, q, req)
	}
	return Run(ctx, imp.engine, fetch, imp, imp.opts)
}

// Kind implements Handler
func (imp *OrderImporter) Kind() migration.EntityKind {
	return migration.KindOrder
}

// RemoteID implements Handler
func (imp *OrderImporter) RemoteID(o migration.RemoteOrder) string {
	return strconv.FormatInt(o.ID, 10)
}

// Process creates or updates the local order of o
func (imp *OrderImporter) Process(ctx context.Context, o migration.RemoteOrder) (Outcome, error) {
	id := imp.RemoteID(o)
	if imp.opts.Excluded(id) {
		logger.L(ctx).Info("order excluded, skipping")
		return OutcomeSkipped, nil
	}

	order, outcome, err := imp.claim(ctx, migration.KindOrder,
		ByMeta(migration.MetaOriginalOrderID, id, migration.KindOrder),
		ByMeta(migration.MetaOrderNumber, strconv.FormatInt(o.OrderNumber, 10), migration.KindOrder).When(o.OrderNumber != 0),
	)
	if order == nil || err != nil {
		return outcome, err
	}

	if imp.opts.TestMode {
		maskContactData(&o)
	}

	order.SetMeta(migration.MetaOriginalOrderID, id)
	order.SetMeta(migration.MetaOrderNumber, strconv.FormatInt(o.OrderNumber, 10))
	order.SetMeta(migration.MetaPointsEarned, "1")
	if err := imp.persist(ctx, order); err != nil {
		return outcome, err
	}

	sc := NewSyncContext(order, imp.fields, imp.opts.RemoveOrphans)
	imp.applyOrderFields(sc, &o)

	if sc.ShouldProcess("customer") && !imp.opts.SkipCustomers {
		if err := imp.assignCustomer(ctx, order, &o); err != nil {
			return outcome, err
		}
	}
	if err := imp.persist(ctx, order); err != nil {
		return outcome, err
	}

	// taxes before items; items reference them by title
	if err := imp.syncTaxLines(ctx, sc, &o); err != nil {
		return outcome, err
	}
	if err := imp.syncLineItems(ctx, sc, &o); err != nil {
		return outcome, err
	}
	if err := imp.syncShippingLines(ctx, sc, &o); err != nil {
		return outcome, err
	}
	if err := imp.removeOrphanItems(ctx, sc); err != nil {
		return outcome, err
	}
	if err := imp.syncDiscountLines(ctx, sc, &o); err != nil {
		return outcome, err
	}
	if sc.ShouldProcess("tracking") {
		if err := applyTracking(order, &o); err != nil {
			return outcome, err
		}
	}
	if sc.ShouldProcess("payment") {
		if err := imp.applyPaymentData(ctx, sc, &o); err != nil {
			return outcome, err
		}
	}
	if err := imp.persist(ctx, order); err != nil {
		return outcome, err
	}

	if err := imp.syncRefunds(ctx, sc, &o); err != nil {
		return outcome, err
	}

	logger.L(ctx).Info("order processed",
		zap.String("local_id", order.ID.String()),
		zap.String("outcome", outcome.String()),
		zap.Int("advisories", len(sc.Advisories)),
	)
	return outcome, nil
}

// ---------------------------------------------------------------------------
// Order fields
// ---------------------------------------------------------------------------

func (imp *OrderImporter) applyOrderFields(sc *SyncContext, o *migration.RemoteOrder) {
	order := sc.Parent

	if sc.ShouldProcess("status") {
		order.SetField("status", migration.TranslateOrderStatus(o.FinancialStatus, o.FulfillmentStatus))
		order.SetField("order_stock_reduced", "1")
	}

	if sc.ShouldProcess("dates") {
		order.SetTime("date_created", o.CreatedAt)
		order.SetTime("date_modified", o.UpdatedAt)
		if o.ProcessedAt != nil && migration.IsPaidStatus(o.FinancialStatus) {
			order.SetTime("date_paid", *o.ProcessedAt)
		}
		if o.ClosedAt != nil {
			order.SetTime("date_completed", *o.ClosedAt)
		} else {
			order.ClearField("date_completed")
		}
	}

	if sc.ShouldProcess("currency") {
		order.SetField("currency", o.Currency)
		order.SetField("prices_include_tax", strconv.FormatBool(o.TaxesIncluded))
	}

	if sc.ShouldProcess("totals") {
		order.SetMoney("total", o.TotalPrice)
		order.SetMoney("shipping_total", o.ShippingTotal())
		order.SetMoney("discount_total", o.TotalDiscounts)
		order.SetMoney("total_tax", o.TotalTax)
	}

	if sc.ShouldProcess("note") {
		order.SetField("customer_note", o.Note)
	}

	if sc.ShouldProcess("tags") {
		applyTags(order, o.Tags)
	}

	if sc.ShouldProcess("billing") {
		if o.BillingAddress != nil {
			setAddress(order, "billing", o.BillingAddress)
		}
		if o.Email != "" {
			order.SetField("billing_email", o.Email)
		}
	}
	if sc.ShouldProcess("shipping_address") && o.ShippingAddress != nil {
		setAddress(order, "shipping", o.ShippingAddress)
	}
}

// applyTags stores the trimmed, non-empty tags as a comma separated field
func applyTags(order *migration.Entity, tags string) {
	list := migration.SplitTags(tags)
	if len(list) == 0 {
		order.ClearField("tags")
		return
	}
	order.SetField("tags", strings.Join(list, ","))
}

// setAddress copies an address into prefix_* fields
func setAddress(e *migration.Entity, prefix string, a *migration.RemoteAddress) {
	e.SetField(prefix+"_first_name", a.FirstName)
	e.SetField(prefix+"_last_name", a.LastName)
	e.SetField(prefix+"_company", a.Company)
	e.SetField(prefix+"_address_1", a.Address1)
	e.SetField(prefix+"_address_2", a.Address2)
	e.SetField(prefix+"_city", a.City)
	e.SetField(prefix+"_state", a.ProvinceCode)
	e.SetField(prefix+"_postcode", a.Zip)
	e.SetField(prefix+"_country", a.CountryCode)
	e.SetField(prefix+"_phone", a.Phone)
}

// maskContactData replaces phone numbers and suffixes emails so a test
// store cannot contact real customers
func maskContactData(o *migration.RemoteOrder) {
	if o.Email != "" && !strings.HasSuffix(o.Email, maskedEmailSuffix) {
		o.Email += maskedEmailSuffix
	}
	if o.Phone != "" {
		o.Phone = maskedPhone
	}
	if o.BillingAddress != nil {
		addr := *o.BillingAddress
		if addr.Phone != "" {
			addr.Phone = maskedPhone
		}
		o.BillingAddress = &addr
	}
	if o.ShippingAddress != nil {
		addr := *o.ShippingAddress
		if addr.Phone != "" {
			addr.Phone = maskedPhone
		}
		o.ShippingAddress = &addr
	}
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// assignCustomer links the order to the customer with the order email,
// creating the customer when needed. Orders without an email become guest
// orders with a placeholder billing email.
func (imp *OrderImporter) assignCustomer(ctx context.Context, order *migration.Entity, o *migration.RemoteOrder) error {
	if o.Email == "" {
		order.ClearField("customer_id")
		if email := placeholderEmail(order); email != "" {
			order.SetField("billing_email", email)
		}
		return nil
	}

	email := strings.ToLower(o.Email)
	customer, _, err := imp.resolver.Resolve(ctx, ByField(migration.FieldEmail, email, migration.KindCustomer))
	if err != nil {
		return err
	}
	if customer == nil {
		customer = migration.NewEntity(migration.KindCustomer)
		customer.SetField(migration.FieldEmail, email)
		if o.Customer != nil {
			customer.SetField("first_name", o.Customer.FirstName)
			customer.SetField("last_name", o.Customer.LastName)
			customer.SetMeta(migration.MetaOriginalCustomerID, strconv.FormatInt(o.Customer.ID, 10))
		}
		if o.BillingAddress != nil {
			setAddress(customer, "billing", o.BillingAddress)
			customer.SetField("billing_email", o.Email)
		}
		if o.ShippingAddress != nil {
			setAddress(customer, "shipping", o.ShippingAddress)
		}
		if err := imp.persist(ctx, customer); err != nil {
			return err
		}
		logger.L(ctx).Info("customer created", zap.String("email", email))
	}

	order.SetField("customer_id", customer.ID.String())
	return nil
}

// placeholderEmail builds name+last-3-phone-digits@example.com.invalid from
// the billing data, falling back to shipping data
func placeholderEmail(order *migration.Entity) string {
	pick := func(field string) string {
		if v := order.Field("billing_" + field); v != "" {
			return v
		}
		return order.Field("shipping_" + field)
	}
	phone := pick("phone")
	if len(phone) > 3 {
		phone = phone[len(phone)-3:]
	}
	username := strings.ToLower(nonAlphanumeric.ReplaceAllString(pick("first_name")+pick("last_name")+phone, ""))
	if username == "" {
		return ""
	}
	return username + placeholderDomain
}

// ---------------------------------------------------------------------------
// Tracking and payment
// ---------------------------------------------------------------------------

func applyTracking(order *migration.Entity, o *migration.RemoteOrder) error {
	items := o.TrackingItems()
	if len(items) == 0 {
		order.DeleteMeta(migration.MetaShipmentTracking)
		return nil
	}
	return order.SetMetaJSON(migration.MetaShipmentTracking, items)
}

// applyPaymentData records the payment method of the order so that the
// payment-methods command can later point it at the new gateway
func (imp *OrderImporter) applyPaymentData(ctx context.Context, sc *SyncContext, o *migration.RemoteOrder) error {
	var transactions []migration.RemoteTransaction
	err := imp.engine.retry.Do(ctx, "list transactions", func(ctx context.Context) error {
		var terr error
		transactions, terr = imp.source.ListTransactions(ctx, o.ID)
		return terr
	})
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	if len(transactions) == 0 {
		logger.L(ctx).Info("no transactions to import for this order")
		return nil
	}

	t := migration.PickPaymentTransaction(transactions)
	if t == nil {
		sc.Advise(ctx, migration.Warning("capture transaction not found, payment data not imported"))
		return nil
	}

	order := sc.Parent
	switch t.Gateway {
	case migration.GatewayShopifyPayments:
		order.SetMeta(migration.MetaOriginalPaymentGateway, t.Gateway)
		order.SetMeta(migration.MetaOriginalPaymentLast4, t.CardLast4())
		if methodID := t.PaymentMethodID(); methodID != "" {
			order.SetMeta(migration.MetaOriginalPaymentMethodID, methodID)
		} else {
			sc.Advise(ctx, migration.Error("payment method not found in transaction %d", t.ID))
		}
	case migration.GatewayPaypal:
		order.SetMeta(migration.MetaOriginalPaymentGateway, t.Gateway)
		order.SetMeta(migration.MetaOriginalPaymentMethodID, t.Receipt.BillingAgreementID)
	case "", migration.GatewayManual:
		return nil
	default:
		order.SetMeta(migration.MetaOriginalPaymentGateway, t.Gateway)
		sc.Advise(ctx, migration.Warning("unknown payment gateway: %s", t.Gateway))
	}

	order.SetField("payment_method", t.Gateway)
	transactionID := t.Authorization
	if transactionID == "" {
		transactionID = strconv.FormatInt(t.ID, 10)
	}
	order.SetMeta(migration.MetaTransactionID, transactionID)
	return nil
}
