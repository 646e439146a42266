package migrator

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/logger"
)

// Gateways a subscription can be switched to
const (
	GatewayPPECPaypal          = "ppec_paypal"
	GatewayWooCommercePayments = "woocommerce_payments"
)

// subscriptionItemKinds are the order items copied onto a subscription
var subscriptionItemKinds = []migration.EntityKind{
	migration.KindLineItem,
	migration.KindTaxLine,
	migration.KindShippingLine,
	migration.KindCouponLine,
}

// subscriptionDates are reset before an existing subscription is updated
var subscriptionDates = []string{
	"cancelled", "end", "next_payment", "start", "date_created", "date_modified", "date_paid",
	"date_completed", "last_order_date_created", "trial_end", "last_order_date_paid",
	"last_order_date_completed", "payment_retry",
}

// SubscriptionImporter builds local subscriptions from the Skio exports and
// the orders already migrated
type SubscriptionImporter struct {
	*session
	source migration.SubscriptionSource
}

var _ Handler[migration.SkioSubscription] = (*SubscriptionImporter)(nil)

// NewSubscriptionImporter creates a subscription importer for one run
func NewSubscriptionImporter(e *Engine, source migration.SubscriptionSource, opts RunOptions) (*SubscriptionImporter, error) {
	s, err := e.newSession(opts, nil)
	if err != nil {
		return nil, err
	}
	return &SubscriptionImporter{session: s, source: source}, nil
}

// Run tags the orders with their subscription id, then creates or updates
// one subscription per export row
func (imp *SubscriptionImporter) Run(ctx context.Context) (*RunResult, error) {
	export, err := imp.source.LoadSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load subscription exports: %w", err)
	}

	ctx = logger.WithContext(ctx, imp.engine.logger)
	logger.L(ctx).Info("adding subscription ids to orders", zap.Int("orders", len(export.Orders)))
	if err := imp.tagOrders(ctx, export.Orders); err != nil {
		return nil, err
	}

	logger.L(ctx).Info("creating subscriptions", zap.Int("subscriptions", len(export.Subscriptions)))
	return runLocal(ctx, imp.engine, SliceFetch(export.Subscriptions), imp, imp.opts)
}

// tagOrders writes the Skio subscription id onto every migrated order the
// orders export lists
func (imp *SubscriptionImporter) tagOrders(ctx context.Context, orders []migration.SkioOrder) error {
	for _, so := range orders {
		if err := ctx.Err(); err != nil {
			return err
		}
		number := so.OrderPlatformNumber.String()
		order, _, err := imp.resolver.Resolve(ctx, ByMeta(migration.MetaOrderNumber, number, migration.KindOrder))
		if err != nil {
			return err
		}
		if order == nil {
			logger.L(ctx).Info("local order not found for Shopify order", zap.String("order_number", number))
			continue
		}
		if order.GetMeta(migration.MetaSkioSubscriptionID) == so.SubscriptionID {
			continue
		}
		order.SetMeta(migration.MetaSkioSubscriptionID, so.SubscriptionID)
		if err := imp.persist(ctx, order); err != nil {
			return err
		}
	}
	return nil
}

// Kind implements Handler
func (imp *SubscriptionImporter) Kind() migration.EntityKind {
	return migration.KindSubscription
}

// RemoteID implements Handler
func (imp *SubscriptionImporter) RemoteID(s migration.SkioSubscription) string {
	return s.SubscriptionID
}

// Process creates or updates the subscription of one export row
func (imp *SubscriptionImporter) Process(ctx context.Context, s migration.SkioSubscription) (Outcome, error) {
	if imp.opts.Excluded(s.SubscriptionID) {
		return OutcomeSkipped, nil
	}

	orders, err := imp.subscriptionOrders(ctx, s.SubscriptionID)
	if err != nil {
		return OutcomeSkipped, err
	}
	if len(orders) == 0 {
		logger.L(ctx).Info("no local order for subscription, skipping")
		return OutcomeSkipped, nil
	}
	// the oldest order started the subscription; the latest is the most
	// accurate copy of it
	oldest, latest := orders[0], orders[len(orders)-1]

	sub, outcome, err := imp.claim(ctx, migration.KindSubscription,
		ByMeta(migration.MetaSkioSubscriptionID, s.SubscriptionID, migration.KindSubscription))
	if sub == nil || err != nil {
		return outcome, err
	}

	if sub.IsNew() {
		sub.SetField("parent_order_id", oldest.ID.String())
		if customer := oldest.Field("customer_id"); customer != "" {
			sub.SetField("customer_id", customer)
		}
		if created, ok := parseSkioTime(s.CreatedAt); ok {
			sub.SetTime("date_created", created)
		}
		sub.SetField("billing_interval", s.BillingPolicyIntervalCount.String())
		sub.SetField("billing_period", strings.ToLower(s.BillingPolicyInterval))
	} else {
		for _, field := range subscriptionDates {
			sub.ClearField(field)
		}
	}
	sub.SetMeta(migration.MetaSkioSubscriptionID, s.SubscriptionID)
	if err := imp.persist(ctx, sub); err != nil {
		return outcome, err
	}

	if err := imp.cloneItems(ctx, sub, latest); err != nil {
		return outcome, err
	}
	copyAddressFields(sub, latest)

	sub.SetMeta(migration.MetaRequiresManualRenewal, "true")
	sub.SetField("payment_method", latest.Field("payment_method"))
	sub.SetField("payment_method_title", latest.Field("payment_method_title"))
	sub.SetField("shipping_total", latest.Field("shipping_total"))

	if err := attachRenewals(sub, orders); err != nil {
		return outcome, err
	}

	sc := NewSyncContext(sub, imp.fields, false)
	applySubscriptionStatus(ctx, sc, s)
	copyPaymentMethod(ctx, sc, s, latest)

	if err := imp.persist(ctx, sub); err != nil {
		return outcome, err
	}
	logger.L(ctx).Info("subscription processed",
		zap.String("local_id", sub.ID.String()),
		zap.String("outcome", outcome.String()),
		zap.Int("orders", len(orders)),
	)
	return outcome, nil
}

// subscriptionOrders returns the orders tagged with the subscription id,
// oldest first
func (imp *SubscriptionImporter) subscriptionOrders(ctx context.Context, subscriptionID string) ([]*migration.Entity, error) {
	orders, err := imp.store.FindByMeta(ctx, migration.MetaSkioSubscriptionID, subscriptionID, migration.KindOrder)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(orders, func(a, b *migration.Entity) int {
		return cmp.Compare(orderDate(a).UnixNano(), orderDate(b).UnixNano())
	})
	return orders, nil
}

func orderDate(e *migration.Entity) time.Time {
	if t, err := time.Parse(time.RFC3339, e.Field("date_created")); err == nil {
		return t
	}
	return e.CreatedAt
}

// cloneItems replaces the items of the subscription with copies of the
// items of the order
func (imp *SubscriptionImporter) cloneItems(ctx context.Context, sub, order *migration.Entity) error {
	for _, kind := range subscriptionItemKinds {
		if err := imp.sync.ClearChildren(ctx, sub, kind); err != nil {
			return err
		}
	}
	items, err := imp.store.Children(ctx, order.ID, subscriptionItemKinds...)
	if err != nil {
		return err
	}
	for _, item := range items {
		_, err := imp.sync.AddChild(ctx, sub, item.Kind, func(e *migration.Entity) {
			c := item.Clone()
			e.Fields = c.Fields
			e.Meta = c.Meta
		})
		if err != nil {
			return err
		}
	}
	return nil
}

var addressFields = []string{
	"first_name", "last_name", "company", "address_1", "address_2",
	"city", "state", "postcode", "country", "phone",
}

func copyAddressFields(dst, src *migration.Entity) {
	for _, prefix := range []string{"billing_", "shipping_"} {
		for _, f := range addressFields {
			dst.SetField(prefix+f, src.Field(prefix+f))
		}
	}
}

// attachRenewals records every order but the parent as a renewal
func attachRenewals(sub *migration.Entity, orders []*migration.Entity) error {
	renewals := make([]string, 0, len(orders))
	for _, o := range orders[1:] {
		renewals = append(renewals, o.ID.String())
	}
	if len(renewals) == 0 {
		sub.DeleteMeta(migration.MetaRenewalOrderIDs)
		return nil
	}
	return sub.SetMetaJSON(migration.MetaRenewalOrderIDs, renewals)
}

func applySubscriptionStatus(ctx context.Context, sc *SyncContext, s migration.SkioSubscription) {
	sub := sc.Parent
	status, adv := migration.TranslateSubscriptionStatus(s.Status)
	if adv != nil {
		sc.Advise(ctx, *adv)
	}
	sub.SetField("status", status)

	switch status {
	case migration.SubscriptionActive:
		if next, ok := parseSkioTime(s.NextBillingDate); ok {
			sub.SetTime("next_payment", next)
		}
	case migration.SubscriptionCancelled:
		if cancelled, ok := parseSkioTime(s.CancelledAt); ok {
			sub.SetTime("cancelled", cancelled)
			sub.SetTime("end", cancelled)
		}
	}
}

// copyPaymentMethod carries the original payment data of the latest order
// over so that the payment-methods command can later map it
func copyPaymentMethod(ctx context.Context, sc *SyncContext, s migration.SkioSubscription, latest *migration.Entity) {
	sub := sc.Parent
	sub.SetMeta(migration.MetaPaymentMethodID, latest.GetMeta(migration.MetaPaymentMethodID))
	sub.SetMeta(migration.MetaPaymentTokens, latest.GetMeta(migration.MetaPaymentTokens))

	gateway := latest.GetMeta(migration.MetaOriginalPaymentGateway)
	methodID := latest.GetMeta(migration.MetaOriginalPaymentMethodID)
	switch gateway {
	case migration.GatewayShopifyPayments:
		last4 := latest.GetMeta(migration.MetaOriginalPaymentLast4)
		if !migration.SameDigits(last4, s.PaymentMethodLastDigits.String()) {
			sc.Advise(ctx, migration.Error("mismatch in subscription payment method last 4: order has %q, export has %q",
				last4, s.PaymentMethodLastDigits))
			return
		}
		sub.SetMeta(migration.MetaOriginalPaymentGateway, gateway)
		sub.SetMeta(migration.MetaOriginalPaymentMethodID, methodID)
		sub.SetMeta(migration.MetaOriginalPaymentLast4, last4)
	case migration.GatewayPaypal:
		sub.SetMeta(migration.MetaOriginalPaymentGateway, gateway)
		sub.SetMeta(migration.MetaOriginalPaymentMethodID, methodID)
		sub.SetField("payment_method", GatewayPPECPaypal)
		sub.SetMeta(migration.MetaBillingAgreementID, methodID)
	default:
		sc.Advise(ctx, migration.Warning("unknown payment gateway %q", gateway))
	}
}

var skioTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// parseSkioTime parses the timestamps of the Skio exports. Empty and
// malformed values report false.
func parseSkioTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range skioTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
