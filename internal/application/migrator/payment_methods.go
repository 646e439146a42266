package migrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/logger"
)

// PaymentMethodImporter applies the Stripe PAN migration file: customers
// and their tokens learn their old Stripe ids, then orders and
// subscriptions paid through Shopify Payments are pointed at the new tokens.
type PaymentMethodImporter struct {
	*session
	source migration.PaymentMappingSource
}

var _ Handler[migration.PaymentMethodMapping] = (*PaymentMethodImporter)(nil)

// NewPaymentMethodImporter creates a payment method importer for one run
func NewPaymentMethodImporter(e *Engine, source migration.PaymentMappingSource, opts RunOptions) (*PaymentMethodImporter, error) {
	s, err := e.newSession(opts, nil)
	if err != nil {
		return nil, err
	}
	return &PaymentMethodImporter{session: s, source: source}, nil
}

// Run updates customers from the mapping file, then orders, then
// subscriptions. The result adds up the three passes.
func (imp *PaymentMethodImporter) Run(ctx context.Context) (*RunResult, error) {
	mappings, err := imp.source.LoadPaymentMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load payment mappings: %w", err)
	}

	total := &RunResult{}
	customers, err := runLocal(ctx, imp.engine, SliceFetch(mappings), imp, imp.opts)
	total.add(customers)
	if err != nil {
		return total, err
	}

	// the passes over the local store always start from the beginning
	passOpts := imp.opts
	passOpts.Next = ""
	for _, kind := range []migration.EntityKind{migration.KindOrder, migration.KindSubscription} {
		updater := &paymentMethodUpdater{imp: imp, kind: kind}
		result, err := runLocal(ctx, imp.engine, StoreFetch(imp.store, kind), updater, passOpts)
		total.add(result)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (r *RunResult) add(o *RunResult) {
	if o == nil {
		return
	}
	r.Processed += o.Processed
	r.Created += o.Created
	r.Updated += o.Updated
	r.Skipped += o.Skipped
	r.Failed += o.Failed
	r.Pages += o.Pages
	if o.NextCursor != "" {
		r.NextCursor = o.NextCursor
	}
}

// Kind implements Handler
func (imp *PaymentMethodImporter) Kind() migration.EntityKind {
	return migration.KindCustomer
}

// RemoteID implements Handler
func (imp *PaymentMethodImporter) RemoteID(m migration.PaymentMethodMapping) string {
	return m.CustomerIDNew
}

// Process records the old Stripe ids on the customer and on the token
func (imp *PaymentMethodImporter) Process(ctx context.Context, m migration.PaymentMethodMapping) (Outcome, error) {
	log := logger.L(ctx)
	customers, err := imp.store.FindByMeta(ctx, migration.MetaStripeCustomerID, m.CustomerIDNew, migration.KindCustomer)
	if err != nil {
		return OutcomeSkipped, err
	}
	switch {
	case len(customers) == 0:
		log.Warn("customer not found")
		return OutcomeSkipped, nil
	case len(customers) > 1:
		log.Advisory(migration.Error("multiple customers share Stripe customer %s, skipping", m.CustomerIDNew))
		return OutcomeSkipped, nil
	}

	customer := customers[0]
	customer.SetMeta(migration.MetaOriginalCustomerID, m.CustomerIDOld)
	if err := imp.persist(ctx, customer); err != nil {
		return OutcomeSkipped, err
	}

	tokens, err := imp.store.Children(ctx, customer.ID, migration.KindPaymentToken)
	if err != nil {
		return OutcomeSkipped, err
	}
	for _, token := range tokens {
		if token.Field(migration.FieldToken) != m.SourceIDNew {
			continue
		}
		token.SetMeta(migration.MetaOriginalPaymentMethodID, m.SourceIDOld)
		if err := imp.persist(ctx, token); err != nil {
			return OutcomeSkipped, err
		}
		log.Info("payment token mapped",
			zap.String("customer_id", customer.ID.String()),
			zap.String("token_id", token.ID.String()),
		)
		return OutcomeUpdated, nil
	}

	log.Warn("token not found", zap.String("source_id", m.SourceIDNew))
	return OutcomeUpdated, nil
}

// ---------------------------------------------------------------------------
// Orders and subscriptions
// ---------------------------------------------------------------------------

// paymentMethodUpdater moves the orders or subscriptions of one kind from
// Shopify Payments onto the mapped tokens
type paymentMethodUpdater struct {
	imp  *PaymentMethodImporter
	kind migration.EntityKind
}

var _ Handler[*migration.Entity] = (*paymentMethodUpdater)(nil)

func (u *paymentMethodUpdater) Kind() migration.EntityKind {
	return u.kind
}

func (u *paymentMethodUpdater) RemoteID(e *migration.Entity) string {
	return e.ID.String()
}

func (u *paymentMethodUpdater) Process(ctx context.Context, e *migration.Entity) (Outcome, error) {
	log := logger.L(ctx)
	gateway := e.GetMeta(migration.MetaOriginalPaymentGateway)
	switch gateway {
	case migration.GatewayShopifyPayments:
	case "":
		log.Debug("payment gateway not set")
		return OutcomeSkipped, nil
	default:
		log.Info("unknown payment gateway", zap.String("gateway", gateway))
		return OutcomeSkipped, nil
	}

	methodID := e.GetMeta(migration.MetaOriginalPaymentMethodID)
	token, customer, err := u.findToken(ctx, e, methodID, e.GetMeta(migration.MetaOriginalPaymentLast4))
	if err != nil {
		return OutcomeSkipped, err
	}
	if token == nil {
		log.Warn("payment token not found", zap.String("payment_method_id", methodID))
		return OutcomeSkipped, nil
	}

	e.SetField("payment_method", GatewayWooCommercePayments)
	e.SetMeta(migration.MetaStripeCustomerID, customer.GetMeta(migration.MetaStripeCustomerID))
	e.SetMeta(migration.MetaPaymentMethodID, token.Field(migration.FieldToken))
	if err := e.SetMetaJSON(migration.MetaPaymentTokens, []string{token.ID.String()}); err != nil {
		return OutcomeSkipped, err
	}
	if err := u.imp.persist(ctx, e); err != nil {
		return OutcomeSkipped, err
	}
	log.Info("payment method updated", zap.String("token_id", token.ID.String()))
	return OutcomeUpdated, nil
}

// findToken returns the token of the entity's customer that replaced the
// old payment method. Tokens whose last 4 digits disagree are not used.
func (u *paymentMethodUpdater) findToken(ctx context.Context, e *migration.Entity, methodID, last4 string) (token, customer *migration.Entity, err error) {
	if methodID == "" {
		return nil, nil, nil
	}
	customerID, err := uuid.Parse(e.Field("customer_id"))
	if err != nil {
		logger.L(ctx).Debug("entity has no customer")
		return nil, nil, nil
	}
	customer, err = u.imp.store.Get(ctx, customerID)
	if err != nil {
		if errors.Is(err, migration.ErrEntityNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	tokens, err := u.imp.store.Children(ctx, customer.ID, migration.KindPaymentToken)
	if err != nil {
		return nil, nil, err
	}
	for _, t := range tokens {
		if t.GetMeta(migration.MetaOriginalPaymentMethodID) != methodID {
			continue
		}
		if !migration.SameDigits(last4, t.Field("last4")) {
			logger.L(ctx).Warn("mismatch in payment token last 4",
				zap.String("payment_method_id", methodID),
				zap.String("token_id", t.ID.String()),
			)
			continue
		}
		return t, customer, nil
	}
	return nil, customer, nil
}
