package migrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/migrator/internal/domain/migration"
)

type paymentFixture struct {
	te           *testEngine
	customer     *migration.Entity
	token        *migration.Entity
	order        *migration.Entity
	subscription *migration.Entity
	paypalOrder  *migration.Entity
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	te := newTestEngine(t)

	customer := migration.NewEntity(migration.KindCustomer)
	customer.SetMeta(migration.MetaStripeCustomerID, "cus_new")
	mustCreate(t, te.store, customer)

	token := migration.NewChildEntity(migration.KindPaymentToken, customer.ID)
	token.SetField(migration.FieldToken, "pm_new")
	token.SetField("last4", "4242")
	mustCreate(t, te.store, token)

	paidWith := func(kind migration.EntityKind, gateway, methodID, last4 string) *migration.Entity {
		e := migration.NewEntity(kind)
		e.SetField("customer_id", customer.ID.String())
		e.SetField("payment_method", gateway)
		e.SetMeta(migration.MetaOriginalPaymentGateway, gateway)
		e.SetMeta(migration.MetaOriginalPaymentMethodID, methodID)
		e.SetMeta(migration.MetaOriginalPaymentLast4, last4)
		return mustCreate(t, te.store, e)
	}

	return &paymentFixture{
		te:           te,
		customer:     customer,
		token:        token,
		order:        paidWith(migration.KindOrder, migration.GatewayShopifyPayments, "pm_old", "4242"),
		subscription: paidWith(migration.KindSubscription, migration.GatewayShopifyPayments, "pm_old", "4242"),
		paypalOrder:  paidWith(migration.KindOrder, migration.GatewayPaypal, "B-1", ""),
	}
}

func runPaymentMethods(t *testing.T, te *testEngine, mappings ...migration.PaymentMethodMapping) *RunResult {
	t.Helper()
	imp, err := NewPaymentMethodImporter(te.Engine, &fakePaymentMappingSource{mappings: mappings}, DefaultPaymentMethodOptions())
	require.NoError(t, err)
	result, err := imp.Run(context.Background())
	require.NoError(t, err)
	return result
}

var stripeMapping = migration.PaymentMethodMapping{
	CustomerIDOld: "cus_old",
	SourceIDOld:   "pm_old",
	CustomerIDNew: "cus_new",
	SourceIDNew:   "pm_new",
}

func TestPaymentMethodImporter(t *testing.T) {
	f := newPaymentFixture(t)
	te := f.te

	result := runPaymentMethods(t, te, stripeMapping, migration.PaymentMethodMapping{
		CustomerIDOld: "cus_gone", SourceIDOld: "pm_gone", CustomerIDNew: "cus_missing", SourceIDNew: "pm_missing",
	})
	assert.Equal(t, 3, result.Updated, "customer, order and subscription")
	assert.Equal(t, 2, result.Skipped, "unknown customer and the paypal order")
	assert.Zero(t, result.Failed)

	t.Run("customer and token learn their old ids", func(t *testing.T) {
		assert.Equal(t, "cus_old", mustGet(t, te.store, f.customer).GetMeta(migration.MetaOriginalCustomerID))
		assert.Equal(t, "pm_old", mustGet(t, te.store, f.token).GetMeta(migration.MetaOriginalPaymentMethodID))
	})

	for name, e := range map[string]*migration.Entity{"order": f.order, "subscription": f.subscription} {
		t.Run(name+" points at the new token", func(t *testing.T) {
			updated := mustGet(t, te.store, e)
			assert.Equal(t, GatewayWooCommercePayments, updated.Field("payment_method"))
			assert.Equal(t, "cus_new", updated.GetMeta(migration.MetaStripeCustomerID))
			assert.Equal(t, "pm_new", updated.GetMeta(migration.MetaPaymentMethodID))

			var tokens []string
			require.NoError(t, updated.MetaJSON(migration.MetaPaymentTokens, &tokens))
			assert.Equal(t, []string{f.token.ID.String()}, tokens)
		})
	}

	t.Run("other gateways are left alone", func(t *testing.T) {
		assert.Equal(t, migration.GatewayPaypal, mustGet(t, te.store, f.paypalOrder).Field("payment_method"))
	})
}

func TestPaymentMethodImporter_Last4Mismatch(t *testing.T) {
	f := newPaymentFixture(t)
	order := mustGet(t, f.te.store, f.order)
	order.SetMeta(migration.MetaOriginalPaymentLast4, "1111")
	require.NoError(t, f.te.store.Save(context.Background(), order))

	runPaymentMethods(t, f.te, stripeMapping)

	assert.Equal(t, migration.GatewayShopifyPayments, mustGet(t, f.te.store, f.order).Field("payment_method"))
	assert.Equal(t, GatewayWooCommercePayments, mustGet(t, f.te.store, f.subscription).Field("payment_method"))
	assert.NotEmpty(t, f.te.logs.FilterMessage("mismatch in payment token last 4").All())
}

func TestPaymentMethodImporter_DuplicateStripeCustomer(t *testing.T) {
	f := newPaymentFixture(t)
	twin := migration.NewEntity(migration.KindCustomer)
	twin.SetMeta(migration.MetaStripeCustomerID, "cus_new")
	mustCreate(t, f.te.store, twin)

	runPaymentMethods(t, f.te, stripeMapping)

	assert.Empty(t, mustGet(t, f.te.store, f.customer).GetMeta(migration.MetaOriginalCustomerID))
	assert.Contains(t, f.te.advisories(migration.AdvisoryError), "multiple customers share Stripe customer cus_new, skipping")
	assert.Equal(t, migration.GatewayShopifyPayments, mustGet(t, f.te.store, f.order).Field("payment_method"),
		"tokens that never learned their old id match nothing")
}
