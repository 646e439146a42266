package migrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/logger"
	"github.com/erp/migrator/internal/infrastructure/persistence"
	"github.com/erp/migrator/internal/infrastructure/persistence/models"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func noSleep(context.Context, time.Duration) error { return nil }

func setupTestStore(t *testing.T) *persistence.GormEntityStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.EntityModel{}, &models.EntityAttributeModel{}))
	return persistence.NewGormEntityStore(db)
}

// testEngine is an engine over an in-memory store that never sleeps
type testEngine struct {
	*Engine
	store *persistence.GormEntityStore
	logs  *observer.ObservedLogs
}

func newTestEngine(t *testing.T, opts ...Option) *testEngine {
	t.Helper()
	store := setupTestStore(t)
	core, logs := observer.New(zapcore.DebugLevel)
	base := []Option{
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, Sleep: noSleep}),
		WithPageDelay(0),
		WithClock(func() time.Time { return testNow }),
		WithLogger(zap.New(core)),
	}
	return &testEngine{
		Engine: NewEngine(store, append(base, opts...)...),
		store:  store,
		logs:   logs,
	}
}

// advisories returns the messages logged as advisories of a level
func (te *testEngine) advisories(level migration.AdvisoryLevel) []string {
	var out []string
	for _, entry := range te.logs.FilterField(zap.String("advisory", string(level))).All() {
		out = append(out, entry.Message)
	}
	return out
}

func contextWithEngineLogger(te *testEngine) context.Context {
	return logger.WithContext(context.Background(), te.logger)
}

func mustCreate(t *testing.T, store migration.EntityStore, e *migration.Entity) *migration.Entity {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), e))
	return e
}

func mustGet(t *testing.T, store migration.EntityStore, e *migration.Entity) *migration.Entity {
	t.Helper()
	found, err := store.Get(context.Background(), e.ID)
	require.NoError(t, err)
	return found
}

func findOne(t *testing.T, store migration.EntityStore, key, value string, kind migration.EntityKind) *migration.Entity {
	t.Helper()
	found, err := store.FindByMeta(context.Background(), key, value, kind)
	require.NoError(t, err)
	require.Len(t, found, 1, "%s %s=%s", kind, key, value)
	return found[0]
}

func children(t *testing.T, store migration.EntityStore, parent *migration.Entity, kind migration.EntityKind) []*migration.Entity {
	t.Helper()
	found, err := store.Children(context.Background(), parent.ID, kind)
	require.NoError(t, err)
	return found
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

// ---------------------------------------------------------------------------
// Fake sources
// ---------------------------------------------------------------------------

type fakeOrderSource struct {
	mu           sync.Mutex
	orders       []migration.RemoteOrder
	transactions map[int64][]migration.RemoteTransaction
	queries      []migration.OrderQuery
	requests     []migration.PageRequest
}

func (f *fakeOrderSource) ListOrders(ctx context.Context, q migration.OrderQuery, req migration.PageRequest) (migration.Page[migration.RemoteOrder], error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return SliceFetch(f.orders)(ctx, req)
}

func (f *fakeOrderSource) ListTransactions(_ context.Context, orderID int64) ([]migration.RemoteTransaction, error) {
	return f.transactions[orderID], nil
}

type fakeProductSource struct {
	products []migration.RemoteProduct
	details  map[int64]*migration.ProductDetails
}

func (f *fakeProductSource) ListProducts(ctx context.Context, _ migration.ProductQuery, req migration.PageRequest) (migration.Page[migration.RemoteProduct], error) {
	return SliceFetch(f.products)(ctx, req)
}

func (f *fakeProductSource) ProductDetails(_ context.Context, productID int64) (*migration.ProductDetails, error) {
	if d, ok := f.details[productID]; ok {
		return d, nil
	}
	return &migration.ProductDetails{}, nil
}

type fakeCouponSource struct {
	coupons []migration.RemoteCoupon
}

func (f *fakeCouponSource) ListCoupons(ctx context.Context, req migration.PageRequest) (migration.Page[migration.RemoteCoupon], error) {
	return SliceFetch(f.coupons)(ctx, req)
}

type fakeSubscriptionSource struct {
	export *migration.SubscriptionExport
}

func (f *fakeSubscriptionSource) LoadSubscriptions(context.Context) (*migration.SubscriptionExport, error) {
	return f.export, nil
}

type fakePaymentMappingSource struct {
	mappings []migration.PaymentMethodMapping
}

func (f *fakePaymentMappingSource) LoadPaymentMappings(context.Context) ([]migration.PaymentMethodMapping, error) {
	return f.mappings, nil
}

type fakeMediaStore struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeMediaStore) Sideload(_ context.Context, sourceURL, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sourceURL)
	return "https://media.test/" + key, nil
}

func (f *fakeMediaStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
