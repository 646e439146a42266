package skio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/migrator/internal/domain/migration"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewExportFiles(t *testing.T) {
	_, err := NewExportFiles("", "orders.json", nil)
	assert.ErrorIs(t, err, ErrExportFilesMissing)

	_, err = NewExportFiles("subscriptions.json", "", nil)
	assert.ErrorIs(t, err, ErrExportFilesMissing)
}

func TestExportFiles_LoadSubscriptions(t *testing.T) {
	dir := t.TempDir()
	subs := writeFile(t, dir, "subscriptions.json", `[
		{"subscriptionId":"sub-1","status":"ACTIVE","createdAt":"2023-01-01T00:00:00Z",
		 "nextBillingDate":"2023-02-01T00:00:00Z","billingPolicyInterval":"MONTH",
		 "billingPolicyIntervalCount":1,"paymentMethodLastDigits":"0042"}
	]`)
	orders := writeFile(t, dir, "orders.json", `[
		{"subscriptionId":"sub-1","orderPlatformNumber":1001},
		{"subscriptionId":"sub-1","orderPlatformNumber":"1002"}
	]`)

	src, err := NewExportFiles(subs, orders, zaptest.NewLogger(t))
	require.NoError(t, err)

	export, err := src.LoadSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, export.Subscriptions, 1)
	require.Len(t, export.Orders, 2)

	sub := export.Subscriptions[0]
	assert.Equal(t, "sub-1", sub.SubscriptionID)
	assert.Equal(t, "1", sub.BillingPolicyIntervalCount.String())
	assert.True(t, migration.SameDigits("42", sub.PaymentMethodLastDigits.String()))
	assert.Equal(t, "1001", export.Orders[0].OrderPlatformNumber.String())
	assert.Equal(t, "1002", export.Orders[1].OrderPlatformNumber.String())
}

func TestExportFiles_LoadSubscriptions_Errors(t *testing.T) {
	dir := t.TempDir()
	valid := writeFile(t, dir, "valid.json", `[]`)
	broken := writeFile(t, dir, "broken.json", `{"not": "an array"`)

	tests := []struct {
		name   string
		subs   string
		orders string
	}{
		{name: "missing subscriptions file", subs: filepath.Join(dir, "nope.json"), orders: valid},
		{name: "malformed orders file", subs: valid, orders: broken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewExportFiles(tt.subs, tt.orders, nil)
			require.NoError(t, err)

			_, err = src.LoadSubscriptions(context.Background())
			assert.ErrorIs(t, err, migration.ErrInvalidMigrationFile)
		})
	}
}
