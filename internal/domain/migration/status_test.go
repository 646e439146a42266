package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslateOrderStatus(t *testing.T) {
	tests := []struct {
		name        string
		financial   string
		fulfillment string
		want        string
	}{
		{"paid and fulfilled", "paid", "fulfilled", OrderCompleted},
		{"paid and unfulfilled", "paid", "", OrderProcessing},
		{"pending and nothing", "pending", "", OrderPending},
		{"authorized partial", "authorized", "partial", OrderProcessing},
		{"partially refunded", "partially_refunded", "", OrderProcessing},
		{"refunded and fulfilled", "refunded", "fulfilled", OrderRefunded},
		{"refunded and partial", "refunded", "partial", OrderRefunded},
		{"voided", "voided", "", OrderCancelled},
		{"voided and fulfilled", "voided", "fulfilled", OrderCompleted},
		{"voided and partial", "voided", "partial", OrderProcessing},
		{"unknown financial", "weird", "", OrderPending},
		{"unknown financial fulfilled", "weird", "fulfilled", OrderCompleted},
		{"empty", "", "", OrderPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TranslateOrderStatus(tt.financial, tt.fulfillment))
		})
	}
}

func TestTranslateProductStatus(t *testing.T) {
	assert.Equal(t, ProductPublish, TranslateProductStatus("active"))
	assert.Equal(t, ProductDraft, TranslateProductStatus("archived"))
	assert.Equal(t, ProductDraft, TranslateProductStatus("draft"))
	assert.Equal(t, ProductDraft, TranslateProductStatus(""))
}

func TestTranslateSubscriptionStatus(t *testing.T) {
	t.Run("Known statuses", func(t *testing.T) {
		status, adv := TranslateSubscriptionStatus("ACTIVE")
		assert.Equal(t, SubscriptionActive, status)
		assert.Nil(t, adv)

		status, adv = TranslateSubscriptionStatus("CANCELLED")
		assert.Equal(t, SubscriptionCancelled, status)
		assert.Nil(t, adv)
	})

	t.Run("Unknown status is lowercased with a warning", func(t *testing.T) {
		status, adv := TranslateSubscriptionStatus("PAUSED")
		assert.Equal(t, "paused", status)
		if assert.NotNil(t, adv) {
			assert.Equal(t, AdvisoryWarning, adv.Level)
			assert.Contains(t, adv.Message, "PAUSED")
		}
	})
}
