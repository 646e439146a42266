package migration

import "strings"

// Local order statuses
const (
	OrderPending    = "pending"
	OrderProcessing = "processing"
	OrderCompleted  = "completed"
	OrderRefunded   = "refunded"
	OrderCancelled  = "cancelled"
)

// Local product statuses and visibilities
const (
	ProductPublish   = "publish"
	ProductDraft     = "draft"
	VisibilityHidden = "hidden"
)

// Local subscription statuses
const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
)

var financialStatusMap = map[string]string{
	"pending":            OrderPending,
	"authorized":         OrderProcessing,
	"partially_paid":     OrderProcessing,
	"paid":               OrderProcessing,
	"partially_refunded": OrderProcessing,
	"refunded":           OrderRefunded,
	"voided":             OrderCancelled,
}

var fulfillmentStatusMap = map[string]string{
	"fulfilled": OrderCompleted,
	"partial":   OrderProcessing,
	"pending":   OrderProcessing,
}

// TranslateOrderStatus maps the financial status, then lets the fulfillment
// status override it. Refunded orders keep their status.
// Anything unmapped is pending.
func TranslateOrderStatus(financial, fulfillment string) string {
	status := OrderPending
	if s, ok := financialStatusMap[financial]; ok {
		status = s
	}
	if status == OrderRefunded {
		return status
	}
	if s, ok := fulfillmentStatusMap[fulfillment]; ok {
		status = s
	}
	return status
}

// IsPaidStatus reports whether the financial status means money was taken
func IsPaidStatus(financial string) bool {
	switch financial {
	case "paid", "partially_paid", "partially_refunded", "refunded":
		return true
	}
	return false
}

// TranslateProductStatus maps active to publish and everything else to draft
func TranslateProductStatus(status string) string {
	if status == "active" {
		return ProductPublish
	}
	return ProductDraft
}

// TranslateSubscriptionStatus lowercases the Skio status. Statuses other than
// ACTIVE and CANCELLED come back with a warning.
func TranslateSubscriptionStatus(status string) (string, *Advisory) {
	local := strings.ToLower(status)
	switch status {
	case "ACTIVE", "CANCELLED":
		return local, nil
	}
	adv := Warning("unknown subscription status %q", status)
	return local, &adv
}
