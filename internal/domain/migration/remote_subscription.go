package migration

import (
	"bytes"
	"encoding/json"
	"strings"
)

// SkioSubscription is one row of the Skio subscriptions export
type SkioSubscription struct {
	SubscriptionID             string     `json:"subscriptionId"`
	Status                     string     `json:"status"`
	CreatedAt                  string     `json:"createdAt"`
	CancelledAt                string     `json:"cancelledAt"`
	NextBillingDate            string     `json:"nextBillingDate"`
	BillingPolicyInterval      string     `json:"billingPolicyInterval"`
	BillingPolicyIntervalCount FlexString `json:"billingPolicyIntervalCount"`
	PaymentMethodLastDigits    FlexString `json:"paymentMethodLastDigits"`
}

// SkioOrder is one row of the Skio orders export
type SkioOrder struct {
	SubscriptionID      string     `json:"subscriptionId"`
	OrderPlatformNumber FlexString `json:"orderPlatformNumber"`
}

// FlexString decodes a JSON string or number into its textual form. The Skio
// exports are not consistent about quoting numeric columns.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the value
func (f FlexString) String() string {
	return string(f)
}

// SameDigits compares two card suffixes numerically, so "0042" equals "42"
func SameDigits(a, b string) bool {
	return strings.TrimLeft(strings.TrimSpace(a), "0") == strings.TrimLeft(strings.TrimSpace(b), "0")
}
