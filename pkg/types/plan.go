package types

type PaymentProvider string

const (
	PaymentProviderRazorpay PaymentProvider = "razorpay"
	PaymentProviderPayPal   PaymentProvider = "paypal"
	// PaymentProviderInner marks entitlements granted internally (gifts,
	// support compensation) with no external charge behind them.
	PaymentProviderInner PaymentProvider = "inner"
)

// Plan is a server-held price point. Client-supplied amounts are advisory
// only; every charge is re-derived from this table before being compared
// or persisted.
type Plan struct {
	ID           string `json:"id" mapstructure:"id"`
	Name         string `json:"name" mapstructure:"name"`
	// Amount in the currency's minor unit (paise, cents).
	Amount       int64  `json:"amount" mapstructure:"amount"`
	Currency     string `json:"currency" mapstructure:"currency"`
	DurationDays int    `json:"duration_days" mapstructure:"duration_days"`
	// Provider-side identifiers for recurring billing.
	RazorpayPlanID string `json:"razorpay_plan_id,omitempty" mapstructure:"razorpay_plan_id"`
	PayPalPlanID   string `json:"paypal_plan_id,omitempty" mapstructure:"paypal_plan_id"`
}
