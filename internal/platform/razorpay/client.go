package razorpay

import (
	"context"
	"errors"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"go.uber.org/zap"

	cfgpkg "github.com/slotbook/billing/pkg/config"
)

var (
	// ErrDisabled is returned by every call when the provider credentials were
	// missing at startup. Only this provider is disabled, not the process.
	ErrDisabled = errors.New("razorpay: provider disabled, missing credentials")
	// ErrUnavailable wraps provider transport failures; callers may retry.
	ErrUnavailable = errors.New("razorpay: provider unavailable")
)

const requestTimeoutSeconds = 15

// Client wraps the Razorpay SDK behind typed results so services never touch
// the SDK's raw map payloads.
type Client struct {
	cfg cfgpkg.RazorpayConfig
	sdk *razorpay.Client
}

func NewClient(cfg *cfgpkg.Config, log *zap.SugaredLogger) *Client {
	c := &Client{cfg: cfg.Razorpay}
	if !cfg.Razorpay.Enabled() {
		log.Errorw("razorpay disabled: key_id/key_secret not configured")
		return c
	}
	sdk := razorpay.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	sdk.SetTimeout(requestTimeoutSeconds)
	c.sdk = sdk
	return c
}

func (c *Client) Enabled() bool { return c.sdk != nil }

// KeyID is exposed to clients rendering the checkout widget.
func (c *Client) KeyID() string { return c.cfg.KeyID }

type OrderHandle struct {
	OrderID  string
	Amount   int64
	Currency string
}

type OrderInfo struct {
	OrderID  string
	Amount   int64
	Currency string
	Status   string
}

type PaymentInfo struct {
	PaymentID string
	OrderID   string
	Amount    int64
	Currency  string
	Status    string
	Method    string
	Raw       map[string]interface{}
}

type SubscriptionHandle struct {
	SubscriptionID string
	Status         string
	ShortURL       string
}

type SubscriptionInfo struct {
	SubscriptionID string
	PlanID         string
	Status         string
	CurrentStart   *time.Time
	CurrentEnd     *time.Time
}

func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]interface{}) (*OrderHandle, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	body, err := c.sdk.Order.Create(map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create order: %v", ErrUnavailable, err)
	}
	return &OrderHandle{
		OrderID:  asString(body["id"]),
		Amount:   asInt64(body["amount"]),
		Currency: asString(body["currency"]),
	}, nil
}

func (c *Client) FetchOrder(ctx context.Context, orderID string) (*OrderInfo, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	body, err := c.sdk.Order.Fetch(orderID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch order %s: %v", ErrUnavailable, orderID, err)
	}
	return &OrderInfo{
		OrderID:  asString(body["id"]),
		Amount:   asInt64(body["amount"]),
		Currency: asString(body["currency"]),
		Status:   asString(body["status"]),
	}, nil
}

func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*PaymentInfo, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	body, err := c.sdk.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch payment %s: %v", ErrUnavailable, paymentID, err)
	}
	return &PaymentInfo{
		PaymentID: asString(body["id"]),
		OrderID:   asString(body["order_id"]),
		Amount:    asInt64(body["amount"]),
		Currency:  asString(body["currency"]),
		Status:    asString(body["status"]),
		Method:    asString(body["method"]),
		Raw:       body,
	}, nil
}

// CreateSubscription mints a recurring agreement. A non-nil startAt defers the
// first charge (trial checkout sets it to the trial end).
func (c *Client) CreateSubscription(ctx context.Context, planID string, totalCount int, startAt *time.Time, notes map[string]interface{}) (*SubscriptionHandle, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	data := map[string]interface{}{
		"plan_id":         planID,
		"total_count":     totalCount,
		"customer_notify": 1,
		"notes":           notes,
	}
	if startAt != nil {
		data["start_at"] = startAt.Unix()
	}
	body, err := c.sdk.Subscription.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create subscription: %v", ErrUnavailable, err)
	}
	return &SubscriptionHandle{
		SubscriptionID: asString(body["id"]),
		Status:         asString(body["status"]),
		ShortURL:       asString(body["short_url"]),
	}, nil
}

func (c *Client) FetchSubscription(ctx context.Context, subscriptionID string) (*SubscriptionInfo, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	body, err := c.sdk.Subscription.Fetch(subscriptionID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch subscription %s: %v", ErrUnavailable, subscriptionID, err)
	}
	info := &SubscriptionInfo{
		SubscriptionID: asString(body["id"]),
		PlanID:         asString(body["plan_id"]),
		Status:         asString(body["status"]),
	}
	if ts := asInt64(body["current_start"]); ts > 0 {
		t := time.Unix(ts, 0)
		info.CurrentStart = &t
	}
	if ts := asInt64(body["current_end"]); ts > 0 {
		t := time.Unix(ts, 0)
		info.CurrentEnd = &t
	}
	return info, nil
}

// CancelSubscription with atCycleEnd leaves the agreement running until the
// current billing cycle completes; the provider confirms via webhook.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string, atCycleEnd bool) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	data := map[string]interface{}{"cancel_at_cycle_end": 0}
	if atCycleEnd {
		data["cancel_at_cycle_end"] = 1
	}
	if _, err := c.sdk.Subscription.Cancel(subscriptionID, data, nil); err != nil {
		return fmt.Errorf("%w: cancel subscription %s: %v", ErrUnavailable, subscriptionID, err)
	}
	return nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// asInt64 tolerates the SDK decoding JSON numbers as float64.
func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
