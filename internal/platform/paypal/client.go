package paypal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paypalsdk "github.com/plutov/paypal/v4"
	"go.uber.org/zap"

	cfgpkg "github.com/slotbook/billing/pkg/config"
)

var (
	ErrDisabled    = errors.New("paypal: provider disabled, missing credentials")
	ErrUnavailable = errors.New("paypal: provider unavailable")
)

const requestTimeout = 15 * time.Second

// Client wraps the PayPal SDK. Webhook authenticity is checked through the
// provider's own verify-webhook-signature API; the SDK obtains a fresh bearer
// token per call.
type Client struct {
	cfg cfgpkg.PayPalConfig
	sdk *paypalsdk.Client
}

func NewClient(cfg *cfgpkg.Config, log *zap.SugaredLogger) *Client {
	c := &Client{cfg: cfg.PayPal}
	if !cfg.PayPal.Enabled() {
		log.Errorw("paypal disabled: client_id/secret not configured")
		return c
	}
	sdk, err := paypalsdk.NewClient(cfg.PayPal.ClientID, cfg.PayPal.Secret, cfg.PayPal.APIBase)
	if err != nil {
		log.Errorw("paypal disabled: client init failed", "error", err.Error())
		return c
	}
	sdk.Client = &http.Client{Timeout: requestTimeout}
	c.sdk = sdk
	return c
}

func (c *Client) Enabled() bool { return c.sdk != nil }

type SubscriptionHandle struct {
	SubscriptionID string
	Status         string
	ApprovalURL    string
}

type SubscriptionInfo struct {
	SubscriptionID string
	PlanID         string
	Status         string
	NextBillingAt  *time.Time
}

// CreateSubscription mints an agreement awaiting buyer approval. A non-nil
// startTime defers the first charge until after the trial.
func (c *Client) CreateSubscription(ctx context.Context, planID string, startTime *time.Time) (*SubscriptionHandle, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	sub := paypalsdk.SubscriptionBase{PlanID: planID}
	if startTime != nil {
		st := paypalsdk.JSONTime(*startTime)
		sub.StartTime = &st
	}
	resp, err := c.sdk.CreateSubscription(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("%w: create subscription: %v", ErrUnavailable, err)
	}
	handle := &SubscriptionHandle{
		SubscriptionID: resp.ID,
		Status:         normalizeStatus(string(resp.SubscriptionStatus)),
	}
	for _, link := range resp.Links {
		if link.Rel == "approve" {
			handle.ApprovalURL = link.Href
			break
		}
	}
	return handle, nil
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionInfo, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	resp, err := c.sdk.GetSubscriptionDetails(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%w: get subscription %s: %v", ErrUnavailable, subscriptionID, err)
	}
	info := &SubscriptionInfo{
		SubscriptionID: resp.ID,
		PlanID:         resp.PlanID,
		Status:         normalizeStatus(string(resp.SubscriptionStatus)),
	}
	if next := time.Time(resp.BillingInfo.NextBillingTime); !next.IsZero() {
		t := next
		info.NextBillingAt = &t
	}
	return info, nil
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID, reason string) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	if err := c.sdk.CancelSubscription(ctx, subscriptionID, reason); err != nil {
		return fmt.Errorf("%w: cancel subscription %s: %v", ErrUnavailable, subscriptionID, err)
	}
	return nil
}

// VerifyWebhook sends the transmission id, timestamp, cert URL, algorithm,
// signature and event body to the provider's verification API. Only an
// explicit SUCCESS verifies; anything else fails closed.
func (c *Client) VerifyWebhook(ctx context.Context, req *http.Request) (bool, error) {
	if !c.Enabled() {
		return false, ErrDisabled
	}
	if c.cfg.WebhookID == "" {
		return false, fmt.Errorf("%w: webhook_id not configured", ErrDisabled)
	}
	resp, err := c.sdk.VerifyWebhookSignature(ctx, req, c.cfg.WebhookID)
	if err != nil {
		return false, fmt.Errorf("%w: verify webhook: %v", ErrUnavailable, err)
	}
	return resp.VerificationStatus == "SUCCESS", nil
}

// normalizeStatus lowercases provider statuses (APPROVAL_PENDING, ACTIVE, ...)
// into the recognized lifecycle vocabulary.
func normalizeStatus(s string) string {
	return strings.ToLower(s)
}
