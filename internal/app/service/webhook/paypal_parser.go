package webhook

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/slotbook/billing/internal/app/service/lifecycle"
	"github.com/slotbook/billing/pkg/types"
)

var paypalEventKinds = map[string]lifecycle.EventKind{
	"BILLING.SUBSCRIPTION.ACTIVATED": lifecycle.KindActivated,
	"BILLING.SUBSCRIPTION.CANCELLED": lifecycle.KindCancelled,
	"BILLING.SUBSCRIPTION.SUSPENDED": lifecycle.KindSuspended,
	"BILLING.SUBSCRIPTION.EXPIRED":   lifecycle.KindExpired,
	"PAYMENT.SALE.COMPLETED":         lifecycle.KindCharged,
}

type paypalEnvelope struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	CreateTime   time.Time       `json:"create_time"`
	Resource     json.RawMessage `json:"resource"`
	ResourceType string          `json:"resource_type"`
}

type paypalSubscriptionResource struct {
	ID          string `json:"id"`
	PlanID      string `json:"plan_id"`
	Status      string `json:"status"`
	BillingInfo struct {
		NextBillingTime *time.Time `json:"next_billing_time"`
	} `json:"billing_info"`
}

type paypalSaleResource struct {
	ID                 string `json:"id"`
	State              string `json:"state"`
	BillingAgreementID string `json:"billing_agreement_id"`
	Amount             struct {
		Total    string `json:"total"`
		Currency string `json:"currency"`
	} `json:"amount"`
}

// parsePayPalEvent turns a verified webhook body into a lifecycle event.
// Sale events reference their subscription through billing_agreement_id;
// sales without one are unrelated payments and get acknowledged untouched.
func parsePayPalEvent(body []byte) (ev lifecycle.Event, eventType string, ok bool, err error) {
	var env paypalEnvelope
	if err = json.Unmarshal(body, &env); err != nil {
		return ev, "", false, fmt.Errorf("malformed paypal payload: %w", err)
	}
	eventType = env.EventType

	kind, known := paypalEventKinds[env.EventType]
	if !known {
		return ev, eventType, false, nil
	}

	if kind == lifecycle.KindCharged {
		var sale paypalSaleResource
		if err = json.Unmarshal(env.Resource, &sale); err != nil {
			return ev, eventType, false, fmt.Errorf("malformed sale resource: %w", err)
		}
		if sale.BillingAgreementID == "" {
			return ev, eventType, false, nil
		}
		amount, err := parseDecimalAmount(sale.Amount.Total)
		if err != nil {
			return ev, eventType, false, err
		}
		ev = lifecycle.Event{
			Kind:           kind,
			Provider:       types.PaymentProviderPayPal,
			SubscriptionID: sale.BillingAgreementID,
			Payment: &lifecycle.PaymentInfo{
				PaymentID: sale.ID,
				Amount:    amount,
				Currency:  sale.Amount.Currency,
				Status:    sale.State,
				Method:    "paypal",
				Meta:      env.Resource,
			},
		}
		return ev, eventType, true, nil
	}

	var sub paypalSubscriptionResource
	if err = json.Unmarshal(env.Resource, &sub); err != nil {
		return ev, eventType, false, fmt.Errorf("malformed subscription resource: %w", err)
	}
	if sub.ID == "" {
		return ev, eventType, false, fmt.Errorf("paypal event %s carries no subscription id", env.EventType)
	}
	ev = lifecycle.Event{
		Kind:           kind,
		Provider:       types.PaymentProviderPayPal,
		SubscriptionID: sub.ID,
		PeriodEnd:      sub.BillingInfo.NextBillingTime,
	}
	return ev, eventType, true, nil
}

// parseDecimalAmount converts paypal's "10.00" style amount into minor
// units. Fails on anything that does not round-trip exactly.
func parseDecimalAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad amount %q: %w", s, err)
	}
	minor := math.Round(f * 100)
	if math.Abs(f*100-minor) > 1e-6 {
		return 0, fmt.Errorf("amount %q has sub-cent precision", s)
	}
	return int64(minor), nil
}
