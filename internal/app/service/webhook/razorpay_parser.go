package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/slotbook/billing/internal/app/service/lifecycle"
	"github.com/slotbook/billing/pkg/types"
)

// razorpayEventKinds maps the provider's event names onto lifecycle kinds.
// halted and paused both stop billing without the user asking, so they land
// on the same suspension.
var razorpayEventKinds = map[string]lifecycle.EventKind{
	"subscription.authenticated": lifecycle.KindAuthenticated,
	"subscription.activated":     lifecycle.KindActivated,
	"subscription.charged":       lifecycle.KindCharged,
	"subscription.cancelled":     lifecycle.KindCancelled,
	"subscription.halted":        lifecycle.KindSuspended,
	"subscription.paused":        lifecycle.KindSuspended,
	"subscription.completed":     lifecycle.KindCompleted,
}

type razorpayEnvelope struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Subscription struct {
			Entity razorpaySubscriptionEntity `json:"entity"`
		} `json:"subscription"`
		Payment struct {
			Entity razorpayPaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type razorpaySubscriptionEntity struct {
	ID           string `json:"id"`
	PlanID       string `json:"plan_id"`
	Status       string `json:"status"`
	CurrentStart int64  `json:"current_start"`
	CurrentEnd   int64  `json:"current_end"`
}

type razorpayPaymentEntity struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
}

// parseRazorpayEvent turns a verified webhook body into a lifecycle event.
// ok=false means the event type is recognized noise (payment.captured for
// one-time orders, invoice events) and should be acknowledged untouched.
func parseRazorpayEvent(body []byte) (ev lifecycle.Event, eventType string, ok bool, err error) {
	var env razorpayEnvelope
	if err = json.Unmarshal(body, &env); err != nil {
		return ev, "", false, fmt.Errorf("malformed razorpay payload: %w", err)
	}
	eventType = env.Event

	kind, known := razorpayEventKinds[env.Event]
	if !known {
		return ev, eventType, false, nil
	}
	sub := env.Payload.Subscription.Entity
	if sub.ID == "" {
		return ev, eventType, false, fmt.Errorf("razorpay event %s carries no subscription id", env.Event)
	}

	ev = lifecycle.Event{
		Kind:           kind,
		Provider:       types.PaymentProviderRazorpay,
		SubscriptionID: sub.ID,
		PeriodStart:    unixTime(sub.CurrentStart),
		PeriodEnd:      unixTime(sub.CurrentEnd),
	}
	if kind == lifecycle.KindCharged {
		pay := env.Payload.Payment.Entity
		if pay.ID == "" {
			return ev, eventType, false, fmt.Errorf("razorpay charge event carries no payment")
		}
		meta, _ := json.Marshal(pay)
		ev.Payment = &lifecycle.PaymentInfo{
			PaymentID: pay.ID,
			Amount:    pay.Amount,
			Currency:  pay.Currency,
			Status:    pay.Status,
			Method:    pay.Method,
			Meta:      meta,
		}
	}
	return ev, eventType, true, nil
}

func unixTime(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0)
	return &t
}
