package lifecycle

import (
	"time"

	"github.com/slotbook/billing/pkg/types"
)

// EventKind is the recognized set of provider transitions. Decoders map
// provider-native event names onto these; anything unmapped never reaches
// the state machine.
type EventKind string

const (
	KindAuthenticated EventKind = "authenticated"
	KindActivated     EventKind = "activated"
	KindCharged       EventKind = "charged"
	KindCancelled     EventKind = "cancelled"
	KindSuspended     EventKind = "suspended"
	KindExpired       EventKind = "expired"
	KindCompleted     EventKind = "completed"
)

// PaymentInfo describes the charge attached to a KindCharged event.
type PaymentInfo struct {
	PaymentID string
	Amount    int64
	Currency  string
	Status    string
	Method    string
	Meta      []byte
}

// Event is a verified provider transition. Verification happens strictly
// before an Event is constructed; the state machine trusts its input.
type Event struct {
	Kind           EventKind
	Provider       types.PaymentProvider
	SubscriptionID string
	// PeriodStart/End are provider-reported cycle bounds, when present.
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	Payment     *PaymentInfo
	// Immediate marks a user-confirmed full downgrade: the only cancellation
	// that projects membership to free right away.
	Immediate bool
	Reason    types.MembershipChangeReason
}

// statusFor maps an event kind to the subscription status it lands on.
func statusFor(kind EventKind) types.SubscriptionStatus {
	switch kind {
	case KindAuthenticated:
		return types.SubscriptionStatusAuthenticated
	case KindActivated, KindCharged:
		return types.SubscriptionStatusActive
	case KindCancelled:
		return types.SubscriptionStatusCancelled
	case KindSuspended:
		return types.SubscriptionStatusSuspended
	case KindExpired:
		return types.SubscriptionStatusExpired
	case KindCompleted:
		return types.SubscriptionStatusCompleted
	}
	return ""
}
