package types

import "time"

// SubscriptionStatus carries the provider-native status string. Only the
// recognized set below participates in lifecycle decisions; anything else is
// acknowledged and left unapplied.
type SubscriptionStatus string

const (
	SubscriptionStatusCreated         SubscriptionStatus = "created"
	SubscriptionStatusApprovalPending SubscriptionStatus = "approval_pending"
	SubscriptionStatusPending         SubscriptionStatus = "pending"
	SubscriptionStatusAuthenticated   SubscriptionStatus = "authenticated"
	SubscriptionStatusActive          SubscriptionStatus = "active"
	SubscriptionStatusCancelled       SubscriptionStatus = "cancelled"
	SubscriptionStatusSuspended       SubscriptionStatus = "suspended"
	SubscriptionStatusExpired         SubscriptionStatus = "expired"
	SubscriptionStatusCompleted       SubscriptionStatus = "completed"
)

// Terminal reports whether no further provider-driven transition is expected.
func (s SubscriptionStatus) Terminal() bool {
	switch s {
	case SubscriptionStatusCancelled, SubscriptionStatusSuspended,
		SubscriptionStatusExpired, SubscriptionStatusCompleted:
		return true
	}
	return false
}

type SubscriptionKind string

const (
	SubscriptionKindRecurring SubscriptionKind = "recurring"
	// SubscriptionKindOneTime is a pseudo-subscription backed by a single
	// consumed order, with no provider-side recurring agreement.
	SubscriptionKindOneTime SubscriptionKind = "one_time"
)

type MembershipStatus string

const (
	MembershipStatusFree MembershipStatus = "free"
	MembershipStatusPro  MembershipStatus = "pro"
)

// TrialStatus only ever moves forward: available → active → used|cancelled.
type TrialStatus string

const (
	TrialStatusAvailable TrialStatus = "available"
	TrialStatusActive    TrialStatus = "active"
	TrialStatusUsed      TrialStatus = "used"
	TrialStatusCancelled TrialStatus = "cancelled"
)

type MembershipChangeReason string

const (
	MembershipChangeReasonCheckout    MembershipChangeReason = "checkout"
	MembershipChangeReasonWebhook     MembershipChangeReason = "webhook"
	MembershipChangeReasonPoll        MembershipChangeReason = "poll"
	MembershipChangeReasonCancel      MembershipChangeReason = "cancel"
	MembershipChangeReasonOrderVerify MembershipChangeReason = "order_verify"
	MembershipChangeReasonGift        MembershipChangeReason = "gift"
)

// MembershipSnapshot is the API-facing view of a user's entitlement.
type MembershipSnapshot struct {
	Status    MembershipStatus `json:"status"`
	Plan      *string          `json:"plan,omitempty"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
	Trial     TrialStatus      `json:"trial_status"`
	TrialEnds *time.Time       `json:"trial_ends_at,omitempty"`
}
