package checkout

import "github.com/slotbook/billing/pkg/types"

// mapRazorpayStatus normalizes razorpay's subscription states onto the
// internal set. Halted and paused both mean billing stopped without the
// user asking for it.
func mapRazorpayStatus(s string) types.SubscriptionStatus {
	switch s {
	case "created":
		return types.SubscriptionStatusCreated
	case "authenticated":
		return types.SubscriptionStatusAuthenticated
	case "active":
		return types.SubscriptionStatusActive
	case "pending":
		return types.SubscriptionStatusPending
	case "halted", "paused":
		return types.SubscriptionStatusSuspended
	case "cancelled":
		return types.SubscriptionStatusCancelled
	case "completed":
		return types.SubscriptionStatusCompleted
	case "expired":
		return types.SubscriptionStatusExpired
	default:
		return ""
	}
}

func mapPayPalStatus(s string) types.SubscriptionStatus {
	switch s {
	case "approval_pending":
		return types.SubscriptionStatusApprovalPending
	case "approved":
		return types.SubscriptionStatusAuthenticated
	case "active":
		return types.SubscriptionStatusActive
	case "suspended":
		return types.SubscriptionStatusSuspended
	case "cancelled":
		return types.SubscriptionStatusCancelled
	case "expired":
		return types.SubscriptionStatusExpired
	default:
		return ""
	}
}
