package checkout

import (
	"testing"

	"github.com/slotbook/billing/pkg/types"

	"github.com/stretchr/testify/assert"
)

func TestMapRazorpayStatus(t *testing.T) {
	assert.Equal(t, types.SubscriptionStatusAuthenticated, mapRazorpayStatus("authenticated"))
	assert.Equal(t, types.SubscriptionStatusActive, mapRazorpayStatus("active"))
	assert.Equal(t, types.SubscriptionStatusSuspended, mapRazorpayStatus("halted"))
	assert.Equal(t, types.SubscriptionStatusSuspended, mapRazorpayStatus("paused"))
	assert.Equal(t, types.SubscriptionStatusCompleted, mapRazorpayStatus("completed"))
	assert.Equal(t, types.SubscriptionStatus(""), mapRazorpayStatus("something_new"))
}

func TestMapPayPalStatus(t *testing.T) {
	assert.Equal(t, types.SubscriptionStatusApprovalPending, mapPayPalStatus("approval_pending"))
	assert.Equal(t, types.SubscriptionStatusAuthenticated, mapPayPalStatus("approved"))
	assert.Equal(t, types.SubscriptionStatusActive, mapPayPalStatus("active"))
	assert.Equal(t, types.SubscriptionStatusExpired, mapPayPalStatus("expired"))
	assert.Equal(t, types.SubscriptionStatus(""), mapPayPalStatus(""))
}
