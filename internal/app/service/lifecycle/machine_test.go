package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/slotbook/billing/internal/models"
	"github.com/slotbook/billing/pkg/types"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPlan = &types.Plan{
	ID:           "pro_monthly",
	Name:         "Pro Monthly",
	Amount:       49900,
	Currency:     "INR",
	DurationDays: 30,
}

func trialSub(trialEnds time.Time) *models.Subscription {
	return &models.Subscription{
		ID:          "sub_1",
		UserID:      "u1",
		Provider:    types.PaymentProviderRazorpay,
		Kind:        types.SubscriptionKindRecurring,
		PlanID:      testPlan.ID,
		Status:      types.SubscriptionStatusCreated,
		IsTrial:     true,
		TrialEndsAt: &trialEnds,
	}
}

func paidSub() *models.Subscription {
	return &models.Subscription{
		ID:       "sub_2",
		UserID:   "u1",
		Provider: types.PaymentProviderRazorpay,
		Kind:     types.SubscriptionKindRecurring,
		PlanID:   testPlan.ID,
		Status:   types.SubscriptionStatusActive,
	}
}

func profileWith(trial types.TrialStatus) *models.Profile {
	return &models.Profile{ID: "p1", UserID: "u1", MembershipStatus: types.MembershipStatusFree, TrialStatus: trial}
}

func TestDecide_TrialActivation(t *testing.T) {
	now := time.Now()
	trialEnds := now.Add(7 * 24 * time.Hour)

	d, err := Decide(trialSub(trialEnds), profileWith(types.TrialStatusAvailable), testPlan,
		Event{Kind: KindAuthenticated, SubscriptionID: "sub_1"}, now)
	require.NoError(t, err)
	require.False(t, d.Ignored)
	assert.Equal(t, types.SubscriptionStatusAuthenticated, d.SubStatus)

	require.NotNil(t, d.Change.Membership)
	assert.Equal(t, types.MembershipStatusPro, d.Change.Membership.Status)
	assert.Equal(t, trialEnds, *d.Change.Membership.ExpiresAt)

	require.NotNil(t, d.Change.Trial)
	assert.Equal(t, types.TrialStatusActive, d.Change.Trial.Status)
	assert.Equal(t, trialEnds, *d.Change.Trial.EndsAt)
}

func TestDecide_TrialReplayNotApplied(t *testing.T) {
	now := time.Now()
	trialEnds := now.Add(7 * 24 * time.Hour)

	for _, trial := range []types.TrialStatus{types.TrialStatusActive, types.TrialStatusUsed, types.TrialStatusCancelled} {
		d, err := Decide(trialSub(trialEnds), profileWith(trial), testPlan,
			Event{Kind: KindActivated, SubscriptionID: "sub_1"}, now)
		require.NoError(t, err, "trial=%s", trial)
		assert.True(t, d.Ignored, "trial=%s", trial)
		assert.True(t, d.Change.Empty(), "trial=%s", trial)
	}
}

func TestDecide_PaidActivation(t *testing.T) {
	now := time.Now()

	d, err := Decide(paidSub(), profileWith(types.TrialStatusUsed), testPlan,
		Event{Kind: KindActivated, SubscriptionID: "sub_2"}, now)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusActive, d.SubStatus)
	require.NotNil(t, d.Change.Membership)
	assert.Equal(t, now.Add(30*24*time.Hour), *d.Change.Membership.ExpiresAt)
	assert.Nil(t, d.Change.Trial)
}

func TestDecide_ChargedExtendsFromPreviousPeriodEnd(t *testing.T) {
	now := time.Now()
	prevEnd := now.Add(3 * 24 * time.Hour)

	sub := paidSub()
	sub.CurrentPeriodEnd = &prevEnd

	d, err := Decide(sub, profileWith(types.TrialStatusUsed), testPlan,
		Event{Kind: KindCharged, SubscriptionID: sub.ID, Payment: &PaymentInfo{PaymentID: "pay_1", Amount: 49900, Currency: "INR", Status: "captured"}}, now)
	require.NoError(t, err)
	assert.True(t, d.RecordPayment)
	// extends from the previous period end, not from now
	assert.Equal(t, prevEnd.Add(30*24*time.Hour), *d.Change.Membership.ExpiresAt)
}

func TestDecide_ChargedAfterLapseExtendsFromNow(t *testing.T) {
	now := time.Now()
	prevEnd := now.Add(-10 * 24 * time.Hour)

	sub := paidSub()
	sub.CurrentPeriodEnd = &prevEnd

	d, err := Decide(sub, profileWith(types.TrialStatusUsed), testPlan,
		Event{Kind: KindCharged, SubscriptionID: sub.ID, Payment: &PaymentInfo{PaymentID: "pay_2"}}, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*24*time.Hour), *d.Change.Membership.ExpiresAt)
}

func TestDecide_ChargedConvertsActiveTrial(t *testing.T) {
	now := time.Now()
	d, err := Decide(paidSub(), profileWith(types.TrialStatusActive), testPlan,
		Event{Kind: KindCharged, SubscriptionID: "sub_2", Payment: &PaymentInfo{PaymentID: "pay_3"}}, now)
	require.NoError(t, err)
	require.NotNil(t, d.Change.Trial)
	assert.Equal(t, types.TrialStatusUsed, d.Change.Trial.Status)
}

func TestDecide_CancelledLeavesMembershipUntouched(t *testing.T) {
	now := time.Now()
	expires := now.Add(20 * 24 * time.Hour)

	profile := profileWith(types.TrialStatusUsed)
	profile.MembershipStatus = types.MembershipStatusPro
	profile.MembershipPlan = lo.ToPtr(testPlan.ID)
	profile.MembershipExpires = &expires

	d, err := Decide(paidSub(), profile, testPlan,
		Event{Kind: KindCancelled, SubscriptionID: "sub_2"}, now)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusCancelled, d.SubStatus)
	assert.Nil(t, d.Change.Membership)
	assert.Nil(t, d.Change.Trial)
}

func TestDecide_CancelledEndsActiveTrial(t *testing.T) {
	now := time.Now()
	trialEnds := now.Add(5 * 24 * time.Hour)

	profile := profileWith(types.TrialStatusActive)
	profile.MembershipStatus = types.MembershipStatusPro
	profile.MembershipPlan = lo.ToPtr(testPlan.ID)
	profile.MembershipExpires = &trialEnds

	sub := trialSub(trialEnds)
	sub.Status = types.SubscriptionStatusAuthenticated

	d, err := Decide(sub, profile, testPlan,
		Event{Kind: KindCancelled, SubscriptionID: sub.ID}, now)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusCancelled, d.SubStatus)

	// access runs out at the recorded expiry, but the trial itself is over
	assert.Nil(t, d.Change.Membership)
	require.NotNil(t, d.Change.Trial)
	assert.Equal(t, types.TrialStatusCancelled, d.Change.Trial.Status)
}

func TestDecide_ImmediateCancelDowngrades(t *testing.T) {
	now := time.Now()
	d, err := Decide(paidSub(), profileWith(types.TrialStatusUsed), testPlan,
		Event{Kind: KindCancelled, SubscriptionID: "sub_2", Immediate: true}, now)
	require.NoError(t, err)
	require.NotNil(t, d.Change.Membership)
	assert.Equal(t, types.MembershipStatusFree, d.Change.Membership.Status)
}

func TestDecide_SuspendedAndExpiredForceDowngrade(t *testing.T) {
	now := time.Now()
	for _, kind := range []EventKind{KindSuspended, KindExpired} {
		d, err := Decide(paidSub(), profileWith(types.TrialStatusActive), testPlan,
			Event{Kind: kind, SubscriptionID: "sub_2"}, now)
		require.NoError(t, err, "kind=%s", kind)
		require.NotNil(t, d.Change.Membership, "kind=%s", kind)
		assert.Equal(t, types.MembershipStatusFree, d.Change.Membership.Status)
		require.NotNil(t, d.Change.Trial, "kind=%s", kind)
		assert.Equal(t, types.TrialStatusCancelled, d.Change.Trial.Status)
	}
}

func TestDecide_UnrecognizedKind(t *testing.T) {
	_, err := Decide(paidSub(), profileWith(types.TrialStatusUsed), testPlan,
		Event{Kind: EventKind("resumed"), SubscriptionID: "sub_2"}, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnrecognizedEvent))
}

func TestKindForStatus(t *testing.T) {
	kind, ok := KindForStatus(types.SubscriptionStatusActive)
	require.True(t, ok)
	assert.Equal(t, KindActivated, kind)

	_, ok = KindForStatus(types.SubscriptionStatusCreated)
	assert.False(t, ok)
}
