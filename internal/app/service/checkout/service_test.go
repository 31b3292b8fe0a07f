package checkout

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/slotbook/billing/internal/app/service/lifecycle"
	"github.com/slotbook/billing/internal/app/service/membership"
	"github.com/slotbook/billing/internal/app/service/pricing"
	"github.com/slotbook/billing/internal/models"
	rz "github.com/slotbook/billing/internal/platform/razorpay"
	"github.com/slotbook/billing/pkg/config"
	"github.com/slotbook/billing/pkg/tool"
	"github.com/slotbook/billing/pkg/types"

	"github.com/glebarez/sqlite"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var checkoutPlan = &types.Plan{
	ID:             "pro_monthly",
	Name:           "Pro Monthly",
	Amount:         49900,
	Currency:       "INR",
	DurationDays:   30,
	RazorpayPlanID: "plan_rzp_monthly",
}

type stubRazorpay struct {
	handle *rz.SubscriptionHandle
	// cancelled maps subscription id -> atCycleEnd as requested.
	cancelled map[string]bool
}

func (s *stubRazorpay) Enabled() bool { return true }
func (s *stubRazorpay) KeyID() string { return "rzp_test_key" }

func (s *stubRazorpay) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]interface{}) (*rz.OrderHandle, error) {
	return &rz.OrderHandle{OrderID: "order_stub", Amount: amount, Currency: currency}, nil
}

func (s *stubRazorpay) CreateSubscription(ctx context.Context, planID string, totalCount int, startAt *time.Time, notes map[string]interface{}) (*rz.SubscriptionHandle, error) {
	if s.handle == nil {
		return nil, errors.New("no handle configured")
	}
	return s.handle, nil
}

func (s *stubRazorpay) FetchSubscription(ctx context.Context, subscriptionID string) (*rz.SubscriptionInfo, error) {
	return nil, errors.New("unreachable in this test")
}

func (s *stubRazorpay) CancelSubscription(ctx context.Context, subscriptionID string, atCycleEnd bool) error {
	if s.cancelled == nil {
		s.cancelled = map[string]bool{}
	}
	s.cancelled[subscriptionID] = atCycleEnd
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "billing.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Profile{}, &models.Subscription{}, &models.Order{},
		&models.Payment{}, &models.MembershipLog{},
	))
	return db
}

func newCheckout(t *testing.T, db *gorm.DB, gw razorpayGateway) *Service {
	t.Helper()
	cfg := &config.Config{Plans: []*types.Plan{checkoutPlan}, TrialDays: 7}
	log := zap.NewNop().Sugar()
	pr := pricing.NewService(cfg)
	mem := membership.NewService(db, log)
	return &Service{
		cfg:      cfg,
		db:       db,
		log:      log,
		razorpay: gw,
		pricing:  pr,
		memSvc:   mem,
		lcSvc:    lifecycle.NewService(db, log, pr, mem),
	}
}

func seedProfile(t *testing.T, db *gorm.DB, userID string, trial types.TrialStatus) *models.Profile {
	t.Helper()
	p := &models.Profile{
		ID:               tool.GenerateUUIDV7(),
		UserID:           userID,
		MembershipStatus: types.MembershipStatusFree,
		TrialStatus:      trial,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func TestCreateSubscription_EligibleAccountMustTakeTrial(t *testing.T) {
	db := openTestDB(t)
	svc := newCheckout(t, db, &stubRazorpay{})

	// Fresh account: the trial is still available, so a direct paid
	// agreement is refused.
	_, err := svc.CreateSubscription(context.Background(), "u-fresh", checkoutPlan.ID,
		types.PaymentProviderRazorpay, false)
	require.ErrorIs(t, err, ErrTrialMustBeUsedFirst)

	var count int64
	require.NoError(t, db.Model(&models.Subscription{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateSubscription_TrialOnlyWhenAvailable(t *testing.T) {
	db := openTestDB(t)
	svc := newCheckout(t, db, &stubRazorpay{})

	seedProfile(t, db, "u-used", types.TrialStatusUsed)
	_, err := svc.CreateSubscription(context.Background(), "u-used", checkoutPlan.ID,
		types.PaymentProviderRazorpay, true)
	require.ErrorIs(t, err, ErrTrialUnavailable)
}

func TestCreateSubscription_TrialCheckoutDefersFirstCharge(t *testing.T) {
	db := openTestDB(t)
	svc := newCheckout(t, db, &stubRazorpay{
		handle: &rz.SubscriptionHandle{SubscriptionID: "sub_trial_1", Status: "created", ShortURL: "https://rzp.io/abc"},
	})

	res, err := svc.CreateSubscription(context.Background(), "u-fresh", checkoutPlan.ID,
		types.PaymentProviderRazorpay, true)
	require.NoError(t, err)
	assert.True(t, res.IsTrial)
	assert.Equal(t, types.SubscriptionStatusCreated, res.Status)

	var sub models.Subscription
	require.NoError(t, db.Where("id = ?", "sub_trial_1").First(&sub).Error)
	assert.True(t, sub.IsTrial)
	require.NotNil(t, sub.TrialEndsAt)
	assert.True(t, sub.TrialEndsAt.After(time.Now()))
}

func TestCancel_OneTimeDowngradesImmediately(t *testing.T) {
	db := openTestDB(t)
	svc := newCheckout(t, db, &stubRazorpay{})
	ctx := context.Background()

	expires := time.Now().Add(20 * 24 * time.Hour)
	p := seedProfile(t, db, "u-onetime", types.TrialStatusUsed)
	p.MembershipStatus = types.MembershipStatusPro
	p.MembershipPlan = lo.ToPtr(checkoutPlan.ID)
	p.MembershipExpires = &expires
	require.NoError(t, db.Save(p).Error)

	now := time.Now()
	sub := &models.Subscription{
		ID:                 "order_OT1",
		UserID:             "u-onetime",
		Provider:           types.PaymentProviderRazorpay,
		Kind:               types.SubscriptionKindOneTime,
		PlanID:             checkoutPlan.ID,
		Status:             types.SubscriptionStatusActive,
		Amount:             checkoutPlan.Amount,
		Currency:           checkoutPlan.Currency,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &expires,
	}
	require.NoError(t, db.Create(sub).Error)

	outcome, err := svc.Cancel(ctx, "u-onetime", sub.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Applied)

	var profile models.Profile
	require.NoError(t, db.Where("user_id = ?", "u-onetime").First(&profile).Error)
	assert.Equal(t, types.MembershipStatusFree, profile.MembershipStatus)
	assert.Nil(t, profile.MembershipExpires)

	var stored models.Subscription
	require.NoError(t, db.Where("id = ?", sub.ID).First(&stored).Error)
	assert.Equal(t, types.SubscriptionStatusCancelled, stored.Status)
}

func TestCancel_TrialSoftCancelsKeepingAccess(t *testing.T) {
	db := openTestDB(t)
	gw := &stubRazorpay{}
	svc := newCheckout(t, db, gw)
	ctx := context.Background()

	trialEnds := time.Now().Add(5 * 24 * time.Hour)
	p := seedProfile(t, db, "u-trial", types.TrialStatusActive)
	p.MembershipStatus = types.MembershipStatusPro
	p.MembershipPlan = lo.ToPtr(checkoutPlan.ID)
	p.MembershipExpires = &trialEnds
	require.NoError(t, db.Save(p).Error)

	sub := &models.Subscription{
		ID:          "sub_trial_c",
		UserID:      "u-trial",
		Provider:    types.PaymentProviderRazorpay,
		Kind:        types.SubscriptionKindRecurring,
		PlanID:      checkoutPlan.ID,
		Status:      types.SubscriptionStatusAuthenticated,
		IsTrial:     true,
		TrialEndsAt: &trialEnds,
		Amount:      checkoutPlan.Amount,
		Currency:    checkoutPlan.Currency,
	}
	require.NoError(t, db.Create(sub).Error)

	outcome, err := svc.Cancel(ctx, "u-trial", sub.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Applied)

	// provider-side cancellation must be immediate so the deferred first
	// charge never fires
	atCycleEnd, ok := gw.cancelled[sub.ID]
	require.True(t, ok)
	assert.False(t, atCycleEnd)

	var profile models.Profile
	require.NoError(t, db.Where("user_id = ?", "u-trial").First(&profile).Error)
	assert.Equal(t, types.TrialStatusCancelled, profile.TrialStatus)
	// access holds until the recorded expiry
	assert.Equal(t, types.MembershipStatusPro, profile.MembershipStatus)
	require.NotNil(t, profile.MembershipExpires)
	assert.WithinDuration(t, trialEnds, *profile.MembershipExpires, time.Second)
}
