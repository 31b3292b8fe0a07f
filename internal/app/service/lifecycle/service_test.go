package lifecycle

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/slotbook/billing/internal/app/service/membership"
	"github.com/slotbook/billing/internal/app/service/pricing"
	"github.com/slotbook/billing/internal/models"
	"github.com/slotbook/billing/pkg/config"
	"github.com/slotbook/billing/pkg/types"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

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

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	cfg := &config.Config{Plans: []*types.Plan{testPlan}, TrialDays: 7}
	log := zap.NewNop().Sugar()
	mem := membership.NewService(db, log)
	return NewService(db, log, pricing.NewService(cfg), mem)
}

func TestApply_RedeliveredChargeNotAppliedTwice(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	sub := &models.Subscription{
		ID:       "sub_charge_1",
		UserID:   "u-charge",
		Provider: types.PaymentProviderRazorpay,
		Kind:     types.SubscriptionKindRecurring,
		PlanID:   testPlan.ID,
		Status:   types.SubscriptionStatusAuthenticated,
		Amount:   testPlan.Amount,
		Currency: testPlan.Currency,
	}
	require.NoError(t, db.Create(sub).Error)

	ev := Event{
		Kind:           KindCharged,
		Provider:       types.PaymentProviderRazorpay,
		SubscriptionID: sub.ID,
		Payment: &PaymentInfo{
			PaymentID: "pay_charge_1",
			Amount:    testPlan.Amount,
			Currency:  testPlan.Currency,
			Status:    "captured",
			Method:    "card",
		},
	}

	first, err := svc.Apply(ctx, ev)
	require.NoError(t, err)
	require.True(t, first.Applied)
	require.NotNil(t, first.Profile.MembershipExpires)
	firstExpiry := *first.Profile.MembershipExpires

	// Same delivery again: acknowledged, but the period must not move.
	second, err := svc.Apply(ctx, ev)
	require.NoError(t, err)
	assert.False(t, second.Applied)

	var profile models.Profile
	require.NoError(t, db.Where("user_id = ?", sub.UserID).First(&profile).Error)
	require.NotNil(t, profile.MembershipExpires)
	assert.WithinDuration(t, firstExpiry, *profile.MembershipExpires, time.Second)

	var receipts int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&receipts).Error)
	assert.Equal(t, int64(1), receipts)
}

func TestApply_DistinctChargesExtend(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	sub := &models.Subscription{
		ID:       "sub_charge_2",
		UserID:   "u-charge-2",
		Provider: types.PaymentProviderRazorpay,
		Kind:     types.SubscriptionKindRecurring,
		PlanID:   testPlan.ID,
		Status:   types.SubscriptionStatusActive,
		Amount:   testPlan.Amount,
		Currency: testPlan.Currency,
	}
	require.NoError(t, db.Create(sub).Error)

	ev := Event{
		Kind:           KindCharged,
		Provider:       types.PaymentProviderRazorpay,
		SubscriptionID: sub.ID,
		Payment:        &PaymentInfo{PaymentID: "pay_cycle_1", Amount: testPlan.Amount, Currency: testPlan.Currency, Status: "captured"},
	}
	first, err := svc.Apply(ctx, ev)
	require.NoError(t, err)
	require.True(t, first.Applied)
	firstExpiry := *first.Profile.MembershipExpires

	ev.Payment = &PaymentInfo{PaymentID: "pay_cycle_2", Amount: testPlan.Amount, Currency: testPlan.Currency, Status: "captured"}
	second, err := svc.Apply(ctx, ev)
	require.NoError(t, err)
	require.True(t, second.Applied)
	assert.True(t, second.Profile.MembershipExpires.After(firstExpiry))

	var receipts int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&receipts).Error)
	assert.Equal(t, int64(2), receipts)
}
