package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slotbook/billing/internal/app/service/membership"
	"github.com/slotbook/billing/internal/app/service/pricing"
	"github.com/slotbook/billing/internal/models"
	"github.com/slotbook/billing/pkg/logctx"
	"github.com/slotbook/billing/pkg/tool"
	"github.com/slotbook/billing/pkg/types"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

// errDuplicatePayment aborts a transaction whose charge was already applied.
var errDuplicatePayment = errors.New("payment already recorded")

// Service drives the state machine against storage. It is the only component
// that writes Subscription.Status and the only caller of the membership
// projector; nothing else may touch either.
type Service struct {
	db      *gorm.DB
	log     *zap.SugaredLogger
	pricing *pricing.Service
	memSvc  *membership.Service
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, pr *pricing.Service, mem *membership.Service) *Service {
	return &Service{db: db, log: log, pricing: pr, memSvc: mem}
}

// Outcome reports what a verified event did.
type Outcome struct {
	Applied bool
	Note    string
	Profile *models.Profile
}

func (s *Service) GetSubscription(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).Where("id = ?", subscriptionID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, subscriptionID)
		}
		return nil, err
	}
	return &sub, nil
}

// Apply runs one verified provider event through the state machine and
// persists the result. Safe under at-least-once delivery: decisions are
// recomputed from current provider-reported state, and payment receipts
// dedupe on the provider payment id.
func (s *Service) Apply(ctx context.Context, ev Event) (*Outcome, error) {
	sub, err := s.GetSubscription(ctx, ev.SubscriptionID)
	if err != nil {
		return nil, err
	}

	plan, err := s.pricing.PriceOf(sub.PlanID)
	if err != nil {
		return nil, fmt.Errorf("subscription %s: %w", sub.ID, err)
	}

	profile, err := s.memSvc.GetOrCreateProfile(ctx, sub.UserID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	decision, err := Decide(sub, profile, plan, ev, now)
	if err != nil {
		return nil, err
	}

	if decision.Ignored {
		logctx.FromCtx(ctx, s.log).Infow("event_not_applied",
			"subscription_id", sub.ID, "kind", ev.Kind, "note", decision.Note)
		return &Outcome{Applied: false, Note: decision.Note, Profile: profile}, nil
	}

	var updated *models.Profile
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if decision.RecordPayment && ev.Payment != nil {
			// The receipt insert doubles as the delivery dedupe: a payment id
			// seen before means this exact charge was already applied, and
			// re-applying would extend the membership a second time.
			inserted, err := s.recordPayment(ctx, tx, sub, plan, ev.Payment)
			if err != nil {
				return err
			}
			if !inserted {
				return errDuplicatePayment
			}
		}

		sub.Status = decision.SubStatus
		if ev.PeriodStart != nil {
			sub.CurrentPeriodStart = ev.PeriodStart
		}
		if m := decision.Change.Membership; m != nil && m.ExpiresAt != nil {
			sub.CurrentPeriodEnd = m.ExpiresAt
		} else if ev.PeriodEnd != nil {
			sub.CurrentPeriodEnd = ev.PeriodEnd
		}
		if err := tx.WithContext(ctx).Save(sub).Error; err != nil {
			return fmt.Errorf("failed to save subscription: %w", err)
		}

		reason := ev.Reason
		if reason == "" {
			reason = types.MembershipChangeReasonWebhook
		}
		updated, err = s.memSvc.ApplyChange(ctx, tx, profile, decision.Change, reason)
		return err
	})
	if errors.Is(err, errDuplicatePayment) {
		logctx.FromCtx(ctx, s.log).Infow("event_not_applied",
			"subscription_id", sub.ID, "kind", ev.Kind, "payment_id", ev.Payment.PaymentID,
			"note", "payment already recorded")
		return &Outcome{Applied: false, Note: "payment already recorded", Profile: profile}, nil
	}
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("lifecycle_applied",
		"subscription_id", sub.ID, "kind", ev.Kind, "status", sub.Status)
	return &Outcome{Applied: true, Note: decision.Note, Profile: updated}, nil
}

// recordPayment appends an immutable receipt. The (provider, payment_id)
// unique index plus DoNothing keeps redelivered charges single-counted;
// inserted=false reports that the payment id was already on file.
func (s *Service) recordPayment(ctx context.Context, tx *gorm.DB, sub *models.Subscription, plan *types.Plan, p *PaymentInfo) (bool, error) {
	receipt := &models.Payment{
		ID:            tool.GenerateUUIDV7(),
		UserID:        sub.UserID,
		Provider:      sub.Provider,
		PaymentID:     p.PaymentID,
		PlanID:        plan.ID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        p.Status,
		PaymentMethod: p.Method,
	}
	if len(p.Meta) > 0 {
		receipt.Meta = datatypes.JSON(p.Meta)
	}
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(receipt)
	if res.Error != nil {
		return false, fmt.Errorf("failed to record payment: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ApplyOneTimePurchase finalizes a consumed order inside the verifier's
// transaction: a pseudo-subscription row, the receipt, and the upgrade.
func (s *Service) ApplyOneTimePurchase(ctx context.Context, tx *gorm.DB, order *models.Order, pay *PaymentInfo) (*models.Profile, error) {
	plan, err := s.pricing.PriceOf(order.PlanID)
	if err != nil {
		return nil, err
	}
	profile, err := s.memSvc.GetOrCreateProfile(ctx, order.UserID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expires := now.Add(time.Duration(plan.DurationDays) * 24 * time.Hour)

	sub := &models.Subscription{
		ID:                 order.OrderID,
		UserID:             order.UserID,
		Provider:           order.Provider,
		Kind:               types.SubscriptionKindOneTime,
		PlanID:             plan.ID,
		PlanName:           plan.Name,
		Status:             types.SubscriptionStatusActive,
		Amount:             order.Amount,
		Currency:           order.Currency,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &expires,
	}
	if err := tx.WithContext(ctx).Save(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to save pseudo-subscription: %w", err)
	}
	inserted, err := s.recordPayment(ctx, tx, sub, plan, pay)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// The order was unconsumed but the payment id is on file: the same
		// charge was presented against a different order. Roll back.
		return nil, fmt.Errorf("payment %s already recorded", pay.PaymentID)
	}

	ch := membership.Change{
		Membership: &membership.MembershipChange{
			Status:    types.MembershipStatusPro,
			PlanID:    lo.ToPtr(plan.ID),
			ExpiresAt: &expires,
		},
	}
	return s.memSvc.ApplyChange(ctx, tx, profile, ch, types.MembershipChangeReasonOrderVerify)
}

// CancelRequested applies the user-side of a cancellation that does not wait
// for a provider webhook: trial soft-cancel (access kept until trial end) or
// the immediate downgrade of a one-time pseudo-subscription.
func (s *Service) CancelRequested(ctx context.Context, sub *models.Subscription, immediate bool) (*Outcome, error) {
	return s.Apply(ctx, Event{
		Kind:           KindCancelled,
		Provider:       sub.Provider,
		SubscriptionID: sub.ID,
		Immediate:      immediate,
		Reason:         types.MembershipChangeReasonCancel,
	})
}

// GrantComplimentary upgrades a user for one plan duration with no external
// charge behind it (support gifts, compensation). Routed through the same
// projector path as paid upgrades so the audit trail stays uniform.
func (s *Service) GrantComplimentary(ctx context.Context, userID, planID, operatorID string) (*models.Profile, error) {
	plan, err := s.pricing.PriceOf(planID)
	if err != nil {
		return nil, err
	}
	profile, err := s.memSvc.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	base := now
	if profile.MembershipExpires != nil && profile.MembershipExpires.After(base) {
		base = *profile.MembershipExpires
	}
	expires := base.Add(time.Duration(plan.DurationDays) * 24 * time.Hour)

	var updated *models.Profile
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := &models.Subscription{
			ID:                 tool.GenerateUUIDV7(),
			UserID:             userID,
			Provider:           types.PaymentProviderInner,
			Kind:               types.SubscriptionKindOneTime,
			PlanID:             plan.ID,
			PlanName:           plan.Name,
			Status:             types.SubscriptionStatusActive,
			Currency:           plan.Currency,
			CurrentPeriodStart: &now,
			CurrentPeriodEnd:   &expires,
			Extra:              datatypes.JSON([]byte(fmt.Sprintf(`{"operator_id":%q}`, operatorID))),
		}
		if err := tx.WithContext(ctx).Save(sub).Error; err != nil {
			return fmt.Errorf("failed to save gift subscription: %w", err)
		}

		ch := membership.Change{
			Membership: &membership.MembershipChange{
				Status:    types.MembershipStatusPro,
				PlanID:    lo.ToPtr(plan.ID),
				ExpiresAt: &expires,
			},
		}
		updated, err = s.memSvc.ApplyChange(ctx, tx, profile, ch, types.MembershipChangeReasonGift)
		return err
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("complimentary_granted",
		"user_id", userID, "plan_id", planID, "operator_id", operatorID)
	return updated, nil
}
