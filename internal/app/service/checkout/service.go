package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slotbook/billing/internal/app/service/lifecycle"
	"github.com/slotbook/billing/internal/app/service/membership"
	"github.com/slotbook/billing/internal/app/service/pricing"
	"github.com/slotbook/billing/internal/models"
	pp "github.com/slotbook/billing/internal/platform/paypal"
	rz "github.com/slotbook/billing/internal/platform/razorpay"
	"github.com/slotbook/billing/pkg/config"
	"github.com/slotbook/billing/pkg/logctx"
	"github.com/slotbook/billing/pkg/types"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrAlreadySubscribed    = errors.New("an active subscription already exists")
	ErrTrialUnavailable     = errors.New("trial is not available for this account")
	ErrTrialMustBeUsedFirst = errors.New("the free trial must be used before a paid subscription")
	ErrSubscriptionNotOwned = errors.New("subscription not owned by caller")
	ErrUnsupportedProvider  = errors.New("provider does not support this checkout")
)

// razorpay bills in fixed cycles; twelve covers a year of the longest plan
// and the agreement is recreated on renewal consent.
const razorpayCycleCount = 12

type razorpayGateway interface {
	Enabled() bool
	KeyID() string
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]interface{}) (*rz.OrderHandle, error)
	CreateSubscription(ctx context.Context, planID string, totalCount int, startAt *time.Time, notes map[string]interface{}) (*rz.SubscriptionHandle, error)
	FetchSubscription(ctx context.Context, subscriptionID string) (*rz.SubscriptionInfo, error)
	CancelSubscription(ctx context.Context, subscriptionID string, atCycleEnd bool) error
}

type paypalGateway interface {
	Enabled() bool
	CreateSubscription(ctx context.Context, planID string, startTime *time.Time) (*pp.SubscriptionHandle, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*pp.SubscriptionInfo, error)
	CancelSubscription(ctx context.Context, subscriptionID, reason string) error
}

// Service creates provider-side checkout artifacts and the local rows that
// track them. It never flips a membership itself; every entitlement change
// flows through the lifecycle state machine.
type Service struct {
	cfg      *config.Config
	db       *gorm.DB
	log      *zap.SugaredLogger
	razorpay razorpayGateway
	paypal   paypalGateway
	pricing  *pricing.Service
	memSvc   *membership.Service
	lcSvc    *lifecycle.Service
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger,
	rzc *rz.Client, ppc *pp.Client,
	pr *pricing.Service, mem *membership.Service, lc *lifecycle.Service) *Service {
	return &Service{
		cfg:      cfg,
		db:       db,
		log:      log,
		razorpay: rzc,
		paypal:   ppc,
		pricing:  pr,
		memSvc:   mem,
		lcSvc:    lc,
	}
}

// OrderResult is everything the client needs to open the provider's
// checkout for a one-time payment.
type OrderResult struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"key_id"`
}

// SubscriptionResult points the client at the provider's approval flow.
type SubscriptionResult struct {
	SubscriptionID string                   `json:"subscription_id"`
	Provider       types.PaymentProvider    `json:"provider"`
	Status         types.SubscriptionStatus `json:"status"`
	// ApprovalURL is where the buyer consents: the hosted page (paypal) or
	// short url (razorpay). Empty when the client drives its own widget.
	ApprovalURL string `json:"approval_url,omitempty"`
	KeyID       string `json:"key_id,omitempty"`
	IsTrial     bool   `json:"is_trial"`
}

// CreateOneTimeOrder mints a provider order for a single plan-length upgrade.
// Nothing is granted here; entitlement waits for VerifyPayment.
func (s *Service) CreateOneTimeOrder(ctx context.Context, userID, planID string) (*OrderResult, error) {
	plan, err := s.pricing.PriceOf(planID)
	if err != nil {
		return nil, err
	}
	if !s.razorpay.Enabled() {
		return nil, rz.ErrDisabled
	}

	handle, err := s.razorpay.CreateOrder(ctx, plan.Amount, plan.Currency, userID, map[string]interface{}{
		"user_id": userID,
		"plan_id": plan.ID,
	})
	if err != nil {
		return nil, err
	}

	ord := &models.Order{
		OrderID:  handle.OrderID,
		UserID:   userID,
		Provider: types.PaymentProviderRazorpay,
		PlanID:   plan.ID,
		Amount:   plan.Amount,
		Currency: plan.Currency,
	}
	if err := s.db.WithContext(ctx).Create(ord).Error; err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	logctx.FromCtx(ctx, s.log).Infow("order_created",
		"order_id", ord.OrderID, "user_id", userID, "plan_id", plan.ID)
	return &OrderResult{
		OrderID:  ord.OrderID,
		Amount:   ord.Amount,
		Currency: ord.Currency,
		KeyID:    s.razorpay.KeyID(),
	}, nil
}

// CreateSubscription mints a recurring agreement with the chosen provider.
// A trial checkout defers the first charge past the trial window, so a user
// who cancels in time is never billed.
func (s *Service) CreateSubscription(ctx context.Context, userID, planID string, provider types.PaymentProvider, withTrial bool) (*SubscriptionResult, error) {
	plan, err := s.pricing.PriceOf(planID)
	if err != nil {
		return nil, err
	}
	profile, err := s.memSvc.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if withTrial && profile.TrialStatus != types.TrialStatusAvailable {
		return nil, ErrTrialUnavailable
	}
	if !withTrial && profile.TrialStatus == types.TrialStatusAvailable {
		// An unused trial must be consumed (or cancelled) before a paid
		// agreement; eligible accounts cannot skip straight to billing.
		return nil, ErrTrialMustBeUsedFirst
	}
	if err := s.ensureNoActiveSubscription(ctx, userID); err != nil {
		return nil, err
	}

	now := time.Now()
	var trialEnds *time.Time
	var startAt *time.Time
	if withTrial {
		t := now.Add(time.Duration(s.pricing.TrialDays()) * 24 * time.Hour)
		trialEnds = &t
		startAt = &t
	}

	var (
		subID       string
		status      types.SubscriptionStatus
		approvalURL string
		keyID       string
	)
	switch provider {
	case types.PaymentProviderRazorpay:
		if !s.razorpay.Enabled() {
			return nil, rz.ErrDisabled
		}
		if plan.RazorpayPlanID == "" {
			return nil, fmt.Errorf("%w: plan %s has no razorpay mapping", ErrUnsupportedProvider, plan.ID)
		}
		handle, err := s.razorpay.CreateSubscription(ctx, plan.RazorpayPlanID, razorpayCycleCount, startAt, map[string]interface{}{
			"user_id": userID,
			"plan_id": plan.ID,
		})
		if err != nil {
			return nil, err
		}
		subID = handle.SubscriptionID
		status = types.SubscriptionStatusCreated
		approvalURL = handle.ShortURL
		keyID = s.razorpay.KeyID()
	case types.PaymentProviderPayPal:
		if !s.paypal.Enabled() {
			return nil, pp.ErrDisabled
		}
		if plan.PayPalPlanID == "" {
			return nil, fmt.Errorf("%w: plan %s has no paypal mapping", ErrUnsupportedProvider, plan.ID)
		}
		handle, err := s.paypal.CreateSubscription(ctx, plan.PayPalPlanID, startAt)
		if err != nil {
			return nil, err
		}
		subID = handle.SubscriptionID
		status = types.SubscriptionStatusApprovalPending
		approvalURL = handle.ApprovalURL
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}

	sub := &models.Subscription{
		ID:          subID,
		UserID:      userID,
		Provider:    provider,
		Kind:        types.SubscriptionKindRecurring,
		PlanID:      plan.ID,
		PlanName:    plan.Name,
		Status:      status,
		IsTrial:     withTrial,
		TrialEndsAt: trialEnds,
		Amount:      plan.Amount,
		Currency:    plan.Currency,
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}

	logctx.FromCtx(ctx, s.log).Infow("subscription_created",
		"subscription_id", subID, "user_id", userID, "plan_id", plan.ID,
		"provider", provider, "is_trial", withTrial)
	return &SubscriptionResult{
		SubscriptionID: subID,
		Provider:       provider,
		Status:         status,
		ApprovalURL:    approvalURL,
		KeyID:          keyID,
		IsTrial:        withTrial,
	}, nil
}

// Cancel stops future billing. A trial is cut at the provider immediately and
// the local state soft-cancels, keeping access until the trial window ends. A
// paid agreement is cancelled at the provider only; the local downgrade waits
// for the provider's own cancellation event so access runs to the period end.
// A one-time purchase has no billing cycle to honor and downgrades now.
func (s *Service) Cancel(ctx context.Context, userID, subscriptionID string) (*lifecycle.Outcome, error) {
	sub, err := s.ownedSubscription(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Kind == types.SubscriptionKindOneTime {
		return s.lcSvc.CancelRequested(ctx, sub, true)
	}
	if sub.Status.Terminal() {
		return &lifecycle.Outcome{Applied: false, Note: "already terminal"}, nil
	}

	now := time.Now()
	inTrial := sub.IsTrial && sub.TrialEndsAt != nil && sub.TrialEndsAt.After(now)

	switch sub.Provider {
	case types.PaymentProviderRazorpay:
		// Trials cancel now so the deferred first charge never fires; paid
		// agreements run out the cycle that was already paid for.
		if err := s.razorpay.CancelSubscription(ctx, sub.ID, !inTrial); err != nil {
			return nil, err
		}
	case types.PaymentProviderPayPal:
		if err := s.paypal.CancelSubscription(ctx, sub.ID, "user requested cancellation"); err != nil {
			return nil, err
		}
	case types.PaymentProviderInner:
		// Nothing provider-side to stop.
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, sub.Provider)
	}

	if inTrial {
		return s.lcSvc.CancelRequested(ctx, sub, false)
	}

	logctx.FromCtx(ctx, s.log).Infow("cancellation_requested",
		"subscription_id", sub.ID, "user_id", userID)
	return &lifecycle.Outcome{Applied: false, Note: "awaiting provider confirmation"}, nil
}

// GetStatus returns the subscription after reconciling it against the
// provider. Polling covers the gap when a webhook is delayed or lost: the
// client lands back from the approval flow and asks directly.
func (s *Service) GetStatus(ctx context.Context, userID, subscriptionID string) (*models.Subscription, *models.Profile, error) {
	sub, err := s.ownedSubscription(ctx, userID, subscriptionID)
	if err != nil {
		return nil, nil, err
	}

	reported, periodEnd := s.fetchProviderStatus(ctx, sub)
	if reported != "" && reported != sub.Status {
		if kind, ok := lifecycle.KindForStatus(reported); ok {
			outcome, err := s.lcSvc.Apply(ctx, lifecycle.Event{
				Kind:           kind,
				Provider:       sub.Provider,
				SubscriptionID: sub.ID,
				PeriodEnd:      periodEnd,
				Reason:         types.MembershipChangeReasonPoll,
			})
			if err != nil {
				return nil, nil, err
			}
			sub, err = s.lcSvc.GetSubscription(ctx, sub.ID)
			if err != nil {
				return nil, nil, err
			}
			return sub, outcome.Profile, nil
		}
	}

	profile, err := s.memSvc.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return sub, profile, nil
}

// fetchProviderStatus asks the provider for current truth. Failures degrade
// to the stored state rather than failing the read.
func (s *Service) fetchProviderStatus(ctx context.Context, sub *models.Subscription) (types.SubscriptionStatus, *time.Time) {
	switch sub.Provider {
	case types.PaymentProviderRazorpay:
		info, err := s.razorpay.FetchSubscription(ctx, sub.ID)
		if err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("provider_fetch_failed",
				"subscription_id", sub.ID, "error", err.Error())
			return "", nil
		}
		return mapRazorpayStatus(info.Status), info.CurrentEnd
	case types.PaymentProviderPayPal:
		info, err := s.paypal.GetSubscription(ctx, sub.ID)
		if err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("provider_fetch_failed",
				"subscription_id", sub.ID, "error", err.Error())
			return "", nil
		}
		return mapPayPalStatus(info.Status), info.NextBillingAt
	default:
		return "", nil
	}
}

func (s *Service) ownedSubscription(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	sub, err := s.lcSvc.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, ErrSubscriptionNotOwned
	}
	return sub, nil
}

func (s *Service) ensureNoActiveSubscription(ctx context.Context, userID string) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ? AND kind = ? AND status IN ?", userID, types.SubscriptionKindRecurring,
			[]types.SubscriptionStatus{types.SubscriptionStatusAuthenticated, types.SubscriptionStatusActive}).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrAlreadySubscribed
	}
	return nil
}
