package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/slotbook/billing/internal/app/service/lifecycle"
	"github.com/slotbook/billing/internal/app/service/pricing"
	"github.com/slotbook/billing/internal/models"
	rz "github.com/slotbook/billing/internal/platform/razorpay"
	"github.com/slotbook/billing/pkg/cache"
	"github.com/slotbook/billing/pkg/config"
	"github.com/slotbook/billing/pkg/logctx"
	"github.com/slotbook/billing/pkg/types"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderNotOwned    = errors.New("order not owned by caller")
	ErrOrderAlreadyUsed = errors.New("order already used")
	ErrPaymentMismatch  = errors.New("payment does not match order")
)

const orderCacheTTL = 5 * time.Minute

// capturedStatus is the provider's settled state; anything else is not a
// completed charge.
const capturedStatus = "captured"

type providerAPI interface {
	FetchPayment(ctx context.Context, paymentID string) (*rz.PaymentInfo, error)
	FetchOrder(ctx context.Context, orderID string) (*rz.OrderInfo, error)
}

// Service is the synchronous, client-triggered verification path. The account
// tier in use has no reliable webhook for one-time checkouts, so this path is
// authoritative and exactly as strict as a webhook-driven one.
type Service struct {
	cfg     *config.Config
	db      *gorm.DB
	log     *zap.SugaredLogger
	gateway providerAPI
	cache   *cache.TTL[string, models.Order]
	pricing *pricing.Service
	lcSvc   *lifecycle.Service
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, gw *rz.Client, pr *pricing.Service, lc *lifecycle.Service) *Service {
	return &Service{
		cfg:     cfg,
		db:      db,
		log:     log,
		gateway: gw,
		cache:   cache.NewTTL[string, models.Order](orderCacheTTL),
		pricing: pr,
		lcSvc:   lc,
	}
}

type VerifyRequest struct {
	OrderID   string `json:"order_id" binding:"required"`
	PaymentID string `json:"payment_id" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// VerifyPayment confirms a completed one-time checkout and upgrades the
// caller. Every step is a hard precondition; no write happens before all
// checks pass, and the used flag flips through a conditional UPDATE so a
// concurrent duplicate observes used=true instead of re-applying.
func (s *Service) VerifyPayment(ctx context.Context, userID string, req *VerifyRequest) (*types.MembershipSnapshot, error) {
	if !rz.VerifyPaymentSignature(req.OrderID, req.PaymentID, req.Signature, s.cfg.Razorpay.KeySecret) {
		return nil, ErrInvalidSignature
	}

	ord, err := s.getOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if ord.UserID != userID {
		return nil, ErrOrderNotOwned
	}
	if ord.Used {
		return nil, ErrOrderAlreadyUsed
	}

	plan, err := s.pricing.PriceOf(ord.PlanID)
	if err != nil {
		return nil, err
	}

	// Re-fetch from the provider; client-asserted amounts are never trusted.
	payment, err := s.gateway.FetchPayment(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	provOrder, err := s.gateway.FetchOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := validateProviderPayment(payment, provOrder, ord, plan); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("payment_mismatch",
			"order_id", ord.OrderID, "payment_id", req.PaymentID, "error", err.Error())
		return nil, err
	}

	var profile *models.Profile
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).Model(&models.Order{}).
			Where("order_id = ? AND used = ?", ord.OrderID, false).
			Update("used", true)
		if res.Error != nil {
			return fmt.Errorf("failed to consume order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost the race to a concurrent verification with the same proof.
			return ErrOrderAlreadyUsed
		}

		meta, _ := json.Marshal(payment.Raw)
		profile, err = s.lcSvc.ApplyOneTimePurchase(ctx, tx, ord, &lifecycle.PaymentInfo{
			PaymentID: payment.PaymentID,
			Amount:    payment.Amount,
			Currency:  payment.Currency,
			Status:    payment.Status,
			Method:    payment.Method,
			Meta:      meta,
		})
		return err
	})
	s.cache.Invalidate(ord.OrderID)
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("order_verified",
		"order_id", ord.OrderID, "payment_id", req.PaymentID, "user_id", userID)
	return profile.Snapshot(time.Now()), nil
}

// getOrder reads through the TTL cache. Consumption invalidates, so a cached
// unused order can never mask a consumed one past the conditional UPDATE.
func (s *Service) getOrder(ctx context.Context, orderID string) (*models.Order, error) {
	if cached, ok := s.cache.Get(orderID); ok {
		cp := cached
		return &cp, nil
	}
	var ord models.Order
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&ord).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return nil, err
	}
	s.cache.Set(orderID, ord)
	return &ord, nil
}

// validateProviderPayment compares provider-reported state against the
// pricing authority. Any mismatch is a hard failure; the client's claimed
// amount never participates.
func validateProviderPayment(p *rz.PaymentInfo, o *rz.OrderInfo, ord *models.Order, plan *types.Plan) error {
	if p == nil || o == nil {
		return fmt.Errorf("%w: missing provider state", ErrPaymentMismatch)
	}
	if p.Status != capturedStatus {
		return fmt.Errorf("%w: payment status %q", ErrPaymentMismatch, p.Status)
	}
	if p.OrderID != ord.OrderID {
		return fmt.Errorf("%w: payment belongs to order %q", ErrPaymentMismatch, p.OrderID)
	}
	if p.Amount != plan.Amount || o.Amount != plan.Amount {
		return fmt.Errorf("%w: amount payment=%d order=%d plan=%d", ErrPaymentMismatch, p.Amount, o.Amount, plan.Amount)
	}
	if p.Currency != plan.Currency || o.Currency != plan.Currency {
		return fmt.Errorf("%w: currency payment=%s order=%s plan=%s", ErrPaymentMismatch, p.Currency, o.Currency, plan.Currency)
	}
	return nil
}
