package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/slotbook/billing/internal/app/service/lifecycle"
	"github.com/slotbook/billing/internal/app/service/webhooklog"
	"github.com/slotbook/billing/internal/models"
	pp "github.com/slotbook/billing/internal/platform/paypal"
	rz "github.com/slotbook/billing/internal/platform/razorpay"
	"github.com/slotbook/billing/pkg/config"
	"github.com/slotbook/billing/pkg/logctx"
	"github.com/slotbook/billing/pkg/types"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ErrVerificationFailed is the only webhook error that maps to 401; every
// later failure acknowledges with 200 so the provider does not retry a
// request we already logged.
var ErrVerificationFailed = errors.New("webhook verification failed")

// ErrVerifierUnavailable means the verdict could not be obtained at all.
// It maps to 502 so the provider redelivers once the outage clears; a 401
// here would discard a possibly genuine event.
var ErrVerifierUnavailable = errors.New("webhook verifier unavailable")

type paypalVerifier interface {
	VerifyWebhook(ctx context.Context, req *http.Request) (bool, error)
}

// Service verifies, parses and dispatches inbound provider notifications.
// Verification happens strictly before any parse or state mutation.
type Service struct {
	cfg    *config.Config
	log    *zap.SugaredLogger
	paypal paypalVerifier
	lcSvc  *lifecycle.Service
	whLog  *webhooklog.Service
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, ppc *pp.Client, lc *lifecycle.Service, wl *webhooklog.Service) *Service {
	return &Service{cfg: cfg, log: log, paypal: ppc, lcSvc: lc, whLog: wl}
}

// Result is what the webhook endpoint acknowledges with.
type Result struct {
	EventType string `json:"event_type"`
	Applied   bool   `json:"applied"`
	Note      string `json:"note,omitempty"`
}

// HandleRazorpay verifies the HMAC over the raw body and dispatches.
func (s *Service) HandleRazorpay(ctx context.Context, body []byte, signature string) (*Result, error) {
	verified := rz.VerifyWebhookSignature(body, signature, s.cfg.Razorpay.WebhookSecret)
	if !verified && !(s.cfg.Razorpay.AllowUnsigned && !s.cfg.IsProd()) {
		logctx.FromCtx(ctx, s.log).Warnw("webhook_rejected", "provider", types.PaymentProviderRazorpay)
		return nil, ErrVerificationFailed
	}

	ev, eventType, ok, err := parseRazorpayEvent(body)
	return s.dispatch(ctx, types.PaymentProviderRazorpay, body, ev, eventType, ok, err)
}

// HandlePayPal verifies through the provider's verification API and
// dispatches. req must still carry the body; callers restore it after
// reading.
func (s *Service) HandlePayPal(ctx context.Context, req *http.Request, body []byte) (*Result, error) {
	verified, err := s.paypal.VerifyWebhook(ctx, req)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("webhook_verify_error",
			"provider", types.PaymentProviderPayPal, "error", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	if !verified {
		logctx.FromCtx(ctx, s.log).Warnw("webhook_rejected", "provider", types.PaymentProviderPayPal)
		return nil, ErrVerificationFailed
	}

	ev, eventType, ok, err := parsePayPalEvent(body)
	return s.dispatch(ctx, types.PaymentProviderPayPal, body, ev, eventType, ok, err)
}

// dispatch runs a parsed event through the state machine and records the
// audit row. Parse failures and unrecognized events acknowledge cleanly;
// only verification rejects.
func (s *Service) dispatch(ctx context.Context, provider types.PaymentProvider, body []byte,
	ev lifecycle.Event, eventType string, recognized bool, parseErr error) (*Result, error) {
	row := &models.WebhookLog{
		Provider:   string(provider),
		TraceID:    logctx.TraceIDFromCtx(ctx),
		EventType:  eventType,
		ResourceID: ev.SubscriptionID,
		EventTime:  time.Now(),
		Data:       datatypes.JSON(body),
		Status:     models.WebhookLogStatusReceived,
	}

	if parseErr != nil {
		row.Status = models.WebhookLogStatusHandleFailed
		s.finishLog(ctx, row, &Result{EventType: eventType, Note: parseErr.Error()})
		logctx.FromCtx(ctx, s.log).Errorw("webhook_parse_failed",
			"provider", provider, "event_type", eventType, "error", parseErr.Error())
		return &Result{EventType: eventType, Applied: false, Note: "unparseable payload"}, nil
	}
	if !recognized {
		row.Status = models.WebhookLogStatusIgnored
		res := &Result{EventType: eventType, Applied: false, Note: "event type not handled"}
		s.finishLog(ctx, row, res)
		return res, nil
	}

	outcome, err := s.lcSvc.Apply(ctx, ev)
	if err != nil {
		if errors.Is(err, lifecycle.ErrSubscriptionNotFound) {
			// A subscription we never created: someone else's agreement or
			// out-of-order delivery. Acknowledged so the provider stops.
			row.Status = models.WebhookLogStatusIgnored
			res := &Result{EventType: eventType, Applied: false, Note: "unknown subscription"}
			s.finishLog(ctx, row, res)
			return res, nil
		}
		row.Status = models.WebhookLogStatusHandleFailed
		s.finishLog(ctx, row, &Result{EventType: eventType, Note: err.Error()})
		return nil, err
	}

	res := &Result{EventType: eventType, Applied: outcome.Applied, Note: outcome.Note}
	if outcome.Applied {
		row.Status = models.WebhookLogStatusHandled
	} else {
		row.Status = models.WebhookLogStatusIgnored
	}
	if outcome.Profile != nil {
		uid := outcome.Profile.UserID
		row.UserID = &uid
	}
	s.finishLog(ctx, row, res)

	logctx.FromCtx(ctx, s.log).Infow("webhook_handled",
		"provider", provider, "event_type", eventType,
		"subscription_id", ev.SubscriptionID, "applied", outcome.Applied)
	return res, nil
}

func (s *Service) finishLog(ctx context.Context, row *models.WebhookLog, res *Result) {
	if res != nil {
		if b, err := json.Marshal(res); err == nil {
			j := datatypes.JSON(b)
			row.Result = &j
		}
	}
	s.whLog.Save(ctx, row)
}
