package app

import (
	"time"

	"github.com/slotbook/billing/internal/app/api/server"
	"github.com/slotbook/billing/internal/app/service/checkout"
	"github.com/slotbook/billing/internal/app/service/lifecycle"
	"github.com/slotbook/billing/internal/app/service/membership"
	"github.com/slotbook/billing/internal/app/service/order"
	"github.com/slotbook/billing/internal/app/service/payments"
	"github.com/slotbook/billing/internal/app/service/pricing"
	"github.com/slotbook/billing/internal/app/service/webhook"
	"github.com/slotbook/billing/internal/app/service/webhooklog"
	"github.com/slotbook/billing/internal/platform/db"
	"github.com/slotbook/billing/internal/platform/paypal"
	"github.com/slotbook/billing/internal/platform/razorpay"
	"github.com/slotbook/billing/pkg/config"
	"github.com/slotbook/billing/pkg/logger"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	server.Module,
	razorpay.Module,
	paypal.Module,
	pricing.Module,
	membership.Module,
	lifecycle.Module,
	webhooklog.Module,
	webhook.Module,
	order.Module,
	checkout.Module,
	payments.Module,
)
