package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/slotbook/billing/docs"
	"github.com/slotbook/billing/internal/app/api/handlers"
	mw "github.com/slotbook/billing/internal/app/api/middleware"
	"github.com/slotbook/billing/internal/app/service/checkout"
	"github.com/slotbook/billing/internal/app/service/lifecycle"
	"github.com/slotbook/billing/internal/app/service/membership"
	ordersvc "github.com/slotbook/billing/internal/app/service/order"
	"github.com/slotbook/billing/internal/app/service/payments"
	"github.com/slotbook/billing/internal/app/service/pricing"
	"github.com/slotbook/billing/internal/app/service/webhook"
	cfgpkg "github.com/slotbook/billing/pkg/config"
	metrics "github.com/slotbook/billing/pkg/metrics"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type routeDeps struct {
	fx.In

	Log      *zap.SugaredLogger
	Cfg      *cfgpkg.Config
	Checkout *checkout.Service
	Order    *ordersvc.Service
	Pricing  *pricing.Service
	Member   *membership.Service
	Webhook  *webhook.Service
	Payments *payments.Service
	Life     *lifecycle.Service
}

func registerRoutes(r *gin.Engine, deps routeDeps) {
	log := deps.Log
	cfg := deps.Cfg

	// Prometheus metrics
	if cfg != nil && cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: log,
		})
		p.SetListenAddress(cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Provider webhooks authenticate by signature, not bearer token.
	webhooks := r.Group("/api/v1/webhooks")
	webhooks.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterWebhookRoutes(webhooks, deps.Webhook, log)

	// User-facing billing APIs
	billing := r.Group("/api/v1/billing")
	billing.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(), mw.AuthMiddleware(cfg))
	handlers.RegisterBillingRoutes(billing, deps.Checkout, deps.Order, deps.Pricing, deps.Member)

	// Back-office APIs
	admin := r.Group("/api/v1/admin")
	admin.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(), mw.AdminMiddleware(cfg))
	handlers.RegisterAdminRoutes(admin, deps.Payments, deps.Life)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
