package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/slotbook/billing/internal/app/service/webhook"
	"github.com/slotbook/billing/pkg/logctx"
	"github.com/slotbook/billing/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// webhookMaxBodyBytes bounds provider payloads; real events are a few KB.
const webhookMaxBodyBytes = 1 << 20

// @Summary      Razorpay Webhook
// @Description  Receives razorpay subscription notifications. The X-Razorpay-Signature header is the HMAC over the raw body.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.APIResponse[webhook.Result]
// @Failure      401  {object}  response.APIResponse[any]
// @Router       /api/v1/webhooks/razorpay [post]
func ApiRazorpayWebhook(svc *webhook.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookMaxBodyBytes))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "unreadable body"))
			return
		}

		res, err := svc.HandleRazorpay(c.Request.Context(), body, c.GetHeader("X-Razorpay-Signature"))
		if err != nil {
			if errors.Is(err, webhook.ErrVerificationFailed) {
				c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
				return
			}
			logctx.FromGin(c, log).Errorw("webhook_razorpay_error", "error", err.Error())
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      PayPal Webhook
// @Description  Receives paypal billing notifications, verified through the provider's verification API.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.APIResponse[webhook.Result]
// @Failure      401  {object}  response.APIResponse[any]
// @Failure      502  {object}  response.APIResponse[any]
// @Router       /api/v1/webhooks/paypal [post]
func ApiPayPalWebhook(svc *webhook.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookMaxBodyBytes))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "unreadable body"))
			return
		}
		// Verification replays the body through the provider API.
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		res, err := svc.HandlePayPal(c.Request.Context(), c.Request, body)
		if err != nil {
			if errors.Is(err, webhook.ErrVerificationFailed) {
				c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
				return
			}
			if errors.Is(err, webhook.ErrVerifierUnavailable) {
				// Ask the provider to redeliver once the outage clears.
				c.JSON(http.StatusBadGateway, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
				return
			}
			logctx.FromGin(c, log).Errorw("webhook_paypal_error", "error", err.Error())
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterWebhookRoutes(r gin.IRouter, svc *webhook.Service, log *zap.SugaredLogger) {
	r.POST("/razorpay", ApiRazorpayWebhook(svc, log))
	r.POST("/paypal", ApiPayPalWebhook(svc, log))
}
