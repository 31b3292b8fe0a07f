package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/slotbook/billing/internal/app/service/checkout"
	"github.com/slotbook/billing/internal/app/service/lifecycle"
	"github.com/slotbook/billing/internal/app/service/membership"
	ordersvc "github.com/slotbook/billing/internal/app/service/order"
	"github.com/slotbook/billing/internal/app/service/pricing"
	"github.com/slotbook/billing/internal/models"
	"github.com/slotbook/billing/pkg/response"
	"github.com/slotbook/billing/pkg/types"

	"github.com/gin-gonic/gin"
)

type createOrderRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

type createSubscriptionRequest struct {
	PlanID    string                `json:"plan_id" binding:"required"`
	Provider  types.PaymentProvider `json:"provider" binding:"required"`
	WithTrial bool                  `json:"with_trial"`
}

type subscriptionStatusResponse struct {
	Subscription *models.Subscription      `json:"subscription"`
	Membership   *types.MembershipSnapshot `json:"membership"`
}

// @Summary      List Plans
// @Description  Returns the purchasable plan catalog with server-side prices.
// @Tags         Billing
// @Produce      json
// @Success      200  {object}  response.APIResponse[[]types.Plan]
// @Router       /api/v1/billing/plans [get]
func ApiGetPlans(pr *pricing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, response.OKT(pr.Catalog()))
	}
}

// @Summary      Get Membership
// @Description  Returns the caller's effective membership and trial state.
// @Tags         Billing
// @Produce      json
// @Success      200  {object}  response.APIResponse[types.MembershipSnapshot]
// @Router       /api/v1/billing/me [get]
func ApiGetMembership(mem *membership.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := mem.GetOrCreateProfile(c.Request.Context(), c.GetString("user_id"))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(profile.Snapshot(time.Now())))
	}
}

// @Summary      Create One-Time Order
// @Description  Creates a provider order for a single plan-length purchase.
// @Tags         Billing
// @Accept       json
// @Produce      json
// @Param        request body createOrderRequest true "Order request"
// @Success      200  {object}  response.APIResponse[checkout.OrderResult]
// @Router       /api/v1/billing/orders [post]
func ApiCreateOrder(co *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := co.CreateOneTimeOrder(c.Request.Context(), c.GetString("user_id"), req.PlanID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](billingErrorCode(err), err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Verify Order Payment
// @Description  Verifies a completed checkout and applies the upgrade. Safe to retry; a consumed order reports already used.
// @Tags         Billing
// @Accept       json
// @Produce      json
// @Param        request body ordersvc.VerifyRequest true "Verification proof from the provider checkout"
// @Success      200  {object}  response.APIResponse[types.MembershipSnapshot]
// @Router       /api/v1/billing/orders/verify [post]
func ApiVerifyOrder(ord *ordersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ordersvc.VerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		snap, err := ord.VerifyPayment(c.Request.Context(), c.GetString("user_id"), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](billingErrorCode(err), err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(snap))
	}
}

// @Summary      Create Subscription
// @Description  Creates a recurring agreement, optionally starting with a trial.
// @Tags         Billing
// @Accept       json
// @Produce      json
// @Param        request body createSubscriptionRequest true "Subscription request"
// @Success      200  {object}  response.APIResponse[checkout.SubscriptionResult]
// @Router       /api/v1/billing/subscriptions [post]
func ApiCreateSubscription(co *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := co.CreateSubscription(c.Request.Context(), c.GetString("user_id"), req.PlanID, req.Provider, req.WithTrial)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](billingErrorCode(err), err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get Subscription Status
// @Description  Returns the subscription after reconciling against the provider, covering delayed webhooks.
// @Tags         Billing
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  response.APIResponse[subscriptionStatusResponse]
// @Router       /api/v1/billing/subscriptions/{id} [get]
func ApiGetSubscriptionStatus(co *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, profile, err := co.GetStatus(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](billingErrorCode(err), err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&subscriptionStatusResponse{
			Subscription: sub,
			Membership:   profile.Snapshot(time.Now()),
		}))
	}
}

// @Summary      Cancel Subscription
// @Description  Stops future billing. Trials end with access kept until the trial window closes; paid terms run to the period end.
// @Tags         Billing
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  response.APIResponse[any]
// @Router       /api/v1/billing/subscriptions/{id}/cancel [post]
func ApiCancelSubscription(co *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		outcome, err := co.Cancel(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](billingErrorCode(err), err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(outcome.Note))
	}
}

// billingErrorCode separates caller mistakes from server-side failures.
func billingErrorCode(err error) response.APIResponseCode {
	switch {
	case errors.Is(err, pricing.ErrUnknownPlan),
		errors.Is(err, checkout.ErrTrialUnavailable),
		errors.Is(err, checkout.ErrTrialMustBeUsedFirst),
		errors.Is(err, checkout.ErrAlreadySubscribed),
		errors.Is(err, checkout.ErrUnsupportedProvider),
		errors.Is(err, checkout.ErrSubscriptionNotOwned),
		errors.Is(err, ordersvc.ErrInvalidSignature),
		errors.Is(err, ordersvc.ErrOrderNotFound),
		errors.Is(err, ordersvc.ErrOrderNotOwned),
		errors.Is(err, ordersvc.ErrOrderAlreadyUsed),
		errors.Is(err, ordersvc.ErrPaymentMismatch),
		errors.Is(err, lifecycle.ErrSubscriptionNotFound):
		return response.APIResponseCodeBadRequest
	default:
		return response.APIResponseCodeError
	}
}

func RegisterBillingRoutes(r gin.IRouter, co *checkout.Service, ord *ordersvc.Service, pr *pricing.Service, mem *membership.Service) {
	r.GET("/plans", ApiGetPlans(pr))
	r.GET("/me", ApiGetMembership(mem))
	r.POST("/orders", ApiCreateOrder(co))
	r.POST("/orders/verify", ApiVerifyOrder(ord))
	r.POST("/subscriptions", ApiCreateSubscription(co))
	r.GET("/subscriptions/:id", ApiGetSubscriptionStatus(co))
	r.POST("/subscriptions/:id/cancel", ApiCancelSubscription(co))
}
