package handlers

import (
	"net/http"
	"time"

	"github.com/slotbook/billing/internal/app/service/lifecycle"
	"github.com/slotbook/billing/internal/app/service/payments"
	"github.com/slotbook/billing/pkg/response"

	"github.com/gin-gonic/gin"
)

// @Summary      List Payments (Admin)
// @Description  Retrieves a paginated and filterable list of payment receipts.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body payments.ScanRequest true "List request with filters, pagination, and sorting"
// @Success      200  {object}  response.APIResponse[payments.ScanPaymentsResponse]
// @Router       /api/v1/admin/list_payments [post]
func ApiListPayments(svc *payments.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payments.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.ScanPayments(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      List Subscriptions (Admin)
// @Description  Retrieves a paginated and filterable list of subscriptions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body payments.ScanRequest true "List request with filters, pagination, and sorting"
// @Success      200  {object}  response.APIResponse[payments.ScanSubscriptionsResponse]
// @Router       /api/v1/admin/list_subscriptions [post]
func ApiListSubscriptions(svc *payments.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payments.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.ScanSubscriptions(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Grant Membership (Admin)
// @Description  Grants one plan duration of membership with no charge behind it.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.APIResponse[types.MembershipSnapshot]
// @Router       /api/v1/admin/grant_membership [post]
func ApiGrantMembership(lc *lifecycle.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID     string `json:"user_id"`
			PlanID     string `json:"plan_id"`
			OperatorID string `json:"operator_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.UserID == "" || req.PlanID == "" || req.OperatorID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id or plan_id or operator_id"))
			return
		}
		profile, err := lc.GrantComplimentary(c.Request.Context(), req.UserID, req.PlanID, req.OperatorID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](billingErrorCode(err), err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(profile.Snapshot(time.Now())))
	}
}

func RegisterAdminRoutes(r gin.IRouter, svc *payments.Service, lc *lifecycle.Service) {
	r.POST("/list_payments", ApiListPayments(svc))
	r.POST("/list_subscriptions", ApiListSubscriptions(svc))
	r.POST("/grant_membership", ApiGrantMembership(lc))
}
