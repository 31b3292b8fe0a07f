package handlers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func routeSet(r *gin.Engine) map[string]bool {
	set := map[string]bool{}
	for _, rt := range r.Routes() {
		set[rt.Method+" "+rt.Path] = true
	}
	return set
}

func TestRegisterBillingRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterBillingRoutes(r.Group("/api/v1/billing"), nil, nil, nil, nil)

	routes := routeSet(r)
	require.True(t, routes["GET /api/v1/billing/plans"])
	require.True(t, routes["GET /api/v1/billing/me"])
	require.True(t, routes["POST /api/v1/billing/orders"])
	require.True(t, routes["POST /api/v1/billing/orders/verify"])
	require.True(t, routes["POST /api/v1/billing/subscriptions"])
	require.True(t, routes["GET /api/v1/billing/subscriptions/:id"])
	require.True(t, routes["POST /api/v1/billing/subscriptions/:id/cancel"])
}

func TestRegisterWebhookRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterWebhookRoutes(r.Group("/api/v1/webhooks"), nil, nil)

	routes := routeSet(r)
	require.True(t, routes["POST /api/v1/webhooks/razorpay"])
	require.True(t, routes["POST /api/v1/webhooks/paypal"])
}

func TestRegisterAdminRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterAdminRoutes(r.Group("/api/v1/admin"), nil, nil)

	routes := routeSet(r)
	require.True(t, routes["POST /api/v1/admin/list_payments"])
	require.True(t, routes["POST /api/v1/admin/list_subscriptions"])
	require.True(t, routes["POST /api/v1/admin/grant_membership"])
}
