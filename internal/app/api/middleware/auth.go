package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/slotbook/billing/pkg/config"
	"github.com/slotbook/billing/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type authClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the bearer token issued by the account service and
// stores the subject in both gin.Context (key: "user_id") and the request's
// context.Context so services and loggers can pick it up.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearer(c, cfg.Auth.JWTSecret)
		if !ok {
			return
		}
		setUser(c, claims.Subject)
		c.Next()
	}
}

// AdminMiddleware additionally requires the admin role claim.
func AdminMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearer(c, cfg.Auth.JWTSecret)
		if !ok {
			return
		}
		if claims.Role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorT[any](response.APIResponseCodeError, "admin role required"))
			return
		}
		setUser(c, claims.Subject)
		c.Next()
	}
}

func parseBearer(c *gin.Context, secret string) (*authClaims, bool) {
	if secret == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeError, "auth is not configured"))
		return nil, false
	}
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeError, "missing bearer token"))
		return nil, false
	}
	raw := strings.TrimPrefix(header, "Bearer ")

	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeError, "invalid token"))
		return nil, false
	}
	return claims, true
}

func setUser(c *gin.Context, userID string) {
	c.Set("user_id", userID)
	ctx := context.WithValue(c.Request.Context(), "user_id", userID)
	c.Request = c.Request.WithContext(ctx)
}
