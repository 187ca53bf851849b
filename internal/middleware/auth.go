package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"autoseo/internal/billing"
)

// APIKeyAuthMiddleware authenticates the X-API-Key header through the quota
// gate and stores the tenant snapshot on the context. The gate's denial maps
// to 401 (unknown credential), 402 (inactive subscription) or 429 (allowance
// exhausted).
func APIKeyAuthMiddleware(engine *billing.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, err := engine.AuthenticateAndGate(c.GetHeader("X-API-Key"))
		if err != nil {
			var denial *billing.Denial
			if errors.As(err, &denial) {
				abortWithDenial(c, denial)
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			c.Abort()
			return
		}

		c.Set("tenant", tenant)
		c.Set("tenant_id", tenant.ID)
		c.Next()
	}
}

func abortWithDenial(c *gin.Context, denial *billing.Denial) {
	switch denial.Reason {
	case billing.ReasonInactive:
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":               denial.Reason,
			"message":             denial.Message,
			"subscription_status": denial.Status,
		})
	case billing.ReasonRateLimited:
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":         denial.Reason,
			"message":       denial.Message,
			"current_usage": denial.CurrentUsage,
			"limit":         denial.Limit,
			"overage":       denial.Overage,
			"remaining":     denial.Remaining,
			"days_left":     denial.DaysLeft,
			"billing_end":   denial.BillingEnd.UTC().Format(time.RFC3339),
		})
	default:
		c.JSON(http.StatusUnauthorized, gin.H{"error": denial.Reason, "message": denial.Message})
	}
	c.Abort()
}

// AdminAuthMiddleware guards admin routes behind the X-Admin-Key shared
// secret
func AdminAuthMiddleware(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-Admin-Key")
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(adminKey)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized_admin", "message": "Invalid admin key"})
			c.Abort()
			return
		}
		c.Next()
	}
}
