package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"autoseo/internal/logging"
	"autoseo/internal/models"
)

// requestTimeout matches the server's read/write timeouts
const requestTimeout = 30 * time.Second

// SetupCommonMiddleware adds all common middleware to a router
func SetupCommonMiddleware(r *gin.Engine, logger logging.Logger) {
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(logger))
	r.Use(RecoveryMiddleware(logger))
	r.Use(CORSMiddleware())
	r.Use(TimeoutMiddleware(requestTimeout))
}

// GetRequestID gets the request ID from the context
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if strID, ok := id.(string); ok {
			return strID
		}
	}
	return ""
}

// GetTenant returns the authenticated tenant stored by APIKeyAuthMiddleware
func GetTenant(c *gin.Context) (*models.Tenant, bool) {
	if v, exists := c.Get("tenant"); exists {
		if tenant, ok := v.(*models.Tenant); ok {
			return tenant, true
		}
	}
	return nil, false
}

// GetContextLogger gets a logger with request context
func GetContextLogger(c *gin.Context, logger logging.Logger) *logrus.Entry {
	return logger.WithFields(logging.Fields{
		"request_id": GetRequestID(c),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"client_ip":  c.ClientIP(),
		"tenant_id":  c.GetString("tenant_id"),
	})
}
