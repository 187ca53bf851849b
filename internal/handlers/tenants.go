package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"autoseo/internal/billing"
	"autoseo/internal/keys"
	"autoseo/internal/logging"
	"autoseo/internal/middleware"
	"autoseo/internal/models"
	"autoseo/internal/plans"
)

const uniqueViolation = pq.ErrorCode("23505")

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// CreateTenant registers a new tenant with a fresh billing cycle and returns
// the plaintext API key exactly once
func CreateTenant(c middleware.Context) {
	var req models.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if req.PlanType == "" {
		req.PlanType = "free"
	}
	if !plans.Exists(req.PlanType) {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "invalid_plan", "message": "Invalid plan type"})
		return
	}
	if req.BillingCycle == "" {
		req.BillingCycle = models.CycleMonthly
	}
	if req.BillingCycle != models.CycleMonthly && req.BillingCycle != models.CycleYearly {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "Invalid billing cycle"})
		return
	}

	apiKey, err := keys.Generate()
	if err != nil {
		logger.WithError(err).Error("Failed to generate API key")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	plan := plans.Get(req.PlanType)
	now := time.Now().UTC()
	tenant := models.Tenant{
		ID:                 uuid.New().String(),
		Name:               req.Name,
		Email:              req.Email,
		APIKeyHash:         keys.Hash(apiKey),
		PlanType:           req.PlanType,
		BillingCycle:       req.BillingCycle,
		RateLimit:          plan.RateLimit,
		SubscriptionStatus: models.StatusActive,
		BillingStart:       now,
		BillingEnd:         billing.NextBoundary(now, req.BillingCycle),
		LastReset:          now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	_, err = db.Exec(`
		INSERT INTO tenants (id, name, email, api_key_hash, plan_type, billing_cycle,
		                     usage_count, rate_limit, subscription_status,
		                     billing_start, billing_end, last_reset, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10, $11, '{}', $12, $12)
	`, tenant.ID, tenant.Name, tenant.Email, tenant.APIKeyHash, tenant.PlanType, tenant.BillingCycle,
		tenant.RateLimit, tenant.SubscriptionStatus, tenant.BillingStart, tenant.BillingEnd, tenant.LastReset, now)
	if err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusBadRequest, middleware.H{
				"error":   "duplicate_resource",
				"message": "Email already registered",
			})
			return
		}
		logger.WithError(err).Error("Failed to create tenant")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	logger.WithFields(logging.Fields{
		"tenant_id": tenant.ID,
		"email":     tenant.Email,
		"plan_type": tenant.PlanType,
	}).Info("Registered tenant")

	c.JSON(http.StatusCreated, models.CreateTenantResponse{Tenant: tenant, APIKey: apiKey})
}

// RotateAPIKey replaces the caller's credential. The old key stops resolving
// immediately; the new plaintext is revealed in this response only.
func RotateAPIKey(c middleware.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.H{"error": "Tenant context required"})
		return
	}

	newKey, err := keys.Rotate(db, tenant.ID)
	if err != nil {
		logger.WithError(err).WithField("tenant_id", tenant.ID).Error("Failed to rotate API key")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	logger.WithField("tenant_id", tenant.ID).Info("Rotated API key")
	c.JSON(http.StatusOK, models.RotateKeyResponse{TenantID: tenant.ID, APIKey: newKey})
}

// GetPlans returns the public plan catalog
func GetPlans(c middleware.Context) {
	c.JSON(http.StatusOK, middleware.H{"plans": plans.All()})
}
