package handlers

import (
	"net/http"
	"time"

	"autoseo/internal/billing"
	"autoseo/internal/logging"
	"autoseo/internal/middleware"
	"autoseo/internal/models"
)

// UpdateTenantPlan changes a tenant's plan and allowance (admin)
func UpdateTenantPlan(c middleware.Context) {
	tenantID := c.Param("id")

	var req models.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "Invalid request: " + err.Error()})
		return
	}

	err := engine.ChangePlan(tenantID, req.PlanType, req.BillingCycle)
	switch {
	case err == billing.ErrInvalidPlan:
		c.JSON(http.StatusBadRequest, middleware.H{"error": "invalid_plan", "message": "Invalid plan type"})
		return
	case err == billing.ErrTenantNotFound:
		c.JSON(http.StatusNotFound, middleware.H{"error": "not_found", "message": "Tenant not found"})
		return
	case err != nil:
		logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to change plan")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	tenant, err := engine.Snapshot(tenantID)
	if err != nil {
		logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to reload tenant")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, tenant)
}

// ForceBillingReset rolls the billing cycle for every tenant past its cycle
// end. Tenants with open cycles are untouched, so the sweep is idempotent.
func ForceBillingReset(c middleware.Context) {
	rolled, err := engine.ForceResetAll()
	if err != nil {
		logger.WithError(err).Error("Rollover sweep failed")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, middleware.H{"message": "Rollover sweep completed", "tenants_reset": rolled})
}

// ListTenants returns all tenants, optionally filtered by plan or
// subscription status (admin)
func ListTenants(c middleware.Context) {
	query := `
		SELECT id, name, email, plan_type, billing_cycle, usage_count, rate_limit,
		       subscription_status, billing_start, billing_end, created_at
		FROM tenants WHERE 1=1`
	args := []interface{}{}

	if plan := c.Query("plan"); plan != "" {
		args = append(args, plan)
		query += ` AND plan_type = $1`
	}
	if status := c.Query("status"); status != "" {
		args = append(args, status)
		if len(args) == 1 {
			query += ` AND subscription_status = $1`
		} else {
			query += ` AND subscription_status = $2`
		}
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		logger.WithError(err).Error("Failed to list tenants")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	tenants := []models.Tenant{}
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Email, &t.PlanType, &t.BillingCycle,
			&t.UsageCount, &t.RateLimit, &t.SubscriptionStatus,
			&t.BillingStart, &t.BillingEnd, &t.CreatedAt); err != nil {
			logger.WithError(err).Error("Error scanning tenant")
			continue
		}
		tenants = append(tenants, t)
	}

	c.JSON(http.StatusOK, middleware.H{"tenants": tenants, "count": len(tenants)})
}

// DeleteTenant removes a tenant and everything it owns in one transaction.
// Children go first so the tenant row never dangles.
func DeleteTenant(c middleware.Context) {
	tenantID := c.Param("id")

	tx, err := db.Begin()
	if err != nil {
		logger.WithError(err).Error("Failed to begin delete transaction")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM audits WHERE tenant_id = $1`,
		`DELETE FROM usage_logs WHERE tenant_id = $1`,
		`DELETE FROM billing_history WHERE tenant_id = $1`,
		`DELETE FROM sites WHERE tenant_id = $1`,
	} {
		if _, err := tx.Exec(stmt, tenantID); err != nil {
			logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to delete tenant records")
			c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
			return
		}
	}

	result, err := tx.Exec(`DELETE FROM tenants WHERE id = $1`, tenantID)
	if err != nil {
		logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to delete tenant")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		c.JSON(http.StatusNotFound, middleware.H{"error": "not_found", "message": "Tenant not found"})
		return
	}

	if err := tx.Commit(); err != nil {
		logger.WithError(err).Error("Failed to commit tenant delete")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	logger.WithField("tenant_id", tenantID).Info("Deleted tenant")
	c.JSON(http.StatusOK, middleware.H{"message": "Tenant deleted", "tenant_id": tenantID})
}

// GetAdminStats returns a cross-tenant rollup (admin)
func GetAdminStats(c middleware.Context) {
	stats := middleware.H{}

	byPlan := map[string]int{}
	rows, err := db.Query(`SELECT plan_type, COUNT(*) FROM tenants GROUP BY plan_type`)
	if err != nil {
		logger.WithError(err).Error("Failed to aggregate tenants")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	totalTenants := 0
	for rows.Next() {
		var plan string
		var count int
		if err := rows.Scan(&plan, &count); err != nil {
			logger.WithError(err).Error("Error scanning plan count")
			continue
		}
		byPlan[plan] = count
		totalTenants += count
	}

	var totalSites, totalAudits, eventsThisMonth int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sites`).Scan(&totalSites); err != nil {
		logger.WithError(err).Error("Failed to count sites")
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM audits`).Scan(&totalAudits); err != nil {
		logger.WithError(err).Error("Failed to count audits")
	}
	cycle := billing.CycleTag(time.Now())
	if err := db.QueryRow(`SELECT COUNT(*) FROM usage_logs WHERE billing_cycle = $1`, cycle).Scan(&eventsThisMonth); err != nil {
		logger.WithError(err).Error("Failed to count usage events")
	}

	stats["total_tenants"] = totalTenants
	stats["tenants_by_plan"] = byPlan
	stats["total_sites"] = totalSites
	stats["total_audits"] = totalAudits
	stats["usage_events_this_cycle"] = eventsThisMonth

	c.JSON(http.StatusOK, stats)
}

// GetRevenue aggregates billing records paid in the given range (admin)
func GetRevenue(c middleware.Context) {
	start, err := parseDate(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "Invalid start date"})
		return
	}
	end, err := parseDate(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "Invalid end date"})
		return
	}

	report, err := engine.Revenue(start, end)
	if err != nil {
		logger.WithError(err).Error("Failed to build revenue report")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// RetargetPlans re-applies the current plan catalog's allowances to all
// tenants (admin)
func RetargetPlans(c middleware.Context) {
	updated, err := engine.RetargetAllowances()
	if err != nil {
		logger.WithError(err).Error("Failed to retarget allowances")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	logger.WithFields(logging.Fields{"tenants_updated": updated}).Info("Retargeted plan allowances")
	c.JSON(http.StatusOK, middleware.H{"message": "Allowances retargeted", "tenants_updated": updated})
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}
