package handlers

import (
	"net/http"
	"strconv"
	"time"

	"autoseo/internal/middleware"
	"autoseo/internal/models"
	"autoseo/internal/plans"
)

// GetUsage returns the caller's current-cycle usage snapshot, including an
// estimated overage charge once the allowance is exceeded
func GetUsage(c middleware.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.H{"error": "Tenant context required"})
		return
	}

	var totalSites, totalAudits int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sites WHERE tenant_id = $1`, tenant.ID).Scan(&totalSites); err != nil {
		logger.WithError(err).Error("Failed to count sites")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM audits WHERE tenant_id = $1`, tenant.ID).Scan(&totalAudits); err != nil {
		logger.WithError(err).Error("Failed to count audits")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	now := time.Now().UTC()
	daysLeft := int(tenant.BillingEnd.Sub(now).Hours() / 24)
	if daysLeft < 0 {
		daysLeft = 0
	}

	remaining := tenant.RateLimit - tenant.UsageCount
	if remaining < 0 {
		remaining = 0
	}

	var pct float64
	if tenant.RateLimit > 0 {
		pct = float64(tenant.UsageCount) / float64(tenant.RateLimit) * 100
	}

	resp := models.UsageResponse{
		TenantID:       tenant.ID,
		PlanType:       tenant.PlanType,
		BillingCycle:   tenant.BillingCycle,
		BillingStart:   tenant.BillingStart.UTC().Format(time.RFC3339),
		BillingEnd:     tenant.BillingEnd.UTC().Format(time.RFC3339),
		DaysLeft:       daysLeft,
		CurrentUsage:   tenant.UsageCount,
		RateLimit:      tenant.RateLimit,
		Remaining:      remaining,
		PercentageUsed: pct,
		TotalSites:     totalSites,
		TotalAudits:    totalAudits,
	}

	if tenant.UsageCount > tenant.RateLimit {
		plan := plans.Get(tenant.PlanType)
		overage := tenant.UsageCount - tenant.RateLimit
		blocks := (overage + 99) / 100
		resp.EstimatedOverage = &models.OverageCharges{
			Usage:        tenant.UsageCount,
			Limit:        tenant.RateLimit,
			Overage:      overage,
			Blocks:       blocks,
			RatePerBlock: plan.OverageRate,
			TotalCharge:  float64(blocks) * plan.OverageRate,
		}
	}

	c.JSON(http.StatusOK, resp)
}

// GetBillingHistory returns the caller's archived cycles with computed
// overage charges
func GetBillingHistory(c middleware.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.H{"error": "Tenant context required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "12"))
	history, err := engine.History(tenant.ID, limit)
	if err != nil {
		logger.WithError(err).Error("Failed to load billing history")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	if history == nil {
		history = []models.BillingHistoryEntry{}
	}

	c.JSON(http.StatusOK, middleware.H{"tenant_id": tenant.ID, "history": history, "count": len(history)})
}

// GetInvoice assembles an invoice for one billing cycle tag (YYYY-MM)
func GetInvoice(c middleware.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.H{"error": "Tenant context required"})
		return
	}

	invoice, err := engine.Invoice(tenant.ID, c.Param("cycle"))
	if err != nil {
		logger.WithError(err).Error("Failed to assemble invoice")
		c.JSON(http.StatusBadRequest, middleware.H{"error": "Invalid billing cycle"})
		return
	}

	c.JSON(http.StatusOK, invoice)
}

// GetAlerts returns usage threshold notifications for the caller
func GetAlerts(c middleware.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.H{"error": "Tenant context required"})
		return
	}

	alerts, err := engine.Alerts(tenant.ID)
	if err != nil {
		logger.WithError(err).Error("Failed to evaluate alerts")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	if alerts == nil {
		alerts = []models.UsageAlert{}
	}

	c.JSON(http.StatusOK, middleware.H{"tenant_id": tenant.ID, "alerts": alerts})
}

// GetDashboard aggregates the caller's sites, recent audits and usage into
// one summary
func GetDashboard(c middleware.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.H{"error": "Tenant context required"})
		return
	}

	rows, err := db.Query(`
		SELECT id, url, name, status, last_audit, last_score, audit_count
		FROM sites WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, tenant.ID)
	if err != nil {
		logger.WithError(err).Error("Failed to load dashboard sites")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	type siteSummary struct {
		ID         string   `json:"id"`
		URL        string   `json:"url"`
		Name       string   `json:"name"`
		Status     string   `json:"status"`
		LastAudit  *string  `json:"last_audit,omitempty"`
		LastScore  *float64 `json:"last_score,omitempty"`
		AuditCount int      `json:"audit_count"`
	}

	sites := []siteSummary{}
	var scoreSum float64
	var scored int
	for rows.Next() {
		var s siteSummary
		if err := rows.Scan(&s.ID, &s.URL, &s.Name, &s.Status, &s.LastAudit, &s.LastScore, &s.AuditCount); err != nil {
			logger.WithError(err).Error("Error scanning dashboard site")
			continue
		}
		if s.LastScore != nil {
			scoreSum += *s.LastScore
			scored++
		}
		sites = append(sites, s)
	}

	var avgScore *float64
	if scored > 0 {
		avg := scoreSum / float64(scored)
		avgScore = &avg
	}

	remaining := tenant.RateLimit - tenant.UsageCount
	if remaining < 0 {
		remaining = 0
	}

	c.JSON(http.StatusOK, middleware.H{
		"tenant": middleware.H{
			"id":        tenant.ID,
			"name":      tenant.Name,
			"plan_type": tenant.PlanType,
		},
		"sites":         sites,
		"total_sites":   len(sites),
		"average_score": avgScore,
		"usage": middleware.H{
			"current":     tenant.UsageCount,
			"limit":       tenant.RateLimit,
			"remaining":   remaining,
			"billing_end": tenant.BillingEnd.UTC().Format(time.RFC3339),
		},
	})
}
