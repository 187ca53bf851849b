package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"autoseo/internal/audit"
	"autoseo/internal/logging"
	"autoseo/internal/middleware"
	"autoseo/internal/models"
	"autoseo/internal/plans"
)

// CreateSite registers a site for the caller and queues its first audit.
// The plan's max-sites cap and the per-tenant URL uniqueness are enforced
// here; the quota gate already ran in middleware.
func CreateSite(c middleware.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.H{"error": "Tenant context required"})
		return
	}

	var req models.CreateSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "Invalid request: " + err.Error()})
		return
	}

	plan := plans.Get(tenant.PlanType)
	var siteCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sites WHERE tenant_id = $1`, tenant.ID).Scan(&siteCount); err != nil {
		logger.WithError(err).Error("Failed to count sites")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	if siteCount >= plan.MaxSites {
		c.JSON(http.StatusBadRequest, middleware.H{
			"error":     "plan_limit_reached",
			"message":   "Your plan's site limit has been reached. Upgrade to add more sites.",
			"max_sites": plan.MaxSites,
		})
		return
	}

	settings, err := req.Settings.Value()
	if err != nil || settings == nil {
		settings = []byte("{}")
	}

	now := time.Now().UTC()
	site := models.Site{
		ID:        uuid.New().String(),
		TenantID:  tenant.ID,
		URL:       req.URL,
		Name:      req.Name,
		Status:    models.SitePending,
		Settings:  req.Settings,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = db.Exec(`
		INSERT INTO sites (id, tenant_id, url, name, status, audit_count, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $7)
	`, site.ID, site.TenantID, site.URL, site.Name, site.Status, settings, now)
	if err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusBadRequest, middleware.H{
				"error":   "duplicate_resource",
				"message": "Site URL already registered for this tenant",
			})
			return
		}
		logger.WithError(err).Error("Failed to create site")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	if err := engine.RecordUsage(tenant.ID, models.ActionAddSite, &site.ID); err != nil {
		logger.WithError(err).WithField("site_id", site.ID).Error("Failed to record add_site usage")
	}

	if err := runner.Enqueue(audit.Job{SiteID: site.ID, TenantID: tenant.ID, URL: site.URL}); err != nil {
		logger.WithError(err).WithField("site_id", site.ID).Warn("Failed to queue initial audit")
	}

	logger.WithFields(logging.Fields{
		"tenant_id": tenant.ID,
		"site_id":   site.ID,
		"url":       site.URL,
	}).Info("Registered site")

	c.JSON(http.StatusCreated, site)
}

// ListSites returns the caller's sites
func ListSites(c middleware.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.H{"error": "Tenant context required"})
		return
	}

	rows, err := db.Query(`
		SELECT id, tenant_id, url, name, status, last_audit, last_score, audit_count, settings, created_at, updated_at
		FROM sites WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, tenant.ID)
	if err != nil {
		logger.WithError(err).Error("Failed to list sites")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	sites := []models.Site{}
	for rows.Next() {
		var site models.Site
		if err := rows.Scan(&site.ID, &site.TenantID, &site.URL, &site.Name, &site.Status,
			&site.LastAudit, &site.LastScore, &site.AuditCount, &site.Settings,
			&site.CreatedAt, &site.UpdatedAt); err != nil {
			logger.WithError(err).Error("Error scanning site")
			continue
		}
		sites = append(sites, site)
	}

	c.JSON(http.StatusOK, middleware.H{"sites": sites, "count": len(sites)})
}

func loadOwnedSite(tenantID, siteID string) (*models.Site, error) {
	var site models.Site
	err := db.QueryRow(`
		SELECT id, tenant_id, url, name, status, last_audit, last_score, audit_count, settings, created_at, updated_at
		FROM sites WHERE id = $1 AND tenant_id = $2
	`, siteID, tenantID).Scan(&site.ID, &site.TenantID, &site.URL, &site.Name, &site.Status,
		&site.LastAudit, &site.LastScore, &site.AuditCount, &site.Settings,
		&site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &site, nil
}

// GetSite returns one of the caller's sites
func GetSite(c middleware.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.H{"error": "Tenant context required"})
		return
	}

	site, err := loadOwnedSite(tenant.ID, c.Param("id"))
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, middleware.H{"error": "not_found", "message": "Site not found"})
		return
	}
	if err != nil {
		logger.WithError(err).Error("Failed to load site")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, site)
}

// GetSiteAudits returns the audit history for one of the caller's sites
func GetSiteAudits(c middleware.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.H{"error": "Tenant context required"})
		return
	}

	site, err := loadOwnedSite(tenant.ID, c.Param("id"))
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, middleware.H{"error": "not_found", "message": "Site not found"})
		return
	}
	if err != nil {
		logger.WithError(err).Error("Failed to load site")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	rows, err := db.Query(`
		SELECT id, site_id, tenant_id, score, issues, pages_analyzed, billing_cycle, created_at
		FROM audits WHERE site_id = $1
		ORDER BY created_at DESC
	`, site.ID)
	if err != nil {
		logger.WithError(err).Error("Failed to list audits")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	audits := []models.Audit{}
	for rows.Next() {
		var a models.Audit
		var issues []byte
		if err := rows.Scan(&a.ID, &a.SiteID, &a.TenantID, &a.Score, &issues,
			&a.PagesAnalyzed, &a.BillingCycle, &a.CreatedAt); err != nil {
			logger.WithError(err).Error("Error scanning audit")
			continue
		}
		a.Issues = decodeIssues(issues)
		audits = append(audits, a)
	}

	c.JSON(http.StatusOK, middleware.H{"site_id": site.ID, "audits": audits, "count": len(audits)})
}

func decodeIssues(raw []byte) []models.Issue {
	issues := []models.Issue{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &issues); err != nil {
			logger.WithError(err).Warn("Failed to decode audit issues")
		}
	}
	return issues
}

// TriggerAudit queues a fresh audit for one of the caller's sites. The audit
// runs in the background; this call returns as soon as the job is queued.
func TriggerAudit(c middleware.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.H{"error": "Tenant context required"})
		return
	}

	site, err := loadOwnedSite(tenant.ID, c.Param("id"))
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, middleware.H{"error": "not_found", "message": "Site not found"})
		return
	}
	if err != nil {
		logger.WithError(err).Error("Failed to load site")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Internal server error"})
		return
	}

	if err := runner.Enqueue(audit.Job{SiteID: site.ID, TenantID: tenant.ID, URL: site.URL}); err != nil {
		logger.WithError(err).WithField("site_id", site.ID).Error("Audit queue is full")
		c.JSON(http.StatusServiceUnavailable, middleware.H{"error": "Audit queue is full, try again later"})
		return
	}

	if err := engine.RecordUsage(tenant.ID, models.ActionTriggerAudit, &site.ID); err != nil {
		logger.WithError(err).WithField("site_id", site.ID).Error("Failed to record trigger_audit usage")
	}

	c.JSON(http.StatusAccepted, middleware.H{
		"message": "Audit queued",
		"site_id": site.ID,
		"status":  models.SitePending,
	})
}
