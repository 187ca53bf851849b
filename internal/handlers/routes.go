package handlers

import (
	"github.com/gin-gonic/gin"

	"autoseo/internal/middleware"
)

// SetupRoutes registers all API routes on the router. Tenant routes run
// behind the quota gate; admin routes behind the shared-secret check.
func SetupRoutes(router *gin.Engine, adminKey string) {
	// Public
	router.POST("/tenants", CreateTenant)
	router.GET("/plans", GetPlans)

	// Tenant routes, gated on X-API-Key
	api := router.Group("/", middleware.APIKeyAuthMiddleware(engine))
	{
		api.POST("/keys/rotate", RotateAPIKey)

		api.POST("/sites", CreateSite)
		api.GET("/sites", ListSites)
		api.GET("/sites/:id", GetSite)
		api.GET("/sites/:id/audits", GetSiteAudits)
		api.POST("/sites/:id/audit", TriggerAudit)

		api.GET("/usage", GetUsage)
		api.GET("/billing/history", GetBillingHistory)
		api.GET("/billing/invoice/:cycle", GetInvoice)
		api.GET("/alerts", GetAlerts)
		api.GET("/dashboard", GetDashboard)
	}

	// Admin routes, gated on X-Admin-Key
	admin := router.Group("/", middleware.AdminAuthMiddleware(adminKey))
	{
		admin.POST("/tenants/:id/plan", UpdateTenantPlan)
		admin.POST("/billing/reset", ForceBillingReset)

		admin.GET("/admin/tenants", ListTenants)
		admin.DELETE("/admin/tenants/:id", DeleteTenant)
		admin.GET("/admin/stats", GetAdminStats)
		admin.GET("/admin/revenue", GetRevenue)
		admin.POST("/admin/plans/retarget", RetargetPlans)
	}
}
