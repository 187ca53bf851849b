package models

// CreateTenantRequest registers a new tenant
type CreateTenantRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	PlanType     string `json:"plan_type"`
	BillingCycle string `json:"billing_cycle"`
}

// CreateTenantResponse carries the tenant plus the plaintext API key,
// revealed exactly once
type CreateTenantResponse struct {
	Tenant
	APIKey string `json:"api_key"`
}

// RotateKeyResponse carries a freshly rotated plaintext API key
type RotateKeyResponse struct {
	TenantID string `json:"tenant_id"`
	APIKey   string `json:"api_key"`
}

// CreateSiteRequest registers a site for auditing
type CreateSiteRequest struct {
	URL      string `json:"url" binding:"required"`
	Name     string `json:"name"`
	Settings JSONB  `json:"settings"`
}

// UpdatePlanRequest changes a tenant's plan (admin)
type UpdatePlanRequest struct {
	PlanType     string  `json:"plan_type" binding:"required"`
	BillingCycle *string `json:"billing_cycle"`
}

// UsageResponse is the current-cycle usage snapshot
type UsageResponse struct {
	TenantID         string          `json:"tenant_id"`
	PlanType         string          `json:"plan_type"`
	BillingCycle     string          `json:"billing_cycle"`
	BillingStart     string          `json:"billing_start"`
	BillingEnd       string          `json:"billing_end"`
	DaysLeft         int             `json:"days_left"`
	CurrentUsage     int             `json:"current_usage"`
	RateLimit        int             `json:"rate_limit"`
	Remaining        int             `json:"remaining"`
	PercentageUsed   float64         `json:"percentage_used"`
	TotalSites       int             `json:"total_sites"`
	TotalAudits      int             `json:"total_audits"`
	EstimatedOverage *OverageCharges `json:"estimated_overage,omitempty"`
}

// OverageCharges is the overage calculation for one billing cycle
type OverageCharges struct {
	Usage        int     `json:"usage"`
	Limit        int     `json:"limit"`
	Overage      int     `json:"overage"`
	Blocks       int     `json:"overage_blocks"`
	RatePerBlock float64 `json:"rate_per_block"`
	TotalCharge  float64 `json:"total_charge"`
}

// BillingHistoryEntry is one archived cycle with its computed charge
type BillingHistoryEntry struct {
	Period        string   `json:"period"`
	CycleStart    string   `json:"cycle_start"`
	CycleEnd      string   `json:"cycle_end"`
	Usage         int      `json:"usage"`
	Limit         int      `json:"limit"`
	Overage       int      `json:"overage"`
	OverageCharge float64  `json:"overage_charge"`
	Status        string   `json:"status"`
	PaymentDate   *string  `json:"payment_date,omitempty"`
	Amount        *float64 `json:"amount,omitempty"`
}

// Invoice assembles base and overage charges for one cycle
type Invoice struct {
	InvoiceID   string  `json:"invoice_id"`
	TenantID    string  `json:"tenant_id"`
	TenantName  string  `json:"tenant_name"`
	Email       string  `json:"email"`
	PlanType    string  `json:"plan_type"`
	Cycle       string  `json:"billing_cycle"`
	PeriodStart string  `json:"period_start"`
	PeriodEnd   string  `json:"period_end"`
	Usage       int     `json:"usage"`
	Included    int     `json:"included"`
	Overage     int     `json:"overage"`
	BaseCharge  float64 `json:"base_charge"`
	OverageFee  float64 `json:"overage_charge"`
	Total       float64 `json:"total"`
	GeneratedAt string  `json:"generated_at"`
}

// UsageAlert is one threshold notification for a tenant
type UsageAlert struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

// RevenueReport aggregates paid billing records over a date range
type RevenueReport struct {
	PeriodStart  string                 `json:"period_start"`
	PeriodEnd    string                 `json:"period_end"`
	TotalRevenue float64                `json:"total_revenue"`
	TotalOverage int                    `json:"total_overage"`
	ByPlan       map[string]PlanRevenue `json:"by_plan"`
}

// PlanRevenue is the revenue contribution of a single plan
type PlanRevenue struct {
	Count int     `json:"count"`
	Total float64 `json:"total"`
}
