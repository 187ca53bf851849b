package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSONB is a custom type for handling JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Subscription status values
const (
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
	StatusTrial    = "trial"
)

// Billing cycle kinds
const (
	CycleMonthly = "monthly"
	CycleYearly  = "yearly"
)

// Site audit states
const (
	SitePending   = "pending"
	SiteRunning   = "running"
	SiteCompleted = "completed"
	SiteFailed    = "failed"
)

// Billing record states
const (
	BillingPending = "pending"
	BillingPaid    = "paid"
	BillingFailed  = "failed"
)

// Usage event actions
const (
	ActionAPICall        = "api_call"
	ActionAddSite        = "add_site"
	ActionTriggerAudit   = "trigger_audit"
	ActionAuditCompleted = "audit_completed"
)

// Tenant represents a registered client with its live billing cycle state
type Tenant struct {
	ID                 string    `json:"id" db:"id"`
	Name               string    `json:"name" db:"name"`
	Email              string    `json:"email" db:"email"`
	APIKeyHash         string    `json:"-" db:"api_key_hash"`
	PlanType           string    `json:"plan_type" db:"plan_type"`
	BillingCycle       string    `json:"billing_cycle" db:"billing_cycle"`
	UsageCount         int       `json:"usage_count" db:"usage_count"`
	RateLimit          int       `json:"rate_limit" db:"rate_limit"`
	SubscriptionStatus string    `json:"subscription_status" db:"subscription_status"`
	BillingStart       time.Time `json:"billing_start" db:"billing_start"`
	BillingEnd         time.Time `json:"billing_end" db:"billing_end"`
	LastReset          time.Time `json:"last_reset" db:"last_reset"`
	Settings           JSONB     `json:"settings,omitempty" db:"settings"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// Plan represents one entry of the static plan catalog
type Plan struct {
	ID               string   `json:"id" db:"id"`
	RateLimit        int      `json:"rate_limit" db:"rate_limit"`
	PriceMonthly     float64  `json:"price_monthly" db:"price_monthly"`
	PriceYearly      float64  `json:"price_yearly" db:"price_yearly"`
	OverageRate      float64  `json:"overage_rate" db:"overage_rate"`
	MaxSites         int      `json:"max_sites" db:"max_sites"`
	MaxPagesPerAudit int      `json:"max_pages_per_audit" db:"max_pages_per_audit"`
	Features         []string `json:"features" db:"features"`
}

// Site represents a registered site owned by a tenant
type Site struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	URL        string    `json:"url" db:"url"`
	Name       string    `json:"name" db:"name"`
	Status     string    `json:"status" db:"status"`
	LastAudit  *string   `json:"last_audit,omitempty" db:"last_audit"`
	LastScore  *float64  `json:"last_score,omitempty" db:"last_score"`
	AuditCount int       `json:"audit_count" db:"audit_count"`
	Settings   JSONB     `json:"settings,omitempty" db:"settings"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Issue is one triggered finding inside an audit
type Issue struct {
	Type     string  `json:"type"`
	Severity string  `json:"severity"`
	Penalty  float64 `json:"penalty"`
	Message  string  `json:"message"`
	Page     string  `json:"page,omitempty"`
}

// Audit represents one crawl+analyze pass over a site. Immutable once written.
type Audit struct {
	ID            string    `json:"id" db:"id"`
	SiteID        string    `json:"site_id" db:"site_id"`
	TenantID      string    `json:"tenant_id" db:"tenant_id"`
	Score         float64   `json:"score" db:"score"`
	Issues        []Issue   `json:"issues" db:"issues"`
	PagesAnalyzed int       `json:"pages_analyzed" db:"pages_analyzed"`
	BillingCycle  string    `json:"billing_cycle" db:"billing_cycle"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// UsageEvent is one append-only usage log row
type UsageEvent struct {
	ID           string    `json:"id" db:"id"`
	TenantID     string    `json:"tenant_id" db:"tenant_id"`
	Action       string    `json:"action" db:"action"`
	Resource     *string   `json:"resource,omitempty" db:"resource"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
	BillingCycle string    `json:"billing_cycle" db:"billing_cycle"`
}

// BillingRecord is one archived billing cycle, written exactly once at rollover
type BillingRecord struct {
	ID          string     `json:"id" db:"id"`
	TenantID    string     `json:"tenant_id" db:"tenant_id"`
	CycleStart  time.Time  `json:"cycle_start" db:"cycle_start"`
	CycleEnd    time.Time  `json:"cycle_end" db:"cycle_end"`
	Usage       int        `json:"usage" db:"usage"`
	Overage     int        `json:"overage" db:"overage"`
	Status      string     `json:"status" db:"status"`
	PaymentDate *time.Time `json:"payment_date,omitempty" db:"payment_date"`
	Amount      *float64   `json:"amount,omitempty" db:"amount"`
	InvoiceRef  *string    `json:"invoice_ref,omitempty" db:"invoice_ref"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// Page is a single crawled page with its extracted signals
type Page struct {
	URL             string      `json:"url"`
	Title           string      `json:"title"`
	MetaDescription string      `json:"meta_description"`
	H1              []string    `json:"h1"`
	H2              []string    `json:"h2"`
	Images          []PageImage `json:"images"`
	Links           []PageLink  `json:"links"`
	WordCount       int         `json:"word_count"`
	LoadTimeMs      float64     `json:"load_time"`
	StatusCode      int         `json:"status_code"`
}

// PageImage is one <img> found on a crawled page
type PageImage struct {
	Src    string `json:"src"`
	Alt    string `json:"alt"`
	HasAlt bool   `json:"has_alt"`
}

// PageLink is one <a href> found on a crawled page
type PageLink struct {
	URL      string `json:"url"`
	Text     string `json:"text"`
	Internal bool   `json:"internal"`
}
