package billing

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"autoseo/internal/keys"
	"autoseo/internal/logging"
	"autoseo/internal/models"
	"autoseo/internal/plans"
)

// usage-log retention window applied at rollover
const retentionWindow = 90 * 24 * time.Hour

// ErrInvalidPlan is returned when a plan change names an unknown plan
var ErrInvalidPlan = errors.New("invalid plan")

// ErrTenantNotFound is returned when a tenant id resolves to nothing
var ErrTenantNotFound = errors.New("tenant not found")

// Metrics holds the engine's Prometheus counters. A nil Metrics disables
// collection.
type Metrics struct {
	GateDecisions *prometheus.CounterVec // labels: outcome
	UsageEvents   *prometheus.CounterVec // labels: action
	Rollovers     *prometheus.CounterVec // labels: trigger
}

// Engine owns cycle lifecycle, usage accounting, the quota gate, overage
// calculation and invoice assembly for all tenants.
type Engine struct {
	db      *sql.DB
	logger  logging.Logger
	metrics *Metrics
	locks   *tenantLocks
	now     func() time.Time
}

// NewEngine creates a billing engine on the given persistence handle
func NewEngine(db *sql.DB, logger logging.Logger, metrics *Metrics) *Engine {
	return &Engine{
		db:      db,
		logger:  logger,
		metrics: metrics,
		locks:   newTenantLocks(),
		now:     time.Now,
	}
}

// Initialize starts a fresh billing cycle for the tenant from now
func (e *Engine) Initialize(tenantID, planType, cycleKind string) error {
	now := e.now().UTC()
	end := NextBoundary(now, cycleKind)

	_, err := e.db.Exec(`
		UPDATE tenants
		SET billing_start = $1, billing_end = $2, last_reset = $1, updated_at = $1
		WHERE id = $3
	`, now, end, tenantID)
	if err != nil {
		return fmt.Errorf("failed to initialize billing cycle: %w", err)
	}

	e.logger.WithFields(logging.Fields{
		"tenant_id":     tenantID,
		"plan_type":     planType,
		"billing_cycle": cycleKind,
		"billing_end":   end,
	}).Info("Initialized billing cycle")

	return nil
}

// AuthenticateAndGate resolves an API key, rolls the cycle if expired, and
// enforces subscription and quota. On success the tenant snapshot reflects
// the usage event recorded for this call. Denials are returned as *Denial.
//
// A rate-limited call still appends its usage event so overflow is tracked
// for billing reconciliation; the denial body reports the counters as they
// stood when the limit was hit.
func (e *Engine) AuthenticateAndGate(apiKey string) (*models.Tenant, error) {
	if !keys.HasPrefix(apiKey) {
		e.countGate("invalid_key")
		return nil, &Denial{Reason: ReasonInvalidKey, Message: "Invalid API key"}
	}

	tenantID, err := keys.Resolve(e.db, apiKey)
	if err == keys.ErrInvalidKey {
		e.countGate("invalid_key")
		return nil, &Denial{Reason: ReasonInvalidKey, Message: "Invalid API key"}
	}
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(tenantID)
	defer unlock()

	if _, err := e.rollIfExpiredLocked(tenantID); err != nil {
		return nil, err
	}

	tenant, err := e.loadTenant(tenantID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()

	if tenant.SubscriptionStatus != models.StatusActive {
		e.countGate("inactive")
		return nil, &Denial{
			Reason:  ReasonInactive,
			Message: "Your subscription is inactive. Please update payment method.",
			Status:  tenant.SubscriptionStatus,
		}
	}

	if tenant.UsageCount >= tenant.RateLimit {
		overage := tenant.UsageCount - tenant.RateLimit
		denial := &Denial{
			Reason:       ReasonRateLimited,
			Message:      "Rate limit exceeded. Please upgrade your plan or wait for the next billing cycle.",
			CurrentUsage: tenant.UsageCount,
			Limit:        tenant.RateLimit,
			Overage:      overage,
			Remaining:    0,
			DaysLeft:     daysLeft(now, tenant.BillingEnd),
			BillingEnd:   tenant.BillingEnd,
		}
		// The denied attempt is still a billable event
		if err := e.recordUsageLocked(tenantID, models.ActionAPICall, nil); err != nil {
			return nil, err
		}
		e.countGate("rate_limited")
		return nil, denial
	}

	if err := e.recordUsageLocked(tenantID, models.ActionAPICall, nil); err != nil {
		return nil, err
	}
	tenant.UsageCount++

	e.countGate("allowed")
	return tenant, nil
}

// CheckQuota re-evaluates the gate for an already-resolved tenant without
// recording a usage event. Used by background tasks that re-check quota
// before doing work billed on completion.
func (e *Engine) CheckQuota(tenantID string) (*models.Tenant, error) {
	unlock := e.locks.Lock(tenantID)
	defer unlock()

	if _, err := e.rollIfExpiredLocked(tenantID); err != nil {
		return nil, err
	}

	tenant, err := e.loadTenant(tenantID)
	if err != nil {
		return nil, err
	}

	if tenant.SubscriptionStatus != models.StatusActive {
		return nil, &Denial{
			Reason:  ReasonInactive,
			Message: "Your subscription is inactive. Please update payment method.",
			Status:  tenant.SubscriptionStatus,
		}
	}

	if tenant.UsageCount >= tenant.RateLimit {
		return nil, &Denial{
			Reason:       ReasonRateLimited,
			Message:      "Rate limit exceeded. Please upgrade your plan or wait for the next billing cycle.",
			CurrentUsage: tenant.UsageCount,
			Limit:        tenant.RateLimit,
			Overage:      tenant.UsageCount - tenant.RateLimit,
			DaysLeft:     daysLeft(e.now().UTC(), tenant.BillingEnd),
			BillingEnd:   tenant.BillingEnd,
		}
	}

	return tenant, nil
}

// RecordUsage appends a usage event for the current cycle and bumps the
// denormalized counter in the same transaction
func (e *Engine) RecordUsage(tenantID, action string, resource *string) error {
	unlock := e.locks.Lock(tenantID)
	defer unlock()
	return e.recordUsageLocked(tenantID, action, resource)
}

func (e *Engine) recordUsageLocked(tenantID, action string, resource *string) error {
	now := e.now().UTC()

	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin usage transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO usage_logs (id, tenant_id, action, resource, timestamp, billing_cycle)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New().String(), tenantID, action, resource, now, CycleTag(now))
	if err != nil {
		return fmt.Errorf("failed to insert usage event: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE tenants SET usage_count = usage_count + 1, updated_at = $1 WHERE id = $2
	`, now, tenantID)
	if err != nil {
		return fmt.Errorf("failed to increment usage counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage event: %w", err)
	}

	if e.metrics != nil && e.metrics.UsageEvents != nil {
		e.metrics.UsageEvents.WithLabelValues(action).Inc()
	}
	return nil
}

// RollIfExpired archives the tenant's cycle and starts a new one when the
// current cycle has ended. Returns whether a rollover happened.
func (e *Engine) RollIfExpired(tenantID string) (bool, error) {
	unlock := e.locks.Lock(tenantID)
	defer unlock()
	return e.rollIfExpiredLocked(tenantID)
}

func (e *Engine) rollIfExpiredLocked(tenantID string) (bool, error) {
	tenant, err := e.loadTenant(tenantID)
	if err != nil {
		return false, err
	}

	now := e.now().UTC()
	if !now.After(tenant.BillingEnd) {
		return false, nil
	}

	// Everything appended since cycle_start belongs to the closing cycle;
	// rollover is serialized with appends per tenant.
	var usage int
	err = e.db.QueryRow(`
		SELECT COUNT(*) FROM usage_logs WHERE tenant_id = $1 AND timestamp >= $2
	`, tenantID, tenant.BillingStart).Scan(&usage)
	if err != nil {
		return false, fmt.Errorf("failed to count closing cycle usage: %w", err)
	}

	overage := usage - tenant.RateLimit
	if overage < 0 {
		overage = 0
	}

	// Archive before reset so a crash in between leaves usage recoverable.
	// The unique constraint makes concurrent rollovers first-wins.
	_, err = e.db.Exec(`
		INSERT INTO billing_history (id, tenant_id, cycle_start, cycle_end, usage, overage, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, cycle_start, cycle_end) DO NOTHING
	`, uuid.New().String(), tenantID, tenant.BillingStart, tenant.BillingEnd, usage, overage, models.BillingPending, now)
	if err != nil {
		return false, fmt.Errorf("failed to archive billing cycle: %w", err)
	}

	newEnd := NextBoundary(now, tenant.BillingCycle)
	_, err = e.db.Exec(`
		UPDATE tenants
		SET billing_start = $1, billing_end = $2, usage_count = 0, last_reset = $1, updated_at = $1
		WHERE id = $3
	`, now, newEnd, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to start new billing cycle: %w", err)
	}

	cutoff := now.Add(-retentionWindow)
	if _, err := e.db.Exec(`
		DELETE FROM usage_logs WHERE tenant_id = $1 AND timestamp < $2
	`, tenantID, cutoff); err != nil {
		// Retention is housekeeping; the rollover itself has committed
		e.logger.WithError(err).WithField("tenant_id", tenantID).Warn("Failed to prune old usage logs")
	}

	if e.metrics != nil && e.metrics.Rollovers != nil {
		e.metrics.Rollovers.WithLabelValues("expired").Inc()
	}

	e.logger.WithFields(logging.Fields{
		"tenant_id":   tenantID,
		"cycle_start": tenant.BillingStart,
		"cycle_end":   tenant.BillingEnd,
		"usage":       usage,
		"overage":     overage,
		"new_end":     newEnd,
	}).Info("Rolled billing cycle")

	return true, nil
}

// OverageFor computes the overage charge for one billing cycle tag. Cycles
// at or below the allowance report zero.
func (e *Engine) OverageFor(tenantID, cycle string) (*models.OverageCharges, error) {
	tenant, err := e.loadTenant(tenantID)
	if err != nil {
		return nil, err
	}

	if cycle == "" {
		cycle = CycleTag(e.now())
	}

	var usage int
	err = e.db.QueryRow(`
		SELECT COUNT(*) FROM usage_logs WHERE tenant_id = $1 AND billing_cycle = $2
	`, tenantID, cycle).Scan(&usage)
	if err != nil {
		return nil, fmt.Errorf("failed to count cycle usage: %w", err)
	}

	charges := &models.OverageCharges{Usage: usage, Limit: tenant.RateLimit}
	if usage <= tenant.RateLimit {
		return charges, nil
	}

	plan := plans.Get(tenant.PlanType)
	charges.Overage = usage - tenant.RateLimit
	charges.Blocks = (charges.Overage + 99) / 100
	charges.RatePerBlock = plan.OverageRate
	charges.TotalCharge = float64(charges.Blocks) * plan.OverageRate

	return charges, nil
}

// ChangePlan updates the tenant's plan and allowance. When a differing cycle
// kind is supplied the current cycle is re-initialized from now; in-flight
// usage is neither archived nor zeroed by a plan change alone.
func (e *Engine) ChangePlan(tenantID, newPlan string, cycleKind *string) error {
	if !plans.Exists(newPlan) {
		return ErrInvalidPlan
	}

	unlock := e.locks.Lock(tenantID)
	defer unlock()

	tenant, err := e.loadTenant(tenantID)
	if err != nil {
		return err
	}

	plan := plans.Get(newPlan)
	now := e.now().UTC()

	newCycle := tenant.BillingCycle
	if cycleKind != nil && (*cycleKind == models.CycleMonthly || *cycleKind == models.CycleYearly) {
		newCycle = *cycleKind
	}

	_, err = e.db.Exec(`
		UPDATE tenants SET plan_type = $1, rate_limit = $2, billing_cycle = $3, updated_at = $4 WHERE id = $5
	`, newPlan, plan.RateLimit, newCycle, now, tenantID)
	if err != nil {
		return fmt.Errorf("failed to change plan: %w", err)
	}

	if newCycle != tenant.BillingCycle {
		if err := e.Initialize(tenantID, newPlan, newCycle); err != nil {
			return err
		}
	}

	e.logger.WithFields(logging.Fields{
		"tenant_id": tenantID,
		"old_plan":  tenant.PlanType,
		"new_plan":  newPlan,
	}).Info("Changed tenant plan")

	return nil
}

// Snapshot re-reads the tenant without touching the gate
func (e *Engine) Snapshot(tenantID string) (*models.Tenant, error) {
	return e.loadTenant(tenantID)
}

func (e *Engine) loadTenant(tenantID string) (*models.Tenant, error) {
	var t models.Tenant
	err := e.db.QueryRow(`
		SELECT id, name, email, api_key_hash, plan_type, billing_cycle,
		       usage_count, rate_limit, subscription_status,
		       billing_start, billing_end, last_reset, settings, created_at, updated_at
		FROM tenants WHERE id = $1
	`, tenantID).Scan(
		&t.ID, &t.Name, &t.Email, &t.APIKeyHash, &t.PlanType, &t.BillingCycle,
		&t.UsageCount, &t.RateLimit, &t.SubscriptionStatus,
		&t.BillingStart, &t.BillingEnd, &t.LastReset, &t.Settings, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	return &t, nil
}

func (e *Engine) countGate(outcome string) {
	if e.metrics != nil && e.metrics.GateDecisions != nil {
		e.metrics.GateDecisions.WithLabelValues(outcome).Inc()
	}
}
