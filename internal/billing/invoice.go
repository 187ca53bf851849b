package billing

import (
	"fmt"
	"time"

	"autoseo/internal/models"
	"autoseo/internal/plans"
)

// History returns the tenant's archived cycles, newest first, with the
// overage charge computed from the tenant's current plan
func (e *Engine) History(tenantID string, limit int) ([]models.BillingHistoryEntry, error) {
	tenant, err := e.loadTenant(tenantID)
	if err != nil {
		return nil, err
	}
	plan := plans.Get(tenant.PlanType)

	if limit <= 0 {
		limit = 12
	}

	rows, err := e.db.Query(`
		SELECT cycle_start, cycle_end, usage, overage, status, payment_date, amount
		FROM billing_history
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query billing history: %w", err)
	}
	defer rows.Close()

	var history []models.BillingHistoryEntry
	for rows.Next() {
		var (
			start, end  time.Time
			usage       int
			overage     int
			status      string
			paymentDate *time.Time
			amount      *float64
		)
		if err := rows.Scan(&start, &end, &usage, &overage, &status, &paymentDate, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan billing record: %w", err)
		}

		var charge float64
		if overage > 0 {
			blocks := (overage + 99) / 100
			charge = float64(blocks) * plan.OverageRate
		}

		entry := models.BillingHistoryEntry{
			Period:        fmt.Sprintf("%s to %s", CycleTag(start), CycleTag(end)),
			CycleStart:    start.UTC().Format(time.RFC3339),
			CycleEnd:      end.UTC().Format(time.RFC3339),
			Usage:         usage,
			Limit:         tenant.RateLimit,
			Overage:       overage,
			OverageCharge: charge,
			Status:        status,
			Amount:        amount,
		}
		if paymentDate != nil {
			s := paymentDate.UTC().Format(time.RFC3339)
			entry.PaymentDate = &s
		}
		history = append(history, entry)
	}

	return history, rows.Err()
}

// Invoice assembles the base plan price plus overage charges for one billing
// cycle tag (YYYY-MM)
func (e *Engine) Invoice(tenantID, cycle string) (*models.Invoice, error) {
	tenant, err := e.loadTenant(tenantID)
	if err != nil {
		return nil, err
	}
	plan := plans.Get(tenant.PlanType)

	charges, err := e.OverageFor(tenantID, cycle)
	if err != nil {
		return nil, err
	}

	base := plan.PriceMonthly
	if tenant.BillingCycle == models.CycleYearly {
		base = plan.PriceYearly
	}

	start, err := time.Parse("2006-01", cycle)
	if err != nil {
		return nil, fmt.Errorf("invalid billing cycle tag %q: %w", cycle, err)
	}
	end := start.AddDate(0, 1, -1)

	shortID := tenantID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	return &models.Invoice{
		InvoiceID:   fmt.Sprintf("INV-%s-%s", shortID, cycle),
		TenantID:    tenant.ID,
		TenantName:  tenant.Name,
		Email:       tenant.Email,
		PlanType:    tenant.PlanType,
		Cycle:       cycle,
		PeriodStart: start.Format("2006-01-02"),
		PeriodEnd:   end.Format("2006-01-02"),
		Usage:       charges.Usage,
		Included:    plan.RateLimit,
		Overage:     charges.Overage,
		BaseCharge:  base,
		OverageFee:  charges.TotalCharge,
		Total:       base + charges.TotalCharge,
		GeneratedAt: e.now().UTC().Format(time.RFC3339),
	}, nil
}
