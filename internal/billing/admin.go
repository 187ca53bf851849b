package billing

import (
	"fmt"
	"time"

	"autoseo/internal/logging"
	"autoseo/internal/models"
	"autoseo/internal/plans"
)

// ForceResetAll runs the rollover check for every tenant. Tenants whose
// cycle is still open are untouched, so re-invocation is idempotent.
func (e *Engine) ForceResetAll() (int, error) {
	rows, err := e.db.Query(`SELECT id FROM tenants`)
	if err != nil {
		return 0, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	rolled := 0
	for _, id := range ids {
		did, err := e.RollIfExpired(id)
		if err != nil {
			e.logger.WithError(err).WithField("tenant_id", id).Error("Rollover sweep failed for tenant")
			continue
		}
		if did {
			rolled++
		}
	}

	e.logger.WithFields(logging.Fields{
		"tenants": len(ids),
		"rolled":  rolled,
	}).Info("Completed rollover sweep")
	return rolled, nil
}

// RetargetAllowances re-applies the current plan catalog's allowances to all
// tenants. Used after catalog changes.
func (e *Engine) RetargetAllowances() (int, error) {
	rows, err := e.db.Query(`SELECT id, plan_type FROM tenants`)
	if err != nil {
		return 0, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	type row struct{ id, plan string }
	var tenants []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.plan); err != nil {
			return 0, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, r)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	now := e.now().UTC()
	updated := 0
	for _, t := range tenants {
		plan := plans.Get(t.plan)
		if _, err := e.db.Exec(`
			UPDATE tenants SET rate_limit = $1, updated_at = $2 WHERE id = $3
		`, plan.RateLimit, now, t.id); err != nil {
			e.logger.WithError(err).WithField("tenant_id", t.id).Error("Failed to retarget allowance")
			continue
		}
		updated++
	}

	return updated, nil
}

// Revenue aggregates billing records paid within the range, grouped by the
// owning tenant's plan, plus the total overage across the range
func (e *Engine) Revenue(start, end time.Time) (*models.RevenueReport, error) {
	report := &models.RevenueReport{
		PeriodStart: start.UTC().Format(time.RFC3339),
		PeriodEnd:   end.UTC().Format(time.RFC3339),
		ByPlan:      make(map[string]models.PlanRevenue),
	}

	rows, err := e.db.Query(`
		SELECT t.plan_type, COUNT(*), COALESCE(SUM(bh.amount), 0)
		FROM billing_history bh
		JOIN tenants t ON bh.tenant_id = t.id
		WHERE bh.payment_date BETWEEN $1 AND $2
		GROUP BY t.plan_type
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate revenue: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var plan string
		var pr models.PlanRevenue
		if err := rows.Scan(&plan, &pr.Count, &pr.Total); err != nil {
			return nil, fmt.Errorf("failed to scan revenue row: %w", err)
		}
		report.ByPlan[plan] = pr
		report.TotalRevenue += pr.Total
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = e.db.QueryRow(`
		SELECT COALESCE(SUM(overage), 0)
		FROM billing_history
		WHERE payment_date BETWEEN $1 AND $2
	`, start, end).Scan(&report.TotalOverage)
	if err != nil {
		return nil, fmt.Errorf("failed to sum overage: %w", err)
	}

	return report, nil
}
