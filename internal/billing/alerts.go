package billing

import (
	"fmt"

	"autoseo/internal/models"
)

// Alerts evaluates the tenant's usage against the notification thresholds:
// warnings at 80% and 90%, critical at 100%, plus a cycle-ending-soon notice
// when three or fewer days remain and more than half the allowance is spent.
func (e *Engine) Alerts(tenantID string) ([]models.UsageAlert, error) {
	tenant, err := e.loadTenant(tenantID)
	if err != nil {
		return nil, err
	}

	var alerts []models.UsageAlert

	var pct float64
	if tenant.RateLimit > 0 {
		pct = float64(tenant.UsageCount) / float64(tenant.RateLimit) * 100
	}

	switch {
	case pct >= 100:
		alerts = append(alerts, models.UsageAlert{
			Type:    "critical",
			Message: "You've exceeded your quota for this billing cycle",
			Action:  "Upgrade your plan or wait for the next billing cycle",
		})
	case pct >= 90:
		alerts = append(alerts, models.UsageAlert{
			Type:    "urgent",
			Message: fmt.Sprintf("You've used %.1f%% of your quota", pct),
			Action:  "Upgrade now to avoid service interruption",
		})
	case pct >= 80:
		alerts = append(alerts, models.UsageAlert{
			Type:    "warning",
			Message: fmt.Sprintf("You've used %.1f%% of your quota", pct),
			Action:  "Consider upgrading your plan",
		})
	}

	left := daysLeft(e.now().UTC(), tenant.BillingEnd)
	if left <= 3 && pct > 50 {
		alerts = append(alerts, models.UsageAlert{
			Type:    "info",
			Message: fmt.Sprintf("Your billing cycle ends in %d days", left),
			Action:  "Review your usage",
		})
	}

	return alerts, nil
}
