package plans

import "autoseo/internal/models"

// DefaultPlan is the catalog fallback for unknown plan ids
const DefaultPlan = "free"

// catalog is the static plan table. Seeded into the plans table at startup
// and read-only at runtime.
var catalog = map[string]models.Plan{
	"free": {
		ID:               "free",
		RateLimit:        100,
		PriceMonthly:     0,
		PriceYearly:      0,
		OverageRate:      0,
		MaxSites:         3,
		MaxPagesPerAudit: 50,
		Features:         []string{"basic_seo", "email_reports"},
	},
	"pro": {
		ID:               "pro",
		RateLimit:        1000,
		PriceMonthly:     29,
		PriceYearly:      290,
		OverageRate:      5, // per 100 requests over the allowance
		MaxSites:         20,
		MaxPagesPerAudit: 500,
		Features:         []string{"basic_seo", "advanced_seo", "keyword_tracking", "api_access", "pdf_reports"},
	},
	"enterprise": {
		ID:               "enterprise",
		RateLimit:        10000,
		PriceMonthly:     99,
		PriceYearly:      990,
		OverageRate:      2,
		MaxSites:         100,
		MaxPagesPerAudit: 5000,
		Features:         []string{"all_features", "white_label", "team_access", "priority_support", "custom_reports"},
	},
}

// Get resolves a plan id, falling back to the free plan for unknown ids
func Get(id string) models.Plan {
	if p, ok := catalog[id]; ok {
		return p
	}
	return catalog[DefaultPlan]
}

// Exists reports whether the id names a real catalog plan
func Exists(id string) bool {
	_, ok := catalog[id]
	return ok
}

// All returns the full catalog, keyed by plan id
func All() map[string]models.Plan {
	out := make(map[string]models.Plan, len(catalog))
	for id, p := range catalog {
		out[id] = p
	}
	return out
}
