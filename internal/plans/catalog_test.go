package plans

import "testing"

func TestGetKnownPlan(t *testing.T) {
	p := Get("pro")
	if p.RateLimit != 1000 {
		t.Fatalf("expected pro allowance 1000, got %d", p.RateLimit)
	}
	if p.OverageRate != 5 {
		t.Fatalf("expected pro overage rate 5, got %v", p.OverageRate)
	}
	if p.MaxPagesPerAudit != 500 {
		t.Fatalf("expected pro page cap 500, got %d", p.MaxPagesPerAudit)
	}
}

func TestGetUnknownPlanFallsBackToFree(t *testing.T) {
	p := Get("platinum")
	if p.ID != "free" {
		t.Fatalf("expected free fallback, got %s", p.ID)
	}
	if p.RateLimit != 100 {
		t.Fatalf("expected free allowance 100, got %d", p.RateLimit)
	}
}

func TestExists(t *testing.T) {
	if !Exists("enterprise") {
		t.Fatalf("expected enterprise to exist")
	}
	if Exists("platinum") {
		t.Fatalf("did not expect platinum to exist")
	}
}

func TestAllIsACopy(t *testing.T) {
	all := All()
	all["free"] = Get("pro")
	if Get("free").RateLimit != 100 {
		t.Fatalf("mutating All() result must not change the catalog")
	}
}
