package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"autoseo/internal/keys"
	"autoseo/internal/models"
)

func TestGetUsageSnapshot(t *testing.T) {
	router, mock, done := setupTestRouter(t)
	defer done()

	key, _ := keys.Generate()
	expectGate(mock, key, "tenant-1", "free", 10, 100)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM sites WHERE tenant_id`).
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audits WHERE tenant_id`).
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	w := getPath(t, router, "/usage", map[string]string{"X-API-Key": key})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp models.UsageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	// The gated call itself is the 11th event
	if resp.CurrentUsage != 11 || resp.Remaining != 89 {
		t.Fatalf("unexpected usage counters: %+v", resp)
	}
	if resp.TotalSites != 2 || resp.TotalAudits != 5 {
		t.Fatalf("unexpected totals: %+v", resp)
	}
	if resp.EstimatedOverage != nil {
		t.Fatalf("no overage expected under the allowance: %+v", resp.EstimatedOverage)
	}
}

func TestGetBillingHistory(t *testing.T) {
	router, mock, done := setupTestRouter(t)
	defer done()

	start := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	key, _ := keys.Generate()
	expectGate(mock, key, "tenant-1", "pro", 10, 1000)
	mock.ExpectQuery(`SELECT id, name, email, api_key_hash`).
		WithArgs("tenant-1").
		WillReturnRows(tenantRow("tenant-1", "pro", 11, 1000, models.StatusActive,
			time.Now().UTC().AddDate(0, 0, -10), time.Now().UTC().AddDate(0, 0, 20)))
	mock.ExpectQuery(`SELECT cycle_start, cycle_end, usage, overage, status, payment_date, amount`).
		WithArgs("tenant-1", 12).
		WillReturnRows(sqlmock.NewRows([]string{
			"cycle_start", "cycle_end", "usage", "overage", "status", "payment_date", "amount",
		}).AddRow(start, end, 1237, 237, "pending", nil, nil))

	w := getPath(t, router, "/billing/history", map[string]string{"X-API-Key": key})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		History []models.BillingHistoryEntry `json:"history"`
		Count   int                          `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("expected 1 record, got %d", resp.Count)
	}

	// 237 over on pro: 3 blocks at 5 per block
	if resp.History[0].Overage != 237 || resp.History[0].OverageCharge != 15 {
		t.Fatalf("unexpected overage charge: %+v", resp.History[0])
	}
}

func TestGetInvoice(t *testing.T) {
	router, mock, done := setupTestRouter(t)
	defer done()

	key, _ := keys.Generate()
	expectGate(mock, key, "tenant-1", "pro", 10, 1000)

	start := time.Now().UTC().AddDate(0, 0, -10)
	end := time.Now().UTC().AddDate(0, 0, 20)
	// Invoice loads the tenant, then OverageFor loads it again
	mock.ExpectQuery(`SELECT id, name, email, api_key_hash`).
		WithArgs("tenant-1").
		WillReturnRows(tenantRow("tenant-1", "pro", 11, 1000, models.StatusActive, start, end))
	mock.ExpectQuery(`SELECT id, name, email, api_key_hash`).
		WithArgs("tenant-1").
		WillReturnRows(tenantRow("tenant-1", "pro", 11, 1000, models.StatusActive, start, end))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM usage_logs WHERE tenant_id = \$1 AND billing_cycle`).
		WithArgs("tenant-1", "2024-01").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1237))

	w := getPath(t, router, "/billing/invoice/2024-01", map[string]string{"X-API-Key": key})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var invoice models.Invoice
	if err := json.Unmarshal(w.Body.Bytes(), &invoice); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if invoice.InvoiceID != "INV-tenant-1-2024-01" {
		t.Fatalf("unexpected invoice id: %s", invoice.InvoiceID)
	}
	// Pro base 29 plus 3 overage blocks at 5
	if invoice.BaseCharge != 29 || invoice.OverageFee != 15 || invoice.Total != 44 {
		t.Fatalf("unexpected invoice totals: %+v", invoice)
	}
}

func TestGetInvoiceBadCycleTag(t *testing.T) {
	router, mock, done := setupTestRouter(t)
	defer done()

	key, _ := keys.Generate()
	expectGate(mock, key, "tenant-1", "pro", 10, 1000)

	start := time.Now().UTC().AddDate(0, 0, -10)
	end := time.Now().UTC().AddDate(0, 0, 20)
	mock.ExpectQuery(`SELECT id, name, email, api_key_hash`).
		WithArgs("tenant-1").
		WillReturnRows(tenantRow("tenant-1", "pro", 11, 1000, models.StatusActive, start, end))
	mock.ExpectQuery(`SELECT id, name, email, api_key_hash`).
		WithArgs("tenant-1").
		WillReturnRows(tenantRow("tenant-1", "pro", 11, 1000, models.StatusActive, start, end))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM usage_logs WHERE tenant_id = \$1 AND billing_cycle`).
		WithArgs("tenant-1", "nonsense").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	w := getPath(t, router, "/billing/invoice/nonsense", map[string]string{"X-API-Key": key})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed cycle tag, got %d", w.Code)
	}
}

func TestGetAlertsUrgent(t *testing.T) {
	router, mock, done := setupTestRouter(t)
	defer done()

	key, _ := keys.Generate()
	expectGate(mock, key, "tenant-1", "free", 91, 100)

	start := time.Now().UTC().AddDate(0, 0, -10)
	end := time.Now().UTC().AddDate(0, 0, 20)
	mock.ExpectQuery(`SELECT id, name, email, api_key_hash`).
		WithArgs("tenant-1").
		WillReturnRows(tenantRow("tenant-1", "free", 92, 100, models.StatusActive, start, end))

	w := getPath(t, router, "/alerts", map[string]string{"X-API-Key": key})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Alerts []models.UsageAlert `json:"alerts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(resp.Alerts) != 1 || resp.Alerts[0].Type != "urgent" {
		t.Fatalf("expected one urgent alert, got %+v", resp.Alerts)
	}
}

func TestGetDashboard(t *testing.T) {
	router, mock, done := setupTestRouter(t)
	defer done()

	key, _ := keys.Generate()
	expectGate(mock, key, "tenant-1", "free", 10, 100)

	lastAudit := time.Now().UTC().Format(time.RFC3339)
	mock.ExpectQuery(`SELECT id, url, name, status, last_audit, last_score, audit_count`).
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "url", "name", "status", "last_audit", "last_score", "audit_count",
		}).
			AddRow("site-1", "https://a.example.com", "A", models.SiteCompleted, lastAudit, 90.0, 3).
			AddRow("site-2", "https://b.example.com", "B", models.SiteCompleted, lastAudit, 70.0, 1).
			AddRow("site-3", "https://c.example.com", "C", models.SitePending, nil, nil, 0))

	w := getPath(t, router, "/dashboard", map[string]string{"X-API-Key": key})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		TotalSites   int      `json:"total_sites"`
		AverageScore *float64 `json:"average_score"`
		Usage        struct {
			Current   int `json:"current"`
			Remaining int `json:"remaining"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.TotalSites != 3 {
		t.Fatalf("expected 3 sites, got %d", resp.TotalSites)
	}
	// Only the two audited sites carry scores
	if resp.AverageScore == nil || *resp.AverageScore != 80 {
		t.Fatalf("unexpected average score: %v", resp.AverageScore)
	}
	if resp.Usage.Current != 11 || resp.Usage.Remaining != 89 {
		t.Fatalf("unexpected usage block: %+v", resp.Usage)
	}
}
