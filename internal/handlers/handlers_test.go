package handlers

import (
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"autoseo/internal/audit"
	"autoseo/internal/billing"
	"autoseo/internal/crawler"
	"autoseo/internal/keys"
	"autoseo/internal/logging"
	"autoseo/internal/models"
)

const testAdminKey = "test-admin-key"

// setupTestRouter wires handlers against a sqlmock database and returns the
// router plus the mock for expectation setup
func setupTestRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	log := logging.NewLogger()
	log.SetOutput(io.Discard)

	eng := billing.NewEngine(db, log, nil)
	run := audit.NewRunner(db, log, eng, nil, crawler.Config{PolitenessDelay: 0}, 1)
	Init(db, log, eng, run)

	router := gin.New()
	SetupRoutes(router, testAdminKey)

	return router, mock, func() { db.Close() }
}

func tenantColumns() []string {
	return []string{
		"id", "name", "email", "api_key_hash", "plan_type", "billing_cycle",
		"usage_count", "rate_limit", "subscription_status",
		"billing_start", "billing_end", "last_reset", "settings", "created_at", "updated_at",
	}
}

func tenantRow(id, plan string, usage, limit int, status string, start, end time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(tenantColumns()).AddRow(
		id, "Acme", "acme@example.com", "digest", plan, models.CycleMonthly,
		usage, limit, status,
		start, end, start, []byte("{}"), start, start,
	)
}

// expectGate mocks the full authenticate-and-gate sequence for an active
// in-quota tenant, including the api_call usage event
func expectGate(mock sqlmock.Sqlmock, apiKey, tenantID, plan string, usage, limit int) {
	start := time.Now().UTC().AddDate(0, 0, -10)
	end := time.Now().UTC().AddDate(0, 0, 20)

	mock.ExpectQuery(`SELECT id FROM tenants WHERE api_key_hash`).
		WithArgs(keys.Hash(apiKey)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(tenantID))
	mock.ExpectQuery(`SELECT id, name, email, api_key_hash`).
		WithArgs(tenantID).
		WillReturnRows(tenantRow(tenantID, plan, usage, limit, models.StatusActive, start, end))
	mock.ExpectQuery(`SELECT id, name, email, api_key_hash`).
		WithArgs(tenantID).
		WillReturnRows(tenantRow(tenantID, plan, usage, limit, models.StatusActive, start, end))
	expectUsageEvent(mock, tenantID)
}

func expectUsageEvent(mock sqlmock.Sqlmock, tenantID string) {
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO usage_logs`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE tenants SET usage_count`).
		WithArgs(sqlmock.AnyArg(), tenantID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}
