package keys

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestGenerateShape(t *testing.T) {
	key, err := Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(key, "aseo_") {
		t.Fatalf("expected aseo_ prefix, got %q", key)
	}
	// 32 random bytes base64url without padding is 43 characters
	if got := len(strings.TrimPrefix(key, "aseo_")); got != 43 {
		t.Fatalf("expected 43-char token, got %d", got)
	}
}

func TestGenerateIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		key, err := Generate()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, dup := seen[key]; dup {
			t.Fatalf("duplicate key generated: %s", key)
		}
		seen[key] = struct{}{}
	}
}

func TestHashIsStableHex(t *testing.T) {
	a := Hash("aseo_abc")
	b := Hash("aseo_abc")
	if a != b {
		t.Fatalf("hash must be deterministic")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if a == Hash("aseo_abd") {
		t.Fatalf("distinct keys must not collide trivially")
	}
}

func TestResolveRejectsBadPrefix(t *testing.T) {
	if _, err := Resolve(nil, "sk_live_whatever"); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := Resolve(nil, ""); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey for empty key, got %v", err)
	}
}

func TestResolveRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	key, _ := Generate()

	mock.ExpectQuery(`SELECT id FROM tenants WHERE api_key_hash`).
		WithArgs(Hash(key)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("tenant-1"))

	tenantID, err := Resolve(db, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tenantID != "tenant-1" {
		t.Fatalf("expected tenant-1, got %s", tenantID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResolveUnknownKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	key, _ := Generate()

	mock.ExpectQuery(`SELECT id FROM tenants WHERE api_key_hash`).
		WithArgs(Hash(key)).
		WillReturnError(sql.ErrNoRows)

	if _, err := Resolve(db, key); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestRotateStoresNewDigest(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE tenants SET api_key_hash`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	key, err := Rotate(db, "tenant-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(key, "aseo_") {
		t.Fatalf("rotated key missing prefix: %q", key)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRotateUnknownTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE tenants SET api_key_hash`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := Rotate(db, "nope"); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}
