package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Prefix is the stable marker on every issued API key, letting callers
// cheaply reject malformed values before touching the database.
const Prefix = "aseo_"

// tokenBytes gives 256 bits of entropy per key
const tokenBytes = 32

// ErrInvalidKey is returned when a key is malformed or unknown
var ErrInvalidKey = errors.New("invalid API key")

// Generate creates a new plaintext API key. The plaintext is revealed to the
// client exactly once; only the digest is ever stored.
func Generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return Prefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash returns the hex SHA-256 digest of the full key string
func Hash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// HasPrefix reports whether the value looks like one of our keys
func HasPrefix(key string) bool {
	return strings.HasPrefix(key, Prefix)
}

// Resolve maps a plaintext key to the owning tenant id. Malformed and
// unknown keys both come back as ErrInvalidKey.
func Resolve(db *sql.DB, key string) (string, error) {
	if !HasPrefix(key) {
		return "", ErrInvalidKey
	}

	var tenantID string
	err := db.QueryRow(`
		SELECT id FROM tenants WHERE api_key_hash = $1
	`, Hash(key)).Scan(&tenantID)

	if err == sql.ErrNoRows {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", err
	}

	return tenantID, nil
}

// Rotate issues a fresh key for the tenant, invalidating the prior digest.
// Returns the new plaintext key.
func Rotate(db *sql.DB, tenantID string) (string, error) {
	key, err := Generate()
	if err != nil {
		return "", err
	}

	result, err := db.Exec(`
		UPDATE tenants SET api_key_hash = $1, updated_at = $2 WHERE id = $3
	`, Hash(key), time.Now().UTC(), tenantID)
	if err != nil {
		return "", fmt.Errorf("failed to rotate API key: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return "", sql.ErrNoRows
	}

	return key, nil
}
