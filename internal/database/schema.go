package database

import (
	"database/sql"
	"fmt"
	"io/fs"
	"sort"

	embedded "autoseo/internal/database/sql"
	"autoseo/internal/logging"
)

// EnsureSchema applies the embedded schema and seed files in lexical order.
// Statements are idempotent, so re-running at every startup is safe.
func EnsureSchema(db *sql.DB, logger logging.Logger) error {
	for _, dir := range []string{"schema", "seeds"} {
		entries, err := fs.ReadDir(embedded.Content, dir)
		if err != nil {
			return fmt.Errorf("failed to read embedded %s: %w", dir, err)
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			path := dir + "/" + name
			content, err := fs.ReadFile(embedded.Content, path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			if _, err := db.Exec(string(content)); err != nil {
				return fmt.Errorf("failed to apply %s: %w", path, err)
			}
			logger.WithField("file", path).Debug("Applied database file")
		}
	}

	logger.Info("Database schema ensured")
	return nil
}
