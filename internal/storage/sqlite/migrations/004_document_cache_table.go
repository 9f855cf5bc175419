package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateDocumentCacheTable creates the shared extracted-document cache.
// Kept as a migration (not only in the base schema) so databases from
// before the cross-job cache gain the table on upgrade.
func MigrateDocumentCacheTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS document_cache (
			url_hash TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			text TEXT NOT NULL,
			pages INTEGER NOT NULL DEFAULT 0,
			hit_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_accessed DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create document_cache table: %w", err)
	}
	return nil
}
