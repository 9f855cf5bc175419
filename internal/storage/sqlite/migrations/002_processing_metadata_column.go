package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateProcessingMetadataColumn adds the per-job processing_metadata
// blob to the queue (batch sizes, cache usage, timings).
func MigrateProcessingMetadataColumn(db *sql.DB) error {
	var colName string
	err := db.QueryRow(`
		SELECT name FROM pragma_table_info('queue')
		WHERE name = 'processing_metadata'
	`).Scan(&colName)

	if err == sql.ErrNoRows {
		if _, err := db.Exec(`ALTER TABLE queue ADD COLUMN processing_metadata TEXT`); err != nil {
			return fmt.Errorf("failed to add processing_metadata column: %w", err)
		}
		return nil
	}
	return err
}
