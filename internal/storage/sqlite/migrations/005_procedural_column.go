package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateProceduralColumn adds the procedural flag to items. Procedural
// entries (roll call, minutes approval) were previously re-detected by
// regex at processing time; persisting the flag keeps the skip decision
// visible to read-only consumers.
func MigrateProceduralColumn(db *sql.DB) error {
	var colName string
	err := db.QueryRow(`
		SELECT name FROM pragma_table_info('items')
		WHERE name = 'procedural'
	`).Scan(&colName)

	if err == sql.ErrNoRows {
		if _, err := db.Exec(`ALTER TABLE items ADD COLUMN procedural INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("failed to add procedural column: %w", err)
		}
		return nil
	}
	return err
}
