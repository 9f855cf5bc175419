// Package migrations holds the ordered, idempotent schema migrations.
// Each migration probes pragma_table_info before altering so databases
// created from the current schema pass through untouched.
package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateParticipationColumn adds the participation blob to meetings.
// Early databases stored only the agenda/packet URLs.
func MigrateParticipationColumn(db *sql.DB) error {
	var colName string
	err := db.QueryRow(`
		SELECT name FROM pragma_table_info('meetings')
		WHERE name = 'participation'
	`).Scan(&colName)

	if err == sql.ErrNoRows {
		if _, err := db.Exec(`ALTER TABLE meetings ADD COLUMN participation TEXT`); err != nil {
			return fmt.Errorf("failed to add participation column: %w", err)
		}
		return nil
	}
	return err
}
