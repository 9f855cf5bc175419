package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateFinalVoteDateColumn adds final_vote_date to city_matters.
// A terminal status (passed, failed, tabled, withdrawn, vetoed, enacted)
// is always written together with this date.
func MigrateFinalVoteDateColumn(db *sql.DB) error {
	var colName string
	err := db.QueryRow(`
		SELECT name FROM pragma_table_info('city_matters')
		WHERE name = 'final_vote_date'
	`).Scan(&colName)

	if err == sql.ErrNoRows {
		if _, err := db.Exec(`ALTER TABLE city_matters ADD COLUMN final_vote_date DATETIME`); err != nil {
			return fmt.Errorf("failed to add final_vote_date column: %w", err)
		}
		return nil
	}
	return err
}
