// Package sqlite - database migrations
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/engagic/engagic/internal/storage/sqlite/migrations"
)

// Migration represents a single database migration
type Migration struct {
	Name string
	Func func(*sql.DB) error
}

// migrationsList is the ordered list of all migrations to run. Every
// migration is idempotent (guarded by a pragma_table_info probe), so the
// list runs in full on every startup.
var migrationsList = []Migration{
	{"participation_column", migrations.MigrateParticipationColumn},
	{"processing_metadata_column", migrations.MigrateProcessingMetadataColumn},
	{"final_vote_date_column", migrations.MigrateFinalVoteDateColumn},
	{"document_cache_table", migrations.MigrateDocumentCacheTable},
	{"procedural_column", migrations.MigrateProceduralColumn},
}

// RunMigrations executes all registered migrations in order.
// Uses an EXCLUSIVE transaction so parallel processes opening the same
// database cannot race on check-then-ALTER sequences.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec("BEGIN EXCLUSIVE"); err != nil {
		return fmt.Errorf("failed to acquire exclusive lock for migrations: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = db.Exec("ROLLBACK")
		}
	}()

	for _, migration := range migrationsList {
		if err := migration.Func(db); err != nil {
			return fmt.Errorf("migration %s failed: %w", migration.Name, err)
		}
	}

	if _, err := db.Exec("COMMIT"); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}
	committed = true
	return nil
}
