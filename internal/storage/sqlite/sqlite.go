// Package sqlite implements the unified store on SQLite via the pure-Go
// ncruces driver (wazero-compiled sqlite, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/engagic/engagic/internal/storage"
)

// SQLiteStorage implements storage.Storage backed by a single SQLite file.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

var _ storage.Storage = (*SQLiteStorage)(nil)

// New opens (creating if necessary) the database at path, applies pragmas,
// the base schema, and all pending migrations.
//
// WAL journaling plus a busy timeout lets the sync pool and the worker
// pool share the database; _txlock=immediate makes every sql.Tx a write
// transaction from the start, which serializes the atomic queue dequeue.
func New(ctx context.Context, path string) (*SQLiteStorage, error) {
	dsn := "file:" + path +
		"?_txlock=immediate" +
		"&_pragma=busy_timeout(10000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(ON)"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStorage{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// UnderlyingDB exposes the handle for read-only analytics queries.
// Mutation must go through the repository methods.
func (s *SQLiteStorage) UnderlyingDB() *sql.DB {
	return s.db
}

// dbtx is the common surface of *sql.DB and *sql.Tx, letting the
// repository helpers run identically inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTx implements storage.Transaction. It never commits; commit and
// rollback belong to RunInTransaction.
type sqliteTx struct {
	tx *sql.Tx
}

var _ storage.Transaction = (*sqliteTx)(nil)

// RunInTransaction executes fn inside a single immediate transaction.
// The transaction commits only when fn returns nil; any error or panic
// rolls everything back.
func (s *SQLiteStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&sqliteTx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// nullString maps "" to SQL NULL. The preservation UPSERTs rely on this:
// an absent summary arrives as NULL and therefore never clobbers a stored
// one.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// jsonOrNull marshals v to JSON text, or NULL for empty slices/nil.
func jsonOrNull(v any) (sql.NullString, error) {
	switch x := v.(type) {
	case []string:
		if len(x) == 0 {
			return sql.NullString{}, nil
		}
	case nil:
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal JSON column: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalStrings decodes a JSON string-array column, tolerating NULL.
func unmarshalStrings(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil
	}
	return out
}
