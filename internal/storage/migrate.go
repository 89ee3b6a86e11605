package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrateUp creates the snapshot schema (days, goals, meta). Statements
// are idempotent, so running it on an existing database is safe.
func MigrateUp(db *sql.DB) error {
	return runMigrations(db, ".up.sql")
}

// MigrateDown drops the snapshot schema. Used by tests only.
func MigrateDown(db *sql.DB) error {
	return runMigrations(db, ".down.sql")
}

func runMigrations(db *sql.DB, suffix string) error {
	names, err := fs.Glob(migrationFS, "migrations/*"+suffix)
	if err != nil {
		return fmt.Errorf("storage: glob migrations: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		stmt, err := migrationFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("storage: read migration %s: %w", name, err)
		}
		if _, err := db.Exec(string(stmt)); err != nil {
			return fmt.Errorf("storage: apply migration %s: %w", name, err)
		}
	}
	return nil
}
