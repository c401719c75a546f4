// Package migrations holds the SQL schema migrations and the goose runner
// that brings a database up to the latest version. The container entrypoint
// invokes Up when INIT_DB requests it; the server itself never migrates.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var embedMigrations embed.FS

// Up applies every pending migration in order. The whole run fails on the
// first migration error, leaving goose's version table pointing at the last
// successfully applied migration.
func Up(db *sql.DB) error {
	if db == nil {
		return errors.New("migration error: db is nil")
	}

	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("migration error setting dialect for db: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	return nil
}
