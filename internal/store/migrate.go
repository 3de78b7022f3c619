package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// Dialect names the SQL flavour behind a SQLStore.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// Migrate creates the record tables for dialect if they are missing.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	var (
		dir          string
		gooseDialect goose.Dialect
	)
	switch dialect {
	case DialectPostgres:
		dir, gooseDialect = "migrations/postgres", goose.DialectPostgres
	case DialectSQLite:
		dir, gooseDialect = "migrations/sqlite", goose.DialectSQLite3
	default:
		return fmt.Errorf("unsupported dialect %q", dialect)
	}
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
