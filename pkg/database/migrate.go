package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

// goose keeps its dialect and base FS in package globals.
var migrateMu sync.Mutex

func gooseDialect(t Type) (dialect, dir string, err error) {
	switch t {
	case SQLite:
		return "sqlite3", "migrations/sqlite", nil
	case PostgreSQL:
		return "postgres", "migrations/postgres", nil
	case MySQL:
		return "mysql", "migrations/mysql", nil
	default:
		return "", "", fmt.Errorf("no migrations for %s", t)
	}
}

// Migrate applies the embedded schema migrations for a SQL backend.
func Migrate(ctx context.Context, db *sql.DB, t Type) error {
	dialect, dir, err := gooseDialect(t)
	if err != nil {
		return err
	}

	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("migrate %s: %w", t, err)
	}
	return nil
}
