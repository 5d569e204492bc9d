// Package migrations embeds the SQL schema for every supported store driver
// and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophdiary/internal/common"
	"github.com/dmitrijs2005/gophdiary/internal/dbx"
	"github.com/pressly/goose/v3"
)

//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS

// goose keeps its base FS and dialect in package globals.
var mu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Up applies all pending migrations for driver to db.
func Up(ctx context.Context, db *sql.DB, driver string) error {
	var dialect, dir string
	switch driver {
	case dbx.DriverSQLite:
		dialect, dir = "sqlite3", "sqlite"
	case dbx.DriverPostgres:
		dialect, dir = "pgx", "postgres"
	default:
		return fmt.Errorf("%w: %q", common.ErrUnsupportedDriver, driver)
	}

	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("applying %s migrations: %w", driver, err)
	}
	return nil
}
