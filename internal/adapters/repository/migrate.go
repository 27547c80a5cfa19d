package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/okian/obdstream/internal/domain/schema"
)

//go:embed migrations
var migrationsFS embed.FS

// MigrationsTable names the version table for a schema. Each schema has its
// own so two deployments can share one database.
func MigrationsTable(s *schema.Schema) string {
	return "schema_migrations_" + string(s.Version)
}

// Migrate brings the schema table up to date. It uses its own connection
// and closes it before returning.
func Migrate(ctx context.Context, driver, dsn string, s *schema.Schema) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	src, err := iofs.New(migrationsFS, path.Join("migrations", driver, string(s.Version)))
	if err != nil {
		return fmt.Errorf("%w: migration source: %w", ErrStorage, err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("%w: open %s: %w", ErrStorage, driver, err)
	}

	var dbDriver database.Driver
	switch driver {
	case DriverPostgres:
		dbDriver, err = postgres.WithInstance(db, &postgres.Config{MigrationsTable: MigrationsTable(s)})
	case DriverSQLite:
		dbDriver, err = sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: MigrationsTable(s)})
	}
	if err != nil {
		_ = src.Close()
		_ = db.Close()
		return fmt.Errorf("%w: migration driver: %w", ErrStorage, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, dbDriver)
	if err != nil {
		_ = src.Close()
		_ = dbDriver.Close()
		return fmt.Errorf("%w: migrate instance: %w", ErrStorage, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: migrate %s up: %w", ErrStorage, s.Table, err)
	}
	return nil
}
