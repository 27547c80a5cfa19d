package repository

import (
	"context"
	"fmt"

	"github.com/okian/obdstream/internal/domain/schema"
	"github.com/okian/obdstream/pkg/logger"
)

// Open builds the Store for driver. With WithMigrate(true) the embedded
// migrations run first; the memory driver has nothing to migrate.
func Open(ctx context.Context, driver, dsn string, s *schema.Schema, opts ...Option) (Store, error) {
	cfg := newSettings(opts)

	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	if cfg.migrate {
		if err := Migrate(ctx, driver, dsn, s); err != nil {
			return nil, err
		}
		if cfg.log != nil {
			cfg.log.Info(ctx, "schema migrated",
				logger.String("driver", driver),
				logger.String("table", s.Table),
				logger.String("migrations_table", MigrationsTable(s)))
		}
	}
	return OpenSQL(ctx, driver, dsn, s, opts...)
}
