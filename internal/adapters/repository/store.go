// Package repository persists samples into the table of the active schema.
package repository

import (
	"context"

	"github.com/okian/obdstream/internal/domain/model"
)

// Store provides write and bulk read/delete access to stored samples.
// Implementations are safe for concurrent use by many sessions.
type Store interface {
	// InsertSample appends one row and returns its id. Samples are never
	// updated or deduplicated.
	InsertSample(ctx context.Context, s model.Sample) (int64, error)

	// DeleteAll removes every row and returns how many were removed.
	DeleteAll(ctx context.Context) (int64, error)

	// SelectAll returns every row ordered by id.
	SelectAll(ctx context.Context) ([]model.Sample, error)

	// Count returns the number of stored rows.
	Count(ctx context.Context) (int, error)

	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Storage drivers accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)
