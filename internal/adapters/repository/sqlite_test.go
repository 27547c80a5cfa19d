package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/okian/obdstream/internal/domain/model"
	"github.com/okian/obdstream/internal/domain/pid"
	"github.com/okian/obdstream/internal/domain/schema"
)

func openSQLite(t *testing.T, version schema.Version) Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "obdstream.db")
	store, err := Open(context.Background(), DriverSQLite, dsn, schema.MustLookup(version), WithMigrate(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t, schema.OBD)

	id1, err := store.InsertSample(ctx, model.Sample{
		Timestamp:      1700000001500,
		VIN:            "1HGCM82633A004352",
		BatteryVoltage: model.Float64(12.34),
		Signals:        map[string]float64{pid.EngineLoad: 10, pid.EngineFuelRate: 3.5},
	})
	require.NoError(t, err)
	id2, err := store.InsertSample(ctx, model.Sample{Timestamp: 1700000001600})
	require.NoError(t, err)
	require.Greater(t, id2, id1)

	got, err := store.SelectAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, id1, got[0].ID)
	require.Equal(t, int64(1700000001500), got[0].Timestamp)
	require.Equal(t, "1HGCM82633A004352", got[0].VIN)
	require.InDelta(t, 12.34, *got[0].BatteryVoltage, 1e-9)
	require.Equal(t, map[string]float64{pid.EngineLoad: 10, pid.EngineFuelRate: 3.5}, got[0].Signals)
	require.Nil(t, got[1].BatteryVoltage)
	require.Empty(t, got[1].Signals)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	deleted, err := store.DeleteAll(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	got, err = store.SelectAll(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, store.Ping(ctx))
}

func TestSQLiteMessages(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t, schema.Messages)

	for i := 0; i < 3; i++ {
		_, err := store.InsertSample(ctx, model.Sample{Timestamp: int64(i), Text: "Hello from PostgreSQL!"})
		require.NoError(t, err)
	}

	got, err := store.SelectAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, s := range got {
		require.Equal(t, "Hello from PostgreSQL!", s.Text)
	}
}

func TestSQLiteMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "twice.db")
	s := schema.MustLookup(schema.Vehicle)

	require.NoError(t, Migrate(ctx, DriverSQLite, dsn, s))
	require.NoError(t, Migrate(ctx, DriverSQLite, dsn, s))

	store, err := OpenSQL(ctx, DriverSQLite, dsn, s)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.InsertSample(ctx, model.Sample{Timestamp: 1, Signals: map[string]float64{pid.Speed: 88}})
	require.NoError(t, err)
}

func TestSQLiteConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t, schema.Vehicle)

	const writers, perWriter = 4, 25
	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := store.InsertSample(ctx, model.Sample{
					Timestamp: int64(w*perWriter + i),
					VIN:       fmt.Sprintf("VIN-%d", w),
					Signals:   map[string]float64{pid.RPM: float64(i)},
				})
				if err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, writers*perWriter, n)
}

func TestOpenSQLiteWithoutMigrationFailsOnInsert(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "empty.db")

	store, err := OpenSQL(ctx, DriverSQLite, dsn, schema.MustLookup(schema.OBD))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.InsertSample(ctx, model.Sample{Timestamp: 1})
	require.ErrorIs(t, err, ErrStorage)
}
