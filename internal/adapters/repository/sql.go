package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/okian/obdstream/internal/domain/model"
	"github.com/okian/obdstream/internal/domain/schema"
	"github.com/okian/obdstream/pkg/metrics"
)

// SQLStore writes samples into the schema table of a PostgreSQL or SQLite
// database. Queries are built once, from the schema, at construction.
type SQLStore struct {
	db     *sql.DB
	driver string
	schema *schema.Schema

	insertQuery string
	selectQuery string
	deleteQuery string
	countQuery  string
}

var _ Store = (*SQLStore)(nil)

// OpenSQL opens and pings a database for the given schema. It does not
// run migrations; see Migrate.
func OpenSQL(ctx context.Context, driver, dsn string, s *schema.Schema, opts ...Option) (*SQLStore, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	cfg := newSettings(opts)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStorage, driver, err)
	}
	if driver == DriverSQLite {
		// One connection serialises writers; SQLite allows only one at a time.
		db.SetMaxOpenConns(1)
	} else if cfg.maxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.maxOpenConns)
	}
	if cfg.connMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.connMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrStorage, driver, err)
	}
	return NewSQLStore(db, driver, s), nil
}

// NewSQLStore wraps an open database. driver picks the placeholder style.
func NewSQLStore(db *sql.DB, driver string, s *schema.Schema) *SQLStore {
	st := &SQLStore{db: db, driver: driver, schema: s}

	cols := st.columns()
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = st.placeholder(i + 1)
	}
	st.insertQuery = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		s.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	st.selectQuery = fmt.Sprintf("SELECT id, %s FROM %s ORDER BY id", strings.Join(cols, ", "), s.Table)
	st.deleteQuery = "DELETE FROM " + s.Table
	st.countQuery = "SELECT COUNT(*) FROM " + s.Table
	return st
}

// columns lists the written columns in order, id excluded.
func (s *SQLStore) columns() []string {
	if s.schema.MessageLog {
		return []string{"timestamp", "text"}
	}
	signals := s.schema.Signals()
	cols := make([]string, 0, len(signals)+3)
	cols = append(cols, "timestamp", "vin", "battery_voltage")
	for _, name := range signals {
		cols = append(cols, schema.Column(name))
	}
	return cols
}

func (s *SQLStore) placeholder(n int) string {
	if s.driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// InsertSample appends one row and returns its id.
func (s *SQLStore) InsertSample(ctx context.Context, sample model.Sample) (id int64, err error) {
	defer observe("insert", time.Now(), &err)

	if err := s.db.QueryRowContext(ctx, s.insertQuery, s.args(sample)...).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: insert into %s: %w", ErrStorage, s.schema.Table, err)
	}
	return id, nil
}

func (s *SQLStore) args(sample model.Sample) []any {
	if s.schema.MessageLog {
		return []any{sample.Timestamp, sample.Text}
	}
	signals := s.schema.Signals()
	args := make([]any, 0, len(signals)+3)
	args = append(args,
		sample.Timestamp,
		sql.NullString{String: sample.VIN, Valid: sample.VIN != ""},
		nullFloat(sample.BatteryVoltage),
	)
	for _, name := range signals {
		if v, ok := sample.Signal(name); ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	return args
}

// SelectAll returns every row ordered by id.
func (s *SQLStore) SelectAll(ctx context.Context) (out []model.Sample, err error) {
	defer observe("select", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, s.selectQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: select from %s: %w", ErrStorage, s.schema.Table, err)
	}
	defer rows.Close()

	out = []model.Sample{}
	for rows.Next() {
		sample, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan %s: %w", ErrStorage, s.schema.Table, err)
		}
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: select from %s: %w", ErrStorage, s.schema.Table, err)
	}
	return out, nil
}

func (s *SQLStore) scan(rows *sql.Rows) (model.Sample, error) {
	var sample model.Sample
	if s.schema.MessageLog {
		var text sql.NullString
		if err := rows.Scan(&sample.ID, &sample.Timestamp, &text); err != nil {
			return sample, err
		}
		sample.Text = text.String
		return sample, nil
	}

	signals := s.schema.Signals()
	var (
		vin     sql.NullString
		battery sql.NullFloat64
		values  = make([]sql.NullFloat64, len(signals))
	)
	dest := make([]any, 0, len(signals)+4)
	dest = append(dest, &sample.ID, &sample.Timestamp, &vin, &battery)
	for i := range values {
		dest = append(dest, &values[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return sample, err
	}

	sample.VIN = vin.String
	if battery.Valid {
		sample.BatteryVoltage = model.Float64(battery.Float64)
	}
	sample.Signals = make(map[string]float64)
	for i, name := range signals {
		if values[i].Valid {
			sample.Signals[name] = values[i].Float64
		}
	}
	return sample, nil
}

// DeleteAll removes every row.
func (s *SQLStore) DeleteAll(ctx context.Context) (n int64, err error) {
	defer observe("delete", time.Now(), &err)

	res, err := s.db.ExecContext(ctx, s.deleteQuery)
	if err != nil {
		return 0, fmt.Errorf("%w: delete from %s: %w", ErrStorage, s.schema.Table, err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: delete from %s: %w", ErrStorage, s.schema.Table, err)
	}
	return n, nil
}

// Count returns the number of rows.
func (s *SQLStore) Count(ctx context.Context) (n int, err error) {
	defer observe("count", time.Now(), &err)

	if err := s.db.QueryRowContext(ctx, s.countQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count %s: %w", ErrStorage, s.schema.Table, err)
	}
	return n, nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrStorage, err)
	}
	return nil
}

// Close closes the underlying pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// observe records latency and, when *errp is set, a failure for op.
func observe(op string, start time.Time, errp *error) {
	metrics.RecordStorageLatency(op, float64(time.Since(start).Microseconds())/1000)
	if *errp != nil {
		metrics.RecordStorageError(op)
	}
}
