// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and OBDSTREAM_ env vars.
// - Validation errors wrap ErrInvalidConfig; load errors wrap ErrLoadConfig.
package config

import (
	"fmt"
	"time"

	"github.com/okian/obdstream/internal/domain/schema"
)

// Storage drivers accepted in storage.driver. They mirror the repository
// package constants.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Log output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// AuthToken is the shared secret every telemetry client must present.
	AuthToken string `koanf:"auth_token"`

	// SchemaVersion picks the canonical table design: messages, vehicle or obd.
	SchemaVersion string `koanf:"schema_version"`

	// MaxStorageFailures closes a session after this many consecutive
	// failed inserts. Zero never closes.
	MaxStorageFailures int `koanf:"max_storage_failures"`

	// ShutdownTimeout bounds graceful shutdown of sessions and the HTTP server.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	Storage StorageConfig `koanf:"storage"`
	WS      WSConfig      `koanf:"ws"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// StorageConfig selects and tunes the sample store.
type StorageConfig struct {
	// Driver is postgres, sqlite or memory.
	Driver string `koanf:"driver"`

	// DSN is the driver specific data source; a file path for sqlite.
	DSN string `koanf:"dsn"`

	// Migrate applies the embedded migrations of the active schema on startup.
	Migrate bool `koanf:"migrate"`

	MaxOpenConns int `koanf:"max_open_conns"`
}

// WSConfig tunes telemetry sessions.
type WSConfig struct {
	// ReadLimit caps the size of one inbound frame in bytes.
	ReadLimit int64 `koanf:"read_limit"`

	// IdleTimeout closes a session that sends nothing for this long. Zero disables it.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// MetricsConfig shapes the Prometheus metrics served on /metrics.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
	// Prefix is prepended to every metric name after the subsystem.
	Prefix string `koanf:"prefix"`

	// RefreshInterval paces the runtime gauges (memory, goroutines, GC).
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// Labels are constant labels attached to every series, e.g. region.
	Labels map[string]string `koanf:"labels"`

	// LatencyBuckets overrides the frame latency histogram buckets (ms).
	LatencyBuckets []float64 `koanf:"latency_buckets"`
}

// New creates a Config populated with defaults. AuthToken has no default
// and must be supplied.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          FormatText,
		Addr:               ":9080",
		SchemaVersion:      string(schema.OBD),
		MaxStorageFailures: 5,
		ShutdownTimeout:    30 * time.Second,
		Storage: StorageConfig{
			Driver:       DriverMemory,
			Migrate:      true,
			MaxOpenConns: 10,
		},
		WS: WSConfig{
			ReadLimit:    64 << 10,
			IdleTimeout:  0,
			WriteTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			Namespace:       "obdstream",
			Subsystem:       "ingest",
			RefreshInterval: 10 * time.Second,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.AuthToken == "":
		return fmt.Errorf("%w: auth_token must not be empty", ErrInvalidConfig)
	case !knownSchema(c.SchemaVersion):
		return fmt.Errorf("%w: unknown schema_version %q", ErrInvalidConfig, c.SchemaVersion)
	case c.LogFormat != FormatText && c.LogFormat != FormatJSON:
		return fmt.Errorf("%w: log_format must be %q or %q", ErrInvalidConfig, FormatText, FormatJSON)
	case c.MaxStorageFailures < 0:
		return fmt.Errorf("%w: max_storage_failures must not be negative", ErrInvalidConfig)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("%w: shutdown_timeout must be positive", ErrInvalidConfig)
	case c.WS.ReadLimit <= 0:
		return fmt.Errorf("%w: ws.read_limit must be positive", ErrInvalidConfig)
	case c.WS.IdleTimeout < 0 || c.WS.WriteTimeout <= 0:
		return fmt.Errorf("%w: ws timeouts must be positive", ErrInvalidConfig)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: storage.dsn is required for driver %q", ErrInvalidConfig, c.Storage.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown storage.driver %q", ErrInvalidConfig, c.Storage.Driver)
	}
	if c.Storage.MaxOpenConns < 0 {
		return fmt.Errorf("%w: storage.max_open_conns must not be negative", ErrInvalidConfig)
	}

	switch {
	case c.Metrics.Namespace == "":
		return fmt.Errorf("%w: metrics.namespace must not be empty", ErrInvalidConfig)
	case c.Metrics.RefreshInterval <= 0:
		return fmt.Errorf("%w: metrics.refresh_interval must be positive", ErrInvalidConfig)
	}
	return nil
}

func knownSchema(version string) bool {
	_, err := schema.Lookup(version)
	return err == nil
}
