package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/obdstream/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should fail because no secret is configured", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("OBDSTREAM_AUTH_TOKEN", "env-secret")
			_ = os.Setenv("OBDSTREAM_ADDR", ":8080")
			_ = os.Setenv("OBDSTREAM_SCHEMA_VERSION", "vehicle")
			_ = os.Setenv("OBDSTREAM_MAX_STORAGE_FAILURES", "0")
			_ = os.Setenv("OBDSTREAM_STORAGE__DRIVER", "sqlite")
			_ = os.Setenv("OBDSTREAM_STORAGE__DSN", "/var/lib/obd.db")
			_ = os.Setenv("OBDSTREAM_STORAGE__MAX_OPEN_CONNS", "3")
			_ = os.Setenv("OBDSTREAM_WS__IDLE_TIMEOUT", "45s")

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.AuthToken, convey.ShouldEqual, "env-secret")
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.SchemaVersion, convey.ShouldEqual, "vehicle")
				convey.So(cfg.MaxStorageFailures, convey.ShouldEqual, 0)
				convey.So(cfg.Storage.Driver, convey.ShouldEqual, "sqlite")
				convey.So(cfg.Storage.DSN, convey.ShouldEqual, "/var/lib/obd.db")
				convey.So(cfg.Storage.MaxOpenConns, convey.ShouldEqual, 3)
				convey.So(cfg.Storage.Migrate, convey.ShouldBeTrue) // From defaults
				convey.So(cfg.WS.IdleTimeout, convey.ShouldEqual, 45*time.Second)
				convey.So(cfg.WS.ReadLimit, convey.ShouldEqual, int64(64<<10)) // From defaults
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
# deployment
addr: ":9090"  # inline comment
auth_token: file-secret
schema_version: messages
log_format: json
storage:
  driver: postgres
  dsn: postgres://obd@localhost/obd?sslmode=disable
  migrate: false
ws:
  read_limit: 1024
  write_timeout: 2s
metrics:
  namespace: fleet
  prefix: v2_
  refresh_interval: 30s
  labels:
    region: eu-west
  latency_buckets: [1, 5, 25]
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			cfg, err := config.Load(ctx, tmpFile)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.AuthToken, convey.ShouldEqual, "file-secret")
				convey.So(cfg.SchemaVersion, convey.ShouldEqual, "messages")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.Storage.Driver, convey.ShouldEqual, "postgres")
				convey.So(cfg.Storage.Migrate, convey.ShouldBeFalse)
				convey.So(cfg.WS.ReadLimit, convey.ShouldEqual, int64(1024))
				convey.So(cfg.WS.WriteTimeout, convey.ShouldEqual, 2*time.Second)
				convey.So(cfg.WS.IdleTimeout, convey.ShouldEqual, time.Duration(0)) // From defaults: disabled
				convey.So(cfg.Metrics.Namespace, convey.ShouldEqual, "fleet")
				convey.So(cfg.Metrics.Subsystem, convey.ShouldEqual, "ingest") // From defaults
				convey.So(cfg.Metrics.Prefix, convey.ShouldEqual, "v2_")
				convey.So(cfg.Metrics.RefreshInterval, convey.ShouldEqual, 30*time.Second)
				convey.So(cfg.Metrics.Labels, convey.ShouldResemble, map[string]string{"region": "eu-west"})
				convey.So(cfg.Metrics.LatencyBuckets, convey.ShouldResemble, []float64{1, 5, 25})
				convey.So(cfg.Metrics.Enabled, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the file path comes from OBDSTREAM_CONFIG and env overrides it", func() {
			tmpFile := createTempConfigFile("addr: \":9090\"\nauth_token: file-secret\nmax_storage_failures: 7\n")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("OBDSTREAM_CONFIG", tmpFile)
			_ = os.Setenv("OBDSTREAM_ADDR", ":8080")

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")            // Overridden by env
				convey.So(cfg.AuthToken, convey.ShouldEqual, "file-secret") // From file
				convey.So(cfg.MaxStorageFailures, convey.ShouldEqual, 7)    // From file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			cfg, err := config.Load(ctx, tmpFile)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			cfg, err := config.Load(ctx, "/non/existent/file.yaml")

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("OBDSTREAM_AUTH_TOKEN", "env-secret")
			_ = os.Setenv("OBDSTREAM_MAX_STORAGE_FAILURES", "not_a_number")

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("OBDSTREAM_AUTH_TOKEN", "env-secret")
			_ = os.Setenv("OBDSTREAM_ADDR", "")

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			})
		})

		convey.Convey("When the schema version is unknown", func() {
			_ = os.Setenv("OBDSTREAM_AUTH_TOKEN", "env-secret")
			_ = os.Setenv("OBDSTREAM_SCHEMA_VERSION", "v4")

			_, err := config.Load(ctx, "")

			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"OBDSTREAM_CONFIG",
		"OBDSTREAM_ADDR",
		"OBDSTREAM_AUTH_TOKEN",
		"OBDSTREAM_SCHEMA_VERSION",
		"OBDSTREAM_MAX_STORAGE_FAILURES",
		"OBDSTREAM_STORAGE__DRIVER",
		"OBDSTREAM_STORAGE__DSN",
		"OBDSTREAM_STORAGE__MAX_OPEN_CONNS",
		"OBDSTREAM_WS__IDLE_TIMEOUT",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "obdstream-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
