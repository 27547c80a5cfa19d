package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/okian/obdstream/internal/adapters/http/api"
	"github.com/okian/obdstream/internal/adapters/http/swagger"
	"github.com/okian/obdstream/internal/adapters/repository"
	app "github.com/okian/obdstream/internal/app"
	"github.com/okian/obdstream/internal/config"
	"github.com/okian/obdstream/internal/domain/schema"
	"github.com/okian/obdstream/pkg/logger"
	"github.com/okian/obdstream/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	flags := pflag.NewFlagSet("obdstream", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "YAML config file (defaults to $OBDSTREAM_CONFIG)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	// Initialize logging; run re-initializes it with the configured format.
	if err := logger.Init(); err != nil {
		// Use fmt for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		logger.Get().Error(ctx, "obdstream failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

// run loads configuration, opens the store and serves HTTP until ctx ends.
func run(ctx context.Context, configPath string) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(
		metrics.WithMetricsEnabled(cfg.Metrics.Enabled),
		metrics.WithNamespace(cfg.Metrics.Namespace),
		metrics.WithSubsystem(cfg.Metrics.Subsystem),
		metrics.WithMetricPrefix(cfg.Metrics.Prefix),
		metrics.WithRefreshInterval(cfg.Metrics.RefreshInterval),
		metrics.WithCustomLabels(cfg.Metrics.Labels),
		metrics.WithHistogramBuckets(cfg.Metrics.LatencyBuckets),
	)

	sc, err := schema.Lookup(cfg.SchemaVersion)
	if err != nil {
		return err
	}

	store, err := repository.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN, sc,
		repository.WithMigrate(cfg.Storage.Migrate),
		repository.WithMaxOpenConns(cfg.Storage.MaxOpenConns),
		repository.WithLogger(loggerInstance.Named("storage")),
	)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			loggerInstance.Error(ctx, "failed to close store", logger.Error(err))
		}
	}()
	loggerInstance.Info(ctx, "store ready",
		logger.String("driver", cfg.Storage.Driver),
		logger.String("table", sc.Table),
		logger.Bool("migrate", cfg.Storage.Migrate),
	)

	// Create and start the service with configuration options
	svc := app.New(
		app.WithLogger(loggerInstance),
		app.WithStore(store),
		app.WithSchema(sc),
		app.WithAuthToken(cfg.AuthToken),
		app.WithMaxStorageFailures(cfg.MaxStorageFailures),
		app.WithReadLimit(cfg.WS.ReadLimit),
		app.WithIdleTimeout(cfg.WS.IdleTimeout),
		app.WithWriteTimeout(cfg.WS.WriteTimeout),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	serveErr := make(chan error, 1)
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			_ = svc.Stop(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	}
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are invisible to srv.Shutdown, so the
	// service closes its sessions first.
	if err := svc.Stop(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "session shutdown failed", logger.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
	return nil
}

// newMux registers the API, metrics and docs routes.
func newMux(ctx context.Context, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()

	// Register API docs under /api-docs
	swagger.Register(ctx, mux)

	// Register business API routes with the service dependency.
	apiServer := api.NewServer(svc, svc, svc.SessionHandler())
	apiServer.Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval) // Update every 5 seconds
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the stored-rows gauge as a side effect.
			_ = svc.GetStats()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	// Update memory usage
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	// Update goroutine count
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	// Update GC pause time
	if m.NumGC > 0 {
		// Calculate average GC pause time
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
