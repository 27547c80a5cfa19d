// Package service provides the core ingestion service that implements
// the dependencies required by the HTTP API and owns telemetry sessions.
package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okian/obdstream/internal/adapters/repository"
	"github.com/okian/obdstream/internal/adapters/ws"
	"github.com/okian/obdstream/internal/domain/auth"
	"github.com/okian/obdstream/internal/domain/mapping"
	"github.com/okian/obdstream/internal/domain/model"
	"github.com/okian/obdstream/internal/domain/pid"
	"github.com/okian/obdstream/internal/domain/schema"
	"github.com/okian/obdstream/pkg/logger"
	"github.com/okian/obdstream/pkg/metrics"
)

// Greeting is the row GET / appends in the message-log schema.
const Greeting = "Hello from PostgreSQL!"

// Service implements the API dependencies for telemetry ingestion.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	schema   *schema.Schema
	table    *pid.Table
	handler  *ws.Handler
	registry *ws.Registry

	// Configuration
	authToken          string
	maxStorageFailures int
	readLimit          int64
	idleTimeout        time.Duration
	writeTimeout       time.Duration
	now                func() time.Time

	// State
	started   bool
	ownsStore bool
	startedAt time.Time

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore sets the sample store. The caller keeps ownership and closes it.
// Without a store the service uses an in-memory one it closes itself.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSchema selects the active table layout.
func WithSchema(sc *schema.Schema) Option {
	return func(s *Service) {
		if sc != nil {
			s.schema = sc
		}
	}
}

// WithPIDTable replaces the default PID code table.
func WithPIDTable(t *pid.Table) Option {
	return func(s *Service) {
		if t != nil {
			s.table = t
		}
	}
}

// WithAuthToken sets the shared secret clients must present.
func WithAuthToken(token string) Option {
	return func(s *Service) {
		s.authToken = token
	}
}

// WithMaxStorageFailures sets how many consecutive failed inserts close a
// session. Zero never closes.
func WithMaxStorageFailures(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxStorageFailures = n
		}
	}
}

// WithReadLimit caps the size of one inbound frame in bytes.
func WithReadLimit(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.readLimit = n
		}
	}
}

// WithIdleTimeout closes sessions that stay silent for d. Zero disables it.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.idleTimeout = d
		}
	}
}

// WithWriteTimeout bounds close frame writes.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithClock replaces time.Now for session start times and receive stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		schema:             schema.MustLookup(schema.OBD),
		table:              pid.Default(),
		maxStorageFailures: 5,
		readLimit:          64 << 10,
		idleTimeout:        0,
		writeTimeout:       5 * time.Second,
		now:                time.Now,
		logger:             nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the session pipeline. It fails when no shared secret is set.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.authToken == "" {
		return ErrMissingSecret
	}

	s.logger.Info(ctx, "starting ingestion service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.ownsStore = true
		s.logger.Info(ctx, "using in-memory store")
	}

	pipeline := ws.NewPipeline(mapping.New(s.table, s.schema), s.store)
	s.registry = ws.NewRegistry(s.logger.Named("sessions"))
	s.handler = ws.NewHandler(auth.NewGate(s.authToken), pipeline, s.registry,
		ws.WithLogger(s.logger.Named("ws")),
		ws.WithMaxStorageFailures(s.maxStorageFailures),
		ws.WithReadLimit(s.readLimit),
		ws.WithIdleTimeout(s.idleTimeout),
		ws.WithWriteTimeout(s.writeTimeout),
		ws.WithClock(s.now),
	)

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "ingestion service started",
		logger.String("schema", string(s.schema.Version)),
		logger.String("table", s.schema.Table),
		logger.Int("maxStorageFailures", s.maxStorageFailures),
	)

	return nil
}

// Stop closes every live session with 1001 and waits for their loops to
// finish or ctx to expire. A store created by the service is closed too.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping ingestion service...")

	err := s.registry.Shutdown(ctx)
	if err != nil {
		s.logger.Warn(ctx, "sessions did not close in time", logger.Error(err))
	}

	if s.ownsStore {
		if cerr := s.store.Close(); cerr != nil {
			s.logger.Error(ctx, "failed to close store", logger.Error(cerr))
		}
		s.store = nil
		s.ownsStore = false
	}

	s.started = false
	s.logger.Info(ctx, "ingestion service stopped")
	return err
}

// SessionHandler returns the WebSocket handler for telemetry sessions.
// Before Start it answers 503.
func (s *Service) SessionHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		h := s.handler
		started := s.started
		s.mu.RUnlock()
		if !started {
			http.Error(w, ErrNotStarted.Error(), http.StatusServiceUnavailable)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (s *Service) activeStore() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// SelectAll returns every stored sample in insertion order.
func (s *Service) SelectAll(ctx context.Context) ([]model.Sample, error) {
	store, err := s.activeStore()
	if err != nil {
		return nil, err
	}
	samples, err := store.SelectAll(ctx)
	if err != nil {
		return nil, err
	}
	metrics.UpdateStoredRows(len(samples))
	return samples, nil
}

// DeleteAll removes every stored sample and reports how many were removed.
func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	store, err := s.activeStore()
	if err != nil {
		return 0, err
	}
	n, err := store.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "samples deleted", logger.Int64("count", n))
	metrics.UpdateStoredRows(0)
	return n, nil
}

// Ping checks the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	store, err := s.activeStore()
	if err != nil {
		return err
	}
	return store.Ping(ctx)
}

// Hello appends the greeting to the message log and returns every message.
// Schemas that are not a message log return service info instead.
func (s *Service) Hello(ctx context.Context) (any, error) {
	store, err := s.activeStore()
	if err != nil {
		return nil, err
	}
	if !s.schema.MessageLog {
		return map[string]any{
			"service": "obdstream",
			"schema":  s.schema.Version,
			"table":   s.schema.Table,
			"signals": s.schema.Signals(),
		}, nil
	}

	if _, err := store.InsertSample(ctx, model.Sample{Timestamp: s.now().UnixMilli(), Text: Greeting}); err != nil {
		return nil, fmt.Errorf("insert greeting: %w", err)
	}
	return s.SelectAll(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":            s.started,
		"schema":             string(s.schema.Version),
		"table":              s.schema.Table,
		"maxStorageFailures": s.maxStorageFailures,
	}

	if s.started {
		stats["uptimeSeconds"] = int64(s.now().Sub(s.startedAt).Seconds())
		stats["sessions"] = s.handler.Stats()
		stats["live"] = s.registry.Sessions()

		if n, err := s.store.Count(ctx); err == nil {
			stats["storedRows"] = n
			metrics.UpdateStoredRows(n)
		} else {
			s.logger.Warn(ctx, "failed to count samples", logger.Error(err))
		}
	}

	return stats
}
