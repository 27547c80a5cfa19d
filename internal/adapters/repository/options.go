package repository

import (
	"time"

	"github.com/okian/obdstream/pkg/logger"
)

// Option applies a configuration option to Open and OpenSQL.
type Option func(*settings)

type settings struct {
	maxOpenConns    int
	connMaxLifetime time.Duration
	migrate         bool
	log             logger.Logger
}

func newSettings(opts []Option) *settings {
	s := &settings{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithMaxOpenConns caps the connection pool. SQLite always uses one connection.
func WithMaxOpenConns(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithConnMaxLifetime recycles pooled connections after d.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.connMaxLifetime = d
		}
	}
}

// WithMigrate makes Open apply the embedded migrations before returning.
func WithMigrate(enabled bool) Option {
	return func(s *settings) {
		s.migrate = enabled
	}
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}
