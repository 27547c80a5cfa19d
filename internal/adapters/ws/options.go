package ws

import (
	"time"

	"github.com/okian/obdstream/pkg/logger"
)

// Default session configuration constants.
const (
	defaultReadLimit          = 64 << 10
	defaultIdleTimeout        = 0
	defaultWriteTimeout       = 5 * time.Second
	defaultMaxStorageFailures = 5
	defaultBufferSize         = 4096
)

// Option applies a configuration option to the Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithReadLimit caps the size of one inbound frame in bytes.
func WithReadLimit(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.readLimit = n
		}
	}
}

// WithIdleTimeout closes sessions that send nothing for d. Zero disables it.
func WithIdleTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d >= 0 {
			h.idleTimeout = d
		}
	}
}

// WithWriteTimeout bounds how long sending a close frame may take.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithMaxStorageFailures closes a session with 1011 after n consecutive
// failed inserts. Zero keeps the session open regardless.
func WithMaxStorageFailures(n int) Option {
	return func(h *Handler) {
		if n >= 0 {
			h.maxStorageFailures = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}
