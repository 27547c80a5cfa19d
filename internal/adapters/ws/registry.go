package ws

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/obdstream/pkg/logger"
	"github.com/okian/obdstream/pkg/metrics"
)

// Registry tracks live sessions so shutdown can close them all.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	log      logger.Logger
}

// NewRegistry returns an empty registry. A nil log uses the global logger.
func NewRegistry(log logger.Logger) *Registry {
	if log == nil {
		log = logger.Get().Named("sessions")
	}
	return &Registry{sessions: make(map[string]*Session), log: log}
}

// Add registers s. It fails with ErrShuttingDown once Shutdown has started.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrShuttingDown
	}
	r.sessions[s.id] = s
	metrics.UpdateActiveSessions(len(r.sessions))
	return nil
}

// Remove unregisters s. Removing an unknown session is a no-op.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s.id)
	metrics.UpdateActiveSessions(len(r.sessions))
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sessions returns a snapshot of live sessions ordered by start time.
func (r *Registry) Sessions() []Info {
	r.mu.Lock()
	out := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Info())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Shutdown refuses new sessions, closes every live one with 1001 and waits
// for their loops to finish or ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	if len(live) > 0 {
		r.log.Info(ctx, "closing sessions", logger.Int("count", len(live)))
	}
	for _, s := range live {
		s.Close(CloseGoingAway, "server shutting down")
	}
	for _, s := range live {
		select {
		case <-s.Done():
		case <-ctx.Done():
			r.log.Warn(ctx, "shutdown timed out", logger.Int("remaining", r.Len()))
			return fmt.Errorf("shutdown timed out: %w", ctx.Err())
		}
	}
	return nil
}
