// Package ws runs telemetry sessions over WebSocket: it authenticates the
// connection once, then feeds every inbound frame through the ingestion
// pipeline until the transport fails.
package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/obdstream/internal/domain/auth"
	"github.com/okian/obdstream/internal/domain/mapping"
	"github.com/okian/obdstream/pkg/logger"
	"github.com/okian/obdstream/pkg/metrics"
)

// Handler accepts WebSocket upgrades and runs one session loop per
// connection on the calling goroutine.
type Handler struct {
	gate     *auth.Gate
	pipeline *Pipeline
	registry *Registry
	upgrader websocket.Upgrader

	readLimit          int64
	idleTimeout        time.Duration
	writeTimeout       time.Duration
	maxStorageFailures int
	now                func() time.Time
	log                logger.Logger

	outcomes     [StorageFailed + 1]atomic.Int64
	sessions     atomic.Int64
	authRejected atomic.Int64
}

// NewHandler creates a session handler.
func NewHandler(gate *auth.Gate, pipeline *Pipeline, registry *Registry, opts ...Option) *Handler {
	h := &Handler{
		gate:               gate,
		pipeline:           pipeline,
		registry:           registry,
		readLimit:          defaultReadLimit,
		idleTimeout:        defaultIdleTimeout,
		writeTimeout:       defaultWriteTimeout,
		maxStorageFailures: defaultMaxStorageFailures,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logger.Get().Named("ws")
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   defaultBufferSize,
		WriteBufferSize:  defaultBufferSize,
		HandshakeTimeout: h.writeTimeout,
	}
	return h
}

// ServeHTTP upgrades the request and serves the session until it closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	credential := auth.Credential(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.log.Warn(r.Context(), "websocket upgrade failed",
			logger.String("remote_addr", r.RemoteAddr), logger.Error(err))
		return
	}
	conn.SetReadLimit(h.readLimit)

	// Inserts already started must finish even if the request context ends.
	h.Serve(context.WithoutCancel(r.Context()), conn, credential)
}

// Serve authenticates conn with credential and, on success, runs the
// session loop until the connection ends. conn is always closed on return.
func (h *Handler) Serve(ctx context.Context, conn Conn, credential string) {
	sess := newSession(conn, h.now(), h.writeTimeout, h.log)

	if err := h.gate.Validate(credential); err != nil {
		h.authRejected.Add(1)
		metrics.RecordAuthRejected()
		sess.log.Warn(ctx, "connection rejected", logger.Error(err))
		sess.Close(ClosePolicyViolation, "invalid credentials")
		sess.setState(StateClosed)
		return
	}
	sess.setState(StateAuthenticated)

	if err := h.registry.Add(sess); err != nil {
		sess.log.Warn(ctx, "connection refused", logger.Error(err))
		sess.Close(CloseGoingAway, "server shutting down")
		sess.setState(StateClosed)
		return
	}
	h.sessions.Add(1)
	metrics.RecordSessionOpened()
	sess.log.Info(ctx, "session started", logger.Int64("start_seconds", sess.startSeconds))

	reason := h.loop(ctx, sess)

	sess.finish()
	h.registry.Remove(sess)
	metrics.RecordSessionClosed(reason)
	sess.log.Info(ctx, "session closed", logger.String("reason", reason))
}

// loop reads frames until the transport fails or the session is closed
// by the server. It returns the close reason.
func (h *Handler) loop(ctx context.Context, sess *Session) string {
	sess.setState(StateStreaming)
	for {
		if h.idleTimeout > 0 {
			_ = sess.conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
		}
		mt, data, err := sess.conn.ReadMessage()
		if err != nil {
			return h.readFailure(ctx, sess, err)
		}
		start := time.Now()
		metrics.RecordFrameReceived(messageTypeName(mt))

		var res Result
		if mt == websocket.TextMessage {
			res = h.pipeline.Process(ctx, data, mapping.SessionInfo{
				StartSeconds: sess.startSeconds,
				ReceivedAt:   h.now(),
			})
		} else {
			res = Result{Outcome: DecodeFailed, Err: ErrBinaryFrame}
		}

		h.outcomes[res.Outcome].Add(1)
		metrics.RecordFrameOutcome(res.Outcome.String(), float64(time.Since(start).Microseconds())/1000)

		if stop := h.handle(ctx, sess, res); stop {
			return "storage_failures"
		}
	}
}

// handle logs a frame result and updates the session failure counter.
// It returns true when the session must end.
func (h *Handler) handle(ctx context.Context, sess *Session, res Result) bool {
	log := sess.log.With(logger.String("outcome", res.Outcome.String()), logger.String("kind", res.Kind.String()))
	if len(res.Dropped) > 0 {
		log.Warn(ctx, "fields dropped", logger.Int("count", len(res.Dropped)), logger.Any("errors", errStrings(res.Dropped)))
	}

	switch res.Outcome {
	case Persisted:
		sess.storageFailures = 0
		log.Debug(ctx, "sample stored", logger.Int64("id", res.ID))
	case Ignored:
		log.Info(ctx, "frame ignored", logger.Error(res.Err))
	case DecodeFailed:
		log.Warn(ctx, "frame not decoded", logger.Error(res.Err))
	case MappingFailed:
		log.Warn(ctx, "frame not mapped", logger.Error(res.Err))
	case StorageFailed:
		sess.storageFailures++
		log.Error(ctx, "sample not stored", logger.Error(res.Err), logger.Int("consecutive_failures", sess.storageFailures))
		if h.maxStorageFailures > 0 && sess.storageFailures >= h.maxStorageFailures {
			sess.Close(CloseInternalError, "storage unavailable")
			return true
		}
	}
	return false
}

func (h *Handler) readFailure(ctx context.Context, sess *Session, err error) string {
	if code := sess.closedByServer(); code == CloseGoingAway {
		return "shutdown"
	}
	var netErr net.Error
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		return "peer_closed"
	case errors.Is(err, websocket.ErrReadLimit):
		sess.log.Warn(ctx, "frame exceeds read limit", logger.Int64("limit", h.readLimit))
		sess.Close(websocket.CloseMessageTooBig, "frame too large")
		return "read_limit"
	case errors.As(err, &netErr) && netErr.Timeout():
		sess.Close(CloseGoingAway, "idle timeout")
		return "idle_timeout"
	default:
		sess.log.Debug(ctx, "read failed", logger.Error(err))
		return "transport_error"
	}
}

// Registry returns the registry of live sessions.
func (h *Handler) Registry() *Registry {
	return h.registry
}

// Stats is a point-in-time view of handler counters.
type Stats struct {
	ActiveSessions int              `json:"activeSessions"`
	TotalSessions  int64            `json:"totalSessions"`
	AuthRejected   int64            `json:"authRejected"`
	Frames         map[string]int64 `json:"frames"`
}

// Stats returns the current counters.
func (h *Handler) Stats() Stats {
	frames := make(map[string]int64, len(h.outcomes))
	for _, o := range Outcomes() {
		frames[o.String()] = h.outcomes[o].Load()
	}
	return Stats{
		ActiveSessions: h.registry.Len(),
		TotalSessions:  h.sessions.Load(),
		AuthRejected:   h.authRejected.Load(),
		Frames:         frames,
	}
}

func errStrings(errs []error) []string {
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
