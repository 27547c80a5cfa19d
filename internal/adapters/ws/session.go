package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okian/obdstream/pkg/logger"
)

// State is the lifecycle position of a session.
type State int32

// Session states. Transitions only move forward.
const (
	StateConnecting State = iota
	StateAuthenticated
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one authenticated connection. Its loop goroutine owns it;
// only Close and the read-only accessors may be called from elsewhere.
type Session struct {
	id           string
	remoteAddr   string
	startedAt    time.Time
	startSeconds int64

	conn         Conn
	writeTimeout time.Duration
	log          logger.Logger

	state atomic.Int32

	// storageFailures counts consecutive failed inserts. Loop-owned.
	storageFailures int

	closeOnce sync.Once
	closeCode atomic.Int32
	done      chan struct{}
}

func newSession(conn Conn, now time.Time, writeTimeout time.Duration, log logger.Logger) *Session {
	s := &Session{
		id:           uuid.NewString(),
		startedAt:    now,
		startSeconds: now.Unix(),
		conn:         conn,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
	if addr := conn.RemoteAddr(); addr != nil {
		s.remoteAddr = addr.String()
	}
	s.log = log.With(logger.String("session_id", s.id), logger.String("remote_addr", s.remoteAddr))
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string { return s.remoteAddr }

// StartSeconds is the session start epoch used for frames without their own.
func (s *Session) StartSeconds() int64 { return s.startSeconds }

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once the session reaches StateClosed.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Close sends a close frame with code and closes the connection. Only the
// first call has any effect. The loop notices on its next read.
func (s *Session) Close(code int, text string) {
	s.closeOnce.Do(func() {
		s.closeCode.Store(int32(code))
		msg := websocket.FormatCloseMessage(code, text)
		if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout)); err != nil {
			s.log.Debug(context.Background(), "close frame not sent", logger.Int("code", code), logger.Error(err))
		}
		_ = s.conn.Close()
	})
}

// closedByServer reports the code passed to Close, or 0.
func (s *Session) closedByServer() int {
	return int(s.closeCode.Load())
}

// finish moves the session to Closed. Loop-owned.
func (s *Session) finish() {
	s.Close(CloseNormal, "")
	s.setState(StateClosed)
	close(s.done)
}

// Info is a point-in-time view of a session.
type Info struct {
	ID         string    `json:"id"`
	RemoteAddr string    `json:"remoteAddr"`
	State      string    `json:"state"`
	StartedAt  time.Time `json:"startedAt"`
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	return Info{
		ID:         s.id,
		RemoteAddr: s.remoteAddr,
		State:      s.State().String(),
		StartedAt:  s.startedAt,
	}
}
