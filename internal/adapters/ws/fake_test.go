package ws_test

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/obdstream/internal/adapters/repository"
	"github.com/okian/obdstream/internal/adapters/ws"
	"github.com/okian/obdstream/internal/domain/auth"
	"github.com/okian/obdstream/internal/domain/mapping"
	"github.com/okian/obdstream/internal/domain/model"
	"github.com/okian/obdstream/internal/domain/schema"
	"github.com/okian/obdstream/pkg/logger"
)

const testToken = "secret-token"

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

type frame struct {
	mt   int
	data []byte
}

// fakeConn replays queued frames and records close frames.
type fakeConn struct {
	frames    chan frame
	closed    chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	closeCodes []int
	deadline   time.Time
}

func newFakeConn(frames ...string) *fakeConn {
	c := &fakeConn{frames: make(chan frame, len(frames)+1), closed: make(chan struct{})}
	for _, f := range frames {
		c.frames <- frame{mt: websocket.TextMessage, data: []byte(f)}
	}
	return c
}

// hangUp makes the next read after the queued frames fail like a peer close.
func (c *fakeConn) hangUp() *fakeConn {
	close(c.frames)
	return c
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case <-c.closed:
		return 0, nil, net.ErrClosed
	default:
	}
	var expired <-chan time.Time
	c.mu.Lock()
	if !c.deadline.IsZero() {
		timer := time.NewTimer(time.Until(c.deadline))
		defer timer.Stop()
		expired = timer.C
	}
	c.mu.Unlock()

	select {
	case f, ok := <-c.frames:
		if !ok {
			return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		return f.mt, f.data, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	case <-expired:
		return 0, nil, os.ErrDeadlineExceeded
	}
}

func (c *fakeConn) WriteControl(mt int, data []byte, _ time.Time) error {
	if mt != websocket.CloseMessage {
		return nil
	}
	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	code := websocket.CloseNoStatusReceived
	if len(data) >= 2 {
		code = int(binary.BigEndian.Uint16(data))
	}
	c.closeCodes = append(c.closeCodes, code)
	return nil
}

func (c *fakeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 5555}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) codes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.closeCodes...)
}

// failingStore fails the first n inserts, then delegates.
type failingStore struct {
	repository.Store
	mu    sync.Mutex
	fails int
}

func (f *failingStore) InsertSample(ctx context.Context, s model.Sample) (int64, error) {
	f.mu.Lock()
	if f.fails != 0 {
		if f.fails > 0 {
			f.fails--
		}
		f.mu.Unlock()
		return 0, repository.ErrStorage
	}
	f.mu.Unlock()
	return f.Store.InsertSample(ctx, s)
}

func quietLogger() logger.Logger {
	return logger.New(logger.WithWriter(io.Discard))
}

func newTestHandler(store ws.Inserter, version schema.Version, opts ...ws.Option) *ws.Handler {
	log := quietLogger()
	pipeline := ws.NewPipeline(mapping.New(nil, schema.MustLookup(version)), store)
	return ws.NewHandler(auth.NewGate(testToken), pipeline, ws.NewRegistry(log), append([]ws.Option{ws.WithLogger(log)}, opts...)...)
}
