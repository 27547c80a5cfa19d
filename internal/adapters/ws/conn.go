package ws

import (
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the part of a WebSocket connection a session uses.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	RemoteAddr() net.Addr
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

// Close codes sent by the server.
const (
	CloseNormal          = websocket.CloseNormalClosure
	CloseGoingAway       = websocket.CloseGoingAway
	ClosePolicyViolation = websocket.ClosePolicyViolation
	CloseInternalError   = websocket.CloseInternalServerErr
)

func messageTypeName(mt int) string {
	switch mt {
	case websocket.TextMessage:
		return "text"
	case websocket.BinaryMessage:
		return "binary"
	default:
		return "other"
	}
}
