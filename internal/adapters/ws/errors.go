package ws

import "errors"

// Sentinel kinds for session errors.
var (
	ErrShuttingDown = errors.New("server shutting down")
	ErrBinaryFrame  = errors.New("binary frames are not accepted")
)
