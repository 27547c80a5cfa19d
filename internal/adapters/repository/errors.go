package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrStorage       = errors.New("storage")
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrClosed        = errors.New("store closed")
)
