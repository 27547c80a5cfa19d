package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrMissingSecret = errors.New("auth token must not be empty")
)
