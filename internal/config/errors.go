package config

import (
	"errors"
)

var (
	// ErrInvalidConfig marks a setting rejected by Validate.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a file, env or decode failure in Load.
	ErrLoadConfig = errors.New("load config failed")
)
