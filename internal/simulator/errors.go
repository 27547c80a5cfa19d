package simulator

import "errors"

var (
	// ErrInvalidConfig is returned when a run configuration is rejected.
	ErrInvalidConfig = errors.New("invalid simulator config")
	// ErrUnhealthy is returned when the service health check fails.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrSession is returned when a vehicle session could not complete.
	ErrSession = errors.New("session failed")
	ErrVerification = errors.New("verification failed")
)
