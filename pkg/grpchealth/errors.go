package grpchealth

import "errors"

var (
	// ErrInvalidInterval is returned when Interval is not positive.
	ErrInvalidInterval = errors.New("health check interval must be positive")

	// ErrInvalidTimeout is returned when Timeout is not positive.
	ErrInvalidTimeout = errors.New("health check timeout must be positive")

	// ErrEmptyName is returned when registering a checker without a name.
	ErrEmptyName = errors.New("health checker name is empty")

	// ErrDuplicateName is returned when a checker name is registered twice.
	ErrDuplicateName = errors.New("health checker already registered")
)
