package deadline

import "errors"

var (
	// ErrInvalidDefaultTimeout is returned when DefaultTimeout is not positive.
	ErrInvalidDefaultTimeout = errors.New("default timeout must be positive")

	// ErrInvalidMaxTimeout is returned when MaxTimeout is set below DefaultTimeout.
	ErrInvalidMaxTimeout = errors.New("max timeout must be >= default timeout when set")
)
