package postgres

import "errors"

var (
	// ErrDSNRequired is returned when DSN is empty in Config.
	ErrDSNRequired = errors.New("dsn is required")

	// ErrInvalidPoolSize is returned when the connection limits are inconsistent.
	ErrInvalidPoolSize = errors.New("invalid pool size")
)
