package slogutil

import "errors"

var (
	// ErrInvalidLevel is returned for a level other than debug, info, warn or error.
	ErrInvalidLevel = errors.New("invalid log level")

	// ErrInvalidFormat is returned for a format other than json or text.
	ErrInvalidFormat = errors.New("invalid log format")
)
