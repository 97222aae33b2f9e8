package koanfutil

import "errors"

// ErrEnvNotSet is returned when an env:// reference names an unset variable.
var ErrEnvNotSet = errors.New("environment variable not set")

// ErrReadBytesUnsupported is returned by ReadBytes of the providers in this package.
var ErrReadBytesUnsupported = errors.New("koanfutil: ReadBytes not supported")
