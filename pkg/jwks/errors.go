package jwks

import (
	"errors"
	"fmt"
)

// Sentinel errors for key set resolution and signing key selection.
var (
	// ErrFormat is returned when a certificate entry is not valid base64 DER.
	ErrFormat = errors.New("invalid certificate format")

	// ErrNetwork is returned when the JWKS endpoint cannot be reached, times out
	// or answers with a non-2xx status.
	ErrNetwork = errors.New("jwks endpoint unreachable")

	// ErrMalformedResponse is returned when the JWKS body is not JSON or has no keys field.
	ErrMalformedResponse = errors.New("malformed jwks response")

	// ErrNoKeys is returned when the key set contains no keys at all.
	ErrNoKeys = errors.New("jwks endpoint did not contain any keys")

	// ErrNoSigningKeys is returned when the key set has keys but none usable for RS256 verification.
	ErrNoSigningKeys = errors.New("jwks endpoint did not contain any signing keys")

	// ErrUnknownKeyID is matched by UnknownKeyIDError.
	ErrUnknownKeyID = errors.New("unknown key id")

	// ErrUnsupportedKeyType is returned for a kty this package does not model.
	ErrUnsupportedKeyType = errors.New("unsupported key type")

	// ErrURLRequired is returned when a resolver or selector has no JWKS URL.
	ErrURLRequired = errors.New("jwks url is required")
)

// UnknownKeyIDError reports a token key id that is not present in the key set.
type UnknownKeyIDError struct {
	KeyID string
}

func (e *UnknownKeyIDError) Error() string {
	return fmt.Sprintf("unable to find a signing key that matches %q", e.KeyID)
}

// Is reports whether target is ErrUnknownKeyID.
func (e *UnknownKeyIDError) Is(target error) bool {
	return target == ErrUnknownKeyID
}
