// Package jwtauth provides JWT authentication for Connect RPC services.
package jwtauth

import "errors"

// Sentinel errors for JWT authentication.
var (
	// ErrMissingToken is returned when no Authorization header is present.
	ErrMissingToken = errors.New("missing authorization token")

	// ErrInvalidTokenFormat is returned when the Authorization header is not a bearer token.
	ErrInvalidTokenFormat = errors.New("invalid token format")

	// ErrMalformedToken is returned when the token is not a compact JWS with a kid header.
	ErrMalformedToken = errors.New("malformed token")

	// ErrInvalidSignature is returned when the token signature does not verify.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrTokenExpired is returned when the token has expired.
	ErrTokenExpired = errors.New("token has expired")

	// ErrMissingExpiration is returned when the token carries no exp claim.
	ErrMissingExpiration = errors.New("token has no expiration")

	// ErrTokenNotYetValid is returned when the token or its signing key is not yet valid.
	ErrTokenNotYetValid = errors.New("token not yet valid")

	// ErrInvalidIssuer is returned when the issuer claim does not match.
	ErrInvalidIssuer = errors.New("invalid token issuer")

	// ErrInvalidAudience is returned when the audience claim does not match.
	ErrInvalidAudience = errors.New("invalid token audience")

	// ErrMissingSubject is returned when the user ID claim is absent or empty.
	ErrMissingSubject = errors.New("token has no subject")

	// ErrJWKSURLRequired is returned when JWKSURL is empty.
	ErrJWKSURLRequired = errors.New("jwks_url is required")

	// ErrIssuerRequired is returned when Issuer is empty.
	ErrIssuerRequired = errors.New("issuer is required")

	// ErrAudienceRequired is returned when Audience is empty.
	ErrAudienceRequired = errors.New("audience is required")

	// ErrInvalidNotBeforePolicy is returned for an unknown NotBeforePolicy.
	ErrInvalidNotBeforePolicy = errors.New("invalid not_before_policy")
)
