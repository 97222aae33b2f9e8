package jwtauth

import (
	"fmt"
	"time"

	"github.com/deepworx/mealplan/pkg/jwks"
)

// NotBeforePolicy selects which "nbf" values gate a token.
type NotBeforePolicy string

const (
	// NotBeforeToken checks the token nbf claim only.
	NotBeforeToken NotBeforePolicy = "token"

	// NotBeforeKey checks the signing key nbf only.
	NotBeforeKey NotBeforePolicy = "key"

	// NotBeforeBoth checks both the token and the signing key.
	NotBeforeBoth NotBeforePolicy = "both"
)

// ClaimsMapping defines how JWT claims map to ctxutil.Identity fields.
// Use dot notation for nested claims (e.g., "realm_access.roles" for Keycloak).
type ClaimsMapping struct {
	// UserID is the JWT claim path for user ID (e.g., "sub", "user_id").
	UserID string `koanf:"user_id"`

	// TenantID is the JWT claim path for tenant ID (e.g., "tenant_id", "org.id").
	TenantID string `koanf:"tenant_id"`

	// Roles is the JWT claim path for roles (e.g., "roles", "realm_access.roles").
	Roles string `koanf:"roles"`

	// Permissions is the JWT claim path for permissions (e.g., "permissions", "scope").
	Permissions string `koanf:"permissions"`
}

// Config holds configuration for the JWT authentication interceptor.
type Config struct {
	// JWKSURL is the URL to fetch JSON Web Key Set
	// (e.g., "https://idp.example.com/.well-known/jwks.json").
	// Required.
	JWKSURL string `koanf:"jwks_url"`

	// Issuer is the expected "iss" claim value.
	// Required.
	Issuer string `koanf:"issuer"`

	// Audience is the expected "aud" claim value.
	// Required.
	Audience string `koanf:"audience"`

	// Claims defines how JWT claims map to the caller identity.
	// An empty UserID defaults to "sub".
	Claims ClaimsMapping `koanf:"claims"`

	// HTTPTimeout is the timeout for JWKS fetch requests.
	// Defaults to 10 seconds if zero.
	HTTPTimeout time.Duration `koanf:"http_timeout"`

	// CacheTTL is how long a fetched JWKS is trusted. Zero never expires.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// Leeway allows clock skew tolerance for exp/nbf/iat validation.
	// Defaults to 1 minute if zero.
	Leeway time.Duration `koanf:"leeway"`

	// NotBeforePolicy selects token, key or both nbf checks.
	// Defaults to "both" if empty.
	NotBeforePolicy NotBeforePolicy `koanf:"not_before_policy"`

	// Prefetch fetches the JWKS while constructing the Authenticator and
	// fails construction if it is unavailable.
	Prefetch bool `koanf:"prefetch"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Claims:          ClaimsMapping{UserID: "sub"},
		HTTPTimeout:     10 * time.Second,
		CacheTTL:        15 * time.Minute,
		Leeway:          time.Minute,
		NotBeforePolicy: NotBeforeBoth,
		Prefetch:        true,
	}
}

// Validate checks that required fields are set.
func (c Config) Validate() error {
	if c.JWKSURL == "" {
		return ErrJWKSURLRequired
	}
	if c.Issuer == "" {
		return ErrIssuerRequired
	}
	if c.Audience == "" {
		return ErrAudienceRequired
	}
	switch c.NotBeforePolicy {
	case "", NotBeforeToken, NotBeforeKey, NotBeforeBoth:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidNotBeforePolicy, c.NotBeforePolicy)
	}
	return nil
}

// ResolverConfig returns the JWKS resolver settings carried by c.
func (c Config) ResolverConfig() jwks.Config {
	cfg := jwks.DefaultConfig()
	if c.HTTPTimeout > 0 {
		cfg.HTTPTimeout = c.HTTPTimeout
	}
	cfg.CacheTTL = c.CacheTTL
	return cfg
}
