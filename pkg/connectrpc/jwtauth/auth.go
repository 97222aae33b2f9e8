package jwtauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"go.opentelemetry.io/otel/attribute"

	"github.com/deepworx/mealplan/pkg/ctxutil"
	"github.com/deepworx/mealplan/pkg/jwks"
	"github.com/deepworx/mealplan/pkg/tracing"
)

// KeyFinder resolves the signing key for a kid published at a JWKS URL.
// Implemented by jwks.Selector.
type KeyFinder interface {
	FindSigningKey(ctx context.Context, url, kid string) (jwks.SigningKey, error)
}

// Authenticator validates JWT tokens and extracts the caller identity.
type Authenticator struct {
	keys      KeyFinder
	jwksURL   string
	issuer    string
	audience  string
	mapping   ClaimsMapping
	leeway    time.Duration
	nbfPolicy NotBeforePolicy
	now       func() time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithKeyFinder sets the signing key source. Defaults to a jwks.Selector over
// a jwks.Resolver built from the Config.
func WithKeyFinder(f KeyFinder) Option {
	return func(a *Authenticator) {
		a.keys = f
	}
}

// WithClock overrides the time source used for exp/nbf/iat checks.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// NewAuthenticator creates a new JWT authenticator with the given configuration.
// Returns error if required config fields are empty or, with Prefetch set,
// if the initial JWKS fetch fails.
func NewAuthenticator(ctx context.Context, cfg Config, opts ...Option) (*Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("create authenticator: %w", err)
	}

	leeway := cfg.Leeway
	if leeway == 0 {
		leeway = time.Minute
	}

	policy := cfg.NotBeforePolicy
	if policy == "" {
		policy = NotBeforeBoth
	}

	mapping := cfg.Claims
	if mapping.UserID == "" {
		mapping.UserID = "sub"
	}

	a := &Authenticator{
		jwksURL:   cfg.JWKSURL,
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		mapping:   mapping,
		leeway:    leeway,
		nbfPolicy: policy,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.keys == nil {
		resolver, err := jwks.NewResolver(cfg.ResolverConfig())
		if err != nil {
			return nil, fmt.Errorf("create authenticator: %w", err)
		}
		a.keys = jwks.NewSelector(resolver)
	}

	if cfg.Prefetch {
		if lister, ok := a.keys.(interface {
			ListSigningKeys(ctx context.Context, url string) ([]jwks.SigningKey, error)
		}); ok {
			if _, err := lister.ListSigningKeys(ctx, a.jwksURL); err != nil {
				return nil, fmt.Errorf("initial jwks fetch from %s: %w", a.jwksURL, err)
			}
		}
	}

	return a, nil
}

// VerifiedClaims are the claims of a token whose signature and registered
// claims have been verified. Only Verify produces them.
type VerifiedClaims struct {
	KeyID     string
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	NotBefore time.Time
	IssuedAt  time.Time

	token jwt.Token
}

// Get returns the claim at a dot-notation path (e.g., "realm_access.roles").
func (c *VerifiedClaims) Get(path string) (any, bool) {
	return getNestedClaim(c.token, path)
}

// Verify checks the token signature against the JWKS key named by its kid
// header and validates exp, nbf, iss and aud. Key lookup errors from the jwks
// package are returned unchanged.
func (a *Authenticator) Verify(ctx context.Context, token string) (*VerifiedClaims, error) {
	return tracing.WithSpanResult(ctx, "jwtauth.verify", func(ctx context.Context) (*VerifiedClaims, error) {
		kid, err := parseKeyID(token)
		if err != nil {
			return nil, err
		}

		key, err := tracing.WithSpanResult(ctx, "jwtauth.find_signing_key", func(ctx context.Context) (jwks.SigningKey, error) {
			return a.keys.FindSigningKey(ctx, a.jwksURL, kid)
		}, tracing.Attrs(attribute.String("jwt.kid", kid)))
		if err != nil {
			return nil, err
		}

		if err := verifySignature(key, token); err != nil {
			return nil, err
		}

		tok, err := jwt.Parse([]byte(token), a.parseOptions()...)
		if err != nil {
			return nil, mapJWTError(err)
		}

		if err := a.checkKeyNotBefore(ctx, key); err != nil {
			return nil, err
		}

		return newVerifiedClaims(kid, tok), nil
	})
}

// ExtractUserID verifies token and returns the configured user ID claim.
func (a *Authenticator) ExtractUserID(ctx context.Context, token string) (string, error) {
	claims, err := a.Verify(ctx, token)
	if err != nil {
		return "", err
	}
	return a.userID(claims)
}

// Authenticate verifies token and returns the caller identity.
// Token should be the raw JWT string (without "Bearer " prefix).
func (a *Authenticator) Authenticate(ctx context.Context, token string) (ctxutil.Identity, error) {
	claims, err := a.Verify(ctx, token)
	if err != nil {
		return ctxutil.Identity{}, err
	}

	userID, err := a.userID(claims)
	if err != nil {
		return ctxutil.Identity{}, err
	}

	id := ctxutil.Identity{
		UserID:    userID,
		Issuer:    claims.Issuer,
		ExpiresAt: claims.ExpiresAt,
	}

	if a.mapping.TenantID != "" {
		if v, ok := claims.Get(a.mapping.TenantID); ok {
			if s, ok := v.(string); ok {
				id.TenantID = s
			}
		}
	}

	if a.mapping.Roles != "" {
		if v, ok := claims.Get(a.mapping.Roles); ok {
			if roles, err := toStringSlice(v); err == nil {
				id.Roles = roles
			}
		}
	}

	if a.mapping.Permissions != "" {
		if v, ok := claims.Get(a.mapping.Permissions); ok {
			if perms, err := toStringSlice(v); err == nil {
				id.Permissions = perms
			}
		}
	}

	return id, nil
}

func (a *Authenticator) userID(claims *VerifiedClaims) (string, error) {
	v, ok := claims.Get(a.mapping.UserID)
	if !ok {
		return "", fmt.Errorf("extract user id: %w", ErrMissingSubject)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("extract user id: %w", ErrMissingSubject)
	}
	return s, nil
}

func (a *Authenticator) parseOptions() []jwt.ParseOption {
	opts := []jwt.ParseOption{
		jwt.WithVerify(false),
		jwt.WithValidate(true),
		jwt.WithIssuer(a.issuer),
		jwt.WithAudience(a.audience),
		jwt.WithAcceptableSkew(a.leeway),
		jwt.WithClock(jwt.ClockFunc(a.now)),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	}

	if a.nbfPolicy == NotBeforeKey {
		opts = append(opts,
			jwt.WithResetValidators(true),
			jwt.WithValidator(jwt.IsIssuedAtValid()),
			jwt.WithValidator(jwt.IsExpirationValid()),
		)
	}

	return opts
}

func (a *Authenticator) checkKeyNotBefore(ctx context.Context, key jwks.SigningKey) error {
	if a.nbfPolicy == NotBeforeToken || key.NotBefore == nil {
		return nil
	}
	if a.now().Add(a.leeway).Before(*key.NotBefore) {
		slog.DebugContext(ctx, "signing key not yet valid",
			slog.String("kid", key.KeyID),
			slog.Time("nbf", *key.NotBefore),
		)
		return fmt.Errorf("validate token: signing key %q: %w", key.KeyID, ErrTokenNotYetValid)
	}
	return nil
}

// parseKeyID reads the kid from the protected header of a compact JWS
// without touching the payload or signature segments.
func parseKeyID(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("parse token: %w: expected three segments", ErrMalformedToken)
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("parse token header: %w: %v", ErrMalformedToken, err)
	}

	hdr := jws.NewHeaders()
	if err := json.Unmarshal(raw, hdr); err != nil {
		return "", fmt.Errorf("parse token header: %w: %v", ErrMalformedToken, err)
	}

	kid, ok := hdr.KeyID()
	if !ok || kid == "" {
		return "", fmt.Errorf("parse token header: %w: missing kid", ErrMalformedToken)
	}
	return kid, nil
}

func verifySignature(key jwks.SigningKey, token string) error {
	pub, err := key.Key()
	if err != nil {
		return fmt.Errorf("verify token: %w", err)
	}

	if _, err := jws.Verify([]byte(token), jws.WithKey(jwa.RS256(), pub)); err != nil {
		return fmt.Errorf("verify token with key %q: %w", key.KeyID, ErrInvalidSignature)
	}
	return nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.TokenExpiredError()):
		return fmt.Errorf("validate token: %w", ErrTokenExpired)
	case errors.Is(err, jwt.TokenNotYetValidError()),
		errors.Is(err, jwt.InvalidIssuedAtError()):
		return fmt.Errorf("validate token: %w", ErrTokenNotYetValid)
	case errors.Is(err, jwt.InvalidIssuerError()):
		return fmt.Errorf("validate token: %w", ErrInvalidIssuer)
	case errors.Is(err, jwt.InvalidAudienceError()):
		return fmt.Errorf("validate token: %w", ErrInvalidAudience)
	case errors.Is(err, jwt.MissingRequiredClaimError()):
		return fmt.Errorf("validate token: %w", ErrMissingExpiration)
	default:
		return fmt.Errorf("parse token: %w: %v", ErrMalformedToken, err)
	}
}

func newVerifiedClaims(kid string, tok jwt.Token) *VerifiedClaims {
	c := &VerifiedClaims{KeyID: kid, token: tok}
	c.Subject, _ = tok.Subject()
	c.Issuer, _ = tok.Issuer()
	c.Audience, _ = tok.Audience()
	c.ExpiresAt, _ = tok.Expiration()
	c.NotBefore, _ = tok.NotBefore()
	c.IssuedAt, _ = tok.IssuedAt()
	return c
}

// getNestedClaim retrieves a claim value using dot notation path (e.g., "realm_access.roles").
func getNestedClaim(tok jwt.Token, path string) (any, bool) {
	if path == "" || tok == nil {
		return nil, false
	}

	parts := strings.Split(path, ".")

	var current any
	if err := tok.Get(parts[0], &current); err != nil {
		return nil, false
	}

	for _, part := range parts[1:] {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// toStringSlice converts a claim value to []string for roles/permissions.
func toStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case []string:
		return val, nil
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result, nil
	case string:
		return strings.Fields(val), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to []string", v)
	}
}
