package jwks

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/deepworx/mealplan/pkg/slogutil"
)

// SigningKey is a usable RSA signing key derived from one JWK.
type SigningKey struct {
	// KeyID is the JWK kid.
	KeyID string

	// NotBefore is the JWK nbf, nil when the key did not publish one.
	NotBefore *time.Time

	// PublicKey is the leaf x5c certificate as a PEM CERTIFICATE block.
	PublicKey string
}

// Key parses the PEM certificate into an RS256 verification key.
// Returns ErrFormat if the certificate does not carry an RSA public key.
func (k SigningKey) Key() (jwk.Key, error) {
	key, err := jwk.ParseKey([]byte(k.PublicKey), jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse signing key %q: %w: %v", k.KeyID, ErrFormat, err)
	}

	var raw rsa.PublicKey
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("parse signing key %q: %w: not an rsa public key", k.KeyID, ErrFormat)
	}

	if err := key.Set(jwk.KeyIDKey, k.KeyID); err != nil {
		return nil, fmt.Errorf("set key id: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS256()); err != nil {
		return nil, fmt.Errorf("set algorithm: %w", err)
	}
	return key, nil
}

// KeySetFetcher returns the key set published at a JWKS URL.
// Implemented by Resolver.
type KeySetFetcher interface {
	FetchSigningKeySet(ctx context.Context, url string) (Document, error)
}

// Selector narrows a key set to RSA signing keys and looks them up by kid.
type Selector struct {
	fetcher KeySetFetcher
}

// NewSelector creates a Selector reading key sets from fetcher.
func NewSelector(fetcher KeySetFetcher) *Selector {
	return &Selector{fetcher: fetcher}
}

// ListSigningKeys returns the usable signing keys published at url in their
// original order. Entries whose leaf certificate cannot be read are skipped.
// Returns ErrNoKeys for an empty key set and ErrNoSigningKeys when no entry is
// usable. Fetch errors are returned unchanged.
func (s *Selector) ListSigningKeys(ctx context.Context, url string) ([]SigningKey, error) {
	doc, err := s.fetcher.FetchSigningKeySet(ctx, url)
	if err != nil {
		return nil, err
	}

	if len(doc.Keys) == 0 {
		return nil, fmt.Errorf("list signing keys: %w", ErrNoKeys)
	}

	keys := make([]SigningKey, 0, len(doc.Keys))
	for _, k := range doc.Keys {
		if !k.IsSigningKey() {
			slog.DebugContext(ctx, "skipping jwk",
				slog.String("kid", k.KeyID),
				slog.String("kty", string(k.KeyType)),
				slog.String("use", k.Use),
			)
			continue
		}

		pemCert, err := CertToPEM(k.X5C[0])
		if err != nil {
			slog.WarnContext(ctx, "skipping jwk with unreadable certificate",
				slog.String("kid", k.KeyID),
				slogutil.Err(err),
			)
			continue
		}

		sk := SigningKey{KeyID: k.KeyID, PublicKey: pemCert}
		if k.NotBefore != nil {
			nbf := k.NotBefore.Time
			sk.NotBefore = &nbf
		}
		keys = append(keys, sk)
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("list signing keys: %w", ErrNoSigningKeys)
	}

	return keys, nil
}

// FindSigningKey returns the first signing key whose kid equals kid.
// Returns an *UnknownKeyIDError when none matches.
func (s *Selector) FindSigningKey(ctx context.Context, url, kid string) (SigningKey, error) {
	keys, err := s.ListSigningKeys(ctx, url)
	if err != nil {
		return SigningKey{}, err
	}

	for _, k := range keys {
		if k.KeyID == kid {
			return k, nil
		}
	}

	return SigningKey{}, &UnknownKeyIDError{KeyID: kid}
}

// HealthChecker reports whether signing keys can be listed for a JWKS URL.
// Implements grpchealth.HealthChecker.
type HealthChecker struct {
	selector *Selector
	url      string
}

// NewHealthChecker creates a health checker for url.
func NewHealthChecker(selector *Selector, url string) *HealthChecker {
	return &HealthChecker{selector: selector, url: url}
}

// Check returns true if at least one signing key is available.
func (c *HealthChecker) Check(ctx context.Context) bool {
	_, err := c.selector.ListSigningKeys(ctx, c.url)
	return err == nil
}
