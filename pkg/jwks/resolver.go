// Package jwks resolves JSON Web Key Sets published by an identity provider
// and selects the RSA signing keys usable to verify bearer tokens.
package jwks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/deepworx/mealplan/pkg/slogutil"
	"github.com/deepworx/mealplan/pkg/tracing"
)

// Config holds configuration for the JWKS resolver.
type Config struct {
	// HTTPTimeout bounds a single JWKS fetch.
	// Defaults to 10 seconds if zero.
	HTTPTimeout time.Duration `koanf:"http_timeout"`

	// CacheTTL is how long a fetched key set is served before it is fetched again.
	// Zero keeps the first successful fetch for the lifetime of the process.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// MaxResponseBytes caps the accepted JWKS body size.
	// Defaults to 1 MiB if zero.
	MaxResponseBytes int64 `koanf:"max_response_bytes"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		HTTPTimeout:      10 * time.Second,
		CacheTTL:         15 * time.Minute,
		MaxResponseBytes: 1 << 20,
	}
}

// Resolver fetches key sets over HTTP and memoizes them in a Cache.
// Concurrent misses for the same URL share a single request.
type Resolver struct {
	client   *http.Client
	cache    *Cache
	timeout  time.Duration
	maxBytes int64
	metrics  *resolverMetrics

	group singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient overrides the HTTP client used for fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		r.client = c
	}
}

// WithCache injects the cache, e.g. to share it or to invalidate it from outside.
func WithCache(c *Cache) Option {
	return func(r *Resolver) {
		r.cache = c
	}
}

// NewResolver creates a Resolver from cfg.
func NewResolver(cfg Config, opts ...Option) (*Resolver, error) {
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	maxBytes := cfg.MaxResponseBytes
	if maxBytes == 0 {
		maxBytes = 1 << 20
	}

	metrics, err := newResolverMetrics()
	if err != nil {
		return nil, fmt.Errorf("create jwks resolver: %w", err)
	}

	r := &Resolver{
		timeout:  timeout,
		maxBytes: maxBytes,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.client == nil {
		r.client = &http.Client{Timeout: timeout}
	}
	if r.cache == nil {
		r.cache = NewCache(cfg.CacheTTL)
	}

	return r, nil
}

// Cache returns the cache backing r.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Invalidate forces the next FetchSigningKeySet for url to hit the network.
func (r *Resolver) Invalidate(url string) {
	r.cache.Invalidate(url)
}

// FetchSigningKeySet returns the key set published at url, from the cache when
// a live entry exists. Returns ErrNetwork when the endpoint cannot be fetched
// (including ctx cancellation) and ErrMalformedResponse when the body is not a key set.
func (r *Resolver) FetchSigningKeySet(ctx context.Context, url string) (Document, error) {
	if url == "" {
		return Document{}, fmt.Errorf("fetch jwks: %w", ErrURLRequired)
	}

	if doc, ok := r.cache.Get(url); ok {
		r.metrics.recordHit(ctx)
		return doc, nil
	}

	ch := r.group.DoChan(url, func() (any, error) {
		if doc, ok := r.cache.Get(url); ok {
			return doc, nil
		}

		// The shared fetch must not fail for every waiter because the
		// first caller went away.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		doc, err := r.fetch(fetchCtx, url)
		if err != nil {
			return Document{}, err
		}

		r.cache.Put(url, doc)
		return doc, nil
	})

	select {
	case <-ctx.Done():
		return Document{}, fmt.Errorf("fetch jwks from %s: %w: %w", url, ErrNetwork, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Document{}, res.Err
		}
		return res.Val.(Document).clone(), nil
	}
}

func (r *Resolver) fetch(ctx context.Context, url string) (Document, error) {
	return tracing.WithSpanResult(ctx, "jwks.fetch", func(ctx context.Context) (Document, error) {
		doc, outcome, err := r.doFetch(ctx, url)
		r.metrics.recordFetch(ctx, outcome)
		if err != nil {
			slog.WarnContext(ctx, "jwks fetch failed",
				slog.String("jwks_url", url),
				slog.String("outcome", outcome),
				slogutil.Err(err),
			)
			return Document{}, err
		}

		slog.DebugContext(ctx, "jwks fetched",
			slog.String("jwks_url", url),
			slog.Int("keys", len(doc.Keys)),
		)
		return doc, nil
	}, tracing.Attrs(attribute.String("jwks.url", url)))
}

func (r *Resolver) doFetch(ctx context.Context, url string) (Document, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Document{}, outcomeNetwork, fmt.Errorf("build jwks request for %s: %w: %w", url, ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Document{}, outcomeNetwork, fmt.Errorf("fetch jwks from %s: %w: %w", url, ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Document{}, outcomeNetwork, fmt.Errorf("fetch jwks from %s: %w: unexpected status %d", url, ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return Document{}, outcomeNetwork, fmt.Errorf("read jwks body from %s: %w: %w", url, ErrNetwork, err)
	}
	if int64(len(body)) > r.maxBytes {
		return Document{}, outcomeMalformed, fmt.Errorf("read jwks body from %s: %w: body exceeds %d bytes", url, ErrMalformedResponse, r.maxBytes)
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Document{}, outcomeMalformed, fmt.Errorf("decode jwks from %s: %w: %v", url, ErrMalformedResponse, err)
	}

	return doc, outcomeOK, nil
}
