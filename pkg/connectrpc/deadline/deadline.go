// Package deadline bounds how long a Connect RPC handler may run.
package deadline

import (
	"context"
	"fmt"
	"time"

	"connectrpc.com/connect"
)

// Config holds configuration for the deadline interceptor.
type Config struct {
	// DefaultTimeout is applied when the incoming context has no deadline.
	DefaultTimeout time.Duration `koanf:"default_timeout"`

	// MaxTimeout caps client supplied deadlines. Zero disables the cap.
	MaxTimeout time.Duration `koanf:"max_timeout"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 30 * time.Second,
		MaxTimeout:     2 * time.Minute,
	}
}

// Validate checks the timeouts.
func (c Config) Validate() error {
	if c.DefaultTimeout <= 0 {
		return ErrInvalidDefaultTimeout
	}
	if c.MaxTimeout > 0 && c.MaxTimeout < c.DefaultTimeout {
		return ErrInvalidMaxTimeout
	}
	return nil
}

// NewInterceptor creates an interceptor that applies DefaultTimeout to
// handlers called without a deadline and caps longer deadlines to MaxTimeout.
func NewInterceptor(cfg Config) (connect.Interceptor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("create deadline interceptor: %w", err)
	}
	return &interceptor{
		defaultTimeout: cfg.DefaultTimeout,
		maxTimeout:     cfg.MaxTimeout,
		now:            time.Now,
	}, nil
}

type interceptor struct {
	defaultTimeout time.Duration
	maxTimeout     time.Duration
	now            func() time.Time
}

func (i *interceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}

		ctx, cancel := i.bound(ctx)
		defer cancel()

		return next(ctx, req)
	}
}

func (i *interceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *interceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		ctx, cancel := i.bound(ctx)
		defer cancel()

		return next(ctx, conn)
	}
}

func (i *interceptor) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithTimeout(ctx, i.defaultTimeout)
	}

	if i.maxTimeout > 0 {
		if limit := i.now().Add(i.maxTimeout); deadline.After(limit) {
			return context.WithDeadline(ctx, limit)
		}
	}
	return ctx, func() {}
}
