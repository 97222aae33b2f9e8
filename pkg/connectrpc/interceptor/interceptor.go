// Package interceptor builds the standard interceptor chain for Connect RPC services.
package interceptor

import (
	"fmt"
	"log/slog"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"

	"github.com/deepworx/mealplan/pkg/connectrpc/deadline"
	"github.com/deepworx/mealplan/pkg/connectrpc/errors"
	"github.com/deepworx/mealplan/pkg/connectrpc/jwtauth"
	"github.com/deepworx/mealplan/pkg/connectrpc/logging"
	"github.com/deepworx/mealplan/pkg/connectrpc/recovery"
	"github.com/deepworx/mealplan/pkg/connectrpc/requestid"
	"github.com/deepworx/mealplan/pkg/connectrpc/validation"
)

// Options configures the interceptor chain.
type Options struct {
	deadlineCfg  *deadline.Config
	requestIDCfg *requestid.Config
	logger       *slog.Logger
}

// Option configures the interceptor builder.
type Option func(*Options)

// WithDeadline overrides the default deadline configuration.
func WithDeadline(cfg deadline.Config) Option {
	return func(o *Options) {
		o.deadlineCfg = &cfg
	}
}

// WithRequestID overrides the default request ID configuration.
func WithRequestID(cfg requestid.Config) Option {
	return func(o *Options) {
		o.requestIDCfg = &cfg
	}
}

// WithLogger sets the logger of the recovery, logging and errors interceptors.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.logger = l
	}
}

// BuildDefault creates the interceptor chain for unauthenticated services:
// recovery, deadline, requestid, otel, logging, validation, errors.
func BuildDefault(opts ...Option) ([]connect.Interceptor, error) {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return buildChain(o, nil)
}

// BuildDefaultWithAuth creates the interceptor chain with bearer authentication:
// recovery, deadline, requestid, otel, logging, jwtauth, validation, errors.
func BuildDefaultWithAuth(auth *jwtauth.Authenticator, opts ...Option) ([]connect.Interceptor, error) {
	if auth == nil {
		return nil, fmt.Errorf("build interceptors: authenticator is required")
	}
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return buildChain(o, auth)
}

func buildChain(o *Options, auth *jwtauth.Authenticator) ([]connect.Interceptor, error) {
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	interceptors := make([]connect.Interceptor, 0, 8)

	// Recovery is outermost so it sees panics from every other interceptor.
	interceptors = append(interceptors, recovery.NewInterceptor(recovery.WithLogger(logger)))

	deadlineCfg := deadline.DefaultConfig()
	if o.deadlineCfg != nil {
		deadlineCfg = *o.deadlineCfg
	}
	deadlineInterceptor, err := deadline.NewInterceptor(deadlineCfg)
	if err != nil {
		return nil, fmt.Errorf("build interceptors: %w", err)
	}
	interceptors = append(interceptors, deadlineInterceptor)

	requestIDCfg := requestid.DefaultConfig()
	if o.requestIDCfg != nil {
		requestIDCfg = *o.requestIDCfg
	}
	interceptors = append(interceptors, requestid.NewInterceptor(requestIDCfg))

	otelInterceptor, err := otelconnect.NewInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create otel interceptor: %w", err)
	}
	interceptors = append(interceptors, otelInterceptor)

	// Logging sits outside auth so rejected requests are logged too.
	interceptors = append(interceptors, logging.NewInterceptor(logging.WithLogger(logger)))

	if auth != nil {
		interceptors = append(interceptors, jwtauth.NewInterceptor(auth))
	}

	interceptors = append(interceptors, validation.NewInterceptor())

	// Errors is innermost so handler errors are mapped before anything logs them.
	interceptors = append(interceptors, errors.NewInterceptor(errors.WithLogger(logger)))

	return interceptors, nil
}
