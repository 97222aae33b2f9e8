// Package errors maps handler errors to Connect codes.
package errors

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/deepworx/mealplan/pkg/ctxutil"
	"github.com/deepworx/mealplan/pkg/slogutil"
)

// ConnectCoder is implemented by domain errors that know their Connect code.
// The error message is sent to the caller unchanged.
type ConnectCoder interface {
	ConnectCode() connect.Code
}

// Option configures the errors interceptor.
type Option func(*interceptor)

// WithLogger sets the logger unmapped errors are reported to.
// Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(i *interceptor) {
		i.logger = l
	}
}

// NewInterceptor creates an interceptor mapping handler errors, in order:
//  1. context.Canceled → CodeCanceled
//  2. context.DeadlineExceeded → CodeDeadlineExceeded
//  3. ConnectCoder → its code
//  4. *connect.Error → unchanged
//  5. anything else → CodeInternal "internal error"
//
// Errors of the last kind are logged with the request id because their
// detail never reaches the caller.
func NewInterceptor(opts ...Option) connect.Interceptor {
	i := &interceptor{}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

type interceptor struct {
	logger *slog.Logger
}

func (i *interceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		resp, err := next(ctx, req)
		if err != nil {
			return resp, i.handle(ctx, req.Spec().Procedure, err)
		}
		return resp, nil
	}
}

func (i *interceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *interceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if err := next(ctx, conn); err != nil {
			return i.handle(ctx, conn.Spec().Procedure, err)
		}
		return nil
	}
}

func (i *interceptor) handle(ctx context.Context, procedure string, err error) *connect.Error {
	mapped, ok := mapError(err)
	if ok {
		return mapped
	}

	logger := i.logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []slog.Attr{
		slog.String("procedure", procedure),
		slogutil.Err(err),
	}
	if reqID, ok := ctxutil.RequestID(ctx); ok {
		attrs = append(attrs, slog.String("request_id", reqID))
	}
	logger.LogAttrs(ctx, slog.LevelError, "unhandled rpc error", attrs...)

	return mapped
}

// mapError returns the Connect error for err and whether err was recognized.
func mapError(err error) (*connect.Error, bool) {
	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err), true
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err), true
	}

	var coder ConnectCoder
	if errors.As(err, &coder) {
		return connect.NewError(coder.ConnectCode(), err), true
	}

	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr, true
	}

	return connect.NewError(connect.CodeInternal, errors.New("internal error")), false
}
