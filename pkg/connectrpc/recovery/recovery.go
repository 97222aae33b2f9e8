// Package recovery turns handler panics into internal Connect errors.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"connectrpc.com/connect"

	"github.com/deepworx/mealplan/pkg/ctxutil"
)

// Option configures the recovery interceptor.
type Option func(*interceptor)

// WithLogger sets the logger panics are reported to. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(i *interceptor) {
		i.logger = l
	}
}

// NewInterceptor creates an interceptor that recovers from handler panics,
// logs them with the stack, and returns connect.CodeInternal to the caller.
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
	return func(ctx context.Context, req connect.AnyRequest) (resp connect.AnyResponse, err error) {
		defer func() {
			if r := recover(); r != nil {
				resp, err = nil, i.recovered(ctx, req.Spec().Procedure, r)
			}
		}()
		return next(ctx, req)
	}
}

func (i *interceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *interceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = i.recovered(ctx, conn.Spec().Procedure, r)
			}
		}()
		return next(ctx, conn)
	}
}

func (i *interceptor) recovered(ctx context.Context, procedure string, r any) *connect.Error {
	logger := i.logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []slog.Attr{
		slog.String("procedure", procedure),
		slog.String("panic", fmt.Sprint(r)),
		slog.String("stack", string(debug.Stack())),
	}
	if reqID, ok := ctxutil.RequestID(ctx); ok {
		attrs = append(attrs, slog.String("request_id", reqID))
	}
	if userID, ok := ctxutil.UserID(ctx); ok {
		attrs = append(attrs, slog.String("user_id", userID))
	}

	logger.LogAttrs(ctx, slog.LevelError, "panic recovered", attrs...)

	return connect.NewError(connect.CodeInternal, errors.New("internal error"))
}
