// Package logging writes one structured log record per Connect RPC.
package logging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/deepworx/mealplan/pkg/ctxutil"
	"github.com/deepworx/mealplan/pkg/slogutil"
)

// Option configures the logging interceptor.
type Option func(*interceptor)

// WithLogger sets the logger records are written to. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(i *interceptor) {
		i.logger = l
	}
}

// NewInterceptor creates an interceptor that logs every handled RPC.
// Server side failures (internal, unknown, unavailable, data loss, deadline
// exceeded) are logged at Warn, everything else at Info.
func NewInterceptor(opts ...Option) connect.Interceptor {
	i := &interceptor{now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

type interceptor struct {
	logger *slog.Logger
	now    func() time.Time
}

func (i *interceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}

		start := i.now()
		resp, err := next(ctx, req)
		i.log(ctx, req.Spec().Procedure, req.Peer().Addr, start, err)
		return resp, err
	}
}

func (i *interceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *interceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		start := i.now()
		err := next(ctx, conn)
		i.log(ctx, conn.Spec().Procedure, conn.Peer().Addr, start, err)
		return err
	}
}

func (i *interceptor) log(ctx context.Context, procedure, peer string, start time.Time, err error) {
	logger := i.logger
	if logger == nil {
		logger = slog.Default()
	}

	code := statusOf(err)
	attrs := []slog.Attr{
		slog.String("procedure", procedure),
		slog.String("status", code),
		slog.Duration("duration", i.now().Sub(start)),
	}
	if peer != "" {
		attrs = append(attrs, slog.String("peer", peer))
	}

	if reqID, ok := ctxutil.RequestID(ctx); ok {
		attrs = append(attrs, slog.String("request_id", reqID))
	}
	if id, ok := ctxutil.GetIdentity(ctx); ok {
		if id.UserID != "" {
			attrs = append(attrs, slog.String("user_id", id.UserID))
		}
		if id.TenantID != "" {
			attrs = append(attrs, slog.String("tenant_id", id.TenantID))
		}
	}

	if err == nil {
		logger.LogAttrs(ctx, slog.LevelInfo, "rpc completed", attrs...)
		return
	}

	attrs = append(attrs, slogutil.Err(err))
	level := slog.LevelInfo
	if isServerFault(err) {
		level = slog.LevelWarn
	}
	logger.LogAttrs(ctx, level, "rpc failed", attrs...)
}

func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr.Code().String()
	}
	return "unknown"
}

func isServerFault(err error) bool {
	switch connect.CodeOf(err) {
	case connect.CodeInternal, connect.CodeUnknown, connect.CodeUnavailable,
		connect.CodeDataLoss, connect.CodeDeadlineExceeded:
		return true
	}
	return false
}
