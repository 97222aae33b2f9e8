// Package validation rejects Connect requests whose message fails its own checks.
package validation

import (
	"context"
	"errors"

	"connectrpc.com/connect"
)

// Validator is implemented by request messages that can check themselves.
// Validate may normalize the message in place.
type Validator interface {
	Validate() error
}

// NewInterceptor creates an interceptor that calls Validate on unary request
// messages implementing Validator and answers CodeInvalidArgument on failure.
// Messages without a Validate method pass through.
func NewInterceptor() connect.Interceptor {
	return &interceptor{}
}

type interceptor struct{}

func (i *interceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		if err := validate(req.Any()); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (i *interceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *interceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		return next(ctx, &streamingConn{StreamingHandlerConn: conn})
	}
}

// streamingConn validates every received message.
type streamingConn struct {
	connect.StreamingHandlerConn
}

func (c *streamingConn) Receive(msg any) error {
	if err := c.StreamingHandlerConn.Receive(msg); err != nil {
		return err
	}
	return validate(msg)
}

func validate(msg any) error {
	v, ok := msg.(Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		var connectErr *connect.Error
		if errors.As(err, &connectErr) {
			return connectErr
		}
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	return nil
}
