package jwtauth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/deepworx/mealplan/pkg/ctxutil"
	"github.com/deepworx/mealplan/pkg/jwks"
)

// NewInterceptor creates a Connect RPC interceptor that validates JWT tokens.
// It extracts the token from the Authorization header, validates it, and injects
// the caller identity into the request context using ctxutil.WithIdentity.
func NewInterceptor(auth *Authenticator) connect.Interceptor {
	return &interceptor{auth: auth}
}

type interceptor struct {
	auth *Authenticator
}

func (i *interceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}

		ctx, err := i.authenticate(ctx, req.Header())
		if err != nil {
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
		ctx, err := i.authenticate(ctx, conn.RequestHeader())
		if err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

func (i *interceptor) authenticate(ctx context.Context, headers http.Header) (context.Context, error) {
	authHeader := headers.Get("Authorization")
	if authHeader == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, ErrMissingToken)
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return nil, connect.NewError(connect.CodeUnauthenticated, ErrInvalidTokenFormat)
	}
	token := strings.TrimPrefix(authHeader, bearerPrefix)

	id, err := i.auth.Authenticate(ctx, token)
	if err != nil {
		return nil, i.mapToConnectError(err)
	}

	return ctxutil.WithIdentity(ctx, id), nil
}

func (i *interceptor) mapToConnectError(err error) *connect.Error {
	switch {
	case errors.Is(err, jwks.ErrNetwork),
		errors.Is(err, jwks.ErrMalformedResponse):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeUnauthenticated, err)
	}
}
