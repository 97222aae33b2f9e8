// Package requestid propagates a per-request correlation id through Connect RPC handlers.
package requestid

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/deepworx/mealplan/pkg/ctxutil"
)

// Config holds configuration for the request ID interceptor.
type Config struct {
	// HeaderName is the header request IDs are read from and echoed in.
	// Defaults to "X-Request-ID".
	HeaderName string `koanf:"header_name"`

	// MaxLength is the longest accepted incoming id. Longer or otherwise
	// malformed ids are replaced by a generated one. Defaults to 128.
	MaxLength int `koanf:"max_length"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		HeaderName: "X-Request-ID",
		MaxLength:  128,
	}
}

// NewInterceptor creates an interceptor that takes the request ID from the
// configured header, or generates one, stores it via ctxutil.WithRequestID
// and echoes it in the response header.
func NewInterceptor(cfg Config) connect.Interceptor {
	def := DefaultConfig()
	if cfg.HeaderName == "" {
		cfg.HeaderName = def.HeaderName
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = def.MaxLength
	}
	return &interceptor{headerName: cfg.HeaderName, maxLength: cfg.MaxLength}
}

type interceptor struct {
	headerName string
	maxLength  int
}

func (i *interceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}

		id := i.requestID(req.Header())
		resp, err := next(ctxutil.WithRequestID(ctx, id), req)
		if err != nil {
			// resp may be a typed nil here.
			var connectErr *connect.Error
			if errors.As(err, &connectErr) {
				connectErr.Meta().Set(i.headerName, id)
			}
			return resp, err
		}
		resp.Header().Set(i.headerName, id)
		return resp, nil
	}
}

func (i *interceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *interceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		id := i.requestID(conn.RequestHeader())
		conn.ResponseHeader().Set(i.headerName, id)
		return next(ctxutil.WithRequestID(ctx, id), conn)
	}
}

func (i *interceptor) requestID(headers http.Header) string {
	if id := headers.Get(i.headerName); i.valid(id) {
		return id
	}
	return uuid.NewString()
}

// valid accepts non-empty ids of letters, digits and "-_.:" up to maxLength.
func (i *interceptor) valid(id string) bool {
	if id == "" || len(id) > i.maxLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}
