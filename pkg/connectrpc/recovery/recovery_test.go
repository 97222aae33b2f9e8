package recovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"connectrpc.com/connect"

	"github.com/deepworx/mealplan/pkg/ctxutil"
	"github.com/deepworx/mealplan/pkg/slogutil"
)

func newTestInterceptor(t *testing.T) (connect.Interceptor, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	logger, err := slogutil.New(&buf, slogutil.Config{Level: "info", Format: "json"})
	if err != nil {
		t.Fatalf("slogutil.New() error = %v", err)
	}
	return NewInterceptor(WithLogger(logger)), &buf
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	return rec
}

func TestInterceptor_WrapUnary_Panic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		panicValue any
		wantPanic  string
	}{
		{name: "string", panicValue: "something went wrong", wantPanic: "something went wrong"},
		{name: "error", panicValue: errors.New("error panic"), wantPanic: "error panic"},
		{name: "int", panicValue: 42, wantPanic: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ic, buf := newTestInterceptor(t)
			wrapped := ic.WrapUnary(func(_ context.Context, _ connect.AnyRequest) (connect.AnyResponse, error) {
				panic(tt.panicValue)
			})

			ctx := ctxutil.WithRequestID(context.Background(), "req-1")
			ctx = ctxutil.WithIdentity(ctx, ctxutil.Identity{UserID: "user-1"})

			resp, err := wrapped(ctx, &mockRequest{procedure: "/mealplan.v1.MealService/CreateMeal"})
			if resp != nil {
				t.Error("expected nil response")
			}

			var connectErr *connect.Error
			if !errors.As(err, &connectErr) {
				t.Fatalf("expected *connect.Error, got %T", err)
			}
			if connectErr.Code() != connect.CodeInternal {
				t.Errorf("code = %v, want %v", connectErr.Code(), connect.CodeInternal)
			}
			if connectErr.Message() != "internal error" {
				t.Errorf("message = %q, want %q", connectErr.Message(), "internal error")
			}

			rec := lastRecord(t, buf)
			if rec["level"] != "ERROR" || rec["msg"] != "panic recovered" {
				t.Errorf("record = %v", rec)
			}
			if rec["panic"] != tt.wantPanic {
				t.Errorf("panic = %v, want %q", rec["panic"], tt.wantPanic)
			}
			if rec["request_id"] != "req-1" || rec["user_id"] != "user-1" {
				t.Errorf("request_id = %v, user_id = %v", rec["request_id"], rec["user_id"])
			}
			if stack, _ := rec["stack"].(string); !strings.Contains(stack, "recovery") {
				t.Errorf("stack should mention the recovery package, got %q", stack)
			}
		})
	}
}

func TestInterceptor_WrapUnary_NoPanic(t *testing.T) {
	t.Parallel()

	ic, buf := newTestInterceptor(t)
	want := errors.New("plain failure")
	wrapped := ic.WrapUnary(func(_ context.Context, _ connect.AnyRequest) (connect.AnyResponse, error) {
		return &mockResponse{}, want
	})

	resp, err := wrapped(context.Background(), &mockRequest{procedure: "/x/Y"})
	if !errors.Is(err, want) {
		t.Errorf("error = %v, want %v", err, want)
	}
	if resp == nil {
		t.Error("expected response")
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log output: %s", buf.String())
	}
}

func TestInterceptor_WrapStreamingHandler_Panic(t *testing.T) {
	t.Parallel()

	ic, buf := newTestInterceptor(t)
	wrapped := ic.WrapStreamingHandler(func(_ context.Context, _ connect.StreamingHandlerConn) error {
		panic("stream panic")
	})

	err := wrapped(context.Background(), &mockStreamingConn{procedure: "/x/Stream"})
	if connect.CodeOf(err) != connect.CodeInternal {
		t.Errorf("code = %v, want %v", connect.CodeOf(err), connect.CodeInternal)
	}
	if rec := lastRecord(t, buf); rec["procedure"] != "/x/Stream" {
		t.Errorf("procedure = %v", rec["procedure"])
	}
}

type mockRequest struct {
	connect.AnyRequest
	procedure string
}

func (r *mockRequest) Spec() connect.Spec {
	return connect.Spec{Procedure: r.procedure}
}

type mockResponse struct {
	connect.AnyResponse
}

type mockStreamingConn struct {
	connect.StreamingHandlerConn
	procedure string
}

func (c *mockStreamingConn) Spec() connect.Spec {
	return connect.Spec{Procedure: c.procedure}
}
