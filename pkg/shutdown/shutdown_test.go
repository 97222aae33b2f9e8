package shutdown

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func reset(t *testing.T) {
	t.Helper()
	mu.Lock()
	handlers = nil
	mu.Unlock()
}

func TestShutdown_LIFO(t *testing.T) {
	reset(t)

	var order []string
	for _, name := range []string{"otel", "postgres", "http"} {
		Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v, want nil", err)
	}

	if diff := cmp.Diff([]string{"http", "postgres", "otel"}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestShutdown_CollectsErrors(t *testing.T) {
	reset(t)

	errA := errors.New("error A")
	errB := errors.New("error B")
	ran := 0

	Register("a", func(context.Context) error { ran++; return errA })
	Register("ok", func(context.Context) error { ran++; return nil })
	Register("b", func(context.Context) error { ran++; return errB })

	err := Shutdown(context.Background())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("Shutdown() error = %v, want both errA and errB", err)
	}
	if !strings.Contains(err.Error(), "shutdown b: error B") {
		t.Errorf("error should name the failing handler, got %q", err)
	}
	if ran != 3 {
		t.Errorf("ran %d handlers, want 3", ran)
	}
}

func TestShutdown_LogsFailure(t *testing.T) {
	reset(t)

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	Register("postgres", func(context.Context) error { return errors.New("pool busy") })
	_ = Shutdown(context.Background())

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("unmarshal record %q: %v", buf.String(), err)
	}
	want := map[string]any{"handler": "postgres", "error": "pool busy"}
	got := map[string]any{"handler": rec["handler"], "error": rec["error"]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestShutdown_PassesContext(t *testing.T) {
	reset(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var got context.Context
	Register("ctx", func(ctx context.Context) error {
		got = ctx
		return nil
	})

	_ = Shutdown(ctx)

	if got != ctx {
		t.Error("handler did not receive the provided context")
	}
}

func TestShutdown_ClearsHandlers(t *testing.T) {
	reset(t)

	calls := 0
	Register("once", func(context.Context) error { calls++; return nil })

	_ = Shutdown(context.Background())
	_ = Shutdown(context.Background())

	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestShutdown_Empty(t *testing.T) {
	reset(t)

	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() with no handlers error = %v, want nil", err)
	}
}

func TestHTTPServer(t *testing.T) {
	reset(t)

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	Register("http", HTTPServer(srv.Config))
	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if _, err := http.Get(srv.URL); err == nil {
		t.Error("expected request to fail after server shutdown")
	}
}

func TestWaitForSignalWithTimeout_FreshContext(t *testing.T) {
	reset(t)

	var ctxErr error
	var deadline time.Time
	var hasDeadline bool
	Register("tracer", func(ctx context.Context) error {
		ctxErr = ctx.Err()
		deadline, hasDeadline = ctx.Deadline()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	timeout := 100 * time.Millisecond
	start := time.Now()
	if err := WaitForSignalWithTimeout(ctx, timeout); err != nil {
		t.Errorf("WaitForSignalWithTimeout() error = %v, want nil", err)
	}

	if ctxErr != nil {
		t.Errorf("handler received cancelled context: %v", ctxErr)
	}
	if !hasDeadline {
		t.Fatal("handler context should have a deadline")
	}
	if deadline.Before(start) || deadline.After(start.Add(timeout+50*time.Millisecond)) {
		t.Errorf("deadline %v not within %v of %v", deadline, timeout, start)
	}
}

func TestWaitForSignal_UsesDefaultTimeout(t *testing.T) {
	reset(t)

	var remaining time.Duration
	Register("tracer", func(ctx context.Context) error {
		d, _ := ctx.Deadline()
		remaining = time.Until(d)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = WaitForSignal(ctx)

	if remaining <= DefaultShutdownTimeout-time.Second || remaining > DefaultShutdownTimeout {
		t.Errorf("remaining = %v, want close to %v", remaining, DefaultShutdownTimeout)
	}
}
