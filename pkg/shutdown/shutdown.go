// Package shutdown runs named cleanup handlers when the service stops.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/deepworx/mealplan/pkg/slogutil"
)

// DefaultShutdownTimeout is the default time allowed for graceful shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// Handler is called during shutdown with the provided context.
type Handler func(ctx context.Context) error

type entry struct {
	name string
	fn   Handler
}

var (
	mu       sync.Mutex
	handlers []entry
)

// Register adds a shutdown handler under name. Handlers run in LIFO order,
// so resources registered late (servers) stop before the ones they use (pools).
func Register(name string, h Handler) {
	mu.Lock()
	defer mu.Unlock()
	handlers = append(handlers, entry{name: name, fn: h})
}

// HTTPServer returns a Handler that drains srv.
func HTTPServer(srv *http.Server) Handler {
	return func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	}
}

// Shutdown executes all registered handlers in LIFO order and clears them.
// Every handler runs even if an earlier one fails; failures are joined.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	var errs []error
	for i := len(handlers) - 1; i >= 0; i-- {
		h := handlers[i]
		start := time.Now()
		if err := h.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "shutdown handler failed",
				slog.String("handler", h.name),
				slogutil.Err(err),
			)
			errs = append(errs, fmt.Errorf("shutdown %s: %w", h.name, err))
			continue
		}
		slog.DebugContext(ctx, "shutdown handler done",
			slog.String("handler", h.name),
			slog.Duration("duration", time.Since(start)),
		)
	}
	handlers = nil
	return errors.Join(errs...)
}

// WaitForSignal blocks until SIGINT or SIGTERM is received or ctx is done,
// then calls Shutdown with DefaultShutdownTimeout.
func WaitForSignal(ctx context.Context) error {
	return WaitForSignalWithTimeout(ctx, DefaultShutdownTimeout)
}

// WaitForSignalWithTimeout is WaitForSignal with a custom shutdown timeout.
// Handlers get a fresh context so a cancelled ctx does not cut cleanup short.
func WaitForSignalWithTimeout(ctx context.Context, timeout time.Duration) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	slog.InfoContext(ctx, "shutting down", slog.Duration("timeout", timeout))

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	return Shutdown(shutdownCtx)
}
