// Package grpchealth aggregates dependency probes into the gRPC health
// status served by connectrpc.com/grpchealth.
//
// Registered checkers are probed in parallel every Interval. Each checker's
// result is published under its own name; the overall status (service "")
// and every service passed to NewAggregator are serving only while all
// checkers pass.
package grpchealth

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
)

// HealthChecker checks the readiness of a dependency.
type HealthChecker interface {
	// Check returns true if the dependency is ready.
	// The context carries the configured timeout.
	Check(ctx context.Context) bool
}

// HealthCheckerFunc allows simple functions to be used as HealthChecker.
type HealthCheckerFunc func(ctx context.Context) bool

// Check implements HealthChecker.
func (f HealthCheckerFunc) Check(ctx context.Context) bool {
	return f(ctx)
}

// Config holds configuration for the health aggregator.
type Config struct {
	// Interval between health check cycles.
	Interval time.Duration `koanf:"interval"`

	// Timeout for each individual health check.
	Timeout time.Duration `koanf:"timeout"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Interval: 10 * time.Second,
		Timeout:  5 * time.Second,
	}
}

// Validate checks Interval and Timeout.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidInterval
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// Aggregator probes registered health checkers and updates gRPC health status.
type Aggregator struct {
	cfg      Config
	checker  *grpchealth.StaticChecker
	services []string

	mu       sync.RWMutex
	checkers map[string]HealthChecker
	results  map[string]bool
	serving  bool
}

// NewAggregator creates an aggregator. services are the RPC service names
// whose status follows the aggregate, e.g. "mealplan.v1.MealService".
// Everything starts NotServing until the first check cycle completes.
func NewAggregator(cfg Config, services ...string) *Aggregator {
	checker := grpchealth.NewStaticChecker()
	checker.SetStatus("", grpchealth.StatusNotServing)
	for _, svc := range services {
		checker.SetStatus(svc, grpchealth.StatusNotServing)
	}

	return &Aggregator{
		cfg:      cfg,
		checker:  checker,
		services: services,
		checkers: make(map[string]HealthChecker),
		results:  make(map[string]bool),
	}
}

// Register adds a health checker under name.
func (a *Aggregator) Register(name string, checker HealthChecker) error {
	if name == "" {
		return fmt.Errorf("register health checker: %w", ErrEmptyName)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.checkers[name]; exists {
		return fmt.Errorf("register health checker %q: %w", name, ErrDuplicateName)
	}

	a.checkers[name] = checker
	a.checker.SetStatus(name, grpchealth.StatusNotServing)
	return nil
}

// Handler returns the gRPC health endpoint.
// Mount on your HTTP mux: mux.Handle(aggregator.Handler())
func (a *Aggregator) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	return grpchealth.NewHandler(a.checker, opts...)
}

// ReadyHandler is a plain HTTP readiness probe: 200 while serving, 503 otherwise.
func (a *Aggregator) ReadyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if !a.IsServing() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not serving\n"))
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
}

// Run probes all checkers immediately and then every Interval until ctx is done.
func (a *Aggregator) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	a.runChecks(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.runChecks(ctx)
		}
	}
}

// IsServing returns the current aggregate health status.
func (a *Aggregator) IsServing() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.serving
}

// Results returns the outcome of the last check cycle per checker.
func (a *Aggregator) Results() map[string]bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return maps.Clone(a.results)
}

func (a *Aggregator) runChecks(ctx context.Context) {
	a.mu.RLock()
	checkers := maps.Clone(a.checkers)
	a.mu.RUnlock()

	results := make(map[string]bool, len(checkers))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, checker := range checkers {
		wg.Go(func() {
			checkCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
			defer cancel()

			healthy := a.safeCheck(checkCtx, name, checker)

			mu.Lock()
			results[name] = healthy
			mu.Unlock()
		})
	}
	wg.Wait()

	a.update(ctx, results)
}

func (a *Aggregator) safeCheck(ctx context.Context, name string, checker HealthChecker) (healthy bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "health check panicked",
				slog.String("check", name),
				slog.String("panic", fmt.Sprint(r)),
			)
			healthy = false
		}
	}()

	return checker.Check(ctx)
}

func (a *Aggregator) update(ctx context.Context, results map[string]bool) {
	serving := true
	for name, healthy := range results {
		a.checker.SetStatus(name, status(healthy))
		if !healthy {
			serving = false
		}
	}

	a.mu.Lock()
	changed := a.serving != serving
	previous := a.results
	a.serving = serving
	a.results = results
	a.mu.Unlock()

	a.checker.SetStatus("", status(serving))
	for _, svc := range a.services {
		a.checker.SetStatus(svc, status(serving))
	}

	for name, healthy := range results {
		if was, ok := previous[name]; ok && was == healthy {
			continue
		}
		if !healthy {
			slog.WarnContext(ctx, "health check failing", slog.String("check", name))
		}
	}
	if changed {
		slog.InfoContext(ctx, "health status changed", slog.Bool("serving", serving))
	}
}

func status(healthy bool) grpchealth.Status {
	if healthy {
		return grpchealth.StatusServing
	}
	return grpchealth.StatusNotServing
}
