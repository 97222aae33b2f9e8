// Command mealplan serves the meal planner API.
//
//	mealplan -config /etc/mealplan/config.yaml
//
// See package config for the settings and their MEALPLAN_* overrides.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"connectrpc.com/connect"

	"github.com/deepworx/mealplan/pkg/config"
	"github.com/deepworx/mealplan/pkg/connectrpc/interceptor"
	"github.com/deepworx/mealplan/pkg/connectrpc/jwtauth"
	"github.com/deepworx/mealplan/pkg/grpchealth"
	"github.com/deepworx/mealplan/pkg/jwks"
	"github.com/deepworx/mealplan/pkg/meals"
	"github.com/deepworx/mealplan/pkg/meals/mealsconnect"
	"github.com/deepworx/mealplan/pkg/otel"
	"github.com/deepworx/mealplan/pkg/postgres"
	"github.com/deepworx/mealplan/pkg/shutdown"
	"github.com/deepworx/mealplan/pkg/slogutil"
	"github.com/deepworx/mealplan/pkg/uploads"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(context.Background(), *configPath); err != nil {
		slog.Error("mealplan stopped", slogutil.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) (err error) {
	cfg, err := config.Load(configPath, os.Environ())
	if err != nil {
		return err
	}

	if err := slogutil.Setup(cfg.Log); err != nil {
		return err
	}

	defer releaseOnError(ctx, cfg.Server.ShutdownTimeout, &err)

	if err := otel.Setup(ctx, cfg.Otel); err != nil {
		return err
	}

	resolver, err := jwks.NewResolver(cfg.Auth.ResolverConfig())
	if err != nil {
		return err
	}
	selector := jwks.NewSelector(resolver)

	auth, err := jwtauth.NewAuthenticator(ctx, cfg.Auth, jwtauth.WithKeyFinder(selector))
	if err != nil {
		return err
	}

	store, err := uploads.New(ctx, cfg.Uploads)
	if err != nil {
		return err
	}

	health := grpchealth.NewAggregator(cfg.Health, mealsconnect.MealServiceName)
	if err := health.Register("jwks", jwks.NewHealthChecker(selector, cfg.Auth.JWKSURL)); err != nil {
		return err
	}

	repo, uow, err := openRepository(ctx, cfg, health)
	if err != nil {
		return err
	}

	interceptors, err := interceptor.BuildDefaultWithAuth(auth,
		interceptor.WithDeadline(cfg.Deadline),
		interceptor.WithRequestID(cfg.RequestID),
	)
	if err != nil {
		return err
	}

	svc := meals.NewService(repo, uow, store)

	mux := http.NewServeMux()
	mux.Handle(mealsconnect.NewHandler(svc, connect.WithInterceptors(interceptors...)))
	mux.Handle(health.Handler())
	mux.Handle("GET /readyz", health.ReadyHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// gRPC clients need HTTP/2 without TLS behind a terminating proxy.
	protocols := new(http.Protocols)
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		Protocols:         protocols,
	}

	serveCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	healthCtx, stopHealth := context.WithCancel(serveCtx)
	go func() {
		_ = health.Run(healthCtx)
	}()
	shutdown.Register("health", func(context.Context) error {
		stopHealth()
		return nil
	})

	shutdown.Register("http", shutdown.HTTPServer(srv))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cancel(fmt.Errorf("serve http: %w", err))
		}
	}()

	slog.InfoContext(ctx, "mealplan listening",
		slog.String("addr", cfg.Server.Addr),
		slog.Bool("in_memory", cfg.InMemory()),
	)

	err = shutdown.WaitForSignalWithTimeout(serveCtx, cfg.Server.ShutdownTimeout)
	if cause := context.Cause(serveCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return errors.Join(cause, err)
	}
	return err
}

// releaseOnError runs the shutdown handlers registered so far when run fails
// before serving, so telemetry is flushed and the pool closed.
func releaseOnError(ctx context.Context, timeout time.Duration, errp *error) {
	if *errp == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := shutdown.Shutdown(ctx); err != nil {
		*errp = errors.Join(*errp, err)
	}
}

// openRepository returns the PostgreSQL repository, or the in-memory one when
// no DSN is configured.
func openRepository(ctx context.Context, cfg config.Config, health *grpchealth.Aggregator) (meals.Repository, postgres.UnitOfWork, error) {
	if cfg.InMemory() {
		slog.WarnContext(ctx, "postgres dsn not set, meals are kept in memory")
		return meals.NewMemoryRepository(), postgres.NewInMemoryUnitOfWork(), nil
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}

	repo := meals.NewPostgresRepository(pool)
	if cfg.Postgres.Migrate {
		if err := repo.Migrate(ctx); err != nil {
			return nil, nil, err
		}
	}

	if err := health.Register("postgres", postgres.NewHealthChecker(pool)); err != nil {
		return nil, nil, err
	}

	return repo, postgres.NewUnitOfWork(pool), nil
}
