// Package config loads the mealplan service configuration.
//
// Values are layered, later sources winning:
//
//  1. DefaultConfig
//  2. an optional YAML file
//  3. MEALPLAN_* environment variables, "__" separating sections
//     (MEALPLAN_AUTH__JWKS_URL sets auth.jwks_url)
//  4. file:// and env:// secret references, resolved last
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/deepworx/mealplan/pkg/connectrpc/deadline"
	"github.com/deepworx/mealplan/pkg/connectrpc/jwtauth"
	"github.com/deepworx/mealplan/pkg/connectrpc/requestid"
	"github.com/deepworx/mealplan/pkg/grpchealth"
	"github.com/deepworx/mealplan/pkg/koanfutil"
	"github.com/deepworx/mealplan/pkg/otel"
	"github.com/deepworx/mealplan/pkg/postgres"
	"github.com/deepworx/mealplan/pkg/slogutil"
	"github.com/deepworx/mealplan/pkg/uploads"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MEALPLAN_"

// ErrAddrRequired is returned when server.addr is empty.
var ErrAddrRequired = errors.New("server addr is required")

// Config is the complete service configuration.
type Config struct {
	Log       slogutil.Config   `koanf:"log"`
	Otel      otel.Config       `koanf:"otel"`
	Auth      jwtauth.Config    `koanf:"auth"`
	Uploads   uploads.Config    `koanf:"uploads"`
	Server    ServerConfig      `koanf:"server"`
	Deadline  deadline.Config   `koanf:"deadline"`
	RequestID requestid.Config  `koanf:"request_id"`
	Health    grpchealth.Config `koanf:"health"`

	// Postgres with an empty DSN keeps meals in memory.
	Postgres postgres.Config `koanf:"postgres"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`

	// ShutdownTimeout bounds the graceful drain after SIGINT or SIGTERM.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DefaultConfig returns a Config with sensible default values.
// auth.jwks_url, auth.issuer, auth.audience and uploads.bucket have no default.
func DefaultConfig() Config {
	return Config{
		Log:      slogutil.DefaultConfig(),
		Otel:     otel.DefaultConfig(),
		Auth:     jwtauth.DefaultConfig(),
		Uploads:  uploads.DefaultConfig(),
		Postgres: postgres.DefaultConfig(),
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Deadline:  deadline.DefaultConfig(),
		RequestID: requestid.DefaultConfig(),
		Health:    grpchealth.DefaultConfig(),
	}
}

// InMemory reports whether meals are kept in memory instead of PostgreSQL.
func (c Config) InMemory() bool {
	return c.Postgres.DSN == ""
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return ErrAddrRequired
	}

	type section struct {
		name     string
		validate func() error
	}
	sections := []section{
		{"log", c.Log.Validate},
		{"otel", c.Otel.Validate},
		{"auth", c.Auth.Validate},
		{"uploads", c.Uploads.Validate},
		{"deadline", c.Deadline.Validate},
		{"health", c.Health.Validate},
	}
	if !c.InMemory() {
		sections = append(sections, section{"postgres", c.Postgres.Validate})
	}

	for _, s := range sections {
		if err := s.validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and environ, a list of KEY=value pairs as returned by
// os.Environ.
func Load(path string, environ []string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(koanfutil.WithDefaults(DefaultConfig()), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
		EnvironFunc:   func() []string { return environ },
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Load(koanfutil.Resolver(k, koanfutil.WithLookupEnv(lookupIn(environ))), nil); err != nil {
		return Config{}, fmt.Errorf("resolve references: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKey maps MEALPLAN_AUTH__JWKS_URL to auth.jwks_url.
func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", "."), value
}

func lookupIn(environ []string) func(string) (string, bool) {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if name, val, ok := strings.Cut(kv, "="); ok {
			vars[name] = val
		}
	}
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}
