package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/deepworx/mealplan/pkg/connectrpc/jwtauth"
	"github.com/deepworx/mealplan/pkg/postgres"
)

const testYAML = `
log:
  level: debug
  format: text
auth:
  jwks_url: https://idp.example.com/.well-known/jwks.json
  issuer: https://idp.example.com
  audience: mealplan
  cache_ttl: 5m
  not_before_policy: token
  claims:
    tenant_id: org.id
uploads:
  bucket: meal-images
  region: eu-central-1
server:
  addr: ":9090"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeFile(t, "config.yaml", testYAML), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	wantAuth := jwtauth.DefaultConfig()
	wantAuth.JWKSURL = "https://idp.example.com/.well-known/jwks.json"
	wantAuth.Issuer = "https://idp.example.com"
	wantAuth.Audience = "mealplan"
	wantAuth.CacheTTL = 5 * time.Minute
	wantAuth.NotBeforePolicy = jwtauth.NotBeforeToken
	wantAuth.Claims.TenantID = "org.id"

	if diff := cmp.Diff(wantAuth, cfg.Auth); diff != "" {
		t.Errorf("auth mismatch (-want +got):\n%s", diff)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Uploads.URLExpiration != 5*time.Minute {
		t.Errorf("uploads.url_expiration = %v, want default 5m", cfg.Uploads.URLExpiration)
	}
	if diff := cmp.Diff(postgres.DefaultConfig(), cfg.Postgres); diff != "" {
		t.Errorf("postgres mismatch (-want +got):\n%s", diff)
	}
	if !cfg.InMemory() {
		t.Error("InMemory() = false without a dsn")
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Parallel()

	environ := []string{
		"MEALPLAN_SERVER__ADDR=:7070",
		"MEALPLAN_AUTH__LEEWAY=30s",
		"MEALPLAN_POSTGRES__DSN=postgres://localhost/mealplan",
		"MEALPLAN_POSTGRES__MAX_CONNS=20",
		"MEALPLAN_UPLOADS__USE_PATH_STYLE=true",
		"OTHER_SERVER__ADDR=:1",
	}

	cfg, err := Load(writeFile(t, "config.yaml", testYAML), environ)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":7070" {
		t.Errorf("server.addr = %q, want %q", cfg.Server.Addr, ":7070")
	}
	if cfg.Auth.Leeway != 30*time.Second {
		t.Errorf("auth.leeway = %v, want 30s", cfg.Auth.Leeway)
	}
	if cfg.Postgres.MaxConns != 20 || cfg.InMemory() {
		t.Errorf("postgres = %+v", cfg.Postgres)
	}
	if !cfg.Uploads.UsePathStyle {
		t.Error("uploads.use_path_style = false, want true")
	}
}

func TestLoad_ResolvesReferences(t *testing.T) {
	t.Parallel()

	secret := writeFile(t, "dsn", "postgres://app:s3cret@db/mealplan\n")
	environ := []string{
		"MEALPLAN_POSTGRES__DSN=file://" + secret,
		"MEALPLAN_AUTH__AUDIENCE=env://IDP_AUDIENCE",
		"IDP_AUDIENCE=mealplan-prod",
	}

	cfg, err := Load(writeFile(t, "config.yaml", testYAML), environ)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Postgres.DSN != "postgres://app:s3cret@db/mealplan" {
		t.Errorf("postgres.dsn = %q", cfg.Postgres.DSN)
	}
	if cfg.Auth.Audience != "mealplan-prod" {
		t.Errorf("auth.audience = %q", cfg.Auth.Audience)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		noFile  bool
		environ []string
		wantErr error
	}{
		{
			name:    "no auth settings",
			noFile:  true,
			environ: []string{"MEALPLAN_UPLOADS__BUCKET=meal-images"},
			wantErr: jwtauth.ErrJWKSURLRequired,
		},
		{
			name:    "empty addr",
			environ: []string{"MEALPLAN_SERVER__ADDR="},
			wantErr: ErrAddrRequired,
		},
		{
			name: "inconsistent pool",
			environ: []string{
				"MEALPLAN_POSTGRES__DSN=postgres://localhost/mealplan",
				"MEALPLAN_POSTGRES__MAX_CONNS=1",
				"MEALPLAN_POSTGRES__MIN_CONNS=5",
			},
			wantErr: postgres.ErrInvalidPoolSize,
		},
		{
			name:    "missing env reference",
			environ: []string{"MEALPLAN_AUTH__ISSUER=env://NOT_SET"},
		},
		{
			name: "missing file",
			path: filepath.Join(os.TempDir(), "mealplan-does-not-exist.yaml"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := tt.path
			if path == "" && !tt.noFile {
				path = writeFile(t, "config.yaml", testYAML)
			}

			_, err := Load(path, tt.environ)
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "MEALPLAN_SERVER__ADDR", want: "server.addr"},
		{in: "MEALPLAN_AUTH__CLAIMS__TENANT_ID", want: "auth.claims.tenant_id"},
		{in: "MEALPLAN_LOG__ADD_SOURCE", want: "log.add_source"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, val := envKey(tt.in, "v")
			if got != tt.want || val != "v" {
				t.Errorf("envKey(%q) = %q, %v; want %q", tt.in, got, val, tt.want)
			}
		})
	}
}
