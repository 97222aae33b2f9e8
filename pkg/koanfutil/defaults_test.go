package koanfutil

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/knadh/koanf/v2"
)

type claimsConfig struct {
	UserID string `koanf:"user_id"`
	Roles  string `koanf:"roles"`
}

type Common struct {
	Region string `koanf:"region"`
}

type authConfig struct {
	Common   `koanf:",squash"`
	JWKSURL  string        `koanf:"jwks_url"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
	Prefetch bool          `koanf:"prefetch"`
	Audience []string      `koanf:"audience"`
	Claims   claimsConfig  `koanf:"claims"`
	Extra    *claimsConfig `koanf:"extra"`
	Ignored  string        `koanf:"-"`
	Untagged string
}

func TestWithDefaults(t *testing.T) {
	t.Parallel()

	defaults := authConfig{
		Common:   Common{Region: "eu-west-1"},
		CacheTTL: 15 * time.Minute,
		Prefetch: true,
		Audience: []string{"mealplan"},
		Claims:   claimsConfig{UserID: "sub"},
		Ignored:  "x",
		Untagged: "y",
	}

	got, err := WithDefaults(defaults).Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	want := map[string]any{
		"region":    "eu-west-1",
		"cache_ttl": 15 * time.Minute,
		"prefetch":  true,
		"audience":  []string{"mealplan"},
		"claims":    map[string]any{"user_id": "sub"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Read() mismatch (-want +got):\n%s", diff)
	}
}

func TestWithDefaults_Koanf(t *testing.T) {
	t.Parallel()

	k := koanf.New(".")
	if err := k.Load(WithDefaults(authConfig{
		CacheTTL: time.Minute,
		Extra:    &claimsConfig{Roles: "realm_access.roles"},
	}), nil); err != nil {
		t.Fatalf("Load defaults: %v", err)
	}

	if got := k.Get("cache_ttl"); got != time.Minute {
		t.Errorf("cache_ttl = %v, want 1m", got)
	}
	if got := k.String("extra.roles"); got != "realm_access.roles" {
		t.Errorf("extra.roles = %q", got)
	}
	if k.Exists("jwks_url") {
		t.Error("zero value jwks_url should not be set")
	}
	if k.Exists("claims") {
		t.Error("empty nested struct should not be set")
	}
}

func TestWithDefaults_NotStruct(t *testing.T) {
	t.Parallel()

	if _, err := WithDefaults(42).Read(); err == nil {
		t.Error("Read() expected error for non-struct")
	}
}

func TestWithDefaults_NilPointer(t *testing.T) {
	t.Parallel()

	got, err := WithDefaults[*authConfig](nil).Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Read() = %v, want empty", got)
	}
}

func TestWithDefaults_ReadBytes(t *testing.T) {
	t.Parallel()

	_, err := WithDefaults(authConfig{}).ReadBytes()
	if !errors.Is(err, ErrReadBytesUnsupported) {
		t.Errorf("ReadBytes() error = %v, want %v", err, ErrReadBytesUnsupported)
	}
}
