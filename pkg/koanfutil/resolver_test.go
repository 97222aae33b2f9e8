package koanfutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/knadh/koanf/v2"
)

func TestResolver(t *testing.T) {
	t.Parallel()

	env := map[string]string{"JWKS_URL": "https://idp.example.com/.well-known/jwks.json"}
	lookup := func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}

	tests := []struct {
		name      string
		input     map[string]any
		files     map[string]string
		want      map[string]any
		wantErr   error
		errSubstr string
	}{
		{
			name:  "plain values unchanged",
			input: map[string]any{"server": map[string]any{"addr": ":8080"}, "count": 3},
			want:  map[string]any{"server": map[string]any{"addr": ":8080"}, "count": 3},
		},
		{
			name:  "file reference trimmed",
			input: map[string]any{"postgres": map[string]any{"dsn": "file://{tmpdir}/dsn"}},
			files: map[string]string{"dsn": "  postgres://u:p@db/mealplan \n"},
			want:  map[string]any{"postgres": map[string]any{"dsn": "postgres://u:p@db/mealplan"}},
		},
		{
			name:  "env reference",
			input: map[string]any{"auth": map[string]any{"jwks_url": "env://JWKS_URL"}},
			want:  map[string]any{"auth": map[string]any{"jwks_url": "https://idp.example.com/.well-known/jwks.json"}},
		},
		{
			name:  "list elements",
			input: map[string]any{"auth": map[string]any{"audiences": []any{"env://JWKS_URL", "static"}}},
			want:  map[string]any{"auth": map[string]any{"audiences": []any{"https://idp.example.com/.well-known/jwks.json", "static"}}},
		},
		{
			name:      "missing file",
			input:     map[string]any{"postgres": map[string]any{"dsn": "file://{tmpdir}/nonexistent"}},
			errSubstr: "postgres.dsn",
		},
		{
			name:    "unset env",
			input:   map[string]any{"uploads": map[string]any{"bucket": "env://MEAL_BUCKET"}},
			wantErr: ErrEnvNotSet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			for name, content := range tt.files {
				if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
					t.Fatalf("write test file: %v", err)
				}
			}

			k := koanf.New(".")
			if err := k.Load(mapProvider(withDir(tt.input, dir)), nil); err != nil {
				t.Fatalf("load config: %v", err)
			}

			err := k.Load(Resolver(k, WithLookupEnv(lookup)), nil)
			if tt.wantErr != nil || tt.errSubstr != "" {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				if tt.errSubstr != "" && !strings.Contains(err.Error(), tt.errSubstr) {
					t.Errorf("error %q should contain %q", err, tt.errSubstr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if diff := cmp.Diff(tt.want, k.Raw()); diff != "" {
				t.Errorf("resolved config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolver_ReadBytes(t *testing.T) {
	t.Parallel()

	_, err := Resolver(koanf.New(".")).ReadBytes()
	if !errors.Is(err, ErrReadBytesUnsupported) {
		t.Errorf("ReadBytes() error = %v, want %v", err, ErrReadBytesUnsupported)
	}
}

func withDir(m map[string]any, dir string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = strings.ReplaceAll(val, "{tmpdir}", dir)
		case map[string]any:
			out[k] = withDir(val, dir)
		default:
			out[k] = v
		}
	}
	return out
}

// mapProvider loads a fixed map into koanf.
type mapProvider map[string]any

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, nil
}
