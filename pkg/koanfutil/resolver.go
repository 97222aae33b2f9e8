// Package koanfutil provides koanf providers for struct defaults and secret references.
package koanfutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/v2"
)

const (
	fileScheme = "file://"
	envScheme  = "env://"
)

type resolver struct {
	k         *koanf.Koanf
	lookupEnv func(string) (string, bool)
}

// ResolverOption configures Resolver.
type ResolverOption func(*resolver)

// WithLookupEnv overrides how env:// references are looked up.
// Defaults to os.LookupEnv.
func WithLookupEnv(fn func(string) (string, bool)) ResolverOption {
	return func(r *resolver) {
		r.lookupEnv = fn
	}
}

// Resolver returns a koanf.Provider that replaces secret references in the
// string values already loaded into k:
//
//	file:///run/secrets/db-password  →  trimmed contents of the file
//	env://PGPASSWORD                 →  value of $PGPASSWORD
//
// Load it last:
//
//	k.Load(file.Provider(path), yaml.Parser())
//	k.Load(koanfutil.Resolver(k), nil)
func Resolver(k *koanf.Koanf, opts ...ResolverOption) koanf.Provider {
	r := &resolver{k: k, lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read returns the config of k with all references resolved.
func (r *resolver) Read() (map[string]any, error) {
	return r.resolveMap("", r.k.Raw())
}

// ReadBytes is not supported for this provider.
func (r *resolver) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesUnsupported
}

func (r *resolver) resolveMap(prefix string, m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for key, val := range m {
		v, err := r.resolveValue(prefix+key, val)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func (r *resolver) resolveValue(path string, val any) (any, error) {
	switch v := val.(type) {
	case string:
		s, err := r.resolveString(v)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", path, err)
		}
		return s, nil
	case map[string]any:
		return r.resolveMap(path+".", v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := r.resolveValue(fmt.Sprintf("%s[%d]", path, i), item)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

func (r *resolver) resolveString(s string) (string, error) {
	switch {
	case strings.HasPrefix(s, fileScheme):
		path := strings.TrimPrefix(s, fileScheme)
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read file %s: %w", path, err)
		}
		return strings.TrimSpace(string(data)), nil
	case strings.HasPrefix(s, envScheme):
		name := strings.TrimPrefix(s, envScheme)
		v, ok := r.lookupEnv(name)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrEnvNotSet, name)
		}
		return v, nil
	default:
		return s, nil
	}
}
