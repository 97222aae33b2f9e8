package koanfutil

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/knadh/koanf/v2"
)

// WithDefaults returns a koanf.Provider exposing the non-zero fields of a
// config struct under their `koanf` tag names. Nested structs become nested
// maps; anonymous fields and fields tagged `koanf:",squash"` are flattened
// into their parent.
//
//	k := koanf.New(".")
//	k.Load(koanfutil.WithDefaults(config.DefaultConfig()), nil)
func WithDefaults[T any](defaults T) koanf.Provider {
	return defaultsProvider[T]{defaults: defaults}
}

type defaultsProvider[T any] struct {
	defaults T
}

// Read converts the defaults struct to a map.
func (p defaultsProvider[T]) Read() (map[string]any, error) {
	v := reflect.ValueOf(p.defaults)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return map[string]any{}, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("koanfutil: expected struct, got %T", p.defaults)
	}

	out := make(map[string]any)
	collect(v, out)
	return out, nil
}

// ReadBytes is not supported for this provider.
func (p defaultsProvider[T]) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesUnsupported
}

func collect(v reflect.Value, out map[string]any) {
	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name, squash := parseTag(field)
		if name == "-" {
			continue
		}

		fv := v.Field(i)
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}

		if fv.Kind() == reflect.Struct && !isScalarStruct(fv.Type()) {
			if squash {
				collect(fv, out)
				continue
			}
			if name == "" {
				continue
			}
			nested := make(map[string]any)
			collect(fv, nested)
			if len(nested) > 0 {
				out[name] = nested
			}
			continue
		}

		if name == "" || isEmpty(fv) {
			continue
		}
		out[name] = fv.Interface()
	}
}

func parseTag(field reflect.StructField) (name string, squash bool) {
	tag := field.Tag.Get("koanf")
	name, opts, _ := strings.Cut(tag, ",")
	squash = opts == "squash" || (field.Anonymous && name == "")
	return name, squash
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	case reflect.Interface:
		return v.IsNil()
	default:
		return v.IsZero()
	}
}

// isScalarStruct reports struct types koanf treats as single values, such as time.Time.
func isScalarStruct(t reflect.Type) bool {
	return t.PkgPath() == "time"
}
