package jwks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// KeyType is the JWK "kty" parameter.
type KeyType string

// Key types defined by RFC 7518 and RFC 8037.
const (
	KeyTypeRSA   KeyType = "RSA"
	KeyTypeEC    KeyType = "EC"
	KeyTypeOKP   KeyType = "OKP"
	KeyTypeOctet KeyType = "oct"
)

// UseSignature is the JWK "use" value for signature keys.
const UseSignature = "sig"

var errMissingKeys = errors.New(`missing "keys" field`)

// Document is a JSON Web Key Set as published by an identity provider.
type Document struct {
	Keys []JWK `json:"keys"`
}

// UnmarshalJSON decodes a key set. A missing or null "keys" field is an error.
// Individual entries that fail to decode are kept as invalid descriptors so one
// odd key does not hide the rest of the set.
func (d *Document) UnmarshalJSON(b []byte) error {
	var raw struct {
		Keys *[]json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Keys == nil {
		return errMissingKeys
	}

	keys := make([]JWK, 0, len(*raw.Keys))
	for _, entry := range *raw.Keys {
		var k JWK
		if err := json.Unmarshal(entry, &k); err != nil {
			k = JWK{decodeErr: err}
		}
		keys = append(keys, k)
	}
	d.Keys = keys
	return nil
}

// JWK is one published key descriptor. Only the parameters this package
// inspects are decoded; type-specific parameters are reached through Material.
type JWK struct {
	KeyID     string       `json:"kid,omitempty"`
	KeyType   KeyType      `json:"kty,omitempty"`
	Use       string       `json:"use,omitempty"`
	Algorithm string       `json:"alg,omitempty"`
	X5C       []string     `json:"x5c,omitempty"`
	NotBefore *NumericDate `json:"nbf,omitempty"`

	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`

	decodeErr error
}

// KeyMaterial is the type-specific half of a JWK. The concrete types are
// RSAMaterial, ECMaterial, OKPMaterial and SymmetricMaterial.
type KeyMaterial interface {
	KeyType() KeyType
}

// RSAMaterial holds the public RSA parameters of a JWK.
type RSAMaterial struct {
	N string
	E string
}

// KeyType implements KeyMaterial.
func (RSAMaterial) KeyType() KeyType { return KeyTypeRSA }

// ECMaterial holds the public elliptic curve parameters of a JWK.
type ECMaterial struct {
	Crv string
	X   string
	Y   string
}

// KeyType implements KeyMaterial.
func (ECMaterial) KeyType() KeyType { return KeyTypeEC }

// OKPMaterial holds the public octet key pair parameters of a JWK.
type OKPMaterial struct {
	Crv string
	X   string
}

// KeyType implements KeyMaterial.
func (OKPMaterial) KeyType() KeyType { return KeyTypeOKP }

// SymmetricMaterial marks a shared-secret key. The secret itself is never retained.
type SymmetricMaterial struct{}

// KeyType implements KeyMaterial.
func (SymmetricMaterial) KeyType() KeyType { return KeyTypeOctet }

// Material returns the type-specific parameters of k.
// Returns ErrUnsupportedKeyType for an unknown or missing kty, and the decode
// error for an entry that was not a JSON object of the expected shape.
func (k JWK) Material() (KeyMaterial, error) {
	if k.decodeErr != nil {
		return nil, fmt.Errorf("decode jwk: %w", k.decodeErr)
	}

	switch k.KeyType {
	case KeyTypeRSA:
		return RSAMaterial{N: k.N, E: k.E}, nil
	case KeyTypeEC:
		return ECMaterial{Crv: k.Crv, X: k.X, Y: k.Y}, nil
	case KeyTypeOKP:
		return OKPMaterial{Crv: k.Crv, X: k.X}, nil
	case KeyTypeOctet:
		return SymmetricMaterial{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, k.KeyType)
	}
}

// IsSigningKey reports whether k can verify RS256 tokens: use "sig", kty "RSA",
// a non-empty kid and at least one x5c certificate.
func (k JWK) IsSigningKey() bool {
	m, err := k.Material()
	if err != nil {
		return false
	}
	if _, ok := m.(RSAMaterial); !ok {
		return false
	}
	return k.Use == UseSignature && k.KeyID != "" && len(k.X5C) > 0
}

// NumericDate is a JSON numeric date (seconds since the epoch).
type NumericDate struct {
	time.Time
}

// UnmarshalJSON accepts integer or fractional seconds, bare or quoted.
func (d *NumericDate) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if string(b) == "null" {
		return nil
	}

	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("parse numeric date %q: %w", b, err)
	}

	sec, frac := math.Modf(f)
	d.Time = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	return nil
}

// MarshalJSON encodes d as integer seconds.
func (d NumericDate) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, d.Unix(), 10), nil
}
