// Package jsoncodec is a Connect codec for plain Go structs encoded as JSON.
package jsoncodec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Name is registered under the "json" content subtype, replacing Connect's
// protojson codec for handlers and clients configured with it.
const Name = "json"

// Codec marshals messages with encoding/json. Unknown fields are rejected
// and an empty body decodes to the zero message.
type Codec struct{}

// Name implements connect.Codec.
func (Codec) Name() string {
	return Name
}

// Marshal implements connect.Codec.
func (Codec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", msg, err)
	}
	return data, nil
}

// Unmarshal implements connect.Codec.
func (Codec) Unmarshal(data []byte, msg any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(msg); err != nil {
		return fmt.Errorf("unmarshal %T: %w", msg, err)
	}
	return nil
}
