// Package serialization defines the codec boundary between the record
// store's opaque byte values and application objects. The record store only
// crosses this boundary at interception and merge-policy call sites; all
// storage, index bookkeeping, and persistence works on raw bytes.
package serialization

import (
	"encoding/json"
	"fmt"
)

// Codec converts between application objects and their serialized form.
type Codec interface {
	// Encode serializes an application object.
	Encode(obj any) ([]byte, error)

	// Decode deserializes into an application object.
	Decode(data []byte) (any, error)
}

// JSONCodec is the default codec. Values are JSON documents decoded into
// generic Go values (map[string]any, []any, float64, string, bool, nil).
type JSONCodec struct{}

// Encode implements Codec.
func (JSONCodec) Encode(obj any) ([]byte, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return data, nil
}

// Decode implements Codec.
func (JSONCodec) Decode(data []byte) (any, error) {
	var obj any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return obj, nil
}
