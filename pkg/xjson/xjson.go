// Package xjson is the single JSON codec import site for stored payloads and queue messages.
package xjson

import (
	stdjson "encoding/json"

	gjson "github.com/goccy/go-json"
)

// RawMessage stays compatible with encoding/json's RawMessage.
type RawMessage = stdjson.RawMessage

func Marshal(v any) ([]byte, error) {
	return gjson.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return gjson.Unmarshal(data, v)
}

// MarshalObject encodes an opaque payload, storing nil maps as an empty object.
func MarshalObject(v map[string]any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}

	return gjson.Marshal(v)
}

// UnmarshalObject decodes a stored object payload. Empty input yields nil.
func UnmarshalObject(data []byte) (map[string]any, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var out map[string]any
	if err := gjson.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// MarshalIndent is used for human-readable on-disk state.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return gjson.MarshalIndent(v, prefix, indent)
}
