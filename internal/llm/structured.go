package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Object is a decoded JSON object whose fields are decoded lazily, so a
// single mistyped key does not discard the rest of the response.
type Object map[string]json.RawMessage

// AsObject decodes raw as a JSON object.
func AsObject(raw json.RawMessage) (Object, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("expected JSON object")
	}
	var obj Object
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// AsArray decodes raw as a JSON array of raw elements.
func AsArray(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("expected JSON array")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Has reports whether key is present and not null.
func (o Object) Has(key string) bool {
	v, ok := o[key]
	return ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// Field decodes key into T. ok is false when the key is absent, null or of
// the wrong type.
func Field[T any](o Object, key string) (T, bool) {
	var v T
	if !o.Has(key) {
		return v, false
	}
	if err := json.Unmarshal(o[key], &v); err != nil {
		return v, false
	}
	return v, true
}

// FirstField tries each key in order and returns the first that decodes.
func FirstField[T any](o Object, keys ...string) (T, bool) {
	for _, k := range keys {
		if v, ok := Field[T](o, k); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}
