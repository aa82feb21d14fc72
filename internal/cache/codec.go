package cache

import (
	"encoding/json"

	apperrors "github.com/collabify/cachekit/internal/errors"
)

// Encode serializes a computed result for storage.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.NewSerializationError("result is not JSON-representable", "VALUE_ENCODE_FAILED", err)
	}
	return data, nil
}

// Decode parses a stored payload into T.
func Decode[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, apperrors.NewSerializationError("cached payload could not be decoded", "VALUE_DECODE_FAILED", err)
	}
	return v, nil
}
