package cache

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	apperrors "github.com/collabify/cachekit/internal/errors"
)

// NamedArg is a keyword argument. Named arguments are keyed by name, so the
// order they are passed in never changes the derived key.
type NamedArg struct {
	Name  string
	Value any
}

// Named builds a keyword argument for a memoized call.
func Named(name string, value any) NamedArg {
	return NamedArg{Name: name, Value: value}
}

type canonicalCall struct {
	Args   []any          `json:"args"`
	Kwargs map[string]any `json:"kwargs"`
}

func splitArgs(args []any) canonicalCall {
	call := canonicalCall{
		Args:   make([]any, 0, len(args)),
		Kwargs: make(map[string]any),
	}
	for _, a := range args {
		switch v := a.(type) {
		case NamedArg:
			call.Kwargs[v.Name] = v.Value
		case *NamedArg:
			call.Kwargs[v.Name] = v.Value
		default:
			call.Args = append(call.Args, a)
		}
	}
	return call
}

// Canonical returns the canonical JSON form of a call's arguments:
// {"args":[...],"kwargs":{...}} with every object's keys sorted.
func Canonical(args ...any) ([]byte, error) {
	data, err := json.Marshal(splitArgs(args))
	if err != nil {
		return nil, apperrors.NewSerializationError("arguments are not JSON-representable", "KEY_ENCODE_FAILED", err)
	}
	return data, nil
}

// DeriveKey returns "{name}:{digest}" where digest is the 64-bit xxhash of
// the canonical argument encoding, as 16 hex characters.
func DeriveKey(name string, args ...any) (string, error) {
	data, err := Canonical(args...)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%016x", name, xxhash.Sum64(data)), nil
}
