// Package store holds the key-value backends the cache facade runs on.
//
// Every backend implements the same four commands: GET, SET with expiry,
// KEYS by glob pattern and multi-key DEL. Expiry is enforced by the store,
// never by its callers.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("store: key not found")

// Store is the key-value contract the cache facade depends on.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key; the entry expires after ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Keys returns every live key matching a Redis-style glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Del removes the given keys and reports how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)
}

// EscapePattern escapes glob metacharacters so s matches itself literally.
func EscapePattern(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MatchPattern reports whether s matches pattern using the glob rules of
// the Redis KEYS command: '*', '?', '[abc]', '[^a]', '[a-z]' and '\' escapes.
func MatchPattern(pattern, s string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for len(pattern) > 1 && pattern[1] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if MatchPattern(pattern[1:], s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
			s = s[1:]
			pattern = pattern[1:]
		case '[':
			if len(s) == 0 {
				return false
			}
			rest, ok := matchClass(pattern[1:], s[0])
			if !ok {
				return false
			}
			pattern = rest
			s = s[1:]
		case '\\':
			if len(pattern) >= 2 {
				pattern = pattern[1:]
			}
			fallthrough
		default:
			if len(s) == 0 || pattern[0] != s[0] {
				return false
			}
			s = s[1:]
			pattern = pattern[1:]
		}
	}
	return len(s) == 0
}

// matchClass matches c against a bracket expression whose opening '[' has
// already been consumed and returns the pattern after the closing ']'.
func matchClass(pattern string, c byte) (string, bool) {
	negate := false
	if len(pattern) > 0 && pattern[0] == '^' {
		negate = true
		pattern = pattern[1:]
	}

	matched := false
	for {
		if len(pattern) == 0 {
			// unterminated class: Redis treats the end of pattern as ']'
			break
		}
		if pattern[0] == ']' {
			pattern = pattern[1:]
			break
		}
		if pattern[0] == '\\' && len(pattern) >= 2 {
			if pattern[1] == c {
				matched = true
			}
			pattern = pattern[2:]
			continue
		}
		if len(pattern) >= 3 && pattern[1] == '-' && pattern[2] != ']' {
			lo, hi := pattern[0], pattern[2]
			if lo > hi {
				lo, hi = hi, lo
			}
			if c >= lo && c <= hi {
				matched = true
			}
			pattern = pattern[3:]
			continue
		}
		if pattern[0] == c {
			matched = true
		}
		pattern = pattern[1:]
	}

	if negate {
		matched = !matched
	}
	return pattern, matched
}
