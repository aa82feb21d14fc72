package cache

import (
	"fmt"
	"math"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/collabify/cachekit/internal/errors"
)

var keyFormat = regexp.MustCompile(`^get_project_details:[0-9a-f]{16}$`)

func TestDeriveKey_Format(t *testing.T) {
	key, err := DeriveKey("get_project_details", "fbff1d57")
	require.NoError(t, err)
	assert.Regexp(t, keyFormat, key)
}

func TestDeriveKey_Idempotent(t *testing.T) {
	args := []any{"P1", 42, map[string]any{"b": 1, "a": []any{"x", 2.5}}, Named("include_tasks", true)}

	first, err := DeriveKey("op", args...)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		again, err := DeriveKey("op", args...)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDeriveKey_NamedArgOrderIrrelevant(t *testing.T) {
	a, err := DeriveKey("op", "P1", Named("limit", 10), Named("status", "done"))
	require.NoError(t, err)
	b, err := DeriveKey("op", Named("status", "done"), "P1", Named("limit", 10))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeriveKey_MapInsertionOrderIrrelevant(t *testing.T) {
	m1 := map[string]any{}
	m1["z"] = 1
	m1["a"] = 2
	m2 := map[string]any{}
	m2["a"] = 2
	m2["z"] = 1

	a, err := DeriveKey("op", m1)
	require.NoError(t, err)
	b, err := DeriveKey("op", m2)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeriveKey_Distinguishes(t *testing.T) {
	tests := []struct {
		name string
		a    []any
		b    []any
	}{
		{"different value", []any{"P1"}, []any{"P2"}},
		{"different position", []any{"a", "b"}, []any{"b", "a"}},
		{"positional vs named", []any{"P1"}, []any{Named("id", "P1")}},
		{"different named value", []any{Named("n", 1)}, []any{Named("n", 2)}},
		{"string vs number", []any{"1"}, []any{1}},
		{"extra argument", []any{"P1"}, []any{"P1", nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := DeriveKey("op", tt.a...)
			require.NoError(t, err)
			b, err := DeriveKey("op", tt.b...)
			require.NoError(t, err)
			assert.NotEqual(t, a, b)
		})
	}
}

func TestDeriveKey_OperationNameScopesKey(t *testing.T) {
	a, _ := DeriveKey("get_project_details", "X")
	b, _ := DeriveKey("get_user_info", "X")
	assert.NotEqual(t, a, b)
}

func TestDeriveKey_NoCollisions(t *testing.T) {
	const n = 20000
	seen := make(map[string][]any, n)
	for i := 0; i < n; i++ {
		args := []any{fmt.Sprintf("project-%d", i), i % 7, Named("page", i / 7)}
		key, err := DeriveKey("op", args...)
		require.NoError(t, err)
		if prev, ok := seen[key]; ok {
			t.Fatalf("collision between %v and %v on %s", prev, args, key)
		}
		seen[key] = args
	}
}

func TestDeriveKey_SerializationError(t *testing.T) {
	tests := []struct {
		name string
		arg  any
	}{
		{"channel", make(chan int)},
		{"func", func() {}},
		{"NaN", math.NaN()},
		{"named channel", Named("c", make(chan int))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeriveKey("op", tt.arg)
			require.Error(t, err)
			assert.True(t, apperrors.IsSerialization(err))
		})
	}
}

func TestCanonical_Shape(t *testing.T) {
	data, err := Canonical("P1", Named("b", 2), Named("a", 1))
	require.NoError(t, err)
	assert.Equal(t, `{"args":["P1"],"kwargs":{"a":1,"b":2}}`, string(data))

	empty, err := Canonical()
	require.NoError(t, err)
	assert.Equal(t, `{"args":[],"kwargs":{}}`, string(empty))
}
