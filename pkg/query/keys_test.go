package query_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/fivetwenty-io/postgrestx/pkg/postgrest"
	"github.com/fivetwenty-io/postgrestx/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStableStringify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{name: "sorts keys", input: map[string]any{"b": 2, "a": 1}, expected: `{"a":1,"b":2}`},
		{name: "preserves arrays", input: []int{3, 1, 2}, expected: `[3,1,2]`},
		{
			name:     "sorts nested keys",
			input:    map[string]any{"z": map[string]any{"y": true, "x": nil}, "a": []any{map[string]any{"d": 1, "c": 2}}},
			expected: `{"a":[{"c":2,"d":1}],"z":{"x":null,"y":true}}`,
		},
		{
			name:     "struct fields follow json names",
			input:    struct{ Zeta, Alpha string }{Zeta: "z", Alpha: "a"},
			expected: `{"Alpha":"a","Zeta":"z"}`,
		},
		{name: "keeps large integers exact", input: map[string]any{"id": int64(9007199254740993)}, expected: `{"id":9007199254740993}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := query.StableStringify(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := query.StableStringify(func() {})
	require.Error(t, err)
}

func TestTableKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, query.Key{"postgrest", "table", "people"}, query.TableKey("people", nil))
	assert.Equal(t, query.TableKey("people", nil), query.TableKey("people", (*query.ListArgs)(nil)))

	limit := 20
	key := query.TableKey("people", &query.ListArgs{Select: "id,name", Limit: &limit})
	assert.Equal(t, query.Key{"postgrest", "table", "people", `{"limit":20,"select":"id,name"}`}, key)
	assert.True(t, key.HasPrefix(query.TableKey("people", nil)))
	assert.False(t, key.HasPrefix(query.TableKey("tasks", nil)))
	assert.False(t, query.TableKey("people", nil).HasPrefix(key))
}

func TestTableViewKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, query.Key{"postgrest", "table", "people", "list"}, query.TableViewKey("people", query.ViewList, nil))

	list := query.TableViewKey("people", query.ViewList, &query.ListArgs{Select: "id"})
	sel := query.TableViewKey("people", query.ViewSelect, postgrest.NewQueryOptions().WithSelect("id"))

	assert.Equal(t, query.Key{"postgrest", "table", "people", "list", `{"select":"id"}`}, list)
	assert.NotEqual(t, list, sel)
	assert.NotEqual(t, list.StorageKey(), sel.StorageKey())
	assert.True(t, list.HasPrefix(query.TableKey("people", nil)))
	assert.True(t, sel.HasPrefix(query.TableKey("people", nil)))
	assert.True(t, query.MatchesPrefix(sel.StorageKey(), query.TableKey("people", nil).StorageKey()))
}

func TestRPCKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, query.Key{"postgrest", "rpc", "health"}, query.RPCKey("health", nil, nil))

	first := query.RPCKey("fn", map[string]any{"b": 2, "a": 1}, map[string]any{"z": 3, "y": 2})
	second := query.RPCKey("fn", map[string]any{"a": 1, "b": 2}, map[string]any{"y": 2, "z": 3})
	assert.Equal(t, first, second)
	assert.Equal(t, query.Key{"postgrest", "rpc", "fn", `{"a":1,"b":2}`, `{"y":2,"z":3}`}, first)

	withOptions := query.RPCKey("fn", nil, &postgrest.RPCOptions{Method: "GET"})
	assert.Equal(t, query.Key{"postgrest", "rpc", "fn", `{"method":"GET"}`}, withOptions)
	assert.True(t, withOptions.HasPrefix(query.RPCKey("fn", nil, nil)))
}

func TestKey_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `["postgrest","table","people"]`, query.TableKey("people", nil).String())
}

func TestKey_StorageKey(t *testing.T) {
	t.Parallel()

	natsKey := regexp.MustCompile(`^[-/_=.a-zA-Z0-9]+$`)

	prefix := query.TableKey("people", nil).StorageKey()
	assert.Equal(t, "postgrest.table.people", prefix)

	full := query.TableKey("people", map[string]any{"select": "id"}).StorageKey()
	assert.Regexp(t, natsKey, full)
	assert.True(t, query.MatchesPrefix(full, prefix))
	assert.Len(t, full, len(prefix)+1+32)

	// Deterministic and parameter sensitive.
	assert.Equal(t, full, query.TableKey("people", map[string]any{"select": "id"}).StorageKey())
	assert.NotEqual(t, full, query.TableKey("people", map[string]any{"select": "name"}).StorageKey())

	// Unsafe names are encoded rather than passed through.
	odd := query.TableKey("weird table.name", nil).StorageKey()
	assert.Regexp(t, natsKey, odd)
	assert.Len(t, strings.Split(odd, "."), 3)
	assert.NotEqual(t, query.TableKey("_x", nil).StorageKey(), "postgrest.table._x")
}

func TestMatchesPrefix(t *testing.T) {
	t.Parallel()

	assert.True(t, query.MatchesPrefix("postgrest.table.people", "postgrest.table.people"))
	assert.True(t, query.MatchesPrefix("postgrest.table.people.abc", "postgrest.table.people"))
	assert.False(t, query.MatchesPrefix("postgrest.table.peoples", "postgrest.table.people"))
	assert.True(t, query.MatchesPrefix("anything", ""))
}
