package postgrest_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fivetwenty-io/postgrestx/pkg/postgrest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNetwork = errors.New("connection refused")

func TestNormalizeError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		resp     *postgrest.Response
		expected postgrest.Error
	}{
		{
			name:     "error field",
			resp:     &postgrest.Response{Status: 404, Data: map[string]any{"error": "Not found"}},
			expected: postgrest.Error{Status: 404, Message: "Not found"},
		},
		{
			name:     "string body",
			resp:     &postgrest.Response{Status: 500, Data: "boom"},
			expected: postgrest.Error{Status: 500, Message: "boom"},
		},
		{
			name:     "empty object",
			resp:     &postgrest.Response{Status: 400, Data: map[string]any{}},
			expected: postgrest.Error{Status: 400, Message: postgrest.DefaultErrorMessage},
		},
		{
			name: "full postgrest payload",
			resp: &postgrest.Response{Status: 409, Data: map[string]any{
				"code":    "23505",
				"message": "duplicate key value violates unique constraint",
				"error":   "ignored",
				"details": "Key (id)=(1) already exists.",
				"hint":    nil,
			}},
			expected: postgrest.Error{
				Status:  409,
				Code:    "23505",
				Message: "duplicate key value violates unique constraint",
				Details: "Key (id)=(1) already exists.",
			},
		},
		{
			name: "non-string message falls back to error",
			resp: &postgrest.Response{Status: 400, Data: map[string]any{
				"message": 42,
				"error":   "bad",
				"details": map[string]any{"field": "x"},
				"code":    7,
			}},
			expected: postgrest.Error{Status: 400, Message: "bad", Details: map[string]any{"field": "x"}},
		},
		{
			name:     "number body",
			resp:     &postgrest.Response{Status: 502, Data: float64(1)},
			expected: postgrest.Error{Status: 502, Message: postgrest.DefaultErrorMessage},
		},
		{
			name:     "nil body",
			resp:     &postgrest.Response{Status: 503},
			expected: postgrest.Error{Status: 503, Message: postgrest.DefaultErrorMessage},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := postgrest.NormalizeError(tt.resp)
			assert.Same(t, tt.resp, got.Response)

			got.Response = nil
			assert.Equal(t, tt.expected, *got)
		})
	}
}

func TestError_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "boom (status: 500)", (&postgrest.Error{Status: 500, Message: "boom"}).Error())
	assert.Equal(t, "dup (status: 409, code: 23505)", (&postgrest.Error{Status: 409, Code: "23505", Message: "dup"}).Error())
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("selecting rows: %w", &postgrest.Error{Status: 404})

	tests := []struct {
		name     string
		check    func(error) bool
		err      error
		expected bool
	}{
		{name: "not found wrapped", check: postgrest.IsNotFound, err: wrapped, expected: true},
		{name: "not found other status", check: postgrest.IsNotFound, err: &postgrest.Error{Status: 400}, expected: false},
		{name: "not found plain error", check: postgrest.IsNotFound, err: errNetwork, expected: false},
		{name: "unauthorized", check: postgrest.IsUnauthorized, err: &postgrest.Error{Status: 401}, expected: true},
		{name: "forbidden", check: postgrest.IsForbidden, err: &postgrest.Error{Status: 403}, expected: true},
		{name: "conflict status", check: postgrest.IsConflict, err: &postgrest.Error{Status: 409}, expected: true},
		{name: "conflict code", check: postgrest.IsConflict, err: &postgrest.Error{Status: 400, Code: postgrest.CodeUniqueViolation}, expected: true},
		{name: "conflict nil", check: postgrest.IsConflict, err: nil, expected: false},
		{name: "singularity", check: postgrest.IsSingularityViolation, err: &postgrest.Error{Status: 406, Code: "PGRST116"}, expected: true},
		{name: "singularity other code", check: postgrest.IsSingularityViolation, err: &postgrest.Error{Status: 406}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, tt.check(tt.err))
		})
	}
}

func TestAsError(t *testing.T) {
	t.Parallel()

	pgErr, ok := postgrest.AsError(fmt.Errorf("ctx: %w", &postgrest.Error{Status: 418, Message: "teapot"}))
	require.True(t, ok)
	assert.Equal(t, "teapot", pgErr.Message)

	_, ok = postgrest.AsError(errNetwork)
	assert.False(t, ok)
}
