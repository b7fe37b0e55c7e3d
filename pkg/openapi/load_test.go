package openapi_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/fivetwenty-io/postgrestx/pkg/openapi"
	"github.com/fivetwenty-io/postgrestx/pkg/postgrest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePath = "testdata/openapi.sample.json"

var errOffline = errors.New("offline")

type fetcherFunc func(ctx context.Context, url string, headers map[string]string) (*postgrest.Response, error)

func (f fetcherFunc) Get(ctx context.Context, url string, headers map[string]string) (*postgrest.Response, error) {
	return f(ctx, url, headers)
}

func TestLoadSpec(t *testing.T) {
	t.Parallel()

	doc, err := openapi.LoadSpec(samplePath)
	require.NoError(t, err)

	version, ok := doc.Get("swagger").AsString()
	assert.True(t, ok)
	assert.Equal(t, "2.0", version)
}

func TestLoadSpec_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := openapi.LoadSpec(filepath.Join(dir, "missing.json"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"swagger": `), 0o600))

		doc, err := openapi.LoadSpec(path)
		require.ErrorIs(t, err, openapi.ErrParseSpec)
		assert.Contains(t, err.Error(), "failed to parse OpenAPI JSON at "+path+": ")
		assert.False(t, doc.IsDefined())
	})

	t.Run("not an object", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(dir, "array.json")
		require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o600))

		_, err := openapi.LoadSpec(path)
		require.ErrorIs(t, err, openapi.ErrNotAnObject)
	})
}

func TestFetchSpec(t *testing.T) {
	t.Parallel()

	raw, err := os.ReadFile(samplePath)
	require.NoError(t, err)

	t.Run("openapi content type keeps member order", func(t *testing.T) {
		t.Parallel()

		var accept string

		fetcher := fetcherFunc(func(ctx context.Context, url string, headers map[string]string) (*postgrest.Response, error) {
			accept = headers["Accept"]

			return &postgrest.Response{Status: http.StatusOK, Data: string(raw)}, nil
		})

		doc, err := openapi.FetchSpec(context.Background(), fetcher, "https://db.example.com/")
		require.NoError(t, err)
		assert.Equal(t, openapi.ContentTypeOpenAPI, accept)
		assert.Equal(t, []string{"people", "tasks", "empty", "status"}, doc.Get("definitions").Keys())
	})

	t.Run("decoded JSON body", func(t *testing.T) {
		t.Parallel()

		fetcher := fetcherFunc(func(ctx context.Context, url string, headers map[string]string) (*postgrest.Response, error) {
			return &postgrest.Response{Status: http.StatusOK, Data: map[string]any{"swagger": "2.0"}}, nil
		})

		doc, err := openapi.FetchSpec(context.Background(), fetcher, "https://db.example.com/")
		require.NoError(t, err)
		assert.Equal(t, []string{"swagger"}, doc.Keys())
	})

	t.Run("error status", func(t *testing.T) {
		t.Parallel()

		fetcher := fetcherFunc(func(ctx context.Context, url string, headers map[string]string) (*postgrest.Response, error) {
			return &postgrest.Response{Status: http.StatusUnauthorized, Data: map[string]any{"message": "JWT expired"}}, nil
		})

		_, err := openapi.FetchSpec(context.Background(), fetcher, "https://db.example.com/")
		require.ErrorIs(t, err, openapi.ErrFetchSpec)
		assert.True(t, postgrest.IsUnauthorized(err))
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()

		fetcher := fetcherFunc(func(ctx context.Context, url string, headers map[string]string) (*postgrest.Response, error) {
			return nil, errOffline
		})

		_, err := openapi.FetchSpec(context.Background(), fetcher, "https://db.example.com/")
		require.ErrorIs(t, err, openapi.ErrFetchSpec)
		require.ErrorIs(t, err, errOffline)
	})
}
