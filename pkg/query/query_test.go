package query_test

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/fivetwenty-io/postgrestx/pkg/postgrest"
	"github.com/fivetwenty-io/postgrestx/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errCacheDown = errors.New("cache down")

// stubTransport answers every request with respond and records what it saw.
type stubTransport struct {
	mu       sync.Mutex
	requests []*postgrest.Request
	respond  func(req *postgrest.Request) *postgrest.Response
}

func (s *stubTransport) Do(ctx context.Context, req *postgrest.Request) (*postgrest.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	return s.respond(req), nil
}

func (s *stubTransport) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.requests)
}

func (s *stubTransport) last() *postgrest.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.requests[len(s.requests)-1]
}

func rowsResponse(rows ...map[string]any) func(*postgrest.Request) *postgrest.Response {
	return func(req *postgrest.Request) *postgrest.Response {
		data := make([]any, len(rows))
		for i, row := range rows {
			data[i] = row
		}

		return &postgrest.Response{
			Status:  200,
			Headers: map[string]string{"content-range": "items 0-1/2"},
			Data:    data,
		}
	}
}

func newQueryClient(t *testing.T, transport *stubTransport, opts ...query.Option) *query.QueryClient {
	t.Helper()

	client, err := postgrest.NewClient("https://example.com", transport)
	require.NoError(t, err)

	qc, err := query.NewQueryClient(client, opts...)
	require.NoError(t, err)

	return qc
}

func rawQuery(t *testing.T, req *postgrest.Request) string {
	t.Helper()

	u, err := url.Parse(req.URL)
	require.NoError(t, err)

	return u.RawQuery
}

// failingCache reports errors for writes and invalidation.
type failingCache struct {
	*query.NoOpCache
}

func (failingCache) Set(ctx context.Context, key string, entry *query.CacheEntry) error {
	return errCacheDown
}

func (failingCache) DeletePrefix(ctx context.Context, prefix string) error {
	return errCacheDown
}

func TestNewQueryClient(t *testing.T) {
	t.Parallel()

	_, err := query.NewQueryClient(nil)
	require.ErrorIs(t, err, query.ErrClientRequired)
}

func TestQueryClient_List(t *testing.T) {
	t.Parallel()

	transport := &stubTransport{respond: rowsResponse(
		map[string]any{"id": float64(1), "name": "Ada"},
		map[string]any{"id": float64(2), "name": "Grace"},
	)}
	qc := newQueryClient(t, transport)
	ctx := context.Background()

	args := &query.ListArgs{Select: "id,name", Profile: "tenant_a", Count: postgrest.CountExact}

	first, err := qc.List(ctx, "people", args)
	require.NoError(t, err)

	second, err := qc.List(ctx, "people", &query.ListArgs{Count: postgrest.CountExact, Profile: "tenant_a", Select: "id,name"})
	require.NoError(t, err)

	assert.Equal(t, 1, transport.calls())
	assert.Equal(t, first, second)
	require.NotNil(t, first.Total)
	assert.Equal(t, 2, *first.Total)
	assert.Equal(t, &postgrest.ResultRange{From: 0, To: 1, Unit: "items"}, first.Range)
	assert.Len(t, first.Data, 2)

	req := transport.last()
	assert.Equal(t, "tenant_a", req.Headers["Accept-Profile"])
	assert.Equal(t, "count=exact", req.Headers["Prefer"])
	assert.Equal(t, "select=id%2Cname", rawQuery(t, req))

	stats := qc.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.InDelta(t, 0.5, stats.GetHitRate(), 0.0001)

	// Different args are a different query.
	_, err = qc.List(ctx, "people", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, transport.calls())
}

func TestQueryClient_ListError(t *testing.T) {
	t.Parallel()

	transport := &stubTransport{respond: func(req *postgrest.Request) *postgrest.Response {
		return &postgrest.Response{Status: 404, Data: map[string]any{"message": "missing", "code": "42P01"}}
	}}
	qc := newQueryClient(t, transport)

	_, err := qc.List(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.True(t, postgrest.IsNotFound(err))

	// Errors are never cached.
	_, err = qc.List(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Equal(t, 2, transport.calls())
}

func TestQueryClient_Item(t *testing.T) {
	t.Parallel()

	t.Run("returns the first row", func(t *testing.T) {
		t.Parallel()

		transport := &stubTransport{respond: rowsResponse(map[string]any{"id": float64(42), "name": "Ada"})}
		qc := newQueryClient(t, transport)

		row, err := qc.Item(context.Background(), "people", 42, &query.ItemArgs{
			Select:  "id,name",
			Filters: []postgrest.Filter{{Column: "tenant_id", Op: postgrest.OpEqual, Value: 7}},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": float64(42), "name": "Ada"}, row)
		assert.Equal(t, "select=id%2Cname&id=eq.42&tenant_id=eq.7&limit=1", rawQuery(t, transport.last()))

		_, err = qc.Item(context.Background(), "people", 42, &query.ItemArgs{
			Select:  "id,name",
			Filters: []postgrest.Filter{{Column: "tenant_id", Op: postgrest.OpEqual, Value: 7}},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, transport.calls())
	})

	t.Run("custom primary key column", func(t *testing.T) {
		t.Parallel()

		transport := &stubTransport{respond: rowsResponse(map[string]any{"uuid": "1b2c"})}
		qc := newQueryClient(t, transport)

		_, err := qc.Item(context.Background(), "people", "1b2c", &query.ItemArgs{PKColumn: "uuid"})
		require.NoError(t, err)
		assert.Equal(t, "uuid=eq.1b2c&limit=1", rawQuery(t, transport.last()))
	})

	t.Run("no match is nil", func(t *testing.T) {
		t.Parallel()

		transport := &stubTransport{respond: rowsResponse()}
		qc := newQueryClient(t, transport)

		row, err := qc.Item(context.Background(), "people", 1, nil)
		require.NoError(t, err)
		assert.Nil(t, row)
	})
}

func TestQueryClient_SelectAndRPC(t *testing.T) {
	t.Parallel()

	transport := &stubTransport{respond: func(req *postgrest.Request) *postgrest.Response {
		return &postgrest.Response{Status: 200, Data: float64(3)}
	}}
	qc := newQueryClient(t, transport)
	ctx := context.Background()

	res, err := qc.Select(ctx, "people", postgrest.NewQueryOptions().WithLimit(1))
	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)

	_, err = qc.Select(ctx, "people", postgrest.NewQueryOptions().WithLimit(1))
	require.NoError(t, err)
	assert.Equal(t, 1, transport.calls())

	sum, err := qc.RPC(ctx, "add", map[string]any{"a": 1, "b": 2}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, sum.Data, 0)

	_, err = qc.RPC(ctx, "add", map[string]any{"b": 2, "a": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, transport.calls())

	// CallRPC bypasses the cache and invalidates the function.
	_, err = qc.CallRPC(ctx, "add", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, 3, transport.calls())

	_, err = qc.RPC(ctx, "add", map[string]any{"a": 1, "b": 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, transport.calls())

	// The table cache is untouched by the RPC.
	_, err = qc.Select(ctx, "people", postgrest.NewQueryOptions().WithLimit(1))
	require.NoError(t, err)
	assert.Equal(t, 4, transport.calls())
}

func TestQueryClient_ListAndSelectCachedApart(t *testing.T) {
	t.Parallel()

	transport := &stubTransport{respond: func(req *postgrest.Request) *postgrest.Response {
		return &postgrest.Response{
			Status:  206,
			Headers: map[string]string{"content-range": "items 0-0/2"},
			Data:    []any{map[string]any{"id": float64(1)}},
		}
	}}
	qc := newQueryClient(t, transport)
	ctx := context.Background()

	_, err := qc.List(ctx, "people", &query.ListArgs{Select: "id"})
	require.NoError(t, err)

	res, err := qc.Select(ctx, "people", postgrest.NewQueryOptions().WithSelect("id"))
	require.NoError(t, err)
	assert.Equal(t, 206, res.Status)
	assert.Equal(t, 2, transport.calls())

	_, err = qc.List(ctx, "people", nil)
	require.NoError(t, err)

	res, err = qc.Select(ctx, "people", nil)
	require.NoError(t, err)
	assert.Equal(t, 206, res.Status)
	assert.Equal(t, 4, transport.calls())

	// One table invalidation drops both views.
	require.NoError(t, qc.InvalidateTable(ctx, "people"))

	_, err = qc.List(ctx, "people", nil)
	require.NoError(t, err)

	_, err = qc.Select(ctx, "people", nil)
	require.NoError(t, err)
	assert.Equal(t, 6, transport.calls())
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestQueryClient_MutationsInvalidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(ctx context.Context, qc *query.QueryClient) error
		method   string
		rawQuery string
	}{
		{
			name: "insert",
			mutate: func(ctx context.Context, qc *query.QueryClient) error {
				_, err := qc.Insert(ctx, "people", map[string]any{"name": "Ada"}, nil)

				return err
			},
			method: "POST",
		},
		{
			name: "update by primary key",
			mutate: func(ctx context.Context, qc *query.QueryClient) error {
				_, err := qc.Update(ctx, "people", 1, map[string]any{"name": "Grace"}, "")

				return err
			},
			method:   "PATCH",
			rawQuery: "id=eq.1",
		},
		{
			name: "upsert",
			mutate: func(ctx context.Context, qc *query.QueryClient) error {
				_, err := qc.Upsert(ctx, "people", map[string]any{"id": 1}, nil)

				return err
			},
			method: "POST",
		},
		{
			name: "delete by custom primary key",
			mutate: func(ctx context.Context, qc *query.QueryClient) error {
				return qc.Delete(ctx, "people", "1b2c", "uuid")
			},
			method:   "DELETE",
			rawQuery: "uuid=eq.1b2c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			transport := &stubTransport{respond: rowsResponse(map[string]any{"id": float64(1)})}
			qc := newQueryClient(t, transport)
			ctx := context.Background()

			_, err := qc.List(ctx, "people", nil)
			require.NoError(t, err)

			_, err = qc.List(ctx, "tasks", nil)
			require.NoError(t, err)

			require.NoError(t, tt.mutate(ctx, qc))

			req := transport.last()
			assert.Equal(t, tt.method, req.Method)
			assert.Equal(t, tt.rawQuery, rawQuery(t, req))

			// people was invalidated, tasks was not.
			_, err = qc.List(ctx, "people", nil)
			require.NoError(t, err)

			_, err = qc.List(ctx, "tasks", nil)
			require.NoError(t, err)

			assert.Equal(t, 4, transport.calls())
			assert.Equal(t, int64(1), qc.Stats().Invalidations)
		})
	}
}

func TestQueryClient_InvalidateHelpers(t *testing.T) {
	t.Parallel()

	cache := query.NewMemoryCache(10)
	transport := &stubTransport{respond: rowsResponse()}
	qc := newQueryClient(t, transport, query.WithCache(cache), query.WithTTL(time.Hour))
	ctx := context.Background()

	_, err := qc.List(ctx, "people", nil)
	require.NoError(t, err)

	_, err = qc.List(ctx, "people", &query.ListArgs{Select: "id"})
	require.NoError(t, err)

	_, err = qc.RPC(ctx, "add_them", map[string]any{"a": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cache.Len())

	require.NoError(t, qc.InvalidateTable(ctx, "people"))
	assert.Equal(t, 1, cache.Len())

	require.NoError(t, qc.InvalidateRPC(ctx, "add_them"))
	assert.Equal(t, 0, cache.Len())

	_, err = qc.List(ctx, "people", nil)
	require.NoError(t, err)
	require.NoError(t, qc.Invalidate(ctx, query.Key{query.Namespace}))
	assert.Equal(t, 0, cache.Len())
}

func TestQueryClient_TTL(t *testing.T) {
	t.Parallel()

	transport := &stubTransport{respond: rowsResponse()}
	qc := newQueryClient(t, transport, query.WithTTL(10*time.Millisecond))
	ctx := context.Background()

	_, err := qc.List(ctx, "people", nil)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = qc.List(ctx, "people", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, transport.calls())
}

func TestQueryClient_CacheFailures(t *testing.T) {
	t.Parallel()

	logger := &recordingLogger{}
	transport := &stubTransport{respond: rowsResponse(map[string]any{"id": float64(1)})}
	qc := newQueryClient(t, transport, query.WithCache(failingCache{NoOpCache: query.NewNoOpCache()}), query.WithLogger(logger))
	ctx := context.Background()

	res, err := qc.List(ctx, "people", nil)
	require.NoError(t, err)
	assert.Len(t, res.Data, 1)

	_, err = qc.Insert(ctx, "people", map[string]any{"id": 2}, nil)
	require.NoError(t, err)

	require.ErrorIs(t, qc.InvalidateTable(ctx, "people"), errCacheDown)
	assert.Equal(t, []string{"Cache write failed", "Cache invalidation failed"}, logger.warnings)
}

type recordingLogger struct {
	mu       sync.Mutex
	warnings []string
}

func (l *recordingLogger) Debug(msg string, fields map[string]interface{}) {}

func (l *recordingLogger) Info(msg string, fields map[string]interface{}) {}

func (l *recordingLogger) Warn(msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.warnings = append(l.warnings, msg)
}

func (l *recordingLogger) Error(msg string, fields map[string]interface{}) {}
