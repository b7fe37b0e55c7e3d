package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/postgrestx/internal/constants"
	"github.com/fivetwenty-io/postgrestx/pkg/postgrest"
)

// ErrClientRequired is returned when NewQueryClient gets a nil client.
var ErrClientRequired = errors.New("postgrest client is required")

// ListArgs shapes a cached list query. Profile selects the schema through
// the Accept-Profile header.
type ListArgs struct {
	Select  string                       `json:"select,omitempty"`
	Filters []postgrest.Filter           `json:"filters,omitempty"`
	Order   []string                     `json:"order,omitempty"`
	Limit   *int                         `json:"limit,omitempty"`
	Offset  *int                         `json:"offset,omitempty"`
	Range   *postgrest.Pagination        `json:"range,omitempty"`
	Count   postgrest.CountStrategy      `json:"count,omitempty"`
	Prefer  *postgrest.PreferenceOptions `json:"prefer,omitempty"`
	Profile string                       `json:"profile,omitempty"`
}

func (a *ListArgs) queryOptions() *postgrest.QueryOptions {
	opts := &postgrest.QueryOptions{}
	if a == nil {
		return opts
	}

	opts.Select = a.Select
	opts.Filters = append([]postgrest.Filter(nil), a.Filters...)
	opts.Order = append([]string(nil), a.Order...)
	opts.Limit = a.Limit
	opts.Offset = a.Offset
	opts.Range = a.Range
	opts.Count = a.Count
	opts.Prefer = a.Prefer

	if a.Profile != "" {
		opts.WithHeader(postgrest.HeaderAcceptProfile, a.Profile)
	}

	return opts
}

// ListResult is a page of rows with the server's pagination metadata.
type ListResult struct {
	Data  any                    `json:"data"`
	Total *int                   `json:"total"`
	Range *postgrest.ResultRange `json:"range"`
}

// ItemArgs shapes a single-row lookup. PKColumn defaults to "id"; Filters
// are applied after the primary key filter.
type ItemArgs struct {
	Select   string             `json:"select,omitempty"`
	Profile  string             `json:"profile,omitempty"`
	PKColumn string             `json:"-"`
	Filters  []postgrest.Filter `json:"filters,omitempty"`
}

// itemKey is the key payload for Item: the args plus the lookup itself.
type itemKey struct {
	Select   string             `json:"select,omitempty"`
	Profile  string             `json:"profile,omitempty"`
	Filters  []postgrest.Filter `json:"filters,omitempty"`
	PK       any                `json:"pk"`
	PKColumn string             `json:"pkColumn"`
}

// CacheStats tracks cache usage.
type CacheStats struct {
	Hits          int64
	Misses        int64
	Sets          int64
	Invalidations int64
}

// GetHitRate returns hits over lookups, or zero before the first lookup.
func (s *CacheStats) GetHitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// QueryClient caches read results of a postgrest.Client and drops them when
// a mutation touches the same table or function.
type QueryClient struct {
	client *postgrest.Client
	cache  Cache
	ttl    time.Duration
	logger postgrest.Logger

	mu    sync.Mutex
	stats CacheStats
}

// Option configures a QueryClient.
type Option func(*QueryClient)

// WithCache sets the cache backend. The default is a memory cache.
func WithCache(cache Cache) Option {
	return func(q *QueryClient) {
		if cache != nil {
			q.cache = cache
		}
	}
}

// WithTTL sets how long results stay fresh. Zero keeps them until they are
// invalidated.
func WithTTL(ttl time.Duration) Option {
	return func(q *QueryClient) {
		q.ttl = ttl
	}
}

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(logger postgrest.Logger) Option {
	return func(q *QueryClient) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// NewQueryClient wraps client with a result cache.
func NewQueryClient(client *postgrest.Client, opts ...Option) (*QueryClient, error) {
	if client == nil {
		return nil, ErrClientRequired
	}

	q := &QueryClient{
		client: client,
		cache:  NewMemoryCache(constants.DefaultCacheSize),
		ttl:    constants.DefaultCacheTTL,
		logger: postgrest.NoopLogger{},
	}

	for _, opt := range opts {
		opt(q)
	}

	return q, nil
}

// Client returns the wrapped client.
func (q *QueryClient) Client() *postgrest.Client {
	return q.client
}

// Stats returns a snapshot of the cache counters.
func (q *QueryClient) Stats() CacheStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.stats
}

// List fetches rows of table, serving repeated identical queries from the
// cache.
func (q *QueryClient) List(ctx context.Context, table string, args *ListArgs) (*ListResult, error) {
	var result ListResult

	err := q.cached(ctx, TableViewKey(table, ViewList, args), &result, func() (any, error) {
		res, err := q.client.Select(ctx, table, args.queryOptions())
		if err != nil {
			return nil, err
		}

		return &ListResult{Data: res.Data, Total: res.Total, Range: res.Range}, nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// Item fetches the row of table whose primary key equals pk. It returns nil
// when no row matches.
func (q *QueryClient) Item(ctx context.Context, table string, pk any, args *ItemArgs) (any, error) {
	if args == nil {
		args = &ItemArgs{}
	}

	pkColumn := args.PKColumn
	if pkColumn == "" {
		pkColumn = constants.DefaultPrimaryKeyColumn
	}

	key := TableViewKey(table, ViewItem, itemKey{
		Select:   args.Select,
		Profile:  args.Profile,
		Filters:  args.Filters,
		PK:       pk,
		PKColumn: pkColumn,
	})

	var row any

	err := q.cached(ctx, key, &row, func() (any, error) {
		opts := (&ListArgs{Select: args.Select, Profile: args.Profile}).queryOptions()
		opts.WithFilter(pkColumn, postgrest.OpEqual, pk).
			WithFilters(args.Filters...).
			WithLimit(1)

		res, err := q.client.Select(ctx, table, opts)
		if err != nil {
			return nil, err
		}

		rows, ok := res.Data.([]any)
		if !ok || len(rows) == 0 {
			return nil, nil
		}

		return rows[0], nil
	})
	if err != nil {
		return nil, err
	}

	return row, nil
}

// Select runs an arbitrary read through the cache.
func (q *QueryClient) Select(ctx context.Context, resource string, opts *postgrest.QueryOptions) (*postgrest.QueryResult[any], error) {
	var result postgrest.QueryResult[any]

	err := q.cached(ctx, TableViewKey(resource, ViewSelect, opts), &result, func() (any, error) {
		return q.client.Select(ctx, resource, opts)
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// RPC calls fn through the cache. Use CallRPC for functions with side
// effects.
func (q *QueryClient) RPC(ctx context.Context, fn string, args map[string]any, opts *postgrest.RPCOptions) (*postgrest.QueryResult[any], error) {
	var result postgrest.QueryResult[any]

	err := q.cached(ctx, RPCKey(fn, args, opts), &result, func() (any, error) {
		return q.client.RPC(ctx, fn, args, opts)
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// Insert inserts body into table and invalidates the table.
func (q *QueryClient) Insert(ctx context.Context, table string, body any, opts *postgrest.WriteOptions) (any, error) {
	res, err := q.client.Insert(ctx, table, body, opts)
	if err != nil {
		return nil, err
	}

	q.afterMutation(ctx, TableKey(table, nil))

	return res.Data, nil
}

// Update applies patch to the row whose pkColumn (default "id") equals pk.
func (q *QueryClient) Update(ctx context.Context, table string, pk, patch any, pkColumn string) (any, error) {
	opts := &postgrest.WriteOptions{}
	opts.WithFilter(primaryKeyColumn(pkColumn), postgrest.OpEqual, pk)

	res, err := q.client.Update(ctx, table, patch, opts)
	if err != nil {
		return nil, err
	}

	q.afterMutation(ctx, TableKey(table, nil))

	return res.Data, nil
}

// Upsert inserts or merges body into table.
func (q *QueryClient) Upsert(ctx context.Context, table string, body any, opts *postgrest.WriteOptions) (any, error) {
	res, err := q.client.Upsert(ctx, table, body, opts)
	if err != nil {
		return nil, err
	}

	q.afterMutation(ctx, TableKey(table, nil))

	return res.Data, nil
}

// Delete removes the row whose pkColumn (default "id") equals pk.
func (q *QueryClient) Delete(ctx context.Context, table string, pk any, pkColumn string) error {
	opts := postgrest.NewQueryOptions().WithFilter(primaryKeyColumn(pkColumn), postgrest.OpEqual, pk)

	_, err := q.client.Delete(ctx, table, opts)
	if err != nil {
		return err
	}

	q.afterMutation(ctx, TableKey(table, nil))

	return nil
}

// CallRPC calls fn uncached and invalidates every cached result of fn.
func (q *QueryClient) CallRPC(ctx context.Context, fn string, args map[string]any) (any, error) {
	res, err := q.client.RPC(ctx, fn, args, nil)
	if err != nil {
		return nil, err
	}

	q.afterMutation(ctx, RPCKey(fn, nil, nil))

	return res.Data, nil
}

// InvalidateTable drops every cached query of table.
func (q *QueryClient) InvalidateTable(ctx context.Context, table string) error {
	return q.invalidate(ctx, TableKey(table, nil))
}

// InvalidateRPC drops every cached result of fn.
func (q *QueryClient) InvalidateRPC(ctx context.Context, fn string) error {
	return q.invalidate(ctx, RPCKey(fn, nil, nil))
}

// Invalidate drops every cached query under prefix.
func (q *QueryClient) Invalidate(ctx context.Context, prefix Key) error {
	return q.invalidate(ctx, prefix)
}

func (q *QueryClient) invalidate(ctx context.Context, prefix Key) error {
	err := q.cache.DeletePrefix(ctx, prefix.StorageKey())
	if err != nil {
		return fmt.Errorf("invalidating %s: %w", prefix, err)
	}

	q.mu.Lock()
	q.stats.Invalidations++
	q.mu.Unlock()

	return nil
}

// afterMutation invalidates prefix. The mutation already succeeded, so a
// cache failure is logged rather than returned.
func (q *QueryClient) afterMutation(ctx context.Context, prefix Key) {
	err := q.invalidate(ctx, prefix)
	if err != nil {
		q.logger.Warn("Cache invalidation failed", map[string]interface{}{
			"key":   prefix.String(),
			"error": err.Error(),
		})
	}
}

// cached decodes the entry for key into out, or calls fetch, stores its
// result and decodes that instead. Both paths go through JSON so hits and
// misses return identical shapes.
func (q *QueryClient) cached(ctx context.Context, key Key, out any, fetch func() (any, error)) error {
	storageKey := key.StorageKey()

	entry, err := q.cache.Get(ctx, storageKey)
	if err == nil {
		err = json.Unmarshal(entry.Data, out)
		if err == nil {
			q.count(func(s *CacheStats) { s.Hits++ })

			return nil
		}

		q.logger.Warn("Discarding undecodable cache entry", map[string]interface{}{
			"key":   key.String(),
			"error": err.Error(),
		})
	}

	q.count(func(s *CacheStats) { s.Misses++ })

	value, err := fetch()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding result for %s: %w", key, err)
	}

	err = json.Unmarshal(raw, out)
	if err != nil {
		return fmt.Errorf("decoding result for %s: %w", key, err)
	}

	if len(raw) > constants.MaxCacheValueSize {
		q.logger.Debug("Result too large to cache", map[string]interface{}{
			"key":  key.String(),
			"size": len(raw),
		})

		return nil
	}

	newEntry := &CacheEntry{Data: raw}
	if q.ttl > 0 {
		newEntry.ExpiresAt = time.Now().Add(q.ttl)
	}

	err = q.cache.Set(ctx, storageKey, newEntry)
	if err != nil {
		q.logger.Warn("Cache write failed", map[string]interface{}{
			"key":   key.String(),
			"error": err.Error(),
		})

		return nil
	}

	q.count(func(s *CacheStats) { s.Sets++ })

	return nil
}

func (q *QueryClient) count(update func(*CacheStats)) {
	q.mu.Lock()
	defer q.mu.Unlock()

	update(&q.stats)
}

func primaryKeyColumn(column string) string {
	if column == "" {
		return constants.DefaultPrimaryKeyColumn
	}

	return column
}
