package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fivetwenty-io/postgrestx/internal/constants"
	"github.com/redis/go-redis/v9"
)

const redisScanCount = 100

// RedisConfig configures the Redis cache.
type RedisConfig struct {
	// Addr is host:port, used when Client is nil.
	Addr     string
	Password string
	DB       int
	// Client is an existing client. It is not closed by Close.
	Client *redis.Client
	// Prefix namespaces every key. Empty uses the default prefix.
	Prefix string
}

// RedisCache stores entries in Redis with native expiry.
type RedisCache struct {
	client    *redis.Client
	ownClient bool
	prefix    string
}

// NewRedisCache creates a Redis cache and checks the connection.
func NewRedisCache(config *RedisConfig) (*RedisCache, error) {
	if config == nil || (config.Client == nil && config.Addr == "") {
		return nil, ErrRedisConfigRequired
	}

	client, ownClient := config.Client, false
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     config.Addr,
			Password: config.Password,
			DB:       config.DB,
		})
		ownClient = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.ShortHTTPTimeout)
	defer cancel()

	err := client.Ping(ctx).Err()
	if err != nil {
		if ownClient {
			_ = client.Close()
		}

		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	prefix := config.Prefix
	if prefix == "" {
		prefix = constants.DefaultRedisPrefix
	}

	return &RedisCache{client: client, ownClient: ownClient, prefix: prefix}, nil
}

// Get returns the entry for key.
func (c *RedisCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}

		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	var entry CacheEntry

	err = json.Unmarshal(raw, &entry)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}

	if entry.Expired() {
		return nil, ErrEntryExpired
	}

	return &entry, nil
}

// Set stores entry under key, letting Redis expire it at ExpiresAt.
func (c *RedisCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	var ttl time.Duration
	if !entry.ExpiresAt.IsZero() {
		ttl = time.Until(entry.ExpiresAt)
		if ttl <= 0 {
			return c.Delete(ctx, key)
		}
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	err = c.client.Set(ctx, c.prefix+key, raw, ttl).Err()
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}

	return nil
}

// Delete removes key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	err := c.client.Del(ctx, c.prefix+key).Err()
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}

	return nil
}

// DeletePrefix removes prefix and every key below it. Storage keys only use
// characters that carry no meaning in SCAN patterns.
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, c.prefix+prefix+"*", redisScanCount).Iterator()

	var matched []string

	for iter.Next(ctx) {
		key := iter.Val()[len(c.prefix):]
		if MatchesPrefix(key, prefix) {
			matched = append(matched, iter.Val())
		}
	}

	err := iter.Err()
	if err != nil {
		return fmt.Errorf("scanning %s: %w", prefix, err)
	}

	if len(matched) == 0 {
		return nil
	}

	err = c.client.Del(ctx, matched...).Err()
	if err != nil {
		return fmt.Errorf("deleting %s: %w", prefix, err)
	}

	return nil
}

// Clear removes every key under the cache prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	return c.DeletePrefix(ctx, "")
}

// Has reports whether an unexpired entry exists for key.
func (c *RedisCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Close releases the client if the cache created it.
func (c *RedisCache) Close() error {
	if !c.ownClient {
		return nil
	}

	return c.client.Close()
}
