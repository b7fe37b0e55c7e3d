package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/fivetwenty-io/postgrestx/internal/constants"
	"github.com/fivetwenty-io/postgrestx/pkg/pgclient"
	"github.com/fivetwenty-io/postgrestx/pkg/postgrest"
	"github.com/fivetwenty-io/postgrestx/pkg/query"
	"github.com/spf13/viper"
)

// logOutput is where command loggers write. Tests replace it.
var logOutput io.Writer = os.Stderr

// clientConfig assembles the client configuration from flags, environment
// and the config file.
func clientConfig() (*postgrest.Config, error) {
	url := viper.GetString(keyURL)
	if url == "" {
		return nil, ErrURLRequired
	}

	verbose := viper.GetBool(keyVerbose)
	logger := NewStderrLogger(logOutput, verbose)

	config := &postgrest.Config{
		BaseURL:    url,
		Token:      viper.GetString(keyToken),
		Schema:     viper.GetString(keySchema),
		Debug:      verbose,
		Logger:     logger,
		RequestIDs: true,
	}

	if verbose {
		metrics := postgrest.NewMetricsCollector()
		metrics.SetOnChange(func(endpoint string, m postgrest.Metrics) {
			logger.Debug("Request metrics", map[string]interface{}{
				"endpoint": endpoint,
				"requests": m.TotalRequests,
				"errors":   m.TotalErrors,
				"latency":  m.AverageLatency.String(),
			})
		})

		config.Metrics = metrics
	}

	return config, nil
}

// newClient creates a PostgREST client from the CLI configuration.
func newClient() (*postgrest.Client, error) {
	config, err := clientConfig()
	if err != nil {
		return nil, err
	}

	return pgclient.New(config)
}

// cacheConfig reads the cache backend for paged queries: "memory" (the
// default), "redis" or "nats", with cache_url as the server address.
func cacheConfig() (*query.CacheConfig, error) {
	cacheType := query.CacheType(viper.GetString(keyCache))
	url := viper.GetString(keyCacheURL)

	switch cacheType {
	case query.CacheTypeRedis:
		if url == "" {
			return nil, query.ErrRedisConfigRequired
		}

		return &query.CacheConfig{Type: cacheType, Redis: &query.RedisConfig{Addr: url}}, nil
	case query.CacheTypeNATS:
		if url == "" {
			return nil, query.ErrNATSConfigRequired
		}

		return &query.CacheConfig{Type: cacheType, NATS: &query.NATSKVConfig{URL: url}}, nil
	default:
		return &query.CacheConfig{
			Type:   cacheType,
			Memory: &query.MemoryCacheConfig{MaxSize: constants.DefaultCacheSize},
		}, nil
	}
}

// newQueryClient wraps newClient with the configured cache. The returned
// func releases the cache connection.
func newQueryClient() (*query.QueryClient, func(), error) {
	client, err := newClient()
	if err != nil {
		return nil, nil, err
	}

	config, err := cacheConfig()
	if err != nil {
		return nil, nil, err
	}

	cache, err := query.NewCacheFromConfig(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cache: %w", err)
	}

	release := func() {
		switch c := cache.(type) {
		case *query.RedisCache:
			_ = c.Close()
		case *query.NATSKVCache:
			c.Close()
		}
	}

	qc, err := query.NewQueryClient(client,
		query.WithCache(cache),
		query.WithLogger(NewStderrLogger(logOutput, viper.GetBool(keyVerbose))),
	)
	if err != nil {
		release()

		return nil, nil, err
	}

	return qc, release, nil
}
