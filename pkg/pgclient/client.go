// Package pgclient provides the main entry point for creating PostgREST clients
package pgclient

import (
	"strings"

	"github.com/fivetwenty-io/postgrestx/internal/auth"
	"github.com/fivetwenty-io/postgrestx/internal/constants"
	internalhttp "github.com/fivetwenty-io/postgrestx/internal/http"
	"github.com/fivetwenty-io/postgrestx/pkg/postgrest"
)

// New creates a PostgREST client backed by the retrying HTTP transport.
func New(config *postgrest.Config) (*postgrest.Client, error) {
	if config == nil {
		return nil, postgrest.ErrConfigRequired
	}

	if config.BaseURL == "" {
		return nil, postgrest.ErrBaseURLRequired
	}

	baseURL := NormalizeURL(config.BaseURL)

	transport := internalhttp.NewClient(auth.NewStaticTokenManager(config.Token), transportOptions(config)...)

	chain := postgrest.NewInterceptorChain()
	if len(config.Headers) > 0 {
		chain.AddRequestInterceptor(postgrest.HeaderInterceptor(config.Headers))
	}

	if config.Schema != "" {
		chain.AddRequestInterceptor(postgrest.SchemaInterceptor(config.Schema))
	}

	if config.RequestIDs {
		chain.AddRequestInterceptor(postgrest.RequestIDInterceptor())
	}

	if config.Metrics != nil {
		chain.AddRequestInterceptor(postgrest.MetricsRequestInterceptor(config.Metrics))
		chain.AddResponseInterceptor(postgrest.MetricsResponseInterceptor(config.Metrics))
		chain.AddErrorInterceptor(postgrest.MetricsErrorInterceptor(config.Metrics))
	}

	var clientOpts []postgrest.ClientOption
	if config.Logger != nil {
		chain.AddErrorInterceptor(postgrest.LoggingErrorInterceptor(config.Logger))

		clientOpts = append(clientOpts, postgrest.WithLogger(config.Logger))
	}

	return postgrest.NewClient(baseURL, chain.Wrap(transport), clientOpts...)
}

// NewTransport creates the retrying transport described by config without
// the client on top. It is used for requests outside the table and RPC
// surface, such as fetching the OpenAPI document.
func NewTransport(config *postgrest.Config) (*internalhttp.Client, error) {
	if config == nil {
		return nil, postgrest.ErrConfigRequired
	}

	return internalhttp.NewClient(auth.NewStaticTokenManager(config.Token), transportOptions(config)...), nil
}

// NewWithURL creates a client for an anonymous endpoint.
func NewWithURL(baseURL string) (*postgrest.Client, error) {
	return New(&postgrest.Config{
		BaseURL: baseURL,
	})
}

// NewWithToken creates a client that authenticates with a JWT.
func NewWithToken(baseURL, token string) (*postgrest.Client, error) {
	return New(&postgrest.Config{
		BaseURL: baseURL,
		Token:   token,
	})
}

// NormalizeURL trims a trailing slash and defaults the scheme to https.
func NormalizeURL(baseURL string) string {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}

	return baseURL
}

func transportOptions(config *postgrest.Config) []internalhttp.Option {
	var opts []internalhttp.Option

	if config.Logger != nil {
		opts = append(opts, internalhttp.WithLogger(config.Logger), internalhttp.WithDebug(config.Debug))
	}

	if config.HTTPTimeout > 0 {
		opts = append(opts, internalhttp.WithTimeout(config.HTTPTimeout))
	}

	if config.RetryMax != 0 || config.RetryWaitMin > 0 || config.RetryWaitMax > 0 {
		retryMax := config.RetryMax
		switch {
		case retryMax < 0:
			retryMax = 0
		case retryMax == 0:
			retryMax = constants.DefaultRetryMax
		}

		waitMin, waitMax := config.RetryWaitMin, config.RetryWaitMax
		if waitMin <= 0 {
			waitMin = constants.DefaultRetryWaitMin
		}

		if waitMax <= 0 {
			waitMax = constants.DefaultRetryWaitMax
		}

		opts = append(opts, internalhttp.WithRetryConfig(retryMax, waitMin, waitMax))
	}

	if config.UserAgent != "" {
		opts = append(opts, internalhttp.WithUserAgent(config.UserAgent))
	}

	return opts
}
