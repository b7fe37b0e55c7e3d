package postgrest

import (
	"errors"
	"time"
)

// ErrConfigRequired is returned when a factory is handed a nil Config.
var ErrConfigRequired = errors.New("config is required")

// Config represents client configuration for building a Client with the
// default transport (see pkg/pgclient).
//
// # Authentication
//
// Token, when set, is sent as a Bearer token on every request. PostgREST
// maps it to a database role; without it requests run as the anonymous role.
//
// # Timeouts and retries
//
// Per-request deadlines should come from the context passed to each call.
// HTTPTimeout bounds a single attempt. Retries happen only inside the
// transport, for connection errors, 429 and 5xx, and are tuned by RetryMax,
// RetryWaitMin and RetryWaitMax.
type Config struct {
	// BaseURL is the PostgREST root (e.g., "https://db.example.com").
	// pgclient.New trims a trailing slash and adds "https://" if no scheme
	// is present.
	BaseURL string

	// Token is an optional JWT sent as "Authorization: Bearer <token>".
	Token string
	// Schema selects a non-default schema through the profile headers.
	Schema string

	// HTTPTimeout bounds a single attempt. Zero uses the default.
	HTTPTimeout time.Duration
	// RetryMax is the number of retries after the first attempt. Zero uses
	// the default; a negative value disables retries.
	RetryMax int
	// RetryWaitMin is the minimum backoff between retries.
	RetryWaitMin time.Duration
	// RetryWaitMax is the maximum backoff between retries.
	RetryWaitMax time.Duration
	// Debug enables HTTP request/response logging when a Logger is provided.
	Debug bool
	// Logger is an optional structured logger for the client and transport.
	Logger Logger
	// UserAgent overrides the default User-Agent header.
	UserAgent string
	// Headers are added to every request unless the call sets them itself.
	Headers map[string]string
	// RequestIDs tags every request with a random X-Request-ID header.
	RequestIDs bool
	// Metrics, when set, collects per-endpoint request counts.
	Metrics *MetricsCollector
}
