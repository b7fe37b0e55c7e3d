package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600

	// GeneratedFilePerm is the permission for files written by the generator.
	GeneratedFilePerm = 0644
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 3

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Pagination.
const (
	// DefaultPageSize is the page size used by pagers and the CLI.
	DefaultPageSize = 25

	// DefaultPrimaryKeyColumn is assumed when no primary key column is given.
	DefaultPrimaryKeyColumn = "id"
)

// Cache sizes and lifetimes.
const (
	// DefaultCacheSize is the maximum number of entries held by the memory cache.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is how long query results stay fresh.
	DefaultCacheTTL = 5 * time.Minute

	// MaxCacheValueSize caps a single cached value.
	MaxCacheValueSize = 1024 * 1024

	// DefaultNATSBucket is the JetStream KV bucket used for query results.
	DefaultNATSBucket = "postgrest-cache"

	// DefaultRedisPrefix namespaces query results in Redis.
	DefaultRedisPrefix = "pgrestx:"
)

// Format constants.
const (
	// FormatJSON renders output as indented JSON.
	FormatJSON = "json"

	// FormatYAML renders output as YAML.
	FormatYAML = "yaml"

	// FormatTable renders output as a table.
	FormatTable = "table"

	// JSONIndentSize is the indentation width for JSON output.
	JSONIndentSize = 2
)

// Display constants.
const (
	// StringTruncationLength caps cell width in table output.
	StringTruncationLength = 80

	// NotAvailable is shown for missing values.
	NotAvailable = "N/A"

	// TokenExpirationBuffer is subtracted from JWT expiry when judging validity.
	TokenExpirationBuffer = 30 * time.Second
)
