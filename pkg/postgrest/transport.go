package postgrest

import "context"

// Request is a single HTTP exchange handed to a Transport.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	// Body is sent as JSON unless it is already a string.
	Body any
	// Metadata carries interceptor state and is never sent.
	Metadata map[string]interface{}
}

// Response is the decoded result of a Transport call.
type Response struct {
	Status  int
	Headers map[string]string
	// Data holds decoded JSON for JSON responses and text otherwise.
	Data any
}

// Transport performs HTTP exchanges. Implementations must be safe for
// concurrent use and should honor ctx cancellation.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// Do calls f(ctx, req).
func (f TransportFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// NoopLogger discards every entry.
type NoopLogger struct{}

// Debug implements Logger.
func (NoopLogger) Debug(string, map[string]interface{}) {}

// Info implements Logger.
func (NoopLogger) Info(string, map[string]interface{}) {}

// Warn implements Logger.
func (NoopLogger) Warn(string, map[string]interface{}) {}

// Error implements Logger.
func (NoopLogger) Error(string, map[string]interface{}) {}
