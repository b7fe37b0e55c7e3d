package postgrest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Header names set by the built-in interceptors.
const (
	HeaderAuthorization  = "Authorization"
	HeaderRequestID      = "X-Request-ID"
	HeaderAcceptProfile  = "Accept-Profile"
	HeaderContentProfile = "Content-Profile"
)

// RequestInterceptor is called before a request is sent.
type RequestInterceptor func(ctx context.Context, req *Request) error

// ResponseInterceptor is called after a response is received.
type ResponseInterceptor func(ctx context.Context, req *Request, resp *Response) error

// ErrorInterceptor is called when the transport fails without a response.
type ErrorInterceptor func(ctx context.Context, req *Request, err error)

// InterceptorChain manages a chain of interceptors.
type InterceptorChain struct {
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	errorInterceptors    []ErrorInterceptor
}

// NewInterceptorChain creates a new interceptor chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{
		requestInterceptors:  make([]RequestInterceptor, 0),
		responseInterceptors: make([]ResponseInterceptor, 0),
		errorInterceptors:    make([]ErrorInterceptor, 0),
	}
}

// AddRequestInterceptor adds a request interceptor to the chain.
func (c *InterceptorChain) AddRequestInterceptor(interceptor RequestInterceptor) {
	c.requestInterceptors = append(c.requestInterceptors, interceptor)
}

// AddResponseInterceptor adds a response interceptor to the chain.
func (c *InterceptorChain) AddResponseInterceptor(interceptor ResponseInterceptor) {
	c.responseInterceptors = append(c.responseInterceptors, interceptor)
}

// AddErrorInterceptor adds a transport error interceptor to the chain.
func (c *InterceptorChain) AddErrorInterceptor(interceptor ErrorInterceptor) {
	c.errorInterceptors = append(c.errorInterceptors, interceptor)
}

// ExecuteRequestInterceptors runs all request interceptors.
func (c *InterceptorChain) ExecuteRequestInterceptors(ctx context.Context, req *Request) error {
	for _, interceptor := range c.requestInterceptors {
		err := interceptor(ctx, req)
		if err != nil {
			return fmt.Errorf("request interceptor failed: %w", err)
		}
	}

	return nil
}

// ExecuteResponseInterceptors runs all response interceptors.
func (c *InterceptorChain) ExecuteResponseInterceptors(ctx context.Context, req *Request, resp *Response) error {
	for _, interceptor := range c.responseInterceptors {
		err := interceptor(ctx, req, resp)
		if err != nil {
			return fmt.Errorf("response interceptor failed: %w", err)
		}
	}

	return nil
}

// Wrap returns a Transport that runs the chain around next. Request
// interceptors see a copy of the request, so caller headers are never mutated.
func (c *InterceptorChain) Wrap(next Transport) Transport {
	return TransportFunc(func(ctx context.Context, req *Request) (*Response, error) {
		intercepted := cloneRequest(req)

		err := c.ExecuteRequestInterceptors(ctx, intercepted)
		if err != nil {
			return nil, err
		}

		resp, err := next.Do(ctx, intercepted)
		if err == nil && resp == nil {
			err = ErrNilResponse
		}

		if err != nil {
			for _, interceptor := range c.errorInterceptors {
				interceptor(ctx, intercepted, err)
			}

			return nil, err
		}

		err = c.ExecuteResponseInterceptors(ctx, intercepted, resp)
		if err != nil {
			return nil, err
		}

		return resp, nil
	})
}

func cloneRequest(req *Request) *Request {
	out := *req

	out.Headers = make(map[string]string, len(req.Headers))
	for k, v := range req.Headers {
		out.Headers[k] = v
	}

	out.Metadata = make(map[string]interface{}, len(req.Metadata))
	for k, v := range req.Metadata {
		out.Metadata[k] = v
	}

	return &out
}

func setHeader(req *Request, key, value string) {
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}

	req.Headers[key] = value
}

// Common Interceptors

// LoggingInterceptor logs requests.
func LoggingInterceptor(logger Logger) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		logger.Debug("PostgREST Request", map[string]interface{}{
			"method": req.Method,
			"url":    req.URL,
		})

		return nil
	}
}

// LoggingResponseInterceptor logs responses, at error level for failures.
func LoggingResponseInterceptor(logger Logger) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		fields := map[string]interface{}{
			"method": req.Method,
			"url":    req.URL,
			"status": resp.Status,
		}

		if resp.Status >= http.StatusBadRequest {
			logger.Error("PostgREST Response Error", fields)
		} else {
			logger.Debug("PostgREST Response", fields)
		}

		return nil
	}
}

// LoggingErrorInterceptor logs transport failures.
func LoggingErrorInterceptor(logger Logger) ErrorInterceptor {
	return func(ctx context.Context, req *Request, err error) {
		logger.Error("PostgREST Transport Error", map[string]interface{}{
			"method": req.Method,
			"url":    req.URL,
			"error":  err.Error(),
		})
	}
}

// HeaderInterceptor adds custom headers to requests that do not already set them.
func HeaderInterceptor(headers map[string]string) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		for key, value := range headers {
			if _, exists := req.Headers[key]; exists {
				continue
			}

			setHeader(req, key, value)
		}

		return nil
	}
}

// AuthenticationInterceptor adds a bearer token obtained from tokenProvider.
func AuthenticationInterceptor(tokenProvider func(context.Context) (string, error)) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		token, err := tokenProvider(ctx)
		if err != nil {
			return fmt.Errorf("failed to get authentication token: %w", err)
		}

		if token == "" {
			return nil
		}

		setHeader(req, HeaderAuthorization, "Bearer "+token)

		return nil
	}
}

// SchemaInterceptor selects a non-default schema: Accept-Profile for reads,
// Content-Profile for writes. Explicit profile headers are left alone.
func SchemaInterceptor(schema string) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if schema == "" {
			return nil
		}

		header := HeaderContentProfile
		if req.Method == http.MethodGet || req.Method == http.MethodHead {
			header = HeaderAcceptProfile
		}

		if _, exists := req.Headers[header]; exists {
			return nil
		}

		setHeader(req, header, schema)

		return nil
	}
}

// RequestIDInterceptor tags each request with a random X-Request-ID.
func RequestIDInterceptor() RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if _, exists := req.Headers[HeaderRequestID]; exists {
			return nil
		}

		setHeader(req, HeaderRequestID, uuid.NewString())

		return nil
	}
}

// Metrics for a single endpoint.
type Metrics struct {
	TotalRequests   int64
	TotalErrors     int64
	TotalLatency    time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time
}

// MetricsCollector collects per-endpoint metrics. It is safe for concurrent use.
type MetricsCollector struct {
	mu       sync.Mutex
	metrics  map[string]*Metrics
	onChange func(endpoint string, metrics Metrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[string]*Metrics),
	}
}

// SetOnChange sets a callback for when metrics change.
func (m *MetricsCollector) SetOnChange(fn func(endpoint string, metrics Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onChange = fn
}

// GetMetrics returns a snapshot of the metrics for an endpoint, or nil.
func (m *MetricsCollector) GetMetrics(endpoint string) *Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if metrics, ok := m.metrics[endpoint]; ok {
		snapshot := *metrics

		return &snapshot
	}

	return nil
}

func (m *MetricsCollector) record(req *Request, failed bool) {
	endpoint := metricsEndpoint(req)

	m.mu.Lock()

	metrics, ok := m.metrics[endpoint]
	if !ok {
		metrics = &Metrics{}
		m.metrics[endpoint] = metrics
	}

	metrics.TotalRequests++
	metrics.LastRequestTime = time.Now()

	if startTime, ok := req.Metadata["start_time"].(time.Time); ok {
		metrics.TotalLatency += time.Since(startTime)
		metrics.AverageLatency = metrics.TotalLatency / time.Duration(metrics.TotalRequests)
	}

	if failed {
		metrics.TotalErrors++
	}

	snapshot := *metrics
	onChange := m.onChange

	m.mu.Unlock()

	if onChange != nil {
		onChange(endpoint, snapshot)
	}
}

// metricsEndpoint keys metrics by method and path, without the query string.
func metricsEndpoint(req *Request) string {
	path := req.URL

	parsed, err := url.Parse(req.URL)
	if err == nil {
		path = parsed.Path
	}

	return req.Method + " " + path
}

// MetricsRequestInterceptor records request start time.
func MetricsRequestInterceptor(collector *MetricsCollector) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if req.Metadata == nil {
			req.Metadata = make(map[string]interface{})
		}

		req.Metadata["start_time"] = time.Now()

		return nil
	}
}

// MetricsResponseInterceptor records response metrics.
func MetricsResponseInterceptor(collector *MetricsCollector) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		collector.record(req, resp.Status >= http.StatusBadRequest)

		return nil
	}
}

// MetricsErrorInterceptor counts transport failures.
func MetricsErrorInterceptor(collector *MetricsCollector) ErrorInterceptor {
	return func(ctx context.Context, req *Request, err error) {
		collector.record(req, true)
	}
}
