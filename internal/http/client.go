// Package http provides the default PostgREST transport: a retrying HTTP
// client that JSON-encodes request bodies and decodes JSON responses.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/fivetwenty-io/postgrestx/internal/auth"
	"github.com/fivetwenty-io/postgrestx/internal/constants"
	"github.com/fivetwenty-io/postgrestx/pkg/postgrest"
	"github.com/hashicorp/go-retryablehttp"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "pgrestx/1.0"

// Client implements postgrest.Transport on top of go-retryablehttp.
// Responses of every status are returned; only connection failures are errors.
type Client struct {
	httpClient   *retryablehttp.Client
	tokenManager auth.TokenManager
	logger       postgrest.Logger
	userAgent    string
	debug        bool
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger postgrest.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request and response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithRetryConfig sets the retry limit and the backoff bounds.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = retryMax
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithTimeout bounds a single attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithHTTPClient replaces the underlying *http.Client, e.g. for custom TLS.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient.HTTPClient = httpClient
		}
	}
}

// NewClient creates a transport. tokenManager may be nil for anonymous access.
func NewClient(tokenManager auth.TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	// Retries are reported through RequestLogHook.
	retryClient.Logger = nil
	// Hand the final response back after retries so the caller can normalize it.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		httpClient:   retryClient,
		tokenManager: tokenManager,
		userAgent:    DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	retryClient.RequestLogHook = c.logRetry

	return c
}

// Do performs the request. String and []byte bodies are sent as is, any other
// body is encoded as JSON.
func (c *Client) Do(ctx context.Context, req *postgrest.Request) (*postgrest.Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	var rawBody interface{}
	if body != nil {
		rawBody = body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, req.URL, rawBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	if body != nil {
		httpReq.Header.Set("Content-Type", postgrest.ContentTypeJSON)
	}

	if c.tokenManager != nil {
		token, err := c.tokenManager.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting token: %w", err)
		}

		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": req.Method,
			"url":    req.URL,
		})
	}

	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL,
			"status":   resp.StatusCode,
			"duration": time.Since(start).String(),
		})
	}

	data, err := decodeBody(resp.Header.Get("Content-Type"), respBody)
	if err != nil {
		return nil, err
	}

	return &postgrest.Response{
		Status:  resp.StatusCode,
		Headers: flattenHeaders(resp.Header),
		Data:    data,
	}, nil
}

// Get fetches url and returns the decoded response.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*postgrest.Response, error) {
	return c.Do(ctx, &postgrest.Request{Method: http.MethodGet, URL: url, Headers: headers})
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(b), nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}

		return encoded, nil
	}
}

// openAPIMediaType is left as text so the document can be parsed with its
// member order intact.
const openAPIMediaType = "application/openapi+json"

// decodeBody parses JSON responses (application/json and +json types such as
// application/vnd.pgrst.object+json) and returns everything else as text.
// An empty body decodes to nil.
func decodeBody(contentType string, body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	if !isJSON(contentType) {
		return string(body), nil
	}

	var data any

	err := json.Unmarshal(body, &data)
	if err != nil {
		return nil, fmt.Errorf("decoding JSON response: %w", err)
	}

	return data, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	if mediaType == openAPIMediaType {
		return false
	}

	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// flattenHeaders lower-cases header names and joins repeated values.
func flattenHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for key, values := range header {
		out[strings.ToLower(key)] = strings.Join(values, ", ")
	}

	return out
}

func (c *Client) logRetry(_ retryablehttp.Logger, req *http.Request, attempt int) {
	if attempt == 0 || c.logger == nil {
		return
	}

	c.logger.Warn("HTTP Retry", map[string]interface{}{
		"method":  req.Method,
		"url":     req.URL.String(),
		"attempt": attempt,
	})
}
