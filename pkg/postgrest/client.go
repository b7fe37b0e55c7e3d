package postgrest

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Client issues PostgREST requests over an injected Transport. A Client is
// immutable after construction and safe for concurrent use.
type Client struct {
	baseURL   string
	transport Transport
	logger    Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used for request and response debug entries.
func WithLogger(logger Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client rooted at baseURL. One trailing slash is stripped.
func NewClient(baseURL string, transport Transport, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	if transport == nil {
		return nil, ErrTransportRequired
	}

	c := &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		transport: transport,
		logger:    NoopLogger{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Select reads rows from a table or view.
func (c *Client) Select(ctx context.Context, resource string, opts *QueryOptions) (*QueryResult[any], error) {
	req := &Request{
		Method:  http.MethodGet,
		URL:     c.resourceURL(resource, BuildQueryParams(opts)),
		Headers: BuildHeaders(opts),
	}

	return c.execute(ctx, "selecting rows", req)
}

// Insert creates rows. Ask for the new rows with Prefer return=representation.
func (c *Client) Insert(ctx context.Context, resource string, body any, opts *WriteOptions) (*QueryResult[any], error) {
	req := &Request{
		Method:  http.MethodPost,
		URL:     c.resourceURL(resource, BuildQueryParams(opts)),
		Headers: jsonHeaders(BuildHeaders(opts)),
		Body:    body,
	}

	return c.execute(ctx, "inserting rows", req)
}

// Update patches the rows matched by the option filters.
func (c *Client) Update(ctx context.Context, resource string, body any, opts *WriteOptions) (*QueryResult[any], error) {
	req := &Request{
		Method:  http.MethodPatch,
		URL:     c.resourceURL(resource, BuildQueryParams(opts)),
		Headers: jsonHeaders(BuildHeaders(opts)),
		Body:    body,
	}

	return c.execute(ctx, "updating rows", req)
}

// Delete removes the rows matched by the option filters.
func (c *Client) Delete(ctx context.Context, resource string, opts *QueryOptions) (*QueryResult[any], error) {
	req := &Request{
		Method:  http.MethodDelete,
		URL:     c.resourceURL(resource, BuildQueryParams(opts)),
		Headers: BuildHeaders(opts),
	}

	return c.execute(ctx, "deleting rows", req)
}

// Upsert inserts rows, merging duplicates unless opts picks another resolution.
func (c *Client) Upsert(ctx context.Context, resource string, body any, opts *WriteOptions) (*QueryResult[any], error) {
	effective := &WriteOptions{}
	if opts != nil {
		effective.QueryOptions = opts.QueryOptions.clone()
		effective.Columns = opts.Columns
		effective.OnConflict = opts.OnConflict
	}

	if effective.Prefer == nil {
		effective.Prefer = &PreferenceOptions{}
	}

	if effective.Prefer.Resolution == "" {
		effective.Prefer.Resolution = ResolutionMergeDuplicates
	}

	req := &Request{
		Method:  http.MethodPost,
		URL:     c.resourceURL(resource, BuildQueryParams(effective)),
		Headers: jsonHeaders(BuildHeaders(effective)),
		Body:    body,
	}

	return c.execute(ctx, "upserting rows", req)
}

// RPC calls a database function. Without an explicit method it uses GET when
// args is nil and POST otherwise. GET calls pass args as query parameters.
func (c *Client) RPC(ctx context.Context, fn string, args map[string]any, opts *RPCOptions) (*QueryResult[any], error) {
	method, err := rpcMethod(args, opts)
	if err != nil {
		return nil, err
	}

	params := buildParams(opts)
	headers := BuildHeaders(opts)
	base := c.baseURL + "/rpc/" + fn

	req := &Request{Method: method, Headers: headers}

	if method == http.MethodGet {
		keys := make([]string, 0, len(args))
		for k := range args {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			params.Add(k, EncodeArgument(args[k]))
		}
	} else {
		headers[HeaderContentType] = ContentTypeJSON

		if args == nil {
			req.Body = map[string]any{}
		} else {
			req.Body = args
		}
	}

	req.URL = withQuery(base, params.Encode())

	return c.execute(ctx, "calling function "+fn, req)
}

func rpcMethod(args map[string]any, opts *RPCOptions) (string, error) {
	if opts != nil && opts.Method != "" {
		method := strings.ToUpper(opts.Method)
		if method != http.MethodGet && method != http.MethodPost {
			return "", fmt.Errorf("%w: %s", ErrInvalidMethod, opts.Method)
		}

		return method, nil
	}

	if args == nil {
		return http.MethodGet, nil
	}

	return http.MethodPost, nil
}

func (c *Client) resourceURL(resource, query string) string {
	return withQuery(c.baseURL+"/"+resource, query)
}

func withQuery(base, query string) string {
	if query == "" {
		return base
	}

	return base + "?" + query
}

// jsonHeaders sets the JSON content type ahead of the computed headers so a
// caller passthrough header can still replace it.
func jsonHeaders(computed map[string]string) map[string]string {
	headers := map[string]string{HeaderContentType: ContentTypeJSON}
	for k, v := range computed {
		headers[k] = v
	}

	return headers
}

func (c *Client) execute(ctx context.Context, action string, req *Request) (*QueryResult[any], error) {
	c.logger.Debug("PostgREST Request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL,
	})

	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}

	if resp == nil {
		return nil, fmt.Errorf("%s: %w", action, ErrNilResponse)
	}

	c.logger.Debug("PostgREST Response", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL,
		"status": resp.Status,
	})

	if resp.Status >= http.StatusBadRequest {
		return nil, NormalizeError(resp)
	}

	return Wrap(resp), nil
}
