package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/fivetwenty-io/postgrestx/pkg/postgrest"
)

// Static errors for err113 compliance.
var (
	ErrParseSpec   = errors.New("failed to parse OpenAPI JSON")
	ErrFetchSpec   = errors.New("failed to fetch OpenAPI document")
	ErrNotAnObject = errors.New("document is not a JSON object")
)

// ContentTypeOpenAPI is what PostgREST serves its root document as.
const ContentTypeOpenAPI = "application/openapi+json"

// Fetcher retrieves a URL. *internal/http.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string, headers map[string]string) (*postgrest.Response, error)
}

// LoadSpec reads and parses an OpenAPI (Swagger v2 or OpenAPI v3) JSON file.
func LoadSpec(path string) (Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Value{}, fmt.Errorf("reading OpenAPI document: %w", err)
	}

	return ParseSpec(path, data)
}

// ParseSpec parses data as an OpenAPI document. source names the document
// in errors.
func ParseSpec(source string, data []byte) (Value, error) {
	doc, err := ParseValue(data)
	if err != nil {
		return Value{}, fmt.Errorf("%w at %s: %w", ErrParseSpec, source, err)
	}

	if !doc.IsObject() {
		return Value{}, fmt.Errorf("%w at %s: %w", ErrParseSpec, source, ErrNotAnObject)
	}

	return doc, nil
}

// FetchSpec downloads the OpenAPI document served at url, usually the
// PostgREST root.
func FetchSpec(ctx context.Context, fetcher Fetcher, url string) (Value, error) {
	resp, err := fetcher.Get(ctx, url, map[string]string{"Accept": ContentTypeOpenAPI})
	if err != nil {
		return Value{}, fmt.Errorf("%w: %w", ErrFetchSpec, err)
	}

	if resp.Status >= http.StatusBadRequest {
		return Value{}, fmt.Errorf("%w: %w", ErrFetchSpec, postgrest.NormalizeError(resp))
	}

	var data []byte

	switch body := resp.Data.(type) {
	case string:
		data = []byte(body)
	default:
		// Already decoded as plain JSON. Member order is lost.
		data, err = json.Marshal(body)
		if err != nil {
			return Value{}, fmt.Errorf("encoding OpenAPI document: %w", err)
		}
	}

	return ParseSpec(url, data)
}
