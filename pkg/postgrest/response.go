package postgrest

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

var contentRangePattern = regexp.MustCompile(`^(\w+)\s+(\d+)-(\d+)/(\*|\d+)$`)

// ContentRange is a parsed Content-Range header such as "items 0-24/357".
type ContentRange struct {
	Unit string
	From int
	To   int
	// Total is nil when the server reported "*".
	Total *int
}

// ParseContentRange parses a Content-Range value. It returns nil for anything
// that does not match "<unit> <from>-<to>/<total|*>".
func ParseContentRange(value string) *ContentRange {
	if value == "" {
		return nil
	}

	m := contentRangePattern.FindStringSubmatch(value)
	if m == nil {
		return nil
	}

	from, err := strconv.Atoi(m[2])
	if err != nil {
		return nil
	}

	to, err := strconv.Atoi(m[3])
	if err != nil {
		return nil
	}

	cr := &ContentRange{Unit: m[1], From: from, To: to}

	if m[4] != "*" {
		total, err := strconv.Atoi(m[4])
		if err != nil {
			return nil
		}

		cr.Total = &total
	}

	return cr
}

// contentRangeHeader prefers the lower-cased header name.
func contentRangeHeader(headers map[string]string) string {
	if v, ok := headers["content-range"]; ok {
		return v
	}

	return headers["Content-Range"]
}

// Wrap converts a transport response into a QueryResult, attaching the
// pagination metadata found in its Content-Range header.
func Wrap(resp *Response) *QueryResult[any] {
	result := &QueryResult[any]{
		Data:   resp.Data,
		Status: resp.Status,
	}

	cr := ParseContentRange(contentRangeHeader(resp.Headers))
	if cr != nil {
		result.Total = cr.Total
		result.Range = &ResultRange{From: cr.From, To: cr.To, Unit: cr.Unit}
	}

	return result
}

// Decode re-types the data of a result by round-tripping it through JSON.
func Decode[T any](result *QueryResult[any]) (*QueryResult[T], error) {
	out := &QueryResult[T]{
		Total:  result.Total,
		Range:  result.Range,
		Status: result.Status,
	}

	if result.Data == nil {
		return out, nil
	}

	if typed, ok := result.Data.(T); ok {
		out.Data = typed

		return out, nil
	}

	raw, err := json.Marshal(result.Data)
	if err != nil {
		return nil, fmt.Errorf("encoding result data: %w", err)
	}

	err = json.Unmarshal(raw, &out.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding result data: %w", err)
	}

	return out, nil
}
