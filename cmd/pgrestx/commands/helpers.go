package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/postgrestx/pkg/postgrest"
	"gopkg.in/yaml.v3"
)

// Common string constants used throughout the commands package.
const (
	Masked = "***"

	// Config and flag keys.
	keyURL      = "url"
	keyToken    = "token"
	keySchema   = "schema"
	keyOutput   = "output"
	keyVerbose  = "verbose"
	keyCache    = "cache"
	keyCacheURL = "cache_url"

	configDirName  = ".pgrestx"
	configFileName = "config.yml"
)

// Common static errors used throughout the commands package.
var (
	ErrURLRequired         = errors.New("PostgREST URL is required (use --url or 'pgrestx config set url')")
	ErrInputRequired       = errors.New("input OpenAPI document is required (--input)")
	ErrOutputDirRequired   = errors.New("output directory is required (--out)")
	ErrBodyRequired        = errors.New("request body is required (--data or --file)")
	ErrBodyConflict        = errors.New("use either --data or --file, not both")
	ErrFilterRequired      = errors.New("at least one --filter is required")
	ErrInvalidRange        = errors.New("invalid range, expected FROM-TO or FROM-")
	ErrInvalidArgument     = errors.New("invalid argument, expected KEY=VALUE")
	ErrUnknownConfigKey    = errors.New("unknown configuration key")
	ErrInvalidOutputFormat = errors.New("invalid output format")
	ErrRowNotFound         = errors.New("row not found")
	ErrAllWithWindow       = errors.New("--all pages through every row; drop --limit and --range (use --offset and --page-size)")
)

// parseFilters parses repeated --filter values of the form
// column=[not.]op[(any|all)][.value].
func parseFilters(exprs []string) ([]postgrest.Filter, error) {
	filters := make([]postgrest.Filter, 0, len(exprs))

	for _, expr := range exprs {
		f, err := postgrest.ParseFilter(expr)
		if err != nil {
			return nil, err
		}

		filters = append(filters, f)
	}

	return filters, nil
}

// parseRange parses "FROM-TO" or the open-ended "FROM-".
func parseRange(value string) (*postgrest.Pagination, error) {
	fromPart, toPart, ok := strings.Cut(value, "-")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, value)
	}

	from, err := strconv.Atoi(fromPart)
	if err != nil || from < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, value)
	}

	if toPart == "" {
		return postgrest.OpenRange(from), nil
	}

	to, err := strconv.Atoi(toPart)
	if err != nil || to < from {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, value)
	}

	return postgrest.Range(from, to), nil
}

// parseArgs turns repeated KEY=VALUE flags into function arguments. Values
// are decoded as YAML scalars, so numbers and booleans keep their type.
func parseArgs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	args := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidArgument, pair)
		}

		var value any

		err := yaml.Unmarshal([]byte(raw), &value)
		if err != nil || value == nil {
			value = raw
		}

		args[key] = value
	}

	return args, nil
}

// readBody loads a request body from inline --data or a --file. Both JSON
// and YAML are accepted.
func readBody(data, file string) (any, error) {
	if data != "" && file != "" {
		return nil, ErrBodyConflict
	}

	raw := []byte(data)

	if file != "" {
		// #nosec G304 -- the path is supplied by the user on purpose
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read body file: %w", err)
		}

		raw = content
	}

	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, ErrBodyRequired
	}

	var body any

	err := yaml.Unmarshal(raw, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse request body: %w", err)
	}

	return body, nil
}
