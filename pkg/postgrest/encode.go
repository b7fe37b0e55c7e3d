package postgrest

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// Header names computed by the encoder.
const (
	HeaderRange       = "Range"
	HeaderRangeUnit   = "Range-Unit"
	HeaderPrefer      = "Prefer"
	HeaderContentType = "Content-Type"
	RangeUnitItems    = "items"
	ContentTypeJSON   = "application/json"
)

// Params is an ordered list of query parameters. Unlike url.Values it keeps
// insertion order and allows repeated keys.
type Params struct {
	keys   []string
	values []string
}

// ParseParams parses an encoded query string, keeping parameter order.
func ParseParams(query string) (*Params, error) {
	params := &Params{}
	if query == "" {
		return params, nil
	}

	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}

		rawKey, rawValue, _ := strings.Cut(pair, "=")

		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("decoding query key %q: %w", rawKey, err)
		}

		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("decoding query value %q: %w", rawValue, err)
		}

		params.Add(key, value)
	}

	return params, nil
}

// Add appends a parameter, keeping any existing ones with the same key.
func (p *Params) Add(key, value string) {
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
}

// Set replaces the first parameter named key and drops later duplicates.
// When key is absent the parameter is appended.
func (p *Params) Set(key, value string) {
	found := false
	keys := p.keys[:0]
	values := p.values[:0]

	for i, k := range p.keys {
		if k != key {
			keys = append(keys, k)
			values = append(values, p.values[i])

			continue
		}

		if !found {
			keys = append(keys, k)
			values = append(values, value)
			found = true
		}
	}

	p.keys = keys
	p.values = values

	if !found {
		p.Add(key, value)
	}
}

// Get returns every value recorded for key, in order.
func (p *Params) Get(key string) []string {
	var out []string

	for i, k := range p.keys {
		if k == key {
			out = append(out, p.values[i])
		}
	}

	return out
}

// Len returns the number of parameters.
func (p *Params) Len() int {
	return len(p.keys)
}

// Encode serializes the parameters in form-urlencoded style.
func (p *Params) Encode() string {
	var b strings.Builder

	for i, k := range p.keys {
		if i > 0 {
			b.WriteByte('&')
		}

		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.values[i]))
	}

	return b.String()
}

func optionsOf(opts Options) *QueryOptions {
	if opts == nil {
		return nil
	}

	return opts.queryOptions()
}

// BuildQueryParams encodes options into a query string without the leading "?".
func BuildQueryParams(opts Options) string {
	return buildParams(opts).Encode()
}

func buildParams(opts Options) *Params {
	params := &Params{}

	q := optionsOf(opts)
	if q == nil {
		return params
	}

	if q.Select != "" {
		params.Set("select", q.Select)
	}

	for _, f := range q.Filters {
		params.Add(f.Column, EncodeFilter(f))
	}

	if len(q.Order) > 0 {
		params.Set("order", strings.Join(q.Order, ","))
	}

	if q.Limit != nil {
		params.Set("limit", strconv.Itoa(*q.Limit))
	}

	if q.Offset != nil {
		params.Set("offset", strconv.Itoa(*q.Offset))
	}

	if w, ok := opts.(*WriteOptions); ok {
		if w.Columns != "" {
			params.Set("columns", w.Columns)
		}

		if w.OnConflict != "" {
			params.Set("on_conflict", w.OnConflict)
		}
	}

	return params
}

// BuildHeaders computes the Range, Range-Unit and Prefer headers for opts and
// merges the caller's passthrough headers over them.
func BuildHeaders(opts Options) map[string]string {
	headers := make(map[string]string)

	q := optionsOf(opts)
	if q == nil {
		return headers
	}

	if q.Range != nil {
		headers[HeaderRangeUnit] = RangeUnitItems
		if q.Range.To != nil {
			headers[HeaderRange] = fmt.Sprintf("%d-%d", q.Range.From, *q.Range.To)
		} else {
			headers[HeaderRange] = fmt.Sprintf("%d-", q.Range.From)
		}
	}

	var tokens []string
	if q.Count != "" {
		tokens = append(tokens, "count="+string(q.Count))
	}

	tokens = append(tokens, EncodePrefer(q.Prefer)...)
	if len(tokens) > 0 {
		headers[HeaderPrefer] = strings.Join(tokens, ", ")
	}

	for k, v := range q.Headers {
		headers[k] = v
	}

	return headers
}

// EncodePrefer returns the Prefer tokens for p in canonical order.
func EncodePrefer(p *PreferenceOptions) []string {
	if p == nil {
		return nil
	}

	var tokens []string
	if p.Return != "" {
		tokens = append(tokens, "return="+string(p.Return))
	}

	if p.Resolution != "" {
		tokens = append(tokens, "resolution="+string(p.Resolution))
	}

	if p.Missing != "" {
		tokens = append(tokens, "missing="+string(p.Missing))
	}

	if p.Count != "" {
		tokens = append(tokens, "count="+string(p.Count))
	}

	if p.Handling != "" {
		tokens = append(tokens, "handling="+string(p.Handling))
	}

	if p.Timezone != "" {
		tokens = append(tokens, "timezone="+p.Timezone)
	}

	if p.Tx != "" {
		tokens = append(tokens, "tx="+string(p.Tx))
	}

	if p.MaxAffected != nil {
		tokens = append(tokens, "max-affected="+strconv.Itoa(*p.MaxAffected))
	}

	return tokens
}

// EncodeFilter renders the parameter value of a single filter:
// [not.]op[(any|all)][.value].
func EncodeFilter(f Filter) string {
	var b strings.Builder
	if f.Negated {
		b.WriteString("not.")
	}

	b.WriteString(string(f.Op))

	if f.Modifier == ModifierAny || f.Modifier == ModifierAll {
		b.WriteString("(" + string(f.Modifier) + ")")
	}

	if f.Value != nil {
		b.WriteByte('.')
		b.WriteString(EncodeValue(f.Value))
	}

	return b.String()
}

// EncodeValue stringifies a filter value. Lists become "(a,b)" with string
// elements double-quoted and inner quotes escaped.
func EncodeValue(v any) string {
	if v == nil {
		return "null"
	}

	if _, ok := v.(nullValue); ok {
		return "null"
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		elems := make([]string, rv.Len())
		for i := range elems {
			elems[i] = encodeElement(rv.Index(i))
		}

		return "(" + strings.Join(elems, ",") + ")"
	}

	return formatScalar(rv)
}

// EncodeArgument stringifies a function argument passed in a GET query.
// Lists become PostgreSQL array literals such as {1,2} or {"a b","c"};
// everything else encodes as EncodeValue does.
func EncodeArgument(v any) string {
	if v == nil {
		return "null"
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return arrayLiteral(rv)
	}

	return EncodeValue(v)
}

func arrayLiteral(rv reflect.Value) string {
	elems := make([]string, rv.Len())

	for i := range elems {
		elem := rv.Index(i)
		if elem.Kind() == reflect.Interface && !elem.IsNil() {
			elem = elem.Elem()
		}

		switch elem.Kind() {
		case reflect.Slice, reflect.Array:
			elems[i] = arrayLiteral(elem)
		case reflect.String:
			escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(elem.String())
			elems[i] = `"` + escaped + `"`
		default:
			elems[i] = formatScalar(elem)
		}
	}

	return "{" + strings.Join(elems, ",") + "}"
}

func encodeElement(rv reflect.Value) string {
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "null"
		}

		rv = rv.Elem()
	}

	if rv.Kind() == reflect.String {
		return `"` + strings.ReplaceAll(rv.String(), `"`, `\"`) + `"`
	}

	return formatScalar(rv)
}

func formatScalar(rv reflect.Value) string {
	if rv.CanInterface() {
		if _, ok := rv.Interface().(nullValue); ok {
			return "null"
		}
	}

	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "null"
		}

		return EncodeValue(rv.Elem().Interface())
	default:
		return fmt.Sprint(rv.Interface())
	}
}

// ParseFilter parses "column=[not.]op[(any|all)][.value]" into a Filter.
// The value is kept as a raw string.
func ParseFilter(expr string) (Filter, error) {
	column, clause, ok := strings.Cut(expr, "=")
	if !ok || column == "" || clause == "" {
		return Filter{}, fmt.Errorf("%w: %q", ErrInvalidFilter, expr)
	}

	f := Filter{Column: column}

	if rest, negated := strings.CutPrefix(clause, "not."); negated {
		f.Negated = true
		clause = rest
	}

	opPart, value, hasValue := strings.Cut(clause, ".")

	if open := strings.IndexByte(opPart, '('); open >= 0 {
		if !strings.HasSuffix(opPart, ")") {
			return Filter{}, fmt.Errorf("%w: unbalanced modifier in %q", ErrInvalidFilter, expr)
		}

		f.Modifier = Modifier(opPart[open+1 : len(opPart)-1])
		if f.Modifier != ModifierAny && f.Modifier != ModifierAll {
			return Filter{}, fmt.Errorf("%w: unknown modifier %q", ErrInvalidFilter, f.Modifier)
		}

		opPart = opPart[:open]
	}

	f.Op = Operator(opPart)
	if !f.Op.Valid() {
		return Filter{}, fmt.Errorf("%w: unknown operator %q", ErrInvalidFilter, opPart)
	}

	if hasValue {
		f.Value = value
	}

	return f, nil
}
