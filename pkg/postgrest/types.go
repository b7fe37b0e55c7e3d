package postgrest

// Operator is a PostgREST filter operator.
type Operator string

// Comparison, pattern, set, range and full-text operators.
const (
	OpEqual          Operator = "eq"
	OpGreaterThan    Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLessThan       Operator = "lt"
	OpLessOrEqual    Operator = "lte"
	OpNotEqual       Operator = "neq"
	OpLike           Operator = "like"
	OpILike          Operator = "ilike"
	OpMatch          Operator = "match"
	OpIMatch         Operator = "imatch"
	OpIn             Operator = "in"
	OpIs             Operator = "is"
	OpIsDistinct     Operator = "isdistinct"
	OpFullText       Operator = "fts"
	OpPlainFullText  Operator = "plfts"
	OpPhraseFullText Operator = "phfts"
	OpWebFullText    Operator = "wfts"
	OpContains       Operator = "cs"
	OpContainedBy    Operator = "cd"
	OpOverlaps       Operator = "ov"
	OpStrictlyLeft   Operator = "sl"
	OpStrictlyRight  Operator = "sr"
	OpNotExtendRight Operator = "nxr"
	OpNotExtendLeft  Operator = "nxl"
	OpAdjacent       Operator = "adj"
)

// Logical combinators and quantifiers.
const (
	OpNot Operator = "not"
	OpOr  Operator = "or"
	OpAnd Operator = "and"
	OpAny Operator = "any"
	OpAll Operator = "all"
)

// Operators lists every operator understood by the encoder.
var Operators = []Operator{
	OpEqual, OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual, OpNotEqual,
	OpLike, OpILike, OpMatch, OpIMatch, OpIn, OpIs, OpIsDistinct,
	OpFullText, OpPlainFullText, OpPhraseFullText, OpWebFullText,
	OpContains, OpContainedBy, OpOverlaps,
	OpStrictlyLeft, OpStrictlyRight, OpNotExtendRight, OpNotExtendLeft, OpAdjacent,
	OpNot, OpOr, OpAnd, OpAny, OpAll,
}

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	for _, known := range Operators {
		if op == known {
			return true
		}
	}

	return false
}

// Modifier quantifies an operator over an array value, e.g. eq(any).
type Modifier string

// Quantifier modifiers.
const (
	ModifierAny Modifier = "any"
	ModifierAll Modifier = "all"
)

type nullValue struct{}

// Null is an explicit SQL null filter value. A nil Filter.Value means the
// value is absent and the clause is emitted without a value segment.
var Null = nullValue{}

func (nullValue) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Filter is a single column condition.
type Filter struct {
	Column   string   `json:"column"             yaml:"column"`
	Op       Operator `json:"op"                 yaml:"op"`
	Value    any      `json:"value,omitempty"    yaml:"value,omitempty"`
	Modifier Modifier `json:"modifier,omitempty" yaml:"modifier,omitempty"`
	Negated  bool     `json:"negated,omitempty"  yaml:"negated,omitempty"`
}

// CountStrategy selects how PostgREST counts rows.
type CountStrategy string

// Count strategies.
const (
	CountExact     CountStrategy = "exact"
	CountPlanned   CountStrategy = "planned"
	CountEstimated CountStrategy = "estimated"
)

// ReturnPreference controls the body returned by writes.
type ReturnPreference string

// Return preferences.
const (
	ReturnMinimal        ReturnPreference = "minimal"
	ReturnHeadersOnly    ReturnPreference = "headers-only"
	ReturnRepresentation ReturnPreference = "representation"
)

// ResolutionPreference controls duplicate handling for upserts.
type ResolutionPreference string

// Resolution preferences.
const (
	ResolutionMergeDuplicates  ResolutionPreference = "merge-duplicates"
	ResolutionIgnoreDuplicates ResolutionPreference = "ignore-duplicates"
)

// MissingPreference controls how missing columns are filled.
type MissingPreference string

// MissingDefault fills missing columns with their defaults.
const MissingDefault MissingPreference = "default"

// HandlingPreference controls how unknown preferences are treated.
type HandlingPreference string

// Handling preferences.
const (
	HandlingStrict  HandlingPreference = "strict"
	HandlingLenient HandlingPreference = "lenient"
)

// TxPreference selects the transaction outcome.
type TxPreference string

// Transaction preferences.
const (
	TxCommit   TxPreference = "commit"
	TxRollback TxPreference = "rollback"
)

// PreferenceOptions are encoded into the Prefer header (RFC 7240).
type PreferenceOptions struct {
	Return      ReturnPreference     `json:"return,omitempty"      yaml:"return,omitempty"`
	Resolution  ResolutionPreference `json:"resolution,omitempty"  yaml:"resolution,omitempty"`
	Missing     MissingPreference    `json:"missing,omitempty"     yaml:"missing,omitempty"`
	Count       CountStrategy        `json:"count,omitempty"       yaml:"count,omitempty"`
	Handling    HandlingPreference   `json:"handling,omitempty"    yaml:"handling,omitempty"`
	Timezone    string               `json:"timezone,omitempty"    yaml:"timezone,omitempty"`
	Tx          TxPreference         `json:"tx,omitempty"          yaml:"tx,omitempty"`
	MaxAffected *int                 `json:"maxAffected,omitempty" yaml:"maxAffected,omitempty"`
}

// Pagination is a half-open row window. A nil To means "to the end".
type Pagination struct {
	From int  `json:"from"         yaml:"from"`
	To   *int `json:"to,omitempty" yaml:"to,omitempty"`
}

// Range returns the window from..to.
func Range(from, to int) *Pagination {
	return &Pagination{From: from, To: &to}
}

// OpenRange returns the window starting at from with no upper bound.
func OpenRange(from int) *Pagination {
	return &Pagination{From: from}
}

// Options is implemented by every option type the encoder accepts.
type Options interface {
	queryOptions() *QueryOptions
}

// QueryOptions shapes a read or a filter-driven write.
type QueryOptions struct {
	Select  string             `json:"select,omitempty"  yaml:"select,omitempty"`
	Filters []Filter           `json:"filters,omitempty" yaml:"filters,omitempty"`
	Order   []string           `json:"order,omitempty"   yaml:"order,omitempty"`
	Limit   *int               `json:"limit,omitempty"   yaml:"limit,omitempty"`
	Offset  *int               `json:"offset,omitempty"  yaml:"offset,omitempty"`
	Range   *Pagination        `json:"range,omitempty"   yaml:"range,omitempty"`
	Count   CountStrategy      `json:"count,omitempty"   yaml:"count,omitempty"`
	Headers map[string]string  `json:"headers,omitempty" yaml:"headers,omitempty"`
	Prefer  *PreferenceOptions `json:"prefer,omitempty"  yaml:"prefer,omitempty"`
}

func (o *QueryOptions) queryOptions() *QueryOptions {
	return o
}

// NewQueryOptions creates empty query options.
func NewQueryOptions() *QueryOptions {
	return &QueryOptions{}
}

// WithSelect sets the column projection.
func (o *QueryOptions) WithSelect(columns string) *QueryOptions {
	o.Select = columns

	return o
}

// WithFilter appends a filter.
func (o *QueryOptions) WithFilter(column string, op Operator, value any) *QueryOptions {
	o.Filters = append(o.Filters, Filter{Column: column, Op: op, Value: value})

	return o
}

// WithFilters appends fully specified filters.
func (o *QueryOptions) WithFilters(filters ...Filter) *QueryOptions {
	o.Filters = append(o.Filters, filters...)

	return o
}

// WithOrder appends sort specs such as "created_at.desc".
func (o *QueryOptions) WithOrder(specs ...string) *QueryOptions {
	o.Order = append(o.Order, specs...)

	return o
}

// WithLimit sets the row limit.
func (o *QueryOptions) WithLimit(limit int) *QueryOptions {
	o.Limit = &limit

	return o
}

// WithOffset sets the row offset.
func (o *QueryOptions) WithOffset(offset int) *QueryOptions {
	o.Offset = &offset

	return o
}

// WithRange sets the requested row window.
func (o *QueryOptions) WithRange(window *Pagination) *QueryOptions {
	o.Range = window

	return o
}

// WithCount sets the count strategy.
func (o *QueryOptions) WithCount(strategy CountStrategy) *QueryOptions {
	o.Count = strategy

	return o
}

// WithHeader adds a passthrough header.
func (o *QueryOptions) WithHeader(key, value string) *QueryOptions {
	if o.Headers == nil {
		o.Headers = make(map[string]string)
	}

	o.Headers[key] = value

	return o
}

// WithPrefer sets the preference bundle.
func (o *QueryOptions) WithPrefer(prefer *PreferenceOptions) *QueryOptions {
	o.Prefer = prefer

	return o
}

// clone returns a shallow copy whose slices, maps and preference bundle
// can be changed without touching the caller's value.
func (o *QueryOptions) clone() QueryOptions {
	out := *o
	if o.Filters != nil {
		out.Filters = append([]Filter(nil), o.Filters...)
	}

	if o.Order != nil {
		out.Order = append([]string(nil), o.Order...)
	}

	if o.Headers != nil {
		out.Headers = make(map[string]string, len(o.Headers))
		for k, v := range o.Headers {
			out.Headers[k] = v
		}
	}

	if o.Prefer != nil {
		prefer := *o.Prefer
		out.Prefer = &prefer
	}

	return out
}

// WriteOptions extends QueryOptions for insert, update and upsert.
type WriteOptions struct {
	QueryOptions `yaml:",inline"`

	// Columns restricts which keys of the body are applied.
	Columns string `json:"columns,omitempty" yaml:"columns,omitempty"`
	// OnConflict is the upsert conflict target, e.g. "name" or "(a,b)".
	OnConflict string `json:"on_conflict,omitempty" yaml:"on_conflict,omitempty"`
}

func (o *WriteOptions) queryOptions() *QueryOptions {
	if o == nil {
		return nil
	}

	return &o.QueryOptions
}

// RPCOptions shapes a remote procedure call.
type RPCOptions struct {
	QueryOptions `yaml:",inline"`

	// Method forces GET or POST. Empty selects GET without args and POST with.
	Method string `json:"method,omitempty" yaml:"method,omitempty"`
}

func (o *RPCOptions) queryOptions() *QueryOptions {
	if o == nil {
		return nil
	}

	return &o.QueryOptions
}

// ResultRange is the row window echoed by the server.
type ResultRange struct {
	From int    `json:"from" yaml:"from"`
	To   int    `json:"to"   yaml:"to"`
	Unit string `json:"unit" yaml:"unit"`
}

// QueryResult is the normalized outcome of a successful call. Total is nil
// when the server sent no count or an unbounded one; Range is nil when the
// server sent no Content-Range.
type QueryResult[T any] struct {
	Data   T            `json:"data"   yaml:"data"`
	Total  *int         `json:"total"  yaml:"total"`
	Range  *ResultRange `json:"range"  yaml:"range"`
	Status int          `json:"status" yaml:"status"`
}

// HasMore reports whether rows exist beyond the returned window.
func (r *QueryResult[T]) HasMore() bool {
	if r.Range == nil || r.Total == nil {
		return false
	}

	return r.Range.To+1 < *r.Total
}
