package openapi

import (
	"encoding/json"
	"fmt"
	"go/format"
	"strings"
	"unicode"

	"github.com/fivetwenty-io/postgrestx/pkg/postgrest"
)

// DefaultPackage is the package name of generated code when none is given.
const DefaultPackage = "models"

const kindArray = "array"

// OperatorSet is the filter operators valid for one column kind.
type OperatorSet struct {
	Kind      string
	Name      string
	Operators []postgrest.Operator
}

// OperatorSets lists the operator set of every column kind, in the order they
// are emitted.
var OperatorSets = []OperatorSet{
	{Kind: TypeString, Name: "StringOps", Operators: []postgrest.Operator{
		postgrest.OpEqual, postgrest.OpNotEqual, postgrest.OpLike, postgrest.OpILike,
		postgrest.OpMatch, postgrest.OpIMatch, postgrest.OpIn, postgrest.OpIs, postgrest.OpIsDistinct,
		postgrest.OpFullText, postgrest.OpPlainFullText, postgrest.OpPhraseFullText, postgrest.OpWebFullText,
	}},
	{Kind: TypeNumber, Name: "NumberOps", Operators: []postgrest.Operator{
		postgrest.OpEqual, postgrest.OpNotEqual, postgrest.OpGreaterThan, postgrest.OpGreaterOrEqual,
		postgrest.OpLessThan, postgrest.OpLessOrEqual, postgrest.OpIn, postgrest.OpIs, postgrest.OpIsDistinct,
	}},
	{Kind: TypeBoolean, Name: "BooleanOps", Operators: []postgrest.Operator{
		postgrest.OpEqual, postgrest.OpNotEqual, postgrest.OpIs, postgrest.OpIsDistinct,
	}},
	{Kind: kindArray, Name: "ArrayOps", Operators: []postgrest.Operator{
		postgrest.OpEqual, postgrest.OpNotEqual, postgrest.OpContains, postgrest.OpContainedBy,
		postgrest.OpOverlaps, postgrest.OpIs,
	}},
	{Kind: TypeRecord, Name: "RecordOps", Operators: []postgrest.Operator{
		postgrest.OpEqual, postgrest.OpNotEqual, postgrest.OpContains, postgrest.OpContainedBy, postgrest.OpIs,
	}},
	{Kind: TypeUnknown, Name: "UnknownOps", Operators: []postgrest.Operator{
		postgrest.OpEqual, postgrest.OpNotEqual, postgrest.OpIn, postgrest.OpIs,
	}},
}

// OperatorsFor returns the operators valid for a column type.
func OperatorsFor(columnType string) []postgrest.Operator {
	return operatorSet(ColumnKind(columnType)).Operators
}

func operatorSet(kind string) OperatorSet {
	for _, set := range OperatorSets {
		if set.Kind == kind {
			return set
		}
	}

	return OperatorSets[len(OperatorSets)-1]
}

// EmitMetadata renders the introspection as indented JSON.
func EmitMetadata(in *Introspection) ([]byte, error) {
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}

	return append(data, '\n'), nil
}

// EmitGo renders Go declarations for the introspection: a row struct, name
// constants and an operator lookup per table, an argument struct and name
// constant per function, and the shared operator sets.
func EmitGo(in *Introspection, pkg string) ([]byte, error) {
	if pkg == "" {
		pkg = DefaultPackage
	}

	e := &emitter{tables: make(map[string]string, len(in.Tables))}
	for _, table := range in.Tables {
		e.tables[table.Name] = GoName(table.Name)
	}

	e.line("// Code generated by pgrestx generate. DO NOT EDIT.")
	e.line("")
	e.line("package %s", pkg)
	e.line("")
	e.line("import %q", "github.com/fivetwenty-io/postgrestx/pkg/postgrest")

	e.operatorSets()

	for i := range in.Tables {
		e.table(&in.Tables[i])
	}

	for _, rpc := range in.RPCs {
		e.rpc(rpc)
	}

	src, err := format.Source([]byte(e.b.String()))
	if err != nil {
		return nil, fmt.Errorf("formatting generated code: %w", err)
	}

	return src, nil
}

type emitter struct {
	b      strings.Builder
	tables map[string]string
}

func (e *emitter) line(layout string, args ...any) {
	fmt.Fprintf(&e.b, layout, args...)
	e.b.WriteByte('\n')
}

func (e *emitter) operatorSets() {
	e.line("")
	e.line("// Filter operators by column kind.")
	e.line("var (")

	for _, set := range OperatorSets {
		quoted := make([]string, len(set.Operators))
		for i, op := range set.Operators {
			quoted[i] = fmt.Sprintf("%q", op)
		}

		e.line("%s = []postgrest.Operator{%s}", set.Name, strings.Join(quoted, ", "))
	}

	e.line(")")
}

func (e *emitter) table(table *Table) {
	name := e.tables[table.Name]

	e.line("")
	e.line("// %s is a row of the %s table.", name, table.Name)
	e.structType(name, table.Columns)

	e.line("")
	e.line("// %s table and column names.", name)
	e.line("const (")
	e.line("%sTable = %q", name, table.Name)

	for _, column := range table.Columns {
		e.line("%s%s = %q", name, GoName(column.Name), column.Name)
	}

	e.line(")")

	// Group columns by operator set, in first-seen order.
	var kinds []string

	byKind := make(map[string][]string)

	for _, column := range table.Columns {
		kind := operatorSet(ColumnKind(column.Type)).Name
		if _, seen := byKind[kind]; !seen {
			kinds = append(kinds, kind)
		}

		byKind[kind] = append(byKind[kind], name+GoName(column.Name))
	}

	e.line("")
	e.line("// %sOperators returns the filter operators valid for a column of %s.", name, table.Name)
	e.line("func %sOperators(column string) []postgrest.Operator {", name)
	e.line("switch column {")

	for _, kind := range kinds {
		e.line("case %s:", strings.Join(byKind[kind], ", "))
		e.line("return %s", kind)
	}

	e.line("default:")
	e.line("return nil")
	e.line("}")
	e.line("}")
}

func (e *emitter) rpc(rpc RPC) {
	name := GoName(rpc.Name)

	if len(rpc.Args) > 0 {
		e.line("")
		e.line("// %sArgs are the arguments of the %s function.", name, rpc.Name)
		e.structType(name+"Args", rpc.Args)
	}

	e.line("")
	e.line("// %sFunction is the name of the %s function.", name, rpc.Name)
	e.line("const %sFunction = %q", name, rpc.Name)
}

func (e *emitter) structType(name string, columns []Column) {
	e.line("type %s struct {", name)

	for _, column := range columns {
		goType, nillable := e.goType(column.Type)

		tag := column.Name
		if !column.Required {
			tag += ",omitempty"

			if !nillable {
				goType = "*" + goType
			}
		}

		e.line("%s %s `json:%q`", GoName(column.Name), goType, tag)
	}

	e.line("}")
}

// goType maps a column type onto a Go type and reports whether that type
// already has a nil value.
func (e *emitter) goType(columnType string) (string, bool) {
	if elem, ok := strings.CutSuffix(columnType, arraySuffix); ok {
		inner, _ := e.goType(elem)

		return "[]" + inner, true
	}

	switch columnType {
	case TypeNumber:
		return "float64", false
	case TypeBoolean:
		return "bool", false
	case TypeString:
		return "string", false
	case TypeRecord:
		return "map[string]any", true
	case TypeUnknown:
		return "any", true
	}

	if name, ok := e.tables[columnType]; ok {
		return name, false
	}

	return "any", true
}

var initialisms = map[string]bool{
	"API": true, "HTML": true, "HTTP": true, "ID": true, "IP": true, "JSON": true,
	"SQL": true, "URI": true, "URL": true, "UUID": true, "XML": true,
}

// GoName converts a database identifier into an exported Go identifier:
// "user_id" becomes "UserID" and "created-at" becomes "CreatedAt".
func GoName(identifier string) string {
	words := strings.FieldsFunc(identifier, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var b strings.Builder

	for _, word := range words {
		if upper := strings.ToUpper(word); initialisms[upper] {
			b.WriteString(upper)

			continue
		}

		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}

	name := b.String()
	if name == "" || !unicode.IsLetter([]rune(name)[0]) {
		name = "X" + name
	}

	return name
}
