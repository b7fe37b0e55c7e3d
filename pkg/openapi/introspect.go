package openapi

import "strings"

// Column types produced by introspection. Array columns are the element type
// followed by "[]"; $ref columns use the referenced schema name.
const (
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeString  = "string"
	TypeRecord  = "record"
	TypeUnknown = "unknown"
)

const (
	arraySuffix     = "[]"
	rpcPathPrefix   = "/rpc/"
	conventionalPK  = "id"
	jsonContentType = "application/json"
)

// Column is a table column or function argument.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Table is an object schema with at least one property.
type Table struct {
	Name       string   `json:"name"`
	Columns    []Column `json:"columns"`
	PrimaryKey string   `json:"primaryKey,omitempty"`
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}

	return Column{}, false
}

// RPC is a database function exposed under /rpc/.
type RPC struct {
	Name string   `json:"name"`
	Args []Column `json:"args"`
}

// Introspection is what a PostgREST OpenAPI document says about the schema.
type Introspection struct {
	Tables []Table `json:"tables"`
	RPCs   []RPC   `json:"rpcs"`
}

// Table returns the named table.
func (in *Introspection) Table(name string) (*Table, bool) {
	for i := range in.Tables {
		if in.Tables[i].Name == name {
			return &in.Tables[i], true
		}
	}

	return nil, false
}

// Introspect reads tables from Swagger v2 definitions or OpenAPI v3
// components.schemas, and functions from the /rpc/ paths. Tables and
// functions keep document order.
func Introspect(doc Value) *Introspection {
	result := &Introspection{Tables: []Table{}, RPCs: []RPC{}}

	schemas := doc.Get("definitions")
	if !schemas.IsObject() {
		schemas = doc.Path("components", "schemas")
	}

	for _, name := range schemas.Keys() {
		table, ok := tableFromSchema(name, schemas.Get(name))
		if ok {
			result.Tables = append(result.Tables, table)
		}
	}

	paths := doc.Get("paths")
	for _, path := range paths.Keys() {
		if !strings.HasPrefix(path, rpcPathPrefix) {
			continue
		}

		name := strings.TrimPrefix(path, rpcPathPrefix)
		if name == "" {
			continue
		}

		result.RPCs = append(result.RPCs, RPC{Name: name, Args: rpcArgs(paths.Get(path))})
	}

	return result
}

func tableFromSchema(name string, def Value) (Table, bool) {
	if t, _ := def.Get("type").AsString(); t != "object" {
		return Table{}, false
	}

	columns := objectColumns(def)
	if len(columns) == 0 {
		return Table{}, false
	}

	table := Table{Name: name, Columns: columns}

	if pk, ok := table.Column(conventionalPK); ok && pk.Required {
		table.PrimaryKey = conventionalPK
	}

	return table, true
}

// objectColumns lists the properties of an object schema.
func objectColumns(def Value) []Column {
	props := def.Get("properties")
	required := make(map[string]bool)

	for _, name := range def.Get("required").Strings() {
		required[name] = true
	}

	columns := make([]Column, 0, len(props.Keys()))
	for _, name := range props.Keys() {
		columns = append(columns, Column{
			Name:     name,
			Type:     ResolveType(props.Get(name)),
			Required: required[name],
		})
	}

	return columns
}

// rpcArgs reads the arguments of a function from its POST operation: the
// Swagger v2 body parameter or the OpenAPI v3 JSON request body.
func rpcArgs(item Value) []Column {
	post := item.Get("post")

	params, _ := post.Get("parameters").AsArray()
	for _, param := range params {
		if in, _ := param.Get("in").AsString(); in == "body" {
			return objectColumns(param.Get("schema"))
		}
	}

	schema := post.Path("requestBody", "content", jsonContentType, "schema")
	if schema.IsObject() {
		return objectColumns(schema)
	}

	return []Column{}
}

// ResolveType maps a property schema onto a column type.
func ResolveType(prop Value) string {
	if !prop.IsObject() {
		return TypeUnknown
	}

	if ref, ok := prop.Get("$ref").AsString(); ok {
		return refName(ref)
	}

	t, _ := prop.Get("type").AsString()
	if t == "array" {
		return ResolveType(prop.Get("items")) + arraySuffix
	}

	switch t {
	case "integer", "number":
		return TypeNumber
	case "boolean":
		return TypeBoolean
	case "string":
		return TypeString
	case "object":
		return TypeRecord
	default:
		return TypeUnknown
	}
}

func refName(ref string) string {
	return ref[strings.LastIndex(ref, "/")+1:]
}

// ColumnKind groups a column type by the filter operators it supports:
// one of the Type constants, with arrays reported as "array" and
// references as unknown.
func ColumnKind(columnType string) string {
	switch columnType {
	case TypeNumber, TypeBoolean, TypeString, TypeRecord:
		return columnType
	}

	if strings.HasSuffix(columnType, arraySuffix) {
		return kindArray
	}

	return TypeUnknown
}
