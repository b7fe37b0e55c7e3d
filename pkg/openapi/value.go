package openapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Static errors for err113 compliance.
var (
	ErrUnexpectedToken = errors.New("unexpected JSON token")
	ErrTrailingData    = errors.New("unexpected data after top-level value")
)

// Kind classifies a Value.
type Kind int

// Value kinds. KindUndefined is the zero Value, returned for absent members
// and out-of-range elements.
const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a parsed JSON document node. Object members keep their document
// order. The accessors never panic: asking for the wrong shape reports false
// or returns the undefined Value.
type Value struct {
	kind    Kind
	boolean bool
	number  json.Number
	str     string
	items   []Value
	keys    []string
	members map[string]Value
}

// ParseValue parses a single JSON document.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}

	_, err = dec.Token()
	if !errors.Is(err, io.EOF) {
		return Value{}, ErrTrailingData
	}

	return v, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseValue(data)
	if err != nil {
		return err
	}

	*v = parsed

	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Value{kind: KindNull}, nil
	case bool:
		return Value{kind: KindBool, boolean: t}, nil
	case json.Number:
		return Value{kind: KindNumber, number: t}, nil
	case string:
		return Value{kind: KindString, str: t}, nil
	case json.Delim:
		switch t {
		case '[':
			return decodeArray(dec)
		case '{':
			return decodeObject(dec)
		}
	}

	return Value{}, fmt.Errorf("%w: %v", ErrUnexpectedToken, tok)
}

func decodeArray(dec *json.Decoder) (Value, error) {
	v := Value{kind: KindArray, items: []Value{}}

	for dec.More() {
		item, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}

		v.items = append(v.items, item)
	}

	// closing ']'
	_, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	return v, nil
}

func decodeObject(dec *json.Decoder) (Value, error) {
	v := Value{kind: KindObject, members: map[string]Value{}}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}

		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("%w: object key %v", ErrUnexpectedToken, tok)
		}

		member, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}

		if _, seen := v.members[key]; !seen {
			v.keys = append(v.keys, key)
		}

		v.members[key] = member
	}

	_, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	return v, nil
}

// Kind returns the classification of v.
func (v Value) Kind() Kind {
	return v.kind
}

// IsDefined reports whether v holds any JSON value, null included.
func (v Value) IsDefined() bool {
	return v.kind != KindUndefined
}

// IsObject reports whether v is a JSON object.
func (v Value) IsObject() bool {
	return v.kind == KindObject
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) {
	return v.boolean, v.kind == KindBool
}

// AsNumber returns the number held by v.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}

	f, err := v.number.Float64()
	if err != nil {
		return 0, false
	}

	return f, true
}

// AsArray returns the elements of an array.
func (v Value) AsArray() ([]Value, bool) {
	return v.items, v.kind == KindArray
}

// Keys returns the member names of an object in document order.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}

	return v.keys
}

// Get returns the member key of an object, or the undefined Value.
func (v Value) Get(key string) Value {
	if v.kind != KindObject {
		return Value{}
	}

	return v.members[key]
}

// Path follows a chain of object members.
func (v Value) Path(keys ...string) Value {
	for _, key := range keys {
		v = v.Get(key)
	}

	return v
}

// Strings returns the string elements of an array, skipping anything else.
func (v Value) Strings() []string {
	var out []string

	for _, item := range v.items {
		if s, ok := item.AsString(); ok {
			out = append(out, s)
		}
	}

	return out
}

// Interface converts v back into plain Go values: map[string]any, []any,
// string, float64, bool or nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.boolean
	case KindNumber:
		f, _ := v.AsNumber()

		return f
	case KindString:
		return v.str
	case KindArray:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}

		return out
	case KindObject:
		out := make(map[string]any, len(v.members))
		for key, member := range v.members {
			out[key] = member.Interface()
		}

		return out
	case KindUndefined, KindNull:
		return nil
	default:
		return nil
	}
}
