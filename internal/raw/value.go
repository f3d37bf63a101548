// Package raw reads the nested, loosely shaped records published by the
// parliament open-data feed.
//
// The feed omits keys, sends nulls and empty strings for missing data, and
// serializes a list with a single element as a bare object. Value absorbs
// all of that: any absent or falsy branch reads as Null, and ToList turns
// "one object or many" into a slice.
package raw

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Kind identifies the JSON type held by a Value.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "null"
	}
}

// Value is an immutable JSON value. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	arr  []Value
	obj  map[string]Value
}

// Constructors, mostly for tests and fixtures.

func NewString(s string) Value      { return Value{kind: String, str: s} }
func NewBool(b bool) Value          { return Value{kind: Bool, b: b} }
func NewNumber(n json.Number) Value { return Value{kind: Number, num: n} }
func NewArray(items ...Value) Value { return Value{kind: Array, arr: items} }

// NewObject builds an object value from a map of children.
func NewObject(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: Object, obj: fields}
}

// FromAny converts the output of encoding/json (decoded into any) into a Value.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Value{}
	case bool:
		return NewBool(t)
	case json.Number:
		return NewNumber(t)
	case float64:
		return NewNumber(json.Number(strconv.FormatFloat(t, 'f', -1, 64)))
	case string:
		return NewString(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return Value{kind: Array, arr: items}
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[k] = FromAny(item)
		}
		return Value{kind: Object, obj: fields}
	default:
		return NewString(fmt.Sprint(t))
	}
}

// Parse decodes a JSON document into a Value.
func Parse(data []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return Value{}, err
	}
	return v, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return fmt.Errorf("decoding json: %w", err)
	}
	*v = FromAny(x)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case Bool:
		return json.Marshal(v.b)
	case Number:
		return []byte(v.num.String()), nil
	case String:
		return json.Marshal(v.str)
	case Array:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	case Object:
		if v.obj == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.obj)
	default:
		return []byte("null"), nil
	}
}

// Kind returns the JSON type of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == Null }

// Truthy follows the feed's notion of "present": null, false, 0, "", [] and
// {} all count as absent.
func (v Value) Truthy() bool {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		f, err := v.num.Float64()
		return err != nil || f != 0
	case String:
		return v.str != ""
	case Array:
		return len(v.arr) > 0
	case Object:
		return len(v.obj) > 0
	default:
		return false
	}
}

// Get returns the child stored under key. A missing key, a non-object
// receiver and a falsy child all yield Null, so lookups can be chained
// without checks: v.Get("a").Get("b").Text("").
//
// Dumps of different legislatures disagree on the case of the first
// letter of a key ("iniId" before XVI, "IniId" since); when key is
// absent, the other spelling is tried as well.
func (v Value) Get(key string) Value {
	if v.kind != Object {
		return Value{}
	}
	if child, ok := v.obj[key]; ok && child.Truthy() {
		return child
	}
	if alt := flipFirst(key); alt != key {
		if child, ok := v.obj[alt]; ok && child.Truthy() {
			return child
		}
	}
	return Value{}
}

func flipFirst(key string) string {
	r, size := utf8.DecodeRuneInString(key)
	switch {
	case unicode.IsUpper(r):
		return string(unicode.ToLower(r)) + key[size:]
	case unicode.IsLower(r):
		return string(unicode.ToUpper(r)) + key[size:]
	default:
		return key
	}
}

// Path is Get applied once per key.
func (v Value) Path(keys ...string) Value {
	for _, k := range keys {
		v = v.Get(k)
	}
	return v
}

// Or returns v when it is truthy, otherwise def.
func (v Value) Or(def Value) Value {
	if v.Truthy() {
		return v
	}
	return def
}

// Text renders a truthy scalar as a string and returns def for anything
// absent, falsy or non-scalar.
func (v Value) Text(def string) string {
	if !v.Truthy() {
		return def
	}
	switch v.kind {
	case String:
		return v.str
	case Number:
		return v.num.String()
	case Bool:
		return "true"
	default:
		return def
	}
}

// Str is shorthand for v.Get(key).Text(def).
func (v Value) Str(key, def string) string {
	return v.Get(key).Text(def)
}

// Items returns the elements of an array, or nil for any other kind.
func (v Value) Items() []Value {
	if v.kind != Array {
		return nil
	}
	return v.arr
}

// Keys returns the keys of an object in unspecified order.
func (v Value) Keys() []string {
	if v.kind != Object {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	return keys
}
