package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"
)

// Value is a sealed interface over the dynamically-typed property payloads.
// Only Null, Bool, Int, Float, String, Array and Object implement it.
// Int and Float together form the Number kind.
type Value interface {
	Kind() Kind
	value() // sealed
}

// Kind classifies a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
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

// Null is the JSON null value.
// Using an explicit type keeps every Value non-nil.
type Null struct{}

// Bool is a boolean value.
type Bool bool

// Int is an integral number.
type Int int64

// Float is a non-integral (or explicitly floating) number.
type Float float64

// String is a string value.
type String string

// Array is an ordered list of values.
type Array []Value

// Object maps string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Null) value()   {}
func (Bool) value()   {}
func (Int) value()    {}
func (Float) value()  {}
func (String) value() {}
func (Array) value()  {}
func (Object) value() {}

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Int) Kind() Kind    { return KindNumber }
func (Float) Kind() Kind  { return KindNumber }
func (String) Kind() Kind { return KindString }
func (Array) Kind() Kind  { return KindArray }
func (Object) Kind() Kind { return KindObject }

// Pair is a key-value pair for Object construction.
type Pair struct {
	Key   string
	Value Value
}

// O is a shorthand for Pair.
// Example: NewObject(O("lhs", Bool(false)), O("rhs", Bool(false)))
func O(key string, v Value) Pair {
	return Pair{Key: key, Value: v}
}

// NewObject creates an Object from key-value pairs.
func NewObject(pairs ...Pair) Object {
	obj := make(Object, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// NewArray creates an Array from values.
func NewArray(vals ...Value) Array {
	return Array(vals)
}

// AsBool projects v as a bool.
func AsBool(v Value) (bool, bool) {
	b, ok := v.(Bool)
	return bool(b), ok
}

// AsI64 projects v as an int64. Floats do not project.
func AsI64(v Value) (int64, bool) {
	i, ok := v.(Int)
	return int64(i), ok
}

// AsU64 projects v as a uint64. Negative integers do not project.
func AsU64(v Value) (uint64, bool) {
	i, ok := v.(Int)
	if !ok || i < 0 {
		return 0, false
	}
	return uint64(i), true
}

// AsF64 projects any number as a float64.
func AsF64(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	}
	return 0, false
}

// AsString projects v as a string.
func AsString(v Value) (string, bool) {
	s, ok := v.(String)
	return string(s), ok
}

// AsArray projects v as an Array. The returned slice is shared with v.
func AsArray(v Value) (Array, bool) {
	a, ok := v.(Array)
	return a, ok
}

// AsObject projects v as an Object. The returned map is shared with v.
func AsObject(v Value) (Object, bool) {
	o, ok := v.(Object)
	return o, ok
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Equal reports deep structural equality. Numbers compare by numeric value,
// so Int(1) equals Float(1).
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Bool:
		return av == b.(Bool)
	case Int:
		if bi, ok := b.(Int); ok {
			return av == bi
		}
		bf, _ := AsF64(b)
		return float64(av) == bf
	case Float:
		bf, _ := AsF64(b)
		return float64(av) == bf
	case String:
		return av == b.(String)
	case Array:
		bv := b.(Array)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv := b.(Object)
		if len(av) != len(bv) {
			return false
		}
		for k, ae := range av {
			be, ok := bv[k]
			if !ok || !Equal(ae, be) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case Array:
		out := make(Array, len(val))
		for i, e := range val {
			out[i] = Clone(e)
		}
		return out
	case Object:
		out := make(Object, len(val))
		for k, e := range val {
			out[k] = Clone(e)
		}
		return out
	default:
		return v
	}
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's default string ordering is UTF-8 and differs for supplementary planes.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}

func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// FromAny converts a decoded Go value (JSON, YAML or CUE) into a Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return fromUint(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return fromUint(val)
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case json.Number:
		return fromNumber(val)
	case string:
		return String(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			e, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = e
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			e, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = e
		}
		return obj, nil
	case map[any]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("object key %v: not a string", k)
			}
			e, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", ks, err)
			}
			obj[ks] = e
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// MustFromAny is FromAny that panics on error. Intended for literals in tests.
func MustFromAny(v any) Value {
	out, err := FromAny(v)
	if err != nil {
		panic(err)
	}
	return out
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("number out of int64 range: %d", u)
	}
	return Int(u), nil
}

func fromNumber(n json.Number) (Value, error) {
	if i, err := n.Int64(); err == nil {
		return Int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", n, err)
	}
	return Float(f), nil
}

// ToAny converts v back into plain Go values (nil, bool, int64, float64,
// string, []any, map[string]any).
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case String:
		return string(val)
	case Array:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = ToAny(e)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = ToAny(e)
		}
		return out
	}
	return nil
}

// Unmarshal decodes JSON into a Value. Integers stay exact; numbers that do
// not fit int64 decode as Float.
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return FromAny(raw)
}

// Marshal encodes v as JSON with sorted object keys.
// NOTE: this is not canonical (HTML escaping stays on). Use MarshalCanonical
// for hashing and snapshots.
func Marshal(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case Bool:
		return json.Marshal(bool(val))
	case Int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case Float:
		return formatFloat(float64(val))
	case String:
		return json.Marshal(string(val))
	case Array:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := Marshal(e)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case Object:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, fmt.Errorf("marshal key %q: %w", k, err)
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := Marshal(val[k])
			if err != nil {
				return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// formatFloat keeps a trailing ".0" on integral floats so Float survives a
// JSON round trip as Float.
func formatFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("unsupported float value: %v", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !bytes.ContainsAny([]byte(s), ".eE") {
		s += ".0"
	}
	return []byte(s), nil
}

func (Null) MarshalJSON() ([]byte, error)       { return []byte("null"), nil }
func (f Float) MarshalJSON() ([]byte, error)    { return formatFloat(float64(f)) }
func (arr Array) MarshalJSON() ([]byte, error)  { return Marshal(arr) }
func (obj Object) MarshalJSON() ([]byte, error) { return Marshal(obj) }

// UnmarshalJSON implements json.Unmarshaler for Object.
func (obj *Object) UnmarshalJSON(data []byte) error {
	v, err := Unmarshal(data)
	if err != nil {
		return err
	}
	o, ok := v.(Object)
	if !ok {
		return fmt.Errorf("expected object, got %s", v.Kind())
	}
	*obj = o
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Array.
func (arr *Array) UnmarshalJSON(data []byte) error {
	v, err := Unmarshal(data)
	if err != nil {
		return err
	}
	a, ok := v.(Array)
	if !ok {
		return fmt.Errorf("expected array, got %s", v.Kind())
	}
	*arr = a
	return nil
}
