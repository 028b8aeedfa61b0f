package connector

import (
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/rgraph/internal/value"
)

// Function maps the outbound value to the value written to the inbound
// property.
type Function func(value.Value) value.Value

// Built-in function names.
const (
	FuncDefault  = "default_connector"
	FuncToString = "to_string"
	FuncParseInt = "parse_int"
	FuncNot      = "not"
)

var functions = map[string]Function{
	FuncDefault:  Identity,
	FuncToString: ToString,
	FuncParseInt: ParseInt,
	FuncNot:      Not,
}

// Identity propagates the value unchanged.
func Identity(v value.Value) value.Value { return v }

// ToString renders the value as its JSON text.
func ToString(v value.Value) value.Value {
	b, err := value.Marshal(v)
	if err != nil {
		return value.Null{}
	}
	return value.String(b)
}

// ParseInt parses a decimal string into an integer. Numbers are truncated.
// Anything else yields null.
func ParseInt(v value.Value) value.Value {
	switch x := v.(type) {
	case value.String:
		n, err := strconv.ParseInt(strings.TrimSpace(string(x)), 10, 64)
		if err != nil {
			return value.Null{}
		}
		return value.Int(n)
	case value.Int:
		return x
	case value.Float:
		return value.Int(int64(x))
	}
	return value.Null{}
}

// Not negates a boolean. Non-booleans yield null.
func Not(v value.Value) value.Value {
	if b, ok := value.AsBool(v); ok {
		return value.Bool(!b)
	}
	return value.Null{}
}

// LookupFunction returns the built-in function registered under name.
func LookupFunction(name string) (Function, bool) {
	f, ok := functions[name]
	return f, ok
}

// FunctionNames returns the names of the built-in functions.
func FunctionNames() []string {
	names := make([]string, 0, len(functions))
	for n := range functions {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
