package typeid

import (
	"fmt"

	"github.com/roach88/rgraph/internal/value"
)

// DataType is the declared payload type of a property.
type DataType string

const (
	DataTypeNull   DataType = "null"
	DataTypeBool   DataType = "bool"
	DataTypeNumber DataType = "number"
	DataTypeString DataType = "string"
	DataTypeArray  DataType = "array"
	DataTypeObject DataType = "object"
	DataTypeAny    DataType = "any"
)

// ParseDataType validates s as a DataType.
func ParseDataType(s string) (DataType, error) {
	switch dt := DataType(s); dt {
	case DataTypeNull, DataTypeBool, DataTypeNumber, DataTypeString,
		DataTypeArray, DataTypeObject, DataTypeAny:
		return dt, nil
	}
	return "", fmt.Errorf("unknown data type %q", s)
}

// DefaultValue returns the zero payload for the data type.
func (d DataType) DefaultValue() value.Value {
	switch d {
	case DataTypeBool:
		return value.Bool(false)
	case DataTypeNumber:
		return value.Int(0)
	case DataTypeString:
		return value.String("")
	case DataTypeArray:
		return value.Array{}
	case DataTypeObject:
		return value.Object{}
	default:
		return value.Null{}
	}
}

// Accepts reports whether v conforms to the data type. Null is accepted by
// every data type.
func (d DataType) Accepts(v value.Value) bool {
	if value.IsNull(v) || d == DataTypeAny {
		return true
	}
	switch d {
	case DataTypeBool:
		return v.Kind() == value.KindBool
	case DataTypeNumber:
		return v.Kind() == value.KindNumber
	case DataTypeString:
		return v.Kind() == value.KindString
	case DataTypeArray:
		return v.Kind() == value.KindArray
	case DataTypeObject:
		return v.Kind() == value.KindObject
	}
	return false
}

// Mutability controls whether checked writes may change a property.
type Mutability string

const (
	Mutable   Mutability = "mutable"
	Immutable Mutability = "immutable"
)

// PropertyType declares a property of a component or reactive type.
type PropertyType struct {
	Name       string
	DataType   DataType
	Mutability Mutability
	// Default overrides the data type's default value when set.
	Default value.Value
}

// NewPropertyType declares a mutable property with the data type default.
func NewPropertyType(name string, dt DataType) PropertyType {
	return PropertyType{Name: name, DataType: dt, Mutability: Mutable}
}

// WithDefault returns a copy of p with the given default value.
func (p PropertyType) WithDefault(v value.Value) PropertyType {
	p.Default = v
	return p
}

// DefaultValue returns the declared default, falling back to the data type's.
func (p PropertyType) DefaultValue() value.Value {
	if p.Default != nil {
		return value.Clone(p.Default)
	}
	return p.DataType.DefaultValue()
}

// IsMutable reports whether the property accepts checked writes. An unset
// mutability counts as mutable.
func (p PropertyType) IsMutable() bool {
	return p.Mutability != Immutable
}
