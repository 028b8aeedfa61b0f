package gate

import (
	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/value"
)

// LogicalNamespace is the namespace of the logical gates.
const LogicalNamespace = "logical"

func binaryBool(f func(lhs, rhs bool) bool) Operation {
	return func(in []value.Value) (value.Value, bool) {
		lhs, ok := value.AsBool(in[0])
		if !ok {
			return nil, false
		}
		rhs, ok := value.AsBool(in[1])
		if !ok {
			return nil, false
		}
		return value.Bool(f(lhs, rhs)), true
	}
}

func logical(name string, f func(lhs, rhs bool) bool) Definition {
	return Definition{
		Type:     typeid.NewNamespacedType(LogicalNamespace, name),
		DataType: typeid.DataTypeBool,
		Inputs:   []string{PropertyLHS, PropertyRHS},
		Op:       binaryBool(f),
	}
}

// Logical gates. Binary gates read lhs and rhs; not reads lhs.
var (
	And  = logical("and", func(l, r bool) bool { return l && r })
	Or   = logical("or", func(l, r bool) bool { return l || r })
	Xor  = logical("xor", func(l, r bool) bool { return l != r })
	Nand = logical("nand", func(l, r bool) bool { return !(l && r) })
	Nor  = logical("nor", func(l, r bool) bool { return !(l || r) })
	Xnor = logical("xnor", func(l, r bool) bool { return l == r })

	Not = Definition{
		Type:     typeid.NewNamespacedType(LogicalNamespace, "not"),
		DataType: typeid.DataTypeBool,
		Inputs:   []string{PropertyLHS},
		Op: func(in []value.Value) (value.Value, bool) {
			b, ok := value.AsBool(in[0])
			if !ok {
				return nil, false
			}
			return value.Bool(!b), true
		},
	}
)

// Logical lists every logical gate.
var Logical = []Definition{And, Or, Xor, Nand, Nor, Xnor, Not}
