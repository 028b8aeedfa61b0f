package gate

import (
	"math"

	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/value"
)

// ArithmeticNamespace is the namespace of the arithmetic gates.
const ArithmeticNamespace = "arithmetic"

// numeric holds the integer and float implementations of one operation.
// ok=false skips the write.
type numeric struct {
	ints   func(lhs, rhs int64) (int64, bool)
	floats func(lhs, rhs float64) (float64, bool)
}

// apply uses integer arithmetic when both inputs are integers and float
// arithmetic otherwise.
func (n numeric) apply(in []value.Value) (value.Value, bool) {
	li, lInt := in[0].(value.Int)
	ri, rInt := in[1].(value.Int)
	if lInt && rInt {
		out, ok := n.ints(int64(li), int64(ri))
		if !ok {
			return nil, false
		}
		return value.Int(out), true
	}
	lf, ok := value.AsF64(in[0])
	if !ok {
		return nil, false
	}
	rf, ok := value.AsF64(in[1])
	if !ok {
		return nil, false
	}
	out, ok := n.floats(lf, rf)
	if !ok || math.IsNaN(out) || math.IsInf(out, 0) {
		return nil, false
	}
	return value.Float(out), true
}

func arithmetic(name string, n numeric) Definition {
	return Definition{
		Type:     typeid.NewNamespacedType(ArithmeticNamespace, name),
		DataType: typeid.DataTypeNumber,
		Inputs:   []string{PropertyLHS, PropertyRHS},
		Op:       n.apply,
	}
}

// Arithmetic gates on lhs and rhs.
var (
	Add = arithmetic("add", numeric{
		ints:   func(l, r int64) (int64, bool) { return l + r, true },
		floats: func(l, r float64) (float64, bool) { return l + r, true },
	})
	Sub = arithmetic("sub", numeric{
		ints:   func(l, r int64) (int64, bool) { return l - r, true },
		floats: func(l, r float64) (float64, bool) { return l - r, true },
	})
	Mul = arithmetic("mul", numeric{
		ints:   func(l, r int64) (int64, bool) { return l * r, true },
		floats: func(l, r float64) (float64, bool) { return l * r, true },
	})
	Div = arithmetic("div", numeric{
		ints: func(l, r int64) (int64, bool) {
			if r == 0 {
				return 0, false
			}
			return l / r, true
		},
		floats: func(l, r float64) (float64, bool) { return l / r, r != 0 },
	})
	Mod = arithmetic("mod", numeric{
		ints: func(l, r int64) (int64, bool) {
			if r == 0 {
				return 0, false
			}
			return l % r, true
		},
		floats: func(l, r float64) (float64, bool) { return math.Mod(l, r), r != 0 },
	})
)

// Arithmetic lists every arithmetic gate.
var Arithmetic = []Definition{Add, Sub, Mul, Div, Mod}
