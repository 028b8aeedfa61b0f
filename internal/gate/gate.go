// Package gate implements the logical and arithmetic gate entity
// behaviours. A gate observes its input properties and writes the result of
// its operation to the result property whenever an input is emitted.
//
// Gates do not compute on connect; the result changes with the next input
// emission.
package gate

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/roach88/rgraph/internal/behaviour"
	"github.com/roach88/rgraph/internal/property"
	"github.com/roach88/rgraph/internal/reactive"
	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/value"
)

// Gate properties.
const (
	PropertyLHS    = "lhs"
	PropertyRHS    = "rhs"
	PropertyResult = "result"
)

// Operation computes the result from the current input values. ok=false
// skips the write.
type Operation func(inputs []value.Value) (out value.Value, ok bool)

// Gate is the behaviour state of one gate on one entity.
type Gate struct {
	entity *reactive.Entity
	inputs []string
	op     Operation
	logger *slog.Logger

	observers property.Observers
}

var (
	_ behaviour.Validator   = (*Gate)(nil)
	_ behaviour.Transitions = (*Gate)(nil)
)

// New creates a gate reading inputs and writing PropertyResult.
func New(entity *reactive.Entity, inputs []string, op Operation, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{entity: entity, inputs: inputs, op: op, logger: logger}
}

// Validate checks that every input and the result property exist.
func (g *Gate) Validate() error {
	for _, name := range slices.Concat(g.inputs, []string{PropertyResult}) {
		if !g.entity.HasProperty(name) {
			return fmt.Errorf("gate %s: missing property %q", g.entity.ID(), name)
		}
	}
	return nil
}

func (g *Gate) Init() error { return nil }

// Connect observes every input.
func (g *Gate) Connect() error {
	for _, name := range g.inputs {
		if _, ok := g.observers.Observe(g.entity.Properties(), name, g.compute); !ok {
			g.observers.RemoveAll()
			return fmt.Errorf("gate %s: missing property %q", g.entity.ID(), name)
		}
	}
	return nil
}

// Disconnect removes every subscription made by Connect.
func (g *Gate) Disconnect() error {
	g.observers.RemoveAll()
	return nil
}

func (g *Gate) compute(value.Value) {
	ins := make([]value.Value, len(g.inputs))
	for i, name := range g.inputs {
		v, _ := g.entity.Get(name)
		ins[i] = v
	}
	out, ok := g.op(ins)
	if !ok {
		g.logger.Debug("gate skipped non-computable inputs", "entity", g.entity.ID(), "inputs", ins)
		return
	}
	g.entity.Set(PropertyResult, out)
}

// Definition describes one gate type: its namespaced name, its inputs and
// its operation. The gate's component and behaviour share Type.
type Definition struct {
	Type     typeid.NamespacedType
	DataType typeid.DataType
	Inputs   []string
	Op       Operation
}

// Component returns the gate's component type.
func (d Definition) Component() typeid.ComponentTypeID {
	return typeid.ComponentTypeID{NamespacedType: d.Type}
}

// Behaviour returns the gate's behaviour type.
func (d Definition) Behaviour() typeid.BehaviourTypeID {
	return typeid.BehaviourTypeID{NamespacedType: d.Type}
}

// Properties returns the property types of the gate's component.
func (d Definition) Properties() []typeid.PropertyType {
	out := make([]typeid.PropertyType, 0, len(d.Inputs)+1)
	for _, in := range d.Inputs {
		out = append(out, typeid.NewPropertyType(in, d.DataType))
	}
	return append(out, typeid.NewPropertyType(PropertyResult, d.DataType))
}

// EntityFactory is the factory type for entity behaviours.
type EntityFactory = behaviour.Factory[uuid.UUID, *reactive.Entity]

// Factory returns the behaviour factory of d.
func (d Definition) Factory(logger *slog.Logger) EntityFactory {
	return behaviour.NewFactory[uuid.UUID, *reactive.Entity](d.Behaviour(),
		func(e *reactive.Entity) (behaviour.Hooks, error) {
			g := New(e, d.Inputs, d.Op, logger)
			return behaviour.Hooks{Validator: g, Transitions: g}, nil
		})
}

// Register adds the factories of defs to registry.
func Register(registry *behaviour.Registry[uuid.UUID, *reactive.Entity], logger *slog.Logger, defs ...Definition) {
	for _, d := range defs {
		registry.Register(typeid.SameNamed(d.Type), d.Factory(logger))
	}
}

// RegisterAll adds every logical and arithmetic gate to registry.
func RegisterAll(registry *behaviour.Registry[uuid.UUID, *reactive.Entity], logger *slog.Logger) {
	Register(registry, logger, Logical...)
	Register(registry, logger, Arithmetic...)
}

// Lookup returns the built-in gate whose component is ty.
func Lookup(ty typeid.ComponentTypeID) (Definition, bool) {
	for _, d := range slices.Concat(Logical, Arithmetic) {
		if d.Component() == ty {
			return d, true
		}
	}
	return Definition{}, false
}
