package connector

import (
	"log/slog"

	"github.com/roach88/rgraph/internal/behaviour"
	"github.com/roach88/rgraph/internal/reactive"
	"github.com/roach88/rgraph/internal/typeid"
)

// Variant is a connector behaviour bound to one Function. The variant's
// component and behaviour share its Type.
type Variant struct {
	Type     typeid.NamespacedType
	Function string
}

// Variants lists the built-in connector behaviours. The plain connector is
// the identity.
var Variants = []Variant{
	{Type: Behaviour.NamespacedType, Function: FuncDefault},
	{Type: typeid.NewNamespacedType(Namespace, "to_string_connector"), Function: FuncToString},
	{Type: typeid.NewNamespacedType(Namespace, "parse_int_connector"), Function: FuncParseInt},
	{Type: typeid.NewNamespacedType(Namespace, "not_connector"), Function: FuncNot},
}

// RelationFactory is the factory type for relation behaviours.
type RelationFactory = behaviour.Factory[reactive.RelationInstanceID, *reactive.Relation]

// NewFactory returns the factory of connector behaviour ty applying f.
func NewFactory(ty typeid.BehaviourTypeID, f Function, resolver EntityResolver, logger *slog.Logger) RelationFactory {
	return behaviour.NewFactory[reactive.RelationInstanceID, *reactive.Relation](ty,
		func(r *reactive.Relation) (behaviour.Hooks, error) {
			c := New(r, resolver, f, logger)
			return behaviour.Hooks{Validator: c, Transitions: c}, nil
		})
}

// Register adds the factories of every built-in variant to registry.
func Register(registry *behaviour.Registry[reactive.RelationInstanceID, *reactive.Relation], resolver EntityResolver, logger *slog.Logger) {
	for _, v := range Variants {
		f, _ := LookupFunction(v.Function)
		cb := typeid.SameNamed(v.Type)
		registry.Register(cb, NewFactory(cb.Behaviour, f, resolver, logger))
	}
}
