package runtime

import (
	"errors"

	"github.com/roach88/rgraph/internal/connector"
	"github.com/roach88/rgraph/internal/gate"
	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/types"
)

// gateTypes returns the component and entity type of a gate.
func gateTypes(d gate.Definition) (types.Component, types.EntityType) {
	c := types.Component{
		Type:       d.Component(),
		Properties: d.Properties(),
	}
	et := types.EntityType{
		Type:       typeid.EntityTypeID{NamespacedType: d.Type},
		Components: []typeid.ComponentTypeID{c.Type},
	}
	return c, et
}

// connectorTypes returns the component and relation type of a connector
// variant. The property names are fixed at creation.
func connectorTypes(v connector.Variant) (types.Component, types.RelationType) {
	names := func(name string) typeid.PropertyType {
		pt := typeid.NewPropertyType(name, typeid.DataTypeString)
		pt.Mutability = typeid.Immutable
		return pt
	}
	c := types.Component{
		Type:       typeid.ComponentTypeID{NamespacedType: v.Type},
		Properties: []typeid.PropertyType{names(connector.PropertyOutbound), names(connector.PropertyInbound)},
	}
	rt := types.RelationType{
		Type:       typeid.RelationTypeID{NamespacedType: v.Type},
		Outbound:   types.Wildcard,
		Inbound:    types.Wildcard,
		Components: []typeid.ComponentTypeID{c.Type},
	}
	return c, rt
}

// registerBuiltins adds the gate and connector types to reg.
func registerBuiltins(reg *types.Registry) error {
	var errs []error
	for _, d := range append(append([]gate.Definition{}, gate.Logical...), gate.Arithmetic...) {
		c, et := gateTypes(d)
		errs = append(errs, reg.AddComponent(c), reg.AddEntityType(et))
	}
	for _, v := range connector.Variants {
		c, rt := connectorTypes(v)
		errs = append(errs, reg.AddComponent(c), reg.AddRelationType(rt))
	}
	return errors.Join(errs...)
}
