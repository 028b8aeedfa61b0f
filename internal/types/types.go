// Package types holds the type system of the graph: components, entity
// types, relation types and flow types.
//
// Entity and relation types are composed of components. An instance of a
// type starts with the union of its components' properties and its own
// properties, each at its default value.
package types

import (
	"github.com/roach88/rgraph/internal/typeid"
)

// Component is a named, reusable set of property types. Behaviours are
// registered per component.
type Component struct {
	Type        typeid.ComponentTypeID
	Description string
	Properties  []typeid.PropertyType
}

// EntityType describes a kind of entity.
type EntityType struct {
	Type        typeid.EntityTypeID
	Description string
	Components  []typeid.ComponentTypeID
	Properties  []typeid.PropertyType
}

// Wildcard matches any entity type in a relation type's endpoints.
const Wildcard = "*"

// RelationType describes a kind of relation. Outbound and Inbound name the
// permitted endpoint entity types, or Wildcard.
type RelationType struct {
	Type        typeid.RelationTypeID
	Description string
	Outbound    string
	Inbound     string
	Components  []typeid.ComponentTypeID
	Properties  []typeid.PropertyType
}

// AcceptsOutbound reports whether ty may be the relation's outbound type.
func (r RelationType) AcceptsOutbound(ty typeid.EntityTypeID) bool {
	return endpointMatches(r.Outbound, ty)
}

// AcceptsInbound reports whether ty may be the relation's inbound type.
func (r RelationType) AcceptsInbound(ty typeid.EntityTypeID) bool {
	return endpointMatches(r.Inbound, ty)
}

func endpointMatches(pattern string, ty typeid.EntityTypeID) bool {
	return pattern == "" || pattern == Wildcard || pattern == ty.String()
}

// FlowType describes a flow: a wrapper entity type plus a template of
// member entities and relations.
type FlowType struct {
	Type        typeid.FlowTypeID
	Description string
	Wrapper     typeid.EntityTypeID
	Variables   []typeid.PropertyType
}

// mergeProperties returns the properties of the components followed by own,
// keeping the last definition of each name at the position of its first.
func mergeProperties(components []Component, own []typeid.PropertyType) []typeid.PropertyType {
	index := make(map[string]int)
	var out []typeid.PropertyType
	add := func(pt typeid.PropertyType) {
		if i, ok := index[pt.Name]; ok {
			out[i] = pt
			return
		}
		index[pt.Name] = len(out)
		out = append(out, pt)
	}
	for _, c := range components {
		for _, pt := range c.Properties {
			add(pt)
		}
	}
	for _, pt := range own {
		add(pt)
	}
	return out
}
