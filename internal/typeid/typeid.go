// Package typeid defines the namespaced type identifiers used across the
// reactive graph: components, behaviours, entity types, relation types and
// flow types.
//
// A namespaced type renders as "namespace::TypeName", where the namespace may
// itself contain "::" separated segments (e.g. "logical::gates::And"). All id
// types are comparable value types and safe to use as map keys.
package typeid

import (
	"fmt"
	"regexp"
	"strings"
)

// NamespaceSeparator separates namespace segments and the type name.
const NamespaceSeparator = "::"

// InstanceIDSeparator separates a relation type from its instance id.
const InstanceIDSeparator = "__"

var (
	namespaceSegmentPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	typeNamePattern         = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
)

// NamespacedType is a type name qualified by a namespace.
type NamespacedType struct {
	Namespace string
	TypeName  string
}

// NewNamespacedType creates a NamespacedType without validation.
func NewNamespacedType(namespace, typeName string) NamespacedType {
	return NamespacedType{Namespace: namespace, TypeName: typeName}
}

// ParseNamespacedType parses "namespace::TypeName".
func ParseNamespacedType(s string) (NamespacedType, error) {
	idx := strings.LastIndex(s, NamespaceSeparator)
	if idx <= 0 {
		return NamespacedType{}, &ParseError{Input: s, Reason: "missing namespace"}
	}
	ns, name := s[:idx], s[idx+len(NamespaceSeparator):]
	for _, seg := range strings.Split(ns, NamespaceSeparator) {
		if !namespaceSegmentPattern.MatchString(seg) {
			return NamespacedType{}, &ParseError{Input: s, Reason: fmt.Sprintf("invalid namespace segment %q", seg)}
		}
	}
	if !typeNamePattern.MatchString(name) {
		return NamespacedType{}, &ParseError{Input: s, Reason: fmt.Sprintf("invalid type name %q", name)}
	}
	return NamespacedType{Namespace: ns, TypeName: name}, nil
}

// String renders the type as "namespace::TypeName".
func (t NamespacedType) String() string {
	return t.Namespace + NamespaceSeparator + t.TypeName
}

// IsZero reports whether t is the zero value.
func (t NamespacedType) IsZero() bool {
	return t.Namespace == "" && t.TypeName == ""
}

// ParseError reports an unparseable type id.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid type id %q: %s", e.Input, e.Reason)
}

// ComponentTypeID identifies a component.
type ComponentTypeID struct{ NamespacedType }

// BehaviourTypeID identifies a behaviour.
type BehaviourTypeID struct{ NamespacedType }

// EntityTypeID identifies an entity type.
type EntityTypeID struct{ NamespacedType }

// RelationTypeID identifies a relation type.
type RelationTypeID struct{ NamespacedType }

// FlowTypeID identifies a flow type.
type FlowTypeID struct{ NamespacedType }

func NewComponentTypeID(namespace, typeName string) ComponentTypeID {
	return ComponentTypeID{NewNamespacedType(namespace, typeName)}
}

func NewBehaviourTypeID(namespace, typeName string) BehaviourTypeID {
	return BehaviourTypeID{NewNamespacedType(namespace, typeName)}
}

func NewEntityTypeID(namespace, typeName string) EntityTypeID {
	return EntityTypeID{NewNamespacedType(namespace, typeName)}
}

func NewRelationTypeID(namespace, typeName string) RelationTypeID {
	return RelationTypeID{NewNamespacedType(namespace, typeName)}
}

func NewFlowTypeID(namespace, typeName string) FlowTypeID {
	return FlowTypeID{NewNamespacedType(namespace, typeName)}
}

func ParseComponentTypeID(s string) (ComponentTypeID, error) {
	nt, err := ParseNamespacedType(s)
	return ComponentTypeID{nt}, err
}

func ParseBehaviourTypeID(s string) (BehaviourTypeID, error) {
	nt, err := ParseNamespacedType(s)
	return BehaviourTypeID{nt}, err
}

func ParseEntityTypeID(s string) (EntityTypeID, error) {
	nt, err := ParseNamespacedType(s)
	return EntityTypeID{nt}, err
}

func ParseRelationTypeID(s string) (RelationTypeID, error) {
	nt, err := ParseNamespacedType(s)
	return RelationTypeID{nt}, err
}

func ParseFlowTypeID(s string) (FlowTypeID, error) {
	nt, err := ParseNamespacedType(s)
	return FlowTypeID{nt}, err
}

// ComponentBehaviourTypeID pairs a component with one of its behaviours.
type ComponentBehaviourTypeID struct {
	Component ComponentTypeID
	Behaviour BehaviourTypeID
}

// NewComponentBehaviourTypeID pairs component and behaviour.
func NewComponentBehaviourTypeID(component ComponentTypeID, behaviour BehaviourTypeID) ComponentBehaviourTypeID {
	return ComponentBehaviourTypeID{Component: component, Behaviour: behaviour}
}

// SameNamed returns the common case where the component and its behaviour
// share a namespaced name (e.g. "logical::And" component with "logical::And"
// behaviour).
func SameNamed(nt NamespacedType) ComponentBehaviourTypeID {
	return ComponentBehaviourTypeID{Component: ComponentTypeID{nt}, Behaviour: BehaviourTypeID{nt}}
}

func (c ComponentBehaviourTypeID) String() string {
	return c.Component.String() + "/" + c.Behaviour.String()
}

// RelationInstanceTypeID is the typed part of a relation instance id. The
// instance id distinguishes multiple relations of the same type between the
// same pair of entities; empty means singleton.
type RelationInstanceTypeID struct {
	Type       RelationTypeID
	InstanceID string
}

// NewRelationInstanceTypeID creates a relation instance type id.
func NewRelationInstanceTypeID(ty RelationTypeID, instanceID string) RelationInstanceTypeID {
	return RelationInstanceTypeID{Type: ty, InstanceID: instanceID}
}

// Singleton creates a relation instance type id without instance id.
func Singleton(ty RelationTypeID) RelationInstanceTypeID {
	return RelationInstanceTypeID{Type: ty}
}

// ParseRelationInstanceTypeID parses "ns::Type" or "ns::Type__instance".
func ParseRelationInstanceTypeID(s string) (RelationInstanceTypeID, error) {
	typePart, instance, _ := strings.Cut(s, InstanceIDSeparator)
	ty, err := ParseRelationTypeID(typePart)
	if err != nil {
		return RelationInstanceTypeID{}, err
	}
	return RelationInstanceTypeID{Type: ty, InstanceID: instance}, nil
}

func (r RelationInstanceTypeID) String() string {
	if r.InstanceID == "" {
		return r.Type.String()
	}
	return r.Type.String() + InstanceIDSeparator + r.InstanceID
}
