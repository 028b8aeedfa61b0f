// Package connector implements the connector relation behaviour. A
// connector copies every value emitted by a property of its outbound entity
// into a property of its inbound entity, optionally mapped through a
// Function.
//
// The relation names the two properties in its own properties
// outbound_property_name and inbound_property_name. Endpoints are resolved
// by id through an EntityResolver each time the connector is validated or
// connected.
package connector

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/rgraph/internal/behaviour"
	"github.com/roach88/rgraph/internal/property"
	"github.com/roach88/rgraph/internal/reactive"
	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/value"
)

// Relation properties.
const (
	PropertyOutbound = "outbound_property_name"
	PropertyInbound  = "inbound_property_name"
)

// Namespace of the connector types.
const Namespace = "core"

var (
	// Component is the relation component carrying the two property names.
	Component = typeid.NewComponentTypeID(Namespace, "connector")

	// Behaviour is the identity connector behaviour.
	Behaviour = typeid.NewBehaviourTypeID(Namespace, "connector")

	// RelationType is the relation type of plain connectors.
	RelationType = typeid.NewRelationTypeID(Namespace, "connector")
)

// Errors returned by Validate.
var (
	ErrMissingPropertyName = errors.New("connector property name missing")
	ErrEndpointNotFound    = errors.New("connector endpoint not found")
	ErrPropertyNotFound    = errors.New("connector endpoint property not found")
)

// EntityResolver looks up entities by id.
type EntityResolver interface {
	Get(id uuid.UUID) (*reactive.Entity, bool)
}

// ResolverFunc adapts a function to EntityResolver.
type ResolverFunc func(id uuid.UUID) (*reactive.Entity, bool)

func (f ResolverFunc) Get(id uuid.UUID) (*reactive.Entity, bool) { return f(id) }

// TypeName renders the conventional name of a connector between two
// properties: "<type>--<outbound>--<inbound>".
func TypeName(typeName, outboundProperty, inboundProperty string) string {
	return typeName + "--" + outboundProperty + "--" + inboundProperty
}

// InstanceTypeID returns the relation instance type id of a connector of
// type ty between the two properties. Distinct property pairs between the
// same entities get distinct relation ids.
func InstanceTypeID(ty typeid.RelationTypeID, outboundProperty, inboundProperty string) typeid.RelationInstanceTypeID {
	return typeid.NewRelationInstanceTypeID(ty, outboundProperty+"--"+inboundProperty)
}

// Properties returns the relation properties of a connector between the two
// named properties.
func Properties(outboundProperty, inboundProperty string) value.Object {
	return value.Object{
		PropertyOutbound: value.String(outboundProperty),
		PropertyInbound:  value.String(inboundProperty),
	}
}

// NewRelation creates a connector relation of type ty from the outbound
// property of out to the inbound property of in.
func NewRelation(ty typeid.RelationTypeID, out uuid.UUID, outboundProperty string, in uuid.UUID, inboundProperty string) *reactive.Relation {
	r := reactive.NewRelation(out, InstanceTypeID(ty, outboundProperty, inboundProperty), in, Properties(outboundProperty, inboundProperty))
	r.AddComponent(Component)
	return r
}

// Connector is the behaviour state of one connector relation. It
// implements behaviour.Validator and behaviour.Transitions.
type Connector struct {
	relation *reactive.Relation
	resolver EntityResolver
	f        Function
	handle   property.Handle
	logger   *slog.Logger

	mu       sync.Mutex
	observed *property.Instance
}

var (
	_ behaviour.Validator   = (*Connector)(nil)
	_ behaviour.Transitions = (*Connector)(nil)
)

// New creates the connector state for relation. A nil f is Identity.
func New(relation *reactive.Relation, resolver EntityResolver, f Function, logger *slog.Logger) *Connector {
	if f == nil {
		f = Identity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		relation: relation,
		resolver: resolver,
		f:        f,
		handle:   property.NextHandle(),
		logger:   logger,
	}
}

// Handle returns the subscription handle used on the outbound property.
func (c *Connector) Handle() property.Handle { return c.handle }

// endpoints resolves both endpoint properties.
func (c *Connector) endpoints() (out *property.Instance, in *reactive.Entity, inName string, err error) {
	outName, ok := c.relation.AsString(PropertyOutbound)
	if !ok {
		return nil, nil, "", fmt.Errorf("%w: %s", ErrMissingPropertyName, PropertyOutbound)
	}
	inName, ok = c.relation.AsString(PropertyInbound)
	if !ok {
		return nil, nil, "", fmt.Errorf("%w: %s", ErrMissingPropertyName, PropertyInbound)
	}

	outEntity, ok := c.resolver.Get(c.relation.OutboundID())
	if !ok {
		return nil, nil, "", fmt.Errorf("%w: outbound %s", ErrEndpointNotFound, c.relation.OutboundID())
	}
	in, ok = c.resolver.Get(c.relation.InboundID())
	if !ok {
		return nil, nil, "", fmt.Errorf("%w: inbound %s", ErrEndpointNotFound, c.relation.InboundID())
	}

	out, ok = outEntity.Properties().Get(outName)
	if !ok {
		return nil, nil, "", fmt.Errorf("%w: %s.%s", ErrPropertyNotFound, outEntity.ID(), outName)
	}
	if !in.Properties().Has(inName) {
		return nil, nil, "", fmt.Errorf("%w: %s.%s", ErrPropertyNotFound, in.ID(), inName)
	}
	return out, in, inName, nil
}

// Validate checks that both property names are set and that both endpoint
// properties exist.
func (c *Connector) Validate() error {
	_, _, _, err := c.endpoints()
	return err
}

func (c *Connector) Init() error { return nil }

// Connect subscribes to the outbound property. Every emission sets the
// inbound property to f(v).
func (c *Connector) Connect() error {
	out, in, inName, err := c.endpoints()
	if err != nil {
		return err
	}
	f := c.f
	out.ObserveWithHandle(c.handle, func(v value.Value) {
		in.Set(inName, f(v))
	})

	c.mu.Lock()
	c.observed = out
	c.mu.Unlock()

	c.logger.Debug("connector connected",
		"relation", c.relation.ID(),
		"outbound", out.Name(),
		"inbound", inName)
	return nil
}

// Disconnect removes the subscription made by Connect.
func (c *Connector) Disconnect() error {
	c.mu.Lock()
	out := c.observed
	c.observed = nil
	c.mu.Unlock()

	if out != nil {
		out.Unobserve(c.handle)
	}
	c.logger.Debug("connector disconnected", "relation", c.relation.ID())
	return nil
}
