package reactive

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/rgraph/internal/property"
	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/value"
)

// RelationInstanceID identifies a relation by its endpoints and typed id.
type RelationInstanceID struct {
	OutboundID uuid.UUID
	Type       typeid.RelationInstanceTypeID
	InboundID  uuid.UUID
}

// NewRelationInstanceID creates a relation instance id.
func NewRelationInstanceID(outbound uuid.UUID, ty typeid.RelationInstanceTypeID, inbound uuid.UUID) RelationInstanceID {
	return RelationInstanceID{OutboundID: outbound, Type: ty, InboundID: inbound}
}

// String renders "outbound-[ns::Type__instance]->inbound".
func (id RelationInstanceID) String() string {
	return fmt.Sprintf("%s-[%s]->%s", id.OutboundID, id.Type, id.InboundID)
}

// ParseRelationInstanceID parses the String form.
func ParseRelationInstanceID(s string) (RelationInstanceID, error) {
	out, rest, ok := strings.Cut(s, "-[")
	if !ok {
		return RelationInstanceID{}, fmt.Errorf("invalid relation instance id %q", s)
	}
	ty, in, ok := strings.Cut(rest, "]->")
	if !ok {
		return RelationInstanceID{}, fmt.Errorf("invalid relation instance id %q", s)
	}
	outID, err := uuid.Parse(out)
	if err != nil {
		return RelationInstanceID{}, fmt.Errorf("outbound id: %w", err)
	}
	inID, err := uuid.Parse(in)
	if err != nil {
		return RelationInstanceID{}, fmt.Errorf("inbound id: %w", err)
	}
	relTy, err := typeid.ParseRelationInstanceTypeID(ty)
	if err != nil {
		return RelationInstanceID{}, err
	}
	return RelationInstanceID{OutboundID: outID, Type: relTy, InboundID: inID}, nil
}

// Relation is a directed reactive edge between two entities. It stores the
// endpoint ids only; endpoint entities are resolved through their manager.
type Relation struct {
	id RelationInstanceID
	container
}

var _ Instance[RelationInstanceID] = (*Relation)(nil)

// NewRelation creates a relation with one mutable property per entry.
func NewRelation(outbound uuid.UUID, ty typeid.RelationInstanceTypeID, inbound uuid.UUID, props value.Object) *Relation {
	id := NewRelationInstanceID(outbound, ty, inbound)
	return &Relation{
		id:        id,
		container: newContainer(property.NewFromValues(id.String(), props)),
	}
}

func (r *Relation) ID() RelationInstanceID { return r.id }

func (r *Relation) OutboundID() uuid.UUID { return r.id.OutboundID }

func (r *Relation) InboundID() uuid.UUID { return r.id.InboundID }

func (r *Relation) Type() typeid.RelationInstanceTypeID { return r.id.Type }

// RelationType returns the relation type without the instance id.
func (r *Relation) RelationType() typeid.RelationTypeID { return r.id.Type.Type }

func (r *Relation) String() string { return r.id.String() }
