package instance

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/rgraph/internal/behaviour"
	"github.com/roach88/rgraph/internal/reactive"
	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/types"
	"github.com/roach88/rgraph/internal/value"
)

// RelationManager owns the live relations. Relations store endpoint ids
// only; the manager enforces that both endpoints exist in its entity
// manager.
type RelationManager struct {
	types      *types.Registry
	entities   *EntityManager
	behaviours *behaviour.RelationManager
	opts       options

	mu        sync.RWMutex
	relations map[reactive.RelationInstanceID]*reactive.Relation
}

// NewRelationManager creates a relation manager over entities. Entities
// referenced by a relation of this manager cannot be deleted.
func NewRelationManager(registry *types.Registry, entities *EntityManager, behaviours *behaviour.RelationManager, opts ...Option) *RelationManager {
	o := buildOptions(opts)
	o.logger = o.logger.With("kind", "relation")
	m := &RelationManager{
		types:      registry,
		entities:   entities,
		behaviours: behaviours,
		opts:       o,
		relations:  make(map[reactive.RelationInstanceID]*reactive.Relation),
	}
	entities.referenced = m.References
	return m
}

// Behaviours returns the relation behaviour manager.
func (m *RelationManager) Behaviours() *behaviour.RelationManager { return m.behaviours }

// Create creates and registers a relation of type ty between outbound and
// inbound. The relation gets the type's properties at their defaults,
// overridden by props.
func (m *RelationManager) Create(ctx context.Context, outbound uuid.UUID, ty typeid.RelationInstanceTypeID, inbound uuid.UUID, props value.Object) (*reactive.Relation, error) {
	id := reactive.NewRelationInstanceID(outbound, ty, inbound)
	out, ok := m.entities.Get(outbound)
	if !ok {
		return nil, opError("create relation", id, fmt.Errorf("outbound %s: %w", outbound, ErrEndpointNotFound))
	}
	in, ok := m.entities.Get(inbound)
	if !ok {
		return nil, opError("create relation", id, fmt.Errorf("inbound %s: %w", inbound, ErrEndpointNotFound))
	}

	r, err := m.build("create relation", out, ty, in, props)
	if err != nil {
		return nil, err
	}
	if err := m.Register(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Build creates a relation of type ty between out and in without
// registering it. The endpoints need not be registered yet.
func (m *RelationManager) Build(out *reactive.Entity, ty typeid.RelationInstanceTypeID, in *reactive.Entity, props value.Object) (*reactive.Relation, error) {
	return m.build("build relation", out, ty, in, props)
}

func (m *RelationManager) build(op string, out *reactive.Entity, ty typeid.RelationInstanceTypeID, in *reactive.Entity, props value.Object) (*reactive.Relation, error) {
	id := reactive.NewRelationInstanceID(out.ID(), ty, in.ID())
	rt, ok := m.types.RelationType(ty.Type)
	if !ok {
		return nil, opError(op, id, fmt.Errorf("relation type %s: %w", ty.Type, types.ErrTypeNotFound))
	}
	pts, err := m.types.RelationProperties(ty.Type)
	if err != nil {
		return nil, opError(op, id, err)
	}
	if !rt.AcceptsOutbound(out.Type()) {
		return nil, opError(op, id, fmt.Errorf("outbound %s: %w", out.Type(), ErrEndpointType))
	}
	if !rt.AcceptsInbound(in.Type()) {
		return nil, opError(op, id, fmt.Errorf("inbound %s: %w", in.Type(), ErrEndpointType))
	}

	defaults := make(value.Object, len(pts))
	for _, pt := range pts {
		defaults[pt.Name] = pt.DefaultValue()
	}
	r := reactive.NewRelation(out.ID(), ty, in.ID(), defaults)
	for _, pt := range pts {
		if p, ok := r.Properties().Get(pt.Name); ok && !pt.IsMutable() {
			p.SetMutability(typeid.Immutable)
		}
	}
	for _, c := range rt.Components {
		r.AddComponent(c)
	}
	applyProperties(r, props)
	return r, nil
}

// Register adds an existing relation and creates its behaviours. Both
// endpoints must exist.
func (m *RelationManager) Register(ctx context.Context, r *reactive.Relation) error {
	if !m.entities.Has(r.OutboundID()) {
		return opError("register relation", r.ID(), fmt.Errorf("outbound %s: %w", r.OutboundID(), ErrEndpointNotFound))
	}
	if !m.entities.Has(r.InboundID()) {
		return opError("register relation", r.ID(), fmt.Errorf("inbound %s: %w", r.InboundID(), ErrEndpointNotFound))
	}

	m.mu.Lock()
	if _, ok := m.relations[r.ID()]; ok {
		m.mu.Unlock()
		return opError("register relation", r.ID(), ErrAlreadyExists)
	}
	m.relations[r.ID()] = r
	m.mu.Unlock()

	m.behaviours.AddBehaviours(ctx, r)
	m.opts.recordInstances(ctx, "relation", 1)
	m.opts.logger.Debug("relation registered", "id", r.ID())
	return nil
}

// Get returns the relation with id.
func (m *RelationManager) Get(id reactive.RelationInstanceID) (*reactive.Relation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.relations[id]
	return r, ok
}

// Has reports whether a relation with id exists.
func (m *RelationManager) Has(id reactive.RelationInstanceID) bool {
	_, ok := m.Get(id)
	return ok
}

// All returns every relation ordered by id.
func (m *RelationManager) All() []*reactive.Relation {
	m.mu.RLock()
	out := make([]*reactive.Relation, 0, len(m.relations))
	for _, r := range m.relations {
		out = append(out, r)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b *reactive.Relation) int {
		return strings.Compare(a.ID().String(), b.ID().String())
	})
	return out
}

// Of returns the relations with the entity as either endpoint.
func (m *RelationManager) Of(entity uuid.UUID) []*reactive.Relation {
	var out []*reactive.Relation
	for _, r := range m.All() {
		if r.OutboundID() == entity || r.InboundID() == entity {
			out = append(out, r)
		}
	}
	return out
}

// References reports whether any relation has the entity as an endpoint.
func (m *RelationManager) References(entity uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id := range m.relations {
		if id.OutboundID == entity || id.InboundID == entity {
			return true
		}
	}
	return false
}

// Count returns the number of relations.
func (m *RelationManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.relations)
}

// Delete removes the relation's behaviours and then the relation.
func (m *RelationManager) Delete(ctx context.Context, id reactive.RelationInstanceID) error {
	r, ok := m.Get(id)
	if !ok {
		return opError("delete relation", id, ErrNotFound)
	}
	m.behaviours.RemoveBehaviours(ctx, r)

	m.mu.Lock()
	delete(m.relations, id)
	m.mu.Unlock()

	r.Properties().UnobserveAll()
	m.opts.recordInstances(ctx, "relation", -1)
	m.opts.logger.Debug("relation deleted", "id", id)
	return nil
}

// AddComponent applies a registered component to the relation and creates
// its behaviours.
func (m *RelationManager) AddComponent(ctx context.Context, id reactive.RelationInstanceID, component typeid.ComponentTypeID) error {
	r, ok := m.Get(id)
	if !ok {
		return opError("add component", id, ErrNotFound)
	}
	c, ok := m.types.Component(component)
	if !ok {
		return opError("add component", id, fmt.Errorf("component %s: %w", component, types.ErrTypeNotFound))
	}
	if r.IsA(component) {
		return nil
	}
	r.AddComponentWithProperties(component, c.Properties)
	m.behaviours.AddBehavioursToComponent(ctx, r, component)
	return nil
}

// RemoveComponent removes the component's behaviours and then the
// component.
func (m *RelationManager) RemoveComponent(ctx context.Context, id reactive.RelationInstanceID, component typeid.ComponentTypeID) error {
	r, ok := m.Get(id)
	if !ok {
		return opError("remove component", id, ErrNotFound)
	}
	m.behaviours.RemoveBehavioursFromComponent(ctx, r, component)
	r.RemoveComponent(component)
	return nil
}
