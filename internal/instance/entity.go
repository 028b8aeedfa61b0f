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

// EntityManager owns the live entities.
type EntityManager struct {
	types      *types.Registry
	behaviours *behaviour.EntityManager
	opts       options

	mu       sync.RWMutex
	entities map[uuid.UUID]*reactive.Entity

	// referenced reports whether a relation still points at an entity.
	referenced func(id uuid.UUID) bool
}

// NewEntityManager creates an entity manager resolving types in registry
// and driving behaviours through behaviours.
func NewEntityManager(registry *types.Registry, behaviours *behaviour.EntityManager, opts ...Option) *EntityManager {
	o := buildOptions(opts)
	o.logger = o.logger.With("kind", "entity")
	return &EntityManager{
		types:      registry,
		behaviours: behaviours,
		opts:       o,
		entities:   make(map[uuid.UUID]*reactive.Entity),
	}
}

// Behaviours returns the entity behaviour manager.
func (m *EntityManager) Behaviours() *behaviour.EntityManager { return m.behaviours }

// Create creates and registers an entity of type ty with a new id.
func (m *EntityManager) Create(ctx context.Context, ty typeid.EntityTypeID, props value.Object) (*reactive.Entity, error) {
	return m.CreateWithID(ctx, m.opts.ids.New(), ty, props)
}

// CreateWithID creates and registers an entity of type ty. The entity gets
// the type's properties at their defaults, overridden by props. Entries of
// props the type does not declare are added as mutable properties.
func (m *EntityManager) CreateWithID(ctx context.Context, id uuid.UUID, ty typeid.EntityTypeID, props value.Object) (*reactive.Entity, error) {
	e, err := m.build("create entity", id, ty, props)
	if err != nil {
		return nil, err
	}
	if err := m.Register(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Build creates an entity of type ty with a new id without registering it.
// Flows are assembled from built entities.
func (m *EntityManager) Build(ty typeid.EntityTypeID, props value.Object) (*reactive.Entity, error) {
	return m.build("build entity", m.opts.ids.New(), ty, props)
}

func (m *EntityManager) build(op string, id uuid.UUID, ty typeid.EntityTypeID, props value.Object) (*reactive.Entity, error) {
	et, ok := m.types.EntityType(ty)
	if !ok {
		return nil, opError(op, id, fmt.Errorf("entity type %s: %w", ty, types.ErrTypeNotFound))
	}
	pts, err := m.types.EntityProperties(ty)
	if err != nil {
		return nil, opError(op, id, err)
	}

	e := reactive.NewEntityFromTypes(id, ty, pts)
	for _, c := range et.Components {
		e.AddComponent(c)
	}
	applyProperties(e, props)
	return e, nil
}

// propertyContainer is the part of an instance applyProperties writes to.
type propertyContainer interface {
	HasProperty(name string) bool
	SetNoPropagate(name string, v value.Value)
	AddProperty(name string, m typeid.Mutability, v value.Value)
}

func applyProperties(c propertyContainer, props value.Object) {
	for _, name := range props.SortedKeys() {
		if c.HasProperty(name) {
			c.SetNoPropagate(name, props[name])
			continue
		}
		c.AddProperty(name, typeid.Mutable, props[name])
	}
}

// Register adds an existing entity and creates its behaviours.
func (m *EntityManager) Register(ctx context.Context, e *reactive.Entity) error {
	m.mu.Lock()
	if _, ok := m.entities[e.ID()]; ok {
		m.mu.Unlock()
		return opError("register entity", e.ID(), ErrAlreadyExists)
	}
	m.entities[e.ID()] = e
	m.mu.Unlock()

	m.behaviours.AddBehaviours(ctx, e)
	m.opts.recordInstances(ctx, "entity", 1)
	m.opts.logger.Debug("entity registered", "id", e.ID(), "type", e.Type())
	return nil
}

// Get returns the entity with id. It implements connector.EntityResolver.
func (m *EntityManager) Get(id uuid.UUID) (*reactive.Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	return e, ok
}

// Has reports whether an entity with id exists.
func (m *EntityManager) Has(id uuid.UUID) bool {
	_, ok := m.Get(id)
	return ok
}

// All returns every entity ordered by id.
func (m *EntityManager) All() []*reactive.Entity {
	m.mu.RLock()
	out := make([]*reactive.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b *reactive.Entity) int {
		return strings.Compare(a.ID().String(), b.ID().String())
	})
	return out
}

// ByType returns the entities of type ty ordered by id.
func (m *EntityManager) ByType(ty typeid.EntityTypeID) []*reactive.Entity {
	var out []*reactive.Entity
	for _, e := range m.All() {
		if e.Type() == ty {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of entities.
func (m *EntityManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}

// Delete removes the entity's behaviours and then the entity. Entities
// still referenced by a relation are refused with ErrInUse.
func (m *EntityManager) Delete(ctx context.Context, id uuid.UUID) error {
	e, ok := m.Get(id)
	if !ok {
		return opError("delete entity", id, ErrNotFound)
	}
	if m.referenced != nil && m.referenced(id) {
		return opError("delete entity", id, ErrInUse)
	}

	m.behaviours.RemoveBehaviours(ctx, e)

	m.mu.Lock()
	delete(m.entities, id)
	m.mu.Unlock()

	e.Properties().UnobserveAll()
	m.opts.recordInstances(ctx, "entity", -1)
	m.opts.logger.Debug("entity deleted", "id", id)
	return nil
}

// AddComponent applies a registered component to the entity, adding its
// missing properties and creating its behaviours.
func (m *EntityManager) AddComponent(ctx context.Context, id uuid.UUID, component typeid.ComponentTypeID) error {
	e, ok := m.Get(id)
	if !ok {
		return opError("add component", id, ErrNotFound)
	}
	c, ok := m.types.Component(component)
	if !ok {
		return opError("add component", id, fmt.Errorf("component %s: %w", component, types.ErrTypeNotFound))
	}
	if e.IsA(component) {
		return nil
	}
	e.AddComponentWithProperties(component, c.Properties)
	m.behaviours.AddBehavioursToComponent(ctx, e, component)
	return nil
}

// RemoveComponent removes the component's behaviours and then the
// component. Its properties stay on the entity.
func (m *EntityManager) RemoveComponent(ctx context.Context, id uuid.UUID, component typeid.ComponentTypeID) error {
	e, ok := m.Get(id)
	if !ok {
		return opError("remove component", id, ErrNotFound)
	}
	m.behaviours.RemoveBehavioursFromComponent(ctx, e, component)
	e.RemoveComponent(component)
	return nil
}
