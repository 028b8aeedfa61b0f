package types

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/rgraph/internal/behaviour"
	"github.com/roach88/rgraph/internal/typeid"
)

var (
	ErrTypeExists   = errors.New("type already registered")
	ErrTypeNotFound = errors.New("type not found")
)

// BehaviourSource reports the behaviour types registered for a component.
// behaviour.Registry implements it.
type BehaviourSource interface {
	BehaviourTypes(component typeid.ComponentTypeID) []typeid.BehaviourTypeID
}

// Registry stores the registered types. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	components map[typeid.ComponentTypeID]Component
	entities   map[typeid.EntityTypeID]EntityType
	relations  map[typeid.RelationTypeID]RelationType
	flows      map[typeid.FlowTypeID]FlowType

	entityBehaviours   BehaviourSource
	relationBehaviours BehaviourSource
}

var _ behaviour.BehaviourTypesContainer = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		components: make(map[typeid.ComponentTypeID]Component),
		entities:   make(map[typeid.EntityTypeID]EntityType),
		relations:  make(map[typeid.RelationTypeID]RelationType),
		flows:      make(map[typeid.FlowTypeID]FlowType),
	}
}

// SetBehaviourSources sets where entity and relation component behaviours
// are looked up. Either may be nil.
func (r *Registry) SetBehaviourSources(entity, relation BehaviourSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entityBehaviours = entity
	r.relationBehaviours = relation
}

// AddComponent registers c.
func (r *Registry) AddComponent(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.components[c.Type]; ok {
		return fmt.Errorf("component %s: %w", c.Type, ErrTypeExists)
	}
	r.components[c.Type] = c
	return nil
}

// Component returns the component ty.
func (r *Registry) Component(ty typeid.ComponentTypeID) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[ty]
	return c, ok
}

// Components returns every component ordered by type.
func (r *Registry) Components() []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedValues(r.components, func(c Component) string { return c.Type.String() })
}

// resolveComponents looks up tys. Caller holds mu.
func (r *Registry) resolveComponents(owner string, tys []typeid.ComponentTypeID) ([]Component, error) {
	out := make([]Component, 0, len(tys))
	for _, ty := range tys {
		c, ok := r.components[ty]
		if !ok {
			return nil, fmt.Errorf("%s: component %s: %w", owner, ty, ErrTypeNotFound)
		}
		out = append(out, c)
	}
	return out, nil
}

// AddEntityType registers et. Its components must be registered.
func (r *Registry) AddEntityType(et EntityType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[et.Type]; ok {
		return fmt.Errorf("entity type %s: %w", et.Type, ErrTypeExists)
	}
	if _, err := r.resolveComponents("entity type "+et.Type.String(), et.Components); err != nil {
		return err
	}
	r.entities[et.Type] = et
	return nil
}

// EntityType returns the entity type ty.
func (r *Registry) EntityType(ty typeid.EntityTypeID) (EntityType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	et, ok := r.entities[ty]
	return et, ok
}

// EntityTypes returns every entity type ordered by type.
func (r *Registry) EntityTypes() []EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedValues(r.entities, func(et EntityType) string { return et.Type.String() })
}

// EntityProperties returns the property types of an entity of type ty.
func (r *Registry) EntityProperties(ty typeid.EntityTypeID) ([]typeid.PropertyType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	et, ok := r.entities[ty]
	if !ok {
		return nil, fmt.Errorf("entity type %s: %w", ty, ErrTypeNotFound)
	}
	cs, err := r.resolveComponents("entity type "+ty.String(), et.Components)
	if err != nil {
		return nil, err
	}
	return mergeProperties(cs, et.Properties), nil
}

// AddRelationType registers rt. Its components must be registered.
func (r *Registry) AddRelationType(rt RelationType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.relations[rt.Type]; ok {
		return fmt.Errorf("relation type %s: %w", rt.Type, ErrTypeExists)
	}
	if _, err := r.resolveComponents("relation type "+rt.Type.String(), rt.Components); err != nil {
		return err
	}
	r.relations[rt.Type] = rt
	return nil
}

// RelationType returns the relation type ty.
func (r *Registry) RelationType(ty typeid.RelationTypeID) (RelationType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.relations[ty]
	return rt, ok
}

// RelationTypes returns every relation type ordered by type.
func (r *Registry) RelationTypes() []RelationType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedValues(r.relations, func(rt RelationType) string { return rt.Type.String() })
}

// RelationProperties returns the property types of a relation of type ty.
func (r *Registry) RelationProperties(ty typeid.RelationTypeID) ([]typeid.PropertyType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.relations[ty]
	if !ok {
		return nil, fmt.Errorf("relation type %s: %w", ty, ErrTypeNotFound)
	}
	cs, err := r.resolveComponents("relation type "+ty.String(), rt.Components)
	if err != nil {
		return nil, err
	}
	return mergeProperties(cs, rt.Properties), nil
}

// AddFlowType registers ft. Its wrapper entity type must be registered.
func (r *Registry) AddFlowType(ft FlowType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flows[ft.Type]; ok {
		return fmt.Errorf("flow type %s: %w", ft.Type, ErrTypeExists)
	}
	if _, ok := r.entities[ft.Wrapper]; !ok {
		return fmt.Errorf("flow type %s: wrapper %s: %w", ft.Type, ft.Wrapper, ErrTypeNotFound)
	}
	r.flows[ft.Type] = ft
	return nil
}

// FlowType returns the flow type ty.
func (r *Registry) FlowType(ty typeid.FlowTypeID) (FlowType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ft, ok := r.flows[ty]
	return ft, ok
}

// FlowTypes returns every flow type ordered by type.
func (r *Registry) FlowTypes() []FlowType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedValues(r.flows, func(ft FlowType) string { return ft.Type.String() })
}

// ComponentBehaviours returns the behaviour types registered for component
// in either source.
func (r *Registry) ComponentBehaviours(component typeid.ComponentTypeID) []typeid.BehaviourTypeID {
	r.mu.RLock()
	sources := []BehaviourSource{r.entityBehaviours, r.relationBehaviours}
	r.mu.RUnlock()

	set := typeid.NewSet[typeid.BehaviourTypeID]()
	for _, src := range sources {
		if src == nil {
			continue
		}
		for _, b := range src.BehaviourTypes(component) {
			set.Add(b)
		}
	}
	return typeid.Sorted(set)
}

// EntityBehaviours returns the behaviour types an entity of type ty
// receives from its components.
func (r *Registry) EntityBehaviours(ty typeid.EntityTypeID) []typeid.BehaviourTypeID {
	r.mu.RLock()
	et, ok := r.entities[ty]
	src := r.entityBehaviours
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return collectBehaviours(src, et.Components)
}

// RelationBehaviours returns the behaviour types a relation of type ty
// receives from its components.
func (r *Registry) RelationBehaviours(ty typeid.RelationTypeID) []typeid.BehaviourTypeID {
	r.mu.RLock()
	rt, ok := r.relations[ty]
	src := r.relationBehaviours
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return collectBehaviours(src, rt.Components)
}

func collectBehaviours(src BehaviourSource, components []typeid.ComponentTypeID) []typeid.BehaviourTypeID {
	if src == nil {
		return nil
	}
	set := typeid.NewSet[typeid.BehaviourTypeID]()
	for _, c := range components {
		for _, b := range src.BehaviourTypes(c) {
			set.Add(b)
		}
	}
	return typeid.Sorted(set)
}

func sortedValues[K comparable, V any](m map[K]V, key func(V) string) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b V) int { return strings.Compare(key(a), key(b)) })
	return out
}
