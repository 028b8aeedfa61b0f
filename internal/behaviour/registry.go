package behaviour

import (
	"slices"
	"strings"
	"sync"

	"github.com/roach88/rgraph/internal/reactive"
	"github.com/roach88/rgraph/internal/typeid"
)

// BehaviourTypesContainer reports which behaviour types are structurally
// possible for a component or a reactive type.
type BehaviourTypesContainer interface {
	ComponentBehaviours(component typeid.ComponentTypeID) []typeid.BehaviourTypeID
	EntityBehaviours(ty typeid.EntityTypeID) []typeid.BehaviourTypeID
	RelationBehaviours(ty typeid.RelationTypeID) []typeid.BehaviourTypeID
}

// Registry maps components to the factories of their behaviours.
type Registry[ID comparable, T reactive.Instance[ID]] struct {
	mu        sync.RWMutex
	factories map[typeid.ComponentTypeID]map[typeid.BehaviourTypeID]Factory[ID, T]
}

// NewRegistry creates an empty registry.
func NewRegistry[ID comparable, T reactive.Instance[ID]]() *Registry[ID, T] {
	return &Registry[ID, T]{
		factories: make(map[typeid.ComponentTypeID]map[typeid.BehaviourTypeID]Factory[ID, T]),
	}
}

// Register adds factory for the component/behaviour pair, replacing any
// previous factory for it.
func (r *Registry[ID, T]) Register(ty typeid.ComponentBehaviourTypeID, factory Factory[ID, T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byBehaviour, ok := r.factories[ty.Component]
	if !ok {
		byBehaviour = make(map[typeid.BehaviourTypeID]Factory[ID, T])
		r.factories[ty.Component] = byBehaviour
	}
	byBehaviour[ty.Behaviour] = factory
}

// Unregister removes the factory for the pair. Reports whether it existed.
func (r *Registry[ID, T]) Unregister(ty typeid.ComponentBehaviourTypeID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	byBehaviour, ok := r.factories[ty.Component]
	if !ok {
		return false
	}
	_, ok = byBehaviour[ty.Behaviour]
	delete(byBehaviour, ty.Behaviour)
	if len(byBehaviour) == 0 {
		delete(r.factories, ty.Component)
	}
	return ok
}

// Get returns the factories registered for component, ordered by behaviour
// type.
func (r *Registry[ID, T]) Get(component typeid.ComponentTypeID) []Factory[ID, T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byBehaviour := r.factories[component]
	out := make([]Factory[ID, T], 0, len(byBehaviour))
	for _, f := range byBehaviour {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b Factory[ID, T]) int {
		return strings.Compare(a.BehaviourType().String(), b.BehaviourType().String())
	})
	return out
}

// GetFactory returns the factory for one component/behaviour pair.
func (r *Registry[ID, T]) GetFactory(ty typeid.ComponentBehaviourTypeID) (Factory[ID, T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[ty.Component][ty.Behaviour]
	return f, ok
}

// BehaviourTypes returns the behaviour types registered for component.
func (r *Registry[ID, T]) BehaviourTypes(component typeid.ComponentTypeID) []typeid.BehaviourTypeID {
	factories := r.Get(component)
	out := make([]typeid.BehaviourTypeID, len(factories))
	for i, f := range factories {
		out[i] = f.BehaviourType()
	}
	return out
}

// Components returns the components that have at least one factory.
func (r *Registry[ID, T]) Components() []typeid.ComponentTypeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := typeid.NewSet[typeid.ComponentTypeID]()
	for c := range r.factories {
		set.Add(c)
	}
	return typeid.Sorted(set)
}

// Len returns the number of registered factories.
func (r *Registry[ID, T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, byBehaviour := range r.factories {
		n += len(byBehaviour)
	}
	return n
}
