package reactive

import (
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/rgraph/internal/typeid"
)

// Flow is a subgraph exposed through a wrapper entity. The flow's identity,
// properties, components and behaviours are those of the wrapper; the
// wrapper's properties are the flow's inputs and outputs.
type Flow struct {
	*Entity
	ty typeid.FlowTypeID

	mu        sync.RWMutex
	entities  map[uuid.UUID]*Entity
	relations map[RelationInstanceID]*Relation
}

var _ Instance[uuid.UUID] = (*Flow)(nil)

// NewFlow creates a flow around wrapper. The wrapper is also a member of the
// flow's entities.
func NewFlow(ty typeid.FlowTypeID, wrapper *Entity) *Flow {
	f := &Flow{
		Entity:    wrapper,
		ty:        ty,
		entities:  map[uuid.UUID]*Entity{wrapper.ID(): wrapper},
		relations: make(map[RelationInstanceID]*Relation),
	}
	return f
}

// Type returns the flow type.
func (f *Flow) Type() typeid.FlowTypeID { return f.ty }

// Wrapper returns the wrapper entity.
func (f *Flow) Wrapper() *Entity { return f.Entity }

func (f *Flow) AddEntity(e *Entity) {
	f.mu.Lock()
	f.entities[e.ID()] = e
	f.mu.Unlock()
}

// RemoveEntity removes a contained entity. The wrapper cannot be removed.
func (f *Flow) RemoveEntity(id uuid.UUID) bool {
	if id == f.ID() {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entities[id]
	delete(f.entities, id)
	return ok
}

func (f *Flow) HasEntity(id uuid.UUID) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.entities[id]
	return ok
}

func (f *Flow) GetEntity(id uuid.UUID) (*Entity, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.entities[id]
	return e, ok
}

// Entities returns every member entity, wrapper included, ordered by id.
func (f *Flow) Entities() []*Entity {
	f.mu.RLock()
	out := make([]*Entity, 0, len(f.entities))
	for _, e := range f.entities {
		out = append(out, e)
	}
	f.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Entity) int {
		return strings.Compare(a.ID().String(), b.ID().String())
	})
	return out
}

func (f *Flow) AddRelation(r *Relation) {
	f.mu.Lock()
	f.relations[r.ID()] = r
	f.mu.Unlock()
}

func (f *Flow) RemoveRelation(id RelationInstanceID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.relations[id]
	delete(f.relations, id)
	return ok
}

func (f *Flow) HasRelation(id RelationInstanceID) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.relations[id]
	return ok
}

func (f *Flow) GetRelation(id RelationInstanceID) (*Relation, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.relations[id]
	return r, ok
}

// Relations returns every member relation ordered by id.
func (f *Flow) Relations() []*Relation {
	f.mu.RLock()
	out := make([]*Relation, 0, len(f.relations))
	for _, r := range f.relations {
		out = append(out, r)
	}
	f.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Relation) int {
		return strings.Compare(a.ID().String(), b.ID().String())
	})
	return out
}
