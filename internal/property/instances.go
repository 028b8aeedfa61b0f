package property

import (
	"encoding/json"
	"hash/maphash"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/value"
)

const shardCount = 16

type shard struct {
	mu    sync.RWMutex
	props map[string]*Instance
}

// Instances is a concurrent name -> *Instance map. Keys are striped across
// shards so writers on different names do not contend.
type Instances struct {
	ownerID string
	seed    maphash.Seed
	shards  [shardCount]shard
}

// NewInstances creates an empty container for ownerID.
func NewInstances(ownerID string) *Instances {
	ps := &Instances{ownerID: ownerID, seed: maphash.MakeSeed()}
	for i := range ps.shards {
		ps.shards[i].props = make(map[string]*Instance)
	}
	return ps
}

// NewFromPropertyTypes populates a container with one mutable-as-declared
// property per type, initialised to its default value.
func NewFromPropertyTypes(ownerID string, types []typeid.PropertyType) *Instances {
	ps := NewInstances(ownerID)
	for _, pt := range types {
		ps.Insert(NewInstanceWithMutability(ownerID, pt.Name, mutabilityOf(pt), pt.DefaultValue()))
	}
	return ps
}

// NewFromValues populates a container with one mutable property per entry.
func NewFromValues(ownerID string, values value.Object) *Instances {
	ps := NewInstances(ownerID)
	for name, v := range values {
		ps.Insert(NewInstance(ownerID, name, v))
	}
	return ps
}

func mutabilityOf(pt typeid.PropertyType) typeid.Mutability {
	if pt.IsMutable() {
		return typeid.Mutable
	}
	return typeid.Immutable
}

func (ps *Instances) OwnerID() string { return ps.ownerID }

func (ps *Instances) shardFor(name string) *shard {
	return &ps.shards[maphash.String(ps.seed, name)%shardCount]
}

// Get returns the property named name.
func (ps *Instances) Get(name string) (*Instance, bool) {
	s := ps.shardFor(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.props[name]
	return p, ok
}

// Value returns the current value of the property named name.
func (ps *Instances) Value(name string) (value.Value, bool) {
	p, ok := ps.Get(name)
	if !ok {
		return nil, false
	}
	return p.Get(), true
}

// Insert adds p, replacing any property with the same name.
func (ps *Instances) Insert(p *Instance) {
	s := ps.shardFor(p.Name())
	s.mu.Lock()
	s.props[p.Name()] = p
	s.mu.Unlock()
}

// Add creates a property if it does not exist yet and returns it.
func (ps *Instances) Add(name string, v value.Value) *Instance {
	s := ps.shardFor(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.props[name]; ok {
		return p
	}
	p := NewInstance(ps.ownerID, name, v)
	s.props[name] = p
	return p
}

// Remove deletes the property named name and returns it.
func (ps *Instances) Remove(name string) (*Instance, bool) {
	s := ps.shardFor(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.props[name]
	delete(s.props, name)
	return p, ok
}

func (ps *Instances) Has(name string) bool {
	_, ok := ps.Get(name)
	return ok
}

func (ps *Instances) Len() int {
	n := 0
	for i := range ps.shards {
		s := &ps.shards[i]
		s.mu.RLock()
		n += len(s.props)
		s.mu.RUnlock()
	}
	return n
}

// all returns every property in name order.
func (ps *Instances) all() []*Instance {
	var out []*Instance
	for i := range ps.shards {
		s := &ps.shards[i]
		s.mu.RLock()
		for _, p := range s.props {
			out = append(out, p)
		}
		s.mu.RUnlock()
	}
	slices.SortFunc(out, func(a, b *Instance) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return out
}

// Names returns the property names in sorted order.
func (ps *Instances) Names() []string {
	all := ps.all()
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.Name()
	}
	return names
}

// Range calls fn for each property in name order until fn returns false.
func (ps *Instances) Range(fn func(p *Instance) bool) {
	for _, p := range ps.all() {
		if !fn(p) {
			return
		}
	}
}

// Snapshot returns a deep copy of all current values.
func (ps *Instances) Snapshot() value.Object {
	out := make(value.Object, ps.Len())
	for _, p := range ps.all() {
		out[p.Name()] = value.Clone(p.Get())
	}
	return out
}

// MarshalJSON serializes the current values with sorted keys.
func (ps *Instances) MarshalJSON() ([]byte, error) {
	return json.Marshal(ps.Snapshot())
}

// UnobserveAll drops every subscriber of every property.
func (ps *Instances) UnobserveAll() {
	for _, p := range ps.all() {
		p.UnobserveAll()
	}
}
