// Package reactive provides the reactive instances of the graph: entities,
// relations and flows.
//
// Every instance binds an identity to a property container, a set of
// applied components and a set of applied behaviours. The behaviour set is
// bookkeeping for the behaviour lifecycle: it is changed by the behaviour
// state machine when a behaviour connects or disconnects, never by
// application code.
package reactive

import (
	"sync"

	"github.com/roach88/rgraph/internal/property"
	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/value"
)

// Instance is the capability set shared by entities, relations and flows.
type Instance[ID comparable] interface {
	ID() ID
	Properties() *property.Instances

	Get(name string) (value.Value, bool)
	Set(name string, v value.Value)
	SetNoPropagate(name string, v value.Value)
	Tick(name string)

	Components() []typeid.ComponentTypeID
	AddComponent(ty typeid.ComponentTypeID)
	RemoveComponent(ty typeid.ComponentTypeID)
	IsA(ty typeid.ComponentTypeID) bool

	AddBehaviour(ty typeid.BehaviourTypeID)
	RemoveBehaviour(ty typeid.BehaviourTypeID)
	BehavesAs(ty typeid.BehaviourTypeID) bool
	Behaviours() []typeid.BehaviourTypeID
}

// container implements the identity-independent part of Instance.
type container struct {
	props *property.Instances

	mu         sync.RWMutex
	components typeid.Set[typeid.ComponentTypeID]
	behaviours typeid.Set[typeid.BehaviourTypeID]
}

func newContainer(props *property.Instances) container {
	return container{
		props:      props,
		components: typeid.NewSet[typeid.ComponentTypeID](),
		behaviours: typeid.NewSet[typeid.BehaviourTypeID](),
	}
}

func (c *container) Properties() *property.Instances { return c.props }

// Get returns the current value of the named property.
func (c *container) Get(name string) (value.Value, bool) {
	return c.props.Value(name)
}

// Set writes and propagates the named property. Unknown names are ignored.
func (c *container) Set(name string, v value.Value) {
	if p, ok := c.props.Get(name); ok {
		p.Set(v)
	}
}

// SetNoPropagate writes the named property without notifying subscribers.
func (c *container) SetNoPropagate(name string, v value.Value) {
	if p, ok := c.props.Get(name); ok {
		p.SetNoPropagate(v)
	}
}

// SetChecked writes the named property if it is mutable.
func (c *container) SetChecked(name string, v value.Value) {
	if p, ok := c.props.Get(name); ok {
		p.SetChecked(v)
	}
}

// Tick re-emits the current value of the named property.
func (c *container) Tick(name string) {
	if p, ok := c.props.Get(name); ok {
		p.Tick()
	}
}

// TickAll re-emits every property in name order.
func (c *container) TickAll() {
	c.props.Range(func(p *property.Instance) bool {
		p.Tick()
		return true
	})
}

// SetAll seeds every given property without propagation and then ticks
// them in key order. Observers may see a partially updated instance while
// the ticks run.
func (c *container) SetAll(values value.Object) {
	keys := values.SortedKeys()
	var seeded []*property.Instance
	for _, k := range keys {
		if p, ok := c.props.Get(k); ok {
			p.SetNoPropagate(values[k])
			seeded = append(seeded, p)
		}
	}
	for _, p := range seeded {
		p.Tick()
	}
}

func (c *container) HasProperty(name string) bool {
	return c.props.Has(name)
}

// AddProperty adds a property unless one with the same name exists.
func (c *container) AddProperty(name string, m typeid.Mutability, v value.Value) {
	if c.props.Has(name) {
		return
	}
	c.props.Insert(property.NewInstanceWithMutability(c.props.OwnerID(), name, m, v))
}

func (c *container) RemoveProperty(name string) {
	c.props.Remove(name)
}

func (c *container) AsBool(name string) (bool, bool) {
	v, ok := c.Get(name)
	if !ok {
		return false, false
	}
	return value.AsBool(v)
}

func (c *container) AsString(name string) (string, bool) {
	v, ok := c.Get(name)
	if !ok {
		return "", false
	}
	return value.AsString(v)
}

func (c *container) AsF64(name string) (float64, bool) {
	v, ok := c.Get(name)
	if !ok {
		return 0, false
	}
	return value.AsF64(v)
}

func (c *container) AsI64(name string) (int64, bool) {
	v, ok := c.Get(name)
	if !ok {
		return 0, false
	}
	return value.AsI64(v)
}

// Components returns the applied components in name order.
func (c *container) Components() []typeid.ComponentTypeID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return typeid.Sorted(c.components)
}

func (c *container) AddComponent(ty typeid.ComponentTypeID) {
	c.mu.Lock()
	c.components.Add(ty)
	c.mu.Unlock()
}

// AddComponentWithProperties applies a component and adds its properties
// that the instance does not have yet, initialised to their defaults.
func (c *container) AddComponentWithProperties(ty typeid.ComponentTypeID, props []typeid.PropertyType) {
	c.AddComponent(ty)
	for _, pt := range props {
		m := typeid.Mutable
		if !pt.IsMutable() {
			m = typeid.Immutable
		}
		c.AddProperty(pt.Name, m, pt.DefaultValue())
	}
}

func (c *container) RemoveComponent(ty typeid.ComponentTypeID) {
	c.mu.Lock()
	c.components.Remove(ty)
	c.mu.Unlock()
}

func (c *container) IsA(ty typeid.ComponentTypeID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.components.Contains(ty)
}

// IsAll reports whether every given component is applied.
func (c *container) IsAll(tys ...typeid.ComponentTypeID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.components.ContainsAll(tys...)
}

// AddBehaviour records ty as connected. Called by the behaviour state
// machine only.
func (c *container) AddBehaviour(ty typeid.BehaviourTypeID) {
	c.mu.Lock()
	c.behaviours.Add(ty)
	c.mu.Unlock()
}

// RemoveBehaviour records ty as disconnected. Called by the behaviour state
// machine only.
func (c *container) RemoveBehaviour(ty typeid.BehaviourTypeID) {
	c.mu.Lock()
	c.behaviours.Remove(ty)
	c.mu.Unlock()
}

func (c *container) BehavesAs(ty typeid.BehaviourTypeID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.behaviours.Contains(ty)
}

// Behaviours returns the connected behaviours in name order.
func (c *container) Behaviours() []typeid.BehaviourTypeID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return typeid.Sorted(c.behaviours)
}
