// Package property implements reactive property containers.
//
// An Instance holds one named value and pushes every write synchronously to
// its subscribers on the caller's goroutine. Instances is the concurrent
// name -> *Instance map owned by one reactive instance.
//
// Emission on a single property is serialized, so subscribers observe the
// writes to that property in a total order. Subscribers run after the value
// lock is released and may read (but must not write) the property they
// observe. A write cycle through connected properties (A -> B -> A) blocks
// on the first property's emission lock; cycles are not detected.
package property

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/value"
)

// Handle identifies a subscription on a property.
type Handle uint64

// Subscriber receives every value emitted by a property.
type Subscriber func(v value.Value)

var handleSeq atomic.Uint64

// NextHandle returns a process-unique subscription handle.
func NextHandle() Handle {
	return Handle(handleSeq.Add(1))
}

type subscription struct {
	handle Handle
	fn     Subscriber
}

// Instance is a single named reactive value.
type Instance struct {
	ownerID string
	name    string

	mu         sync.RWMutex
	val        value.Value
	mutability typeid.Mutability

	emitMu sync.Mutex

	subMu sync.RWMutex
	subs  map[Handle]Subscriber
}

// NewInstance creates a mutable property owned by ownerID.
func NewInstance(ownerID, name string, v value.Value) *Instance {
	return NewInstanceWithMutability(ownerID, name, typeid.Mutable, v)
}

// NewInstanceWithMutability creates a property with explicit mutability.
func NewInstanceWithMutability(ownerID, name string, m typeid.Mutability, v value.Value) *Instance {
	if v == nil {
		v = value.Null{}
	}
	return &Instance{
		ownerID:    ownerID,
		name:       name,
		val:        v,
		mutability: m,
		subs:       make(map[Handle]Subscriber),
	}
}

func (p *Instance) OwnerID() string { return p.ownerID }

func (p *Instance) Name() string { return p.name }

// Get returns the current value.
func (p *Instance) Get() value.Value {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.val
}

// Mutability returns the property's mutability.
func (p *Instance) Mutability() typeid.Mutability {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mutability
}

func (p *Instance) SetMutability(m typeid.Mutability) {
	p.mu.Lock()
	p.mutability = m
	p.mu.Unlock()
}

func (p *Instance) isMutable() bool {
	return p.Mutability() != typeid.Immutable
}

// Set replaces the value and notifies every current subscriber with it,
// even when the value is unchanged.
func (p *Instance) Set(v value.Value) {
	if v == nil {
		v = value.Null{}
	}
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	p.store(v)
	p.emit(v)
}

// SetNoPropagate replaces the value without notifying subscribers.
func (p *Instance) SetNoPropagate(v value.Value) {
	if v == nil {
		v = value.Null{}
	}
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	p.store(v)
}

// Tick re-emits the current value without changing it.
func (p *Instance) Tick() {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	p.emit(p.Get())
}

// Send emits v to subscribers without storing it.
func (p *Instance) Send(v value.Value) {
	if v == nil {
		v = value.Null{}
	}
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	p.emit(v)
}

// SetChecked is Set for mutable properties and a no-op otherwise.
func (p *Instance) SetChecked(v value.Value) {
	if p.isMutable() {
		p.Set(v)
	}
}

// SetNoPropagateChecked is SetNoPropagate for mutable properties.
func (p *Instance) SetNoPropagateChecked(v value.Value) {
	if p.isMutable() {
		p.SetNoPropagate(v)
	}
}

// TickChecked is Tick for mutable properties.
func (p *Instance) TickChecked() {
	if p.isMutable() {
		p.Tick()
	}
}

func (p *Instance) store(v value.Value) {
	p.mu.Lock()
	p.val = v
	p.mu.Unlock()
}

// emit fans v out to a snapshot of the subscribers in handle order.
// Caller holds emitMu.
func (p *Instance) emit(v value.Value) {
	p.subMu.RLock()
	if len(p.subs) == 0 {
		p.subMu.RUnlock()
		return
	}
	snapshot := make([]subscription, 0, len(p.subs))
	for h, fn := range p.subs {
		snapshot = append(snapshot, subscription{handle: h, fn: fn})
	}
	p.subMu.RUnlock()

	slices.SortFunc(snapshot, func(a, b subscription) int {
		return cmp.Compare(a.handle, b.handle)
	})
	for _, s := range snapshot {
		s.fn(v)
	}
}

// Observe subscribes fn and returns a fresh handle.
func (p *Instance) Observe(fn Subscriber) Handle {
	h := NextHandle()
	p.ObserveWithHandle(h, fn)
	return h
}

// ObserveWithHandle subscribes fn under the caller-chosen handle, replacing
// any subscriber previously registered with it.
func (p *Instance) ObserveWithHandle(h Handle, fn Subscriber) {
	p.subMu.Lock()
	p.subs[h] = fn
	p.subMu.Unlock()
}

// Unobserve removes the subscriber for h. Unknown handles are ignored.
func (p *Instance) Unobserve(h Handle) {
	p.subMu.Lock()
	delete(p.subs, h)
	p.subMu.Unlock()
}

// UnobserveAll removes every subscriber.
func (p *Instance) UnobserveAll() {
	p.subMu.Lock()
	clear(p.subs)
	p.subMu.Unlock()
}

// SubscriberCount returns the number of current subscribers.
func (p *Instance) SubscriberCount() int {
	p.subMu.RLock()
	defer p.subMu.RUnlock()
	return len(p.subs)
}

// Typed accessors. Each returns ok=false on a kind mismatch.

func (p *Instance) AsBool() (bool, bool) { return value.AsBool(p.Get()) }
func (p *Instance) AsI64() (int64, bool) { return value.AsI64(p.Get()) }
func (p *Instance) AsU64() (uint64, bool) { return value.AsU64(p.Get()) }
func (p *Instance) AsF64() (float64, bool) { return value.AsF64(p.Get()) }
func (p *Instance) AsString() (string, bool) { return value.AsString(p.Get()) }
func (p *Instance) AsArray() (value.Array, bool) { return value.AsArray(p.Get()) }
func (p *Instance) AsObject() (value.Object, bool) { return value.AsObject(p.Get()) }
