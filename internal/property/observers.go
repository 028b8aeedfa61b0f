package property

import "sync"

type observation struct {
	props  *Instances
	name   string
	handle Handle
}

// Observers records the subscriptions a behaviour made so they can be
// removed together on disconnect.
type Observers struct {
	mu   sync.Mutex
	list []observation
}

// Observe subscribes fn to the property name in props. It reports false when
// the property does not exist.
func (o *Observers) Observe(props *Instances, name string, fn Subscriber) (Handle, bool) {
	p, ok := props.Get(name)
	if !ok {
		return 0, false
	}
	h := p.Observe(fn)
	o.mu.Lock()
	o.list = append(o.list, observation{props: props, name: name, handle: h})
	o.mu.Unlock()
	return h, true
}

// Remove unsubscribes a single recorded handle.
func (o *Observers) Remove(h Handle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, obs := range o.list {
		if obs.handle != h {
			continue
		}
		if p, ok := obs.props.Get(obs.name); ok {
			p.Unobserve(h)
		}
		o.list = append(o.list[:i], o.list[i+1:]...)
		return
	}
}

// RemoveAll unsubscribes every recorded handle.
func (o *Observers) RemoveAll() {
	o.mu.Lock()
	list := o.list
	o.list = nil
	o.mu.Unlock()

	for _, obs := range list {
		if p, ok := obs.props.Get(obs.name); ok {
			p.Unobserve(obs.handle)
		}
	}
}

// Len returns the number of recorded subscriptions.
func (o *Observers) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.list)
}
