package behaviour

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/rgraph/internal/reactive"
	"github.com/roach88/rgraph/internal/typeid"
)

// Factory creates the state machine of one behaviour type for an instance.
type Factory[ID comparable, T reactive.Instance[ID]] interface {
	BehaviourType() typeid.BehaviourTypeID
	Create(instance T, opts ...FSMOption) (*FSM[ID, T], error)
}

// Hooks bundles the validator and transitions of a behaviour instance.
type Hooks struct {
	Validator   Validator
	Transitions Transitions
}

// Constructor builds the hooks of a behaviour for one instance.
type Constructor[ID comparable, T reactive.Instance[ID]] func(instance T) (Hooks, error)

// FuncFactory is a Factory backed by a Constructor.
type FuncFactory[ID comparable, T reactive.Instance[ID]] struct {
	ty   typeid.BehaviourTypeID
	ctor Constructor[ID, T]
	opts []FSMOption
}

var (
	_ Factory[uuid.UUID, *reactive.Entity]                     = (*FuncFactory[uuid.UUID, *reactive.Entity])(nil)
	_ Factory[reactive.RelationInstanceID, *reactive.Relation] = (*FuncFactory[reactive.RelationInstanceID, *reactive.Relation])(nil)
)

// NewFactory returns a factory that creates FSMs of type ty using ctor.
func NewFactory[ID comparable, T reactive.Instance[ID]](ty typeid.BehaviourTypeID, ctor Constructor[ID, T], opts ...FSMOption) *FuncFactory[ID, T] {
	return &FuncFactory[ID, T]{ty: ty, ctor: ctor, opts: opts}
}

func (f *FuncFactory[ID, T]) BehaviourType() typeid.BehaviourTypeID { return f.ty }

// Create builds a new FSM in state Created. It refuses instances that
// already behave as the factory's type. opts are applied after the
// factory's own options.
func (f *FuncFactory[ID, T]) Create(instance T, opts ...FSMOption) (*FSM[ID, T], error) {
	if instance.BehavesAs(f.ty) {
		return nil, &CreationError{BehaviourType: f.ty, Instance: fmt.Sprint(instance.ID()), Err: ErrBehaviourAlreadyApplied}
	}
	hooks, err := f.ctor(instance)
	if err != nil {
		return nil, &CreationError{BehaviourType: f.ty, Instance: fmt.Sprint(instance.ID()), Err: err}
	}
	all := append(append([]FSMOption(nil), f.opts...), opts...)
	return NewFSM[ID, T](f.ty, instance, hooks.Validator, hooks.Transitions, all...), nil
}
