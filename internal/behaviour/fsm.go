// Package behaviour implements the behaviour lifecycle: the per-(instance,
// behaviour type) state machine, the factories and registries that create
// state machines for components, the concurrent storage that indexes them,
// and the manager that drives them.
//
// A behaviour moves through Created -> Valid -> Ready -> Connected. Forward
// transitions run every intermediate hook in order and stop at the last
// stage reached when a hook fails. Connected -> Ready is the only backward
// transition.
package behaviour

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/rgraph/internal/reactive"
	"github.com/roach88/rgraph/internal/typeid"
)

// State is the lifecycle state of a behaviour.
type State int

const (
	Created State = iota
	Valid
	Ready
	Connected
)

// AllStates lists every state in lifecycle order.
var AllStates = []State{Created, Valid, Ready, Connected}

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Valid:
		return "valid"
	case Ready:
		return "ready"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Validator checks a behaviour's preconditions. It must not modify the
// instance.
type Validator interface {
	Validate() error
}

// Transitions are the lifecycle hooks of a behaviour. Init prepares internal
// state without touching the graph; Connect subscribes to property streams;
// Disconnect undoes Connect.
type Transitions interface {
	Init() error
	Connect() error
	Disconnect() error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func() error

func (f ValidatorFunc) Validate() error { return f() }

// NoopValidator accepts every instance.
var NoopValidator Validator = ValidatorFunc(func() error { return nil })

// TransitionFuncs adapts functions to Transitions. Nil hooks succeed.
type TransitionFuncs struct {
	InitFunc       func() error
	ConnectFunc    func() error
	DisconnectFunc func() error
}

func (t TransitionFuncs) Init() error       { return call(t.InitFunc) }
func (t TransitionFuncs) Connect() error    { return call(t.ConnectFunc) }
func (t TransitionFuncs) Disconnect() error { return call(t.DisconnectFunc) }

func call(f func() error) error {
	if f == nil {
		return nil
	}
	return f()
}

// TransitionObserver is notified after every transition step, successful or
// not. Implementations must not call back into the FSM.
type TransitionObserver interface {
	OnTransition(ctx context.Context, ev TransitionEvent)
}

// TransitionEvent describes one executed transition step.
type TransitionEvent struct {
	Instance  string
	Behaviour typeid.BehaviourTypeID
	From      State
	To        State
	Err       error
}

// FSM drives one behaviour on one reactive instance. Transitions on one FSM
// are serialized by its own lock; distinct FSMs never contend.
type FSM[ID comparable, T reactive.Instance[ID]] struct {
	ty          typeid.BehaviourTypeID
	instance    T
	validator   Validator
	transitions Transitions

	// transMu serializes whole transitions; stateMu guards state so hooks
	// may read it while a transition is running.
	transMu sync.Mutex
	stateMu sync.RWMutex
	state   State

	logger   *slog.Logger
	observer TransitionObserver
}

// FSMOption configures an FSM.
type FSMOption func(*fsmOptions)

type fsmOptions struct {
	logger   *slog.Logger
	observer TransitionObserver
}

// WithFSMLogger sets the logger used for transition tracing.
func WithFSMLogger(l *slog.Logger) FSMOption {
	return func(o *fsmOptions) { o.logger = l }
}

// WithFSMObserver registers an observer for executed transition steps.
func WithFSMObserver(obs TransitionObserver) FSMOption {
	return func(o *fsmOptions) { o.observer = obs }
}

// NewFSM creates a state machine in state Created.
func NewFSM[ID comparable, T reactive.Instance[ID]](
	ty typeid.BehaviourTypeID,
	instance T,
	validator Validator,
	transitions Transitions,
	opts ...FSMOption,
) *FSM[ID, T] {
	o := fsmOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if validator == nil {
		validator = NoopValidator
	}
	if transitions == nil {
		transitions = TransitionFuncs{}
	}
	return &FSM[ID, T]{
		ty:          ty,
		instance:    instance,
		validator:   validator,
		transitions: transitions,
		state:       Created,
		logger:      o.logger,
		observer:    o.observer,
	}
}

// BehaviourType returns the behaviour type driven by the FSM.
func (f *FSM[ID, T]) BehaviourType() typeid.BehaviourTypeID { return f.ty }

// Instance returns the reactive instance the behaviour decorates.
func (f *FSM[ID, T]) Instance() T { return f.instance }

// Transitions returns the behaviour's hooks.
func (f *FSM[ID, T]) Transitions() Transitions { return f.transitions }

// State returns the current state.
func (f *FSM[ID, T]) State() State {
	f.stateMu.RLock()
	defer f.stateMu.RUnlock()
	return f.state
}

func (f *FSM[ID, T]) setState(s State) {
	f.stateMu.Lock()
	f.state = s
	f.stateMu.Unlock()
}

// Transition moves the behaviour to target, running the hooks of every
// intermediate state. On failure the state stays at the last stage reached.
func (f *FSM[ID, T]) Transition(target State) error {
	return f.TransitionContext(context.Background(), target)
}

// TransitionContext is Transition with a context passed to the observer.
func (f *FSM[ID, T]) TransitionContext(ctx context.Context, target State) error {
	f.transMu.Lock()
	defer f.transMu.Unlock()
	return f.transition(ctx, target)
}

// transition implements the transition table. Caller holds transMu.
func (f *FSM[ID, T]) transition(ctx context.Context, target State) error {
	current := f.State()
	f.logger.Debug("behaviour transition",
		"instance", f.instance.ID(),
		"behaviour", f.ty,
		"from", current,
		"to", target)

	switch current {
	case Created:
		switch target {
		case Valid:
			return f.step(ctx, current, target, ErrCodeBehaviourInvalid, f.validator.Validate)
		case Ready:
			if err := f.transition(ctx, Valid); err != nil {
				return err
			}
			return f.step(ctx, Valid, target, ErrCodeInitializationFailed, f.transitions.Init)
		case Connected:
			if err := f.transition(ctx, Ready); err != nil {
				return err
			}
			return f.connect(ctx, Ready)
		}
	case Valid:
		switch target {
		case Ready:
			return f.step(ctx, current, target, ErrCodeInitializationFailed, f.transitions.Init)
		case Connected:
			if err := f.transition(ctx, Ready); err != nil {
				return err
			}
			return f.connect(ctx, Ready)
		}
	case Ready:
		if target == Connected {
			return f.connect(ctx, current)
		}
	case Connected:
		if target == Ready {
			return f.step(ctx, current, target, ErrCodeDisconnectFailed, func() error {
				if err := f.transitions.Disconnect(); err != nil {
					return err
				}
				f.instance.RemoveBehaviour(f.ty)
				return nil
			})
		}
	}

	err := newTransitionError(ErrCodeInvalidTransition, f.ty, current, target, nil)
	f.notify(ctx, current, target, err)
	return err
}

func (f *FSM[ID, T]) connect(ctx context.Context, from State) error {
	return f.step(ctx, from, Connected, ErrCodeConnectFailed, func() error {
		if err := f.transitions.Connect(); err != nil {
			return err
		}
		f.instance.AddBehaviour(f.ty)
		return nil
	})
}

// step runs one hook and advances to `to` on success.
func (f *FSM[ID, T]) step(ctx context.Context, from, to State, code TransitionErrorCode, hook func() error) error {
	if err := hook(); err != nil {
		terr := newTransitionError(code, f.ty, from, to, err)
		f.logger.Debug("behaviour transition failed",
			"instance", f.instance.ID(),
			"behaviour", f.ty,
			"from", from,
			"to", to,
			"error", err)
		f.notify(ctx, from, to, terr)
		return terr
	}
	f.setState(to)
	f.notify(ctx, from, to, nil)
	return nil
}

func (f *FSM[ID, T]) notify(ctx context.Context, from, to State, err error) {
	if f.observer == nil {
		return
	}
	f.observer.OnTransition(ctx, TransitionEvent{
		Instance:  fmt.Sprint(f.instance.ID()),
		Behaviour: f.ty,
		From:      from,
		To:        to,
		Err:       err,
	})
}
