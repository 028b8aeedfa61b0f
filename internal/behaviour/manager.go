package behaviour

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/rgraph/internal/reactive"
	"github.com/roach88/rgraph/internal/telemetry"
	"github.com/roach88/rgraph/internal/typeid"
)

// Manager creates, indexes and drives the behaviours of one kind of
// reactive instance.
//
// Single operations (Connect, Disconnect, Reconnect) return errors to the
// caller. Bulk operations are best-effort: a failing behaviour is logged and
// skipped.
type Manager[ID comparable, T reactive.Instance[ID]] struct {
	kind      string
	registry  *Registry[ID, T]
	storage   *Storage[ID, T]
	logger    *slog.Logger
	observers []TransitionObserver
}

// EntityManager manages entity component behaviours.
type EntityManager = Manager[uuid.UUID, *reactive.Entity]

// RelationManager manages relation component behaviours.
type RelationManager = Manager[reactive.RelationInstanceID, *reactive.Relation]

// ManagerOption configures a Manager.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	logger    *slog.Logger
	observers []TransitionObserver
}

// WithLogger sets the manager's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) ManagerOption {
	return func(o *managerOptions) { o.logger = l }
}

// WithObserver adds an observer that is attached to every FSM the manager
// creates.
func WithObserver(obs TransitionObserver) ManagerOption {
	return func(o *managerOptions) { o.observers = append(o.observers, obs) }
}

// NewManager creates a manager for instances of the given kind ("entity",
// "relation"), using registry to look up factories.
func NewManager[ID comparable, T reactive.Instance[ID]](kind string, registry *Registry[ID, T], opts ...ManagerOption) *Manager[ID, T] {
	o := managerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager[ID, T]{
		kind:      kind,
		registry:  registry,
		storage:   NewStorage[ID, T](),
		logger:    o.logger.With("kind", kind),
		observers: o.observers,
	}
}

// NewEntityManager creates a manager for entity behaviours.
func NewEntityManager(registry *Registry[uuid.UUID, *reactive.Entity], opts ...ManagerOption) *EntityManager {
	return NewManager("entity", registry, opts...)
}

// NewRelationManager creates a manager for relation behaviours.
func NewRelationManager(registry *Registry[reactive.RelationInstanceID, *reactive.Relation], opts ...ManagerOption) *RelationManager {
	return NewManager("relation", registry, opts...)
}

// Registry returns the manager's factory registry.
func (m *Manager[ID, T]) Registry() *Registry[ID, T] { return m.registry }

// Storage returns the manager's behaviour storage.
func (m *Manager[ID, T]) Storage() *Storage[ID, T] { return m.storage }

func (m *Manager[ID, T]) fsmOptions() []FSMOption {
	opts := []FSMOption{WithFSMLogger(m.logger)}
	switch len(m.observers) {
	case 0:
	case 1:
		opts = append(opts, WithFSMObserver(m.observers[0]))
	default:
		opts = append(opts, WithFSMObserver(multiObserver(m.observers)))
	}
	return opts
}

// create stores a new state machine from factory. An existing state machine
// of the same type is never replaced.
func (m *Manager[ID, T]) create(ctx context.Context, instance T, factory Factory[ID, T]) {
	if m.storage.Has(instance.ID(), factory.BehaviourType()) {
		m.logger.Debug("behaviour already added",
			"instance", instance.ID(),
			"behaviour", factory.BehaviourType())
		return
	}
	fsm, err := factory.Create(instance, m.fsmOptions()...)
	if err != nil {
		telemetry.LoggerFrom(ctx, m.logger).Warn("behaviour creation failed",
			"instance", instance.ID(),
			"behaviour", factory.BehaviourType(),
			"error", err)
		return
	}
	m.storage.Insert(fsm)
	m.logger.Debug("behaviour added",
		"instance", instance.ID(),
		"behaviour", fsm.BehaviourType())
}

// AddBehaviours creates a state machine for every factory registered for
// each applied component of instance. The state machines start in Created.
func (m *Manager[ID, T]) AddBehaviours(ctx context.Context, instance T) {
	for _, component := range instance.Components() {
		m.AddBehavioursToComponent(ctx, instance, component)
	}
}

// AddBehavioursToComponent creates the behaviours of one component.
func (m *Manager[ID, T]) AddBehavioursToComponent(ctx context.Context, instance T, component typeid.ComponentTypeID) {
	for _, factory := range m.registry.Get(component) {
		m.create(ctx, instance, factory)
	}
}

// AddBehaviourToComponent creates one component behaviour.
func (m *Manager[ID, T]) AddBehaviourToComponent(ctx context.Context, instance T, ty typeid.ComponentBehaviourTypeID) {
	factory, ok := m.registry.GetFactory(ty)
	if !ok {
		m.logger.Debug("no factory for component behaviour", "instance", instance.ID(), "behaviour", ty)
		return
	}
	m.create(ctx, instance, factory)
}

// RemoveBehaviour disconnects the behaviour if possible and always removes
// it from storage.
func (m *Manager[ID, T]) RemoveBehaviour(ctx context.Context, instance T, ty typeid.BehaviourTypeID) {
	m.removeByID(ctx, instance.ID(), ty)
}

func (m *Manager[ID, T]) removeByID(ctx context.Context, id ID, ty typeid.BehaviourTypeID) {
	if fsm, ok := m.storage.Get(id, ty); ok {
		m.forceDisconnect(ctx, fsm)
	}
	if _, ok := m.storage.Remove(id, ty); ok {
		m.logger.Debug("behaviour removed", "instance", id, "behaviour", ty)
	}
}

// forceDisconnect disconnects a connected state machine, ignoring failure.
// When Disconnect fails the instance keeps the behaviour type in its
// behaviour set, so a FuncFactory refuses to apply it again with
// ErrBehaviourAlreadyApplied until the instance is rebuilt.
func (m *Manager[ID, T]) forceDisconnect(ctx context.Context, fsm *FSM[ID, T]) {
	if fsm.State() != Connected {
		return
	}
	if err := fsm.TransitionContext(ctx, Ready); err != nil {
		telemetry.LoggerFrom(ctx, m.logger).Warn("disconnect failed during removal",
			"instance", fsm.Instance().ID(),
			"behaviour", fsm.BehaviourType(),
			"error", err)
	}
}

// RemoveBehaviours removes every behaviour of instance. Connected behaviours
// are disconnected first; disconnect failures do not prevent removal.
func (m *Manager[ID, T]) RemoveBehaviours(ctx context.Context, instance T) {
	m.RemoveBehavioursByID(ctx, instance.ID())
}

// RemoveBehavioursByID is RemoveBehaviours keyed by instance id.
func (m *Manager[ID, T]) RemoveBehavioursByID(ctx context.Context, id ID) {
	for _, fsm := range m.storage.RemoveAll(id) {
		m.forceDisconnect(ctx, fsm)
		m.logger.Debug("behaviour removed", "instance", id, "behaviour", fsm.BehaviourType())
	}
}

// RemoveBehavioursFromComponent removes the behaviours registered for
// component from instance.
func (m *Manager[ID, T]) RemoveBehavioursFromComponent(ctx context.Context, instance T, component typeid.ComponentTypeID) {
	for _, ty := range m.registry.BehaviourTypes(component) {
		m.removeByID(ctx, instance.ID(), ty)
	}
}

// RemoveBehavioursByBehaviour removes behaviour type ty from every instance.
func (m *Manager[ID, T]) RemoveBehavioursByBehaviour(ctx context.Context, ty typeid.BehaviourTypeID) {
	removed := m.storage.RemoveByBehaviour(ty)
	for _, fsm := range removed {
		m.forceDisconnect(ctx, fsm)
	}
	m.logger.Debug("behaviours removed by type", "behaviour", ty, "count", len(removed))
}

// Connect transitions the behaviour to Connected.
func (m *Manager[ID, T]) Connect(ctx context.Context, instance T, ty typeid.BehaviourTypeID) (err error) {
	ctx, span := m.startSpan(ctx, "behaviour.connect", instance, ty)
	defer func() { telemetry.EndSpan(span, err) }()

	fsm, ok := m.storage.Get(instance.ID(), ty)
	if !ok {
		return newTransitionError(ErrCodeConnectFailed, ty, 0, Connected, ErrBehaviourNotFound)
	}
	return fsm.TransitionContext(ctx, Connected)
}

// Disconnect transitions the behaviour to Ready.
func (m *Manager[ID, T]) Disconnect(ctx context.Context, instance T, ty typeid.BehaviourTypeID) (err error) {
	ctx, span := m.startSpan(ctx, "behaviour.disconnect", instance, ty)
	defer func() { telemetry.EndSpan(span, err) }()

	fsm, ok := m.storage.Get(instance.ID(), ty)
	if !ok {
		return newTransitionError(ErrCodeDisconnectFailed, ty, 0, Ready, ErrBehaviourNotFound)
	}
	return fsm.TransitionContext(ctx, Ready)
}

// Reconnect transitions the behaviour to Ready and then to Connected. A
// missing behaviour is reported as InvalidTransition.
func (m *Manager[ID, T]) Reconnect(ctx context.Context, instance T, ty typeid.BehaviourTypeID) (err error) {
	ctx, span := m.startSpan(ctx, "behaviour.reconnect", instance, ty)
	defer func() { telemetry.EndSpan(span, err) }()

	fsm, ok := m.storage.Get(instance.ID(), ty)
	if !ok {
		return newTransitionError(ErrCodeInvalidTransition, ty, 0, Connected, ErrBehaviourNotFound)
	}
	if err := fsm.TransitionContext(ctx, Ready); err != nil {
		return err
	}
	return fsm.TransitionContext(ctx, Connected)
}

// ConnectAll connects every behaviour of instance that is not connected yet.
// Failures are logged and returned.
func (m *Manager[ID, T]) ConnectAll(ctx context.Context, instance T) []error {
	var errs []error
	for _, fsm := range m.storage.BehavioursOf(instance.ID()) {
		if fsm.State() == Connected {
			continue
		}
		if err := m.Connect(ctx, instance, fsm.BehaviourType()); err != nil {
			telemetry.LoggerFrom(ctx, m.logger).Warn("connect failed",
				"instance", instance.ID(),
				"behaviour", fsm.BehaviourType(),
				"error", err)
			errs = append(errs, err)
		}
	}
	return errs
}

// DisconnectAll disconnects every connected behaviour of instance.
func (m *Manager[ID, T]) DisconnectAll(ctx context.Context, instance T) []error {
	var errs []error
	for _, fsm := range m.storage.BehavioursOf(instance.ID()) {
		if fsm.State() != Connected {
			continue
		}
		if err := m.Disconnect(ctx, instance, fsm.BehaviourType()); err != nil {
			telemetry.LoggerFrom(ctx, m.logger).Warn("disconnect failed",
				"instance", instance.ID(),
				"behaviour", fsm.BehaviourType(),
				"error", err)
			errs = append(errs, err)
		}
	}
	return errs
}

// Has reports whether instance has a behaviour of type ty.
func (m *Manager[ID, T]) Has(instance T, ty typeid.BehaviourTypeID) bool {
	return m.storage.Has(instance.ID(), ty)
}

// GetAll returns the behaviour types stored for instance.
func (m *Manager[ID, T]) GetAll(instance T) []typeid.BehaviourTypeID {
	return m.storage.BehaviourTypesOf(instance.ID())
}

// Get returns the state machine for (instance, ty).
func (m *Manager[ID, T]) Get(instance T, ty typeid.BehaviourTypeID) (*FSM[ID, T], bool) {
	return m.storage.Get(instance.ID(), ty)
}

// GetInstancesByBehaviour returns the instances having behaviour ty.
func (m *Manager[ID, T]) GetInstancesByBehaviour(ty typeid.BehaviourTypeID) []T {
	return m.storage.InstancesBy(ty)
}

// Count returns the number of stored behaviours.
func (m *Manager[ID, T]) Count() int { return m.storage.Count() }

// CountByBehaviour returns the number of stored behaviours of type ty.
func (m *Manager[ID, T]) CountByBehaviour(ty typeid.BehaviourTypeID) int {
	return m.storage.CountByBehaviour(ty)
}

func (m *Manager[ID, T]) startSpan(ctx context.Context, name string, instance T, ty typeid.BehaviourTypeID) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, name,
		attribute.String("rgraph.kind", m.kind),
		attribute.String("rgraph.instance", fmt.Sprint(instance.ID())),
		attribute.String("rgraph.behaviour", ty.String()),
	)
}

type multiObserver []TransitionObserver

func (mo multiObserver) OnTransition(ctx context.Context, ev TransitionEvent) {
	for _, o := range mo {
		o.OnTransition(ctx, ev)
	}
}
