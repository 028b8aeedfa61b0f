package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/rgraph/internal/behaviour"
	"github.com/roach88/rgraph/internal/compiler"
	"github.com/roach88/rgraph/internal/connector"
	"github.com/roach88/rgraph/internal/gate"
	"github.com/roach88/rgraph/internal/idgen"
	"github.com/roach88/rgraph/internal/instance"
	"github.com/roach88/rgraph/internal/reactive"
	"github.com/roach88/rgraph/internal/store"
	"github.com/roach88/rgraph/internal/telemetry"
	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/types"
	"github.com/roach88/rgraph/internal/value"
)

var (
	// ErrNoStore is returned by Snapshot when no store is configured.
	ErrNoStore = errors.New("runtime has no store")

	// ErrPropertyNotFound is returned when writing a property the entity
	// does not have.
	ErrPropertyNotFound = errors.New("property not found")
)

// Runtime owns a reactive graph and everything needed to grow it.
//
// Thread-safety: all methods are safe for concurrent use. Property writes
// propagate synchronously on the calling goroutine.
type Runtime struct {
	logger      *slog.Logger
	metrics     *telemetry.Metrics
	store       *store.Store
	ids         idgen.Generator
	clock       *idgen.Clock
	autoConnect bool
	parallelism int
	observers   []behaviour.TransitionObserver

	types     *types.Registry
	entities  *instance.EntityManager
	relations *instance.RelationManager
	flows     *instance.FlowManager
}

// New creates a runtime with the built-in gate and connector types.
func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	rt := &Runtime{
		logger:      slog.Default(),
		autoConnect: true,
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.metrics == nil {
		rt.metrics = telemetry.DefaultMetrics()
	}
	if rt.parallelism < 1 {
		rt.parallelism = DefaultParallelism
	}
	if rt.clock == nil {
		var last int64
		if rt.store != nil {
			var err error
			if last, err = rt.store.LastTransitionSeq(ctx); err != nil {
				return nil, fmt.Errorf("resume clock: %w", err)
			}
		}
		rt.clock = idgen.NewClockAt(last)
	}

	rt.types = types.NewRegistry()
	if err := registerBuiltins(rt.types); err != nil {
		return nil, fmt.Errorf("register built-in types: %w", err)
	}

	observers := append([]behaviour.TransitionObserver{transitionMetrics{metrics: rt.metrics}}, rt.observers...)
	if rt.store != nil {
		journal, err := store.NewJournal(ctx, rt.store, rt.clock, rt.logger)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		observers = append(observers, journal)
	}
	managerOpts := []behaviour.ManagerOption{behaviour.WithLogger(rt.logger)}
	for _, o := range observers {
		managerOpts = append(managerOpts, behaviour.WithObserver(o))
	}

	instanceOpts := []instance.Option{instance.WithLogger(rt.logger), instance.WithMetrics(rt.metrics)}
	if rt.ids != nil {
		instanceOpts = append(instanceOpts, instance.WithIDGenerator(rt.ids))
	}

	entityBehaviours := behaviour.NewRegistry[uuid.UUID, *reactive.Entity]()
	gate.RegisterAll(entityBehaviours, rt.logger)
	rt.entities = instance.NewEntityManager(rt.types,
		behaviour.NewEntityManager(entityBehaviours, managerOpts...), instanceOpts...)

	relationBehaviours := behaviour.NewRegistry[reactive.RelationInstanceID, *reactive.Relation]()
	connector.Register(relationBehaviours, rt.entities, rt.logger)
	rt.relations = instance.NewRelationManager(rt.types, rt.entities,
		behaviour.NewRelationManager(relationBehaviours, managerOpts...), instanceOpts...)

	rt.types.SetBehaviourSources(entityBehaviours, relationBehaviours)
	rt.flows = instance.NewFlowManager(rt.types, rt.entities, rt.relations, instanceOpts...)
	return rt, nil
}

// Types returns the type registry.
func (rt *Runtime) Types() *types.Registry { return rt.types }

// Entities returns the entity manager.
func (rt *Runtime) Entities() *instance.EntityManager { return rt.entities }

// Relations returns the relation manager.
func (rt *Runtime) Relations() *instance.RelationManager { return rt.relations }

// Flows returns the flow manager.
func (rt *Runtime) Flows() *instance.FlowManager { return rt.flows }

// Clock returns the clock stamping journal entries and snapshot rows.
func (rt *Runtime) Clock() *idgen.Clock { return rt.clock }

// LoadTypes compiles the CUE files and directories in paths, validates them
// against the registered types and registers them.
func (rt *Runtime) LoadTypes(paths ...string) error {
	res, errs := compiler.LoadPaths(paths, compiler.LoadModeCollectAll)
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return rt.applyTypes(res)
}

// LoadTypesSource is LoadTypes for one in-memory CUE source.
func (rt *Runtime) LoadTypesSource(filename, src string) error {
	res, errs := compiler.CompileSource(filename, src, compiler.LoadModeCollectAll)
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return rt.applyTypes(res)
}

func (rt *Runtime) applyTypes(res *compiler.Result) error {
	if verrs := compiler.Validate(res, rt.types); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, v := range verrs {
			errs[i] = v
		}
		return errors.Join(errs...)
	}
	if err := res.Apply(rt.types); err != nil {
		return err
	}
	rt.logger.Debug("types loaded",
		"components", len(res.Components),
		"entity_types", len(res.EntityTypes),
		"relation_types", len(res.RelationTypes),
		"flow_types", len(res.FlowTypes))
	return nil
}

// CreateEntity creates an entity of type ty. The entity is kept when its
// behaviours fail to connect; the connect failures are returned with it.
func (rt *Runtime) CreateEntity(ctx context.Context, ty typeid.EntityTypeID, props value.Object) (*reactive.Entity, error) {
	e, err := rt.entities.Create(ctx, ty, props)
	if err != nil {
		return nil, err
	}
	return e, rt.connectEntity(ctx, e)
}

// CreateEntityWithID is CreateEntity with a caller-chosen id.
func (rt *Runtime) CreateEntityWithID(ctx context.Context, id uuid.UUID, ty typeid.EntityTypeID, props value.Object) (*reactive.Entity, error) {
	e, err := rt.entities.CreateWithID(ctx, id, ty, props)
	if err != nil {
		return nil, err
	}
	return e, rt.connectEntity(ctx, e)
}

// CreateRelation creates a relation of type ty from outbound to inbound.
// Like CreateEntity it keeps a relation whose behaviours fail to connect.
func (rt *Runtime) CreateRelation(ctx context.Context, outbound uuid.UUID, ty typeid.RelationInstanceTypeID, inbound uuid.UUID, props value.Object) (*reactive.Relation, error) {
	r, err := rt.relations.Create(ctx, outbound, ty, inbound, props)
	if err != nil {
		return nil, err
	}
	return r, rt.connectRelation(ctx, r)
}

// ConnectProperties creates a connector of type ty copying outProp of
// outbound into inProp of inbound.
func (rt *Runtime) ConnectProperties(ctx context.Context, ty typeid.RelationTypeID, outbound uuid.UUID, outProp string, inbound uuid.UUID, inProp string) (*reactive.Relation, error) {
	return rt.CreateRelation(ctx, outbound, connector.InstanceTypeID(ty, outProp, inProp), inbound, connector.Properties(outProp, inProp))
}

// FlowBuilder assembles the members of a flow before it is created.
type FlowBuilder struct {
	rt        *Runtime
	ty        typeid.FlowTypeID
	wrapper   *reactive.Entity
	entities  []*reactive.Entity
	relations []*reactive.Relation
	errs      []error
}

// NewFlow starts a flow of type ty around a wrapper entity built from the
// flow type's wrapper type and props.
func (rt *Runtime) NewFlow(ty typeid.FlowTypeID, props value.Object) *FlowBuilder {
	b := &FlowBuilder{rt: rt, ty: ty}
	ft, ok := rt.types.FlowType(ty)
	if !ok {
		b.errs = append(b.errs, fmt.Errorf("flow type %s: %w", ty, types.ErrTypeNotFound))
		return b
	}
	w, err := rt.entities.Build(ft.Wrapper, props)
	b.wrapper = w
	b.errs = append(b.errs, err)
	return b
}

// Wrapper returns the flow's wrapper entity, or nil when it could not be
// built.
func (b *FlowBuilder) Wrapper() *reactive.Entity { return b.wrapper }

// Entity adds a member entity of type ty and returns it.
func (b *FlowBuilder) Entity(ty typeid.EntityTypeID, props value.Object) *reactive.Entity {
	e, err := b.rt.entities.Build(ty, props)
	if err != nil {
		b.errs = append(b.errs, err)
		return nil
	}
	b.entities = append(b.entities, e)
	return e
}

// Connect adds a connector of type ty between two members.
func (b *FlowBuilder) Connect(ty typeid.RelationTypeID, out *reactive.Entity, outProp string, in *reactive.Entity, inProp string) *reactive.Relation {
	if out == nil || in == nil {
		b.errs = append(b.errs, fmt.Errorf("connect %s--%s: %w", outProp, inProp, instance.ErrEndpointNotFound))
		return nil
	}
	r, err := b.rt.relations.Build(out, connector.InstanceTypeID(ty, outProp, inProp), in, connector.Properties(outProp, inProp))
	if err != nil {
		b.errs = append(b.errs, err)
		return nil
	}
	b.relations = append(b.relations, r)
	return r
}

// Create registers the flow and, with auto-connect, connects the
// behaviours of all its members. Build errors are returned joined.
func (b *FlowBuilder) Create(ctx context.Context) (*reactive.Flow, error) {
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	return b.rt.CreateFlow(ctx, b.ty, b.wrapper, b.entities, b.relations)
}

// CreateFlow registers a flow from built instances. See FlowBuilder.
func (rt *Runtime) CreateFlow(ctx context.Context, ty typeid.FlowTypeID, wrapper *reactive.Entity, entities []*reactive.Entity, relations []*reactive.Relation) (*reactive.Flow, error) {
	f, err := rt.flows.Create(ctx, ty, wrapper, entities, relations)
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, e := range f.Entities() {
		errs = append(errs, rt.connectEntity(ctx, e))
	}
	for _, r := range f.Relations() {
		errs = append(errs, rt.connectRelation(ctx, r))
	}
	return f, errors.Join(errs...)
}

func (rt *Runtime) connectEntity(ctx context.Context, e *reactive.Entity) error {
	if !rt.autoConnect {
		return nil
	}
	if errs := rt.entities.Behaviours().ConnectAll(ctx, e); len(errs) > 0 {
		return fmt.Errorf("connect entity %s: %w", e.ID(), errors.Join(errs...))
	}
	return nil
}

func (rt *Runtime) connectRelation(ctx context.Context, r *reactive.Relation) error {
	if !rt.autoConnect {
		return nil
	}
	if errs := rt.relations.Behaviours().ConnectAll(ctx, r); len(errs) > 0 {
		return fmt.Errorf("connect relation %s: %w", r.ID(), errors.Join(errs...))
	}
	return nil
}

// Entity returns the entity with id.
func (rt *Runtime) Entity(id uuid.UUID) (*reactive.Entity, bool) {
	return rt.entities.Get(id)
}

// Get returns the value of an entity property.
func (rt *Runtime) Get(id uuid.UUID, name string) (value.Value, error) {
	e, ok := rt.entities.Get(id)
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", id, instance.ErrNotFound)
	}
	v, ok := e.Get(name)
	if !ok {
		return nil, fmt.Errorf("entity %s property %q: %w", id, name, ErrPropertyNotFound)
	}
	return v, nil
}

// Set writes an entity property and propagates it synchronously.
func (rt *Runtime) Set(ctx context.Context, id uuid.UUID, name string, v value.Value) error {
	e, ok := rt.entities.Get(id)
	if !ok {
		return fmt.Errorf("entity %s: %w", id, instance.ErrNotFound)
	}
	if !e.HasProperty(name) {
		return fmt.Errorf("entity %s property %q: %w", id, name, ErrPropertyNotFound)
	}
	e.Set(name, v)
	rt.metrics.RecordPropertyWrite(ctx, "set")
	return nil
}

// SetAll seeds several entity properties and then ticks them in key order.
func (rt *Runtime) SetAll(ctx context.Context, id uuid.UUID, values value.Object) error {
	e, ok := rt.entities.Get(id)
	if !ok {
		return fmt.Errorf("entity %s: %w", id, instance.ErrNotFound)
	}
	for _, name := range values.SortedKeys() {
		if !e.HasProperty(name) {
			return fmt.Errorf("entity %s property %q: %w", id, name, ErrPropertyNotFound)
		}
	}
	e.SetAll(values)
	for range values {
		rt.metrics.RecordPropertyWrite(ctx, "set")
	}
	return nil
}

// Tick re-emits the current value of an entity property.
func (rt *Runtime) Tick(ctx context.Context, id uuid.UUID, name string) error {
	e, ok := rt.entities.Get(id)
	if !ok {
		return fmt.Errorf("entity %s: %w", id, instance.ErrNotFound)
	}
	if !e.HasProperty(name) {
		return fmt.Errorf("entity %s property %q: %w", id, name, ErrPropertyNotFound)
	}
	e.Tick(name)
	rt.metrics.RecordPropertyWrite(ctx, "tick")
	return nil
}

// DeleteEntity deletes an entity that no relation references.
func (rt *Runtime) DeleteEntity(ctx context.Context, id uuid.UUID) error {
	return rt.entities.Delete(ctx, id)
}

// DeleteRelation deletes a relation.
func (rt *Runtime) DeleteRelation(ctx context.Context, id reactive.RelationInstanceID) error {
	return rt.relations.Delete(ctx, id)
}

// DeleteFlow deletes a flow with all its members.
func (rt *Runtime) DeleteFlow(ctx context.Context, id uuid.UUID) error {
	return rt.flows.Delete(ctx, id)
}

// ConnectAll connects every behaviour not connected yet, entities before
// relations. Instances are processed concurrently; all failures are
// returned joined.
func (rt *Runtime) ConnectAll(ctx context.Context) error {
	entityErr := forEach(ctx, rt.parallelism, rt.entities.All(), rt.entities.Behaviours().ConnectAll)
	relationErr := forEach(ctx, rt.parallelism, rt.relations.All(), rt.relations.Behaviours().ConnectAll)
	return errors.Join(entityErr, relationErr)
}

// DisconnectAll disconnects every connected behaviour, relations before
// entities.
func (rt *Runtime) DisconnectAll(ctx context.Context) error {
	relationErr := forEach(ctx, rt.parallelism, rt.relations.All(), rt.relations.Behaviours().DisconnectAll)
	entityErr := forEach(ctx, rt.parallelism, rt.entities.All(), rt.entities.Behaviours().DisconnectAll)
	return errors.Join(relationErr, entityErr)
}

// forEach runs fn over items with at most limit calls in flight.
func forEach[T any](ctx context.Context, limit int, items []T, fn func(context.Context, T) []error) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if e := fn(ctx, item); len(e) > 0 {
				mu.Lock()
				errs = append(errs, e...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Snapshot writes every live entity, relation and flow to the store in one
// transaction. Rows are stamped with seqs from the runtime clock in that
// order.
func (rt *Runtime) Snapshot(ctx context.Context) (err error) {
	if rt.store == nil {
		return ErrNoStore
	}
	ctx, span := telemetry.StartSpan(ctx, "runtime.snapshot")
	defer func() { telemetry.EndSpan(span, err) }()

	var recs []store.Record
	for _, e := range rt.entities.All() {
		rec, err := store.EntityRecord(e, rt.clock.Next())
		if err != nil {
			return fmt.Errorf("snapshot entity %s: %w", e.ID(), err)
		}
		recs = append(recs, rec)
	}
	for _, r := range rt.relations.All() {
		rec, err := store.RelationRecord(r, rt.clock.Next())
		if err != nil {
			return fmt.Errorf("snapshot relation %s: %w", r.ID(), err)
		}
		recs = append(recs, rec)
	}
	for _, f := range rt.flows.All() {
		rec, err := store.FlowRecord(f, rt.clock.Next())
		if err != nil {
			return fmt.Errorf("snapshot flow %s: %w", f.ID(), err)
		}
		recs = append(recs, rec)
	}
	if err := rt.store.WriteSnapshot(ctx, recs); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	telemetry.LoggerFrom(ctx, rt.logger).Info("snapshot written", "records", len(recs), "seq", rt.clock.Current())
	return nil
}
