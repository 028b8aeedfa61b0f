package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/rgraph/internal/behaviour"
	"github.com/roach88/rgraph/internal/compiler"
	"github.com/roach88/rgraph/internal/connector"
	"github.com/roach88/rgraph/internal/gate"
	"github.com/roach88/rgraph/internal/property"
	"github.com/roach88/rgraph/internal/reactive"
	"github.com/roach88/rgraph/internal/runtime"
	"github.com/roach88/rgraph/internal/store"
	"github.com/roach88/rgraph/internal/testutil"
	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/value"
)

// Option configures Run.
type Option func(*options)

type options struct {
	logger *slog.Logger
	store  *store.Store
}

// WithLogger sets the logger of the scenario's runtime. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStore journals and snapshots into s instead of a fresh in-memory
// database. The caller owns s.
func WithStore(s *store.Store) Option {
	return func(o *options) { o.store = s }
}

// Harness is the scenario execution engine.
// It runs scenarios with a deterministic clock and entity ids.
type Harness struct {
	rt     *runtime.Runtime
	clock  *testutil.DeterministicClock
	logger *slog.Logger

	mu     sync.Mutex
	result *Result

	entities map[string]*reactive.Entity
	order    []string
	graph    compiler.PropertyGraph
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Create a runtime with auto-connect off and a store (in-memory unless
//     WithStore)
//  2. Load the scenario's types
//  3. Create entities, flows and relations, tracing every entity property
//  4. Check the property graph for propagation cycles; a cyclic scenario
//     returns its warnings without running
//  5. Connect every behaviour and execute the steps
//  6. Snapshot into the store and evaluate assertions
//
// Errors in the scenario's graph abort the run; failing steps and
// assertions are recorded in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	ctx := context.Background()

	st := o.store
	if st == nil {
		var err error
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}

	rt, err := runtime.New(ctx,
		runtime.WithLogger(o.logger),
		runtime.WithStore(st),
		runtime.WithIDGenerator(testutil.NewSequentialIDs()),
		runtime.WithAutoConnect(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}

	h := &Harness{
		rt:       rt,
		clock:    testutil.NewDeterministicClock(),
		logger:   o.logger,
		result:   NewResult(),
		entities: make(map[string]*reactive.Entity),
		graph:    compiler.PropertyGraph{},
	}

	if err := h.loadTypes(scenario); err != nil {
		return nil, fmt.Errorf("failed to load types: %w", err)
	}
	if err := h.build(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}

	for _, w := range compiler.AnalyzeCycles(h.graph) {
		h.result.AddWarning(w.Message)
	}
	if len(h.result.Warnings) > 0 {
		return h.result, nil
	}

	if err := rt.ConnectAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect behaviours: %w", err)
	}
	h.executeSteps(ctx, scenario.Steps)

	for _, name := range h.order {
		h.result.State[name] = h.entities[name].Properties().Snapshot()
	}
	if err := rt.Snapshot(ctx); err != nil {
		return nil, fmt.Errorf("failed to snapshot: %w", err)
	}

	ids := make(map[string]uuid.UUID, len(h.entities))
	for name, e := range h.entities {
		ids[name] = e.ID()
	}
	actx := &AssertionContext{Ctx: ctx, Store: st, Entities: ids}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) loadTypes(s *Scenario) error {
	if len(s.Types) > 0 {
		if err := h.rt.LoadTypes(s.Types...); err != nil {
			return err
		}
	}
	if s.TypesSource != "" {
		return h.rt.LoadTypesSource(s.Name+".cue", s.TypesSource)
	}
	return nil
}

// build creates the scenario's instances. Entities are traced before any
// relation exists so the trace lists each emission before its effects.
func (h *Harness) build(ctx context.Context, s *Scenario) error {
	for _, spec := range s.Entities {
		ty, props, err := entityArgs(spec.Type, spec.Properties)
		if err != nil {
			return fmt.Errorf("entity %s: %w", spec.Name, err)
		}
		e, err := h.rt.CreateEntity(ctx, ty, props)
		if err != nil {
			return fmt.Errorf("entity %s: %w", spec.Name, err)
		}
		h.register(spec.Name, e)
	}

	for _, spec := range s.Flows {
		if err := h.buildFlow(ctx, spec); err != nil {
			return fmt.Errorf("flow %s: %w", spec.Name, err)
		}
	}

	for _, spec := range s.Relations {
		ty, out, outProp, in, inProp, err := h.relationArgs(spec, h.entities)
		if err != nil {
			return err
		}
		if _, err := h.rt.ConnectProperties(ctx, ty, out.ID(), outProp, in.ID(), inProp); err != nil {
			return fmt.Errorf("relation %s -> %s: %w", spec.From, spec.To, err)
		}
	}
	return nil
}

func (h *Harness) buildFlow(ctx context.Context, spec FlowSpec) error {
	ty, err := typeid.ParseFlowTypeID(spec.Type)
	if err != nil {
		return err
	}
	props, err := objectOf(spec.Properties)
	if err != nil {
		return err
	}

	b := h.rt.NewFlow(ty, props)
	local := make(map[string]*reactive.Entity)
	if w := b.Wrapper(); w != nil {
		h.register(spec.Name, w)
		local[spec.Name] = w
	}
	for _, m := range spec.Entities {
		ety, mprops, err := entityArgs(m.Type, m.Properties)
		if err != nil {
			return fmt.Errorf("entity %s: %w", m.Name, err)
		}
		if e := b.Entity(ety, mprops); e != nil {
			h.register(m.Name, e)
			local[m.Name] = e
		}
	}
	for _, r := range spec.Relations {
		rty, out, outProp, in, inProp, err := h.relationArgs(r, local)
		if err != nil {
			return err
		}
		b.Connect(rty, out, outProp, in, inProp)
	}
	_, err = b.Create(ctx)
	return err
}

// register names e, traces its properties and adds its gate edges to the
// property graph.
func (h *Harness) register(name string, e *reactive.Entity) {
	h.entities[name] = e
	h.order = append(h.order, name)

	e.Properties().Range(func(p *property.Instance) bool {
		ref := compiler.PropertyNode(name, p.Name())
		p.Observe(func(v value.Value) {
			h.record(TraceEvent{Type: EventEmit, Target: ref, Value: value.Clone(v)})
		})
		return true
	})

	for _, c := range e.Components() {
		d, ok := gate.Lookup(c)
		if !ok {
			continue
		}
		for _, in := range d.Inputs {
			h.graph.AddEdge(compiler.PropertyNode(name, in), compiler.PropertyNode(name, gate.PropertyResult))
		}
	}
}

func (h *Harness) relationArgs(spec RelationSpec, scope map[string]*reactive.Entity) (ty typeid.RelationTypeID, out *reactive.Entity, outProp string, in *reactive.Entity, inProp string, err error) {
	ty = connector.RelationType
	if spec.Type != "" {
		if ty, err = typeid.ParseRelationTypeID(spec.Type); err != nil {
			return
		}
	}
	outName, outProp, err := splitRef(spec.From)
	if err != nil {
		return
	}
	inName, inProp, err := splitRef(spec.To)
	if err != nil {
		return
	}
	var ok bool
	if out, ok = scope[outName]; !ok {
		err = fmt.Errorf("relation %s -> %s: unknown entity %q", spec.From, spec.To, outName)
		return
	}
	if in, ok = scope[inName]; !ok {
		err = fmt.Errorf("relation %s -> %s: unknown entity %q", spec.From, spec.To, inName)
		return
	}
	h.graph.AddEdge(spec.From, spec.To)
	return
}

func (h *Harness) record(ev TraceEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ev.Seq = h.clock.Next()
	h.result.Trace = append(h.result.Trace, ev)
}

// executeSteps runs every step. A failing step is traced and recorded as
// an error; later steps still run.
func (h *Harness) executeSteps(ctx context.Context, steps []Step) {
	for i, step := range steps {
		action, target, _ := step.Action()
		if err := h.executeStep(ctx, step, action, target); err != nil {
			h.record(TraceEvent{Type: EventError, Target: target, Detail: errorDetail(err)})
			h.result.AddError(fmt.Sprintf("steps[%d] %s %s: %v", i, action, target, err))
		}
	}
}

func (h *Harness) executeStep(ctx context.Context, step Step, action, target string) error {
	switch action {
	case ActionSet, ActionTick, ActionExpect:
		name, prop, err := splitRef(target)
		if err != nil {
			return err
		}
		e, err := h.entity(name)
		if err != nil {
			return err
		}
		if action == ActionTick {
			h.record(TraceEvent{Type: action, Target: target})
			return h.rt.Tick(ctx, e.ID(), prop)
		}
		v, err := value.FromAny(step.Value)
		if err != nil {
			return err
		}
		h.record(TraceEvent{Type: action, Target: target, Value: v})
		if action == ActionSet {
			return h.rt.Set(ctx, e.ID(), prop, v)
		}
		got, err := h.rt.Get(e.ID(), prop)
		if err != nil {
			return err
		}
		if !value.Equal(got, v) {
			h.result.AddError(fmt.Sprintf("expect %s: want %s, got %s", target, render(v), render(got)))
		}
		return nil

	case ActionSetAll:
		e, err := h.entity(target)
		if err != nil {
			return err
		}
		values, err := objectOf(step.Values)
		if err != nil {
			return err
		}
		h.record(TraceEvent{Type: action, Target: target, Value: values})
		return h.rt.SetAll(ctx, e.ID(), values)

	case ActionConnect, ActionDisconnect, ActionReconnect:
		e, err := h.entity(target)
		if err != nil {
			return err
		}
		h.record(TraceEvent{Type: action, Target: target, Detail: step.Behaviour})
		return h.transition(ctx, action, e, step.Behaviour)
	}
	return fmt.Errorf("unknown action %q", action)
}

func (h *Harness) transition(ctx context.Context, action string, e *reactive.Entity, behaviourType string) error {
	m := h.rt.Entities().Behaviours()
	if behaviourType == "" {
		switch action {
		case ActionConnect:
			return errors.Join(m.ConnectAll(ctx, e)...)
		case ActionDisconnect:
			return errors.Join(m.DisconnectAll(ctx, e)...)
		}
	}
	ty, err := typeid.ParseBehaviourTypeID(behaviourType)
	if err != nil {
		return err
	}
	switch action {
	case ActionConnect:
		return m.Connect(ctx, e, ty)
	case ActionDisconnect:
		return m.Disconnect(ctx, e, ty)
	default:
		return m.Reconnect(ctx, e, ty)
	}
}

func (h *Harness) entity(name string) (*reactive.Entity, error) {
	e, ok := h.entities[name]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", name)
	}
	return e, nil
}

func entityArgs(typeName string, properties map[string]any) (typeid.EntityTypeID, value.Object, error) {
	ty, err := typeid.ParseEntityTypeID(typeName)
	if err != nil {
		return typeid.EntityTypeID{}, nil, err
	}
	props, err := objectOf(properties)
	return ty, props, err
}

func objectOf(m map[string]any) (value.Object, error) {
	if m == nil {
		return nil, nil
	}
	v, err := value.FromAny(m)
	if err != nil {
		return nil, err
	}
	obj, _ := value.AsObject(v)
	return obj, nil
}

// errorDetail renders err for the trace. Transition errors are reduced to
// their code so traces do not depend on instance ids.
func errorDetail(err error) string {
	var te *behaviour.TransitionError
	if errors.As(err, &te) {
		return string(te.Code)
	}
	return err.Error()
}

func render(v value.Value) string {
	data, err := value.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
