package instance

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/roach88/rgraph/internal/behaviour"
	"github.com/roach88/rgraph/internal/connector"
	"github.com/roach88/rgraph/internal/gate"
	"github.com/roach88/rgraph/internal/reactive"
	"github.com/roach88/rgraph/internal/telemetry"
	"github.com/roach88/rgraph/internal/testutil"
	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/types"
	"github.com/roach88/rgraph/internal/value"
)

var (
	discard  = slog.New(slog.DiscardHandler)
	andType  = typeid.NewEntityTypeID("logical", "and")
	and3Flow = typeid.NewFlowTypeID("logical", "and3")
)

type managers struct {
	entities  *EntityManager
	relations *RelationManager
	flows     *FlowManager
	reader    *sdkmetric.ManualReader
}

func newManagers(t *testing.T) *managers {
	t.Helper()
	reg := types.NewRegistry()
	require.NoError(t, reg.AddComponent(types.Component{Type: gate.And.Component(), Properties: gate.And.Properties()}))
	require.NoError(t, reg.AddComponent(types.Component{
		Type: connector.Component,
		Properties: []typeid.PropertyType{
			typeid.NewPropertyType(connector.PropertyOutbound, typeid.DataTypeString),
			typeid.NewPropertyType(connector.PropertyInbound, typeid.DataTypeString),
		},
	}))
	require.NoError(t, reg.AddEntityType(types.EntityType{Type: andType, Components: []typeid.ComponentTypeID{gate.And.Component()}}))
	require.NoError(t, reg.AddRelationType(types.RelationType{
		Type:       connector.RelationType,
		Outbound:   types.Wildcard,
		Inbound:    types.Wildcard,
		Components: []typeid.ComponentTypeID{connector.Component},
	}))
	require.NoError(t, reg.AddFlowType(types.FlowType{Type: and3Flow, Wrapper: andType}))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := telemetry.NewMetrics(mp)
	require.NoError(t, err)

	opts := []Option{WithLogger(discard), WithMetrics(metrics), WithIDGenerator(testutil.NewSequentialIDs())}

	er := behaviour.NewRegistry[uuid.UUID, *reactive.Entity]()
	gate.RegisterAll(er, discard)
	entities := NewEntityManager(reg, behaviour.NewEntityManager(er, behaviour.WithLogger(discard)), opts...)

	rr := behaviour.NewRegistry[reactive.RelationInstanceID, *reactive.Relation]()
	connector.Register(rr, entities, discard)
	relations := NewRelationManager(reg, entities, behaviour.NewRelationManager(rr, behaviour.WithLogger(discard)), opts...)

	return &managers{
		entities:  entities,
		relations: relations,
		flows:     NewFlowManager(reg, entities, relations, opts...),
		reader:    reader,
	}
}

func (m *managers) instances(t *testing.T) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, m.reader.Collect(context.Background(), &rm))
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != telemetry.MetricInstances {
				continue
			}
			for _, dp := range met.Data.(metricdata.Sum[int64]).DataPoints {
				kind, _ := dp.Attributes.Value("kind")
				out[kind.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestEntityManager_Create(t *testing.T) {
	ctx := context.Background()
	m := newManagers(t)

	e, err := m.entities.Create(ctx, andType, value.Object{"lhs": value.Bool(true), "label": value.String("x")})
	require.NoError(t, err)

	assert.Equal(t, testutil.SequentialID(1), e.ID())
	lhs, _ := e.Get("lhs")
	assert.Equal(t, value.Bool(true), lhs)
	rhs, _ := e.Get("rhs")
	assert.Equal(t, value.Bool(false), rhs)
	label, _ := e.Get("label")
	assert.Equal(t, value.String("x"), label)

	assert.True(t, e.IsA(gate.And.Component()))
	assert.True(t, m.entities.Behaviours().Has(e, gate.And.Behaviour()))
	assert.Equal(t, 1, m.entities.Count())
	assert.Equal(t, []*reactive.Entity{e}, m.entities.ByType(andType))
	assert.Equal(t, int64(1), m.instances(t)["entity"])
}

func TestEntityManager_Errors(t *testing.T) {
	ctx := context.Background()
	m := newManagers(t)

	_, err := m.entities.Create(ctx, typeid.NewEntityTypeID("x", "y"), nil)
	assert.ErrorIs(t, err, types.ErrTypeNotFound)

	e, err := m.entities.Create(ctx, andType, nil)
	require.NoError(t, err)
	err = m.entities.Register(ctx, e)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	var ierr *Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "register entity", ierr.Op)

	assert.ErrorIs(t, m.entities.Delete(ctx, uuid.New()), ErrNotFound)
}

func TestEntityManager_DeleteRemovesBehavioursFirst(t *testing.T) {
	ctx := context.Background()
	m := newManagers(t)
	e, err := m.entities.Create(ctx, andType, nil)
	require.NoError(t, err)
	require.NoError(t, m.entities.Behaviours().Connect(ctx, e, gate.And.Behaviour()))

	require.NoError(t, m.entities.Delete(ctx, e.ID()))
	assert.False(t, m.entities.Has(e.ID()))
	assert.Equal(t, 0, m.entities.Behaviours().Count())
	assert.Empty(t, e.Behaviours())

	p, _ := e.Properties().Get("lhs")
	assert.Equal(t, 0, p.SubscriberCount())
	assert.Equal(t, int64(0), m.instances(t)["entity"])
}

func TestEntityManager_Components(t *testing.T) {
	ctx := context.Background()
	m := newManagers(t)
	e, err := m.entities.Create(ctx, andType, nil)
	require.NoError(t, err)

	require.NoError(t, m.entities.RemoveComponent(ctx, e.ID(), gate.And.Component()))
	assert.False(t, e.IsA(gate.And.Component()))
	assert.False(t, m.entities.Behaviours().Has(e, gate.And.Behaviour()))

	require.NoError(t, m.entities.AddComponent(ctx, e.ID(), gate.And.Component()))
	assert.True(t, m.entities.Behaviours().Has(e, gate.And.Behaviour()))

	err = m.entities.AddComponent(ctx, e.ID(), typeid.NewComponentTypeID("x", "y"))
	assert.ErrorIs(t, err, types.ErrTypeNotFound)
}

func TestRelationManager_EndpointsMustExist(t *testing.T) {
	ctx := context.Background()
	m := newManagers(t)
	e, err := m.entities.Create(ctx, andType, nil)
	require.NoError(t, err)

	_, err = m.relations.Create(ctx, e.ID(), connector.InstanceTypeID(connector.RelationType, "result", "lhs"), uuid.New(), nil)
	assert.ErrorIs(t, err, ErrEndpointNotFound)

	orphan := connector.NewRelation(connector.RelationType, uuid.New(), "result", e.ID(), "lhs")
	assert.ErrorIs(t, m.relations.Register(ctx, orphan), ErrEndpointNotFound)
	assert.Equal(t, 0, m.relations.Count())
}

func TestRelationManager_CreateConnects(t *testing.T) {
	ctx := context.Background()
	m := newManagers(t)
	a, err := m.entities.Create(ctx, andType, nil)
	require.NoError(t, err)
	b, err := m.entities.Create(ctx, andType, nil)
	require.NoError(t, err)

	r, err := m.relations.Create(ctx, a.ID(), connector.InstanceTypeID(connector.RelationType, "result", "lhs"), b.ID(),
		connector.Properties("result", "lhs"))
	require.NoError(t, err)
	require.NoError(t, m.relations.Behaviours().Connect(ctx, r, connector.Behaviour))

	a.Set("result", value.Bool(true))
	got, _ := b.Get("lhs")
	assert.Equal(t, value.Bool(true), got)

	assert.True(t, m.relations.References(a.ID()))
	assert.Len(t, m.relations.Of(b.ID()), 1)
	assert.ErrorIs(t, m.entities.Delete(ctx, a.ID()), ErrInUse)

	require.NoError(t, m.relations.Delete(ctx, r.ID()))
	a.Set("result", value.Bool(false))
	got, _ = b.Get("lhs")
	assert.Equal(t, value.Bool(true), got, "deleted relation no longer propagates")
	require.NoError(t, m.entities.Delete(ctx, a.ID()))
}

func TestFlowManager_CreateAndDelete(t *testing.T) {
	ctx := context.Background()
	m := newManagers(t)
	ids := testutil.NewSequentialIDs()

	newAnd := func() *reactive.Entity {
		e := reactive.NewEntityFromTypes(ids.New(), andType, gate.And.Properties())
		e.AddComponent(gate.And.Component())
		return e
	}
	wrapper, and1, and2 := newAnd(), newAnd(), newAnd()
	r1 := connector.NewRelation(connector.RelationType, and1.ID(), "result", wrapper.ID(), "lhs")
	r2 := connector.NewRelation(connector.RelationType, and2.ID(), "result", wrapper.ID(), "rhs")

	f, err := m.flows.Create(ctx, and3Flow, wrapper, []*reactive.Entity{and1, and2}, []*reactive.Relation{r1, r2})
	require.NoError(t, err)
	assert.Equal(t, wrapper.ID(), f.ID())
	assert.Len(t, f.Entities(), 3)
	assert.Equal(t, 3, m.entities.Count())
	assert.Equal(t, 2, m.relations.Count())

	got, ok := m.flows.Get(wrapper.ID())
	require.True(t, ok)
	assert.Same(t, f, got)

	require.NoError(t, m.flows.Delete(ctx, f.ID()))
	assert.Equal(t, 0, m.entities.Count())
	assert.Equal(t, 0, m.relations.Count())
	assert.Equal(t, 0, m.flows.Count())
	assert.ErrorIs(t, m.flows.Delete(ctx, f.ID()), ErrNotFound)
}

func TestFlowManager_CreateRollsBack(t *testing.T) {
	ctx := context.Background()
	m := newManagers(t)

	wrapper := reactive.NewEntityFromTypes(uuid.New(), andType, gate.And.Properties())
	member := reactive.NewEntityFromTypes(uuid.New(), andType, gate.And.Properties())
	dangling := connector.NewRelation(connector.RelationType, member.ID(), "result", uuid.New(), "lhs")

	_, err := m.flows.Create(ctx, and3Flow, wrapper, []*reactive.Entity{member}, []*reactive.Relation{dangling})
	assert.ErrorIs(t, err, ErrEndpointNotFound)
	assert.Equal(t, 0, m.entities.Count())
	assert.Equal(t, 0, m.flows.Count())

	_, err = m.flows.Create(ctx, typeid.NewFlowTypeID("x", "y"), wrapper, nil, nil)
	assert.ErrorIs(t, err, types.ErrTypeNotFound)
}

func TestManagers_BuildDoesNotRegister(t *testing.T) {
	m := newManagers(t)

	a, err := m.entities.Build(andType, value.Object{"lhs": value.Bool(true)})
	require.NoError(t, err)
	b, err := m.entities.Build(andType, nil)
	require.NoError(t, err)
	lhs, _ := a.Get("lhs")
	assert.Equal(t, value.Bool(true), lhs)
	assert.Equal(t, 0, m.entities.Count())

	r, err := m.relations.Build(a, connector.InstanceTypeID(connector.RelationType, "result", "lhs"), b,
		connector.Properties("result", "lhs"))
	require.NoError(t, err)
	assert.True(t, r.IsA(connector.Component))
	assert.Equal(t, 0, m.relations.Count())

	_, err = m.entities.Build(typeid.NewEntityTypeID("x", "y"), nil)
	assert.ErrorIs(t, err, types.ErrTypeNotFound)
}
