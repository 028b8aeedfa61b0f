package reactive

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/value"
)

var (
	andType       = typeid.NewEntityTypeID("logical", "and")
	andComponent  = typeid.NewComponentTypeID("logical", "gate")
	andBehaviour  = typeid.NewBehaviourTypeID("logical", "and")
	connectorType = typeid.NewRelationTypeID("core", "connector")
)

func newGate(t *testing.T) *Entity {
	t.Helper()
	return NewEntity(uuid.New(), andType, value.Object{
		"lhs":    value.Bool(false),
		"rhs":    value.Bool(false),
		"result": value.Bool(false),
	})
}

func TestEntity_GetSet(t *testing.T) {
	e := newGate(t)

	var got value.Value
	p, ok := e.Properties().Get("result")
	require.True(t, ok)
	p.Observe(func(v value.Value) { got = v })

	e.Set("result", value.Bool(true))
	v, ok := e.Get("result")
	require.True(t, ok)
	assert.Equal(t, value.Bool(true), v)
	assert.Equal(t, value.Bool(true), got)

	e.Set("missing", value.Int(1))
	_, ok = e.Get("missing")
	assert.False(t, ok, "setting an unknown property does not create it")

	assert.Equal(t, e.ID().String(), p.OwnerID())
	assert.Equal(t, andType, e.Type())
}

func TestEntity_FromTypes(t *testing.T) {
	e := NewEntityFromTypes(uuid.New(), andType, []typeid.PropertyType{
		typeid.NewPropertyType("lhs", typeid.DataTypeBool),
		typeid.NewPropertyType("count", typeid.DataTypeNumber).WithDefault(value.Int(3)),
	})

	b, ok := e.AsBool("lhs")
	assert.True(t, ok)
	assert.False(t, b)

	n, ok := e.AsI64("count")
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)

	_, ok = e.AsString("lhs")
	assert.False(t, ok)
}

func TestEntity_Components(t *testing.T) {
	e := newGate(t)
	other := typeid.NewComponentTypeID("core", "labeled")

	e.AddComponent(andComponent)
	assert.True(t, e.IsA(andComponent))
	assert.False(t, e.IsA(other))

	e.AddComponentWithProperties(other, []typeid.PropertyType{
		typeid.NewPropertyType("label", typeid.DataTypeString),
		typeid.NewPropertyType("lhs", typeid.DataTypeString),
	})
	assert.Equal(t, []typeid.ComponentTypeID{other, andComponent}, e.Components())
	assert.True(t, e.IsAll(andComponent, other))
	assert.True(t, e.HasProperty("label"))

	lhs, _ := e.Get("lhs")
	assert.Equal(t, value.Bool(false), lhs, "existing properties are kept")

	e.RemoveComponent(andComponent)
	assert.False(t, e.IsA(andComponent))
}

func TestEntity_BehaviourBookkeeping(t *testing.T) {
	e := newGate(t)

	assert.False(t, e.BehavesAs(andBehaviour))
	e.AddBehaviour(andBehaviour)
	assert.True(t, e.BehavesAs(andBehaviour))
	assert.Equal(t, []typeid.BehaviourTypeID{andBehaviour}, e.Behaviours())

	e.RemoveBehaviour(andBehaviour)
	e.RemoveBehaviour(andBehaviour)
	assert.Empty(t, e.Behaviours())
}

func TestEntity_SetAll(t *testing.T) {
	e := newGate(t)

	// Record what each subscriber sees of the whole instance when notified.
	var seen []value.Object
	for _, name := range []string{"lhs", "rhs"} {
		p, _ := e.Properties().Get(name)
		p.Observe(func(value.Value) { seen = append(seen, e.Properties().Snapshot()) })
	}

	e.SetAll(value.Object{"lhs": value.Bool(true), "rhs": value.Bool(true), "unknown": value.Int(1)})

	require.Len(t, seen, 2)
	for _, snap := range seen {
		assert.Equal(t, value.Bool(true), snap["lhs"])
		assert.Equal(t, value.Bool(true), snap["rhs"])
	}
	assert.False(t, e.HasProperty("unknown"))
}

func TestEntity_AddRemoveProperty(t *testing.T) {
	e := newGate(t)

	e.AddProperty("extra", typeid.Immutable, value.String("x"))
	e.AddProperty("extra", typeid.Mutable, value.String("y"))
	v, _ := e.Get("extra")
	assert.Equal(t, value.String("x"), v)

	e.SetChecked("extra", value.String("z"))
	v, _ = e.Get("extra")
	assert.Equal(t, value.String("x"), v, "immutable property ignores checked writes")

	e.RemoveProperty("extra")
	assert.False(t, e.HasProperty("extra"))
}

func TestRelationInstanceID_String(t *testing.T) {
	out := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	in := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	id := NewRelationInstanceID(out, typeid.NewRelationInstanceTypeID(connectorType, "x"), in)
	assert.Equal(t,
		"00000000-0000-0000-0000-000000000001-[core::connector__x]->00000000-0000-0000-0000-000000000002",
		id.String())

	parsed, err := ParseRelationInstanceID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	for _, bad := range []string{"", "abc", "not-a-uuid-[core::connector]->x", out.String() + "-[Bad]->" + in.String()} {
		_, err := ParseRelationInstanceID(bad)
		assert.Error(t, err, bad)
	}
}

func TestRelation_StoresEndpointIDsOnly(t *testing.T) {
	a, b := newGate(t), newGate(t)

	r := NewRelation(a.ID(), typeid.Singleton(connectorType), b.ID(), value.Object{
		"outbound_property_name": value.String("result"),
		"inbound_property_name":  value.String("lhs"),
	})

	assert.Equal(t, a.ID(), r.OutboundID())
	assert.Equal(t, b.ID(), r.InboundID())
	assert.Equal(t, connectorType, r.RelationType())
	name, ok := r.AsString("outbound_property_name")
	assert.True(t, ok)
	assert.Equal(t, "result", name)

	p, _ := r.Properties().Get("inbound_property_name")
	assert.Equal(t, r.ID().String(), p.OwnerID())
}

func TestFlow_WrapperIdentity(t *testing.T) {
	wrapper := NewEntity(uuid.New(), typeid.NewEntityTypeID("flows", "and3"), value.Object{
		"lhs":    value.Bool(false),
		"result": value.Bool(false),
	})
	f := NewFlow(typeid.NewFlowTypeID("flows", "and3"), wrapper)

	assert.Equal(t, wrapper.ID(), f.ID())
	assert.Same(t, wrapper, f.Wrapper())
	assert.True(t, f.HasEntity(wrapper.ID()))

	f.Set("lhs", value.Bool(true))
	v, _ := wrapper.Get("lhs")
	assert.Equal(t, value.Bool(true), v, "flow properties are the wrapper's")

	assert.False(t, f.RemoveEntity(wrapper.ID()), "wrapper cannot be removed")
}

func TestFlow_Members(t *testing.T) {
	wrapper := newGate(t)
	f := NewFlow(typeid.NewFlowTypeID("flows", "and"), wrapper)

	g := newGate(t)
	f.AddEntity(g)
	assert.Len(t, f.Entities(), 2)

	got, ok := f.GetEntity(g.ID())
	require.True(t, ok)
	assert.Same(t, g, got)

	r := NewRelation(wrapper.ID(), typeid.Singleton(connectorType), g.ID(), value.Object{})
	f.AddRelation(r)
	assert.True(t, f.HasRelation(r.ID()))
	assert.Len(t, f.Relations(), 1)

	rr, ok := f.GetRelation(r.ID())
	require.True(t, ok)
	assert.Same(t, r, rr)

	assert.True(t, f.RemoveRelation(r.ID()))
	assert.False(t, f.RemoveRelation(r.ID()))
	assert.True(t, f.RemoveEntity(g.ID()))
	assert.False(t, f.HasEntity(g.ID()))
}
