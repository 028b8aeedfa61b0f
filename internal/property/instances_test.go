package property

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/value"
)

func andGateTypes() []typeid.PropertyType {
	return []typeid.PropertyType{
		typeid.NewPropertyType("lhs", typeid.DataTypeBool),
		typeid.NewPropertyType("rhs", typeid.DataTypeBool),
		typeid.NewPropertyType("result", typeid.DataTypeBool),
		{Name: "label", DataType: typeid.DataTypeString, Mutability: typeid.Immutable, Default: value.String("and")},
	}
}

func TestInstances_NewFromPropertyTypes(t *testing.T) {
	ps := NewFromPropertyTypes("e1", andGateTypes())

	assert.Equal(t, 4, ps.Len())
	assert.Equal(t, []string{"label", "lhs", "result", "rhs"}, ps.Names())

	v, ok := ps.Value("lhs")
	require.True(t, ok)
	assert.Equal(t, value.Bool(false), v)

	label, ok := ps.Get("label")
	require.True(t, ok)
	assert.Equal(t, value.String("and"), label.Get())
	assert.Equal(t, typeid.Immutable, label.Mutability())
	assert.Equal(t, "e1", label.OwnerID())
}

func TestInstances_InsertRemove(t *testing.T) {
	ps := NewInstances("e1")

	ps.Insert(NewInstance("e1", "a", value.Int(1)))
	assert.True(t, ps.Has("a"))

	existing := ps.Add("a", value.Int(2))
	assert.Equal(t, value.Int(1), existing.Get(), "Add keeps an existing property")

	created := ps.Add("b", value.Int(3))
	assert.Equal(t, value.Int(3), created.Get())

	removed, ok := ps.Remove("a")
	require.True(t, ok)
	assert.Equal(t, "a", removed.Name())

	_, ok = ps.Remove("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, ps.Names())

	_, ok = ps.Value("missing")
	assert.False(t, ok)
}

func TestInstances_SnapshotIsDeepCopy(t *testing.T) {
	ps := NewFromValues("e1", value.Object{"list": value.Array{value.Int(1)}})

	snap := ps.Snapshot()
	snap["list"].(value.Array)[0] = value.Int(9)

	v, _ := ps.Value("list")
	assert.Equal(t, value.Int(1), v.(value.Array)[0])
}

func TestInstances_MarshalJSONOrdered(t *testing.T) {
	ps := NewFromValues("e1", value.Object{
		"rhs":    value.Bool(true),
		"lhs":    value.Bool(false),
		"result": value.Null{},
	})

	data, err := json.Marshal(ps)
	require.NoError(t, err)
	assert.Equal(t, `{"lhs":false,"result":null,"rhs":true}`, string(data))
}

func TestInstances_Range(t *testing.T) {
	ps := NewFromValues("e1", value.Object{"a": value.Int(1), "b": value.Int(2), "c": value.Int(3)})

	var visited []string
	ps.Range(func(p *Instance) bool {
		visited = append(visited, p.Name())
		return p.Name() != "b"
	})
	assert.Equal(t, []string{"a", "b"}, visited)
}

func TestInstances_UnobserveAll(t *testing.T) {
	ps := NewFromValues("e1", value.Object{"a": value.Int(1), "b": value.Int(2)})
	for _, name := range ps.Names() {
		p, _ := ps.Get(name)
		p.Observe(func(value.Value) {})
	}

	ps.UnobserveAll()
	ps.Range(func(p *Instance) bool {
		assert.Zero(t, p.SubscriberCount())
		return true
	})
}

func TestInstances_ConcurrentAccess(t *testing.T) {
	ps := NewInstances("e1")

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		name := fmt.Sprintf("p%02d", i)
		g.Go(func() error {
			p := ps.Add(name, value.Int(0))
			for j := 0; j < 100; j++ {
				p.Set(value.Int(int64(j)))
				if _, ok := ps.Value(name); !ok {
					return fmt.Errorf("property %s vanished", name)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 32, ps.Len())
	for _, name := range ps.Names() {
		v, _ := ps.Value(name)
		assert.Equal(t, value.Int(99), v)
	}
}

func TestObservers_RemoveAll(t *testing.T) {
	ps := NewFromValues("e1", value.Object{"lhs": value.Bool(false), "rhs": value.Bool(false)})

	var obs Observers
	calls := 0
	h, ok := obs.Observe(ps, "lhs", func(value.Value) { calls++ })
	require.True(t, ok)
	_, ok = obs.Observe(ps, "rhs", func(value.Value) { calls++ })
	require.True(t, ok)
	_, ok = obs.Observe(ps, "missing", func(value.Value) { calls++ })
	assert.False(t, ok)
	assert.Equal(t, 2, obs.Len())

	obs.Remove(h)
	assert.Equal(t, 1, obs.Len())
	lhs, _ := ps.Get("lhs")
	lhs.Set(value.Bool(true))
	assert.Equal(t, 0, calls)

	obs.RemoveAll()
	rhs, _ := ps.Get("rhs")
	rhs.Set(value.Bool(true))
	assert.Equal(t, 0, calls)
	assert.Zero(t, obs.Len())

	obs.RemoveAll()
}
