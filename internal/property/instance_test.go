package property

import (
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/value"
)

func TestInstance_SetNotifiesEveryCall(t *testing.T) {
	p := NewInstance("e1", "out", value.Bool(false))

	var got []value.Value
	p.Observe(func(v value.Value) { got = append(got, v) })

	p.Set(value.Bool(true))
	p.Set(value.Bool(true))

	assert.Equal(t, []value.Value{value.Bool(true), value.Bool(true)}, got, "unchanged values still notify")
	assert.Equal(t, value.Bool(true), p.Get())
}

func TestInstance_SetNoPropagate(t *testing.T) {
	p := NewInstance("e1", "out", value.Int(1))

	calls := 0
	p.Observe(func(value.Value) { calls++ })

	p.SetNoPropagate(value.Int(2))
	assert.Equal(t, 0, calls)
	assert.Equal(t, value.Int(2), p.Get())
}

func TestInstance_Tick(t *testing.T) {
	p := NewInstance("e1", "out", value.String("x"))

	var got []value.Value
	p.Observe(func(v value.Value) { got = append(got, v) })

	p.SetNoPropagate(value.String("y"))
	p.Tick()

	assert.Equal(t, []value.Value{value.String("y")}, got)
}

func TestInstance_SendDoesNotStore(t *testing.T) {
	p := NewInstance("e1", "trigger", value.Bool(false))

	var got value.Value
	p.Observe(func(v value.Value) { got = v })

	p.Send(value.Bool(true))
	assert.Equal(t, value.Bool(true), got)
	assert.Equal(t, value.Bool(false), p.Get())
}

func TestInstance_ObserveAndUnobserve(t *testing.T) {
	p := NewInstance("e1", "out", value.Null{})

	a, b := 0, 0
	ha := p.Observe(func(value.Value) { a++ })
	hb := p.Observe(func(value.Value) { b++ })
	assert.NotEqual(t, ha, hb)
	assert.Equal(t, 2, p.SubscriberCount())

	p.Set(value.Int(1))
	p.Unobserve(ha)
	p.Set(value.Int(2))

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)

	p.Unobserve(ha)
	p.Unobserve(Handle(999999))
	assert.Equal(t, 1, p.SubscriberCount(), "unknown handles are ignored")
}

func TestInstance_ObserveWithHandleReplaces(t *testing.T) {
	p := NewInstance("e1", "out", value.Null{})

	first, second := 0, 0
	p.ObserveWithHandle(Handle(7), func(value.Value) { first++ })
	p.ObserveWithHandle(Handle(7), func(value.Value) { second++ })

	p.Tick()
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, 1, p.SubscriberCount())
}

func TestInstance_SubscriberMayReadOwnProperty(t *testing.T) {
	p := NewInstance("e1", "out", value.Int(0))

	var seen value.Value
	p.Observe(func(value.Value) { seen = p.Get() })

	p.Set(value.Int(5))
	assert.Equal(t, value.Int(5), seen)
}

func TestInstance_SubscriberMayUnobserveItself(t *testing.T) {
	p := NewInstance("e1", "out", value.Int(0))

	calls := 0
	var h Handle
	h = p.Observe(func(value.Value) {
		calls++
		p.Unobserve(h)
	})

	p.Set(value.Int(1))
	p.Set(value.Int(2))
	assert.Equal(t, 1, calls)
}

func TestInstance_Checked(t *testing.T) {
	p := NewInstanceWithMutability("e1", "id", typeid.Immutable, value.String("fixed"))

	calls := 0
	p.Observe(func(value.Value) { calls++ })

	p.SetChecked(value.String("changed"))
	p.SetNoPropagateChecked(value.String("changed"))
	p.TickChecked()
	assert.Equal(t, value.String("fixed"), p.Get())
	assert.Equal(t, 0, calls)

	p.SetMutability(typeid.Mutable)
	p.SetChecked(value.String("changed"))
	assert.Equal(t, value.String("changed"), p.Get())
	assert.Equal(t, 1, calls)
}

func TestInstance_TypedAccessors(t *testing.T) {
	p := NewInstance("e1", "x", value.Bool(true))

	b, ok := p.AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	_, ok = p.AsString()
	assert.False(t, ok, "mismatched accessor returns ok=false")

	p.SetNoPropagate(value.Int(42))
	i, ok := p.AsI64()
	assert.True(t, ok)
	assert.Equal(t, int64(42), i)
	u, ok := p.AsU64()
	assert.True(t, ok)
	assert.Equal(t, uint64(42), u)
	f, ok := p.AsF64()
	assert.True(t, ok)
	assert.Equal(t, 42.0, f)

	p.SetNoPropagate(value.Array{value.Int(1)})
	arr, ok := p.AsArray()
	assert.True(t, ok)
	assert.Len(t, arr, 1)

	p.SetNoPropagate(value.Object{"k": value.Null{}})
	obj, ok := p.AsObject()
	assert.True(t, ok)
	assert.Contains(t, obj, "k")
}

func TestInstance_NilBecomesNull(t *testing.T) {
	p := NewInstance("e1", "x", nil)
	assert.Equal(t, value.Null{}, p.Get())

	p.Set(nil)
	assert.Equal(t, value.Null{}, p.Get())
}

func TestInstance_SetGetRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	p := NewInstance("e1", "x", value.Null{})
	roundTrips := func(v value.Value) bool {
		p.Set(v)
		return value.Equal(v, p.Get())
	}

	properties.Property("set then get returns the value", prop.ForAll(
		func(b bool, i int64, f float64, s string) bool {
			return roundTrips(value.Bool(b)) &&
				roundTrips(value.Int(i)) &&
				roundTrips(value.Float(f)) &&
				roundTrips(value.String(s)) &&
				roundTrips(value.Array{value.Bool(b), value.String(s)}) &&
				roundTrips(value.Object{"n": value.Int(i), "s": value.String(s)})
		},
		gen.Bool(),
		gen.Int64(),
		gen.Float64Range(-1e9, 1e9),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestInstance_ConcurrentSetsAreSerialized(t *testing.T) {
	p := NewInstance("e1", "counter", value.Int(0))

	var mu sync.Mutex
	inFlight, maxInFlight, received := 0, 0, 0
	p.Observe(func(value.Value) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		received++
		mu.Unlock()

		mu.Lock()
		inFlight--
		mu.Unlock()
	})

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			p.Set(value.Int(int64(i)))
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 50, received)
	assert.Equal(t, 1, maxInFlight, "emissions on one property never overlap")
}
