package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rgraph/internal/reactive"
	"github.com/roach88/rgraph/internal/testutil"
	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/value"
)

func TestEntityRecord(t *testing.T) {
	e := createTestEntity(1, true, false)

	rec, err := EntityRecord(e, 7)
	require.NoError(t, err)

	assert.Equal(t, testutil.SequentialID(1).String(), rec.Key)
	assert.Equal(t, KindEntity, rec.Kind)
	assert.Equal(t, "logical::and", rec.Type)
	assert.Equal(t, []string{"logical::and"}, rec.Components)
	assert.Equal(t, int64(7), rec.Seq)
	assert.Equal(t, value.Bool(true), rec.Properties["lhs"])
	assert.Len(t, rec.Hash, 64)
}

func TestEntityRecord_HashIgnoresWriteOrder(t *testing.T) {
	a := createTestEntity(1, false, false)
	a.Set("lhs", value.Bool(true))
	a.Set("rhs", value.Bool(true))

	b := createTestEntity(2, false, false)
	b.Set("rhs", value.Bool(true))
	b.Set("lhs", value.Bool(true))

	ra, err := EntityRecord(a, 1)
	require.NoError(t, err)
	rb, err := EntityRecord(b, 2)
	require.NoError(t, err)
	assert.Equal(t, ra.Hash, rb.Hash)

	b.Set("result", value.Bool(true))
	rb, err = EntityRecord(b, 3)
	require.NoError(t, err)
	assert.NotEqual(t, ra.Hash, rb.Hash)
}

func TestWriteInstance_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	e := createTestEntity(1, true, true)
	e.Set("label", value.String("caf\u00e9"))
	want, err := EntityRecord(e, 1)
	require.NoError(t, err)
	require.NoError(t, s.WriteInstance(ctx, want))

	got, ok, err := s.ReadInstance(ctx, KindEntity, want.Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.Key, got.Key)
	assert.Equal(t, want.Kind, got.Kind)
	assert.Equal(t, want.Components, got.Components)
	assert.Equal(t, want.Hash, got.Hash)
	assert.True(t, value.Equal(want.Properties, got.Properties))

	_, ok, err = s.ReadInstance(ctx, KindEntity, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteInstance_Upserts(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e := createTestEntity(1, false, false)

	first, err := EntityRecord(e, 1)
	require.NoError(t, err)
	require.NoError(t, s.WriteInstance(ctx, first))

	e.Set("lhs", value.Bool(true))
	second, err := EntityRecord(e, 2)
	require.NoError(t, err)
	require.NoError(t, s.WriteInstance(ctx, second))

	all, err := s.ReadInstances(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(2), all[0].Seq)
	assert.Equal(t, value.Bool(true), all[0].Properties["lhs"])
}

func TestWriteSnapshot_OrderAndKinds(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	a := createTestEntity(1, true, true)
	b := createTestEntity(2, false, false)
	r := reactive.NewRelation(a.ID(), connector, b.ID(), value.Object{
		"outbound_property_name": value.String("result"),
		"inbound_property_name":  value.String("lhs"),
	})
	f := reactive.NewFlow(typeid.NewFlowTypeID("logical", "pair"), a)
	f.AddEntity(b)
	f.AddRelation(r)

	var recs []Record
	for i, build := range []func(int64) (Record, error){
		func(seq int64) (Record, error) { return EntityRecord(b, seq) },
		func(seq int64) (Record, error) { return EntityRecord(a, seq) },
		func(seq int64) (Record, error) { return RelationRecord(r, seq) },
		func(seq int64) (Record, error) { return FlowRecord(f, seq) },
	} {
		rec, err := build(int64(i + 1))
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	require.NoError(t, s.WriteSnapshot(ctx, recs))

	all, err := s.ReadInstances(ctx, "")
	require.NoError(t, err)
	var keys []string
	var kinds []Kind
	for _, rec := range all {
		keys = append(keys, rec.Key)
		kinds = append(kinds, rec.Kind)
	}
	assert.Equal(t, []string{b.ID().String(), a.ID().String(), r.ID().String(), a.ID().String()}, keys)
	assert.Equal(t, []Kind{KindEntity, KindEntity, KindRelation, KindFlow}, kinds)

	entities, err := s.ReadInstances(ctx, KindEntity)
	require.NoError(t, err)
	assert.Len(t, entities, 2, "the flow record does not replace its wrapper entity")

	counts, err := s.CountInstances(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[Kind]int{KindEntity: 2, KindRelation: 1, KindFlow: 1}, counts)
}

func TestFlowRecord_Membership(t *testing.T) {
	a := createTestEntity(1, false, false)
	b := createTestEntity(2, false, false)
	f := reactive.NewFlow(typeid.NewFlowTypeID("logical", "pair"), a)
	f.AddEntity(b)

	rec, err := FlowRecord(f, 1)
	require.NoError(t, err)
	assert.Equal(t, KindFlow, rec.Kind)
	assert.Equal(t, "logical::pair", rec.Type)
	assert.Equal(t, value.Array{value.String(b.ID().String())}, rec.Properties["entities"])
	assert.Equal(t, value.Array{}, rec.Properties["relations"])
}

func TestDeleteInstance(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	rec, err := EntityRecord(createTestEntity(1, false, false), 1)
	require.NoError(t, err)
	require.NoError(t, s.WriteInstance(ctx, rec))

	require.NoError(t, s.DeleteInstance(ctx, KindEntity, rec.Key))
	require.NoError(t, s.DeleteInstance(ctx, KindEntity, rec.Key))

	all, err := s.ReadInstances(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.NotNil(t, all)
}
