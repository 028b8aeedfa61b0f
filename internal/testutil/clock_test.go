package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestDeterministicClock_NextAndReset(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, int64(0), clock.Current())

	assert.Equal(t, int64(1), clock.Next())
	assert.Equal(t, int64(2), clock.Next())
	assert.Equal(t, int64(2), clock.Current())

	clock.Reset()
	assert.Equal(t, int64(0), clock.Current())
	assert.Equal(t, int64(1), clock.Next())
}

func TestDeterministicClock_Concurrent(t *testing.T) {
	clock := NewDeterministicClock()

	var g errgroup.Group
	for range 10 {
		g.Go(func() error {
			for range 100 {
				clock.Next()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(1000), clock.Current())
}

func TestSequentialIDs(t *testing.T) {
	ids := NewSequentialIDs()

	assert.Equal(t, "00000000-0000-0000-0000-000000000001", ids.New().String())
	assert.Equal(t, "00000000-0000-0000-0000-000000000002", ids.New().String())
	assert.Equal(t, "00000000-0000-0000-0000-00000000000a", SequentialID(10).String())

	ids.Reset()
	assert.Equal(t, SequentialID(1), ids.New())
}
