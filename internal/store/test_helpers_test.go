package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/rgraph/internal/reactive"
	"github.com/roach88/rgraph/internal/testutil"
	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/value"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	andType   = typeid.NewEntityTypeID("logical", "and")
	andComp   = typeid.NewComponentTypeID("logical", "and")
	connector = typeid.NewRelationInstanceTypeID(typeid.NewRelationTypeID("core", "connector"), "result--lhs")
)

// createTestEntity creates an and-gate entity with deterministic id n.
func createTestEntity(n uint64, lhs, rhs bool) *reactive.Entity {
	e := reactive.NewEntity(testutil.SequentialID(n), andType, value.Object{
		"lhs":    value.Bool(lhs),
		"rhs":    value.Bool(rhs),
		"result": value.Bool(lhs && rhs),
	})
	e.AddComponent(andComp)
	return e
}
