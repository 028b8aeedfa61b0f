package testutil

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SequentialIDs generates the ids 00000000-0000-0000-0000-000000000001,
// ...-000000000002 and so on. Scenarios using it produce byte-identical
// traces and snapshots across runs.
//
// Safe for concurrent use.
type SequentialIDs struct {
	mu sync.Mutex
	n  uint64
}

// NewSequentialIDs creates a generator whose first id ends in 1.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// New implements idgen.Generator.
func (g *SequentialIDs) New() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return SequentialID(g.n)
}

// Reset restarts the sequence at 1.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}

// SequentialID returns the n-th id of the sequence.
func SequentialID(n uint64) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012x", n))
}
