// Package idgen generates instance ids and sequence numbers.
package idgen

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces entity and flow ids.
type Generator interface {
	New() uuid.UUID
}

// UUIDv7Generator generates time-sortable UUIDv7 ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort by
// creation time. Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// New panics if the random source fails.
func (UUIDv7Generator) New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// FixedGenerator returns predetermined ids in order. It panics once every id
// has been consumed, which catches tests creating more instances than they
// declared.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []uuid.UUID
	idx int
}

// NewFixedGenerator creates a generator returning ids in order.
func NewFixedGenerator(ids ...uuid.UUID) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

func (g *FixedGenerator) New() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// NameGenerator derives ids from names with UUIDv5 in a fixed namespace.
// The same name always yields the same id, so scenarios that name their
// instances get stable ids across runs.
type NameGenerator struct {
	namespace uuid.UUID
	counter   atomic.Uint64
}

// NewNameGenerator creates a name generator in namespace. A zero namespace
// uses uuid.NameSpaceOID.
func NewNameGenerator(namespace uuid.UUID) *NameGenerator {
	if namespace == uuid.Nil {
		namespace = uuid.NameSpaceOID
	}
	return &NameGenerator{namespace: namespace}
}

// ID returns the id of name.
func (g *NameGenerator) ID(name string) uuid.UUID {
	return uuid.NewSHA1(g.namespace, []byte(name))
}

// New returns the id of the next anonymous name "#1", "#2", ...
func (g *NameGenerator) New() uuid.UUID {
	n := g.counter.Add(1)
	return g.ID("#" + strconv.FormatUint(n, 10))
}
