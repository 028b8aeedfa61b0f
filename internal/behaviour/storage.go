package behaviour

import (
	"fmt"
	"hash/maphash"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/rgraph/internal/reactive"
	"github.com/roach88/rgraph/internal/typeid"
)

const storageShards = 32

type storageShard[ID comparable, T reactive.Instance[ID]] struct {
	mu   sync.RWMutex
	fsms map[ID]map[typeid.BehaviourTypeID]*FSM[ID, T]
}

// Storage indexes state machines by (instance id, behaviour type). Entries
// are striped by instance id; operations on different instances do not
// contend. Transitions are serialized by each FSM, not by the storage.
type Storage[ID comparable, T reactive.Instance[ID]] struct {
	seed   maphash.Seed
	shards [storageShards]storageShard[ID, T]
}

// NewStorage creates an empty storage.
func NewStorage[ID comparable, T reactive.Instance[ID]]() *Storage[ID, T] {
	s := &Storage[ID, T]{seed: maphash.MakeSeed()}
	for i := range s.shards {
		s.shards[i].fsms = make(map[ID]map[typeid.BehaviourTypeID]*FSM[ID, T])
	}
	return s
}

func (s *Storage[ID, T]) shardFor(id ID) *storageShard[ID, T] {
	return &s.shards[maphash.Comparable(s.seed, id)%storageShards]
}

// Insert stores fsm under its instance id and behaviour type, replacing any
// previous entry.
func (s *Storage[ID, T]) Insert(fsm *FSM[ID, T]) {
	id := fsm.Instance().ID()
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	byType, ok := sh.fsms[id]
	if !ok {
		byType = make(map[typeid.BehaviourTypeID]*FSM[ID, T])
		sh.fsms[id] = byType
	}
	byType[fsm.BehaviourType()] = fsm
}

// Get returns the state machine for (id, ty).
func (s *Storage[ID, T]) Get(id ID, ty typeid.BehaviourTypeID) (*FSM[ID, T], bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	fsm, ok := sh.fsms[id][ty]
	return fsm, ok
}

// Has reports whether a state machine exists for (id, ty).
func (s *Storage[ID, T]) Has(id ID, ty typeid.BehaviourTypeID) bool {
	_, ok := s.Get(id, ty)
	return ok
}

// Remove deletes the entry for (id, ty) and returns it.
func (s *Storage[ID, T]) Remove(id ID, ty typeid.BehaviourTypeID) (*FSM[ID, T], bool) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	byType, ok := sh.fsms[id]
	if !ok {
		return nil, false
	}
	fsm, ok := byType[ty]
	delete(byType, ty)
	if len(byType) == 0 {
		delete(sh.fsms, id)
	}
	return fsm, ok
}

// RemoveAll deletes every entry of the instance and returns them ordered by
// behaviour type.
func (s *Storage[ID, T]) RemoveAll(id ID) []*FSM[ID, T] {
	sh := s.shardFor(id)
	sh.mu.Lock()
	byType := sh.fsms[id]
	delete(sh.fsms, id)
	sh.mu.Unlock()
	return sortByType(byType)
}

// RemoveByBehaviour deletes every entry of behaviour type ty.
func (s *Storage[ID, T]) RemoveByBehaviour(ty typeid.BehaviourTypeID) []*FSM[ID, T] {
	var removed []*FSM[ID, T]
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id, byType := range sh.fsms {
			if fsm, ok := byType[ty]; ok {
				removed = append(removed, fsm)
				delete(byType, ty)
				if len(byType) == 0 {
					delete(sh.fsms, id)
				}
			}
		}
		sh.mu.Unlock()
	}
	sortByInstance(removed)
	return removed
}

// BehavioursOf returns the state machines of the instance ordered by
// behaviour type.
func (s *Storage[ID, T]) BehavioursOf(id ID) []*FSM[ID, T] {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sortByType(sh.fsms[id])
}

// BehaviourTypesOf returns the behaviour types stored for the instance.
func (s *Storage[ID, T]) BehaviourTypesOf(id ID) []typeid.BehaviourTypeID {
	fsms := s.BehavioursOf(id)
	out := make([]typeid.BehaviourTypeID, len(fsms))
	for i, fsm := range fsms {
		out[i] = fsm.BehaviourType()
	}
	return out
}

// InstancesBy returns the instances that have a state machine of type ty.
func (s *Storage[ID, T]) InstancesBy(ty typeid.BehaviourTypeID) []T {
	var fsms []*FSM[ID, T]
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, byType := range sh.fsms {
			if fsm, ok := byType[ty]; ok {
				fsms = append(fsms, fsm)
			}
		}
		sh.mu.RUnlock()
	}
	sortByInstance(fsms)
	out := make([]T, len(fsms))
	for i, fsm := range fsms {
		out[i] = fsm.Instance()
	}
	return out
}

// All returns every stored state machine ordered by instance and type.
func (s *Storage[ID, T]) All() []*FSM[ID, T] {
	var all []*FSM[ID, T]
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, byType := range sh.fsms {
			for _, fsm := range byType {
				all = append(all, fsm)
			}
		}
		sh.mu.RUnlock()
	}
	slices.SortFunc(all, func(a, b *FSM[ID, T]) int {
		if c := strings.Compare(fmt.Sprint(a.Instance().ID()), fmt.Sprint(b.Instance().ID())); c != 0 {
			return c
		}
		return strings.Compare(a.BehaviourType().String(), b.BehaviourType().String())
	})
	return all
}

// Count returns the number of stored state machines.
func (s *Storage[ID, T]) Count() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, byType := range sh.fsms {
			n += len(byType)
		}
		sh.mu.RUnlock()
	}
	return n
}

// CountByBehaviour returns the number of state machines of type ty.
func (s *Storage[ID, T]) CountByBehaviour(ty typeid.BehaviourTypeID) int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, byType := range sh.fsms {
			if _, ok := byType[ty]; ok {
				n++
			}
		}
		sh.mu.RUnlock()
	}
	return n
}

func sortByType[ID comparable, T reactive.Instance[ID]](byType map[typeid.BehaviourTypeID]*FSM[ID, T]) []*FSM[ID, T] {
	out := make([]*FSM[ID, T], 0, len(byType))
	for _, fsm := range byType {
		out = append(out, fsm)
	}
	slices.SortFunc(out, func(a, b *FSM[ID, T]) int {
		return strings.Compare(a.BehaviourType().String(), b.BehaviourType().String())
	})
	return out
}

func sortByInstance[ID comparable, T reactive.Instance[ID]](fsms []*FSM[ID, T]) {
	slices.SortFunc(fsms, func(a, b *FSM[ID, T]) int {
		return strings.Compare(fmt.Sprint(a.Instance().ID()), fmt.Sprint(b.Instance().ID()))
	})
}
