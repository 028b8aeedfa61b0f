package instance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/rgraph/internal/reactive"
	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/types"
)

// FlowManager owns the live flows. A flow's wrapper and members are
// registered in the entity and relation managers like any other instance.
type FlowManager struct {
	types     *types.Registry
	entities  *EntityManager
	relations *RelationManager
	opts      options

	mu    sync.RWMutex
	flows map[uuid.UUID]*reactive.Flow
}

// NewFlowManager creates a flow manager over entities and relations.
func NewFlowManager(registry *types.Registry, entities *EntityManager, relations *RelationManager, opts ...Option) *FlowManager {
	o := buildOptions(opts)
	o.logger = o.logger.With("kind", "flow")
	return &FlowManager{
		types:     registry,
		entities:  entities,
		relations: relations,
		opts:      o,
		flows:     make(map[uuid.UUID]*reactive.Flow),
	}
}

// Create registers wrapper, then entities, then relations, and returns the
// flow. When a step fails every instance registered so far is deleted in
// reverse order.
func (m *FlowManager) Create(ctx context.Context, ty typeid.FlowTypeID, wrapper *reactive.Entity, entities []*reactive.Entity, relations []*reactive.Relation) (*reactive.Flow, error) {
	ft, ok := m.types.FlowType(ty)
	if !ok {
		return nil, opError("create flow", wrapper.ID(), fmt.Errorf("flow type %s: %w", ty, types.ErrTypeNotFound))
	}
	if wrapper.Type() != ft.Wrapper {
		return nil, opError("create flow", wrapper.ID(), fmt.Errorf("wrapper type %s, want %s: %w", wrapper.Type(), ft.Wrapper, types.ErrTypeNotFound))
	}

	m.mu.RLock()
	_, exists := m.flows[wrapper.ID()]
	m.mu.RUnlock()
	if exists {
		return nil, opError("create flow", wrapper.ID(), ErrAlreadyExists)
	}

	var (
		doneEntities  []uuid.UUID
		doneRelations []reactive.RelationInstanceID
	)
	rollback := func(cause error) error {
		errs := []error{cause}
		for _, id := range slices.Backward(doneRelations) {
			errs = append(errs, m.relations.Delete(ctx, id))
		}
		for _, id := range slices.Backward(doneEntities) {
			errs = append(errs, m.entities.Delete(ctx, id))
		}
		return opError("create flow", wrapper.ID(), errors.Join(errs...))
	}

	for _, e := range slices.Concat([]*reactive.Entity{wrapper}, entities) {
		if err := m.entities.Register(ctx, e); err != nil {
			return nil, rollback(err)
		}
		doneEntities = append(doneEntities, e.ID())
	}
	for _, r := range relations {
		if err := m.relations.Register(ctx, r); err != nil {
			return nil, rollback(err)
		}
		doneRelations = append(doneRelations, r.ID())
	}

	f := reactive.NewFlow(ty, wrapper)
	for _, e := range entities {
		f.AddEntity(e)
	}
	for _, r := range relations {
		f.AddRelation(r)
	}

	m.mu.Lock()
	m.flows[f.ID()] = f
	m.mu.Unlock()

	m.opts.recordInstances(ctx, "flow", 1)
	m.opts.logger.Debug("flow created", "id", f.ID(), "type", ty,
		"entities", len(entities), "relations", len(relations))
	return f, nil
}

// Get returns the flow whose wrapper has id.
func (m *FlowManager) Get(id uuid.UUID) (*reactive.Flow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.flows[id]
	return f, ok
}

// All returns every flow ordered by id.
func (m *FlowManager) All() []*reactive.Flow {
	m.mu.RLock()
	out := make([]*reactive.Flow, 0, len(m.flows))
	for _, f := range m.flows {
		out = append(out, f)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b *reactive.Flow) int {
		return strings.Compare(a.ID().String(), b.ID().String())
	})
	return out
}

// Count returns the number of flows.
func (m *FlowManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.flows)
}

// Delete deletes the flow's relations, then its member entities, then the
// wrapper, each in reverse order. Deletion continues past failures; they
// are returned joined.
func (m *FlowManager) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	f, ok := m.flows[id]
	delete(m.flows, id)
	m.mu.Unlock()
	if !ok {
		return opError("delete flow", id, ErrNotFound)
	}

	var errs []error
	for _, r := range slices.Backward(f.Relations()) {
		if m.relations.Has(r.ID()) {
			errs = append(errs, m.relations.Delete(ctx, r.ID()))
		}
	}
	for _, e := range slices.Backward(f.Entities()) {
		if e.ID() == id || !m.entities.Has(e.ID()) {
			continue
		}
		errs = append(errs, m.entities.Delete(ctx, e.ID()))
	}
	if m.entities.Has(id) {
		errs = append(errs, m.entities.Delete(ctx, id))
	}

	m.opts.recordInstances(ctx, "flow", -1)
	m.opts.logger.Debug("flow deleted", "id", id)
	return errors.Join(errs...)
}
