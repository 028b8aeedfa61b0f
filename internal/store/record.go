package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/rgraph/internal/reactive"
	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/value"
)

// Kind is the instance kind stored in the kind column.
type Kind string

const (
	KindEntity   Kind = "entity"
	KindRelation Kind = "relation"
	KindFlow     Kind = "flow"
)

// Record is one row of the instances table.
type Record struct {
	Key        string
	Kind       Kind
	Type       string
	Components []string
	Properties value.Object
	Hash       string
	Seq        int64
}

// TransitionRecord is one row of the transitions journal.
type TransitionRecord struct {
	Seq       int64
	Instance  string
	Behaviour string
	From      string
	To        string
	Error     string
}

// EntityRecord captures the current state of e.
func EntityRecord(e *reactive.Entity, seq int64) (Record, error) {
	return newRecord(e.ID().String(), KindEntity, e.Type().String(), e.Components(), e.Properties().Snapshot(), seq)
}

// RelationRecord captures the current state of r.
func RelationRecord(r *reactive.Relation, seq int64) (Record, error) {
	return newRecord(r.ID().String(), KindRelation, r.Type().String(), r.Components(), r.Properties().Snapshot(), seq)
}

// FlowRecord captures the membership of f. Member state is stored in the
// members' own entity and relation records.
func FlowRecord(f *reactive.Flow, seq int64) (Record, error) {
	var entities, relations value.Array
	for _, e := range f.Entities() {
		if e.ID() != f.ID() {
			entities = append(entities, value.String(e.ID().String()))
		}
	}
	for _, r := range f.Relations() {
		relations = append(relations, value.String(r.ID().String()))
	}
	props := value.Object{
		"entities":  nonNil(entities),
		"relations": nonNil(relations),
	}
	return newRecord(f.ID().String(), KindFlow, f.Type().String(), f.Components(), props, seq)
}

func nonNil(a value.Array) value.Array {
	if a == nil {
		return value.Array{}
	}
	return a
}

func newRecord(key string, kind Kind, ty string, components []typeid.ComponentTypeID, props value.Object, seq int64) (Record, error) {
	hash, err := value.Hash(value.DomainProperties, props)
	if err != nil {
		return Record{}, fmt.Errorf("record %s: %w", key, err)
	}
	names := make([]string, len(components))
	for i, c := range components {
		names[i] = c.String()
	}
	return Record{
		Key:        key,
		Kind:       kind,
		Type:       ty,
		Components: names,
		Properties: props,
		Hash:       hash,
		Seq:        seq,
	}, nil
}

// marshalProperties converts properties to canonical JSON TEXT for storage.
func marshalProperties(props value.Object) (string, error) {
	if props == nil {
		props = value.Object{}
	}
	data, err := value.MarshalCanonical(props)
	if err != nil {
		return "", fmt.Errorf("marshal properties: %w", err)
	}
	return string(data), nil
}

func unmarshalProperties(s string) (value.Object, error) {
	v, err := value.Unmarshal([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("unmarshal properties: %w", err)
	}
	obj, ok := value.AsObject(v)
	if !ok {
		return nil, fmt.Errorf("unmarshal properties: got %s, want object", v.Kind())
	}
	return obj, nil
}

func marshalComponents(components []string) (string, error) {
	if components == nil {
		components = []string{}
	}
	data, err := json.Marshal(components)
	if err != nil {
		return "", fmt.Errorf("marshal components: %w", err)
	}
	return string(data), nil
}

func unmarshalComponents(s string) ([]string, error) {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("unmarshal components: %w", err)
	}
	return out, nil
}
