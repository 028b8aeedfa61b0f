package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ReadInstances returns the stored snapshots of the given kind, or of every
// kind when kind is empty. Results are ordered by seq, then key.
//
// Returns an empty slice (not nil) if nothing is stored.
func (s *Store) ReadInstances(ctx context.Context, kind Kind) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, kind, type, components, properties, hash, seq
		FROM instances
		WHERE ? = '' OR kind = ?
		ORDER BY seq ASC, key COLLATE BINARY ASC, kind ASC
	`, string(kind), string(kind))
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return records, nil
}

// ReadInstance returns the snapshot of kind stored under key.
// Returns (Record{}, false, nil) if none exists.
func (s *Store) ReadInstance(ctx context.Context, kind Kind, key string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, kind, type, components, properties, hash, seq
		FROM instances
		WHERE kind = ? AND key = ?
	`, string(kind), key)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// CountInstances returns the number of stored snapshots per kind.
func (s *Store) CountInstances(ctx context.Context) (map[Kind]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM instances GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count instances: %w", err)
	}
	defer rows.Close()

	out := map[Kind]int{}
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[Kind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return out, nil
}

// ReadTransitions returns the journal entries for instance, or every entry
// when instance is empty, in seq order.
func (s *Store) ReadTransitions(ctx context.Context, instance string) ([]TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, instance, behaviour, from_state, to_state, error
		FROM transitions
		WHERE ? = '' OR instance = ?
		ORDER BY seq ASC
	`, instance, instance)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	out := []TransitionRecord{}
	for rows.Next() {
		var tr TransitionRecord
		if err := rows.Scan(&tr.Seq, &tr.Instance, &tr.Behaviour, &tr.From, &tr.To, &tr.Error); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}

// LastTransitionSeq returns the highest journal seq, or 0 for an empty
// journal.
func (s *Store) LastTransitionSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM transitions`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last transition seq: %w", err)
	}
	return seq.Int64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec        Record
		kind       string
		components string
		props      string
	)
	if err := row.Scan(&rec.Key, &kind, &rec.Type, &components, &props, &rec.Hash, &rec.Seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan instance: %w", err)
	}
	rec.Kind = Kind(kind)

	var err error
	if rec.Components, err = unmarshalComponents(components); err != nil {
		return Record{}, fmt.Errorf("instance %s: %w", rec.Key, err)
	}
	if rec.Properties, err = unmarshalProperties(props); err != nil {
		return Record{}, fmt.Errorf("instance %s: %w", rec.Key, err)
	}
	return rec, nil
}
