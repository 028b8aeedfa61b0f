package store

import (
	"context"
	"database/sql"
	"fmt"
)

const upsertInstance = `
	INSERT INTO instances
	(key, kind, type, components, properties, hash, seq)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(kind, key) DO UPDATE SET
		type = excluded.type,
		components = excluded.components,
		properties = excluded.properties,
		hash = excluded.hash,
		seq = excluded.seq
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// WriteInstance inserts or replaces the snapshot of one instance.
//
// Properties are serialized to canonical JSON for deterministic reads.
func (s *Store) WriteInstance(ctx context.Context, rec Record) error {
	if err := writeInstance(ctx, s.db, rec); err != nil {
		return fmt.Errorf("write instance: %w", err)
	}
	return nil
}

// WriteSnapshot upserts every record in a single transaction. Either all
// records are written or none.
func (s *Store) WriteSnapshot(ctx context.Context, recs []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, rec := range recs {
		if err := writeInstance(ctx, tx, rec); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write snapshot: commit: %w", err)
	}
	return nil
}

func writeInstance(ctx context.Context, db execer, rec Record) error {
	props, err := marshalProperties(rec.Properties)
	if err != nil {
		return err
	}
	components, err := marshalComponents(rec.Components)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, upsertInstance,
		rec.Key,
		string(rec.Kind),
		rec.Type,
		components,
		props,
		rec.Hash,
		rec.Seq,
	)
	if err != nil {
		return fmt.Errorf("%s %s: %w", rec.Kind, rec.Key, err)
	}
	return nil
}

// DeleteInstance removes the snapshot of kind stored under key. Deleting a
// missing key is not an error.
func (s *Store) DeleteInstance(ctx context.Context, kind Kind, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM instances WHERE kind = ? AND key = ?`, string(kind), key); err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	return nil
}

// WriteTransition appends a journal entry.
// Uses ON CONFLICT(seq) DO NOTHING for idempotency - a replayed seq is
// silently ignored.
func (s *Store) WriteTransition(ctx context.Context, tr TransitionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions
		(seq, instance, behaviour, from_state, to_state, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		tr.Seq,
		tr.Instance,
		tr.Behaviour,
		tr.From,
		tr.To,
		tr.Error,
	)
	if err != nil {
		return fmt.Errorf("write transition: %w", err)
	}
	return nil
}
