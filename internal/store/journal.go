package store

import (
	"context"
	"log/slog"

	"github.com/roach88/rgraph/internal/behaviour"
	"github.com/roach88/rgraph/internal/idgen"
)

// Journal records behaviour transitions in the store. It implements
// behaviour.TransitionObserver.
type Journal struct {
	store  *Store
	clock  *idgen.Clock
	logger *slog.Logger
}

var _ behaviour.TransitionObserver = (*Journal)(nil)

// NewJournal creates a journal writing to s. Seqs are taken from clock; a
// nil clock resumes after the last stored seq.
func NewJournal(ctx context.Context, s *Store, clock *idgen.Clock, logger *slog.Logger) (*Journal, error) {
	if clock == nil {
		last, err := s.LastTransitionSeq(ctx)
		if err != nil {
			return nil, err
		}
		clock = idgen.NewClockAt(last)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{store: s, clock: clock, logger: logger}, nil
}

// OnTransition appends ev to the journal. Write failures are logged; the
// transition itself is not affected.
func (j *Journal) OnTransition(ctx context.Context, ev behaviour.TransitionEvent) {
	tr := TransitionRecord{
		Seq:       j.clock.Next(),
		Instance:  ev.Instance,
		Behaviour: ev.Behaviour.String(),
		From:      ev.From.String(),
		To:        ev.To.String(),
	}
	if ev.Err != nil {
		tr.Error = ev.Err.Error()
	}
	if err := j.store.WriteTransition(ctx, tr); err != nil {
		j.logger.Warn("journal write failed", "seq", tr.Seq, "instance", tr.Instance, "error", err)
	}
}
