package runtime

import (
	"context"
	"errors"

	"github.com/roach88/rgraph/internal/behaviour"
	"github.com/roach88/rgraph/internal/telemetry"
)

// transitionMetrics records transition steps on telemetry metrics.
type transitionMetrics struct {
	metrics *telemetry.Metrics
}

var _ behaviour.TransitionObserver = transitionMetrics{}

func (o transitionMetrics) OnTransition(ctx context.Context, ev behaviour.TransitionEvent) {
	o.metrics.RecordTransition(ctx, ev.Behaviour.String(), ev.From.String(), ev.To.String(), failureCode(ev.Err))
}

// failureCode returns the transition error code of err, or "" for success.
func failureCode(err error) string {
	if err == nil {
		return ""
	}
	var te *behaviour.TransitionError
	if errors.As(err, &te) {
		return string(te.Code)
	}
	return "UNKNOWN"
}
