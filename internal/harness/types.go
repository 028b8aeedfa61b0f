package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/rgraph/internal/value"
)

// Trace event types. Steps are recorded with their action as type.
const (
	EventEmit  = "emit"
	EventError = "error"
)

// TraceEvent is one step or one property emission.
type TraceEvent struct {
	Seq    int64       `json:"seq"`
	Type   string      `json:"type"`
	Target string      `json:"target"`
	Value  value.Value `json:"value,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

// String renders the event as one trace line.
func (e TraceEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%03d %s %s", e.Seq, e.Type, e.Target)
	if e.Value != nil {
		data, err := value.Marshal(e.Value)
		if err != nil {
			data = []byte(fmt.Sprintf("<%v>", err))
		}
		fmt.Fprintf(&b, " = %s", data)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, " (%s)", e.Detail)
	}
	return b.String()
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect steps and assertions match.
	Pass bool `json:"pass"`

	// Trace contains all steps and emissions in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Warnings contains propagation cycles found in the graph. A scenario
	// with warnings is not executed.
	Warnings []string `json:"warnings,omitempty"`

	// State holds the final property values of every named entity.
	State map[string]value.Object `json:"state,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]value.Object),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddWarning adds a cycle warning and marks the result as failed.
func (r *Result) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
	r.Pass = false
}

// Emissions returns the emit events of property ref ("entity.property").
func (r *Result) Emissions(ref string) []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EventEmit && ev.Target == ref {
			out = append(out, ev)
		}
	}
	return out
}

// Render returns the trace as text, one event per line.
func (r *Result) Render(name string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	for _, ev := range r.Trace {
		b.WriteString(ev.String())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
