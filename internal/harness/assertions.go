package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/rgraph/internal/store"
	"github.com/roach88/rgraph/internal/value"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", event)
		}
	}

	return buf.String()
}

// assertTraceContains checks that the property emitted the expected value
// at least once. Without a value any emission matches.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	var want value.Value
	if assertion.Value != nil {
		v, err := value.FromAny(assertion.Value)
		if err != nil {
			return fmt.Errorf("trace_contains %s: %w", assertion.Property, err)
		}
		want = v
	}

	for _, event := range trace {
		if event.Type != EventEmit || event.Target != assertion.Property {
			continue
		}
		if want == nil || value.Equal(event.Value, want) {
			return nil
		}
	}

	expected := fmt.Sprintf("emission of %s", assertion.Property)
	if want != nil {
		expected += " = " + render(want)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first emissions of the properties appear
// in the specified order. Other events may intervene.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventEmit {
			continue
		}
		for _, ref := range assertion.Properties {
			if event.Target == ref && positions[ref] == 0 {
				positions[ref] = i + 1 // 1-indexed for readability
			}
		}
	}

	for _, ref := range assertion.Properties {
		if positions[ref] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all properties emitted: %v", assertion.Properties),
				Actual:   fmt.Sprintf("no emission of %s", ref),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Properties); i++ {
		prev := assertion.Properties[i-1]
		curr := assertion.Properties[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("properties in order: %v", assertion.Properties),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the property emitted exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventEmit && event.Target == assertion.Property {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d emissions of %s", assertion.Count, assertion.Property),
			Actual:   fmt.Sprintf("%d emissions", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the entity's stored snapshot against the expected
// property values. Properties not named in Expect are ignored.
func assertFinalState(ctx context.Context, st *store.Store, id uuid.UUID, assertion Assertion) error {
	rec, ok, err := st.ReadInstance(ctx, store.KindEntity, id.String())
	if err != nil {
		return fmt.Errorf("final_state %s: %w", assertion.Entity, err)
	}
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("snapshot of entity %s", assertion.Entity),
			Actual:   "not stored",
		}
	}

	want, err := objectOf(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state %s: %w", assertion.Entity, err)
	}
	for _, key := range want.SortedKeys() {
		got, exists := rec.Properties[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("property %q to exist", key),
				Actual:   fmt.Sprintf("properties of %s: %v", assertion.Entity, rec.Properties.SortedKeys()),
			}
		}
		if !value.Equal(got, want[key]) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %s", assertion.Entity, key, render(want[key])),
				Actual:   fmt.Sprintf("%s.%s = %s", assertion.Entity, key, render(got)),
			}
		}
	}
	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx   context.Context
	Store *store.Store

	// Entities maps scenario names to entity ids.
	Entities map[string]uuid.UUID
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides the store for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires a store", i)
				break
			}
			id, ok := actx.Entities[assertion.Entity]
			if !ok {
				err = fmt.Errorf("assertion[%d]: unknown entity %q", i, assertion.Entity)
				break
			}
			err = assertFinalState(actx.Ctx, actx.Store, id, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
