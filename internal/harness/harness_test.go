package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rgraph/internal/store"
	"github.com/roach88/rgraph/internal/value"
)

// gates builds a scenario of named logical gates connected by relations.
func gates(name string, entities []EntitySpec, relations []RelationSpec, steps ...Step) *Scenario {
	return &Scenario{
		Name:        name,
		Description: "gates",
		Entities:    entities,
		Relations:   relations,
		Steps:       steps,
	}
}

func traceLines(r *Result) []string {
	lines := make([]string, len(r.Trace))
	for i, ev := range r.Trace {
		lines[i] = ev.String()
	}
	return lines
}

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Warnings)
		})
	}
}

func TestRun_SingleGate(t *testing.T) {
	scenario := gates("single",
		[]EntitySpec{{Name: "a", Type: "logical::and", Properties: map[string]any{"lhs": true}}},
		nil,
		Step{Set: "a.rhs", Value: true},
		Step{Expect: "a.result", Value: true},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []string{
		"001 set a.rhs = true",
		"002 emit a.rhs = true",
		"003 emit a.result = true",
		"004 expect a.result = true",
	}, traceLines(result))
	assert.Equal(t, value.NewObject(
		value.O("lhs", value.Bool(true)),
		value.O("rhs", value.Bool(true)),
		value.O("result", value.Bool(true)),
	), result.State["a"])
}

func TestRun_ExpectMismatch(t *testing.T) {
	scenario := gates("mismatch",
		[]EntitySpec{{Name: "a", Type: "logical::or"}},
		nil,
		Step{Set: "a.lhs", Value: false},
		Step{Expect: "a.result", Value: true},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expect a.result: want true, got false")
}

func TestRun_StepErrorsContinue(t *testing.T) {
	scenario := gates("step_errors",
		[]EntitySpec{{Name: "a", Type: "logical::and"}},
		nil,
		Step{Set: "missing.lhs", Value: true},
		Step{Reconnect: "a", Behaviour: "logical::or"},
		Step{Tick: "a.result"},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, []string{
		`001 error missing.lhs (unknown entity "missing")`,
		"002 reconnect a (logical::or)",
		"003 error a (INVALID_TRANSITION)",
		"004 tick a.result",
		"005 emit a.result = false",
	}, traceLines(result))
}

func TestRun_ReconnectBehaviour(t *testing.T) {
	scenario := gates("reconnect",
		[]EntitySpec{{Name: "a", Type: "logical::and"}},
		nil,
		Step{Reconnect: "a", Behaviour: "logical::and"},
		Step{SetAll: "a", Values: map[string]any{"lhs": true, "rhs": true}},
		Step{Expect: "a.result", Value: true},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "001 reconnect a (logical::and)", result.Trace[0].String())
	assert.Len(t, result.Emissions("a.result"), 2)
}

func TestRun_CycleWarning(t *testing.T) {
	scenario := gates("cycle",
		[]EntitySpec{
			{Name: "a", Type: "logical::and"},
			{Name: "b", Type: "logical::or"},
		},
		[]RelationSpec{
			{From: "a.result", To: "b.lhs"},
			{From: "b.result", To: "a.lhs"},
		},
		Step{Set: "a.rhs", Value: true},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "a.result")
	assert.Empty(t, result.Trace, "cyclic scenarios are not executed")
	assert.Contains(t, string(result.Render("cycle")), "warning: ")
}

func TestRun_TypesSource(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline",
		Description: "Types declared inline",
		TypesSource: `entity: "test::lamp": properties: on: *false | bool`,
		Entities: []EntitySpec{
			{Name: "switch", Type: "logical::not"},
			{Name: "lamp", Type: "test::lamp"},
		},
		Relations: []RelationSpec{{From: "switch.result", To: "lamp.on"}},
		Steps: []Step{
			{Set: "switch.lhs", Value: false},
			{Expect: "lamp.on", Value: true},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Property: "lamp.on", Count: 1},
			{Type: AssertFinalState, Entity: "lamp", Expect: map[string]any{"on": true}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_FailingAssertions(t *testing.T) {
	scenario := gates("assert",
		[]EntitySpec{{Name: "a", Type: "logical::and"}},
		nil,
		Step{Set: "a.lhs", Value: true},
	)
	scenario.Assertions = []Assertion{
		{Type: AssertTraceCount, Property: "a.result", Count: 2},
		{Type: AssertFinalState, Entity: "a", Expect: map[string]any{"result": true}},
		{Type: AssertFinalState, Entity: "ghost", Expect: map[string]any{"result": true}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "2 emissions of a.result")
	assert.Contains(t, result.Errors[1], "a.result = true")
	assert.Contains(t, result.Errors[2], `unknown entity "ghost"`)
}

func TestRun_BuildErrors(t *testing.T) {
	tests := []struct {
		name     string
		scenario *Scenario
		wantErr  string
	}{
		{
			name: "unknown entity type",
			scenario: gates("bad_type",
				[]EntitySpec{{Name: "a", Type: "test::nothing"}}, nil,
				Step{Tick: "a.result"}),
			wantErr: "entity a",
		},
		{
			name: "unknown relation endpoint",
			scenario: gates("bad_relation",
				[]EntitySpec{{Name: "a", Type: "logical::and"}},
				[]RelationSpec{{From: "a.result", To: "b.lhs"}},
				Step{Tick: "a.result"}),
			wantErr: `unknown entity "b"`,
		},
		{
			name: "unknown flow type",
			scenario: &Scenario{
				Name: "bad_flow", Description: "d",
				Flows: []FlowSpec{{Name: "f", Type: "test::nothing"}},
				Steps: []Step{{Tick: "f.result"}},
			},
			wantErr: "flow f",
		},
		{
			name: "invalid types source",
			scenario: &Scenario{
				Name: "bad_cue", Description: "d",
				TypesSource: "entity: {",
				Steps:       []Step{{Tick: "a.result"}},
			},
			wantErr: "failed to load types",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(tt.scenario)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/and3.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Render(scenario.Name), second.Render(scenario.Name))
}

func TestRun_WithStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "run.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	scenario, err := LoadScenario("testdata/scenarios/disconnect_reconnect.yaml")
	require.NoError(t, err)

	result, err := Run(scenario, WithStore(st))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	ctx := context.Background()
	counts, err := st.CountInstances(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[store.KindEntity])
	assert.Equal(t, 1, counts[store.KindRelation])

	transitions, err := st.ReadTransitions(ctx, "")
	require.NoError(t, err)
	assert.NotEmpty(t, transitions)
}
