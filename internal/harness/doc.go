// Package harness runs propagation scenarios against a runtime.
//
// A scenario builds a graph of entities, flows and connectors, drives it
// with steps and checks the traced emissions and the final state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: and3
//	description: "Three-input AND built from two gates"
//	types:
//	  - types/and3.cue
//	flows:
//	  - name: and3
//	    type: test::and3
//	    entities:
//	      - { name: and1, type: logical::and }
//	      - { name: and2, type: logical::and }
//	    relations:
//	      - { from: and3.lhs, to: and1.lhs }
//	      - { from: and1.result, to: and2.rhs }
//	entities:
//	  - { name: probe, type: logical::not }
//	relations:
//	  - { from: and2.result, to: probe.lhs }
//	steps:
//	  - { set: and3.lhs, value: true }
//	  - { set_all: and1, values: { lhs: true, rhs: true } }
//	  - { tick: and1.result }
//	  - { disconnect: probe }
//	  - { reconnect: and1, behaviour: logical::and }
//	  - { expect: and3.result, value: false }
//	assertions:
//	  - { type: trace_contains, property: and1.result, value: true }
//	  - { type: trace_order, properties: [and1.result, and2.rhs] }
//	  - { type: trace_count, property: probe.lhs, count: 2 }
//	  - { type: final_state, entity: and1, expect: { result: true } }
//
// Entity names are global across the scenario. A flow's wrapper entity is
// named after the flow, and flow relations may only reference the flow's
// own members.
//
// # Assertion Types
//
//   - trace_contains: a property emitted a value at least once
//   - trace_order: the first emissions of properties appear in order
//   - trace_count: a property emitted exactly N times
//   - final_state: the stored snapshot of an entity contains expected values
//
// # Deterministic Testing
//
// Every run uses sequential entity ids, a deterministic trace clock and an
// in-memory SQLite store, so traces are identical across runs and can be
// compared with golden files (see RunWithGolden). Entities are traced as
// they are created, so each emission is listed before the emissions it
// causes.
//
// A graph whose connectors and gates form a propagation cycle is reported
// as warnings and not executed.
package harness
