package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a propagation scenario: a graph to build, steps to run
// against it, and assertions on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Types lists CUE files or directories with additional types.
	// Paths are relative to the scenario file location.
	Types []string `yaml:"types,omitempty"`

	// TypesSource is inline CUE with additional types.
	TypesSource string `yaml:"types_source,omitempty"`

	// Entities are created first, in order.
	Entities []EntitySpec `yaml:"entities,omitempty"`

	// Flows are created after the entities.
	Flows []FlowSpec `yaml:"flows,omitempty"`

	// Relations connect properties of any named entities, flow members
	// included.
	Relations []RelationSpec `yaml:"relations,omitempty"`

	// Steps run after every behaviour is connected.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// EntitySpec declares a named entity.
type EntitySpec struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	Properties map[string]any `yaml:"properties,omitempty"`
}

// RelationSpec declares a connector from one entity property to another.
// From and To have the form "entity.property".
type RelationSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`

	// Type is the connector relation type. Default: core::connector.
	Type string `yaml:"type,omitempty"`
}

// FlowSpec declares a flow. Its wrapper entity is named after the flow.
type FlowSpec struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	Properties map[string]any `yaml:"properties,omitempty"`
	Entities   []EntitySpec   `yaml:"entities,omitempty"`
	Relations  []RelationSpec `yaml:"relations,omitempty"`
}

// Step is one action. Exactly one of the action fields is set.
type Step struct {
	// Set writes Value to a property ("entity.property").
	Set string `yaml:"set,omitempty"`

	// SetAll seeds Values on an entity and ticks them in key order.
	SetAll string `yaml:"set_all,omitempty"`

	// Tick re-emits a property ("entity.property").
	Tick string `yaml:"tick,omitempty"`

	// Connect, Disconnect and Reconnect drive the behaviours of an entity.
	// Behaviour selects one behaviour; empty means all of them, except for
	// Reconnect where it is required.
	Connect    string `yaml:"connect,omitempty"`
	Disconnect string `yaml:"disconnect,omitempty"`
	Reconnect  string `yaml:"reconnect,omitempty"`
	Behaviour  string `yaml:"behaviour,omitempty"`

	// Expect checks that a property ("entity.property") equals Value.
	Expect string `yaml:"expect,omitempty"`

	Value  any            `yaml:"value,omitempty"`
	Values map[string]any `yaml:"values,omitempty"`
}

// Step actions.
const (
	ActionSet        = "set"
	ActionSetAll     = "set_all"
	ActionTick       = "tick"
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
	ActionReconnect  = "reconnect"
	ActionExpect     = "expect"
)

// Action returns the step's action and target. ok is false unless exactly
// one action field is set.
func (s Step) Action() (action, target string, ok bool) {
	fields := []struct{ action, target string }{
		{ActionSet, s.Set},
		{ActionSetAll, s.SetAll},
		{ActionTick, s.Tick},
		{ActionConnect, s.Connect},
		{ActionDisconnect, s.Disconnect},
		{ActionReconnect, s.Reconnect},
		{ActionExpect, s.Expect},
	}
	n := 0
	for _, f := range fields {
		if f.target != "" {
			action, target = f.action, f.target
			n++
		}
	}
	return action, target, n == 1
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Property emitted Value at least once
	// - "trace_order": Properties emitted in the given order
	// - "trace_count": Property emitted exactly Count times
	// - "final_state": Entity's stored snapshot contains Expect
	Type string `yaml:"type"`

	// Property is "entity.property" (trace_contains, trace_count).
	Property string `yaml:"property,omitempty"`

	// Value is the emitted value to look for (trace_contains). When nil
	// any value matches.
	Value any `yaml:"value,omitempty"`

	// Count is the expected number of emissions (trace_count).
	Count int `yaml:"count,omitempty"`

	// Properties is the expected emission order (trace_order).
	Properties []string `yaml:"properties,omitempty"`

	// Entity names the entity (final_state).
	Entity string `yaml:"entity,omitempty"`

	// Expect contains expected property values (final_state).
	// Subset match - only specified properties are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. Type paths are
// resolved relative to the file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving type paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario parses scenario YAML, resolving type paths relative to
// basePath.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "step:" vs "steps:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, p := range scenario.Types {
		if !filepath.IsAbs(p) && basePath != "" {
			scenario.Types[i] = filepath.Join(basePath, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, p := range s.Types {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("types path not found: %s", p)
		}
	}

	names := map[string]bool{}
	declare := func(field, name, ty string) error {
		switch {
		case name == "":
			return fmt.Errorf("%s: name is required", field)
		case strings.Contains(name, "."):
			return fmt.Errorf("%s: name %q must not contain '.'", field, name)
		case names[name]:
			return fmt.Errorf("%s: duplicate name %q", field, name)
		case ty == "":
			return fmt.Errorf("%s: type is required", field)
		}
		names[name] = true
		return nil
	}
	for i, e := range s.Entities {
		if err := declare(fmt.Sprintf("entities[%d]", i), e.Name, e.Type); err != nil {
			return err
		}
	}
	for i, f := range s.Flows {
		if err := declare(fmt.Sprintf("flows[%d]", i), f.Name, f.Type); err != nil {
			return err
		}
		for j, e := range f.Entities {
			if err := declare(fmt.Sprintf("flows[%d].entities[%d]", i, j), e.Name, e.Type); err != nil {
				return err
			}
		}
		for j, r := range f.Relations {
			if err := validateRelation(fmt.Sprintf("flows[%d].relations[%d]", i, j), r); err != nil {
				return err
			}
		}
	}
	for i, r := range s.Relations {
		if err := validateRelation(fmt.Sprintf("relations[%d]", i), r); err != nil {
			return err
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateRelation(field string, r RelationSpec) error {
	if _, _, err := splitRef(r.From); err != nil {
		return fmt.Errorf("%s.from: %w", field, err)
	}
	if _, _, err := splitRef(r.To); err != nil {
		return fmt.Errorf("%s.to: %w", field, err)
	}
	return nil
}

func validateStep(index int, s Step) error {
	action, target, ok := s.Action()
	if !ok {
		return fmt.Errorf("steps[%d]: exactly one action is required", index)
	}
	switch action {
	case ActionSet, ActionExpect:
		if _, _, err := splitRef(target); err != nil {
			return fmt.Errorf("steps[%d].%s: %w", index, action, err)
		}
		if s.Value == nil {
			return fmt.Errorf("steps[%d]: value is required for %s", index, action)
		}
	case ActionTick:
		if _, _, err := splitRef(target); err != nil {
			return fmt.Errorf("steps[%d].%s: %w", index, action, err)
		}
	case ActionSetAll:
		if len(s.Values) == 0 {
			return fmt.Errorf("steps[%d]: values is required for set_all", index)
		}
	case ActionReconnect:
		if s.Behaviour == "" {
			return fmt.Errorf("steps[%d]: behaviour is required for reconnect", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Property == "" {
			return fmt.Errorf("assertions[%d]: property is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Properties) == 0 {
			return fmt.Errorf("assertions[%d]: properties list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Property == "" {
			return fmt.Errorf("assertions[%d]: property is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// splitRef splits "entity.property".
func splitRef(ref string) (entity, property string, err error) {
	entity, property, ok := strings.Cut(ref, ".")
	if !ok || entity == "" || property == "" {
		return "", "", fmt.Errorf("reference %q must have the form entity.property", ref)
	}
	return entity, property, nil
}
