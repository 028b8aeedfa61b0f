package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/types"
	"github.com/roach88/rgraph/internal/value"
)

func lookup(t *testing.T, src string, path ...string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	sels := make([]cue.Selector, len(path))
	for i, p := range path {
		sels[i] = cue.Str(p)
	}
	return v.LookupPath(cue.MakePath(sels...))
}

func TestCompileComponent(t *testing.T) {
	v := lookup(t, `
		component: "logical::and": {
			description: "Logical AND"
			properties: {
				lhs:    *false | bool
				rhs:    *false | bool
				result: bool
				label:  null | string
				ratio:  0.5
				count:  *3 | int
				tags:   [...string]
				meta:   {...}
				any:    _
			}
			immutable: ["label"]
		}
	`, "component", "logical::and")

	c, err := CompileComponent("logical::and", v)
	require.NoError(t, err)

	assert.Equal(t, typeid.NewComponentTypeID("logical", "and"), c.Type)
	assert.Equal(t, "Logical AND", c.Description)

	byName := map[string]typeid.PropertyType{}
	var names []string
	for _, pt := range c.Properties {
		byName[pt.Name] = pt
		names = append(names, pt.Name)
	}
	assert.Equal(t, []string{"lhs", "rhs", "result", "label", "ratio", "count", "tags", "meta", "any"}, names)

	tests := []struct {
		name     string
		dataType typeid.DataType
		def      value.Value
	}{
		{"lhs", typeid.DataTypeBool, value.Bool(false)},
		{"result", typeid.DataTypeBool, value.Bool(false)},
		{"label", typeid.DataTypeString, value.String("")},
		{"ratio", typeid.DataTypeNumber, value.Float(0.5)},
		{"count", typeid.DataTypeNumber, value.Int(3)},
		{"tags", typeid.DataTypeArray, value.Array{}},
		{"meta", typeid.DataTypeObject, value.Object{}},
		{"any", typeid.DataTypeAny, value.Null{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt := byName[tt.name]
			assert.Equal(t, tt.dataType, pt.DataType)
			assert.Equal(t, tt.def, pt.DefaultValue())
		})
	}
	assert.False(t, byName["label"].IsMutable())
	assert.True(t, byName["lhs"].IsMutable())
}

func TestCompileComponent_Errors(t *testing.T) {
	tests := []struct {
		name  string
		label string
		src   string
		field string
	}{
		{
			name:  "missing namespace",
			label: "and",
			src:   `component: "and": properties: lhs: bool`,
			field: "name",
		},
		{
			name:  "mixed kinds",
			label: "logical::and",
			src:   `component: "logical::and": properties: lhs: int | string`,
			field: "type",
		},
		{
			name:  "undeclared immutable",
			label: "logical::and",
			src:   `component: "logical::and": {properties: lhs: bool, immutable: ["rhs"]}`,
			field: "immutable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileComponent(tt.label, lookup(t, tt.src, "component", tt.label))
			require.Error(t, err)
			var cerr *CompileError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestCompileEntityType(t *testing.T) {
	v := lookup(t, `
		entity: "logical::and": {
			components: ["logical::and"]
			properties: name: *"gate" | string
		}
	`, "entity", "logical::and")

	et, err := CompileEntityType("logical::and", v)
	require.NoError(t, err)
	assert.Equal(t, []typeid.ComponentTypeID{typeid.NewComponentTypeID("logical", "and")}, et.Components)
	require.Len(t, et.Properties, 1)
	assert.Equal(t, value.String("gate"), et.Properties[0].DefaultValue())
}

func TestCompileRelationType(t *testing.T) {
	v := lookup(t, `
		relation: "core::connector": {
			outbound: "logical::and"
			components: ["core::connector"]
		}
	`, "relation", "core::connector")

	rt, err := CompileRelationType("core::connector", v)
	require.NoError(t, err)
	assert.Equal(t, "logical::and", rt.Outbound)
	assert.Equal(t, types.Wildcard, rt.Inbound)
	assert.True(t, rt.AcceptsInbound(typeid.NewEntityTypeID("x", "y")))
	assert.False(t, rt.AcceptsOutbound(typeid.NewEntityTypeID("x", "y")))

	_, err = CompileRelationType("core::connector", lookup(t, `relation: "core::connector": inbound: "nope"`, "relation", "core::connector"))
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "inbound", cerr.Field)
}

func TestCompileFlowType(t *testing.T) {
	v := lookup(t, `
		flow: "logical::and3": {
			wrapper: "logical::and"
			variables: threshold: *2 | int
		}
	`, "flow", "logical::and3")

	ft, err := CompileFlowType("logical::and3", v)
	require.NoError(t, err)
	assert.Equal(t, typeid.NewEntityTypeID("logical", "and"), ft.Wrapper)
	require.Len(t, ft.Variables, 1)
	assert.Equal(t, value.Int(2), ft.Variables[0].DefaultValue())

	_, err = CompileFlowType("logical::and3", lookup(t, `flow: "logical::and3": description: "x"`, "flow", "logical::and3"))
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "wrapper", cerr.Field)
	assert.Contains(t, err.Error(), "wrapper is required")
}
