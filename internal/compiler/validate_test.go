package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/types"
	"github.com/roach88/rgraph/internal/value"
)

func codes(errs []ValidationError) []string {
	out := []string{}
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidate_Clean(t *testing.T) {
	r, errs := CompileSource("types.cue", logicalTypes+connectorTypes[len("\npackage types\n"):], LoadModeFailFast)
	require.Empty(t, errs)
	assert.Empty(t, Validate(r, nil))
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "unknown component",
			src:  `entity: "logical::and": components: ["logical::and"]`,
			want: []string{ErrUnknownComponent},
		},
		{
			name: "unknown wrapper",
			src:  `flow: "logical::and3": wrapper: "logical::and"`,
			want: []string{ErrUnknownWrapper},
		},
		{
			name: "unknown endpoint",
			src:  `relation: "core::link": {outbound: "logical::and", inbound: "*"}`,
			want: []string{ErrUnknownEndpoint},
		},
		{
			name: "conflicting property",
			src: `
				component: "a::b": properties: value: bool
				entity: "a::e": {components: ["a::b"], properties: value: string}
			`,
			want: []string{ErrConflictingProp},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, errs := CompileSource("types.cue", tt.src, LoadModeFailFast)
			require.Empty(t, errs)
			assert.Equal(t, tt.want, codes(Validate(r, nil)))
		})
	}
}

func TestValidate_KnownRegistry(t *testing.T) {
	reg := types.NewRegistry()
	and := typeid.NewComponentTypeID("logical", "and")
	require.NoError(t, reg.AddComponent(types.Component{Type: and}))
	require.NoError(t, reg.AddEntityType(types.EntityType{Type: typeid.NewEntityTypeID("logical", "and"), Components: []typeid.ComponentTypeID{and}}))

	r, errs := CompileSource("types.cue", `
		entity: "logical::or": components: ["logical::and"]
		flow: "logical::and3": wrapper: "logical::and"
	`, LoadModeFailFast)
	require.Empty(t, errs)
	assert.Empty(t, Validate(r, reg))
}

func TestValidate_DuplicatesAndDefaults(t *testing.T) {
	c := types.Component{
		Type:       typeid.NewComponentTypeID("a", "b"),
		Properties: []typeid.PropertyType{typeid.NewPropertyType("n", typeid.DataTypeNumber).WithDefault(value.String("x"))},
	}
	r := &Result{Components: []types.Component{c, c}}

	errs := Validate(r, nil)
	assert.Equal(t, []string{ErrDefaultNotAccepted, ErrDuplicateType, ErrDefaultNotAccepted}, codes(errs))
	assert.Contains(t, errs[1].Error(), "[E114] component.a::b")
}
