package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/types"
)

const logicalTypes = `
package types

component: "logical::and": properties: {
	lhs:    *false | bool
	rhs:    *false | bool
	result: *false | bool
}

entity: "logical::and": components: ["logical::and"]

flow: "logical::and3": wrapper: "logical::and"
`

const connectorTypes = `
package types

component: "core::connector": {
	properties: {
		outbound_property_name: string
		inbound_property_name:  string
	}
	immutable: ["outbound_property_name", "inbound_property_name"]
}

relation: "core::connector": components: ["core::connector"]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "logical.cue", logicalTypes)
	writeFile(t, dir, "connector.cue", connectorTypes)

	r, errs := LoadDir(dir, LoadModeFailFast)
	require.Empty(t, errs)
	assert.Equal(t, 2, r.FileCount)
	assert.Len(t, r.Components, 2)
	assert.Len(t, r.EntityTypes, 1)
	assert.Len(t, r.RelationTypes, 1)
	assert.Len(t, r.FlowTypes, 1)

	reg := types.NewRegistry()
	require.NoError(t, r.Apply(reg))
	props, err := reg.EntityProperties(typeid.NewEntityTypeID("logical", "and"))
	require.NoError(t, err)
	assert.Len(t, props, 3)
	_, ok := reg.FlowType(typeid.NewFlowTypeID("logical", "and3"))
	assert.True(t, ok)
}

func TestLoadDir_Errors(t *testing.T) {
	tests := []struct {
		name string
		dir  func(t *testing.T) string
		code string
	}{
		{"missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") }, ErrCodeNotFound},
		{"empty", func(t *testing.T) string { return t.TempDir() }, ErrCodeNoFiles},
		{"file", func(t *testing.T) string { return writeFile(t, t.TempDir(), "x.cue", logicalTypes) }, ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := LoadDir(tt.dir(t), LoadModeFailFast)
			require.Len(t, errs, 1)
			var lerr *LoadError
			require.ErrorAs(t, errs[0], &lerr)
			assert.Equal(t, tt.code, lerr.Code)
		})
	}
}

func TestCompileSource_CollectAll(t *testing.T) {
	src := `
		component: "and": properties: lhs: bool
		entity: "logical::and": components: ["logical::and"]
		flow: "logical::and3": description: "no wrapper"
	`
	r, errs := CompileSource("bad.cue", src, LoadModeCollectAll)
	require.Len(t, errs, 2)
	assert.Len(t, r.EntityTypes, 1)

	var codes []string
	for _, err := range errs {
		var lerr *LoadError
		require.True(t, errors.As(err, &lerr))
		codes = append(codes, lerr.Code)
	}
	assert.Equal(t, []string{ErrCodeInvalidName, ErrCodeMissingWrapper}, codes)
	assert.Contains(t, errs[1].Error(), "flow.logical::and3")

	_, errs = CompileSource("bad.cue", src, LoadModeFailFast)
	assert.Len(t, errs, 1)
}

func TestCompileSource_Syntax(t *testing.T) {
	_, errs := CompileSource("broken.cue", "component: {", LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "broken.cue")
}

func TestCompileSource_NoTypes(t *testing.T) {
	_, errs := CompileSource("empty.cue", "other: 1", LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no component")
}

func TestLoadPaths_MergesFilesAndDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "logical.cue", logicalTypes)
	file := writeFile(t, t.TempDir(), "connector.cue", connectorTypes)

	r, errs := LoadPaths([]string{dir, file}, LoadModeFailFast)
	require.Empty(t, errs)
	assert.Equal(t, 2, r.FileCount)
	assert.Len(t, r.Components, 2)

	reg := types.NewRegistry()
	require.NoError(t, r.Apply(reg))
	props, err := reg.RelationProperties(typeid.NewRelationTypeID("core", "connector"))
	require.NoError(t, err)
	require.Len(t, props, 2)
	assert.False(t, props[0].IsMutable())
}

func TestResult_ApplyJoinsErrors(t *testing.T) {
	r, errs := CompileSource("types.cue", logicalTypes, LoadModeFailFast)
	require.Empty(t, errs)

	reg := types.NewRegistry()
	require.NoError(t, r.Apply(reg))
	err := r.Apply(reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTypeExists)
}
