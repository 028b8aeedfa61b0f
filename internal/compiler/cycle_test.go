package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeCycles(t *testing.T) {
	tests := []struct {
		name  string
		edges [][2]string
		paths [][]string
	}{
		{
			name:  "empty",
			paths: [][]string{},
		},
		{
			name:  "chain",
			edges: [][2]string{{"a.result", "b.lhs"}, {"b.lhs", "b.result"}, {"b.result", "c.lhs"}},
			paths: [][]string{},
		},
		{
			name:  "self loop",
			edges: [][2]string{{"a.value", "a.value"}},
			paths: [][]string{{"a.value", "a.value"}},
		},
		{
			name: "two node cycle",
			edges: [][2]string{
				{"a.result", "b.lhs"}, {"b.lhs", "b.result"}, {"b.result", "a.lhs"}, {"a.lhs", "a.result"},
			},
			paths: [][]string{{"a.lhs", "a.result", "b.lhs", "b.result", "a.lhs"}},
		},
		{
			name: "two separate cycles",
			edges: [][2]string{
				{"x.out", "y.in"}, {"y.in", "x.out"},
				{"a.out", "b.in"}, {"b.in", "a.out"},
			},
			paths: [][]string{{"a.out", "b.in", "a.out"}, {"x.out", "y.in", "x.out"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := PropertyGraph{}
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}
			warnings := AnalyzeCycles(g)
			paths := [][]string{}
			for _, w := range warnings {
				assert.Equal(t, "warning", w.Level)
				paths = append(paths, w.Path)
			}
			assert.Equal(t, tt.paths, paths)
		})
	}
}

func TestAnalyzeCycles_Message(t *testing.T) {
	g := PropertyGraph{}
	g.AddEdge(PropertyNode("a", "result"), PropertyNode("b", "lhs"))
	g.AddEdge(PropertyNode("b", "lhs"), PropertyNode("a", "result"))

	warnings := AnalyzeCycles(g)
	require.Len(t, warnings, 1)
	assert.Equal(t, "Propagation cycle detected: a.result -> b.lhs -> a.result", warnings[0].Message)
}
