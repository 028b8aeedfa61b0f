package compiler

import (
	"fmt"
	"slices"
	"strings"
)

// CycleWarning represents a propagation cycle between properties.
//
// Propagation is synchronous and a property's subscribers run under its
// emission lock, so a cycle blocks the first write that reaches it again.
// Cycles are still warnings, not errors: a gate may break the cycle at
// runtime by skipping its write.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["a.result", "b.lhs", "a.result"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// PropertyGraph maps a property node ("<owner>.<property>") to the nodes a
// write to it propagates to.
type PropertyGraph map[string][]string

// PropertyNode names the property of owner as a graph node.
func PropertyNode(owner, property string) string {
	return owner + "." + property
}

// AddEdge records that a write to from propagates to to.
func (g PropertyGraph) AddEdge(from, to string) {
	g[from] = append(g[from], to)
	if _, ok := g[to]; !ok {
		g[to] = nil
	}
}

// AnalyzeCycles performs static cycle analysis on a propagation graph.
//
// The algorithm:
//  1. Use Tarjan's algorithm to find strongly connected components
//  2. Report each SCC with size > 1 or self-loops as a potential cycle warning
//
// Warnings are ordered by their first node. A DAG returns an empty list.
func AnalyzeCycles(graph PropertyGraph) []CycleWarning {
	warnings := []CycleWarning{}
	if len(graph) == 0 {
		return warnings
	}

	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			slices.Sort(scc)
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph PropertyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of nodes.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph PropertyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		// Set the depth index for v
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		// Consider successors of v
		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				// Successor w has not yet been visited; recurse on it
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				// Successor w is on stack and hence in the current SCC
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	// Visit nodes in sorted order so paths are stable
	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
//
// The path shows the cycle sequence by reconstructing a path through the SCC.
// For self-loops, the path is [node, node].
// For multi-node cycles, the path shows a cycle traversal.
func cycleSCCToWarning(scc []string, graph PropertyGraph) CycleWarning {
	if len(scc) == 1 {
		node := scc[0]
		return CycleWarning{
			Path:    []string{node, node},
			Message: fmt.Sprintf("Property propagates to itself: %s -> %s", node, node),
			Level:   "warning",
		}
	}

	// Multi-node cycle - reconstruct a cycle path
	path := reconstructCyclePath(scc, graph)

	pathStr := strings.Join(path, " -> ")
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Propagation cycle detected: %s", pathStr),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: Start at first node in SCC, follow edges to other SCC members,
// continue until we return to start node.
func reconstructCyclePath(scc []string, graph PropertyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	// Build set of SCC members for fast lookup
	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	// Start at first node
	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	// Follow edges within SCC until we return to start
	for {
		visited[current] = true

		// Find next SCC member reachable from current
		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			// No more unvisited neighbors in SCC
			break
		}

		path = append(path, next)

		if next == start {
			// Completed the cycle
			break
		}

		current = next
	}

	return path
}
