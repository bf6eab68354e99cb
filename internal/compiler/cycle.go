package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/nestwrite/internal/ir"
)

// CycleWarning represents a type-level write-order cycle in the schema.
//
// Cycles are warnings, not errors, because only some instances form a real
// cycle: the planner rejects those at request time, when two new rows each
// need the other's key.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["employees", "offices", "employees"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static cycle analysis on the relationship schema.
//
// The algorithm:
//  1. Build entity -> prerequisite graph: belongs_to makes the owner depend
//     on each target; has_one/has_many make the target depend on the owner
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 as a warning, self-loops as info
//
// many_to_many relationships add no edges: the join row is written after
// both endpoints exist. A DAG returns an empty warning list.
func AnalyzeCycles(reg *ir.Registry) []CycleWarning {
	graph := buildDependencyGraph(reg)

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

// dependencyGraph maps entity -> entities that must be written first.
type dependencyGraph map[string][]string

func buildDependencyGraph(reg *ir.Registry) dependencyGraph {
	graph := make(dependencyGraph)
	addEdge := func(from, to string) {
		if _, ok := reg.Entity(to); !ok {
			return
		}
		if !slices.Contains(graph[from], to) {
			graph[from] = append(graph[from], to)
		}
	}

	for _, e := range reg.Entities() {
		// Ensure node exists in graph
		if graph[e.Name] == nil {
			graph[e.Name] = []string{}
		}
		for _, rel := range e.Relationships {
			switch rel.Cardinality {
			case ir.ToOneOwning:
				for _, target := range rel.Targets() {
					addEdge(e.Name, target)
				}
			case ir.ToOneOwned, ir.ToManyOwned:
				if _, ok := reg.Entity(rel.Target); ok {
					if graph[rel.Target] == nil {
						graph[rel.Target] = []string{}
					}
					addEdge(rel.Target, e.Name)
				}
			}
		}
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of entity names.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph) [][]string {
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
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	// Visit all nodes in name order so results are deterministic
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
// For self-loops, the path is [entity, entity].
// For multi-node cycles, the path shows a cycle traversal.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		// Self-loop: only a row referencing itself would cycle
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Self-referencing relationship: %s → %s", name, name),
			Level:   "info",
		}
	}

	// Multi-node cycle - reconstruct a cycle path
	path := reconstructCyclePath(scc, graph)

	pathStr := strings.Join(path, " → ")
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Potential write-order cycle: %s", pathStr),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: Start at first node in SCC, follow edges to other SCC members,
// continue until we return to start node.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
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
