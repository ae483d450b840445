// Package dag builds the task dependency graph from the state store and
// validates its acyclicity.
package dag

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/taskforge/taskforge/internal/state"
)

// NodeStatus is the status of a node in the task graph.
type NodeStatus string

const (
	StatusPending   NodeStatus = "pending"
	StatusCompleted NodeStatus = "completed"
)

// Node is one task's entry in the graph: its dependencies and status.
type Node struct {
	ID     string
	Deps   []string
	Status NodeStatus
}

// Graph is the task dependency graph, keyed by task id.
type Graph struct {
	Nodes map[string]*Node
	// Order is task ids in deterministic ascending order, used for
	// fairness in the scheduler's ready-set dispatch (§4.6).
	Order []string
}

// ReadySet returns the ids of tasks that are pending and whose every
// dependency is completed, in ascending id order.
func (g *Graph) ReadySet() []string {
	var ready []string
	for _, id := range g.Order {
		node := g.Nodes[id]
		if node.Status != StatusPending {
			continue
		}
		if g.depsCompleted(node) {
			ready = append(ready, id)
		}
	}
	return ready
}

func (g *Graph) depsCompleted(node *Node) bool {
	for _, dep := range node.Deps {
		depNode, ok := g.Nodes[dep]
		if !ok || depNode.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// IncompleteError is returned by Build when a task is missing a
// @dependencies line (stage 3 has not yet run for it).
type IncompleteError struct {
	TaskID string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("task %s is missing a @dependencies line", e.TaskID)
}

// CycleError is raised when the task graph contains a cycle. IDs holds the
// minimal cycle of task ids, not the full unresolved remainder.
type CycleError struct {
	IDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.IDs, " -> "))
}

var dependenciesLinePattern = regexp.MustCompile(`(?i)@dependencies\s*\[?([^\]\n]*)\]?`)

// ParseDependencies extracts the @dependencies declaration from a TASK.md
// body. The literal "none" (case-insensitive) yields an empty slice.
// Returns ok=false if no @dependencies line is present.
func ParseDependencies(taskFileContents string) (deps []string, ok bool) {
	match := dependenciesLinePattern.FindStringSubmatch(taskFileContents)
	if match == nil {
		return nil, false
	}

	raw := strings.TrimSpace(match[1])
	if raw == "" || strings.EqualFold(raw, "none") {
		return []string{}, true
	}

	for _, part := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' '
	}) {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		deps = append(deps, id)
	}
	return deps, true
}

// Build constructs the task graph from the state store, per §4.5:
//  1. List task folders, sorted by numeric id components.
//  2. Read TASK.md for each; require an @dependencies line.
//  3. Parse the dependency list, treating "none" as empty, deduplicating,
//     dropping self-references.
//  4. Expand each dependency D to also include every existing subtask
//     D.m, D.m.n, ...
//  5. Emit node statuses: completed if approved, else pending.
//  6. Validate acyclicity via topological sort; on cycle, extract and
//     report the minimal cycle.
func Build(store *state.Store) (*Graph, error) {
	ids, err := store.ListTasks()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	nodes := make(map[string]*Node, len(ids))
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	for _, id := range ids {
		content, err := store.ReadTaskFile(id)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", id, err)
		}

		rawDeps, ok := ParseDependencies(content)
		if !ok {
			return nil, &IncompleteError{TaskID: id}
		}

		deps := expandDeps(dedupeSelf(id, rawDeps), idSet)

		status := StatusPending
		if approved(store, id) {
			status = StatusCompleted
		}

		nodes[id] = &Node{ID: id, Deps: deps, Status: status}
	}

	graph := &Graph{Nodes: nodes, Order: ids}

	if cycle := findCycle(graph); cycle != nil {
		return nil, &CycleError{IDs: cycle}
	}

	return graph, nil
}

func approved(store *state.Store, id string) bool {
	record, err := store.ReadExecution(id)
	if err != nil {
		return false
	}
	return record.IsCompleted() && store.HasApprovedReview(id)
}

func dedupeSelf(self string, deps []string) []string {
	seen := make(map[string]bool, len(deps))
	var out []string
	for _, d := range deps {
		if d == self || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// expandDeps widens each declared dependency D to include every subtask
// D.m, D.m.n, ... that currently exists as a task folder.
func expandDeps(deps []string, idSet map[string]bool) []string {
	seen := make(map[string]bool, len(deps))
	var out []string
	for _, d := range deps {
		if !idSet[d] {
			continue
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
		prefix := d + "."
		for id := range idSet {
			if strings.HasPrefix(id, prefix) && !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}

// findCycle runs Kahn's algorithm; if any nodes remain unresolved, it runs
// a DFS restricted to exactly those nodes to extract one concrete cycle
// for the error message, rather than reporting the whole remainder.
func findCycle(g *Graph) []string {
	inDegree := make(map[string]int, len(g.Nodes))
	dependents := make(map[string][]string, len(g.Nodes))
	for id, node := range g.Nodes {
		inDegree[id] = 0
		_ = node
	}
	for id, node := range g.Nodes {
		for _, dep := range node.Deps {
			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	resolved := make(map[string]bool, len(g.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		resolved[id] = true

		var next []string
		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				next = append(next, dep)
			}
		}
		sort.Strings(next)
		queue = append(queue, next...)
	}

	if len(resolved) == len(g.Nodes) {
		return nil
	}

	var remainder []string
	for id := range g.Nodes {
		if !resolved[id] {
			remainder = append(remainder, id)
		}
	}
	sort.Strings(remainder)

	return extractCycle(g, remainder)
}

// extractCycle runs a DFS restricted to the unresolved remainder to find
// one concrete loop of task ids.
func extractCycle(g *Graph, remainder []string) []string {
	inRemainder := make(map[string]bool, len(remainder))
	for _, id := range remainder {
		inRemainder[id] = true
	}

	visiting := make(map[string]bool)
	visited := make(map[string]bool)
	var path []string

	var dfs func(id string) []string
	dfs = func(id string) []string {
		visiting[id] = true
		path = append(path, id)

		for _, dep := range g.Nodes[id].Deps {
			if !inRemainder[dep] {
				continue
			}
			if visiting[dep] {
				// Found the loop: slice path from dep's first occurrence.
				for i, p := range path {
					if p == dep {
						cycle := append([]string{}, path[i:]...)
						return append(cycle, dep)
					}
				}
			}
			if !visited[dep] {
				if cycle := dfs(dep); cycle != nil {
					return cycle
				}
			}
		}

		path = path[:len(path)-1]
		visiting[id] = false
		visited[id] = true
		return nil
	}

	for _, id := range remainder {
		if !visited[id] {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return remainder
}
