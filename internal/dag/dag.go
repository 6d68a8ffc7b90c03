// Package dag holds the model dependency graph: which models reference which,
// cycle detection, and topological ordering for compilation.
package dag

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// Graph is a directed acyclic graph of model nodes keyed by name. Edges point
// from a dependency to its dependents.
type Graph struct {
	nodes    map[string]*core.Node
	children map[string][]string
	parents  map[string][]string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*core.Node),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// Add registers a node. Re-adding a name replaces the stored node.
func (g *Graph) Add(node *core.Node) {
	if _, ok := g.nodes[node.Name]; !ok {
		g.children[node.Name] = nil
		g.parents[node.Name] = nil
	}
	g.nodes[node.Name] = node
}

// AddDependency records that child depends on parent. Both must already be
// registered; self-references are rejected.
func (g *Graph) AddDependency(parent, child string) error {
	if _, ok := g.nodes[parent]; !ok {
		return fmt.Errorf("unknown node %q", parent)
	}
	if _, ok := g.nodes[child]; !ok {
		return fmt.Errorf("unknown node %q", child)
	}
	if parent == child {
		return fmt.Errorf("model %q references itself", child)
	}
	if !contains(g.children[parent], child) {
		g.children[parent] = append(g.children[parent], child)
	}
	if !contains(g.parents[child], parent) {
		g.parents[child] = append(g.parents[child], parent)
	}
	return nil
}

// Node returns the registered node for a name.
func (g *Graph) Node(name string) (*core.Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Parents returns the names a node depends on.
func (g *Graph) Parents(name string) []string {
	return g.parents[name]
}

// Children returns the names depending on a node.
func (g *Graph) Children(name string) []string {
	return g.children[name]
}

// Len returns the number of registered nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// HasCycle reports whether the graph contains a cycle, returning one such
// cycle path when it does.
func (g *Graph) HasCycle() (bool, []string) {
	const (
		unvisited = iota
		inStack
		done
	)
	state := make(map[string]int)
	prev := make(map[string]string)

	var cycle []string
	var dfs func(name string) bool
	dfs = func(name string) bool {
		state[name] = inStack
		for _, child := range g.children[name] {
			switch state[child] {
			case unvisited:
				prev[child] = name
				if dfs(child) {
					return true
				}
			case inStack:
				cycle = []string{child}
				for cur := name; cur != child; cur = prev[cur] {
					cycle = append([]string{cur}, cycle...)
				}
				cycle = append([]string{child}, cycle...)
				return true
			}
		}
		state[name] = done
		return false
	}

	for _, name := range g.sortedNames() {
		if state[name] == unvisited && dfs(name) {
			return true, cycle
		}
	}
	return false, nil
}

// Sort returns the nodes in dependency order: every node appears after
// everything it depends on. The order is deterministic.
func (g *Graph) Sort() ([]*core.Node, error) {
	if ok, cycle := g.HasCycle(); ok {
		return nil, fmt.Errorf("dependency cycle: %v", cycle)
	}

	visited := make(map[string]bool)
	var out []*core.Node
	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, parent := range sorted(g.parents[name]) {
			visit(parent)
		}
		out = append(out, g.nodes[name])
	}

	for _, name := range g.sortedNames() {
		visit(name)
	}
	return out, nil
}

// Downstream returns the given names plus everything that transitively
// depends on them, sorted.
func (g *Graph) Downstream(names []string) []string {
	affected := make(map[string]bool)
	var mark func(name string)
	mark = func(name string) {
		if affected[name] {
			return
		}
		affected[name] = true
		for _, child := range g.children[name] {
			mark(child)
		}
	}
	for _, name := range names {
		if _, ok := g.nodes[name]; ok {
			mark(name)
		}
	}

	out := make([]string, 0, len(affected))
	for name := range affected {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (g *Graph) sortedNames() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func contains(in []string, s string) bool {
	for _, v := range in {
		if v == s {
			return true
		}
	}
	return false
}
