// Package graph builds the single-rooted dependency graph of a page load:
// which requests and main-thread tasks cannot start until others finish.
package graph

import (
	"sort"
)

// Graph is an immutable DAG over network, CPU and checkpoint nodes
type Graph struct {
	root  Node
	nodes []Node
	byID  map[string]Node

	// RelaxedLinks counts initiator references that could not be resolved
	// and were attached to the root instead.
	RelaxedLinks int
}

func newGraph(root Node, nodes []Node) *Graph {
	g := &Graph{root: root, nodes: nodes, byID: make(map[string]Node, len(nodes))}
	for _, n := range nodes {
		g.byID[n.ID()] = n
	}
	return g
}

// Root returns the root document request
func (g *Graph) Root() Node {
	return g.root
}

// Nodes returns all nodes in discovery order. The slice must not be modified.
func (g *Graph) Nodes() []Node {
	return g.nodes
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node looks a node up by ID
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Checkpoint returns the named checkpoint node, if the builder created one
func (g *Graph) Checkpoint(name string) (*CheckpointNode, bool) {
	n, ok := g.byID[CheckpointID(name)]
	if !ok {
		return nil, false
	}
	cp, ok := n.(*CheckpointNode)
	return cp, ok
}

// NetworkNodes returns the request nodes in discovery order
func (g *Graph) NetworkNodes() []*NetworkNode {
	var out []*NetworkNode
	for _, n := range g.nodes {
		if nn, ok := n.(*NetworkNode); ok {
			out = append(out, nn)
		}
	}
	return out
}

// CPUNodes returns the task nodes in discovery order
func (g *Graph) CPUNodes() []*CPUNode {
	var out []*CPUNode
	for _, n := range g.nodes {
		if cn, ok := n.(*CPUNode); ok {
			out = append(out, cn)
		}
	}
	return out
}

// EdgeCount returns the number of dependency edges
func (g *Graph) EdgeCount() int {
	count := 0
	for _, n := range g.nodes {
		count += len(n.Dependencies())
	}
	return count
}

// Traverse visits nodes reachable from the root breadth first, following
// dependents in insertion order. Each node is visited once.
func (g *Graph) Traverse(visit func(Node)) {
	if g.root == nil {
		return
	}
	seen := map[string]bool{g.root.ID(): true}
	queue := []Node{g.root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		visit(current)
		for _, next := range current.Dependents() {
			if !seen[next.ID()] {
				seen[next.ID()] = true
				queue = append(queue, next)
			}
		}
	}
}

// Ancestors returns every node n transitively depends on, in discovery order
func (g *Graph) Ancestors(n Node) []Node {
	seen := map[string]bool{}
	stack := append([]Node(nil), n.Dependencies()...)
	var out []Node
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[current.ID()] {
			continue
		}
		seen[current.ID()] = true
		out = append(out, current)
		stack = append(stack, current.Dependencies()...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index() < out[j].Index() })
	return out
}
