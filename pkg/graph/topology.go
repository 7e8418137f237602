package graph

import (
	"fmt"
	"sort"
)

// TopologicalOrder returns nodes so that every dependency precedes its
// dependents, using Kahn's algorithm. Ties are broken by discovery order.
func (g *Graph) TopologicalOrder() ([]Node, error) {
	return topologicalOrder(g.nodes)
}

func topologicalOrder(nodes []Node) ([]Node, error) {
	inDegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		inDegree[n.ID()] = len(n.Dependencies())
	}

	// Ready queue kept sorted by discovery index
	var ready []Node
	for _, n := range nodes {
		if inDegree[n.ID()] == 0 {
			ready = append(ready, n)
		}
	}

	sorted := make([]Node, 0, len(nodes))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		sorted = append(sorted, current)

		for _, dep := range current.Dependents() {
			inDegree[dep.ID()]--
			if inDegree[dep.ID()] == 0 {
				i := sort.Search(len(ready), func(i int) bool { return ready[i].Index() > dep.Index() })
				ready = append(ready, nil)
				copy(ready[i+1:], ready[i:])
				ready[i] = dep
			}
		}
	}

	if len(sorted) != len(nodes) {
		return nil, constructionError("sort", "", ErrCycle,
			fmt.Sprintf("%d of %d nodes unreachable by topological order", len(nodes)-len(sorted), len(nodes)))
	}
	return sorted, nil
}
