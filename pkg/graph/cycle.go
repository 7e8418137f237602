package graph

// Cycle is a detected cycle as a sequence of node IDs
type Cycle []string

// FindCycle returns the first cycle found, or nil for a DAG.
//
// Algorithm: depth-first search over dependents with three colors:
//   - WHITE (0): unvisited
//   - GRAY (1): on the current DFS path
//   - BLACK (2): all descendants explored
//
// Reaching a GRAY node means a back edge, which closes a cycle. Roots are
// tried in discovery order so the reported cycle is deterministic.
func (g *Graph) FindCycle() Cycle {
	return findCycle(g.nodes)
}

func findCycle(nodes []Node) Cycle {
	const (
		WHITE = 0
		GRAY  = 1
		BLACK = 2
	)

	color := make(map[string]int, len(nodes))
	parent := make(map[string]string, len(nodes))

	// Iterative DFS; deep request chains would otherwise grow the stack.
	type frame struct {
		node Node
		next int
	}

	for _, start := range nodes {
		if color[start.ID()] != WHITE {
			continue
		}
		stack := []frame{{node: start}}
		color[start.ID()] = GRAY

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			dependents := top.node.Dependents()
			if top.next >= len(dependents) {
				color[top.node.ID()] = BLACK
				stack = stack[:len(stack)-1]
				continue
			}
			neighbor := dependents[top.next]
			top.next++

			switch color[neighbor.ID()] {
			case WHITE:
				parent[neighbor.ID()] = top.node.ID()
				color[neighbor.ID()] = GRAY
				stack = append(stack, frame{node: neighbor})
			case GRAY:
				return extractCycle(neighbor.ID(), top.node.ID(), parent)
			}
		}
	}
	return nil
}

// extractCycle reconstructs the cycle from parent pointers given a back
// edge from end to start.
func extractCycle(start, end string, parent map[string]string) Cycle {
	cycle := Cycle{start}
	if start == end {
		return cycle
	}
	var path []string
	for current := end; current != start; {
		path = append(path, current)
		p, ok := parent[current]
		if !ok {
			break
		}
		current = p
	}
	for i := len(path) - 1; i >= 0; i-- {
		cycle = append(cycle, path[i])
	}
	return cycle
}
