package graph

import "slices"

// FindCycle returns the task ids of one cycle in edges, first id repeated at
// the end, or nil when the edge set is acyclic. Traversal order is
// deterministic: nodes and their dependencies are visited in ascending id order.
func FindCycle(edges []Edge) []int64 {
	adj := make(map[int64][]int64)
	for _, e := range edges {
		adj[e.TaskID] = append(adj[e.TaskID], e.DependsOnID)
	}
	nodes := make([]int64, 0, len(adj))
	for id, deps := range adj {
		slices.Sort(deps)
		nodes = append(nodes, id)
	}
	slices.Sort(nodes)

	const (
		white = iota
		grey
		black
	)
	color := make(map[int64]int, len(adj))
	var stack []int64

	var visit func(id int64) []int64
	visit = func(id int64) []int64 {
		color[id] = grey
		stack = append(stack, id)
		for _, next := range adj[id] {
			switch color[next] {
			case grey:
				start := slices.Index(stack, next)
				cycle := slices.Clone(stack[start:])
				return append(cycle, next)
			case white:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, id := range nodes {
		if color[id] == white {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
