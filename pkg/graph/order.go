package graph

import "sort"

// TopologicalOrder returns the nodes permuted so that every node appears
// after its parent, when the parent is part of the input set. Ties among
// siblings preserve input order. The result is always a permutation of the
// input: a corrupt parent cycle does not abort the traversal, it is broken
// deterministically by treating the first-seen member (in input order) as
// parentless, and reported through the returned CycleError.
//
// Any consumer that processes nodes in a single pass and needs a parent's
// state resolved before its children (renderer, exporter) must run its input
// through this function first.
func TopologicalOrder(nodes []Node) ([]Node, *CycleError) {
	included := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		included[n.ID] = true
	}

	out := make([]Node, 0, len(nodes))
	emitted := make(map[string]bool, len(nodes))
	remaining := make([]Node, len(nodes))
	copy(remaining, nodes)

	var forced []string
	for len(remaining) > 0 {
		next := remaining[:0]
		progressed := false
		for _, n := range remaining {
			parent := n.Parent()
			if parent == "" || !included[parent] || emitted[parent] {
				out = append(out, n)
				emitted[n.ID] = true
				progressed = true
			} else {
				next = append(next, n)
			}
		}
		remaining = next

		if !progressed && len(remaining) > 0 {
			// Every remaining node waits on a parent that is itself waiting:
			// a parent cycle. Break it at the first-seen node.
			head := remaining[0]
			out = append(out, head)
			emitted[head.ID] = true
			forced = append(forced, head.ID)
			remaining = remaining[1:]
		}
	}

	if len(forced) > 0 {
		return out, &CycleError{Members: forced}
	}
	return out, nil
}

// RenderOrder returns the nodes in drawing order: render depth first
// (geographic backgrounds below reference images below everything else),
// parent-before-child within that, input order among equals. The depth sort
// is stable so two branches keep their relative input order.
func RenderOrder(nodes []Node) ([]Node, *CycleError) {
	byDepth := make([]Node, len(nodes))
	copy(byDepth, nodes)
	sort.SliceStable(byDepth, func(i, j int) bool {
		return byDepth[i].Kind.RenderDepth() < byDepth[j].Kind.RenderDepth()
	})
	return TopologicalOrder(byDepth)
}
