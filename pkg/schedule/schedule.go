// Package schedule turns a precedence multimap over image names into
// a layered build order, or reports a cycle.
package schedule

import "github.com/jlkiri/ikki/pkg/ikkierr"

// Layer is an unordered set of image names with no mutual precedence.
type Layer []string

// Order is a sequence of layers; for every edge A->B in the input
// graph, A's layer index is strictly less than B's.
type Order []Layer

// Graph is a precedence multimap: Graph[a] contains every node that
// must be built after a. Duplicate edges are idempotent because the
// value is a set.
type Graph map[string]map[string]struct{}

// NewGraph returns an empty precedence graph.
func NewGraph() Graph {
	return Graph{}
}

// Before records that `first` must complete before `second`,
// i.e. adds the edge first->second.
func (g Graph) Before(first, second string) {
	children, ok := g[first]
	if !ok {
		children = map[string]struct{}{}
		g[first] = children
	}
	children[second] = struct{}{}
}

func (g Graph) hasParent(node string) bool {
	for _, children := range g {
		if _, ok := children[node]; ok {
			return true
		}
	}
	return false
}

// hasRemainingParent reports whether `node` still has an incoming
// edge from some node other than `except`, among edges not yet
// removed.
func (g Graph) hasRemainingParent(node, except string, removed map[string]struct{}) bool {
	for parent, children := range g {
		if parent == except {
			continue
		}
		if _, gone := removed[parent]; gone {
			continue
		}
		if _, ok := children[node]; ok {
			return true
		}
	}
	return false
}

// Toposort runs a layered Kahn toposort and returns CycleDetected if
// the graph is not acyclic. An empty graph produces an empty order.
// Intra-layer order is unspecified.
func (g Graph) Toposort() (Order, error) {
	var frontier []string
	for node := range g {
		if !g.hasParent(node) {
			frontier = append(frontier, node)
		}
	}

	var order Order
	removed := map[string]struct{}{}

	for len(frontier) > 0 {
		layer := make(Layer, 0, len(frontier))
		var next []string

		for _, node := range frontier {
			for child := range g[node] {
				if !g.hasRemainingParent(child, node, removed) {
					next = append(next, child)
				}
			}
			removed[node] = struct{}{}
			layer = append(layer, node)
		}

		order = append(order, layer)
		frontier = next
	}

	retiredKeys := 0
	for node := range removed {
		if _, isKey := g[node]; isKey {
			retiredKeys++
		}
	}
	if retiredKeys < len(g) {
		return nil, ikkierr.CycleDetected()
	}

	return order, nil
}

// SingleLayer builds the default schedule for a set of images that
// declare no dependencies: one layer containing every name, in the
// given (declaration) order.
func SingleLayer(names []string) Order {
	layer := make(Layer, len(names))
	copy(layer, names)
	return Order{layer}
}

// Incremental recomputes the restricted schedule for `name`: walk
// forward from (and including) the first layer containing `name`,
// replacing that first layer with {name} alone. Returns NoSuchImage
// if `name` appears in no layer.
func Incremental(full Order, name string) (Order, error) {
	for i, layer := range full {
		if !layerContains(layer, name) {
			continue
		}
		restricted := make(Order, 0, len(full)-i)
		restricted = append(restricted, Layer{name})
		restricted = append(restricted, full[i+1:]...)
		return restricted, nil
	}
	return nil, ikkierr.NoSuchImage(name)
}

func layerContains(layer Layer, name string) bool {
	for _, n := range layer {
		if n == name {
			return true
		}
	}
	return false
}
