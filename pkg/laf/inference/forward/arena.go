package forward

import (
	"slices"

	"github.com/cognicore/laf/pkg/laf/inference"
)

// node is an arena slot. Exactly one of fact and rule is set.
type node struct {
	fact       *inference.Fact
	rule       *inference.Rule
	aggregated bool
}

func (n *node) is(sig inference.Signature) bool {
	return n.fact != nil && n.fact.Name == sig.Name && n.fact.Argument == sig.Argument
}

// edges is the derivation multimap: source ID -> derived fact IDs.
// Sources keep their first-insertion order; removing a source and adding it
// again moves it to the end.
type edges struct {
	order []int
	out   map[int][]int
}

func newEdges() *edges {
	return &edges{out: make(map[int][]int)}
}

// add records from -> to unless the edge already exists.
func (e *edges) add(from, to int) {
	targets, ok := e.out[from]
	if !ok {
		e.order = append(e.order, from)
	}
	if slices.Contains(targets, to) {
		return
	}
	e.out[from] = append(targets, to)
}

func (e *edges) sources() []int {
	return e.order
}

func (e *edges) targets(from int) []int {
	return e.out[from]
}

// removeSource deletes every edge leaving id.
func (e *edges) removeSource(id int) {
	if _, ok := e.out[id]; !ok {
		return
	}
	delete(e.out, id)
	if i := slices.Index(e.order, id); i >= 0 {
		e.order = slices.Delete(e.order, i, i+1)
	}
}

// dropTarget deletes every edge entering id. Sources left without targets
// are removed.
func (e *edges) dropTarget(id int) {
	var empty []int
	for _, from := range e.order {
		targets := e.out[from]
		if i := slices.Index(targets, id); i >= 0 {
			e.out[from] = slices.Delete(targets, i, i+1)
			if len(e.out[from]) == 0 {
				empty = append(empty, from)
			}
		}
	}
	for _, from := range empty {
		e.removeSource(from)
	}
}
