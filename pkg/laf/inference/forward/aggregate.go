package forward

import (
	"slices"

	"go.uber.org/zap"

	"github.com/cognicore/laf/pkg/laf/inference"
)

// aggregate handles a firing whose conclusion already has a representative.
// The new derivation is recorded as its own node for provenance, then merged
// with the previous representative into a single aggregated fact.
func (r *run) aggregate(rid int, antecedents []int, sig inference.Signature) error {
	var (
		prior []float64
		aux   = -1
	)
	if i := r.liveIndex(sig); i >= 0 {
		aux = r.live[i]
		prior = r.nodes[aux].fact.Attributes
		r.live = slices.Delete(r.live, i, i+1)
	} else {
		var err error
		if prior, err = r.combineFacts(sig); err != nil {
			return err
		}
	}

	cand, err := r.derive(rid, antecedents, sig)
	if err != nil {
		return err
	}

	attrs := append([]float64(nil), r.nodes[cand].fact.Attributes...)
	if prior != nil {
		if attrs, err = r.merge(attrs, prior); err != nil {
			return err
		}
	}

	agg := r.newFact(sig, attrs)
	r.nodes[agg].aggregated = true
	r.live = append(r.live, agg)
	r.aggregations++

	r.rebuild(agg, aux)
	return nil
}

// combineFacts aggregates every distinct fact with sig found in the graph,
// visiting sources in order and each source before its targets.
func (r *run) combineFacts(sig inference.Signature) ([]float64, error) {
	seen := make(map[int]bool)
	var vectors [][]float64
	visit := func(id int) {
		if !seen[id] && r.nodes[id].is(sig) {
			seen[id] = true
			vectors = append(vectors, r.nodes[id].fact.Attributes)
		}
	}

	for _, src := range r.edges.sources() {
		visit(src)
		for _, dst := range r.edges.targets(src) {
			visit(dst)
		}
	}
	return r.fold(vectors)
}

// rebuild rewrites the graph around the aggregated fact agg.
//
// Every other fact with the same signature is a duplicate. Duplicates that
// already fed further derivations are stale sources: the conclusions derived
// from them, transitively, were computed from an outdated strength, so they
// are erased from the graph and from the live set and get re-derived from agg
// in a later pass. The erase stops at facts with the aggregated signature;
// those stay as duplicates, and the rule edge into the current derivation
// keeps marking that rule as fired. Every duplicate that no longer leads to a
// fact of its own signature then gets an edge to agg, so agg is the only
// terminal fact with that signature. A superseded live fact aux that never
// entered the graph (a base fact derived again) is linked the same way.
func (r *run) rebuild(agg, aux int) {
	sig := r.nodes[agg].fact.Signature()

	var stale, dups []int
	if aux >= 0 {
		dups = append(dups, aux)
	}
	for _, src := range r.edges.sources() {
		if src != agg && r.nodes[src].is(sig) {
			stale = append(stale, src)
		}
		for _, dst := range r.edges.targets(src) {
			if dst != agg && r.nodes[dst].is(sig) && !slices.Contains(dups, dst) {
				dups = append(dups, dst)
			}
		}
	}

	erased := r.closure(stale, sig)
	for _, id := range erased {
		r.edges.removeSource(id)
		r.edges.dropTarget(id)
		if i := slices.Index(r.live, id); i >= 0 {
			r.live = slices.Delete(r.live, i, i+1)
		}
	}

	for _, id := range append(stale, dups...) {
		if !r.forwards(id, sig) {
			r.edges.add(id, agg)
		}
	}

	if len(stale) > 0 || len(erased) > 0 {
		r.e.logger.Debug("aggregation rebuild",
			zap.Stringer("signature", sig),
			zap.Int("stale_sources", len(stale)),
			zap.Int("duplicates", len(dups)),
			zap.Int("erased", len(erased)),
		)
	}
}

// forwards reports whether id has an edge to a fact with sig.
func (r *run) forwards(id int, sig inference.Signature) bool {
	for _, dst := range r.edges.targets(id) {
		if r.nodes[dst].is(sig) {
			return true
		}
	}
	return false
}

// closure returns every node reachable from the targets of roots, in BFS
// order, without entering facts with signature keep. Such facts are either
// roots themselves or end a path.
func (r *run) closure(roots []int, keep inference.Signature) []int {
	seen := make(map[int]bool)
	var out, queue []int
	for _, root := range roots {
		queue = append(queue, r.edges.targets(root)...)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] || r.nodes[id].is(keep) {
			continue
		}
		seen[id] = true
		out = append(out, id)
		queue = append(queue, r.edges.targets(id)...)
	}
	return out
}
