package forward

import (
	"github.com/cognicore/laf/pkg/laf/graph"
	"github.com/cognicore/laf/pkg/laf/inference"
)

// resolveConflicts pairs every live negated fact with each live fact of the
// positive signature and computes both delta vectors with the attack
// combinator. Each side is evaluated as attack(self, opponent), so a
// non-commutative formula weakens the two sides differently. Base attributes
// are left untouched.
func (r *run) resolveConflicts() error {
	var negatives []int
	for _, id := range r.live {
		if r.nodes[id].fact.Negated() {
			negatives = append(negatives, id)
		}
	}

	for _, nid := range negatives {
		nf := r.nodes[nid].fact
		target := nf.Signature().Positive()

		for _, pid := range r.live {
			if pid == nid || !r.nodes[pid].is(target) {
				continue
			}
			f := r.nodes[pid].fact

			nd, err := r.attack(nf, f)
			if err != nil {
				return err
			}
			pd, err := r.attack(f, nf)
			if err != nil {
				return err
			}
			nf.DeltaAttributes = nd
			f.DeltaAttributes = pd

			r.conflicts = append(r.conflicts, graph.Conflict{Negative: nid, Positive: pid})
		}
	}
	return nil
}

func (r *run) attack(self, opponent *inference.Fact) ([]float64, error) {
	out := make([]float64, r.k)
	for i := range out {
		v, err := r.combine(inference.Attack, i, self.Attributes[i], opponent.Attributes[i])
		if err != nil {
			return nil, err
		}
		out[i] = inference.Clamp01(v)
	}
	return out, nil
}
