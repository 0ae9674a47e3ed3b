package forward

import (
	"fmt"

	"github.com/cognicore/laf/pkg/laf/inference"
)

// combine evaluates the combinator of family col for attribute i.
func (r *run) combine(col inference.Column, i int, x, y float64) (float64, error) {
	v, err := r.e.eval.Evaluate(r.e.table.Formula(i, col), x, y)
	if err != nil {
		return 0, fmt.Errorf("%s combinator of attribute %d: %w", col, i, err)
	}
	return v, nil
}

// support folds the antecedents, then the rule weight, into a fresh strength
// vector: acc = f(acc, y) starting from 0. Intermediate values are not
// clamped; only the final value of each attribute is.
func (r *run) support(antecedents []int, rid int) ([]float64, error) {
	rule := r.nodes[rid].rule
	out := make([]float64, r.k)

	for i := range out {
		acc := 0.0
		var err error
		for _, a := range antecedents {
			acc, err = r.combine(inference.Support, i, acc, r.nodes[a].fact.Attributes[i])
			if err != nil {
				return nil, err
			}
		}
		acc, err = r.combine(inference.Support, i, acc, rule.Attributes[i])
		if err != nil {
			return nil, err
		}
		out[i] = inference.Clamp01(acc)
	}
	return out, nil
}

// merge combines two strength vectors with the aggregation combinator.
func (r *run) merge(x, y []float64) ([]float64, error) {
	out := make([]float64, r.k)
	for i := range out {
		v, err := r.combine(inference.Aggregation, i, x[i], y[i])
		if err != nil {
			return nil, err
		}
		out[i] = inference.Clamp01(v)
	}
	return out, nil
}

// fold aggregates several strength vectors left to right: the first vector is
// the seed, each following one is merged into the accumulator. Only the final
// value of each attribute is clamped.
func (r *run) fold(vectors [][]float64) ([]float64, error) {
	if len(vectors) == 0 {
		return nil, nil
	}

	out := append([]float64(nil), vectors[0]...)
	for i := range out {
		for _, v := range vectors[1:] {
			acc, err := r.combine(inference.Aggregation, i, out[i], v[i])
			if err != nil {
				return nil, err
			}
			out[i] = acc
		}
		out[i] = inference.Clamp01(out[i])
	}
	return out, nil
}
