// Package forward implements the forward-chaining derivation engine of the
// weighted argumentation framework.
//
// A run applies every rule to every argument until a pass derives nothing new.
// Each derived fact gets its strengths from the support combinator. When a
// conclusion is derived a second time, the duplicates are merged into one
// aggregated fact and the graph is rewritten around it. Once the fixpoint is
// reached, every negated fact attacks its positive counterpart and both get
// weakened delta strengths.
//
// Iteration order is fixed so that non-commutative formulas give reproducible
// results: arguments in first-seen order, rules in input order, body
// predicates in declared order, and for each predicate the first live fact in
// insertion order.
package forward

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/laf/pkg/laf/formula"
	"github.com/cognicore/laf/pkg/laf/graph"
	"github.com/cognicore/laf/pkg/laf/inference"
	"github.com/cognicore/laf/pkg/laf/internalerr"
)

// DefaultMaxPasses bounds the number of fixpoint passes. Rule sets whose
// aggregation keeps invalidating earlier conclusions can otherwise cycle.
const DefaultMaxPasses = 1024

// Engine derives the argumentation graph for one set of facts, rules and
// combinators. Inputs are copied at the start of every run and never mutated.
// An Engine is not safe for concurrent use.
type Engine struct {
	facts     []*inference.Fact
	rules     []*inference.Rule
	table     inference.Table
	eval      formula.Evaluator
	logger    *zap.Logger
	maxPasses int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEvaluator replaces the formula evaluator.
func WithEvaluator(ev formula.Evaluator) Option {
	return func(e *Engine) {
		if ev != nil {
			e.eval = ev
		}
	}
}

// WithMaxPasses sets the pass limit; n <= 0 removes it.
func WithMaxPasses(n int) Option {
	return func(e *Engine) { e.maxPasses = n }
}

// New creates an engine over the given inputs.
func New(facts []*inference.Fact, rules []*inference.Rule, table inference.Table, opts ...Option) *Engine {
	e := &Engine{
		facts:     facts,
		rules:     rules,
		table:     table,
		eval:      formula.NewCache(),
		logger:    zap.NewNop(),
		maxPasses: DefaultMaxPasses,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run derives all facts, resolves conflicts and returns the resulting graph.
// On error no graph is returned.
func Run(facts []*inference.Fact, rules []*inference.Rule, table inference.Table, opts ...Option) (*graph.Snapshot, error) {
	return New(facts, rules, table, opts...).Run()
}

// Run executes one full derivation. It may be called repeatedly; each call
// starts from the inputs given to New.
func (e *Engine) Run() (*graph.Snapshot, error) {
	k, err := inference.Validate(e.facts, e.rules, e.table)
	if err != nil {
		return nil, err
	}
	if err := e.prepare(); err != nil {
		return nil, err
	}

	r := newRun(e, k)
	passes, err := r.fixpoint()
	if err != nil {
		return nil, err
	}
	if err := r.resolveConflicts(); err != nil {
		return nil, err
	}

	snap := r.snapshot(passes)
	e.logger.Info("derivation complete",
		zap.Int("passes", passes),
		zap.Int("nodes", len(snap.Nodes)),
		zap.Int("edges", len(snap.Edges)),
		zap.Int("aggregations", r.aggregations),
		zap.Int("conflicts", len(snap.Conflicts)),
	)
	return snap, nil
}

// prepare rejects malformed formulas before any derivation happens.
func (e *Engine) prepare() error {
	p, ok := e.eval.(formula.Preparer)
	if !ok {
		return nil
	}
	for i, row := range e.table {
		for _, col := range []inference.Column{inference.Support, inference.Aggregation, inference.Attack} {
			if err := p.Prepare(row.Formula(col)); err != nil {
				return fmt.Errorf("%s combinator of attribute %d: %w", col, i, err)
			}
		}
	}
	return nil
}

// run is the mutable state of one derivation.
type run struct {
	e     *Engine
	k     int
	nodes []*node
	rules []int
	live  []int
	edges *edges

	conflicts    []graph.Conflict
	aggregations int
}

func newRun(e *Engine, k int) *run {
	r := &run{e: e, k: k, edges: newEdges()}
	for _, f := range e.facts {
		r.live = append(r.live, r.addNode(&node{fact: f.Clone()}))
	}
	for _, rule := range e.rules {
		r.rules = append(r.rules, r.addNode(&node{rule: rule.Clone()}))
	}
	return r
}

func (r *run) addNode(n *node) int {
	r.nodes = append(r.nodes, n)
	return len(r.nodes) - 1
}

func (r *run) newFact(sig inference.Signature, attrs []float64) int {
	return r.addNode(&node{fact: inference.NewFact(sig.Name, sig.Argument, attrs...)})
}

// fixpoint repeats full passes over (argument x rule) until one adds nothing.
// It returns the number of passes, the last one being the quiet pass.
func (r *run) fixpoint() (int, error) {
	for pass := 1; ; pass++ {
		if r.e.maxPasses > 0 && pass > r.e.maxPasses {
			return 0, fmt.Errorf("%w after %d passes", internalerr.ErrNoFixpoint, r.e.maxPasses)
		}

		fired := 0
		aggregationsBefore := r.aggregations
		for _, arg := range r.arguments() {
			for _, rid := range r.rules {
				ok, err := r.apply(rid, arg)
				if err != nil {
					return 0, err
				}
				if ok {
					fired++
				}
			}
		}

		r.e.logger.Debug("fixpoint pass",
			zap.Int("pass", pass),
			zap.Int("fired", fired),
			zap.Int("aggregations", r.aggregations-aggregationsBefore),
			zap.Int("live_facts", len(r.live)),
		)
		if fired == 0 {
			return pass, nil
		}
	}
}

// arguments returns the distinct arguments of the live facts in first-seen order.
func (r *run) arguments() []string {
	seen := make(map[string]bool)
	var args []string
	for _, id := range r.live {
		a := r.nodes[id].fact.Argument
		if !seen[a] {
			seen[a] = true
			args = append(args, a)
		}
	}
	return args
}

// apply fires rule rid for argument arg if its body is satisfied and the
// conclusion has not been derived by this rule yet. It reports whether the
// graph changed.
func (r *run) apply(rid int, arg string) (bool, error) {
	rule := r.nodes[rid].rule

	antecedents := make([]int, 0, len(rule.Body))
	for _, pred := range rule.Body {
		for _, id := range r.live {
			f := r.nodes[id].fact
			if f.Name == pred && f.Argument == arg {
				antecedents = append(antecedents, id)
				break
			}
		}
	}
	if len(antecedents) != len(rule.Body) {
		return false, nil
	}

	sig := inference.Signature{Name: rule.Head, Argument: arg}
	if r.derivedBy(rid, sig) {
		return false, nil
	}

	if !r.exists(sig) {
		return true, r.plainAdd(rid, antecedents, sig)
	}
	return true, r.aggregate(rid, antecedents, sig)
}

// derivedBy reports whether rule rid already has an edge to a fact with sig.
func (r *run) derivedBy(rid int, sig inference.Signature) bool {
	for _, id := range r.edges.targets(rid) {
		if r.nodes[id].is(sig) {
			return true
		}
	}
	return false
}

// exists reports whether a fact with sig is anywhere in the graph, as a source
// or as a target, or in the live fact set.
func (r *run) exists(sig inference.Signature) bool {
	for _, src := range r.edges.sources() {
		if r.nodes[src].is(sig) {
			return true
		}
		for _, id := range r.edges.targets(src) {
			if r.nodes[id].is(sig) {
				return true
			}
		}
	}
	return r.liveIndex(sig) >= 0
}

func (r *run) liveIndex(sig inference.Signature) int {
	for i, id := range r.live {
		if r.nodes[id].is(sig) {
			return i
		}
	}
	return -1
}

// plainAdd derives a brand-new conclusion.
func (r *run) plainAdd(rid int, antecedents []int, sig inference.Signature) error {
	id, err := r.derive(rid, antecedents, sig)
	if err != nil {
		return err
	}
	r.live = append(r.live, id)
	return nil
}

// derive creates the candidate fact for a firing of rid and links the rule
// and the antecedents to it.
func (r *run) derive(rid int, antecedents []int, sig inference.Signature) (int, error) {
	attrs, err := r.support(antecedents, rid)
	if err != nil {
		return 0, err
	}

	id := r.newFact(sig, attrs)
	r.edges.add(rid, id)
	for _, a := range antecedents {
		r.edges.add(a, id)
	}
	return id, nil
}

// snapshot copies the final state into an immutable graph. Nodes that neither
// take part in an edge nor belong to the live set are left out.
func (r *run) snapshot(passes int) *graph.Snapshot {
	live := make(map[int]bool, len(r.live))
	for _, id := range r.live {
		live[id] = true
	}

	var edges []graph.Edge
	used := make(map[int]bool)
	for _, src := range r.edges.sources() {
		for _, dst := range r.edges.targets(src) {
			edges = append(edges, graph.Edge{From: src, To: dst})
			used[src] = true
			used[dst] = true
		}
	}

	var nodes []graph.Node
	for id, n := range r.nodes {
		if !used[id] && !live[id] {
			continue
		}
		gn := graph.Node{ID: id, Live: live[id], Aggregated: n.aggregated}
		switch {
		case n.fact != nil:
			gn.Kind = graph.KindFact
			gn.Fact = n.fact.Clone()
		case n.rule != nil:
			gn.Kind = graph.KindRule
			gn.Rule = n.rule.Clone()
		}
		nodes = append(nodes, gn)
	}

	return graph.New(nodes, edges, append([]graph.Conflict(nil), r.conflicts...), passes)
}
