// Package graph holds the immutable result of a derivation run: the nodes that
// took part in it, the derivation edges between them and the conflicting pairs.
package graph

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cognicore/laf/pkg/laf/inference"
)

// Kind tags the variant held by a Node.
type Kind string

const (
	KindFact Kind = "fact"
	KindRule Kind = "rule"
)

// Node is a fact or a rule, addressed by a stable ID. Exactly one of Fact and
// Rule is set, matching Kind.
type Node struct {
	ID   int             `yaml:"id" json:"id"`
	Kind Kind            `yaml:"kind" json:"kind"`
	Fact *inference.Fact `yaml:"fact,omitempty" json:"fact,omitempty"`
	Rule *inference.Rule `yaml:"rule,omitempty" json:"rule,omitempty"`

	// Live is set for facts in the final fact set.
	Live bool `yaml:"live" json:"live"`
	// Aggregated is set for facts produced by merging duplicate derivations.
	Aggregated bool `yaml:"aggregated" json:"aggregated"`
}

// Piece returns the fact or rule held by the node.
func (n Node) Piece() inference.Piece {
	switch n.Kind {
	case KindFact:
		return n.Fact
	case KindRule:
		return n.Rule
	}
	return nil
}

func (n Node) String() string {
	if p := n.Piece(); p != nil {
		return p.String()
	}
	return fmt.Sprintf("node(%d)", n.ID)
}

// Edge records that From helped derive To. To is always a fact.
type Edge struct {
	From int `yaml:"from" json:"from"`
	To   int `yaml:"to" json:"to"`
}

// Conflict pairs a negated fact with the positive fact it attacks.
type Conflict struct {
	Negative int `yaml:"negative" json:"negative"`
	Positive int `yaml:"positive" json:"positive"`
}

// Snapshot is the outcome of one run. It is built once and never mutated;
// accessors return copies where mutation could leak.
type Snapshot struct {
	Nodes     []Node     `yaml:"nodes" json:"nodes"`
	Edges     []Edge     `yaml:"edges" json:"edges"`
	Conflicts []Conflict `yaml:"conflicts" json:"conflicts"`
	Passes    int        `yaml:"passes" json:"passes"`

	index map[int]int
}

// New assembles a snapshot. Nodes are ordered by ID; edge and conflict order
// is kept as given.
func New(nodes []Node, edges []Edge, conflicts []Conflict, passes int) *Snapshot {
	s := &Snapshot{
		Nodes:     nodes,
		Edges:     edges,
		Conflicts: conflicts,
		Passes:    passes,
	}
	sort.SliceStable(s.Nodes, func(i, j int) bool { return s.Nodes[i].ID < s.Nodes[j].ID })
	s.Reindex()
	return s
}

// Reindex rebuilds the ID lookup table. Call it after decoding a snapshot.
func (s *Snapshot) Reindex() {
	s.index = make(map[int]int, len(s.Nodes))
	for i, n := range s.Nodes {
		s.index[n.ID] = i
	}
}

// Node returns the node with the given ID.
func (s *Snapshot) Node(id int) (Node, bool) {
	if s.index == nil {
		s.Reindex()
	}
	i, ok := s.index[id]
	if !ok {
		return Node{}, false
	}
	return s.Nodes[i], true
}

// Sources returns the IDs of nodes with at least one outgoing edge, in the
// order they first appear as a source.
func (s *Snapshot) Sources() []int {
	seen := make(map[int]bool)
	var out []int
	for _, e := range s.Edges {
		if !seen[e.From] {
			seen[e.From] = true
			out = append(out, e.From)
		}
	}
	return out
}

// Targets returns the facts derived with the help of id, in edge order.
func (s *Snapshot) Targets(id int) []int {
	var out []int
	for _, e := range s.Edges {
		if e.From == id {
			out = append(out, e.To)
		}
	}
	return out
}

// Predecessors returns the nodes with an edge into id, in edge order.
func (s *Snapshot) Predecessors(id int) []int {
	var out []int
	for _, e := range s.Edges {
		if e.To == id {
			out = append(out, e.From)
		}
	}
	return out
}

// Terminals returns facts that are the target of some edge but the source of
// none: the current conclusions of the graph.
func (s *Snapshot) Terminals() []Node {
	isSource := make(map[int]bool)
	isTarget := make(map[int]bool)
	for _, e := range s.Edges {
		isSource[e.From] = true
		isTarget[e.To] = true
	}
	var out []Node
	for _, n := range s.Nodes {
		if n.Kind == KindFact && isTarget[n.ID] && !isSource[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// LiveFacts returns the final fact set.
func (s *Snapshot) LiveFacts() []Node {
	var out []Node
	for _, n := range s.Nodes {
		if n.Kind == KindFact && n.Live {
			out = append(out, n)
		}
	}
	return out
}

// Lookup returns the live fact with the given signature.
func (s *Snapshot) Lookup(sig inference.Signature) (Node, bool) {
	for _, n := range s.Nodes {
		if n.Kind == KindFact && n.Live && n.Fact.Signature() == sig {
			return n, true
		}
	}
	return Node{}, false
}

// Render writes a plain-text listing of the graph: one block per source with
// its derived facts, followed by the live facts and the conflicts.
func (s *Snapshot) Render(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Derivations (%d passes):\n", s.Passes)
	for _, src := range s.Sources() {
		n, _ := s.Node(src)
		fmt.Fprintf(&b, "  [%d] %s\n", n.ID, n)
		for _, dst := range s.Targets(src) {
			t, _ := s.Node(dst)
			fmt.Fprintf(&b, "      -> [%d] %s%s\n", t.ID, t, marker(t))
		}
	}

	b.WriteString("\nFacts:\n")
	for _, n := range s.LiveFacts() {
		fmt.Fprintf(&b, "  [%d] %s delta=%v%s\n", n.ID, n.Fact, n.Fact.DeltaAttributes, marker(n))
	}

	if len(s.Conflicts) > 0 {
		b.WriteString("\nConflicts:\n")
		for _, c := range s.Conflicts {
			neg, _ := s.Node(c.Negative)
			pos, _ := s.Node(c.Positive)
			fmt.Fprintf(&b, "  [%d] %s  x  [%d] %s\n", neg.ID, neg.Fact.Signature(), pos.ID, pos.Fact.Signature())
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func marker(n Node) string {
	if n.Aggregated {
		return " (aggregated)"
	}
	return ""
}
