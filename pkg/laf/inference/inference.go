package inference

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cognicore/laf/pkg/laf/internalerr"
)

// NegationMarker prefixes the name of a negated predicate: ~p(a) attacks p(a).
const NegationMarker = "~"

// Piece is a node of the argumentation graph: either a *Fact or a *Rule.
// The set of implementations is closed; consumers switch on the concrete type.
type Piece interface {
	// Weights returns the attribute vector carried by the piece.
	Weights() []float64
	String() string

	piece()
}

// Signature identifies a fact independently of the object holding it.
// Aggregation and conflict matching compare signatures, never pointers.
type Signature struct {
	Name     string
	Argument string
}

// Negated reports whether the predicate carries the negation marker.
func (s Signature) Negated() bool {
	return strings.HasPrefix(s.Name, NegationMarker)
}

// Positive returns the signature with every negation marker stripped, so
// ~~p(a) attacks p(a) as well.
func (s Signature) Positive() Signature {
	return Signature{Name: strings.ReplaceAll(s.Name, NegationMarker, ""), Argument: s.Argument}
}

func (s Signature) String() string {
	return s.Name + "(" + s.Argument + ")"
}

// Fact is a ground predicate instance with a strength per attribute.
type Fact struct {
	Name       string    `yaml:"name" json:"name"`
	Argument   string    `yaml:"argument" json:"argument"`
	Attributes []float64 `yaml:"attributes" json:"attributes"`

	// DeltaAttributes holds the conflict-weakened strengths. It equals
	// Attributes until conflict resolution recomputes it.
	DeltaAttributes []float64 `yaml:"delta_attributes" json:"delta_attributes"`
}

// NewFact builds a fact whose delta attributes start equal to its attributes.
func NewFact(name, argument string, attributes ...float64) *Fact {
	return &Fact{
		Name:            name,
		Argument:        argument,
		Attributes:      attributes,
		DeltaAttributes: append([]float64(nil), attributes...),
	}
}

func (f *Fact) Signature() Signature {
	return Signature{Name: f.Name, Argument: f.Argument}
}

// Negated reports whether the fact's predicate carries the negation marker.
func (f *Fact) Negated() bool {
	return f.Signature().Negated()
}

// Weights implements Piece.
func (f *Fact) Weights() []float64 { return f.Attributes }

func (f *Fact) String() string {
	return f.Signature().String() + ". " + formatVector(f.Attributes)
}

// Clone returns a deep copy of the fact.
func (f *Fact) Clone() *Fact {
	c := &Fact{
		Name:            f.Name,
		Argument:        f.Argument,
		Attributes:      append([]float64(nil), f.Attributes...),
		DeltaAttributes: append([]float64(nil), f.DeltaAttributes...),
	}
	if c.DeltaAttributes == nil && c.Attributes != nil {
		c.DeltaAttributes = append([]float64(nil), c.Attributes...)
	}
	return c
}

func (*Fact) piece() {}

// Rule derives Head(X) for every argument X satisfying all Body predicates.
// Attributes is the rule's intrinsic weight and need not lie in [0,1].
type Rule struct {
	Head       string    `yaml:"head" json:"head"`
	Body       []string  `yaml:"body" json:"body"`
	Attributes []float64 `yaml:"attributes" json:"attributes"`
}

// NewRule builds a rule with the given head, body predicates and weights.
func NewRule(head string, body []string, attributes ...float64) *Rule {
	return &Rule{Head: head, Body: body, Attributes: attributes}
}

// Weights implements Piece.
func (r *Rule) Weights() []float64 { return r.Attributes }

func (r *Rule) String() string {
	body := make([]string, len(r.Body))
	for i, b := range r.Body {
		body[i] = b + "(X)"
	}
	return r.Head + "(X) :- " + strings.Join(body, ", ") + ". " + formatVector(r.Attributes)
}

// Clone returns a deep copy of the rule.
func (r *Rule) Clone() *Rule {
	return &Rule{
		Head:       r.Head,
		Body:       append([]string(nil), r.Body...),
		Attributes: append([]float64(nil), r.Attributes...),
	}
}

func (*Rule) piece() {}

// Column selects one of the three combinator families.
type Column int

const (
	Support Column = iota
	Aggregation
	Attack
)

func (c Column) String() string {
	switch c {
	case Support:
		return "support"
	case Aggregation:
		return "aggregation"
	case Attack:
		return "attack"
	}
	return "column(" + strconv.Itoa(int(c)) + ")"
}

// Combinators holds the three formulas of one attribute. Each formula is an
// arithmetic expression over X (accumulator or self) and Y (operand or opponent).
type Combinators struct {
	Support     string `yaml:"support" json:"support"`
	Aggregation string `yaml:"aggregation" json:"aggregation"`
	Attack      string `yaml:"attack" json:"attack"`
}

// Formula returns the formula of the given family.
func (c Combinators) Formula(col Column) string {
	switch col {
	case Support:
		return c.Support
	case Aggregation:
		return c.Aggregation
	case Attack:
		return c.Attack
	}
	return ""
}

// Table is the k x 3 combinator table: one row per attribute index.
type Table []Combinators

// Formula returns the formula for attribute i in the given family.
func (t Table) Formula(i int, col Column) string {
	return t[i].Formula(col)
}

// ArityError reports an attribute vector whose length disagrees with k.
type ArityError struct {
	What string
	Got  int
	Want int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s: %d attributes, want %d", e.What, e.Got, e.Want)
}

func (e *ArityError) Unwrap() error { return internalerr.ErrArityMismatch }

// Validate checks the run preconditions and returns the shared arity k,
// taken from the first fact.
func Validate(facts []*Fact, rules []*Rule, table Table) (int, error) {
	if len(facts) == 0 {
		return 0, internalerr.ErrEmptyInput
	}
	k := len(facts[0].Attributes)
	if len(table) != k {
		return 0, &ArityError{What: "combinator table", Got: len(table), Want: k}
	}
	for _, f := range facts {
		if len(f.Attributes) != k {
			return 0, &ArityError{What: "fact " + f.Signature().String(), Got: len(f.Attributes), Want: k}
		}
	}
	for _, r := range rules {
		if len(r.Attributes) != k {
			return 0, &ArityError{What: "rule " + r.Head, Got: len(r.Attributes), Want: k}
		}
	}
	return k, nil
}

// Clamp01 limits v to the closed interval [0,1].
func Clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
