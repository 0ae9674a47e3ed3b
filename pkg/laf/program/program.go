// Package program parses the textual form of a knowledge base.
//
// Format, one clause per line:
//
//	# comment
//	bird(tweety). {0.9, 0.6}
//	~flies(tweety). {0.4, 0.5}
//	flies(X) :- bird(X), healthy(X). {0.2, 0.1}
//
// Rule variables are ignored: every predicate of a rule ranges over the same
// single argument. Braces around the attribute list are optional.
package program

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"

	"github.com/cognicore/laf/pkg/laf/inference"
	"github.com/cognicore/laf/pkg/laf/internalerr"
)

type clause struct {
	Head  *atom   `@@`
	Body  []*atom `( ":" "-" @@ ( "," @@ )* )?`
	Attrs []*num  `"." "{"? ( @@ ( "," @@ )* )? "}"?`
}

type atom struct {
	Negated bool   `@"~"?`
	Name    string `@Ident`
	Arg     string `"(" @(Ident | Int | Float | String) ")"`
}

type num struct {
	Negative bool    `@"-"?`
	Value    float64 `@(Float | Int)`
}

var parser = participle.MustBuild(&clause{}, participle.Unquote("String"))

func (a *atom) name() string {
	if a.Negated {
		return inference.NegationMarker + a.Name
	}
	return a.Name
}

// Program is a parsed knowledge base.
type Program struct {
	Facts []*inference.Fact
	Rules []*inference.Rule
}

// Parse reads a program from r.
func Parse(r io.Reader) (*Program, error) {
	prog := &Program{}
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := prog.addLine(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return prog, nil
}

// ParseString parses a program held in memory.
func ParseString(src string) (*Program, error) {
	return Parse(strings.NewReader(src))
}

func (p *Program) addLine(line string) error {
	c := &clause{}
	if err := parser.ParseString("", line, c); err != nil {
		return fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidInput, line, err)
	}

	attrs := make([]float64, len(c.Attrs))
	for i, n := range c.Attrs {
		attrs[i] = n.Value
		if n.Negative {
			attrs[i] = -n.Value
		}
	}

	if c.Body == nil {
		for _, v := range attrs {
			if v < 0 || v > 1 {
				return fmt.Errorf("%w: %s: attribute %g outside [0,1]", internalerr.ErrInvalidInput, line, v)
			}
		}
		p.Facts = append(p.Facts, inference.NewFact(c.Head.name(), c.Head.Arg, attrs...))
		return nil
	}

	body := make([]string, len(c.Body))
	for i, a := range c.Body {
		body[i] = a.name()
	}
	p.Rules = append(p.Rules, inference.NewRule(c.Head.name(), body, attrs...))
	return nil
}

// Format renders facts and rules back into program text.
func Format(w io.Writer, facts []*inference.Fact, rules []*inference.Rule) error {
	bw := bufio.NewWriter(w)
	for _, f := range facts {
		fmt.Fprintf(bw, "%s(%s). %s\n", f.Name, formatArg(f.Argument), formatAttrs(f.Attributes))
	}
	for _, r := range rules {
		fmt.Fprintf(bw, "%s\n", r)
	}
	return bw.Flush()
}

func formatArg(arg string) string {
	for _, c := range arg {
		if !(c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return strconv.Quote(arg)
		}
	}
	return arg
}

func formatAttrs(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
