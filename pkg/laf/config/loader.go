package config

import (
	"fmt"
	"os"

	"github.com/cognicore/laf/pkg/laf/inference"
	"github.com/cognicore/laf/pkg/laf/program"
)

// Loader loads a program and its combinators
type Loader struct {
	ProgramPath     string
	CombinatorsPath string
}

// Components holds everything a run needs
type Components struct {
	Source      string
	Facts       []*inference.Fact
	Rules       []*inference.Rule
	Combinators inference.Table
}

// Load reads the configured files. Without a combinator file the default
// formulas are used for every attribute of the first fact.
func (l *Loader) Load() (*Components, error) {
	if l.ProgramPath == "" {
		return nil, fmt.Errorf("load program: no path given")
	}

	src, err := os.ReadFile(l.ProgramPath)
	if err != nil {
		return nil, fmt.Errorf("load program: %w", err)
	}
	prog, err := program.ParseString(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse program %s: %w", l.ProgramPath, err)
	}

	comp := &Components{
		Source: string(src),
		Facts:  prog.Facts,
		Rules:  prog.Rules,
	}

	// Load combinators
	if l.CombinatorsPath != "" {
		table, err := LoadCombinators(l.CombinatorsPath)
		if err != nil {
			return nil, fmt.Errorf("load combinators: %w", err)
		}
		comp.Combinators = table
	} else {
		comp.Combinators = DefaultCombinators(Arity(prog.Facts))
	}

	return comp, nil
}

// Arity returns the attribute count of the first fact, or 0 when there are none.
func Arity(facts []*inference.Fact) int {
	if len(facts) == 0 {
		return 0
	}
	return len(facts[0].Attributes)
}
