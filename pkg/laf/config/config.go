package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/laf/pkg/laf/formula"
	"github.com/cognicore/laf/pkg/laf/inference"
	"github.com/cognicore/laf/pkg/laf/internalerr"
)

// Default formulas, applied to every attribute when no combinator file is given.
const (
	DefaultSupport     = "X + Y"
	DefaultAggregation = "X * Y"
	DefaultAttack      = "X - Y"
)

// CombinatorFile represents the combinator configuration
//
//	combinators:
//	  - support: "X + Y"
//	    aggregation: "X * Y"
//	    attack: "X - Y"
type CombinatorFile struct {
	Combinators []inference.Combinators `yaml:"combinators"`
}

// DefaultCombinators returns a table of k rows holding the default formulas.
func DefaultCombinators(k int) inference.Table {
	t := make(inference.Table, k)
	for i := range t {
		t[i] = inference.Combinators{
			Support:     DefaultSupport,
			Aggregation: DefaultAggregation,
			Attack:      DefaultAttack,
		}
	}
	return t
}

// LoadCombinators loads a combinator table from a YAML file
func LoadCombinators(path string) (inference.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCombinators(data)
}

// ParseCombinators decodes and validates a combinator table.
func ParseCombinators(data []byte) (inference.Table, error) {
	var cf CombinatorFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}

	table := inference.Table(cf.Combinators)
	if err := Validate(table); err != nil {
		return nil, err
	}
	return table, nil
}

// Validate checks that every row names all three formulas and that each
// formula compiles.
func Validate(table inference.Table) error {
	if len(table) == 0 {
		return fmt.Errorf("%w: no combinators", internalerr.ErrInvalidConfig)
	}

	for i, row := range table {
		for _, col := range []inference.Column{inference.Support, inference.Aggregation, inference.Attack} {
			expr := row.Formula(col)
			if expr == "" {
				return fmt.Errorf("%w: attribute %d: missing %s formula", internalerr.ErrInvalidConfig, i, col)
			}
			if _, err := formula.Compile(expr); err != nil {
				return fmt.Errorf("attribute %d %s: %w", i, col, err)
			}
		}
	}
	return nil
}

// Marshal encodes a table in the combinator file format.
func Marshal(table inference.Table) ([]byte, error) {
	return yaml.Marshal(CombinatorFile{Combinators: table})
}
