package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/laf/pkg/laf/inference"
	"github.com/cognicore/laf/pkg/laf/internalerr"
)

func TestLoadCombinators(t *testing.T) {
	tmpDir := t.TempDir()

	content := `combinators:
  - support: "min(X, Y)"
    aggregation: "max(X, Y)"
    attack: "X - Y / 2"
  - support: "X + Y"
    aggregation: "X * Y"
    attack: "X - Y"
`
	path := filepath.Join(tmpDir, "combinators.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	table, err := LoadCombinators(path)
	require.NoError(t, err)
	require.Len(t, table, 2)

	assert.Equal(t, "min(X, Y)", table.Formula(0, inference.Support))
	assert.Equal(t, "max(X, Y)", table.Formula(0, inference.Aggregation))
	assert.Equal(t, "X - Y / 2", table.Formula(0, inference.Attack))
	assert.Equal(t, DefaultCombinators(1)[0], table[1])
}

func TestLoadCombinatorsMissingFile(t *testing.T) {
	_, err := LoadCombinators(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestParseCombinatorsErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"malformed yaml", "combinators: [", internalerr.ErrInvalidConfig},
		{"empty", "combinators: []", internalerr.ErrInvalidConfig},
		{"missing attack", "combinators:\n  - support: X\n    aggregation: Y\n", internalerr.ErrInvalidConfig},
		{"bad formula", "combinators:\n  - support: \"X +\"\n    aggregation: X\n    attack: Y\n", internalerr.ErrFormula},
		{"unknown variable", "combinators:\n  - support: Z\n    aggregation: X\n    attack: Y\n", internalerr.ErrFormula},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCombinators([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDefaultCombinators(t *testing.T) {
	table := DefaultCombinators(3)
	require.Len(t, table, 3)
	for i := range table {
		assert.Equal(t, DefaultSupport, table.Formula(i, inference.Support))
		assert.Equal(t, DefaultAggregation, table.Formula(i, inference.Aggregation))
		assert.Equal(t, DefaultAttack, table.Formula(i, inference.Attack))
	}
	require.NoError(t, Validate(table))
}

func TestMarshalRoundTrip(t *testing.T) {
	table := inference.Table{
		{Support: "max(X, Y)", Aggregation: "X + Y - X * Y", Attack: "X * (1 - Y)"},
	}

	data, err := Marshal(table)
	require.NoError(t, err)

	got, err := ParseCombinators(data)
	require.NoError(t, err)
	assert.Equal(t, table, got)
}
