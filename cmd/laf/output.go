package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/laf/pkg/laf/graph"
	"github.com/cognicore/laf/pkg/laf/inference"
)

// runView is what run and show print
type runView struct {
	RunID       string          `yaml:"run_id,omitempty" json:"run_id,omitempty"`
	CreatedAt   time.Time       `yaml:"created_at" json:"created_at"`
	Program     string          `yaml:"program,omitempty" json:"program,omitempty"`
	Combinators inference.Table `yaml:"combinators,omitempty" json:"combinators,omitempty"`
	Snapshot    *graph.Snapshot `yaml:"graph" json:"graph"`
}

// write encodes v in the selected format. Text output is only defined for
// runs; other values fall back to YAML.
func (c *cli) write(w io.Writer, v any) error {
	switch c.format {
	case "text":
		if rv, ok := v.(runView); ok {
			return rv.render(w)
		}
		fallthrough
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown format %q, want text, yaml or json", c.format)
}

func (rv runView) render(w io.Writer) error {
	if rv.RunID != "" {
		fmt.Fprintf(w, "Run %s (%s)\n\n", rv.RunID, rv.CreatedAt.Local().Format(time.DateTime))
	}
	if rv.Program != "" {
		fmt.Fprintf(w, "Program:\n%s\n", rv.Program)
	}
	return rv.Snapshot.Render(w)
}
