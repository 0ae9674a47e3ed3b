package store

import (
	"context"
	"time"

	"github.com/cognicore/laf/pkg/laf/graph"
	"github.com/cognicore/laf/pkg/laf/inference"
)

// Store persists derivation runs so a viewer can load them later
type Store interface {
	Close() error

	// SaveRun inserts the run, replacing any run with the same ID.
	SaveRun(ctx context.Context, r Run) error
	// GetRun returns internalerr.ErrNotFound for an unknown ID.
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns summaries, newest first. limit <= 0 returns all runs.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	DeleteRun(ctx context.Context, id string) error

	// FindFacts returns every stored fact node with the given signature,
	// newest run first.
	FindFacts(ctx context.Context, sig inference.Signature) ([]FactRecord, error)
}

// Run is one stored derivation: its inputs and the resulting graph
type Run struct {
	ID          string
	CreatedAt   time.Time
	Program     string
	Combinators inference.Table
	Snapshot    *graph.Snapshot
}

// RunSummary describes a stored run without loading its graph
type RunSummary struct {
	ID        string    `yaml:"id" json:"id"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	Passes    int       `yaml:"passes" json:"passes"`
	Nodes     int       `yaml:"nodes" json:"nodes"`
	Edges     int       `yaml:"edges" json:"edges"`
	Conflicts int       `yaml:"conflicts" json:"conflicts"`
	LiveFacts int       `yaml:"live_facts" json:"live_facts"`
}

// FactRecord locates one fact node inside a stored run
type FactRecord struct {
	RunID      string          `yaml:"run_id" json:"run_id"`
	NodeID     int             `yaml:"node_id" json:"node_id"`
	Live       bool            `yaml:"live" json:"live"`
	Aggregated bool            `yaml:"aggregated" json:"aggregated"`
	Fact       *inference.Fact `yaml:"fact" json:"fact"`
}

// Summarize counts the contents of a run.
func Summarize(r Run) RunSummary {
	s := RunSummary{ID: r.ID, CreatedAt: r.CreatedAt}
	if r.Snapshot == nil {
		return s
	}
	s.Passes = r.Snapshot.Passes
	s.Nodes = len(r.Snapshot.Nodes)
	s.Edges = len(r.Snapshot.Edges)
	s.Conflicts = len(r.Snapshot.Conflicts)
	s.LiveFacts = len(r.Snapshot.LiveFacts())
	return s
}
