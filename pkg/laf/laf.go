// Package laf runs weighted argumentation programs and keeps the resulting
// derivation graphs.
package laf

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/laf/pkg/laf/config"
	"github.com/cognicore/laf/pkg/laf/formula"
	"github.com/cognicore/laf/pkg/laf/graph"
	"github.com/cognicore/laf/pkg/laf/inference"
	"github.com/cognicore/laf/pkg/laf/inference/forward"
	"github.com/cognicore/laf/pkg/laf/internalerr"
	"github.com/cognicore/laf/pkg/laf/program"
	"github.com/cognicore/laf/pkg/laf/store"
)

// Laf is the main facade
type Laf struct {
	store     store.Store
	logger    *zap.Logger
	maxPasses int
	now       func() time.Time

	// one compile cache shared by every run
	eval *formula.Cache

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Options configures a Laf instance
type Options struct {
	// Store keeps finished runs. Without one, runs are not persisted.
	Store  store.Store
	Logger *zap.Logger
	// MaxPasses overrides forward.DefaultMaxPasses when positive.
	MaxPasses int
	// Now stamps runs; defaults to time.Now.
	Now func() time.Time
}

// New creates a Laf instance with the given dependencies
func New(opts Options) *Laf {
	l := &Laf{
		store:     opts.Store,
		logger:    opts.Logger,
		maxPasses: opts.MaxPasses,
		now:       opts.Now,
		eval:      formula.NewCache(),
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Close cleanly shuts down the store, if any
func (l *Laf) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

// Request is one program to run
type Request struct {
	// Program is the program text (see package program).
	Program string
	// Combinators defaults to config.DefaultCombinators for the arity of the
	// first fact when empty.
	Combinators inference.Table
}

// Result is a finished run
type Result struct {
	RunID     string
	CreatedAt time.Time
	Snapshot  *graph.Snapshot
}

// Run parses and derives the program, then stores the result
func (l *Laf) Run(ctx context.Context, req Request) (*Result, error) {
	prog, err := program.ParseString(req.Program)
	if err != nil {
		return nil, fmt.Errorf("parse program: %w", err)
	}
	return l.run(ctx, req.Program, prog.Facts, prog.Rules, req.Combinators)
}

// RunFiles loads the program and combinator files named by the loader and runs them
func (l *Laf) RunFiles(ctx context.Context, loader *config.Loader) (*Result, error) {
	comp, err := loader.Load()
	if err != nil {
		return nil, err
	}
	return l.run(ctx, comp.Source, comp.Facts, comp.Rules, comp.Combinators)
}

func (l *Laf) run(ctx context.Context, src string, facts []*inference.Fact, rules []*inference.Rule, table inference.Table) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(table) == 0 {
		table = config.DefaultCombinators(config.Arity(facts))
	}

	opts := []forward.Option{
		forward.WithLogger(l.logger.Named("engine")),
		forward.WithEvaluator(l.eval),
	}
	if l.maxPasses > 0 {
		opts = append(opts, forward.WithMaxPasses(l.maxPasses))
	}

	snap, err := forward.New(facts, rules, table, opts...).Run()
	if err != nil {
		return nil, err
	}

	created := l.now()
	res := &Result{
		RunID:     l.newID(created),
		CreatedAt: created,
		Snapshot:  snap,
	}

	if l.store == nil {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err = l.store.SaveRun(ctx, store.Run{
		ID:          res.RunID,
		CreatedAt:   created,
		Program:     src,
		Combinators: table,
		Snapshot:    snap,
	})
	if err != nil {
		return nil, fmt.Errorf("save run %s: %w", res.RunID, err)
	}
	l.logger.Info("run stored", zap.String("run_id", res.RunID))

	return res, nil
}

func (l *Laf) newID(t time.Time) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), l.entropy).String()
}

// GetRun loads a stored run
func (l *Laf) GetRun(ctx context.Context, id string) (store.Run, error) {
	if l.store == nil {
		return store.Run{}, errNoStore
	}
	return l.store.GetRun(ctx, id)
}

// ListRuns lists stored runs, newest first
func (l *Laf) ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error) {
	if l.store == nil {
		return nil, errNoStore
	}
	return l.store.ListRuns(ctx, limit)
}

// DeleteRun removes a stored run
func (l *Laf) DeleteRun(ctx context.Context, id string) error {
	if l.store == nil {
		return errNoStore
	}
	return l.store.DeleteRun(ctx, id)
}

// FindFacts returns every stored occurrence of a fact signature
func (l *Laf) FindFacts(ctx context.Context, sig inference.Signature) ([]store.FactRecord, error) {
	if l.store == nil {
		return nil, errNoStore
	}
	return l.store.FindFacts(ctx, sig)
}

var errNoStore = fmt.Errorf("%w: no store configured", internalerr.ErrInvalidConfig)
