package laf

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cognicore/laf/pkg/laf/config"
	"github.com/cognicore/laf/pkg/laf/inference"
	"github.com/cognicore/laf/pkg/laf/internalerr"
	"github.com/cognicore/laf/pkg/laf/store/memstore"
)

const birds = `
bird(tweety). {0.5}
flies(X) :- bird(X). {0.1}
`

func fixedClock() func() time.Time {
	t := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestRunStoresResult(t *testing.T) {
	ctx := context.Background()
	l := New(Options{Store: memstore.New(), Now: fixedClock()})
	defer l.Close()

	res, err := l.Run(ctx, Request{Program: birds})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RunID == "" {
		t.Fatal("Expected a run ID")
	}

	flies, ok := res.Snapshot.Lookup(inference.Signature{Name: "flies", Argument: "tweety"})
	if !ok {
		t.Fatal("Expected flies(tweety) to be derived")
	}
	if math.Abs(flies.Fact.Attributes[0]-0.6) > 1e-9 {
		t.Errorf("Expected default support 0.5 + 0.1 = 0.6, got %v", flies.Fact.Attributes)
	}

	stored, err := l.GetRun(ctx, res.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Program != birds {
		t.Errorf("Stored program mismatch: %q", stored.Program)
	}
	if len(stored.Combinators) != 1 || stored.Combinators[0] != config.DefaultCombinators(1)[0] {
		t.Errorf("Expected default combinators to be stored, got %+v", stored.Combinators)
	}
	if !stored.CreatedAt.Equal(res.CreatedAt) {
		t.Errorf("CreatedAt mismatch: %v vs %v", stored.CreatedAt, res.CreatedAt)
	}
}

func TestRunIDsSortByTime(t *testing.T) {
	ctx := context.Background()
	l := New(Options{Store: memstore.New(), Now: fixedClock()})

	var ids []string
	for i := 0; i < 3; i++ {
		res, err := l.Run(ctx, Request{Program: birds})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		ids = append(ids, res.RunID)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("Expected increasing IDs, got %v", ids)
		}
	}

	runs, err := l.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != ids[2] {
		t.Errorf("Expected newest run first, got %+v", runs)
	}

	recs, err := l.FindFacts(ctx, inference.Signature{Name: "bird", Argument: "tweety"})
	if err != nil {
		t.Fatalf("FindFacts: %v", err)
	}
	if len(recs) != 3 {
		t.Errorf("Expected bird(tweety) in every run, got %d", len(recs))
	}

	if err := l.DeleteRun(ctx, ids[0]); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if _, err := l.GetRun(ctx, ids[0]); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRunWithoutStore(t *testing.T) {
	ctx := context.Background()
	l := New(Options{})

	res, err := l.Run(ctx, Request{Program: birds})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Snapshot == nil {
		t.Fatal("Expected a snapshot")
	}

	if _, err := l.ListRuns(ctx, 0); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig without store, got %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"parse error", Request{Program: "bird(tweety) 0.5"}, internalerr.ErrInvalidInput},
		{"empty program", Request{Program: "# nothing\n"}, internalerr.ErrEmptyInput},
		{"arity mismatch", Request{
			Program:     birds,
			Combinators: config.DefaultCombinators(2),
		}, internalerr.ErrArityMismatch},
		{"bad formula", Request{
			Program:     birds,
			Combinators: inference.Table{{Support: "X +", Aggregation: "X", Attack: "X"}},
		}, internalerr.ErrFormula},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := memstore.New()
			_, err := New(Options{Store: st}).Run(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			if runs, _ := st.ListRuns(context.Background(), 0); len(runs) != 0 {
				t.Errorf("Failed run was stored: %+v", runs)
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{}).Run(ctx, Request{Program: birds})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRunMaxPasses(t *testing.T) {
	// The birds program needs a second, quiet pass.
	_, err := New(Options{MaxPasses: 1}).Run(context.Background(), Request{Program: birds})
	if !errors.Is(err, internalerr.ErrNoFixpoint) {
		t.Errorf("Expected ErrNoFixpoint, got %v", err)
	}
}

func TestRunSelfRecursiveProgram(t *testing.T) {
	res, err := New(Options{MaxPasses: 8}).Run(context.Background(), Request{
		Program: "p(a). {0.5}\np(X) :- p(X). {0.1}\n",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	p, ok := res.Snapshot.Lookup(inference.Signature{Name: "p", Argument: "a"})
	if !ok || !p.Aggregated {
		t.Fatalf("Expected an aggregated p(a), got %v", p)
	}
	if math.Abs(p.Fact.Attributes[0]-0.3) > 1e-9 {
		t.Errorf("Expected p(a) = 0.6 * 0.5 = 0.3, got %v", p.Fact.Attributes)
	}
}

func TestRunFiles(t *testing.T) {
	tmpDir := t.TempDir()
	progPath := filepath.Join(tmpDir, "birds.laf")
	if err := os.WriteFile(progPath, []byte(birds), 0644); err != nil {
		t.Fatal(err)
	}
	combPath := filepath.Join(tmpDir, "combinators.yaml")
	comb := "combinators:\n  - support: \"max(X, Y)\"\n    aggregation: \"X * Y\"\n    attack: \"X - Y\"\n"
	if err := os.WriteFile(combPath, []byte(comb), 0644); err != nil {
		t.Fatal(err)
	}

	core, logs := observer.New(zapcore.InfoLevel)
	l := New(Options{Store: memstore.New(), Logger: zap.New(core)})

	res, err := l.RunFiles(context.Background(), &config.Loader{ProgramPath: progPath, CombinatorsPath: combPath})
	if err != nil {
		t.Fatalf("RunFiles: %v", err)
	}

	flies, ok := res.Snapshot.Lookup(inference.Signature{Name: "flies", Argument: "tweety"})
	if !ok || math.Abs(flies.Fact.Attributes[0]-0.5) > 1e-9 {
		t.Errorf("Expected max(max(0, 0.5), 0.1) = 0.5, got %v", flies)
	}

	if logs.FilterMessage("run stored").Len() != 1 {
		t.Errorf("Expected one 'run stored' log, got %v", logs.All())
	}
	if logs.FilterMessage("derivation complete").Len() != 1 {
		t.Errorf("Expected engine summary log, got %v", logs.All())
	}
}
