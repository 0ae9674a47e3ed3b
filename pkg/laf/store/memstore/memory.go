package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/laf/pkg/laf/graph"
	"github.com/cognicore/laf/pkg/laf/inference"
	"github.com/cognicore/laf/pkg/laf/internalerr"
	"github.com/cognicore/laf/pkg/laf/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu   sync.RWMutex
	runs map[string]store.Run
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{runs: make(map[string]store.Run)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveRun stores the run under its ID. Snapshots are immutable, so the
// run is kept by value without a deep copy.
func (s *Store) SaveRun(ctx context.Context, r store.Run) error {
	if r.ID == "" {
		return fmt.Errorf("%w: run has no id", internalerr.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r.Combinators = append(r.Combinators[:0:0], r.Combinators...)
	s.runs[r.ID] = r
	return nil
}

// GetRun returns the run with the given ID.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return store.Run{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	return r, nil
}

// ListRuns returns run summaries, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := s.newestFirst()
	out := make([]store.RunSummary, len(runs))
	for i, r := range runs {
		out[i] = store.Summarize(r)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteRun removes a run. Deleting an unknown ID is an error.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	delete(s.runs, id)
	return nil
}

// FindFacts scans every run for fact nodes with the given signature.
func (s *Store) FindFacts(ctx context.Context, sig inference.Signature) ([]store.FactRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.FactRecord
	for _, r := range s.newestFirst() {
		if r.Snapshot == nil {
			continue
		}
		for _, n := range r.Snapshot.Nodes {
			if n.Kind != graph.KindFact || n.Fact.Signature() != sig {
				continue
			}
			out = append(out, store.FactRecord{
				RunID:      r.ID,
				NodeID:     n.ID,
				Live:       n.Live,
				Aggregated: n.Aggregated,
				Fact:       n.Fact,
			})
		}
	}
	return out, nil
}

// newestFirst must be called with mu held.
func (s *Store) newestFirst() []store.Run {
	runs := make([]store.Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID > runs[j].ID
	})
	return runs
}
