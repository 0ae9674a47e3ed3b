package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/laf/pkg/laf/graph"
	"github.com/cognicore/laf/pkg/laf/inference"
	"github.com/cognicore/laf/pkg/laf/internalerr"
	"github.com/cognicore/laf/pkg/laf/store"
)

// Fixed width so that created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Initialize schema
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	program TEXT NOT NULL,
	combinators TEXT NOT NULL,
	passes INTEGER NOT NULL,
	snapshot TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_nodes (
	run_id TEXT NOT NULL,
	node_id INTEGER NOT NULL,
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	argument TEXT NOT NULL DEFAULT '',
	live INTEGER NOT NULL DEFAULT 0,
	aggregated INTEGER NOT NULL DEFAULT 0,
	attributes TEXT NOT NULL,
	delta_attributes TEXT,
	PRIMARY KEY(run_id, node_id),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS run_edges (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	from_id INTEGER NOT NULL,
	to_id INTEGER NOT NULL,
	PRIMARY KEY(run_id, seq),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS run_conflicts (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	negative INTEGER NOT NULL,
	positive INTEGER NOT NULL,
	PRIMARY KEY(run_id, seq),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_run_nodes_signature ON run_nodes(name, argument);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRun inserts a run and its graph tables, replacing an existing run
// with the same ID
func (s *sqliteStore) SaveRun(ctx context.Context, r store.Run) error {
	if r.ID == "" {
		return fmt.Errorf("%w: run has no id", internalerr.ErrInvalidInput)
	}
	if r.Snapshot == nil {
		return fmt.Errorf("%w: run %s has no snapshot", internalerr.ErrInvalidInput, r.ID)
	}

	combJSON, err := json.Marshal(r.Combinators)
	if err != nil {
		return err
	}
	snapJSON, err := json.Marshal(r.Snapshot)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteRun(ctx, tx, r.ID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (id, created_at, program, combinators, passes, snapshot)
VALUES (?, ?, ?, ?, ?, ?);
`, r.ID, r.CreatedAt.UTC().Format(timeLayout), r.Program, string(combJSON), r.Snapshot.Passes, string(snapJSON))
	if err != nil {
		return err
	}

	if err := insertNodes(ctx, tx, r.ID, r.Snapshot.Nodes); err != nil {
		return err
	}
	if err := insertEdges(ctx, tx, r.ID, r.Snapshot.Edges); err != nil {
		return err
	}
	if err := insertConflicts(ctx, tx, r.ID, r.Snapshot.Conflicts); err != nil {
		return err
	}

	return tx.Commit()
}

func insertNodes(ctx context.Context, tx *sql.Tx, runID string, nodes []graph.Node) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO run_nodes (run_id, node_id, kind, name, argument, live, aggregated, attributes, delta_attributes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, n := range nodes {
		var name, arg string
		var delta []float64
		piece := n.Piece()
		switch p := piece.(type) {
		case *inference.Fact:
			name, arg, delta = p.Name, p.Argument, p.DeltaAttributes
		case *inference.Rule:
			name = p.Head
		default:
			return fmt.Errorf("%w: node %d has kind %q", internalerr.ErrInvalidInput, n.ID, n.Kind)
		}

		attrsJSON, err := json.Marshal(piece.Weights())
		if err != nil {
			return err
		}
		var deltaJSON sql.NullString
		if delta != nil {
			b, err := json.Marshal(delta)
			if err != nil {
				return err
			}
			deltaJSON = sql.NullString{String: string(b), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, runID, n.ID, string(n.Kind), name, arg, n.Live, n.Aggregated, string(attrsJSON), deltaJSON); err != nil {
			return err
		}
	}
	return nil
}

func insertEdges(ctx context.Context, tx *sql.Tx, runID string, edges []graph.Edge) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_edges (run_id, seq, from_id, to_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range edges {
		if _, err := stmt.ExecContext(ctx, runID, i, e.From, e.To); err != nil {
			return err
		}
	}
	return nil
}

func insertConflicts(ctx context.Context, tx *sql.Tx, runID string, conflicts []graph.Conflict) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_conflicts (run_id, seq, negative, positive) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range conflicts {
		if _, err := stmt.ExecContext(ctx, runID, i, c.Negative, c.Positive); err != nil {
			return err
		}
	}
	return nil
}

// deleteRun removes child rows explicitly; foreign key enforcement is per
// connection and cannot be relied on across the pool.
func deleteRun(ctx context.Context, tx *sql.Tx, id string) error {
	for _, tbl := range []string{"run_nodes", "run_edges", "run_conflicts"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE run_id = ?`, tbl), id); err != nil {
			return err
		}
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	return err
}

// GetRun loads a run and its snapshot
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, error) {
	var r store.Run
	var createdAt, combJSON, snapJSON string

	err := s.db.QueryRowContext(ctx, `
SELECT id, created_at, program, combinators, snapshot
FROM runs
WHERE id = ?;
`, id).Scan(&r.ID, &createdAt, &r.Program, &combJSON, &snapJSON)
	if err == sql.ErrNoRows {
		return store.Run{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	if err != nil {
		return store.Run{}, err
	}

	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return store.Run{}, fmt.Errorf("run %s: created_at: %w", id, err)
	}
	if err := json.Unmarshal([]byte(combJSON), &r.Combinators); err != nil {
		return store.Run{}, fmt.Errorf("run %s: combinators: %w", id, err)
	}

	snap := &graph.Snapshot{}
	if err := json.Unmarshal([]byte(snapJSON), snap); err != nil {
		return store.Run{}, fmt.Errorf("run %s: snapshot: %w", id, err)
	}
	snap.Reindex()
	r.Snapshot = snap

	return r, nil
}

// ListRuns summarizes stored runs from the graph tables, newest first
func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT r.id, r.created_at, r.passes,
	(SELECT COUNT(*) FROM run_nodes n WHERE n.run_id = r.id),
	(SELECT COUNT(*) FROM run_edges e WHERE e.run_id = r.id),
	(SELECT COUNT(*) FROM run_conflicts c WHERE c.run_id = r.id),
	(SELECT COUNT(*) FROM run_nodes n WHERE n.run_id = r.id AND n.kind = 'fact' AND n.live = 1)
FROM runs r
ORDER BY r.created_at DESC, r.id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.RunSummary
	for rows.Next() {
		var sum store.RunSummary
		var createdAt string
		if err := rows.Scan(&sum.ID, &createdAt, &sum.Passes, &sum.Nodes, &sum.Edges, &sum.Conflicts, &sum.LiveFacts); err != nil {
			return nil, err
		}
		if sum.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("run %s: created_at: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its graph tables
func (s *sqliteStore) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	if err != nil {
		return err
	}

	if err := deleteRun(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

// FindFacts queries the node table for facts with the given signature
func (s *sqliteStore) FindFacts(ctx context.Context, sig inference.Signature) ([]store.FactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT n.run_id, n.node_id, n.live, n.aggregated, n.attributes, n.delta_attributes
FROM run_nodes n
JOIN runs r ON r.id = n.run_id
WHERE n.kind = 'fact' AND n.name = ? AND n.argument = ?
ORDER BY r.created_at DESC, r.id DESC, n.node_id;
`, sig.Name, sig.Argument)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.FactRecord
	for rows.Next() {
		rec := store.FactRecord{Fact: &inference.Fact{Name: sig.Name, Argument: sig.Argument}}
		var attrsJSON string
		var deltaJSON sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.NodeID, &rec.Live, &rec.Aggregated, &attrsJSON, &deltaJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(attrsJSON), &rec.Fact.Attributes); err != nil {
			return nil, err
		}
		if deltaJSON.Valid {
			if err := json.Unmarshal([]byte(deltaJSON.String), &rec.Fact.DeltaAttributes); err != nil {
				return nil, err
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
