// Command laf runs weighted argumentation programs and inspects stored runs.
//
// Usage:
//
//	laf run --program birds.laf [--combinators comb.yaml] [--db runs.db] [--format text|yaml|json] [--max-passes n]
//	laf show <run-id> --db runs.db
//	laf list --db runs.db
//	laf delete <run-id> --db runs.db
//	laf facts 'flies(tweety)' --db runs.db
//	laf check --combinators comb.yaml [--program birds.laf]
//	laf fmt birds.laf
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cognicore/laf/pkg/laf"
	"github.com/cognicore/laf/pkg/laf/store/sqlite"
)

// cli holds the persistent flags and the logger shared by all commands
type cli struct {
	verbose bool
	dbPath  string
	format  string

	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "laf",
		Short: "Weighted argumentation: derive, aggregate and resolve conflicts",
		Long: `laf derives every conclusion of a weighted argumentation program.

Facts and rules carry one strength per attribute. Support, aggregation and
attack formulas over X and Y decide how strengths combine. Runs can be stored
in a SQLite database and inspected later.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch c.format {
			case "text", "yaml", "json":
			default:
				return fmt.Errorf("unknown format %q, want text, yaml or json", c.format)
			}

			config := zap.NewProductionConfig()
			if c.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = c.logger.Sync()
		},
	}

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite database holding stored runs")
	root.PersistentFlags().StringVarP(&c.format, "format", "f", "text", "Output format: text, yaml or json")

	root.AddCommand(
		c.runCmd(),
		c.showCmd(),
		c.listCmd(),
		c.deleteCmd(),
		c.factsCmd(),
		c.checkCmd(),
		c.fmtCmd(),
	)
	return root
}

// open builds the facade, backed by the SQLite store when --db is set.
// requireStore rejects a missing --db.
func (c *cli) open(ctx context.Context, requireStore bool, maxPasses int) (*laf.Laf, error) {
	opts := laf.Options{Logger: c.logger, MaxPasses: maxPasses}
	if c.dbPath == "" {
		if requireStore {
			return nil, fmt.Errorf("--db is required")
		}
		return laf.New(opts), nil
	}

	st, err := sqlite.OpenSQLite(ctx, c.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", c.dbPath, err)
	}
	opts.Store = st
	return laf.New(opts), nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
