package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/laf/pkg/laf/config"
	"github.com/cognicore/laf/pkg/laf/inference"
	"github.com/cognicore/laf/pkg/laf/program"
)

func (c *cli) runCmd() *cobra.Command {
	var (
		loader    config.Loader
		maxPasses int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Derive a program to its fixpoint and print the graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := c.open(cmd.Context(), false, maxPasses)
			if err != nil {
				return err
			}
			defer l.Close()

			res, err := l.RunFiles(cmd.Context(), &loader)
			if err != nil {
				return err
			}
			return c.write(cmd.OutOrStdout(), runView{
				RunID:     res.RunID,
				CreatedAt: res.CreatedAt,
				Snapshot:  res.Snapshot,
			})
		},
	}

	cmd.Flags().StringVarP(&loader.ProgramPath, "program", "p", "", "Program file")
	cmd.Flags().StringVarP(&loader.CombinatorsPath, "combinators", "c", "", "Combinator YAML file (default formulas when empty)")
	cmd.Flags().IntVar(&maxPasses, "max-passes", 0, "Fixpoint pass limit (0 keeps the engine default)")
	_ = cmd.MarkFlagRequired("program")
	return cmd
}

func (c *cli) checkCmd() *cobra.Command {
	var combPath, progPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a combinator file, optionally against a program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := config.LoadCombinators(combPath)
			if err != nil {
				return err
			}

			if progPath != "" {
				f, err := os.Open(progPath)
				if err != nil {
					return err
				}
				defer f.Close()

				prog, err := program.Parse(f)
				if err != nil {
					return fmt.Errorf("parse program %s: %w", progPath, err)
				}
				if _, err := inference.Validate(prog.Facts, prog.Rules, table); err != nil {
					return err
				}
			}

			c.logger.Debug("combinators valid", zap.String("path", combPath), zap.Int("attributes", len(table)))
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d attributes\n", len(table))
			return nil
		},
	}

	cmd.Flags().StringVarP(&combPath, "combinators", "c", "", "Combinator YAML file")
	cmd.Flags().StringVarP(&progPath, "program", "p", "", "Program file to check arity against")
	_ = cmd.MarkFlagRequired("combinators")
	return cmd
}

func (c *cli) fmtCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fmt <program>",
		Short: "Print a program in canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			prog, err := program.Parse(f)
			if err != nil {
				return err
			}
			return program.Format(cmd.OutOrStdout(), prog.Facts, prog.Rules)
		},
	}
}
