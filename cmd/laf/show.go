package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cognicore/laf/pkg/laf/inference"
	"github.com/cognicore/laf/pkg/laf/program"
)

func (c *cli) showCmd() *cobra.Command {
	var withProgram bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := c.open(cmd.Context(), true, 0)
			if err != nil {
				return err
			}
			defer l.Close()

			run, err := l.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			view := runView{RunID: run.ID, CreatedAt: run.CreatedAt, Snapshot: run.Snapshot}
			if withProgram {
				view.Program = run.Program
				view.Combinators = run.Combinators
			}
			return c.write(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().BoolVar(&withProgram, "program", false, "Include the program text and combinators")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := c.open(cmd.Context(), true, 0)
			if err != nil {
				return err
			}
			defer l.Close()

			runs, err := l.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if c.format != "text" {
				return c.write(cmd.OutOrStdout(), runs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tPASSES\tNODES\tEDGES\tFACTS\tCONFLICTS")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Passes, r.Nodes, r.Edges, r.LiveFacts, r.Conflicts)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs (0 for all)")
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := c.open(cmd.Context(), true, 0)
			if err != nil {
				return err
			}
			defer l.Close()

			if err := l.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) factsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "facts <name(argument)>",
		Short: "Find a fact across stored runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := parseSignature(args[0])
			if err != nil {
				return err
			}

			l, err := c.open(cmd.Context(), true, 0)
			if err != nil {
				return err
			}
			defer l.Close()

			recs, err := l.FindFacts(cmd.Context(), sig)
			if err != nil {
				return err
			}

			if c.format != "text" {
				return c.write(cmd.OutOrStdout(), recs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tNODE\tATTRIBUTES\tDELTA\tSTATE")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%d\t%v\t%v\t%s\n", r.RunID, r.NodeID, r.Fact.Attributes, r.Fact.DeltaAttributes, state(r.Live, r.Aggregated))
			}
			return tw.Flush()
		},
	}
}

// parseSignature reads "name(argument)" using the program grammar.
func parseSignature(s string) (inference.Signature, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	prog, err := program.ParseString(s + ".")
	if err != nil || len(prog.Facts) != 1 {
		return inference.Signature{}, fmt.Errorf("invalid signature %q, want name(argument)", s)
	}
	return prog.Facts[0].Signature(), nil
}

func state(live, aggregated bool) string {
	switch {
	case live && aggregated:
		return "live, aggregated"
	case live:
		return "live"
	case aggregated:
		return "aggregated"
	}
	return "superseded"
}
