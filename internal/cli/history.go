package cli

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rust-lang/sync-team/internal/store"
)

// NewHistoryCommand creates the history command, which lists journaled
// runs from the database.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled sync runs",
		Long: `List the most recent sync runs recorded in the run journal,
newest first, with their plan hash, outcome, and per-status action
counts.

Example:
  sync-team history --db ./sync-team.db
  sync-team history --db ./sync-team.db --limit 50`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.Database == "" {
				return NewExitError(ExitCommandError, "--db is required for history")
			}
			return runHistory(rootOpts.Database, limit, cmd)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")

	return cmd
}

func runHistory(path string, limit int, cmd *cobra.Command) error {
	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening the run journal failed", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "listing runs failed", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no journaled runs")
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.AppendHeader(table.Row{"Run", "Started", "Mode", "Hash", "Outcome", "Actions"})
	for _, r := range runs {
		counts, err := st.ActionCounts(r.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "counting run actions failed", err)
		}
		mode := "live"
		if r.DryRun {
			mode = "dry-run"
		}
		tw.AppendRow(table.Row{
			shortID(r.ID),
			r.StartedAt.Format(time.RFC3339),
			mode,
			shortHash(r.Hash),
			r.Outcome,
			formatCounts(counts),
		})
	}
	tw.Render()
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// formatCounts renders status counts in a fixed order so the table is
// scannable across rows.
func formatCounts(counts map[string]int) string {
	order := []string{"applied", "dry-run", "failed", "skipped"}
	out := ""
	for _, status := range order {
		if n, ok := counts[status]; ok {
			if out != "" {
				out += " "
			}
			out += fmt.Sprintf("%s:%d", status, n)
		}
	}
	if out == "" {
		out = "-"
	}
	return out
}
