package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nordic-credit/registry-cli/internal/etl"
)

var etlRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List pipeline run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("runs"); err != nil {
			return err
		}

		pool, err := etlPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		entries, err := etl.NewRunLog(pool).ListAll(ctx)
		if err != nil {
			return eris.Wrap(err, "etl runs")
		}

		formatRunsList(cmd.OutOrStdout(), entries)
		return nil
	},
}

// formatRunsList renders the run history table.
func formatRunsList(w io.Writer, entries []etl.RunEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}

	fmt.Fprintf(w, "%-36s  %-20s  %-9s  %9s  %6s  %8s\n",
		"ID", "STARTED", "STATUS", "PROCESSED", "DUPES", "SECONDS")
	for _, e := range entries {
		fmt.Fprintf(w, "%-36s  %-20s  %-9s  %9d  %6d  %8.1f\n",
			e.ID,
			e.StartedAt.Format("2006-01-02 15:04:05"),
			runStatus(e),
			e.RecordsProcessed,
			e.DuplicatesRemoved,
			e.ExecutionSeconds,
		)
	}
}

func init() {
	etlCmd.AddCommand(etlRunsCmd)
}

// runStatus renders the success flag of a run entry.
func runStatus(e etl.RunEntry) string {
	switch {
	case e.Success == nil:
		return "running"
	case *e.Success:
		return "complete"
	default:
		return "failed"
	}
}
