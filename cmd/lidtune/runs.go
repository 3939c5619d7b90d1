package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cognicore/lidtune/pkg/lidtune/autotune/search"
	"github.com/cognicore/lidtune/pkg/lidtune/internalerr"
	"github.com/cognicore/lidtune/pkg/lidtune/report"
	"github.com/cognicore/lidtune/pkg/lidtune/store"
)

func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs [RUN]",
		Short: "List journaled runs, or the ranked results of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRuns,
	}
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path, _ := cmd.Flags().GetString("journal")
	if path == "" {
		return errors.New("runs: --journal is required")
	}
	journal, err := openJournal(ctx, path)
	if err != nil {
		return err
	}
	defer journal.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		runs, err := journal.ListRuns(ctx)
		if err != nil {
			return err
		}
		printRuns(out, runs)
		return nil
	}

	runID := args[0]
	if _, found, err := journal.GetRun(ctx, runID); err != nil {
		return err
	} else if !found {
		return fmt.Errorf("runs: %s: %w", runID, internalerr.ErrNotFound)
	}
	results, err := journal.Results(ctx, runID)
	if err != nil {
		return err
	}

	table := search.NewResultTable()
	for _, r := range results {
		table.Set(search.Point{MinN: r.MinN, MaxN: r.MaxN, Smoothing: r.Smoothing}, r.MacroF1)
	}
	report.PrintRanked(out, search.Rank(table))
	return nil
}

func printRuns(w io.Writer, runs []store.Run) {
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  train=%s dev=%s languages=%d\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.TrainPath, r.DevPath, len(r.Languages))
	}
}
