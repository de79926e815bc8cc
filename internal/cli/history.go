package cli

import (
	"fmt"
	"time"

	"github.com/me/cpsync/internal/store"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history [run_id]",
		Short: "List recorded sync runs, or the outcomes of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("history") {
				cfg.HistoryDB = dbPath
			}
			if cfg.HistoryDB == "" {
				return fmt.Errorf("history is disabled")
			}

			st, err := openHistory(cmd.Context(), cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer st.Close()

			if len(args) == 1 {
				return printOutcomes(cmd, st, args[0])
			}
			return printRuns(cmd, st, limit)
		},
	}

	cmd.Flags().StringVar(&dbPath, "history", "", "SQLite history database")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}

func printRuns(cmd *cobra.Command, st store.Store, limit int) error {
	runs, err := st.ListRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(out, "%-40s  %-10s  %-16s  %-8s  %7s  %7s  %6s  %s\n",
		"ID", "PLATFORM", "HANDLE", "STATE", "WRITTEN", "SKIPPED", "FAILED", "STARTED")
	for _, r := range runs {
		fmt.Fprintf(out, "%-40s  %-10s  %-16s  %-8s  %7d  %7d  %6d  %s\n",
			r.ID, r.Platform, r.Handle, r.State, r.Written, r.Skipped, r.Failed,
			r.StartedAt.Local().Format(time.DateTime))
	}
	return nil
}

func printOutcomes(cmd *cobra.Command, st store.Store, runID string) error {
	run, err := st.GetRun(cmd.Context(), runID)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	rows, err := st.ListOutcomes(cmd.Context(), runID)
	if err != nil {
		return fmt.Errorf("list outcomes: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s/%s %s\n", run.ID, run.Platform, run.Handle, run.State)
	if run.Error != "" {
		fmt.Fprintln(out, failStyle.Render("error: "+run.Error))
	}
	fmt.Fprintf(out, "%-12s  %-12s  %-8s  %-18s  %s\n", "PROBLEM", "SUBMISSION", "STATUS", "REASON", "PATH")
	for _, o := range rows {
		fmt.Fprintf(out, "%-12s  %-12s  %-8s  %-18s  %s\n", o.ProblemKey, o.SubmissionID, o.Status, o.Reason, o.Path)
	}
	return nil
}
