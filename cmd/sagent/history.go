package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sagent/internal/config"
	"github.com/ShayCichocki/sagent/internal/state"
)

var (
	historyLimit int
	historyPurge time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded runs, or show one run's steps",
	Long: `Without arguments, lists the most recent runs.
With a run ID (or a unique prefix of one), prints that run's steps.

Examples:
  sagent history
  sagent history 3f2a
  sagent history --purge 720h`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		db, err := openHistory(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		switch {
		case cmd.Flags().Changed("purge"):
			n, err := db.PurgeRuns(ctx, historyPurge)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Purged %d runs\n", n)
			return nil
		case len(args) == 1:
			return showRun(ctx, out, db, args[0])
		default:
			return listRuns(ctx, out, db, historyLimit)
		}
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to list")
	historyCmd.Flags().DurationVar(&historyPurge, "purge", 0, "Delete runs older than this duration")
}

func openHistory(cfg *config.Config) (*state.DB, error) {
	path := cfg.History.Path
	if path == "" {
		path = config.DefaultHistoryPath()
	}
	return state.OpenAndMigrate(path)
}

func listRuns(ctx context.Context, w io.Writer, store state.RunStore, limit int) error {
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}

	t := newTable("Run", "Saga", "Status", "Started", "Duration")
	for _, r := range runs {
		t.Row(
			shortID(r.ID),
			r.Saga,
			styleStatus(string(r.Status)),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Duration().Round(time.Millisecond).String(),
		)
	}
	fmt.Fprintln(w, t.Render())
	return nil
}

func showRun(ctx context.Context, w io.Writer, store state.RunStore, id string) error {
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run %s (%s)\n", run.ID, run.Saga)
	fmt.Fprintf(w, "Status:   %s\n", styleStatus(string(run.Status)))
	fmt.Fprintf(w, "Rollback: %t\n", run.WithRollback)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "Duration: %s\n", run.Duration().Round(time.Millisecond))
	if run.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", run.Error)
	}

	t := newTable("#", "Task", "Phase", "Outcome", "Detail")
	for _, s := range run.Steps {
		t.Row(fmt.Sprintf("%d", s.Seq), s.Task, string(s.Phase), styleStatus(string(s.Outcome)), oneLine(s.Detail))
	}
	fmt.Fprintln(w, t.Render())
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
