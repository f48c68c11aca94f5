package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sagent/internal/config"
)

var (
	watchDebounce   time.Duration
	watchNoRollback bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <saga.yaml>",
	Short: "Re-run a saga whenever its file changes",
	Long: `Run a saga, then run it again each time the file is written.

Every run uses a fresh coordinator, so results never carry over between runs.
A failed run does not stop the watch. Press Ctrl+C to stop.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return watchSaga(ctx, cmd.OutOrStdout(), cfg, args[0], watchDebounce, runOptions{noRollback: watchNoRollback})
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "Wait this long after a change before running")
	watchCmd.Flags().BoolVar(&watchNoRollback, "no-rollback", false, "Do not roll back completed tasks on failure")
}

// watchSaga runs the saga once, then again after each debounced change to
// path, until ctx is done.
func watchSaga(ctx context.Context, w io.Writer, cfg *config.Config, path string, debounce time.Duration, opts runOptions) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	runOnce := func() {
		if _, err := runSaga(ctx, w, cfg, abs, opts); err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
		}
		fmt.Fprintf(w, "\nWatching %s for changes...\n", path)
	}
	runOnce()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "watch error: %v\n", err)
		case <-fire:
			fire = nil
			runOnce()
		}
	}
}
