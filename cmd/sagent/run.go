package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sagent/internal/config"
	"github.com/ShayCichocki/sagent/internal/definition"
	"github.com/ShayCichocki/sagent/internal/exec"
	"github.com/ShayCichocki/sagent/internal/saga"
	"github.com/ShayCichocki/sagent/internal/state"
	"github.com/ShayCichocki/sagent/pkg/models"
)

// eventBuffer sizes the channel between the coordinator and the renderer.
const eventBuffer = 256

var (
	runNoRollback bool
	runInspect    []string
	runRestore    []string
	runDetails    bool
	runNoHistory  bool
	runTimeout    time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <saga.yaml>",
	Short: "Run a saga definition",
	Long: `Run every task of a saga definition in dependency order.

If a task fails, completed tasks are rolled back in reverse completion order
unless rollback is disabled. The process exits non-zero when the run fails.

Examples:
  sagent run saga.yaml
  sagent run saga.yaml --no-rollback
  sagent run saga.yaml --inspect build --details
  sagent run saga.yaml --restore deploy`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		opts := runOptions{
			noRollback: runNoRollback,
			inspect:    runInspect,
			restore:    runRestore,
			details:    runDetails,
			noHistory:  runNoHistory,
			timeout:    runTimeout,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		_, err = runSaga(ctx, cmd.OutOrStdout(), cfg, args[0], opts)
		return err
	},
}

func init() {
	runCmd.Flags().BoolVar(&runNoRollback, "no-rollback", false, "Do not roll back completed tasks on failure")
	runCmd.Flags().StringSliceVar(&runInspect, "inspect", nil, "Print the stored result of these tasks after the run")
	runCmd.Flags().StringSliceVar(&runRestore, "restore", nil, "Roll back these tasks after the run")
	runCmd.Flags().BoolVar(&runDetails, "details", false, "Print intra-task results and inter-task dependencies")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record the run in history")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Per-task timeout, overriding config and saga file (e.g. 30s)")
}

// runOptions holds per-invocation overrides for runSaga.
type runOptions struct {
	noRollback bool
	timeout    time.Duration
	inspect    []string
	restore    []string
	details    bool
	noHistory  bool
}

// runSaga loads, builds, and runs a saga definition, printing progress to out.
// The returned error is non-nil when the run failed.
func runSaga(ctx context.Context, out io.Writer, cfg *config.Config, path string, opts runOptions) (*saga.Report, error) {
	def, err := definition.Load(path)
	if err != nil {
		return nil, err
	}

	deps := definition.BuildDeps{Runner: exec.NewRunner("SAGENT_SAGA=" + def.Name)}
	if def.HasKind(definition.KindLLM) {
		client, err := createCompleter(cfg)
		if err != nil {
			return nil, err
		}
		deps.LLM = client
	}
	tasks, err := def.Build(deps)
	if err != nil {
		return nil, err
	}

	logger, err := saga.NewDebugLogger(cfg.Log.DebugFile)
	if err != nil {
		return nil, fmt.Errorf("open debug log: %w", err)
	}
	defer logger.Close()

	emitter := saga.NewEventEmitter(eventBuffer)
	renderer := newEventRenderer(out)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range emitter.Events() {
			renderer.Emit(e)
		}
	}()

	coord := saga.NewCoordinator(
		saga.WithLogger(logger),
		saga.WithEventSink(emitter),
		saga.WithRollback(resolveRollback(cfg, def, opts)),
		saga.WithTaskTimeout(resolveTimeout(cfg, def, opts)),
	)
	if err := coord.Register(tasks...); err != nil {
		emitter.Close()
		wg.Wait()
		return nil, err
	}

	report, runErr := coord.Run(ctx)
	if report == nil {
		emitter.Close()
		wg.Wait()
		return nil, runErr
	}

	inspections := make([]inspection, 0, len(opts.inspect))
	for _, name := range opts.inspect {
		result, err := coord.Inspect(name)
		inspections = append(inspections, inspection{task: name, result: result, err: err})
	}

	var restoreSteps []models.StepRecord
	var restoreErr error
	for _, name := range opts.restore {
		outcome, err := coord.Restore(ctx, name)
		if outcome.Task != "" {
			restoreSteps = append(restoreSteps, state.CompensationStep(models.StepPhaseRestore, outcome))
		}
		if err != nil {
			logger.Log("[run] restore %q: %v", name, err)
			restoreErr = errors.Join(restoreErr, fmt.Errorf("restore %q: %w", name, err))
		}
	}

	emitter.Close()
	wg.Wait()
	if n := emitter.DroppedCount(); n > 0 {
		fmt.Fprintf(out, "(%d progress events dropped)\n", n)
	}

	for _, in := range inspections {
		printInspection(out, in)
	}
	renderSummary(out, def.Name, report)
	if opts.details {
		renderIntra(out, coord.Details())
		renderInter(out, coord.DescribeDependencies())
	}

	if cfg.History.Enabled && !opts.noHistory {
		if err := recordRun(ctx, cfg, def.Name, report, restoreSteps); err != nil {
			logger.Log("[run] history: %v", err)
			fmt.Fprintf(out, "warning: run not recorded: %v\n", err)
		}
	}

	return report, errors.Join(runErr, restoreErr)
}

// resolveRollback applies config, then the saga file, then the command line.
func resolveRollback(cfg *config.Config, def *definition.Definition, opts runOptions) bool {
	rollback := cfg.Saga.Rollback
	if def.Rollback != nil {
		rollback = *def.Rollback
	}
	if opts.noRollback {
		rollback = false
	}
	return rollback
}

// resolveTimeout applies config, then the saga file, then the command line.
func resolveTimeout(cfg *config.Config, def *definition.Definition, opts runOptions) time.Duration {
	timeout := cfg.Saga.TaskTimeout
	if def.TaskTimeout > 0 {
		timeout = def.TaskTimeout.Std()
	}
	if opts.timeout > 0 {
		timeout = opts.timeout
	}
	return timeout
}

func recordRun(ctx context.Context, cfg *config.Config, name string, report *saga.Report, restores []models.StepRecord) error {
	path := cfg.History.Path
	if path == "" {
		path = config.DefaultHistoryPath()
	}
	db, err := state.OpenAndMigrate(path)
	if err != nil {
		return err
	}
	defer db.Close()

	rec := state.FromReport(name, report)
	if err := db.SaveRun(ctx, &rec); err != nil {
		return err
	}
	if len(restores) > 0 {
		return db.AppendSteps(ctx, rec.ID, restores...)
	}
	return nil
}

type inspection struct {
	task   string
	result saga.Result
	err    error
}

func printInspection(w io.Writer, in inspection) {
	if in.err != nil {
		fmt.Fprintf(w, "inspect %s: %v\n", in.task, in.err)
		return
	}
	fmt.Fprintf(w, "inspect %s: %s\n", in.task, state.FormatResult(in.result))
}
