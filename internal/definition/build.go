package definition

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ShayCichocki/sagent/internal/exec"
	"github.com/ShayCichocki/sagent/internal/saga"
)

var (
	// ErrNoRunner is returned when shell tasks or rollbacks exist but no runner was given.
	ErrNoRunner = errors.New("shell commands need a command runner")
	// ErrNoCompleter is returned when llm tasks exist but no model client was given.
	ErrNoCompleter = errors.New("llm tasks need a model client")
)

// Completer answers a single prompt. *api.Client implements it.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// BuildDeps supplies what task kinds need at run time.
type BuildDeps struct {
	Runner exec.CommandRunner
	LLM    Completer
	// BaseDir resolves relative workdirs. Defaults to the definition's directory.
	BaseDir string
}

// Build converts the definition into saga tasks in file order.
func (d *Definition) Build(deps BuildDeps) ([]saga.Task, error) {
	if deps.BaseDir == "" {
		deps.BaseDir = d.BaseDir()
	}

	tasks := make([]saga.Task, 0, len(d.Tasks))
	for _, spec := range d.Tasks {
		task, err := buildTask(spec, deps)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", spec.Name, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Plan returns tasks that carry only names and dependencies. Running them does
// nothing; they exist for ordering and display.
func (d *Definition) Plan() []saga.Task {
	tasks := make([]saga.Task, 0, len(d.Tasks))
	for _, spec := range d.Tasks {
		tasks = append(tasks, saga.NewTask(spec.Name, planned, spec.DependsOn...))
	}
	return tasks
}

func planned(context.Context) (saga.Result, error) { return nil, nil }

func buildTask(spec TaskSpec, deps BuildDeps) (saga.Task, error) {
	var run saga.RunFunc
	switch spec.EffectiveKind() {
	case KindStatic:
		run = staticRun(spec)
	case KindShell:
		if deps.Runner == nil {
			return saga.Task{}, ErrNoRunner
		}
		run = shellRun(deps.Runner, workdir(deps.BaseDir, spec.Workdir), spec.Run)
	case KindLLM:
		if deps.LLM == nil {
			return saga.Task{}, ErrNoCompleter
		}
		run = llmRun(deps.LLM, spec)
	default:
		return saga.Task{}, fmt.Errorf("unknown kind %q", spec.Kind)
	}

	task := saga.NewTask(spec.Name, withTimeout(run, spec.Timeout.Std()), spec.DependsOn...)

	if spec.Rollback != "" {
		if deps.Runner == nil {
			return saga.Task{}, ErrNoRunner
		}
		task = task.WithRollback(shellRollback(deps.Runner, workdir(deps.BaseDir, spec.Workdir), spec.Rollback))
	}
	return task, nil
}

func staticRun(spec TaskSpec) saga.RunFunc {
	return func(ctx context.Context) (saga.Result, error) {
		if spec.Fail != "" {
			return nil, errors.New(spec.Fail)
		}
		return spec.Result, nil
	}
}

func shellRun(runner exec.CommandRunner, dir, command string) saga.RunFunc {
	return func(ctx context.Context) (saga.Result, error) {
		out, err := runner.RunShell(ctx, dir, command)
		if err != nil {
			return nil, err
		}
		return strings.TrimSpace(string(out)), nil
	}
}

func shellRollback(runner exec.CommandRunner, dir, command string) saga.RollbackFunc {
	return func(ctx context.Context) error {
		_, err := runner.RunShell(ctx, dir, command)
		return err
	}
}

func llmRun(llm Completer, spec TaskSpec) saga.RunFunc {
	system, user := Prompts(spec)
	return func(ctx context.Context) (saga.Result, error) {
		out, err := llm.Complete(ctx, system, user)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

// Prompts composes the system and user prompts for an llm task.
func Prompts(spec TaskSpec) (system, user string) {
	system = fmt.Sprintf("You are %s.", spec.Name)
	if spec.Backstory != "" {
		system += " " + spec.Backstory
	}

	var b strings.Builder
	b.WriteString(spec.Description)
	if spec.ExpectedOutput != "" {
		b.WriteString("\n\nExpected output: ")
		b.WriteString(spec.ExpectedOutput)
	}
	return system, b.String()
}

func withTimeout(run saga.RunFunc, timeout time.Duration) saga.RunFunc {
	if timeout <= 0 {
		return run
	}
	return func(ctx context.Context) (saga.Result, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return run(ctx)
	}
}

func workdir(base, dir string) string {
	if dir == "" {
		return base
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}
