package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/sagent/pkg/models"
)

// ErrRunInProgress indicates Run or Register was called while a run was active.
var ErrRunInProgress = errors.New("saga run already in progress")

// Coordinator runs registered tasks in dependency order and compensates
// completed tasks when one fails.
//
// Tasks run strictly one at a time. The execution context and the completed
// list belong to the coordinator; concurrent runs need separate coordinators.
type Coordinator struct {
	mu        sync.RWMutex
	graph     *TaskGraph
	context   *ExecutionContext
	completed []string
	state     models.RunStatus
	runID     string

	withRollback bool
	taskTimeout  time.Duration
	logger       *DebugLogger
	sinks        multiSink
	newRunID     func() string
	now          func() time.Time
}

// NewCoordinator creates a coordinator with no registered tasks.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		graph:        NewTaskGraph(),
		context:      NewExecutionContext(),
		state:        models.RunStatusIdle,
		withRollback: true,
		logger:       NopLogger(),
		newRunID:     defaultRunID,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.graph.SetDebugLog(c.logger.Log)
	return c
}

// Register replaces the working set of tasks and resets the coordinator to idle.
func (c *Coordinator) Register(tasks ...Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isActive() {
		return ErrRunInProgress
	}
	if err := c.graph.Register(tasks...); err != nil {
		c.logger.Log("[coordinator] registration rejected: %v", err)
		return err
	}

	c.context.Reset()
	c.completed = nil
	c.state = models.RunStatusIdle
	c.runID = ""
	c.logger.Log("[coordinator] registered %d tasks", len(tasks))
	return nil
}

// Run executes the saga using the configured rollback mode.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	return c.RunWithRollback(ctx, c.withRollback)
}

// RunWithRollback executes every registered task in dependency order.
//
// The execution context is cleared first, so results never leak from an
// earlier run. On the first task failure execution stops; when withRollback is
// set, completed tasks are compensated in reverse completion order. The
// returned error is a *SagaError wrapping the originating *TaskError, or a
// *CycleError if no order exists.
func (c *Coordinator) RunWithRollback(ctx context.Context, withRollback bool) (*Report, error) {
	c.mu.Lock()
	if c.isActive() {
		c.mu.Unlock()
		return nil, ErrRunInProgress
	}
	if c.graph.Len() == 0 {
		c.mu.Unlock()
		return nil, ErrNoTasks
	}
	// Ordering is checked before anything is reset, so a cycle leaves the
	// previous run's results in place.
	order, orderErr := c.graph.Order()
	runID := c.newRunID()
	c.runID = runID
	if orderErr == nil {
		c.context.Reset()
		c.completed = nil
	}
	c.state = models.RunStatusRunning
	c.mu.Unlock()

	report := &Report{
		RunID:        runID,
		WithRollback: withRollback,
		Outputs:      make(map[string]Result),
		StartedAt:    c.now(),
	}
	c.logger.Log("[coordinator] run %s started (rollback=%t)", runID, withRollback)
	c.emit(Event{Type: EventRunStarted, RunID: runID})

	if orderErr != nil {
		return c.finish(report, models.RunStatusFailed, orderErr)
	}
	for _, t := range order {
		report.Order = append(report.Order, t.Name)
	}

	for _, task := range order {
		result, err := c.execute(ctx, runID, task)
		if err != nil {
			taskErr := &TaskError{Task: task.Name, Err: err}
			report.Failed = task.Name
			c.logger.Log("[coordinator] run %s: %v", runID, taskErr)
			c.emit(Event{Type: EventTaskFailed, RunID: runID, Task: task.Name, Error: taskErr})

			if withRollback {
				// Compensation must run even when the caller's context is done.
				report.Compensations = c.compensate(context.WithoutCancel(ctx), runID)
			}
			return c.finish(report, models.RunStatusFailed, &SagaError{
				Failure:       taskErr,
				Compensations: report.Compensations,
			})
		}

		c.mu.Lock()
		c.context.Set(task.Name, result)
		c.completed = append(c.completed, task.Name)
		c.mu.Unlock()

		report.Completed = append(report.Completed, task.Name)
		report.Outputs[task.Name] = result
		c.emit(Event{Type: EventTaskSucceeded, RunID: runID, Task: task.Name, Result: result})
	}

	return c.finish(report, models.RunStatusCompleted, nil)
}

// execute runs a single task, honoring cancellation and the task timeout.
func (c *Coordinator) execute(ctx context.Context, runID string, task Task) (Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.Log("[coordinator] run %s: running %q", runID, task.Name)
	c.emit(Event{Type: EventTaskStarted, RunID: runID, Task: task.Name})

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return invoke[Result](task.Run, ctx)
}

// compensate walks the completed list backwards. A failed or missing rollback
// never stops the walk.
func (c *Coordinator) compensate(ctx context.Context, runID string) []CompensationOutcome {
	c.mu.Lock()
	c.state = models.RunStatusCompensating
	completed := append([]string(nil), c.completed...)
	c.mu.Unlock()

	c.logger.Log("[coordinator] run %s: compensating %d tasks", runID, len(completed))
	c.emit(Event{Type: EventCompensationStarted, RunID: runID})

	outcomes := make([]CompensationOutcome, 0, len(completed))
	for i := len(completed) - 1; i >= 0; i-- {
		task, _ := c.graph.Task(completed[i])
		outcome := c.rollback(ctx, task)
		outcomes = append(outcomes, outcome)
		c.emit(Event{
			Type:    EventCompensationStep,
			RunID:   runID,
			Task:    task.Name,
			Outcome: outcome.Status,
			Error:   outcome.Err,
		})
	}

	c.setState(models.RunStatusCompensated)
	c.emit(Event{Type: EventCompensationDone, RunID: runID})
	return outcomes
}

// rollback invokes a task's rollback and updates the execution context.
// The entry is removed unless the rollback failed.
func (c *Coordinator) rollback(ctx context.Context, task Task) CompensationOutcome {
	outcome := CompensationOutcome{Task: task.Name}

	if !task.HasRollback() {
		c.logger.Log("[coordinator] %q has no rollback", task.Name)
		outcome.Status = CompensationSkipped
		outcome.Err = ErrNoRollback
	} else {
		ctx, cancel := c.withTimeout(ctx)
		_, err := invoke(func(ctx context.Context) (struct{}, error) {
			return struct{}{}, task.Rollback(ctx)
		}, ctx)
		cancel()
		if err != nil {
			c.logger.Log("[coordinator] rollback of %q failed: %v", task.Name, err)
			outcome.Status = CompensationFailed
			outcome.Err = &RollbackError{Task: task.Name, Err: err}
			return outcome
		}
		c.logger.Log("[coordinator] rolled back %q", task.Name)
		outcome.Status = CompensationSucceeded
	}

	c.mu.Lock()
	c.context.Delete(task.Name)
	c.mu.Unlock()
	return outcome
}

func (c *Coordinator) finish(report *Report, status models.RunStatus, err error) (*Report, error) {
	c.mu.Lock()
	c.state = status
	report.Results = c.context.Snapshot()
	c.mu.Unlock()

	report.Status = status
	report.Err = err
	report.FinishedAt = c.now()

	if err != nil {
		c.logger.Log("[coordinator] run %s failed: %v", report.RunID, err)
		c.emit(Event{Type: EventRunFailed, RunID: report.RunID, Task: report.Failed, Error: err})
	} else {
		c.logger.Log("[coordinator] run %s completed", report.RunID)
		c.emit(Event{Type: EventRunCompleted, RunID: report.RunID})
	}
	return report, err
}

// Inspect returns the stored result of a task. It returns ErrTaskNotFound for
// unregistered names and ErrNotExecuted when the task has no result.
func (c *Coordinator) Inspect(name string) (Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.graph.Task(name); !ok {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, name)
	}
	result, ok := c.context.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotExecuted, name)
	}
	return result, nil
}

// Restore compensates a single executed task on demand and removes its result
// from the execution context. Unknown names return ErrTaskNotFound and tasks
// without a stored result return ErrNotExecuted; in both cases nothing is
// invoked or changed. A task without rollback yields a CompensationSkipped
// outcome and a nil error. A failing rollback keeps the entry and returns the
// *RollbackError.
func (c *Coordinator) Restore(ctx context.Context, name string) (CompensationOutcome, error) {
	c.mu.RLock()
	task, registered := c.graph.Task(name)
	_, executed := c.context.Get(name)
	runID := c.runID
	c.mu.RUnlock()

	if !registered {
		return CompensationOutcome{}, fmt.Errorf("%w: %q", ErrTaskNotFound, name)
	}
	if !executed {
		return CompensationOutcome{}, fmt.Errorf("%w: %q", ErrNotExecuted, name)
	}

	outcome := c.rollback(ctx, task)
	c.emit(Event{
		Type:    EventTaskRestored,
		RunID:   runID,
		Task:    name,
		Outcome: outcome.Status,
		Error:   outcome.Err,
	})

	if outcome.Status == CompensationFailed {
		return outcome, outcome.Err
	}
	return outcome, nil
}

// DescribeDependencies returns each registered task with its dependency names.
func (c *Coordinator) DescribeDependencies() []Dependency {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph.Describe()
}

// Details returns, for every registered task, whether it has a stored result.
func (c *Coordinator) Details() []TaskDetail {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tasks := c.graph.Tasks()
	out := make([]TaskDetail, 0, len(tasks))
	for _, t := range tasks {
		result, ok := c.context.Get(t.Name)
		out = append(out, TaskDetail{Name: t.Name, Executed: ok, Result: result})
	}
	return out
}

// Order returns the planned execution order without running anything.
func (c *Coordinator) Order() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tasks, err := c.graph.Order()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tasks))
	for _, t := range tasks {
		names = append(names, t.Name)
	}
	return names, nil
}

// State returns the current lifecycle state.
func (c *Coordinator) State() models.RunStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// RunID returns the ID of the current or last run.
func (c *Coordinator) RunID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runID
}

// Context returns a copy of the execution context.
func (c *Coordinator) Context() map[string]Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.context.Snapshot()
}

// Completed returns the tasks completed in the current or last run, in order.
func (c *Coordinator) Completed() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.completed...)
}

func (c *Coordinator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.taskTimeout > 0 {
		return context.WithTimeout(ctx, c.taskTimeout)
	}
	return context.WithCancel(ctx)
}

func (c *Coordinator) setState(s models.RunStatus) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// isActive must be called with mu held.
func (c *Coordinator) isActive() bool {
	return c.state == models.RunStatusRunning || c.state == models.RunStatusCompensating
}

func (c *Coordinator) emit(e Event) {
	if len(c.sinks) == 0 {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = c.now()
	}
	c.sinks.Emit(e)
}
