package saga

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateTask indicates two registered tasks share a name.
	ErrDuplicateTask = errors.New("duplicate task name")
	// ErrUnknownDependency indicates a task depends on a name that is not registered.
	ErrUnknownDependency = errors.New("unknown dependency")
	// ErrEmptyTaskName indicates a task was registered without a name.
	ErrEmptyTaskName = errors.New("task name is required")
	// ErrMissingRun indicates a task was registered without a run function.
	ErrMissingRun = errors.New("task has no run function")
	// ErrNoTasks indicates a run was requested before any task was registered.
	ErrNoTasks = errors.New("no tasks registered")
	// ErrCycleDetected indicates a circular dependency was found in the task graph.
	ErrCycleDetected = errors.New("circular dependency detected")
	// ErrTaskNotFound indicates a lookup by name matched no registered task.
	ErrTaskNotFound = errors.New("task not found")
	// ErrNotExecuted indicates a registered task has no result in the execution context.
	ErrNotExecuted = errors.New("task not executed")
	// ErrNoRollback signals that a task has no rollback to invoke. It is not a failure.
	ErrNoRollback = errors.New("no rollback available")
)

// CycleError reports that an execution order could not be completed.
// Scheduled holds the tasks that could be ordered; Blocked holds the tasks
// that never reached zero in-degree because they sit on or behind a cycle.
type CycleError struct {
	Scheduled []string
	Blocked   []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: ordered %d of %d tasks, blocked: %s",
		ErrCycleDetected, len(e.Scheduled), len(e.Scheduled)+len(e.Blocked), strings.Join(e.Blocked, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// TaskError wraps a failure returned by a task's run function.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// RollbackError wraps a failure returned by a task's rollback function.
type RollbackError struct {
	Task string
	Err  error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback of %q failed: %v", e.Task, e.Err)
}

func (e *RollbackError) Unwrap() error { return e.Err }

// SagaError is returned by a run that halted on a task failure. Failure is the
// originating error; Compensations lists every unwind outcome, including the
// failed ones, which never replace Failure.
type SagaError struct {
	Failure       *TaskError
	Compensations []CompensationOutcome
}

func (e *SagaError) Error() string {
	failed := e.RollbackErrors()
	if len(failed) == 0 {
		return fmt.Sprintf("saga halted: %v", e.Failure)
	}
	return fmt.Sprintf("saga halted: %v (%d rollback(s) failed)", e.Failure, len(failed))
}

func (e *SagaError) Unwrap() error { return e.Failure }

// RollbackErrors returns the compensation failures in unwind order.
func (e *SagaError) RollbackErrors() []*RollbackError {
	var out []*RollbackError
	for _, c := range e.Compensations {
		var rbErr *RollbackError
		if errors.As(c.Err, &rbErr) {
			out = append(out, rbErr)
		}
	}
	return out
}
