package saga

import (
	"context"
	"fmt"
)

// Result is the value a task produces. The coordinator stores it without
// interpreting it.
type Result any

// RunFunc performs a task's work.
type RunFunc func(ctx context.Context) (Result, error)

// RollbackFunc performs a task's compensating action.
type RollbackFunc func(ctx context.Context) error

// Task is a named unit of work with optional compensation.
type Task struct {
	// Name uniquely identifies the task within a saga.
	Name string
	// DependsOn lists the names of tasks that must complete first.
	DependsOn []string
	// Run performs the work. Required.
	Run RunFunc
	// Rollback undoes the work. Nil means the task cannot be compensated.
	Rollback RollbackFunc
}

// HasRollback reports whether the task carries a compensating action.
func (t Task) HasRollback() bool {
	return t.Rollback != nil
}

// NewTask creates a task without rollback.
func NewTask(name string, run RunFunc, dependsOn ...string) Task {
	return Task{Name: name, Run: run, DependsOn: dependsOn}
}

// WithRollback returns a copy of the task carrying the given rollback.
func (t Task) WithRollback(rb RollbackFunc) Task {
	t.Rollback = rb
	return t
}

// Step adapts any value with Execute/Compensate methods.
type Step interface {
	Execute(ctx context.Context) (Result, error)
	Compensate(ctx context.Context) error
}

// FromStep builds a task whose run and rollback delegate to step.
func FromStep(name string, step Step, dependsOn ...string) Task {
	return Task{
		Name:      name,
		DependsOn: dependsOn,
		Run:       step.Execute,
		Rollback:  step.Compensate,
	}
}

// invoke calls fn, converting a panic into an error.
func invoke[T any](fn func(context.Context) (T, error), ctx context.Context) (res T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
