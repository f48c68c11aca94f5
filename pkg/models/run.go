package models

import "time"

// RunStatus represents the lifecycle state of a saga run.
type RunStatus string

const (
	// RunStatusIdle indicates tasks are registered but the run has not started.
	RunStatusIdle RunStatus = "idle"
	// RunStatusRunning indicates tasks are being executed.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompensating indicates completed tasks are being rolled back.
	RunStatusCompensating RunStatus = "compensating"
	// RunStatusCompensated indicates the rollback unwind has finished.
	RunStatusCompensated RunStatus = "compensated"
	// RunStatusCompleted indicates every task succeeded.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed indicates the run halted on a failure.
	RunStatusFailed RunStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusIdle, RunStatusRunning, RunStatusCompensating,
		RunStatusCompensated, RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a run in this status can make no further progress.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// StepPhase distinguishes forward execution from compensation in a run record.
type StepPhase string

const (
	// StepPhaseExecute is a forward task execution.
	StepPhaseExecute StepPhase = "execute"
	// StepPhaseCompensate is a rollback invoked during unwind.
	StepPhaseCompensate StepPhase = "compensate"
	// StepPhaseRestore is a rollback invoked explicitly by the caller.
	StepPhaseRestore StepPhase = "restore"
)

// StepOutcome is the result of a single step.
type StepOutcome string

const (
	// StepOutcomeSucceeded indicates a task ran successfully.
	StepOutcomeSucceeded StepOutcome = "succeeded"
	// StepOutcomeFailed indicates a task or rollback returned an error.
	StepOutcomeFailed StepOutcome = "failed"
	// StepOutcomeCompensated indicates a rollback ran successfully.
	StepOutcomeCompensated StepOutcome = "compensated"
	// StepOutcomeNoRollback indicates the task had no rollback to run.
	StepOutcomeNoRollback StepOutcome = "no_rollback"
)

// StepRecord is one entry of a run's audit trail.
type StepRecord struct {
	// Seq is the position of the step within the run, starting at 1.
	Seq int `json:"seq"`
	// Task is the task name.
	Task string `json:"task"`
	// Phase is whether the step executed or compensated the task.
	Phase StepPhase `json:"phase"`
	// Outcome is how the step ended.
	Outcome StepOutcome `json:"outcome"`
	// Detail holds the rendered result or error message.
	Detail string `json:"detail,omitempty"`
}

// RunRecord is the audit record of one saga run.
type RunRecord struct {
	// ID is the unique identifier of the run.
	ID string `json:"id"`
	// Saga is the name of the saga definition that was run.
	Saga string `json:"saga"`
	// Status is the terminal status of the run.
	Status RunStatus `json:"status"`
	// WithRollback records whether compensation was enabled.
	WithRollback bool `json:"with_rollback"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the run reached a terminal status.
	FinishedAt time.Time `json:"finished_at"`
	// Error is the originating failure, if any.
	Error string `json:"error,omitempty"`
	// Steps is the ordered audit trail.
	Steps []StepRecord `json:"steps,omitempty"`
}

// Duration returns how long the run took.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
