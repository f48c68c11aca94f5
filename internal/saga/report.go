package saga

import (
	"time"

	"github.com/ShayCichocki/sagent/pkg/models"
)

// CompensationStatus is the outcome of a single rollback attempt.
type CompensationStatus string

const (
	// CompensationSucceeded indicates the rollback ran without error.
	CompensationSucceeded CompensationStatus = "compensated"
	// CompensationSkipped indicates the task had no rollback.
	CompensationSkipped CompensationStatus = "no_rollback"
	// CompensationFailed indicates the rollback returned an error.
	CompensationFailed CompensationStatus = "failed"
)

// CompensationOutcome records one rollback attempt.
type CompensationOutcome struct {
	Task   string
	Status CompensationStatus
	// Err is ErrNoRollback when skipped and a *RollbackError when failed.
	Err error
}

// Report describes a finished run.
type Report struct {
	RunID        string
	Status       models.RunStatus
	WithRollback bool
	// Order is the planned execution order. Empty when ordering failed.
	Order []string
	// Completed lists the tasks that succeeded, in completion order.
	Completed []string
	// Failed is the task that halted the run, if any.
	Failed string
	// Err is the error returned alongside the report.
	Err error
	// Compensations lists unwind outcomes in the order they ran.
	Compensations []CompensationOutcome
	// Outputs holds every result produced during the run, including those
	// later removed by compensation.
	Outputs map[string]Result
	// Results is the execution context when the run ended.
	Results    map[string]Result
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether every task completed.
func (r *Report) Succeeded() bool {
	return r != nil && r.Status == models.RunStatusCompleted
}

// TaskDetail is the per-task view of the execution context.
type TaskDetail struct {
	Name     string
	Executed bool
	Result   Result
}
