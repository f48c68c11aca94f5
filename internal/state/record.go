package state

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ShayCichocki/sagent/internal/saga"
	"github.com/ShayCichocki/sagent/pkg/models"
)

// maxDetail bounds the text stored for a single step.
const maxDetail = 500

// FromReport converts a finished run into a history record.
func FromReport(sagaName string, report *saga.Report) models.RunRecord {
	rec := models.RunRecord{
		ID:           report.RunID,
		Saga:         sagaName,
		Status:       report.Status,
		WithRollback: report.WithRollback,
		StartedAt:    report.StartedAt,
		FinishedAt:   report.FinishedAt,
	}
	if report.Err != nil {
		rec.Error = report.Err.Error()
	}

	for _, name := range report.Completed {
		rec.Steps = append(rec.Steps, models.StepRecord{
			Task:    name,
			Phase:   models.StepPhaseExecute,
			Outcome: models.StepOutcomeSucceeded,
			Detail:  FormatResult(report.Outputs[name]),
		})
	}

	if report.Failed != "" {
		step := models.StepRecord{
			Task:    report.Failed,
			Phase:   models.StepPhaseExecute,
			Outcome: models.StepOutcomeFailed,
		}
		var taskErr *saga.TaskError
		if errors.As(report.Err, &taskErr) {
			step.Detail = truncate(taskErr.Err.Error())
		}
		rec.Steps = append(rec.Steps, step)
	}

	for _, o := range report.Compensations {
		rec.Steps = append(rec.Steps, CompensationStep(models.StepPhaseCompensate, o))
	}

	for i := range rec.Steps {
		rec.Steps[i].Seq = i + 1
	}
	return rec
}

// CompensationStep converts a rollback outcome into a step record.
func CompensationStep(phase models.StepPhase, o saga.CompensationOutcome) models.StepRecord {
	step := models.StepRecord{Task: o.Task, Phase: phase}
	switch o.Status {
	case saga.CompensationSucceeded:
		step.Outcome = models.StepOutcomeCompensated
	case saga.CompensationSkipped:
		step.Outcome = models.StepOutcomeNoRollback
	default:
		step.Outcome = models.StepOutcomeFailed
		if o.Err != nil {
			step.Detail = truncate(o.Err.Error())
		}
	}
	return step
}

// FormatResult renders a task result for display and storage.
func FormatResult(r saga.Result) string {
	if r == nil {
		return ""
	}
	return truncate(fmt.Sprint(r))
}

// truncate cuts s to at most maxDetail bytes on a rune boundary.
func truncate(s string) string {
	if len(s) <= maxDetail {
		return s
	}
	n := maxDetail
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
