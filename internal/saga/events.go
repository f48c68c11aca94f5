package saga

import (
	"time"
)

// EventType represents the type of saga event.
type EventType string

const (
	// EventRunStarted indicates a run has begun.
	EventRunStarted EventType = "run_started"
	// EventTaskStarted indicates a task is about to run.
	EventTaskStarted EventType = "task_started"
	// EventTaskSucceeded indicates a task completed and its result was stored.
	EventTaskSucceeded EventType = "task_succeeded"
	// EventTaskFailed indicates a task returned an error and the run halted.
	EventTaskFailed EventType = "task_failed"
	// EventCompensationStarted indicates the rollback unwind has begun.
	EventCompensationStarted EventType = "compensation_started"
	// EventCompensationStep reports the outcome of one rollback during unwind.
	EventCompensationStep EventType = "compensation_step"
	// EventCompensationDone indicates the unwind finished.
	EventCompensationDone EventType = "compensation_done"
	// EventRunCompleted indicates every task succeeded.
	EventRunCompleted EventType = "run_completed"
	// EventRunFailed indicates the run ended in failure.
	EventRunFailed EventType = "run_failed"
	// EventTaskRestored reports the outcome of an explicit restore.
	EventTaskRestored EventType = "task_restored"
)

// Event is emitted by the coordinator as a run progresses.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the run. Empty for restores outside a run.
	RunID string
	// Task is the related task name, if applicable.
	Task string
	// Result is the task result for success events.
	Result Result
	// Outcome is set for compensation and restore events.
	Outcome CompensationStatus
	// Error contains details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// EventSink receives events from a coordinator. Emit is called synchronously
// from the run loop.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to an EventSink.
type EventSinkFunc func(Event)

// Emit calls f(e).
func (f EventSinkFunc) Emit(e Event) { f(e) }

// multiSink fans an event out to several sinks in order.
type multiSink []EventSink

func (m multiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}
