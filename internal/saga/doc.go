// Package saga coordinates named tasks that depend on one another.
//
// A TaskGraph holds the tasks and derives a stable topological order with
// Kahn's algorithm. A Coordinator executes that order one task at a time,
// stores each result in an ExecutionContext, and on the first failure
// compensates the completed tasks in reverse completion order. Compensation
// is best effort: a task without a rollback is skipped with ErrNoRollback and
// a failing rollback is recorded without stopping the unwind.
//
// Example usage:
//
//	c := saga.NewCoordinator(saga.WithEventSink(sink))
//	if err := c.Register(reserve, charge.WithRollback(refund)); err != nil {
//	    return err
//	}
//	report, err := c.Run(ctx)
package saga
