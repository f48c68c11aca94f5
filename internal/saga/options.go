package saga

import (
	"time"

	"github.com/google/uuid"
)

// Option configures a Coordinator. Use With* functions to create Options.
type Option func(*Coordinator)

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEventSink adds a sink that receives every event. May be given more than once.
func WithEventSink(s EventSink) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.sinks = append(c.sinks, s)
		}
	}
}

// WithRollback sets whether Run compensates completed tasks on failure. Default true.
func WithRollback(enabled bool) Option {
	return func(c *Coordinator) { c.withRollback = enabled }
}

// WithTaskTimeout bounds each run and rollback call. Zero disables the bound.
func WithTaskTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.taskTimeout = d }
}

// WithRunIDGenerator overrides how run IDs are produced.
func WithRunIDGenerator(fn func() string) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.newRunID = fn
		}
	}
}

// WithClock overrides the time source used for reports and events.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

func defaultRunID() string {
	return uuid.NewString()
}
