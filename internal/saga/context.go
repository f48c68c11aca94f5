package saga

// ExecutionContext maps task names to their last successful result.
// It is owned by a single Coordinator and is not safe for concurrent use.
type ExecutionContext struct {
	results map[string]Result
}

// NewExecutionContext creates an empty execution context.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{results: make(map[string]Result)}
}

// Set stores the result of a task, overwriting any previous one.
func (c *ExecutionContext) Set(name string, result Result) {
	c.results[name] = result
}

// Get returns the stored result and whether the task has one.
func (c *ExecutionContext) Get(name string) (Result, bool) {
	r, ok := c.results[name]
	return r, ok
}

// Delete removes a task's entry. Deleting a missing entry is a no-op.
func (c *ExecutionContext) Delete(name string) {
	delete(c.results, name)
}

// Reset removes every entry.
func (c *ExecutionContext) Reset() {
	c.results = make(map[string]Result)
}

// Len returns the number of stored results.
func (c *ExecutionContext) Len() int {
	return len(c.results)
}

// Snapshot returns a copy of the stored results.
func (c *ExecutionContext) Snapshot() map[string]Result {
	out := make(map[string]Result, len(c.results))
	for k, v := range c.results {
		out[k] = v
	}
	return out
}
