package saga

// Chain returns copies of tasks where each one depends only on its
// predecessor. Running a chain executes the tasks in the given order and
// unwinds them as a plain stack on failure.
func Chain(tasks ...Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		t.DependsOn = nil
		if i > 0 {
			t.DependsOn = []string{tasks[i-1].Name}
		}
		out[i] = t
	}
	return out
}
