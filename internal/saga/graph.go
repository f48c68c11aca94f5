package saga

import (
	"container/heap"
	"fmt"
)

// node is a registered task together with its derived edges.
type node struct {
	task  Task
	index int
	// deps holds the names this task depends on, de-duplicated, in declared order.
	deps []string
	// dependents holds the names depending on this task, in registration order.
	dependents []string
}

// TaskGraph holds the tasks of one saga and the dependency edges between them.
// Edges point from a dependency to its dependent. Dependents are derived from
// each task's DependsOn at registration and are never set directly.
type TaskGraph struct {
	nodes map[string]*node
	// names lists task names in registration order.
	names []string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// Dependency pairs a task with the names it depends on.
type Dependency struct {
	Task      string
	DependsOn []string
}

// NewTaskGraph creates a new empty task graph.
func NewTaskGraph() *TaskGraph {
	return &TaskGraph{
		nodes:    make(map[string]*node),
		debugLog: func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (g *TaskGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Register replaces the graph's tasks with the given set.
// On error the previous set is left untouched.
func (g *TaskGraph) Register(tasks ...Task) error {
	nodes := make(map[string]*node, len(tasks))
	names := make([]string, 0, len(tasks))

	// First pass: register all tasks as nodes.
	for i, task := range tasks {
		if task.Name == "" {
			return fmt.Errorf("task at position %d: %w", i, ErrEmptyTaskName)
		}
		if task.Run == nil {
			return fmt.Errorf("task %q: %w", task.Name, ErrMissingRun)
		}
		if _, exists := nodes[task.Name]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateTask, task.Name)
		}
		nodes[task.Name] = &node{task: task, index: i}
		names = append(names, task.Name)
	}

	// Second pass: build edges in both directions.
	for _, name := range names {
		n := nodes[name]
		seen := make(map[string]bool, len(n.task.DependsOn))
		for _, depName := range n.task.DependsOn {
			if seen[depName] {
				continue
			}
			seen[depName] = true

			dep, exists := nodes[depName]
			if !exists {
				return fmt.Errorf("task %q depends on %q: %w", name, depName, ErrUnknownDependency)
			}
			n.deps = append(n.deps, depName)
			dep.dependents = append(dep.dependents, name)
		}
	}

	g.nodes = nodes
	g.names = names
	g.debugLog("[graph.Register] registered %d tasks", len(names))
	return nil
}

// Order returns the tasks in an order where every task follows all of its
// dependencies. Among tasks that are ready at the same time, the one
// registered first goes first. Order does not modify the graph.
func (g *TaskGraph) Order() ([]Task, error) {
	inDegree := make(map[string]int, len(g.nodes))
	ready := &indexHeap{}
	for _, name := range g.names {
		n := g.nodes[name]
		inDegree[name] = len(n.deps)
		if len(n.deps) == 0 {
			heap.Push(ready, n.index)
		}
	}

	ordered := make([]Task, 0, len(g.names))
	for ready.Len() > 0 {
		current := g.nodes[g.names[heap.Pop(ready).(int)]]
		ordered = append(ordered, current.task)

		for _, dependentName := range current.dependents {
			inDegree[dependentName]--
			if inDegree[dependentName] == 0 {
				heap.Push(ready, g.nodes[dependentName].index)
			}
		}
	}

	if len(ordered) != len(g.names) {
		scheduled := make(map[string]bool, len(ordered))
		cycleErr := &CycleError{}
		for _, t := range ordered {
			scheduled[t.Name] = true
			cycleErr.Scheduled = append(cycleErr.Scheduled, t.Name)
		}
		for _, name := range g.names {
			if !scheduled[name] {
				cycleErr.Blocked = append(cycleErr.Blocked, name)
			}
		}
		g.debugLog("[graph.Order] cycle: blocked=%v", cycleErr.Blocked)
		return nil, cycleErr
	}

	return ordered, nil
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *TaskGraph) HasCycle() bool {
	_, err := g.Order()
	return err != nil
}

// Task returns the task registered under name.
func (g *TaskGraph) Task(name string) (Task, bool) {
	n, ok := g.nodes[name]
	if !ok {
		return Task{}, false
	}
	return n.task, true
}

// Tasks returns the registered tasks in registration order.
func (g *TaskGraph) Tasks() []Task {
	out := make([]Task, 0, len(g.names))
	for _, name := range g.names {
		out = append(out, g.nodes[name].task)
	}
	return out
}

// Len returns the number of registered tasks.
func (g *TaskGraph) Len() int {
	return len(g.names)
}

// Dependencies returns the names the given task depends on.
func (g *TaskGraph) Dependencies(name string) []string {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return append([]string(nil), n.deps...)
}

// Dependents returns the names of tasks that depend on the given task.
func (g *TaskGraph) Dependents(name string) []string {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return append([]string(nil), n.dependents...)
}

// Describe returns every task with its dependency names, in registration order.
func (g *TaskGraph) Describe() []Dependency {
	out := make([]Dependency, 0, len(g.names))
	for _, name := range g.names {
		out = append(out, Dependency{Task: name, DependsOn: g.Dependencies(name)})
	}
	return out
}

// indexHeap is a min-heap of registration indices.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *indexHeap) Push(x any) { *h = append(*h, x.(int)) }

func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
