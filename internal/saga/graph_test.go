package saga

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
)

func noop(ctx context.Context) (Result, error) { return nil, nil }

// task builds a task with a no-op run function.
func task(name string, deps ...string) Task {
	return NewTask(name, noop, deps...)
}

func orderNames(t *testing.T, g *TaskGraph) []string {
	t.Helper()
	ordered, err := g.Order()
	if err != nil {
		t.Fatalf("unexpected error in Order: %v", err)
	}
	names := make([]string, 0, len(ordered))
	for _, tk := range ordered {
		names = append(names, tk.Name)
	}
	return names
}

func TestNewTaskGraph(t *testing.T) {
	g := NewTaskGraph()
	if g == nil {
		t.Fatal("expected non-nil graph")
	}
	if g.Len() != 0 {
		t.Errorf("expected empty graph, got size %d", g.Len())
	}
}

func TestGraphRegisterWithDependencies(t *testing.T) {
	g := NewTaskGraph()
	err := g.Register(
		task("task-1"),
		task("task-2", "task-1"),
		task("task-3", "task-1", "task-2"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Len() != 3 {
		t.Errorf("expected size 3, got %d", g.Len())
	}

	deps := g.Dependencies("task-3")
	if !reflect.DeepEqual(deps, []string{"task-1", "task-2"}) {
		t.Errorf("Dependencies(task-3) = %v, want [task-1 task-2]", deps)
	}

	dependents := g.Dependents("task-1")
	if !reflect.DeepEqual(dependents, []string{"task-2", "task-3"}) {
		t.Errorf("Dependents(task-1) = %v, want [task-2 task-3]", dependents)
	}
}

func TestGraphDependentsMirrorDependencies(t *testing.T) {
	g := NewTaskGraph()
	if err := g.Register(
		task("A"),
		task("B", "A"),
		task("C", "A", "B"),
		task("D", "C"),
	); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, tk := range g.Tasks() {
		for _, dep := range g.Dependencies(tk.Name) {
			found := false
			for _, d := range g.Dependents(dep) {
				if d == tk.Name {
					found = true
				}
			}
			if !found {
				t.Errorf("%s depends on %s but is not listed among its dependents", tk.Name, dep)
			}
		}
		for _, dependent := range g.Dependents(tk.Name) {
			found := false
			for _, d := range g.Dependencies(dependent) {
				if d == tk.Name {
					found = true
				}
			}
			if !found {
				t.Errorf("%s lists dependent %s that does not depend on it", tk.Name, dependent)
			}
		}
	}
}

func TestGraphRegisterDuplicateDependencyCollapses(t *testing.T) {
	g := NewTaskGraph()
	if err := g.Register(task("A"), task("B", "A", "A")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deps := g.Dependencies("B"); len(deps) != 1 {
		t.Errorf("expected 1 dependency, got %v", deps)
	}
	if got := orderNames(t, g); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("Order() = %v, want [A B]", got)
	}
}

func TestGraphRegisterErrors(t *testing.T) {
	tests := []struct {
		name  string
		tasks []Task
		want  error
	}{
		{
			name:  "duplicate name",
			tasks: []Task{task("A"), task("B"), task("A")},
			want:  ErrDuplicateTask,
		},
		{
			name:  "unknown dependency",
			tasks: []Task{task("A", "missing")},
			want:  ErrUnknownDependency,
		},
		{
			name:  "empty name",
			tasks: []Task{task("")},
			want:  ErrEmptyTaskName,
		},
		{
			name:  "missing run",
			tasks: []Task{{Name: "A"}},
			want:  ErrMissingRun,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewTaskGraph()
			if err := g.Register(task("existing")); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			err := g.Register(tt.tasks...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}

			// Failed registration keeps the previous set.
			if g.Len() != 1 {
				t.Errorf("expected previous registration to survive, got size %d", g.Len())
			}
			if _, ok := g.Task("existing"); !ok {
				t.Error("expected previously registered task to remain")
			}
		})
	}
}

func TestGraphRegisterReplacesWorkingSet(t *testing.T) {
	g := NewTaskGraph()
	if err := g.Register(task("A"), task("B", "A")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.Register(task("X")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Len() != 1 {
		t.Errorf("expected size 1, got %d", g.Len())
	}
	if _, ok := g.Task("A"); ok {
		t.Error("expected A to be gone after re-registration")
	}
}

func TestGraphOrderLinear(t *testing.T) {
	g := NewTaskGraph()
	if err := g.Register(task("C", "B"), task("B", "A"), task("A")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := orderNames(t, g); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("Order() = %v, want [A B C]", got)
	}
}

func TestGraphOrderStableTieBreak(t *testing.T) {
	tests := []struct {
		name  string
		tasks []Task
		want  []string
	}{
		{
			name:  "siblings keep registration order",
			tasks: []Task{task("A"), task("B", "A"), task("C", "A")},
			want:  []string{"A", "B", "C"},
		},
		{
			name:  "siblings registered in reverse",
			tasks: []Task{task("A"), task("C", "A"), task("B", "A")},
			want:  []string{"A", "C", "B"},
		},
		{
			name:  "independent roots",
			tasks: []Task{task("Z"), task("Y"), task("X")},
			want:  []string{"Z", "Y", "X"},
		},
		{
			name: "newly ready task with lower index goes first",
			// D becomes ready after A and was registered before B.
			tasks: []Task{task("A"), task("D", "A"), task("B"), task("C", "B")},
			want:  []string{"A", "D", "B", "C"},
		},
		{
			name: "diamond",
			tasks: []Task{
				task("A"),
				task("B", "A"),
				task("C", "A"),
				task("D", "B", "C"),
			},
			want: []string{"A", "B", "C", "D"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewTaskGraph()
			if err := g.Register(tt.tasks...); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := orderNames(t, g); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Order() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGraphOrderDeterministic(t *testing.T) {
	g := NewTaskGraph()
	if err := g.Register(
		task("fetch"),
		task("parse", "fetch"),
		task("lint", "fetch"),
		task("report", "parse", "lint"),
		task("notify"),
	); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := orderNames(t, g)
	for i := 0; i < 20; i++ {
		if got := orderNames(t, g); !reflect.DeepEqual(got, first) {
			t.Fatalf("order changed between calls: %v vs %v", first, got)
		}
	}
}

// TestGraphOrderRandomAcyclic checks that every task appears exactly once and
// after all of its dependencies for randomly generated acyclic graphs.
func TestGraphOrderRandomAcyclic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 50; iter++ {
		n := 1 + rng.Intn(12)
		tasks := make([]Task, n)
		for i := 0; i < n; i++ {
			var deps []string
			// Only depend on lower indices, which keeps the graph acyclic.
			for j := 0; j < i; j++ {
				if rng.Intn(3) == 0 {
					deps = append(deps, fmt.Sprintf("t%d", j))
				}
			}
			tasks[i] = task(fmt.Sprintf("t%d", i), deps...)
		}
		// Register in shuffled order so registration order differs from index order.
		rng.Shuffle(len(tasks), func(i, j int) { tasks[i], tasks[j] = tasks[j], tasks[i] })

		g := NewTaskGraph()
		if err := g.Register(tasks...); err != nil {
			t.Fatalf("iteration %d: unexpected error: %v", iter, err)
		}

		order := orderNames(t, g)
		if len(order) != n {
			t.Fatalf("iteration %d: expected %d tasks, got %d", iter, n, len(order))
		}

		pos := make(map[string]int, n)
		for i, name := range order {
			if _, dup := pos[name]; dup {
				t.Fatalf("iteration %d: %s appears twice", iter, name)
			}
			pos[name] = i
		}
		for _, tk := range tasks {
			for _, dep := range tk.DependsOn {
				if pos[dep] > pos[tk.Name] {
					t.Errorf("iteration %d: %s ordered before its dependency %s", iter, tk.Name, dep)
				}
			}
		}
	}
}

func TestGraphOrderCycle(t *testing.T) {
	tests := []struct {
		name        string
		tasks       []Task
		wantBlocked []string
	}{
		{
			name:        "two node cycle",
			tasks:       []Task{task("A", "B"), task("B", "A")},
			wantBlocked: []string{"A", "B"},
		},
		{
			name:        "three node cycle",
			tasks:       []Task{task("A", "B"), task("B", "C"), task("C", "A")},
			wantBlocked: []string{"A", "B", "C"},
		},
		{
			name:        "self loop",
			tasks:       []Task{task("A", "A")},
			wantBlocked: []string{"A"},
		},
		{
			name: "cycle behind a valid prefix",
			tasks: []Task{
				task("root"),
				task("X", "root", "Y"),
				task("Y", "X"),
				task("tail", "Y"),
			},
			wantBlocked: []string{"X", "Y", "tail"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewTaskGraph()
			if err := g.Register(tt.tasks...); err != nil {
				t.Fatalf("registration should not detect cycles, got %v", err)
			}

			ordered, err := g.Order()
			if !errors.Is(err, ErrCycleDetected) {
				t.Fatalf("expected ErrCycleDetected, got %v", err)
			}
			if ordered != nil {
				t.Errorf("expected no partial order, got %v", ordered)
			}

			var cycleErr *CycleError
			if !errors.As(err, &cycleErr) {
				t.Fatalf("expected *CycleError, got %T", err)
			}
			if !reflect.DeepEqual(cycleErr.Blocked, tt.wantBlocked) {
				t.Errorf("Blocked = %v, want %v", cycleErr.Blocked, tt.wantBlocked)
			}
			if !g.HasCycle() {
				t.Error("expected HasCycle to report the cycle")
			}
		})
	}
}

func TestGraphDescribe(t *testing.T) {
	g := NewTaskGraph()
	if err := g.Register(task("A"), task("B", "A"), task("C", "A", "B")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Dependency{
		{Task: "A"},
		{Task: "B", DependsOn: []string{"A"}},
		{Task: "C", DependsOn: []string{"A", "B"}},
	}
	if got := g.Describe(); !reflect.DeepEqual(got, want) {
		t.Errorf("Describe() = %+v, want %+v", got, want)
	}
}

func TestGraphUnknownLookups(t *testing.T) {
	g := NewTaskGraph()
	if err := g.Register(task("A")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := g.Task("nope"); ok {
		t.Error("expected Task(nope) to report false")
	}
	if deps := g.Dependencies("nope"); deps != nil {
		t.Errorf("expected nil dependencies, got %v", deps)
	}
	if deps := g.Dependents("nope"); deps != nil {
		t.Errorf("expected nil dependents, got %v", deps)
	}
}

func TestGraphDebugLog(t *testing.T) {
	g := NewTaskGraph()
	var lines []string
	g.SetDebugLog(func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	})

	if err := g.Register(task("A", "A")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _ = g.Order()

	if len(lines) != 2 {
		t.Fatalf("expected 2 debug lines, got %d: %v", len(lines), lines)
	}
}
