package saga

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestChain(t *testing.T) {
	tasks := Chain(task("C", "X"), task("A"), task("B"))

	want := [][]string{nil, {"C"}, {"A"}}
	for i, tk := range tasks {
		if !reflect.DeepEqual(tk.DependsOn, want[i]) {
			t.Errorf("tasks[%d].DependsOn = %v, want %v", i, tk.DependsOn, want[i])
		}
	}

	g := NewTaskGraph()
	if err := g.Register(tasks...); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := orderNames(t, g); !reflect.DeepEqual(got, []string{"C", "A", "B"}) {
		t.Errorf("order = %v, want [C A B]", got)
	}
}

func TestChainUnwindsAsStack(t *testing.T) {
	log := &callLog{}
	c := NewCoordinator()
	err := c.Register(Chain(
		okTask(log, "reserve"),
		okTask(log, "charge"),
		okTask(log, "ship"),
		failTask(log, "notify", errors.New("smtp down")),
	)...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := c.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	want := []string{
		"run:reserve", "run:charge", "run:ship", "run:notify",
		"rollback:ship", "rollback:charge", "rollback:reserve",
	}
	if got := log.get(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}
