package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sagent/internal/definition"
	"github.com/ShayCichocki/sagent/internal/saga"
)

var graphCmd = &cobra.Command{
	Use:   "graph <saga.yaml>",
	Short: "Show the execution order of a saga without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return showGraph(cmd.OutOrStdout(), args[0])
	},
}

// showGraph prints the planned order, or the cycle that prevents one.
func showGraph(w io.Writer, path string) error {
	def, err := definition.Load(path)
	if err != nil {
		return err
	}

	coord := saga.NewCoordinator()
	if err := coord.Register(def.Plan()...); err != nil {
		return err
	}
	order, err := coord.Order()
	if err != nil {
		return err
	}

	specs := make(map[string]definition.TaskSpec, len(def.Tasks))
	for _, spec := range def.Tasks {
		specs[spec.Name] = spec
	}

	t := newTable("#", "Task", "Kind", "Rollback", "Depends on")
	for i, name := range order {
		spec := specs[name]
		rollback := "-"
		if spec.Rollback != "" {
			rollback = "yes"
		}
		on := strings.Join(spec.DependsOn, ", ")
		if on == "" {
			on = "-"
		}
		t.Row(fmt.Sprintf("%d", i+1), name, string(spec.EffectiveKind()), rollback, on)
	}

	fmt.Fprintf(w, "%s: %d tasks\n", def.Name, len(order))
	fmt.Fprintln(w, t.Render())
	return nil
}
