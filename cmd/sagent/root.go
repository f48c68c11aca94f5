package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sagent/internal/config"
)

var (
	configPath string
	noColor    bool
	debugLog   string
)

var rootCmd = &cobra.Command{
	Use:   "sagent",
	Short: "Saga orchestration for multi-step agent workflows",
	Long: `sagent runs a set of dependent tasks as a saga.

Tasks are described in a YAML file and run one at a time in dependency
order. When a task fails, every task that already completed is rolled back
in reverse completion order. Tasks without a rollback are skipped during the
unwind.

Task kinds:
- static: returns a fixed result, or fails with a fixed message
- shell:  runs a command and returns its output
- llm:    asks a Claude model, using the task's backstory and description`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			color.NoColor = true
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads configuration from --config when given, otherwise from the
// user and project config files. Command-line flags are applied last.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if debugLog != "" {
		cfg.Log.DebugFile = debugLog
	}
	if !cfg.Output.Color {
		color.NoColor = true
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user config merged with .sagent.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&debugLog, "debug-log", "", "Write a debug log to this file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
