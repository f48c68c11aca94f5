package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sagent/internal/config"
	"github.com/ShayCichocki/sagent/internal/definition"
)

// exampleSagaName is the file written by init.
const exampleSagaName = "saga.yaml"

var (
	initForce       bool
	initWithConfigs bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Create an example saga definition",
	Long: `Create an example saga.yaml in a directory.

The example uses only static and shell tasks, so it runs without an API key.
The directory argument is optional and defaults to the current directory.

Examples:
  sagent init                  # Write ./saga.yaml
  sagent init ./deploy         # Write ./deploy/saga.yaml
  sagent init --force          # Overwrite an existing saga.yaml
  sagent init --with-configs   # Also write a .sagent.yaml template`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		return runInit(cmd.OutOrStdout(), dir, initForce, initWithConfigs)
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
	initCmd.Flags().BoolVar(&initWithConfigs, "with-configs", false, "Create a .sagent.yaml project config template")
}

func runInit(w io.Writer, dir string, force, withConfigs bool) error {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Fprintf(w, "Initializing sagent in %s...\n\n", absPath)

	sagaPath := filepath.Join(absPath, exampleSagaName)
	if err := writeFile(sagaPath, definition.Example(), force); err != nil {
		if errors.Is(err, os.ErrExist) {
			printStatus(w, "⚠", exampleSagaName+" already exists (use --force to overwrite)", color.FgYellow)
		} else {
			return err
		}
	} else {
		printStatus(w, "✓", "Created "+exampleSagaName, color.FgGreen)
	}

	if withConfigs {
		if err := writeFile(filepath.Join(absPath, config.ProjectConfigName), []byte(projectConfigTemplate), force); err != nil {
			if !errors.Is(err, os.ErrExist) {
				return err
			}
			printStatus(w, "⚠", config.ProjectConfigName+" already exists", color.FgYellow)
		} else {
			printStatus(w, "✓", "Created "+config.ProjectConfigName+" template", color.FgGreen)
		}
	}

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		printStatus(w, "⚠", "ANTHROPIC_API_KEY not set (only needed for llm tasks)", color.FgYellow)
	}

	fmt.Fprintf(w, "\nNext: sagent graph %s && sagent run %s\n", sagaPath, sagaPath)
	return nil
}

// writeFile writes data to path. Without force, an existing file is left
// alone and an error wrapping os.ErrExist is returned.
func writeFile(path string, data []byte, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

const projectConfigTemplate = `# sagent project configuration
# This file overrides defaults from ~/.config/sagent/config.yaml

# saga:
#   rollback: true
#   task_timeout: 5m

# history:
#   enabled: true

# anthropic:
#   model: claude-sonnet-4-5-20250929
#   max_tokens: 1024
`

// printStatus prints a status line with colored symbol
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}
