// Package definition loads saga definition files and turns them into
// executable saga tasks.
package definition

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

//go:embed example.yaml
var exampleYAML []byte

// Kind selects how a task produces its result.
type Kind string

const (
	// KindStatic returns a fixed result, or fails with a fixed message.
	KindStatic Kind = "static"
	// KindShell runs a shell command and returns its trimmed output.
	KindShell Kind = "shell"
	// KindLLM asks a model and returns its text answer.
	KindLLM Kind = "llm"
)

// ErrInvalidDefinition is wrapped by every validation failure.
var ErrInvalidDefinition = errors.New("invalid saga definition")

// Definition is a saga described in YAML.
type Definition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Rollback overrides the configured rollback mode when set.
	Rollback    *bool      `yaml:"rollback,omitempty"`
	TaskTimeout Duration   `yaml:"task_timeout,omitempty"`
	Tasks       []TaskSpec `yaml:"tasks"`

	// Path is the file the definition was loaded from, if any.
	Path string `yaml:"-"`
}

// TaskSpec describes one task.
type TaskSpec struct {
	Name      string   `yaml:"name"`
	Kind      Kind     `yaml:"kind,omitempty"`
	DependsOn []string `yaml:"depends_on,omitempty"`

	// Run is the shell command for shell tasks.
	Run string `yaml:"run,omitempty"`
	// Rollback is a shell command that undoes the task. Empty means the task
	// cannot be compensated.
	Rollback string   `yaml:"rollback,omitempty"`
	Workdir  string   `yaml:"workdir,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty"`

	// Result and Fail apply to static tasks.
	Result string `yaml:"result,omitempty"`
	Fail   string `yaml:"fail,omitempty"`

	// Agent prompt fields for llm tasks.
	Backstory      string `yaml:"backstory,omitempty"`
	Description    string `yaml:"description,omitempty"`
	ExpectedOutput string `yaml:"expected_output,omitempty"`
}

// EffectiveKind returns the task kind, defaulting to static.
func (t TaskSpec) EffectiveKind() Kind {
	if t.Kind == "" {
		return KindStatic
	}
	return t.Kind
}

// Duration is a time.Duration that reads from YAML strings like "90s".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", value.Line, err)
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load reads and validates a definition file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read saga file: %w", err)
	}

	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	def.Path = path
	return def, nil
}

// Parse decodes and validates a definition. Unknown fields are rejected.
func Parse(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	def := &Definition{}
	if err := dec.Decode(def); err != nil {
		return nil, fmt.Errorf("parse saga file: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// Marshal encodes a definition back to YAML.
func Marshal(def *Definition) ([]byte, error) {
	return yaml.Marshal(def)
}

// Example returns a runnable example definition.
func Example() []byte {
	return append([]byte(nil), exampleYAML...)
}

// BaseDir returns the directory relative workdirs resolve against.
func (d *Definition) BaseDir() string {
	if d.Path == "" {
		return "."
	}
	return filepath.Dir(d.Path)
}

// HasKind reports whether any task uses the given kind.
func (d *Definition) HasKind(kind Kind) bool {
	for _, t := range d.Tasks {
		if t.EffectiveKind() == kind {
			return true
		}
	}
	return false
}

// ValidationError lists every problem found in a definition.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidDefinition, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidDefinition }

// Validate checks the definition for problems the saga graph cannot catch on
// its own. Dependency cycles are left to the graph.
func (d *Definition) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(d.Name) == "" {
		add("name is required")
	}
	if len(d.Tasks) == 0 {
		add("at least one task is required")
	}
	if d.TaskTimeout < 0 {
		add("task_timeout must not be negative")
	}

	seen := make(map[string]bool, len(d.Tasks))
	for _, t := range d.Tasks {
		if t.Name != "" {
			if seen[t.Name] {
				add("task %q is defined more than once", t.Name)
			}
			seen[t.Name] = true
		}
	}

	for i, t := range d.Tasks {
		label := t.Name
		if label == "" {
			add("task #%d: name is required", i+1)
			label = fmt.Sprintf("#%d", i+1)
		}

		switch t.EffectiveKind() {
		case KindStatic:
			if t.Run != "" {
				add("task %q: run is only valid for shell tasks", label)
			}
		case KindShell:
			if strings.TrimSpace(t.Run) == "" {
				add("task %q: shell tasks need run", label)
			}
		case KindLLM:
			if strings.TrimSpace(t.Description) == "" {
				add("task %q: llm tasks need description", label)
			}
		default:
			add("task %q: unknown kind %q", label, t.Kind)
		}

		if t.Timeout < 0 {
			add("task %q: timeout must not be negative", label)
		}
		for _, dep := range t.DependsOn {
			if !seen[dep] {
				add("task %q: depends on unknown task %q", label, dep)
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
