package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if !cfg.Saga.Rollback {
		t.Error("expected saga.rollback to default to true")
	}

	if cfg.Saga.TaskTimeout != 0 {
		t.Errorf("expected no task timeout, got %v", cfg.Saga.TaskTimeout)
	}

	if !cfg.History.Enabled {
		t.Error("expected history to be enabled")
	}

	if filepath.Base(cfg.History.Path) != "history.db" {
		t.Errorf("expected history path to end in history.db, got %q", cfg.History.Path)
	}

	if !cfg.Output.Color {
		t.Error("expected color output by default")
	}

	if cfg.Anthropic.Model != DefaultModel {
		t.Errorf("expected model %q, got %q", DefaultModel, cfg.Anthropic.Model)
	}

	if cfg.Anthropic.MaxTokens != DefaultMaxTokens {
		t.Errorf("expected max tokens %d, got %d", DefaultMaxTokens, cfg.Anthropic.MaxTokens)
	}
}

func TestLoadFromPath(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_PROFILE", "")
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
saga:
  rollback: false
  task_timeout: 90s
log:
  debug_file: /tmp/sagent-debug.log
history:
  enabled: false
  path: /tmp/runs.db
output:
  color: false
anthropic:
  api_key: test-key
  model: claude-haiku-4-5
  max_tokens: 2048
  use_bedrock: true
  aws_region: eu-west-1
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Saga.Rollback {
		t.Error("expected saga.rollback to be false")
	}

	if cfg.Saga.TaskTimeout != 90*time.Second {
		t.Errorf("expected task timeout 90s, got %v", cfg.Saga.TaskTimeout)
	}

	if cfg.Log.DebugFile != "/tmp/sagent-debug.log" {
		t.Errorf("unexpected debug file %q", cfg.Log.DebugFile)
	}

	if cfg.History.Enabled || cfg.History.Path != "/tmp/runs.db" {
		t.Errorf("unexpected history config %+v", cfg.History)
	}

	if cfg.Output.Color {
		t.Error("expected color to be false")
	}

	want := AnthropicConfig{
		APIKey:     "test-key",
		Model:      "claude-haiku-4-5",
		MaxTokens:  2048,
		UseBedrock: true,
		AWSRegion:  "eu-west-1",
	}
	if cfg.Anthropic != want {
		t.Errorf("anthropic = %+v, want %+v", cfg.Anthropic, want)
	}
}

func TestLoadFromPathKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("output:\n  color: false\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if !cfg.Saga.Rollback {
		t.Error("expected default rollback to survive a partial file")
	}
	if cfg.Anthropic.MaxTokens != DefaultMaxTokens {
		t.Errorf("expected default max tokens, got %d", cfg.Anthropic.MaxTokens)
	}
}

func TestLoadFromPathMissing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("saga:\n  rollback: true\nanthropic:\n  api_key: from-file\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("SAGENT_SAGA_ROLLBACK", "false")
	t.Setenv("ANTHROPIC_API_KEY", "from-env")

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Saga.Rollback {
		t.Error("expected SAGENT_SAGA_ROLLBACK to override the file")
	}
	if cfg.Anthropic.APIKey != "from-env" {
		t.Errorf("expected api key from env, got %q", cfg.Anthropic.APIKey)
	}
}

func TestLoadMergesProjectConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "")

	userCfg := Default()
	userCfg.Anthropic.Model = "user-model"
	userCfg.Output.Color = false
	if err := Save(userCfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	project := t.TempDir()
	nested := filepath.Join(project, "sub", "dir")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	projectContent := "anthropic:\n  model: project-model\n"
	if err := os.WriteFile(filepath.Join(project, ProjectConfigName), []byte(projectContent), 0644); err != nil {
		t.Fatalf("failed to write project config: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(nested); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Anthropic.Model != "project-model" {
		t.Errorf("expected project config to win, got %q", cfg.Anthropic.Model)
	}
	if cfg.Output.Color {
		t.Error("expected user config value to survive the merge")
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "config.yaml")

	cfg := Default()
	cfg.Saga.TaskTimeout = 3 * time.Minute
	cfg.Log.DebugFile = "debug.log"
	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Saga.TaskTimeout != 3*time.Minute {
		t.Errorf("expected task timeout 3m, got %v", loaded.Saga.TaskTimeout)
	}
	if loaded.Log.DebugFile != "debug.log" {
		t.Errorf("expected debug file to round-trip, got %q", loaded.Log.DebugFile)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := "/custom/config/sagent"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func TestDefaultHistoryPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")

	if got := DefaultHistoryPath(); got != "/custom/data/sagent/history.db" {
		t.Errorf("DefaultHistoryPath() = %q", got)
	}
}
