package config

import (
	"errors"
	"os"
	"strings"
)

const (
	// DefaultModel is the model used by llm tasks when none is configured.
	DefaultModel = "claude-sonnet-4-5-20250929"
	// DefaultMaxTokens bounds a single llm task response.
	DefaultMaxTokens = 1024
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// GetAPIKey returns the Anthropic API key used by llm tasks.
// It checks in order: environment variable, config file. With Bedrock enabled
// no key is needed and it returns an empty key and a nil error.
func GetAPIKey(cfg *Config) (string, error) {
	// Bedrock authenticates with AWS credentials
	if cfg != nil && cfg.Anthropic.UseBedrock {
		return "", nil
	}

	// Environment wins over the config file
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, nil
	}

	if key := configKey(cfg); key != "" {
		return key, nil
	}

	return "", ErrNoAPIKey
}

// configKey returns the key stored in the config file, with env references
// expanded. Unresolved references count as unset.
func configKey(cfg *Config) string {
	if cfg == nil || cfg.Anthropic.APIKey == "" {
		return ""
	}
	key := os.ExpandEnv(cfg.Anthropic.APIKey)
	if strings.HasPrefix(key, "${") {
		return ""
	}
	return key
}

// ValidateAPIKey performs basic validation on an API key.
// It checks format but does not verify the key with Anthropic's API.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	// Anthropic API keys start with "sk-ant-"
	if !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	}

	// Keys should be reasonably long
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters (sk-ant-) and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	// Too short to show both ends without revealing most of it
	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	// KeySourceEnv is the ANTHROPIC_API_KEY environment variable.
	KeySourceEnv     KeySource = "environment"
	// KeySourceConfig is anthropic.api_key in a config file.
	KeySourceConfig  KeySource = "config_file"
	// KeySourceBedrock means AWS credentials are used instead of a key.
	KeySourceBedrock KeySource = "aws_bedrock"
	KeySourceNone    KeySource = "none"
)

// GetAPIKeySource returns where the API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	if cfg != nil && cfg.Anthropic.UseBedrock {
		return KeySourceBedrock
	}

	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return KeySourceEnv
	}

	if configKey(cfg) != "" {
		return KeySourceConfig
	}

	return KeySourceNone
}
