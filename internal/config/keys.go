package config

import (
	"errors"
	"os"
	"strings"

	"github.com/ShayCichocki/tierup/pkg/models"
)

// ErrNoAPIKey is returned when no API key is configured for a provider.
var ErrNoAPIKey = errors.New("no API key configured")

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// Environment variables consulted for provider API keys.
const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
)

// GetAPIKey returns the API key for a provider and where it came from.
// The environment wins over the config file.
func GetAPIKey(cfg *Config, provider string) (string, KeySource, error) {
	env, configured := "", ""
	switch provider {
	case models.ProviderAnthropic:
		env = EnvAnthropicAPIKey
		if cfg != nil {
			configured = cfg.Anthropic.APIKey
		}
	case models.ProviderOpenAI:
		env = EnvOpenAIAPIKey
		if cfg != nil {
			configured = cfg.OpenAI.APIKey
		}
	default:
		return "", KeySourceNone, ErrNoAPIKey
	}

	if key := os.Getenv(env); key != "" {
		return key, KeySourceEnv, nil
	}

	if configured != "" {
		key := os.ExpandEnv(configured)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, KeySourceConfig, nil
		}
	}

	return "", KeySourceNone, ErrNoAPIKey
}

// ValidateAPIKey performs basic format validation on a provider key.
// It does not contact the provider.
func ValidateAPIKey(provider, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	switch provider {
	case models.ProviderAnthropic:
		if !strings.HasPrefix(key, "sk-ant-") {
			return errors.New("invalid API key format: expected 'sk-ant-' prefix")
		}
	case models.ProviderOpenAI:
		if !strings.HasPrefix(key, "sk-") {
			return errors.New("invalid API key format: expected 'sk-' prefix")
		}
	}

	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}
