package config

import (
	"testing"

	"github.com/ShayCichocki/tierup/pkg/models"
)

func TestGetAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		provider   string
		anthEnv    string
		openaiEnv  string
		cfg        *Config
		wantKey    string
		wantSource KeySource
		wantErr    bool
	}{
		{
			name:       "anthropic from environment",
			provider:   models.ProviderAnthropic,
			anthEnv:    "sk-ant-env-key",
			cfg:        &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config-key"}},
			wantKey:    "sk-ant-env-key",
			wantSource: KeySourceEnv,
		},
		{
			name:       "anthropic from config",
			provider:   models.ProviderAnthropic,
			cfg:        &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config-key"}},
			wantKey:    "sk-ant-config-key",
			wantSource: KeySourceConfig,
		},
		{
			name:       "openai from environment",
			provider:   models.ProviderOpenAI,
			openaiEnv:  "sk-openai-env",
			cfg:        &Config{},
			wantKey:    "sk-openai-env",
			wantSource: KeySourceEnv,
		},
		{
			name:       "openai from config",
			provider:   models.ProviderOpenAI,
			cfg:        &Config{OpenAI: OpenAIConfig{APIKey: "sk-openai-config"}},
			wantKey:    "sk-openai-config",
			wantSource: KeySourceConfig,
		},
		{
			name:       "unexpanded reference",
			provider:   models.ProviderAnthropic,
			cfg:        &Config{Anthropic: AnthropicConfig{APIKey: "${TIERUP_TEST_MISSING_KEY}"}},
			wantSource: KeySourceNone,
			wantErr:    true,
		},
		{
			name:       "nil config",
			provider:   models.ProviderOpenAI,
			wantSource: KeySourceNone,
			wantErr:    true,
		},
		{
			name:       "unsupported provider",
			provider:   models.ProviderGoogle,
			cfg:        &Config{},
			wantSource: KeySourceNone,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvAnthropicAPIKey, tt.anthEnv)
			t.Setenv(EnvOpenAIAPIKey, tt.openaiEnv)

			key, source, err := GetAPIKey(tt.cfg, tt.provider)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetAPIKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != ErrNoAPIKey {
				t.Errorf("expected ErrNoAPIKey, got %v", err)
			}
			if key != tt.wantKey {
				t.Errorf("expected key %q, got %q", tt.wantKey, key)
			}
			if source != tt.wantSource {
				t.Errorf("expected source %v, got %v", tt.wantSource, source)
			}
		})
	}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		key      string
		wantErr  bool
	}{
		{"valid anthropic key", models.ProviderAnthropic, "sk-ant-REDACTED", false},
		{"empty key", models.ProviderAnthropic, "", true},
		{"wrong anthropic prefix", models.ProviderAnthropic, "sk-openai-12345678901234567890", true},
		{"too short", models.ProviderAnthropic, "sk-ant-abc", true},
		{"valid openai key", models.ProviderOpenAI, "sk-proj-abcdefghijklmnopqrstu", false},
		{"wrong openai prefix", models.ProviderOpenAI, "pk-abcdefghijklmnopqrstuvwxyz", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.provider, tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{"valid key", "sk-ant-REDACTED", "sk-ant-...wxyz"},
		{"empty key", "", "(not set)"},
		{"short key", "short", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MaskAPIKey(tt.key)
			if result != tt.expected {
				t.Errorf("MaskAPIKey() = %q, want %q", result, tt.expected)
			}
		})
	}
}
