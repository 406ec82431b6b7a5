package main

import (
	"testing"

	"github.com/ShayCichocki/tierup/internal/config"
)

func TestLookupConfigKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"exact", "budget.max_cost", false},
		{"case insensitive", "Models.Cheap", false},
		{"padded", "  executor.concurrency ", false},
		{"unknown", "budget.unlimited", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lookupConfigKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("lookupConfigKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestConfigKeys_SetAndGet(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		want    string
		wantErr bool
	}{
		{key: "models.premium", value: "gpt-4o", want: "gpt-4o"},
		{key: "executor.concurrency", value: "8", want: "8"},
		{key: "executor.concurrency", value: "eight", wantErr: true},
		{key: "budget.max_cost", value: "2.5", want: "2.5"},
		{key: "budget.max_cost", value: "lots", wantErr: true},
		{key: "budget.abort_on_exceeded", value: "true", want: "true"},
		{key: "budget.abort_on_exceeded", value: "maybe", wantErr: true},
		{key: "escalation.tiers", value: "cheap, premium", want: "cheap,premium"},
		{key: "escalation.tiers", value: "cheap,mythic", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := config.Default()
			k, err := lookupConfigKey(tt.key)
			if err != nil {
				t.Fatal(err)
			}
			err = k.set(cfg, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("set() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := k.display(cfg); got != tt.want {
				t.Errorf("display() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigKeys_SecretsMasked(t *testing.T) {
	cfg := config.Default()
	cfg.Anthropic.APIKey = "sk-ant-REDACTED"

	k, err := lookupConfigKey("anthropic.api_key")
	if err != nil {
		t.Fatal(err)
	}
	if got := k.display(cfg); got != "sk-ant-...wxyz" {
		t.Errorf("display() = %q, want masked key", got)
	}
	if got := k.get(cfg); got != cfg.Anthropic.APIKey {
		t.Errorf("get() = %q, want raw key", got)
	}
}

func TestConfigKeys_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for _, k := range configKeys {
		if seen[k.name] {
			t.Errorf("duplicate key %s", k.name)
		}
		seen[k.name] = true
	}
}

func TestConfigKeys_SaveRoundTrip(t *testing.T) {
	clearTierupEnv(t)
	path := t.TempDir() + "/config.yaml"

	cfg := config.Default()
	k, err := lookupConfigKey("pricing.premium_per_item")
	if err != nil {
		t.Fatal(err)
	}
	if err := k.set(cfg, "0.2"); err != nil {
		t.Fatal(err)
	}
	if err := config.SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo() error: %v", err)
	}

	loaded, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if loaded.Pricing.PremiumPerItem != 0.2 {
		t.Errorf("premium_per_item = %v, want 0.2", loaded.Pricing.PremiumPerItem)
	}
}

func clearTierupEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{config.EnvAnthropicAPIKey, config.EnvOpenAIAPIKey, "TIERUP_USER_ID", "POSTHOG_API_KEY"} {
		t.Setenv(env, "")
	}
}
