// Package config handles configuration loading and management for tierup.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/tierup/internal/orchestrator/policy"
	"github.com/ShayCichocki/tierup/internal/workflow"
	"github.com/ShayCichocki/tierup/pkg/models"
)

// ProjectConfigName is the project-level override file searched for in the
// working directory and its parents.
const ProjectConfigName = ".tierup.yaml"

// Config holds all configuration for tierup.
type Config struct {
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Models     ModelsConfig     `mapstructure:"models"`
	Escalation EscalationConfig `mapstructure:"escalation"`
	Budget     BudgetConfig     `mapstructure:"budget"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Executor   ExecutorConfig   `mapstructure:"executor"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// ModelsConfig maps each tier to a model identifier.
type ModelsConfig struct {
	Cheap   string `mapstructure:"cheap"`
	Capable string `mapstructure:"capable"`
	Premium string `mapstructure:"premium"`
}

// EscalationConfig holds the tier list, attempt bounds, CQS thresholds and
// stagnation knobs.
type EscalationConfig struct {
	Tiers                      []string `mapstructure:"tiers"`
	CheapMinAttempts           int      `mapstructure:"cheap_min_attempts"`
	CheapMaxAttempts           int      `mapstructure:"cheap_max_attempts"`
	CapableMinAttempts         int      `mapstructure:"capable_min_attempts"`
	CapableMaxAttempts         int      `mapstructure:"capable_max_attempts"`
	PremiumMinAttempts         int      `mapstructure:"premium_min_attempts"`
	PremiumMaxAttempts         int      `mapstructure:"premium_max_attempts"`
	CheapToCapableMinCQS       float64  `mapstructure:"cheap_to_capable_min_cqs"`
	CapableToPremiumMinCQS     float64  `mapstructure:"capable_to_premium_min_cqs"`
	MaxSyntaxErrors            int      `mapstructure:"max_syntax_errors"`
	ImprovementThreshold       float64  `mapstructure:"improvement_threshold"`
	ConsecutiveStagnationLimit int      `mapstructure:"consecutive_stagnation_limit"`
}

// BudgetConfig holds cost enforcement settings.
type BudgetConfig struct {
	MaxCost          float64 `mapstructure:"max_cost"`
	AbortOnExceeded  bool    `mapstructure:"abort_on_exceeded"`
	WarnOnExceeded   bool    `mapstructure:"warn_on_exceeded"`
	AutoApproveUnder float64 `mapstructure:"auto_approve_under"`
}

// PricingConfig holds flat per-item prices used for estimates.
type PricingConfig struct {
	CheapPerItem    float64 `mapstructure:"cheap_per_item"`
	CapablePerItem  float64 `mapstructure:"capable_per_item"`
	PremiumPerItem  float64 `mapstructure:"premium_per_item"`
	CapableFraction float64 `mapstructure:"capable_fraction"`
	PremiumFraction float64 `mapstructure:"premium_fraction"`
}

// TelemetryConfig selects the telemetry sinks.
type TelemetryConfig struct {
	// JSONLPath appends every event as one JSON line. Empty disables it.
	JSONLPath string `mapstructure:"jsonl_path"`
	// SQLite persists runs and events to .tierup/state.db.
	SQLite        bool   `mapstructure:"sqlite"`
	PostHogAPIKey string `mapstructure:"posthog_api_key"`
	PostHogHost   string `mapstructure:"posthog_host"`
	// MetricsAddr serves Prometheus metrics when set, e.g. ":9464".
	MetricsAddr string `mapstructure:"metrics_addr"`
	UserID      string `mapstructure:"user_id"`
}

// ExecutorConfig holds generation settings.
type ExecutorConfig struct {
	MaxTokens      int    `mapstructure:"max_tokens"`
	Concurrency    int    `mapstructure:"concurrency"`
	MeasureCommand string `mapstructure:"measure_command"`
	MeasureDir     string `mapstructure:"measure_dir"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OPENAI_API_KEY, TIERUP_USER_ID, POSTHOG_API_KEY)
// 2. Project config (.tierup.yaml in current directory or parent)
// 3. User config (~/.config/tierup/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file on top of the defaults.
// Environment variables still take precedence.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)
	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("telemetry.user_id", "TIERUP_USER_ID")
	_ = v.BindEnv("telemetry.posthog_api_key", "POSTHOG_API_KEY")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)
	cfg.Telemetry.PostHogAPIKey = expandEnv(cfg.Telemetry.PostHogAPIKey)
	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	return SaveTo(cfg, GetUserConfigPath())
}

// SaveTo writes the configuration to path, creating its directory.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.base_url", cfg.Anthropic.BaseURL)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("openai.api_key", cfg.OpenAI.APIKey)
	v.Set("openai.base_url", cfg.OpenAI.BaseURL)

	v.Set("models.cheap", cfg.Models.Cheap)
	v.Set("models.capable", cfg.Models.Capable)
	v.Set("models.premium", cfg.Models.Premium)

	e := cfg.Escalation
	v.Set("escalation.tiers", e.Tiers)
	v.Set("escalation.cheap_min_attempts", e.CheapMinAttempts)
	v.Set("escalation.cheap_max_attempts", e.CheapMaxAttempts)
	v.Set("escalation.capable_min_attempts", e.CapableMinAttempts)
	v.Set("escalation.capable_max_attempts", e.CapableMaxAttempts)
	v.Set("escalation.premium_min_attempts", e.PremiumMinAttempts)
	v.Set("escalation.premium_max_attempts", e.PremiumMaxAttempts)
	v.Set("escalation.cheap_to_capable_min_cqs", e.CheapToCapableMinCQS)
	v.Set("escalation.capable_to_premium_min_cqs", e.CapableToPremiumMinCQS)
	v.Set("escalation.max_syntax_errors", e.MaxSyntaxErrors)
	v.Set("escalation.improvement_threshold", e.ImprovementThreshold)
	v.Set("escalation.consecutive_stagnation_limit", e.ConsecutiveStagnationLimit)

	v.Set("budget.max_cost", cfg.Budget.MaxCost)
	v.Set("budget.abort_on_exceeded", cfg.Budget.AbortOnExceeded)
	v.Set("budget.warn_on_exceeded", cfg.Budget.WarnOnExceeded)
	v.Set("budget.auto_approve_under", cfg.Budget.AutoApproveUnder)

	v.Set("pricing.cheap_per_item", cfg.Pricing.CheapPerItem)
	v.Set("pricing.capable_per_item", cfg.Pricing.CapablePerItem)
	v.Set("pricing.premium_per_item", cfg.Pricing.PremiumPerItem)
	v.Set("pricing.capable_fraction", cfg.Pricing.CapableFraction)
	v.Set("pricing.premium_fraction", cfg.Pricing.PremiumFraction)

	v.Set("telemetry.jsonl_path", cfg.Telemetry.JSONLPath)
	v.Set("telemetry.sqlite", cfg.Telemetry.SQLite)
	v.Set("telemetry.posthog_api_key", cfg.Telemetry.PostHogAPIKey)
	v.Set("telemetry.posthog_host", cfg.Telemetry.PostHogHost)
	v.Set("telemetry.metrics_addr", cfg.Telemetry.MetricsAddr)
	v.Set("telemetry.user_id", cfg.Telemetry.UserID)

	v.Set("executor.max_tokens", cfg.Executor.MaxTokens)
	v.Set("executor.concurrency", cfg.Executor.Concurrency)
	v.Set("executor.measure_command", cfg.Executor.MeasureCommand)
	v.Set("executor.measure_dir", cfg.Executor.MeasureDir)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// ToPolicy converts the escalation, budget and pricing sections into a
// validated policy.Config.
func (c *Config) ToPolicy() (*policy.Config, error) {
	p := policy.Default()

	if len(c.Escalation.Tiers) > 0 {
		p.Tiers = make([]models.Tier, 0, len(c.Escalation.Tiers))
		for _, name := range c.Escalation.Tiers {
			t, err := models.ParseTier(name)
			if err != nil {
				return nil, fmt.Errorf("escalation.tiers: %w", err)
			}
			p.Tiers = append(p.Tiers, t)
		}
	}

	e := c.Escalation
	p.Cheap = policy.AttemptPolicy{Min: e.CheapMinAttempts, Max: e.CheapMaxAttempts}
	p.Capable = policy.AttemptPolicy{Min: e.CapableMinAttempts, Max: e.CapableMaxAttempts}
	p.Premium = policy.AttemptPolicy{Min: e.PremiumMinAttempts, Max: e.PremiumMaxAttempts}
	p.Thresholds = policy.ThresholdPolicy{
		CheapToCapableMinCQS:   e.CheapToCapableMinCQS,
		CapableToPremiumMinCQS: e.CapableToPremiumMinCQS,
		MaxSyntaxErrors:        e.MaxSyntaxErrors,
	}
	p.Stagnation = policy.StagnationPolicy{
		ImprovementThreshold: e.ImprovementThreshold,
		ConsecutiveLimit:     e.ConsecutiveStagnationLimit,
	}
	p.Budget = policy.BudgetPolicy{
		MaxCost:          c.Budget.MaxCost,
		AbortOnExceeded:  c.Budget.AbortOnExceeded,
		WarnOnExceeded:   c.Budget.WarnOnExceeded,
		AutoApproveUnder: c.Budget.AutoApproveUnder,
	}
	p.Pricing = policy.PricingPolicy{
		CheapPerItem:    c.Pricing.CheapPerItem,
		CapablePerItem:  c.Pricing.CapablePerItem,
		PremiumPerItem:  c.Pricing.PremiumPerItem,
		CapableFraction: c.Pricing.CapableFraction,
		PremiumFraction: c.Pricing.PremiumFraction,
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("escalation policy: %w", err)
	}
	return p, nil
}

// TierModels returns the configured model per tier. Empty entries are
// omitted so the workflow keeps its default for that tier.
func (c *Config) TierModels() map[models.Tier]string {
	m := make(map[models.Tier]string, 3)
	for tier, model := range map[models.Tier]string{
		models.TierCheap:   c.Models.Cheap,
		models.TierCapable: c.Models.Capable,
		models.TierPremium: c.Models.Premium,
	} {
		if model != "" {
			m[tier] = model
		}
	}
	return m
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")

	v.SetDefault("models.cheap", d.Models.Cheap)
	v.SetDefault("models.capable", d.Models.Capable)
	v.SetDefault("models.premium", d.Models.Premium)

	v.SetDefault("escalation.tiers", d.Escalation.Tiers)
	v.SetDefault("escalation.cheap_min_attempts", d.Escalation.CheapMinAttempts)
	v.SetDefault("escalation.cheap_max_attempts", d.Escalation.CheapMaxAttempts)
	v.SetDefault("escalation.capable_min_attempts", d.Escalation.CapableMinAttempts)
	v.SetDefault("escalation.capable_max_attempts", d.Escalation.CapableMaxAttempts)
	v.SetDefault("escalation.premium_min_attempts", d.Escalation.PremiumMinAttempts)
	v.SetDefault("escalation.premium_max_attempts", d.Escalation.PremiumMaxAttempts)
	v.SetDefault("escalation.cheap_to_capable_min_cqs", d.Escalation.CheapToCapableMinCQS)
	v.SetDefault("escalation.capable_to_premium_min_cqs", d.Escalation.CapableToPremiumMinCQS)
	v.SetDefault("escalation.max_syntax_errors", d.Escalation.MaxSyntaxErrors)
	v.SetDefault("escalation.improvement_threshold", d.Escalation.ImprovementThreshold)
	v.SetDefault("escalation.consecutive_stagnation_limit", d.Escalation.ConsecutiveStagnationLimit)

	v.SetDefault("budget.max_cost", d.Budget.MaxCost)
	v.SetDefault("budget.abort_on_exceeded", d.Budget.AbortOnExceeded)
	v.SetDefault("budget.warn_on_exceeded", d.Budget.WarnOnExceeded)
	v.SetDefault("budget.auto_approve_under", d.Budget.AutoApproveUnder)

	v.SetDefault("pricing.cheap_per_item", d.Pricing.CheapPerItem)
	v.SetDefault("pricing.capable_per_item", d.Pricing.CapablePerItem)
	v.SetDefault("pricing.premium_per_item", d.Pricing.PremiumPerItem)
	v.SetDefault("pricing.capable_fraction", d.Pricing.CapableFraction)
	v.SetDefault("pricing.premium_fraction", d.Pricing.PremiumFraction)

	v.SetDefault("telemetry.jsonl_path", d.Telemetry.JSONLPath)
	v.SetDefault("telemetry.sqlite", d.Telemetry.SQLite)
	v.SetDefault("telemetry.posthog_api_key", "")
	v.SetDefault("telemetry.posthog_host", d.Telemetry.PostHogHost)
	v.SetDefault("telemetry.metrics_addr", "")
	v.SetDefault("telemetry.user_id", "")

	v.SetDefault("executor.max_tokens", d.Executor.MaxTokens)
	v.SetDefault("executor.concurrency", d.Executor.Concurrency)
	v.SetDefault("executor.measure_command", "")
	v.SetDefault("executor.measure_dir", "")
}

// getUserConfigDir returns the XDG config directory for tierup.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tierup")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "tierup")
	}
	return filepath.Join(home, ".config", "tierup")
}

// findProjectConfig searches for .tierup.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	tiers := make([]string, len(models.AllTiers))
	for i, t := range models.AllTiers {
		tiers[i] = string(t)
	}

	return &Config{
		Models: ModelsConfig{
			Cheap:   workflow.DefaultModels[models.TierCheap],
			Capable: workflow.DefaultModels[models.TierCapable],
			Premium: workflow.DefaultModels[models.TierPremium],
		},
		Escalation: EscalationConfig{
			Tiers:                      tiers,
			CheapMinAttempts:           policy.DefaultCheapMinAttempts,
			CheapMaxAttempts:           policy.DefaultCheapMaxAttempts,
			CapableMinAttempts:         policy.DefaultCapableMinAttempts,
			CapableMaxAttempts:         policy.DefaultCapableMaxAttempts,
			PremiumMinAttempts:         policy.DefaultPremiumMinAttempts,
			PremiumMaxAttempts:         policy.DefaultPremiumMaxAttempts,
			CheapToCapableMinCQS:       policy.DefaultCheapToCapableMinCQS,
			CapableToPremiumMinCQS:     policy.DefaultCapableToPremiumMinCQS,
			MaxSyntaxErrors:            policy.DefaultMaxSyntaxErrors,
			ImprovementThreshold:       policy.DefaultImprovementThreshold,
			ConsecutiveStagnationLimit: policy.DefaultConsecutiveLimit,
		},
		Budget: BudgetConfig{
			MaxCost:          policy.DefaultMaxCost,
			WarnOnExceeded:   true,
			AutoApproveUnder: policy.DefaultAutoApproveUnder,
		},
		Pricing: PricingConfig{
			CheapPerItem:    policy.DefaultCheapPerItem,
			CapablePerItem:  policy.DefaultCapablePerItem,
			PremiumPerItem:  policy.DefaultPremiumPerItem,
			CapableFraction: policy.DefaultCapableFraction,
			PremiumFraction: policy.DefaultPremiumFraction,
		},
		Telemetry: TelemetryConfig{
			JSONLPath:   filepath.Join(".tierup", "telemetry.jsonl"),
			SQLite:      true,
			PostHogHost: "https://app.posthog.com",
		},
		Executor: ExecutorConfig{
			MaxTokens:   4096,
			Concurrency: 4,
		},
	}
}
