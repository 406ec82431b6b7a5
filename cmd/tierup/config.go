package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/tierup/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify tierup configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/tierup/config.yaml
Project-specific overrides can be placed in .tierup.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		switch len(args) {
		case 0:
			for _, k := range configKeys {
				fmt.Printf("%s: %s\n", k.name, k.display(cfg))
			}
			return nil
		case 1:
			k, err := lookupConfigKey(args[0])
			if err != nil {
				return err
			}
			fmt.Println(k.display(cfg))
			return nil
		default:
			k, err := lookupConfigKey(args[0])
			if err != nil {
				return err
			}
			if err := k.set(cfg, args[1]); err != nil {
				return err
			}
			path := configPath
			if path == "" {
				path = config.GetUserConfigPath()
			}
			if err := config.SaveTo(cfg, path); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Fprintf(os.Stdout, "Set %s = %s\n", k.name, k.display(cfg))
			return nil
		}
	},
}

// configKey is one settable configuration value.
type configKey struct {
	name   string
	secret bool
	get    func(*config.Config) string
	set    func(*config.Config, string) error
}

func (k configKey) display(cfg *config.Config) string {
	v := k.get(cfg)
	if k.secret {
		return config.MaskAPIKey(v)
	}
	return v
}

func lookupConfigKey(name string) (configKey, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, k := range configKeys {
		if k.name == name {
			return k, nil
		}
	}
	return configKey{}, fmt.Errorf("unknown configuration key: %s", name)
}

func stringKey(name string, field func(*config.Config) *string) configKey {
	return configKey{
		name: name,
		get:  func(c *config.Config) string { return *field(c) },
		set: func(c *config.Config, v string) error {
			*field(c) = v
			return nil
		},
	}
}

func secretKey(name string, field func(*config.Config) *string) configKey {
	k := stringKey(name, field)
	k.secret = true
	return k
}

func intKey(name string, field func(*config.Config) *int) configKey {
	return configKey{
		name: name,
		get:  func(c *config.Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid integer for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func floatKey(name string, field func(*config.Config) *float64) configKey {
	return configKey{
		name: name,
		get:  func(c *config.Config) string { return strconv.FormatFloat(*field(c), 'f', -1, 64) },
		set: func(c *config.Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid number for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

func boolKey(name string, field func(*config.Config) *bool) configKey {
	return configKey{
		name: name,
		get:  func(c *config.Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *config.Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid boolean for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

var configKeys = []configKey{
	secretKey("anthropic.api_key", func(c *config.Config) *string { return &c.Anthropic.APIKey }),
	stringKey("anthropic.base_url", func(c *config.Config) *string { return &c.Anthropic.BaseURL }),
	boolKey("anthropic.use_bedrock", func(c *config.Config) *bool { return &c.Anthropic.UseBedrock }),
	stringKey("anthropic.aws_region", func(c *config.Config) *string { return &c.Anthropic.AWSRegion }),
	stringKey("anthropic.aws_profile", func(c *config.Config) *string { return &c.Anthropic.AWSProfile }),
	secretKey("openai.api_key", func(c *config.Config) *string { return &c.OpenAI.APIKey }),
	stringKey("openai.base_url", func(c *config.Config) *string { return &c.OpenAI.BaseURL }),

	stringKey("models.cheap", func(c *config.Config) *string { return &c.Models.Cheap }),
	stringKey("models.capable", func(c *config.Config) *string { return &c.Models.Capable }),
	stringKey("models.premium", func(c *config.Config) *string { return &c.Models.Premium }),

	{
		name: "escalation.tiers",
		get:  func(c *config.Config) string { return strings.Join(c.Escalation.Tiers, ",") },
		set: func(c *config.Config, v string) error {
			var tiers []string
			for _, t := range strings.Split(v, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tiers = append(tiers, t)
				}
			}
			c.Escalation.Tiers = tiers
			if _, err := c.ToPolicy(); err != nil {
				return err
			}
			return nil
		},
	},
	intKey("escalation.cheap_min_attempts", func(c *config.Config) *int { return &c.Escalation.CheapMinAttempts }),
	intKey("escalation.cheap_max_attempts", func(c *config.Config) *int { return &c.Escalation.CheapMaxAttempts }),
	intKey("escalation.capable_min_attempts", func(c *config.Config) *int { return &c.Escalation.CapableMinAttempts }),
	intKey("escalation.capable_max_attempts", func(c *config.Config) *int { return &c.Escalation.CapableMaxAttempts }),
	intKey("escalation.premium_min_attempts", func(c *config.Config) *int { return &c.Escalation.PremiumMinAttempts }),
	intKey("escalation.premium_max_attempts", func(c *config.Config) *int { return &c.Escalation.PremiumMaxAttempts }),
	floatKey("escalation.cheap_to_capable_min_cqs", func(c *config.Config) *float64 { return &c.Escalation.CheapToCapableMinCQS }),
	floatKey("escalation.capable_to_premium_min_cqs", func(c *config.Config) *float64 { return &c.Escalation.CapableToPremiumMinCQS }),
	intKey("escalation.max_syntax_errors", func(c *config.Config) *int { return &c.Escalation.MaxSyntaxErrors }),
	floatKey("escalation.improvement_threshold", func(c *config.Config) *float64 { return &c.Escalation.ImprovementThreshold }),
	intKey("escalation.consecutive_stagnation_limit", func(c *config.Config) *int { return &c.Escalation.ConsecutiveStagnationLimit }),

	floatKey("budget.max_cost", func(c *config.Config) *float64 { return &c.Budget.MaxCost }),
	boolKey("budget.abort_on_exceeded", func(c *config.Config) *bool { return &c.Budget.AbortOnExceeded }),
	boolKey("budget.warn_on_exceeded", func(c *config.Config) *bool { return &c.Budget.WarnOnExceeded }),
	floatKey("budget.auto_approve_under", func(c *config.Config) *float64 { return &c.Budget.AutoApproveUnder }),

	floatKey("pricing.cheap_per_item", func(c *config.Config) *float64 { return &c.Pricing.CheapPerItem }),
	floatKey("pricing.capable_per_item", func(c *config.Config) *float64 { return &c.Pricing.CapablePerItem }),
	floatKey("pricing.premium_per_item", func(c *config.Config) *float64 { return &c.Pricing.PremiumPerItem }),
	floatKey("pricing.capable_fraction", func(c *config.Config) *float64 { return &c.Pricing.CapableFraction }),
	floatKey("pricing.premium_fraction", func(c *config.Config) *float64 { return &c.Pricing.PremiumFraction }),

	stringKey("telemetry.jsonl_path", func(c *config.Config) *string { return &c.Telemetry.JSONLPath }),
	boolKey("telemetry.sqlite", func(c *config.Config) *bool { return &c.Telemetry.SQLite }),
	secretKey("telemetry.posthog_api_key", func(c *config.Config) *string { return &c.Telemetry.PostHogAPIKey }),
	stringKey("telemetry.posthog_host", func(c *config.Config) *string { return &c.Telemetry.PostHogHost }),
	stringKey("telemetry.metrics_addr", func(c *config.Config) *string { return &c.Telemetry.MetricsAddr }),
	stringKey("telemetry.user_id", func(c *config.Config) *string { return &c.Telemetry.UserID }),

	intKey("executor.max_tokens", func(c *config.Config) *int { return &c.Executor.MaxTokens }),
	intKey("executor.concurrency", func(c *config.Config) *int { return &c.Executor.Concurrency }),
	stringKey("executor.measure_command", func(c *config.Config) *string { return &c.Executor.MeasureCommand }),
	stringKey("executor.measure_dir", func(c *config.Config) *string { return &c.Executor.MeasureDir }),
}
