package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ShayCichocki/tierup/internal/config"
	"github.com/ShayCichocki/tierup/internal/executor"
	"github.com/ShayCichocki/tierup/internal/orchestrator"
	"github.com/ShayCichocki/tierup/internal/state"
	"github.com/ShayCichocki/tierup/internal/telemetry"
	"github.com/ShayCichocki/tierup/internal/workflow"
	"github.com/ShayCichocki/tierup/pkg/models"
)

// resolveModels overlays the configured models on the defaults.
func resolveModels(cfg *config.Config) map[models.Tier]string {
	m := make(map[models.Tier]string, len(workflow.DefaultModels))
	for tier, model := range workflow.DefaultModels {
		m[tier] = model
	}
	for tier, model := range cfg.TierModels() {
		m[tier] = model
	}
	return m
}

// requiredProviders returns the providers backing the models of tiers, in
// tier order. Models of unknown provider are served by Anthropic.
func requiredProviders(tiers []models.Tier, tierModels map[models.Tier]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tiers {
		p := models.InferProvider(tierModels[t])
		if p == models.ProviderUnknown {
			p = models.ProviderAnthropic
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// buildCompleter creates a backend for every provider the run needs and
// fails early when one cannot be configured.
func buildCompleter(cfg *config.Config, providers []string) (*executor.Router, error) {
	router := &executor.Router{}
	for _, p := range providers {
		switch p {
		case models.ProviderAnthropic:
			key := ""
			if !cfg.Anthropic.UseBedrock {
				k, _, err := config.GetAPIKey(cfg, models.ProviderAnthropic)
				if err != nil {
					return nil, fmt.Errorf("anthropic backend: %w (set %s or anthropic.api_key)", err, config.EnvAnthropicAPIKey)
				}
				key = k
			}
			c, err := executor.NewAnthropicClient(executor.AnthropicConfig{
				APIKey:        key,
				BaseURL:       cfg.Anthropic.BaseURL,
				UseAWSBedrock: cfg.Anthropic.UseBedrock,
				AWSRegion:     cfg.Anthropic.AWSRegion,
				AWSProfile:    cfg.Anthropic.AWSProfile,
			})
			if err != nil {
				return nil, fmt.Errorf("anthropic backend: %w", err)
			}
			router.Anthropic = c
		case models.ProviderOpenAI:
			key, _, err := config.GetAPIKey(cfg, models.ProviderOpenAI)
			if err != nil {
				return nil, fmt.Errorf("openai backend: %w (set %s or openai.api_key)", err, config.EnvOpenAIAPIKey)
			}
			c, err := executor.NewOpenAIClient(key, cfg.OpenAI.BaseURL)
			if err != nil {
				return nil, fmt.Errorf("openai backend: %w", err)
			}
			router.OpenAI = c
		default:
			return nil, fmt.Errorf("no backend available for provider %q", p)
		}
	}
	return router, nil
}

// telemetryStack owns the recorder and everything behind it.
type telemetryStack struct {
	recorder *telemetry.Recorder
	store    *state.DB
	metrics  *http.Server
	logger   *orchestrator.DebugLogger
}

// setupTelemetry builds the configured sinks. metricsAddr overrides
// telemetry.metrics_addr when set.
func setupTelemetry(cfg *config.Config, projectRoot, metricsAddr string, logger *orchestrator.DebugLogger) (*telemetryStack, error) {
	ts := &telemetryStack{logger: logger}
	var sinks telemetry.MultiSink

	fail := func(err error) (*telemetryStack, error) {
		_ = sinks.Close()
		if ts.store != nil {
			ts.store.Close()
		}
		return nil, err
	}

	if path := cfg.Telemetry.JSONLPath; path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(projectRoot, path)
		}
		s, err := telemetry.OpenJSONLFile(path)
		if err != nil {
			return fail(fmt.Errorf("open telemetry log: %w", err))
		}
		sinks = append(sinks, s)
	}

	if cfg.Telemetry.SQLite {
		db, err := state.OpenProject(projectRoot)
		if err != nil {
			return fail(fmt.Errorf("open state database: %w", err))
		}
		ts.store = db
		sinks = append(sinks, telemetry.NewStoreSink(db))
	}

	if key := cfg.Telemetry.PostHogAPIKey; key != "" {
		s, err := telemetry.NewPostHogSink(key, cfg.Telemetry.PostHogHost)
		if err != nil {
			return fail(fmt.Errorf("posthog: %w", err))
		}
		sinks = append(sinks, s)
	}

	if metricsAddr == "" {
		metricsAddr = cfg.Telemetry.MetricsAddr
	}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		m, err := telemetry.NewMetrics(reg)
		if err != nil {
			return fail(fmt.Errorf("metrics: %w", err))
		}
		sinks = append(sinks, m)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		ts.metrics = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := ts.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log("TELEMETRY", "metrics server on %s: %v", metricsAddr, err)
			}
		}()
	}

	ts.recorder = telemetry.NewRecorder(sinks, cfg.Telemetry.UserID, logger)
	return ts, nil
}

// Close flushes the sinks, stops the metrics server and closes the store.
func (ts *telemetryStack) Close() error {
	var errs []error
	if err := ts.recorder.Close(); err != nil {
		errs = append(errs, err)
	}
	if ts.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := ts.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if ts.store != nil {
		if err := ts.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// recoverInterrupted marks runs left behind by dead processes as
// interrupted.
func recoverInterrupted(db *state.DB) (int, error) {
	if db == nil {
		return 0, nil
	}
	return state.NewRecoveryManager(db).Clean()
}
