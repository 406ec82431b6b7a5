package workflow

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ShayCichocki/tierup/internal/orchestrator"
	"github.com/ShayCichocki/tierup/internal/orchestrator/policy"
	"github.com/ShayCichocki/tierup/pkg/models"
)

// EventRecorder receives workflow events. Implementations must not fail the
// run; errors are theirs to log.
type EventRecorder interface {
	RecordTierExecution(ctx context.Context, runID string, result *models.TierResult)
	RecordEscalation(ctx context.Context, runID string, from, to models.Tier, reason string, itemCount int, costSoFar float64)
	RecordBudgetExceeded(ctx context.Context, runID string, currentCost, maxCost float64, action string)
	RecordWorkflowCompletion(ctx context.Context, runID string, results []*models.TierResult, totalCost float64, totalDuration time.Duration, success bool)
}

// RunStartRecorder is implemented by recorders that also want the run's
// estimate and all-premium baseline before the first tier executes.
type RunStartRecorder interface {
	RecordRunStart(ctx context.Context, runID string, task Task, estimatedCost, premiumBaseline float64)
}

type nopRecorder struct{}

func (nopRecorder) RecordTierExecution(context.Context, string, *models.TierResult) {}
func (nopRecorder) RecordEscalation(context.Context, string, models.Tier, models.Tier, string, int, float64) {
}
func (nopRecorder) RecordBudgetExceeded(context.Context, string, float64, float64, string) {}
func (nopRecorder) RecordWorkflowCompletion(context.Context, string, []*models.TierResult, float64, time.Duration, bool) {
}

// Option configures a Workflow. Use With* functions to create Options.
type Option func(*workflowOptions)

type workflowOptions struct {
	policyConfig *policy.Config
	logger       *orchestrator.DebugLogger
	confirmer    Confirmer
	recorder     EventRecorder
	tracer       trace.Tracer
	models       map[models.Tier]string
}

// WithPolicy sets the escalation policy. Defaults to policy.Default().
// The workflow validates and keeps its own copy.
func WithPolicy(p *policy.Config) Option {
	return func(o *workflowOptions) { o.policyConfig = p }
}

// WithLogger sets the debug logger.
func WithLogger(l *orchestrator.DebugLogger) Option {
	return func(o *workflowOptions) { o.logger = l }
}

// WithConfirmer sets the approval channel. Without one, costs above the
// auto-approve threshold are denied.
func WithConfirmer(c Confirmer) Option {
	return func(o *workflowOptions) { o.confirmer = c }
}

// WithRecorder sets the telemetry recorder.
func WithRecorder(r EventRecorder) Option {
	return func(o *workflowOptions) { o.recorder = r }
}

// WithTracerProvider sets the tracer provider used for run and attempt spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *workflowOptions) { o.tracer = tp.Tracer(tracerName) }
}

// WithModels overrides the model used for each tier. Tiers missing from m
// keep their default model.
func WithModels(m map[models.Tier]string) Option {
	return func(o *workflowOptions) {
		for tier, model := range m {
			if model != "" {
				o.models[tier] = model
			}
		}
	}
}
