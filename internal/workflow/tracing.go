package workflow

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShayCichocki/tierup/pkg/models"
)

const tracerName = "tierup.workflow"

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// startRunSpan creates the root span for one task run.
func startRunSpan(ctx context.Context, tracer trace.Tracer, runID string, task Task) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Workflow.Run",
		trace.WithAttributes(
			attribute.String("tierup.run_id", runID),
			attribute.Int("tierup.item_count", task.ItemCount),
		),
	)
}

// startAttemptSpan creates a span for one generation attempt.
func startAttemptSpan(ctx context.Context, tracer trace.Tracer, tier models.Tier, model string, attempt, itemCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Workflow.Attempt",
		trace.WithAttributes(
			attribute.String("tierup.tier", string(tier)),
			attribute.String("tierup.model", model),
			attribute.Int("tierup.attempt", attempt),
			attribute.Int("tierup.item_count", itemCount),
		),
	)
}

// setAttemptSpanResult records the measured outcome on an attempt span.
func setAttemptSpanResult(span trace.Span, tr *models.TierResult) {
	span.SetAttributes(
		attribute.Float64("tierup.cqs", tr.QualityScore()),
		attribute.Float64("tierup.cost", tr.Cost),
		attribute.Int64("tierup.tokens", tr.Tokens.Total),
		attribute.Int("tierup.syntax_errors", len(tr.Analysis().SyntaxErrors)),
	)
}

// setRunSpanResult records the run outcome on the root span.
func setRunSpanResult(span trace.Span, r *ProgressiveWorkflowResult, err error) {
	span.SetAttributes(
		attribute.Bool("tierup.success", r.Success),
		attribute.Float64("tierup.total_cost", r.TotalCost),
		attribute.Int("tierup.attempts", len(r.TierResults)),
		attribute.String("tierup.final_tier", string(r.FinalTier())),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
