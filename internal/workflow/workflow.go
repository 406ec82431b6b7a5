// Package workflow drives a task through the configured tiers: it estimates
// and approves cost, runs generation attempts, enforces the budget and
// follows the orchestrator's escalation decisions.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShayCichocki/tierup/internal/orchestrator"
	"github.com/ShayCichocki/tierup/internal/orchestrator/policy"
	"github.com/ShayCichocki/tierup/pkg/models"
)

// Task is one unit of work: generate ItemCount items toward Objective.
type Task struct {
	Objective string
	ItemCount int
}

// Workflow runs tasks through progressive tier escalation. A Workflow holds
// only configuration and collaborators; each Run creates its own
// EscalationState, so a Workflow may run tasks concurrently.
type Workflow struct {
	cfg       *policy.Config
	meta      *orchestrator.MetaOrchestrator
	generator Generator
	confirmer Confirmer
	recorder  EventRecorder
	logger    *orchestrator.DebugLogger
	tracer    trace.Tracer
	models    map[models.Tier]string
}

// New creates a Workflow around a generation collaborator.
func New(gen Generator, opts ...Option) (*Workflow, error) {
	if gen == nil {
		return nil, ErrNoGenerator
	}

	o := &workflowOptions{models: make(map[models.Tier]string, len(DefaultModels))}
	for tier, model := range DefaultModels {
		o.models[tier] = model
	}
	for _, opt := range opts {
		opt(o)
	}

	cfg := policy.Default()
	if o.policyConfig != nil {
		cfg = o.policyConfig.Clone()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	if o.logger == nil {
		o.logger = orchestrator.NopLogger()
	}
	if o.recorder == nil {
		o.recorder = nopRecorder{}
	}
	if o.tracer == nil {
		o.tracer = defaultTracer()
	}

	return &Workflow{
		cfg:       cfg,
		meta:      orchestrator.NewMetaOrchestrator(cfg, o.logger),
		generator: gen,
		confirmer: o.confirmer,
		recorder:  o.recorder,
		logger:    o.logger,
		tracer:    o.tracer,
		models:    o.models,
	}, nil
}

// Policy returns the validated policy the workflow runs with.
func (w *Workflow) Policy() *policy.Config {
	return w.cfg
}

// Model returns the model identifier used for a tier.
func (w *Workflow) Model(tier models.Tier) string {
	return w.models[tier]
}

// EstimateTotalCost estimates the cost of a task with itemCount items.
func (w *Workflow) EstimateTotalCost(itemCount int) float64 {
	return EstimateTotalCost(w.cfg, itemCount)
}

// CheckBudget checks the accumulated cost of results against the budget.
func (w *Workflow) CheckBudget(results []*models.TierResult) (BudgetStatus, error) {
	return CheckBudget(w.cfg, results, w.logger)
}

// run is the mutable bookkeeping of one Run call.
type run struct {
	task     Task
	id       string
	started  time.Time
	state    *orchestrator.EscalationState
	result   *ProgressiveWorkflowResult
	kept     []models.GeneratedItem
	ids      []string
	warned   bool
	attempts int
}

// Run executes a task. It returns the assembled result even when it also
// returns an error, so callers can report partial progress. A budget abort
// returns a *BudgetExceededError.
func (w *Workflow) Run(ctx context.Context, task Task) (result *ProgressiveWorkflowResult, err error) {
	if len(w.cfg.Tiers) == 0 {
		return nil, ErrNoTiers
	}
	if task.ItemCount < 1 {
		return nil, fmt.Errorf("item count must be positive, got %d", task.ItemCount)
	}

	r := &run{
		task:    task,
		id:      uuid.NewString(),
		started: time.Now(),
		state:   orchestrator.NewEscalationState(w.cfg.Tiers[0]),
		result: &ProgressiveWorkflowResult{
			Objective:       task.Objective,
			ItemCount:       task.ItemCount,
			PremiumBaseline: PremiumBaseline(w.cfg, task.ItemCount),
		},
	}
	r.result.RunID = r.id

	ctx, span := startRunSpan(ctx, w.tracer, r.id, task)
	defer func() {
		setRunSpanResult(span, r.result, err)
		span.End()
	}()

	estimate := w.EstimateTotalCost(task.ItemCount)
	w.logger.Log("TIER", "run %s: %d items, estimated $%.2f", r.id, task.ItemCount, estimate)
	if rs, ok := w.recorder.(RunStartRecorder); ok {
		rs.RecordRunStart(ctx, r.id, task, estimate, r.result.PremiumBaseline)
	}

	approved, err := w.RequestApproval(ctx, fmt.Sprintf("Generate %d item(s): %s", task.ItemCount, task.Objective), estimate)
	if err != nil {
		return w.finish(ctx, r, nil, false, "approval failed"), err
	}
	if !approved {
		return w.finish(ctx, r, nil, false, "cost approval denied"), ErrApprovalDenied
	}

	remaining := task.ItemCount
	for i, tier := range w.cfg.Tiers {
		hasNext := i < len(w.cfg.Tiers)-1
		last, reason, accepted, err := w.runTier(ctx, r, tier, remaining, hasNext)
		if err != nil {
			return w.finish(ctx, r, last, false, err.Error()), err
		}
		if accepted {
			r.kept = append(r.kept, last.GeneratedItems...)
			return w.finish(ctx, r, last, true, reason), nil
		}

		if !hasNext {
			r.kept = append(r.kept, last.GeneratedItems...)
			return w.finish(ctx, r, last, false, reason), nil
		}

		next := w.cfg.Tiers[i+1]

		// Passing items stay; failures are regenerated at the next tier under
		// their original IDs. When every item passed but the batch was still
		// rejected, the whole batch is regenerated.
		carry := last.FailedItems()
		if len(carry) > 0 {
			r.kept = append(r.kept, last.PassedItems()...)
		} else {
			carry = last.GeneratedItems
		}
		if len(carry) > 0 {
			remaining = len(carry)
			r.ids = itemIDs(carry)
		}

		left := orchestrator.BuildTierContext(last, reason, w.attemptsAt(r, tier))
		if err := r.state.Advance(next, left); err != nil {
			return w.finish(ctx, r, last, false, err.Error()), err
		}
		w.recorder.RecordEscalation(ctx, r.id, tier, next, reason, remaining, TotalCost(r.result.TierResults))

		additional := EstimateTierCost(w.cfg, next, remaining)
		approved, err := w.RequestEscalationApproval(ctx, tier, next, remaining, additional)
		if err != nil {
			return w.finish(ctx, r, last, false, "escalation approval failed"), err
		}
		if !approved {
			r.kept = append(r.kept, carry...)
			return w.finish(ctx, r, last, false, fmt.Sprintf("escalation to %s denied", next)), nil
		}
	}

	// Unreachable: the final tier always returns above.
	return w.finish(ctx, r, r.result.FinalResult, false, "no tiers ran"), nil
}

// runTier runs attempts at one tier until the result is accepted, the
// orchestrator escalates, or attempts run out. It returns the last result,
// the reason for stopping, and whether the result was accepted. When hasNext
// is set, a result that leaves the tier is marked as escalated before it is
// recorded.
func (w *Workflow) runTier(ctx context.Context, r *run, tier models.Tier, itemCount int, hasNext bool) (*models.TierResult, string, bool, error) {
	maxAttempts := w.cfg.GetMaxAttempts(tier)
	var last *models.TierResult

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return last, "", false, fmt.Errorf("run cancelled before %s attempt %d: %w", tier, attempt, err)
		}

		tr, err := w.execute(ctx, r, tier, itemCount, attempt)
		if err != nil {
			return last, "", false, err
		}
		last = tr
		r.result.TierResults = append(r.result.TierResults, tr)

		accepted, leave, reason := w.decide(r, tier, tr, attempt, maxAttempts)
		if leave && hasNext && !accepted {
			tr.Escalated = true
			tr.EscalationReason = reason
		}
		w.recorder.RecordTierExecution(ctx, r.id, tr)

		if err := w.enforceBudget(ctx, r); err != nil {
			return last, "", false, err
		}
		if leave {
			return tr, reason, accepted, nil
		}
	}
	return last, fmt.Sprintf("no attempts configured at %s tier", tier), false, nil
}

// decide reports whether an attempt is accepted and whether the run leaves
// the tier after it.
func (w *Workflow) decide(r *run, tier models.Tier, tr *models.TierResult, attempt, maxAttempts int) (accepted, leave bool, reason string) {
	if w.accepts(tier, tr) {
		reason = fmt.Sprintf("accepted at %s tier (CQS=%.1f >= %.1f)", tier, tr.QualityScore(), w.cfg.AcceptableCQS(tier))
		w.logger.Log("TIER", "run %s: %s", r.id, reason)
		return true, true, reason
	}

	escalate, reason := w.meta.ShouldEscalate(r.state, tier, tr, attempt)
	if escalate {
		return false, true, reason
	}
	if attempt == maxAttempts {
		if tier.IsFinal() {
			return false, true, reason
		}
		return false, true, fmt.Sprintf("exhausted %d attempts at %s tier: %s", maxAttempts, tier, reason)
	}
	return false, false, reason
}

// execute runs one generation attempt and wraps it as a TierResult.
func (w *Workflow) execute(ctx context.Context, r *run, tier models.Tier, itemCount, attempt int) (*models.TierResult, error) {
	model := w.Model(tier)
	ctx, span := startAttemptSpan(ctx, w.tracer, tier, model, attempt, itemCount)
	defer span.End()

	fc := r.state.FailureContext()
	req := GenerationRequest{
		RunID:     r.id,
		Tier:      tier,
		Model:     model,
		Prompt:    w.meta.BuildTierPrompt(tier, r.task.Objective, fc),
		Team:      orchestrator.CreateAgentTeam(tier, fc),
		ItemCount: itemCount,
		Attempt:   attempt,
		ItemIDs:   r.ids,
	}

	started := time.Now()
	gen, err := w.generator.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("generate at %s tier (attempt %d): %w", tier, attempt, err)
	}
	if gen == nil {
		gen = &GenerationResult{}
	}
	duration := gen.Duration
	if duration == 0 {
		duration = time.Since(started)
	}

	tr := &models.TierResult{
		Tier:            tier,
		Model:           model,
		Attempt:         attempt,
		Timestamp:       started,
		FailureAnalysis: gen.Analysis,
		GeneratedItems:  gen.Items,
		Cost:            gen.Cost,
		Duration:        duration,
		Tokens:          gen.Tokens,
	}
	r.attempts++
	setAttemptSpanResult(span, tr)
	w.logger.Log("TIER", "run %s: %s attempt %d model=%s cqs=%.1f cost=$%.4f items=%d",
		r.id, tier, attempt, model, tr.QualityScore(), tr.Cost, len(tr.GeneratedItems))
	return tr, nil
}

// enforceBudget checks the budget after an attempt and records the first
// warning and any abort.
func (w *Workflow) enforceBudget(ctx context.Context, r *run) error {
	status, err := w.CheckBudget(r.result.TierResults)
	total := TotalCost(r.result.TierResults)
	switch status {
	case BudgetExhausted:
		w.recorder.RecordBudgetExceeded(ctx, r.id, total, w.cfg.Budget.MaxCost, "abort")
		return err
	case BudgetWarning:
		if !r.warned {
			r.warned = true
			w.recorder.RecordBudgetExceeded(ctx, r.id, total, w.cfg.Budget.MaxCost, "warn")
		}
	}
	return nil
}

// accepts reports whether a result is good enough to stop the run.
func (w *Workflow) accepts(tier models.Tier, tr *models.TierResult) bool {
	if len(tr.Analysis().SyntaxErrors) > w.cfg.Thresholds.MaxSyntaxErrors {
		return false
	}
	return tr.QualityScore() >= w.cfg.AcceptableCQS(tier)
}

func itemIDs(items []models.GeneratedItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func (w *Workflow) attemptsAt(r *run, tier models.Tier) int {
	n := 0
	for _, tr := range r.result.TierResults {
		if tr.Tier == tier {
			n++
		}
	}
	return n
}

// finish assembles the result and records completion.
func (w *Workflow) finish(ctx context.Context, r *run, final *models.TierResult, success bool, reason string) *ProgressiveWorkflowResult {
	res := r.result
	res.FinalResult = final
	res.AcceptedItems = r.kept
	res.TotalCost = TotalCost(res.TierResults)
	res.TotalDuration = time.Since(r.started)
	res.Success = success
	res.StopReason = reason

	w.logger.Log("TIER", "run %s finished: success=%v cost=$%.4f attempts=%d reason=%s",
		r.id, success, res.TotalCost, r.attempts, reason)
	// Completion is recorded even when the run was cancelled.
	w.recorder.RecordWorkflowCompletion(context.WithoutCancel(ctx), r.id, res.TierResults, res.TotalCost, res.TotalDuration, success)
	return res
}
