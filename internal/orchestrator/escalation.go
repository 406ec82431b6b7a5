package orchestrator

import (
	"fmt"

	"github.com/ShayCichocki/tierup/internal/orchestrator/policy"
	"github.com/ShayCichocki/tierup/pkg/models"
)

// MetaOrchestrator makes escalation decisions and builds tier prompts.
// It holds only immutable configuration; all per-run state lives in an
// EscalationState passed to each call, so one MetaOrchestrator can serve
// any number of runs.
type MetaOrchestrator struct {
	cfg    *policy.Config
	logger *DebugLogger
}

// NewMetaOrchestrator creates an orchestrator for the given policy.
// A nil config uses policy.Default().
func NewMetaOrchestrator(cfg *policy.Config, logger *DebugLogger) *MetaOrchestrator {
	if cfg == nil {
		cfg = policy.Default()
	}
	return &MetaOrchestrator{cfg: cfg, logger: logger}
}

// Config returns the policy the orchestrator was built with.
func (m *MetaOrchestrator) Config() *policy.Config {
	return m.cfg
}

// ShouldEscalate decides whether the run should leave tier after the given
// attempt. The reason is always a human-readable explanation.
//
//   - cheap: never before the minimum attempts; then escalate on too many
//     syntax errors (checked first) or CQS below the cheap threshold.
//   - capable: escalate on stagnation once enough history exists, or when
//     the attempt reaches the capable maximum.
//   - premium: never escalates.
func (m *MetaOrchestrator) ShouldEscalate(state *EscalationState, tier models.Tier, result *models.TierResult, attempt int) (bool, string) {
	if state == nil {
		state = NewEscalationState(tier)
	}

	cqs := result.QualityScore()
	state.RecordScore(tier, cqs)

	var escalate bool
	var reason string
	switch tier {
	case models.TierCheap:
		escalate, reason = m.cheapDecision(result, attempt, cqs)
	case models.TierCapable:
		escalate, reason = m.capableDecision(state, attempt, cqs)
	case models.TierPremium:
		escalate, reason = false, fmt.Sprintf("premium is the final tier; accepting best available result (CQS=%.1f)", cqs)
	default:
		escalate, reason = false, fmt.Sprintf("unknown tier %q; not escalating", tier)
	}

	m.logger.Log("ESCALATION", "tier=%s attempt=%d cqs=%.1f escalate=%v reason=%s",
		tier, attempt, cqs, escalate, reason)
	return escalate, reason
}

func (m *MetaOrchestrator) cheapDecision(result *models.TierResult, attempt int, cqs float64) (bool, string) {
	minAttempts := m.cfg.GetMinAttempts(models.TierCheap)
	if attempt < minAttempts {
		return false, fmt.Sprintf("only %d of %d minimum attempts made at cheap tier (CQS=%.1f)",
			attempt, minAttempts, cqs)
	}

	syntaxErrors := len(result.Analysis().SyntaxErrors)
	if syntaxErrors > m.cfg.Thresholds.MaxSyntaxErrors {
		return true, fmt.Sprintf("too many syntax errors (%d > %d)", syntaxErrors, m.cfg.Thresholds.MaxSyntaxErrors)
	}

	threshold := m.cfg.Thresholds.CheapToCapableMinCQS
	if cqs < threshold {
		return true, fmt.Sprintf("quality below cheap threshold (CQS=%.1f < %.1f)", cqs, threshold)
	}

	return false, fmt.Sprintf("cheap tier quality acceptable (CQS=%.1f >= %.1f)", cqs, threshold)
}

func (m *MetaOrchestrator) capableDecision(state *EscalationState, attempt int, cqs float64) (bool, string) {
	history := state.History(models.TierCapable)
	limit := m.cfg.Stagnation.ConsecutiveLimit

	if len(history) >= limit+1 {
		stagnant, why := DetectStagnation(history, m.cfg.Stagnation.ImprovementThreshold, limit)
		if stagnant {
			return true, fmt.Sprintf("quality stagnation at capable tier: %s", why)
		}
	}

	maxAttempts := m.cfg.GetMaxAttempts(models.TierCapable)
	if attempt >= maxAttempts {
		return true, fmt.Sprintf("reached max attempts (%d) at capable tier (CQS=%.1f)", maxAttempts, cqs)
	}

	return false, fmt.Sprintf("capable tier still improving (attempt %d/%d, CQS=%.1f)", attempt, maxAttempts, cqs)
}

// DetectStagnation reports whether the trailing run of consecutive attempts
// whose percent CQS improvement is below threshold has reached limit.
// Histories shorter than two points are never stagnant.
func DetectStagnation(history []float64, threshold float64, limit int) (bool, string) {
	if len(history) < 2 {
		return false, "not enough history to detect stagnation"
	}

	trailing := 0
	for i := len(history) - 1; i >= 1; i-- {
		if percentImprovement(history[i-1], history[i]) >= threshold {
			break
		}
		trailing++
	}

	if trailing >= limit {
		return true, fmt.Sprintf("%d consecutive attempts improved less than %.1f%% (limit %d)",
			trailing, threshold, limit)
	}
	return false, fmt.Sprintf("%d consecutive low-improvement attempts, below limit %d", trailing, limit)
}

// percentImprovement returns the relative change from prev to curr in
// percent. A zero baseline counts as full improvement when curr is positive.
func percentImprovement(prev, curr float64) float64 {
	if prev <= 0 {
		if curr > 0 {
			return 100
		}
		return 0
	}
	return (curr - prev) / prev * 100
}
