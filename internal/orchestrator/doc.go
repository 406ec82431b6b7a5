// Package orchestrator makes the progressive tier-escalation decisions.
//
// The MetaOrchestrator is configured once with a policy and is stateless
// between calls. Each task run owns an EscalationState that accumulates the
// per-tier CQS history used for stagnation detection and the contexts of
// tiers already left behind, which feed the next tier's prompt.
//
// Example usage:
//
//	meta := orchestrator.NewMetaOrchestrator(policy.Default(), logger)
//	state := orchestrator.NewEscalationState(models.TierCheap)
//	escalate, reason := meta.ShouldEscalate(state, models.TierCheap, result, 2)
//	if escalate {
//		left := orchestrator.BuildTierContext(result, reason, 2)
//		_ = state.Advance(models.TierCapable, left)
//		prompt := meta.BuildTierPrompt(models.TierCapable, objective, state.FailureContext())
//	}
package orchestrator
