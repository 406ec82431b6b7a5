// Package telemetry turns workflow callbacks into typed events and fans them
// out to sinks: a JSONL file, the SQLite store, PostHog and Prometheus.
package telemetry

import (
	"time"

	"github.com/ShayCichocki/tierup/pkg/models"
)

// EventType names a telemetry event.
type EventType string

const (
	EventRunStarted         EventType = "run_started"
	EventTierExecution      EventType = "tier_execution"
	EventEscalation         EventType = "escalation"
	EventBudgetExceeded     EventType = "budget_exceeded"
	EventWorkflowCompletion EventType = "workflow_completion"
)

// Event is one telemetry record. Exactly one payload field is set, matching Type.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	UserHash  string    `json:"user_hash"`
	Timestamp time.Time `json:"timestamp"`

	RunStarted     *RunStarted         `json:"run_started,omitempty"`
	TierExecution  *TierExecution      `json:"tier_execution,omitempty"`
	Escalation     *Escalation         `json:"escalation,omitempty"`
	BudgetExceeded *BudgetExceeded     `json:"budget_exceeded,omitempty"`
	Completion     *WorkflowCompletion `json:"workflow_completion,omitempty"`
}

// RunStarted is emitted before the first tier executes.
type RunStarted struct {
	Objective       string  `json:"objective"`
	ItemCount       int     `json:"item_count"`
	EstimatedCost   float64 `json:"estimated_cost"`
	PremiumBaseline float64 `json:"premium_baseline"`
}

// TierExecution describes one generation attempt.
type TierExecution struct {
	Tier             models.Tier `json:"tier"`
	Model            string      `json:"model"`
	Provider         string      `json:"provider"`
	Attempt          int         `json:"attempt"`
	QualityScore     float64     `json:"quality_score"`
	Cost             float64     `json:"cost"`
	TokensInput      int64       `json:"tokens_input"`
	TokensOutput     int64       `json:"tokens_output"`
	DurationMs       int64       `json:"duration_ms"`
	Items            int         `json:"items"`
	Escalated        bool        `json:"escalated"`
	EscalationReason string      `json:"escalation_reason,omitempty"`
}

// Escalation records a move between tiers.
type Escalation struct {
	From      models.Tier `json:"from_tier"`
	To        models.Tier `json:"to_tier"`
	Reason    string      `json:"reason"`
	ItemCount int         `json:"item_count"`
	CostSoFar float64     `json:"cost_so_far"`
}

// BudgetExceeded records a budget overrun and whether the run aborted or warned.
type BudgetExceeded struct {
	CurrentCost float64 `json:"current_cost"`
	MaxCost     float64 `json:"max_cost"`
	Action      string  `json:"action"`
}

// WorkflowCompletion summarizes a finished run.
type WorkflowCompletion struct {
	Tiers           []TierExecution `json:"tiers"`
	FinalTier       models.Tier     `json:"final_tier,omitempty"`
	TotalCost       float64         `json:"total_cost"`
	TotalDurationMs int64           `json:"total_duration_ms"`
	Success         bool            `json:"success"`
}

// Properties flattens the event payload into a property map for analytics
// backends.
func (e Event) Properties() map[string]any {
	props := map[string]any{
		"run_id":    e.RunID,
		"user_hash": e.UserHash,
	}
	switch {
	case e.RunStarted != nil:
		p := e.RunStarted
		props["item_count"] = p.ItemCount
		props["estimated_cost"] = p.EstimatedCost
		props["premium_baseline"] = p.PremiumBaseline
	case e.TierExecution != nil:
		p := e.TierExecution
		props["tier"] = string(p.Tier)
		props["model"] = p.Model
		props["provider"] = p.Provider
		props["attempt"] = p.Attempt
		props["quality_score"] = p.QualityScore
		props["cost"] = p.Cost
		props["tokens_input"] = p.TokensInput
		props["tokens_output"] = p.TokensOutput
		props["duration_ms"] = p.DurationMs
		props["escalated"] = p.Escalated
	case e.Escalation != nil:
		p := e.Escalation
		props["from_tier"] = string(p.From)
		props["to_tier"] = string(p.To)
		props["reason"] = p.Reason
		props["item_count"] = p.ItemCount
		props["cost_so_far"] = p.CostSoFar
	case e.BudgetExceeded != nil:
		p := e.BudgetExceeded
		props["current_cost"] = p.CurrentCost
		props["max_cost"] = p.MaxCost
		props["action"] = p.Action
	case e.Completion != nil:
		p := e.Completion
		props["final_tier"] = string(p.FinalTier)
		props["attempts"] = len(p.Tiers)
		props["total_cost"] = p.TotalCost
		props["total_duration_ms"] = p.TotalDurationMs
		props["success"] = p.Success
	}
	return props
}

// tierExecution converts a workflow result into its telemetry payload.
func tierExecution(r *models.TierResult) TierExecution {
	return TierExecution{
		Tier:             r.Tier,
		Model:            r.Model,
		Provider:         models.InferProvider(r.Model),
		Attempt:          r.Attempt,
		QualityScore:     r.QualityScore(),
		Cost:             r.Cost,
		TokensInput:      r.Tokens.Input,
		TokensOutput:     r.Tokens.Output,
		DurationMs:       r.Duration.Milliseconds(),
		Items:            len(r.GeneratedItems),
		Escalated:        r.Escalated,
		EscalationReason: r.EscalationReason,
	}
}
