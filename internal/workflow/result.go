package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/tierup/pkg/models"
)

// ProgressiveWorkflowResult is the aggregate of one task run.
type ProgressiveWorkflowResult struct {
	RunID     string `json:"run_id" yaml:"run_id"`
	Objective string `json:"objective" yaml:"objective"`
	ItemCount int    `json:"item_count" yaml:"item_count"`

	// TierResults holds every attempt in execution order.
	TierResults []*models.TierResult `json:"tier_results" yaml:"tier_results"`
	// FinalResult is the last attempt made.
	FinalResult *models.TierResult `json:"final_result,omitempty" yaml:"final_result,omitempty"`
	// AcceptedItems are the items kept across tiers plus the final attempt's items.
	AcceptedItems []models.GeneratedItem `json:"accepted_items" yaml:"accepted_items"`

	TotalCost     float64       `json:"total_cost" yaml:"total_cost"`
	TotalDuration time.Duration `json:"total_duration" yaml:"total_duration"`
	Success       bool          `json:"success" yaml:"success"`
	// StopReason explains why the run ended.
	StopReason string `json:"stop_reason" yaml:"stop_reason"`

	// PremiumBaseline is the cost of generating every item at premium.
	PremiumBaseline float64 `json:"premium_baseline" yaml:"premium_baseline"`
}

// CostSavings returns how much cheaper the run was than an all-premium run.
func (r *ProgressiveWorkflowResult) CostSavings() float64 {
	return r.PremiumBaseline - r.TotalCost
}

// CostSavingsPercent returns CostSavings as a percentage of the baseline,
// or 0 when the baseline is zero.
func (r *ProgressiveWorkflowResult) CostSavingsPercent() float64 {
	if r.PremiumBaseline == 0 {
		return 0.0
	}
	return r.CostSavings() / r.PremiumBaseline * 100
}

// FinalTier returns the tier of the final attempt, or "" if none ran.
func (r *ProgressiveWorkflowResult) FinalTier() models.Tier {
	if r.FinalResult == nil {
		return ""
	}
	return r.FinalResult.Tier
}

// Escalations returns the number of tier transitions made.
func (r *ProgressiveWorkflowResult) Escalations() int {
	n := 0
	for _, tr := range r.TierResults {
		if tr.Escalated {
			n++
		}
	}
	return n
}

// AverageQuality returns the item-weighted mean CQS across all attempts.
func (r *ProgressiveWorkflowResult) AverageQuality() float64 {
	scores := make([]float64, 0, len(r.TierResults))
	weights := make([]float64, 0, len(r.TierResults))
	for _, tr := range r.TierResults {
		scores = append(scores, tr.QualityScore())
		weights = append(weights, float64(len(tr.GeneratedItems)))
	}
	return models.WeightedScore(scores, weights)
}

// Report is the exported summary of a run.
type Report struct {
	RunID              string        `yaml:"run_id"`
	Objective          string        `yaml:"objective"`
	ItemCount          int           `yaml:"item_count"`
	Success            bool          `yaml:"success"`
	StopReason         string        `yaml:"stop_reason"`
	FinalTier          models.Tier   `yaml:"final_tier"`
	AcceptedItems      int           `yaml:"accepted_items"`
	TotalCost          float64       `yaml:"total_cost"`
	PremiumBaseline    float64       `yaml:"premium_baseline"`
	CostSavings        float64       `yaml:"cost_savings"`
	CostSavingsPercent float64       `yaml:"cost_savings_percent"`
	TotalDuration      string        `yaml:"total_duration"`
	Attempts           []AttemptLine `yaml:"attempts"`
}

// AttemptLine is one row of the per-tier breakdown.
type AttemptLine struct {
	Tier             models.Tier     `yaml:"tier"`
	Model            string          `yaml:"model"`
	Attempt          int             `yaml:"attempt"`
	CQS              float64         `yaml:"cqs"`
	Severity         models.Severity `yaml:"severity"`
	Cost             float64         `yaml:"cost"`
	Items            int             `yaml:"items"`
	SuccessRate      float64         `yaml:"success_rate"`
	Tokens           int64           `yaml:"tokens"`
	Escalated        bool            `yaml:"escalated"`
	EscalationReason string          `yaml:"escalation_reason,omitempty"`
}

// Report builds the exported summary.
func (r *ProgressiveWorkflowResult) Report() Report {
	rep := Report{
		RunID:              r.RunID,
		Objective:          r.Objective,
		ItemCount:          r.ItemCount,
		Success:            r.Success,
		StopReason:         r.StopReason,
		FinalTier:          r.FinalTier(),
		AcceptedItems:      len(r.AcceptedItems),
		TotalCost:          roundCents(r.TotalCost),
		PremiumBaseline:    r.PremiumBaseline,
		CostSavings:        roundCents(r.CostSavings()),
		CostSavingsPercent: roundCents(r.CostSavingsPercent()),
		TotalDuration:      r.TotalDuration.Round(time.Millisecond).String(),
	}
	for _, tr := range r.TierResults {
		rep.Attempts = append(rep.Attempts, AttemptLine{
			Tier:             tr.Tier,
			Model:            tr.Model,
			Attempt:          tr.Attempt,
			CQS:              roundCents(tr.QualityScore()),
			Severity:         tr.Analysis().FailureSeverity(),
			Cost:             tr.Cost,
			Items:            len(tr.GeneratedItems),
			SuccessRate:      tr.SuccessRate(),
			Tokens:           tr.Tokens.Total,
			Escalated:        tr.Escalated,
			EscalationReason: tr.EscalationReason,
		})
	}
	return rep
}

// WriteReport writes the YAML report to path, creating parent directories.
func (r *ProgressiveWorkflowResult) WriteReport(path string) error {
	data, err := yaml.Marshal(r.Report())
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
