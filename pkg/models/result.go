package models

import "time"

// ItemSuccessThreshold is the per-item quality score at which an item counts
// as a success.
const ItemSuccessThreshold = 80.0

// TokenUsage records token consumption for one generation attempt.
type TokenUsage struct {
	Input  int64 `json:"input" yaml:"input"`
	Output int64 `json:"output" yaml:"output"`
	Total  int64 `json:"total" yaml:"total"`
}

// NewTokenUsage builds a TokenUsage with Total filled in.
func NewTokenUsage(input, output int64) TokenUsage {
	return TokenUsage{Input: input, Output: output, Total: input + output}
}

// Add returns the sum of two usages.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return NewTokenUsage(u.Input+other.Input, u.Output+other.Output)
}

// GeneratedItem is a single artifact produced by a generation attempt.
type GeneratedItem struct {
	// ID identifies the item within its batch.
	ID string `json:"id" yaml:"id"`
	// Content is the generated artifact.
	Content string `json:"content" yaml:"content"`
	// QualityScore is the per-item score (0-100) reported by the measurer.
	QualityScore float64 `json:"quality_score" yaml:"quality_score"`
	// Error holds the failure message for the item, if any.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Passed returns true when the item meets ItemSuccessThreshold.
func (i GeneratedItem) Passed() bool {
	return i.QualityScore >= ItemSuccessThreshold
}

// TierResult is the outcome of one generation attempt at one tier.
type TierResult struct {
	Tier      Tier      `json:"tier" yaml:"tier"`
	Model     string    `json:"model" yaml:"model"`
	Attempt   int       `json:"attempt" yaml:"attempt"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	// FailureAnalysis may be nil when the executor measured nothing; see Analysis.
	FailureAnalysis  *FailureAnalysis `json:"failure_analysis,omitempty" yaml:"failure_analysis,omitempty"`
	GeneratedItems   []GeneratedItem  `json:"generated_items" yaml:"generated_items"`
	Cost             float64          `json:"cost" yaml:"cost"`
	Duration         time.Duration    `json:"duration" yaml:"duration"`
	Tokens           TokenUsage       `json:"tokens_used" yaml:"tokens_used"`
	Escalated        bool             `json:"escalated" yaml:"escalated"`
	EscalationReason string           `json:"escalation_reason,omitempty" yaml:"escalation_reason,omitempty"`
}

// Analysis returns the failure analysis, substituting the zero value when
// none was recorded so a missing metric never fails the run.
func (r *TierResult) Analysis() FailureAnalysis {
	if r == nil || r.FailureAnalysis == nil {
		return FailureAnalysis{}
	}
	return *r.FailureAnalysis
}

// QualityScore returns the CQS of the attempt.
func (r *TierResult) QualityScore() float64 {
	return r.Analysis().CalculateQualityScore()
}

// SuccessCount returns the number of items scoring at least ItemSuccessThreshold.
func (r *TierResult) SuccessCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, item := range r.GeneratedItems {
		if item.Passed() {
			n++
		}
	}
	return n
}

// SuccessRate returns SuccessCount divided by the number of items, or 0 when
// there are no items.
func (r *TierResult) SuccessRate() float64 {
	if r == nil || len(r.GeneratedItems) == 0 {
		return 0.0
	}
	return float64(r.SuccessCount()) / float64(len(r.GeneratedItems))
}

// PassedItems returns the items meeting ItemSuccessThreshold.
func (r *TierResult) PassedItems() []GeneratedItem {
	return r.filterItems(true)
}

// FailedItems returns the items below ItemSuccessThreshold.
func (r *TierResult) FailedItems() []GeneratedItem {
	return r.filterItems(false)
}

func (r *TierResult) filterItems(passed bool) []GeneratedItem {
	if r == nil {
		return nil
	}
	var out []GeneratedItem
	for _, item := range r.GeneratedItems {
		if item.Passed() == passed {
			out = append(out, item)
		}
	}
	return out
}

// WeightedScore returns the weighted mean of scores. It returns 0 when the
// total weight is zero or the slices differ in length.
func WeightedScore(scores, weights []float64) float64 {
	if len(scores) != len(weights) {
		return 0.0
	}
	var sum, total float64
	for i, s := range scores {
		sum += s * weights[i]
		total += weights[i]
	}
	if total == 0 {
		return 0.0
	}
	return sum / total
}
