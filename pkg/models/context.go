package models

// FailureExample is a concrete failure carried forward to the next tier.
type FailureExample struct {
	// Error is the failure message.
	Error string `json:"error" yaml:"error"`
	// Code is the offending snippet, if known.
	Code string `json:"code,omitempty" yaml:"code,omitempty"`
}

// CodeExample is a successful item from a previous tier, kept as a reference.
type CodeExample struct {
	Content      string  `json:"content" yaml:"content"`
	QualityScore float64 `json:"quality_score" yaml:"quality_score"`
}

// PreviousTierContext summarizes a tier that was left behind by escalation.
type PreviousTierContext struct {
	Tier     Tier             `json:"tier" yaml:"tier"`
	Model    string           `json:"model" yaml:"model"`
	Attempts int              `json:"attempts" yaml:"attempts"`
	CQS      float64          `json:"cqs" yaml:"cqs"`
	Reason   string           `json:"reason" yaml:"reason"`
	Failures []FailureExample `json:"failures,omitempty" yaml:"failures,omitempty"`
	Examples []CodeExample    `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// FailureContext is the cumulative context handed to each successive tier.
// Tiers are kept in the order they were visited.
type FailureContext struct {
	Tiers []PreviousTierContext `json:"tiers" yaml:"tiers"`
}

// Empty returns true when no tier has been recorded.
func (c *FailureContext) Empty() bool {
	return c == nil || len(c.Tiers) == 0
}

// Last returns the most recently visited tier, or nil.
func (c *FailureContext) Last() *PreviousTierContext {
	if c.Empty() {
		return nil
	}
	return &c.Tiers[len(c.Tiers)-1]
}

// AllFailures returns failures from every recorded tier, oldest first.
func (c *FailureContext) AllFailures() []FailureExample {
	if c.Empty() {
		return nil
	}
	var out []FailureExample
	for _, t := range c.Tiers {
		out = append(out, t.Failures...)
	}
	return out
}
