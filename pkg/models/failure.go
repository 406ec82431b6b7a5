package models

import (
	"fmt"
	"math"
)

// CQS component weights. They sum to 1.0 so a perfect analysis scores 100.
const (
	WeightPassRate   = 0.40
	WeightCoverage   = 0.25
	WeightAssertions = 0.20
	WeightConfidence = 0.15
)

// Escalation floors applied by FailureAnalysis.ShouldEscalate.
const (
	// MinAcceptableCQS is the CQS below which output is never acceptable.
	MinAcceptableCQS = 70.0
	// VeryLowPassRate is the pass rate below which output always escalates.
	VeryLowPassRate = 0.5
)

// Severity classifies how badly a generation attempt failed.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityModerate Severity = "MODERATE"
	SeverityLow      Severity = "LOW"
)

// SyntaxError is a parse or compile failure reported for generated output.
type SyntaxError struct {
	Message string `json:"message" yaml:"message"`
	Line    int    `json:"line,omitempty" yaml:"line,omitempty"`
	Snippet string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
}

func (e SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// FailureAnalysis is an immutable snapshot of measured output quality.
// The zero value means "no issues measured": no syntax errors and all
// metrics at zero.
type FailureAnalysis struct {
	// TestPassRate is the fraction of generated tests that passed (0-1).
	TestPassRate float64 `json:"test_pass_rate" yaml:"test_pass_rate"`
	// CoveragePercent is line coverage achieved (0-100).
	CoveragePercent float64 `json:"coverage_percent" yaml:"coverage_percent"`
	// AssertionDepth is the average number of assertions per test.
	AssertionDepth float64 `json:"assertion_depth" yaml:"assertion_depth"`
	// ConfidenceScore is the generator's confidence in its output (0-1).
	ConfidenceScore float64 `json:"confidence_score" yaml:"confidence_score"`
	// SyntaxErrors lists parse failures found in the output.
	SyntaxErrors []SyntaxError `json:"syntax_errors,omitempty" yaml:"syntax_errors,omitempty"`
}

// CalculateQualityScore returns the Cohesive Quality Score (CQS) in [0,100].
// Any syntax error halves the score, regardless of how many there are.
func (f FailureAnalysis) CalculateQualityScore() float64 {
	score := WeightPassRate*(f.TestPassRate*100) +
		WeightCoverage*f.CoveragePercent +
		WeightAssertions*math.Min(f.AssertionDepth*10, 100) +
		WeightConfidence*(f.ConfidenceScore*100)

	if len(f.SyntaxErrors) > 0 {
		score /= 2
	}
	return score
}

// ShouldEscalate reports whether this analysis alone warrants moving to a
// more capable tier: the CQS is below MinAcceptableCQS, the pass rate is
// below VeryLowPassRate, or there are more than maxSyntaxErrors syntax errors.
func (f FailureAnalysis) ShouldEscalate(maxSyntaxErrors int) bool {
	if f.CalculateQualityScore() < MinAcceptableCQS {
		return true
	}
	if f.TestPassRate < VeryLowPassRate {
		return true
	}
	return len(f.SyntaxErrors) > maxSyntaxErrors
}

// FailureSeverity derives a severity band from the CQS and pass rate.
//   - CRITICAL: CQS < 50 or pass rate < 0.5
//   - HIGH:     CQS < 70 or pass rate < 0.7
//   - MODERATE: CQS < 85
//   - LOW:      otherwise
func (f FailureAnalysis) FailureSeverity() Severity {
	cqs := f.CalculateQualityScore()
	switch {
	case cqs < 50 || f.TestPassRate < 0.5:
		return SeverityCritical
	case cqs < 70 || f.TestPassRate < 0.7:
		return SeverityHigh
	case cqs < 85:
		return SeverityModerate
	default:
		return SeverityLow
	}
}
