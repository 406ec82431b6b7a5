package orchestrator

import (
	"strings"

	"github.com/ShayCichocki/tierup/pkg/models"
)

// Failure pattern buckets.
const (
	PatternAsync  = "async_errors"
	PatternMock   = "mock_errors"
	PatternSyntax = "syntax_errors"
	PatternOther  = "other_errors"
)

// patternKeywords are checked in order; the first bucket with a matching
// keyword wins.
var patternKeywords = []struct {
	bucket   string
	keywords []string
}{
	{PatternAsync, []string{"async", "await", "coroutine", "event loop", "promise"}},
	{PatternMock, []string{"mock", "fixture", "patch", "stub", "monkeypatch"}},
	{PatternSyntax, []string{"syntax", "indent", "parse", "unexpected token", "unexpected eof"}},
}

// FailurePatterns summarizes failures by bucket.
type FailurePatterns struct {
	TotalFailures int            `json:"total_failures" yaml:"total_failures"`
	ErrorTypes    map[string]int `json:"error_types" yaml:"error_types"`
	PrimaryIssue  string         `json:"primary_issue" yaml:"primary_issue"`
	// order records buckets by first appearance for tie-breaking.
	order []string
}

// Buckets returns the buckets present, in first-seen order.
func (p FailurePatterns) Buckets() []string {
	return append([]string(nil), p.order...)
}

// ClassifyFailure returns the bucket for a single error message.
func ClassifyFailure(message string) string {
	lower := strings.ToLower(message)
	for _, group := range patternKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.bucket
			}
		}
	}
	return PatternOther
}

// AnalyzeFailurePatterns buckets failures by keyword and picks the most
// frequent bucket as the primary issue. Ties go to the bucket seen first.
func AnalyzeFailurePatterns(failures []models.FailureExample) FailurePatterns {
	p := FailurePatterns{
		ErrorTypes:   make(map[string]int),
		PrimaryIssue: "unknown",
	}

	for _, f := range failures {
		bucket := ClassifyFailure(f.Error)
		if _, seen := p.ErrorTypes[bucket]; !seen {
			p.order = append(p.order, bucket)
		}
		p.ErrorTypes[bucket]++
		p.TotalFailures++
	}

	best := 0
	for _, bucket := range p.order {
		if p.ErrorTypes[bucket] > best {
			best = p.ErrorTypes[bucket]
			p.PrimaryIssue = bucket
		}
	}
	return p
}
