package orchestrator

import (
	"sort"
	"unicode/utf8"

	"github.com/ShayCichocki/tierup/pkg/models"
)

// Limits on what a tier context carries forward.
const (
	maxContextFailures = 10
	maxContextExamples = 3
	maxSnippetLen      = 600
)

// BuildTierContext summarizes a tier result for the next tier's prompt.
// Failures come from syntax errors first, then from failing items. Examples
// are the highest-scoring passing items.
func BuildTierContext(result *models.TierResult, reason string, attempts int) models.PreviousTierContext {
	ctx := models.PreviousTierContext{
		Reason:   reason,
		Attempts: attempts,
	}
	if result == nil {
		return ctx
	}

	ctx.Tier = result.Tier
	ctx.Model = result.Model
	ctx.CQS = result.QualityScore()

	for _, se := range result.Analysis().SyntaxErrors {
		if len(ctx.Failures) == maxContextFailures {
			break
		}
		ctx.Failures = append(ctx.Failures, models.FailureExample{
			Error: "syntax error: " + se.Error(),
			Code:  truncate(se.Snippet, maxSnippetLen),
		})
	}

	for _, item := range result.FailedItems() {
		if len(ctx.Failures) == maxContextFailures {
			break
		}
		msg := item.Error
		if msg == "" {
			msg = "item scored below threshold"
		}
		ctx.Failures = append(ctx.Failures, models.FailureExample{
			Error: msg,
			Code:  truncate(item.Content, maxSnippetLen),
		})
	}

	passed := result.PassedItems()
	sort.SliceStable(passed, func(i, j int) bool {
		return passed[i].QualityScore > passed[j].QualityScore
	})
	for i, item := range passed {
		if i == maxContextExamples {
			break
		}
		ctx.Examples = append(ctx.Examples, models.CodeExample{
			Content:      truncate(item.Content, maxSnippetLen),
			QualityScore: item.QualityScore,
		})
	}

	return ctx
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
