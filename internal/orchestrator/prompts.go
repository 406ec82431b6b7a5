package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/tierup/pkg/models"
)

// maxPromptFailures caps the failing examples embedded per tier.
const maxPromptFailures = 3

// maxPromptExamples caps the successful examples embedded per tier.
const maxPromptExamples = 2

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// escapeXML escapes text that came from model output before it is embedded
// in a structured prompt.
func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// BuildTierPrompt builds the structured prompt for a tier. Later tiers carry
// forward everything learned from the tiers before them.
func (m *MetaOrchestrator) BuildTierPrompt(tier models.Tier, objective string, fc *models.FailureContext) string {
	return BuildTierPrompt(tier, objective, fc)
}

// BuildTierPrompt is the configuration-free form of MetaOrchestrator.BuildTierPrompt.
func BuildTierPrompt(tier models.Tier, objective string, fc *models.FailureContext) string {
	var sb strings.Builder

	sb.WriteString("<task>\n")
	fmt.Fprintf(&sb, "  <tier>%s</tier>\n", tier)
	fmt.Fprintf(&sb, "  <objective>%s</objective>\n", escapeXML(objective))

	switch tier {
	case models.TierCapable:
		if last := fc.Last(); last != nil {
			writePreviousTier(&sb, last)
		}
		writeRequirements(&sb, []string{
			"At least 80% of tests must pass",
			"Fix the failure patterns listed in the previous tier context",
			"Keep assertions meaningful; avoid trivially true checks",
		})
	case models.TierPremium:
		writeEscalationContext(&sb, fc)
		writeRequirements(&sb, []string{
			"This is the final tier; no further escalation is available",
			"At least 95% of tests must pass",
			"Zero syntax errors are tolerated",
			"Resolve every persistent issue listed in the escalation context",
		})
	default:
		writeRequirements(&sb, []string{
			"At least 70% of tests must pass",
			"Output must be syntactically valid",
		})
	}

	sb.WriteString("</task>\n")
	debugLog("TIER", "built %s prompt (%d bytes, %d prior tiers)", tier, sb.Len(), len(fcTiers(fc)))
	return sb.String()
}

func fcTiers(fc *models.FailureContext) []models.PreviousTierContext {
	if fc == nil {
		return nil
	}
	return fc.Tiers
}

func writeRequirements(sb *strings.Builder, reqs []string) {
	sb.WriteString("  <quality_requirements>\n")
	for _, r := range reqs {
		fmt.Fprintf(sb, "    <requirement>%s</requirement>\n", r)
	}
	sb.WriteString("  </quality_requirements>\n")
}

func writePreviousTier(sb *strings.Builder, prev *models.PreviousTierContext) {
	patterns := AnalyzeFailurePatterns(prev.Failures)

	sb.WriteString("  <context_from_previous_tier>\n")
	fmt.Fprintf(sb, "    <tier>%s</tier>\n", prev.Tier)
	fmt.Fprintf(sb, "    <quality_score>%.1f</quality_score>\n", prev.CQS)
	fmt.Fprintf(sb, "    <escalation_reason>%s</escalation_reason>\n", escapeXML(prev.Reason))
	writePatterns(sb, "    ", patterns)

	if len(prev.Failures) > 0 {
		sb.WriteString("    <failed_examples>\n")
		for i, f := range prev.Failures {
			if i == maxPromptFailures {
				break
			}
			sb.WriteString("      <example>\n")
			fmt.Fprintf(sb, "        <error>%s</error>\n", escapeXML(f.Error))
			if f.Code != "" {
				fmt.Fprintf(sb, "        <code>%s</code>\n", escapeXML(f.Code))
			}
			sb.WriteString("      </example>\n")
		}
		sb.WriteString("    </failed_examples>\n")
	}

	if len(prev.Examples) > 0 {
		sb.WriteString("    <successful_examples>\n")
		for i, e := range prev.Examples {
			if i == maxPromptExamples {
				break
			}
			fmt.Fprintf(sb, "      <example quality_score=\"%.1f\">%s</example>\n", e.QualityScore, escapeXML(e.Content))
		}
		sb.WriteString("    </successful_examples>\n")
	}
	sb.WriteString("  </context_from_previous_tier>\n")
}

func writePatterns(sb *strings.Builder, indent string, p FailurePatterns) {
	fmt.Fprintf(sb, "%s<failure_patterns total=\"%d\" primary=\"%s\">\n", indent, p.TotalFailures, p.PrimaryIssue)
	for _, bucket := range p.Buckets() {
		fmt.Fprintf(sb, "%s  <pattern type=\"%s\" count=\"%d\"/>\n", indent, bucket, p.ErrorTypes[bucket])
	}
	fmt.Fprintf(sb, "%s</failure_patterns>\n", indent)
}

func writeEscalationContext(sb *strings.Builder, fc *models.FailureContext) {
	sb.WriteString("  <escalation_context>\n")
	sb.WriteString("    <final_tier>true</final_tier>\n")

	if fc.Empty() {
		sb.WriteString("    <progression_analysis/>\n")
		sb.WriteString("  </escalation_context>\n")
		return
	}

	sb.WriteString("    <progression_analysis>\n")
	for i := range fc.Tiers {
		t := &fc.Tiers[i]
		fmt.Fprintf(sb, "      <tier name=\"%s\" model=\"%s\" attempts=\"%d\" quality_score=\"%.1f\">\n",
			t.Tier, escapeXML(t.Model), t.Attempts, t.CQS)
		fmt.Fprintf(sb, "        <escalation_reason>%s</escalation_reason>\n", escapeXML(t.Reason))
		writePatterns(sb, "        ", AnalyzeFailurePatterns(t.Failures))
		sb.WriteString("      </tier>\n")
	}
	sb.WriteString("    </progression_analysis>\n")

	sb.WriteString("    <persistent_issues>\n")
	for _, issue := range persistentIssues(fc) {
		fmt.Fprintf(sb, "      <issue>%s</issue>\n", issue)
	}
	sb.WriteString("    </persistent_issues>\n")

	if last := fc.Last(); last != nil && len(last.Failures) > 0 {
		sb.WriteString("    <latest_failures>\n")
		for i, f := range last.Failures {
			if i == maxPromptFailures {
				break
			}
			sb.WriteString("      <example>\n")
			fmt.Fprintf(sb, "        <error>%s</error>\n", escapeXML(f.Error))
			if f.Code != "" {
				fmt.Fprintf(sb, "        <code>%s</code>\n", escapeXML(f.Code))
			}
			sb.WriteString("      </example>\n")
		}
		sb.WriteString("    </latest_failures>\n")
	}
	sb.WriteString("  </escalation_context>\n")
}

// persistentIssues returns the failure buckets present in every visited tier
// that had failures. When no bucket is shared, the primary issue across all
// tiers is returned instead.
func persistentIssues(fc *models.FailureContext) []string {
	counts := make(map[string]int)
	var order []string
	tiersWithFailures := 0

	for _, t := range fc.Tiers {
		if len(t.Failures) == 0 {
			continue
		}
		tiersWithFailures++
		for _, bucket := range AnalyzeFailurePatterns(t.Failures).Buckets() {
			if counts[bucket] == 0 {
				order = append(order, bucket)
			}
			counts[bucket]++
		}
	}

	var shared []string
	for _, bucket := range order {
		if counts[bucket] == tiersWithFailures {
			shared = append(shared, bucket)
		}
	}
	if len(shared) > 0 {
		return shared
	}

	primary := AnalyzeFailurePatterns(fc.AllFailures()).PrimaryIssue
	if primary == "unknown" {
		return nil
	}
	return []string{primary}
}
