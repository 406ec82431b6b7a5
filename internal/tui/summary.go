package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/tierup/internal/state"
	"github.com/ShayCichocki/tierup/internal/workflow"
	"github.com/ShayCichocki/tierup/pkg/models"
)

// Column widths of the attempt table.
const (
	colTier     = 9
	colModel    = 28
	colAttempt  = 8
	colCQS      = 7
	colSeverity = 10
	colCost     = 9
	colItems    = 7
)

// RenderSummary formats a workflow result: an outcome line, one row per
// attempt, and cost totals against the all-premium baseline.
func RenderSummary(res *workflow.ProgressiveWorkflowResult) string {
	if res == nil {
		return mutedStyle.Render("No result.") + "\n"
	}
	rep := res.Report()

	var b strings.Builder
	if rep.Success {
		b.WriteString(successStyle.Render("✓ Run succeeded"))
	} else {
		b.WriteString(errorStyle.Render("✗ Run did not meet the quality bar"))
	}
	if rep.FinalTier != "" {
		b.WriteString(mutedStyle.Render(" at "))
		b.WriteString(tierStyle(rep.FinalTier).Render(string(rep.FinalTier)))
		b.WriteString(mutedStyle.Render(" tier"))
	}
	b.WriteString("\n")
	if rep.StopReason != "" {
		b.WriteString(mutedStyle.Render(rep.StopReason))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(rep.Attempts) > 0 {
		b.WriteString(attemptHeader())
		b.WriteString("\n")
		for _, a := range rep.Attempts {
			b.WriteString(attemptRow(a))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(field("Items", fmt.Sprintf("%d accepted of %d", rep.AcceptedItems, rep.ItemCount)))
	b.WriteString(field("Total cost", fmt.Sprintf("$%.2f", rep.TotalCost)))
	b.WriteString(field("Premium baseline", fmt.Sprintf("$%.2f", rep.PremiumBaseline)))
	savings := fmt.Sprintf("$%.2f (%.1f%%)", rep.CostSavings, rep.CostSavingsPercent)
	if rep.CostSavings >= 0 {
		b.WriteString(labelStyle.Render("Savings") + successStyle.Render(savings) + "\n")
	} else {
		b.WriteString(labelStyle.Render("Savings") + warningStyle.Render(savings) + "\n")
	}
	b.WriteString(field("Duration", rep.TotalDuration))
	return b.String()
}

func attemptHeader() string {
	h := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Underline(true)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		h.Width(colTier).Render("Tier"),
		h.Width(colModel).Render("Model"),
		h.Width(colAttempt).Render("Attempt"),
		h.Width(colCQS).Render("CQS"),
		h.Width(colSeverity).Render("Severity"),
		h.Width(colCost).Render("Cost"),
		h.Width(colItems).Render("Items"),
		h.Render("Escalated"),
	)
}

func attemptRow(a workflow.AttemptLine) string {
	cell := lipgloss.NewStyle()
	escalated := ""
	if a.Escalated {
		escalated = warningStyle.Render("↑ ") + mutedStyle.Render(a.EscalationReason)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		tierStyle(a.Tier).Width(colTier).Render(string(a.Tier)),
		cell.Width(colModel).Render(truncate(a.Model, colModel-1)),
		cell.Width(colAttempt).Render(fmt.Sprintf("%d", a.Attempt)),
		cell.Width(colCQS).Render(fmt.Sprintf("%.1f", a.CQS)),
		severityStyle(a.Severity).Width(colSeverity).Render(string(a.Severity)),
		cell.Width(colCost).Render(fmt.Sprintf("$%.4f", a.Cost)),
		cell.Width(colItems).Render(fmt.Sprintf("%d", a.Items)),
		escalated,
	)
}

// RenderStats formats aggregate statistics read from the state store.
func RenderStats(s *state.Stats) string {
	if s == nil || s.Runs == 0 {
		return mutedStyle.Render("No runs recorded yet.") + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("tierup statistics"))
	b.WriteString("\n\n")
	b.WriteString(field("Runs", fmt.Sprintf("%d (%d succeeded, %d failed, %d interrupted)",
		s.Runs, s.Succeeded, s.Failed, s.Interrupted)))
	b.WriteString(field("Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate()*100)))
	b.WriteString(field("Total cost", fmt.Sprintf("$%.2f", s.TotalCost)))
	b.WriteString(field("Average cost", fmt.Sprintf("$%.2f", s.AverageCost())))
	b.WriteString(labelStyle.Render("Total savings") + successStyle.Render(fmt.Sprintf("$%.2f", s.TotalSavings)) + "\n")

	if len(s.AttemptsByTier) > 0 {
		b.WriteString("\n")
		h := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Underline(true)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			h.Width(colTier).Render("Tier"),
			h.Width(10).Render("Attempts"),
			h.Width(13).Render("Escalations"),
			h.Render("Avg CQS"),
		))
		b.WriteString("\n")
		for _, tier := range models.AllTiers {
			attempts, ok := s.AttemptsByTier[string(tier)]
			if !ok {
				continue
			}
			b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
				tierStyle(tier).Width(colTier).Render(string(tier)),
				lipgloss.NewStyle().Width(10).Render(fmt.Sprintf("%d", attempts)),
				lipgloss.NewStyle().Width(13).Render(fmt.Sprintf("%d", s.EscalationsByTier[string(tier)])),
				fmt.Sprintf("%.1f", s.AverageCQSByTier[string(tier)]),
			))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func field(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
