package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/tierup/internal/orchestrator/policy"
	"github.com/ShayCichocki/tierup/internal/workflow"
	"github.com/ShayCichocki/tierup/pkg/models"
)

var (
	estimateItems int
	estimateTiers []string
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the cost of a run without generating anything",
	Long: `Estimate the cost of generating --items items with the configured tiers.

Every item is priced at the first tier; the configured escalation fractions
are additionally priced at capable and premium. The all-premium baseline is
shown for comparison.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if estimateItems < 0 {
			return fmt.Errorf("--items must not be negative, got %d", estimateItems)
		}
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		pol, err := cfg.ToPolicy()
		if err != nil {
			return err
		}
		if err := applyRunOverrides(pol, estimateTiers, 0, false); err != nil {
			return err
		}

		lines := estimateBreakdown(pol, resolveModels(cfg), estimateItems)
		total := workflow.EstimateTotalCost(pol, estimateItems)
		baseline := workflow.PremiumBaseline(pol, estimateItems)

		fmt.Printf("%-8s %-28s %7s %8s %9s\n", "Tier", "Model", "Share", "Items", "Cost")
		for _, l := range lines {
			fmt.Printf("%-8s %-28s %6.0f%% %8.1f %9s\n", l.Tier, l.Model, l.Share*100, l.Items, fmt.Sprintf("$%.2f", l.Cost))
		}
		fmt.Println()
		fmt.Printf("Estimated total:   $%.2f\n", total)
		fmt.Printf("All-premium cost:  $%.2f\n", baseline)
		if baseline > 0 {
			fmt.Printf("Expected savings:  $%.2f (%.1f%%)\n", baseline-total, (baseline-total)/baseline*100)
		}

		if total >= pol.Budget.AutoApproveUnder {
			printStatus("⚠", fmt.Sprintf("Above auto-approve threshold ($%.2f); run will ask for confirmation", pol.Budget.AutoApproveUnder), color.FgYellow)
		} else {
			printStatus("✓", "Under the auto-approve threshold", color.FgGreen)
		}
		if pol.Budget.MaxCost > 0 && total > pol.Budget.MaxCost {
			printStatus("✗", fmt.Sprintf("Estimate exceeds budget.max_cost ($%.2f)", pol.Budget.MaxCost), color.FgRed)
		}
		return nil
	},
}

func init() {
	estimateCmd.Flags().IntVarP(&estimateItems, "items", "n", 10, "Number of items")
	estimateCmd.Flags().StringSliceVar(&estimateTiers, "tiers", nil, "Comma-separated tiers to use, e.g. cheap,capable")
}

// estimateLine is one tier's share of an estimate.
type estimateLine struct {
	Tier  models.Tier
	Model string
	Share float64
	Items float64
	Cost  float64
}

// estimateBreakdown splits the estimate by tier using the same shares as
// workflow.EstimateTotalCost.
func estimateBreakdown(p *policy.Config, tierModels map[models.Tier]string, itemCount int) []estimateLine {
	lines := make([]estimateLine, 0, len(p.Tiers))
	for i, t := range p.Tiers {
		share := 1.0
		if i > 0 {
			switch t {
			case models.TierCapable:
				share = p.Pricing.CapableFraction
			case models.TierPremium:
				share = p.Pricing.PremiumFraction
			}
		}
		items := float64(itemCount) * share
		lines = append(lines, estimateLine{
			Tier:  t,
			Model: tierModels[t],
			Share: share,
			Items: items,
			Cost:  items * p.UnitPrice(t),
		})
	}
	return lines
}
