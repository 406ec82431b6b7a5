package workflow

import (
	"fmt"
	"math"

	"github.com/ShayCichocki/tierup/internal/orchestrator/policy"
	"github.com/ShayCichocki/tierup/pkg/models"
)

// EstimateTotalCost estimates the cost of generating itemCount items. Every
// item is priced at the first configured tier; the policy's escalation
// fractions of the items are additionally priced at capable and premium when
// those tiers are configured. The result is rounded to the cent.
//
// A negative item count is a programming error and panics.
func EstimateTotalCost(cfg *policy.Config, itemCount int) float64 {
	if itemCount < 0 {
		panic(fmt.Sprintf("workflow: negative item count %d", itemCount))
	}
	if itemCount == 0 || len(cfg.Tiers) == 0 {
		return 0.0
	}

	n := float64(itemCount)
	total := 0.0
	for i, tier := range cfg.Tiers {
		share := 1.0
		if i > 0 {
			share = escalationShare(cfg, tier)
		}
		total += n * share * cfg.UnitPrice(tier)
	}
	return roundCents(total)
}

// EstimateTierCost prices itemCount items at a single tier.
func EstimateTierCost(cfg *policy.Config, tier models.Tier, itemCount int) float64 {
	if itemCount < 0 {
		panic(fmt.Sprintf("workflow: negative item count %d", itemCount))
	}
	return roundCents(float64(itemCount) * cfg.UnitPrice(tier))
}

// PremiumBaseline prices a hypothetical run of every item at premium.
func PremiumBaseline(cfg *policy.Config, itemCount int) float64 {
	return EstimateTierCost(cfg, models.TierPremium, itemCount)
}

func escalationShare(cfg *policy.Config, tier models.Tier) float64 {
	switch tier {
	case models.TierCapable:
		return cfg.Pricing.CapableFraction
	case models.TierPremium:
		return cfg.Pricing.PremiumFraction
	default:
		return 1.0
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
