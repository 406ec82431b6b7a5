package workflow

import (
	"github.com/ShayCichocki/tierup/internal/orchestrator"
	"github.com/ShayCichocki/tierup/internal/orchestrator/policy"
	"github.com/ShayCichocki/tierup/pkg/models"
)

// BudgetStatus is the outcome of a budget check.
type BudgetStatus int

const (
	// BudgetOK indicates accumulated cost is within the budget.
	BudgetOK BudgetStatus = iota
	// BudgetWarning indicates the budget was exceeded but the run continues.
	BudgetWarning
	// BudgetExhausted indicates the budget was exceeded and the run must stop.
	BudgetExhausted
)

// String returns a human-readable representation of the budget status.
func (s BudgetStatus) String() string {
	switch s {
	case BudgetOK:
		return "OK"
	case BudgetWarning:
		return "Warning"
	case BudgetExhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}

// TotalCost sums the cost of every result.
func TotalCost(results []*models.TierResult) float64 {
	total := 0.0
	for _, r := range results {
		if r != nil {
			total += r.Cost
		}
	}
	return total
}

// CheckBudget compares accumulated cost against the policy's budget. Only a
// total strictly greater than MaxCost is a violation. A violation returns
// BudgetExhausted with a *BudgetExceededError when the policy aborts, and
// BudgetWarning otherwise (logged when WarnOnExceeded is set).
func CheckBudget(cfg *policy.Config, results []*models.TierResult, logger *orchestrator.DebugLogger) (BudgetStatus, error) {
	total := TotalCost(results)
	if total <= cfg.Budget.MaxCost {
		return BudgetOK, nil
	}

	if cfg.Budget.AbortOnExceeded {
		logger.Log("BUDGET", "aborting: cost $%.4f exceeds budget $%.2f", total, cfg.Budget.MaxCost)
		return BudgetExhausted, &BudgetExceededError{CurrentCost: total, MaxCost: cfg.Budget.MaxCost}
	}

	if cfg.Budget.WarnOnExceeded {
		logger.Log("BUDGET", "warning: cost $%.4f exceeds budget $%.2f, continuing", total, cfg.Budget.MaxCost)
	}
	return BudgetWarning, nil
}
