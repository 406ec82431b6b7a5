package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrApprovalDenied is returned when the initial cost approval is refused.
	ErrApprovalDenied = errors.New("cost approval denied")
	// ErrNoTiers is returned when the policy has no tiers to run.
	ErrNoTiers = errors.New("no tiers configured")
	// ErrNoGenerator is returned by New when no Generator is supplied.
	ErrNoGenerator = errors.New("generator is required")
)

// BudgetExceededError reports that accumulated cost went over the run's
// budget while the policy was set to abort.
type BudgetExceededError struct {
	CurrentCost float64
	MaxCost     float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("total cost $%.4f exceeds budget $%.2f", e.CurrentCost, e.MaxCost)
}
