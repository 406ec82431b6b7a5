package workflow

import (
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/tierup/internal/orchestrator"
	"github.com/ShayCichocki/tierup/internal/orchestrator/policy"
	"github.com/ShayCichocki/tierup/pkg/models"
)

func TestEstimateTotalCost_Zero(t *testing.T) {
	if got := EstimateTotalCost(policy.Default(), 0); got != 0.0 {
		t.Errorf("EstimateTotalCost(0) = %v, want 0", got)
	}
}

func TestEstimateTotalCost_Default100(t *testing.T) {
	// 100*0.003 + 30*0.015 + 10*0.05 = 0.30 + 0.45 + 0.50
	if got := EstimateTotalCost(policy.Default(), 100); got != 1.25 {
		t.Errorf("EstimateTotalCost(100) = %v, want 1.25", got)
	}
}

func TestEstimateTotalCost_Monotonic(t *testing.T) {
	cfg := policy.Default()
	prev := 0.0
	for n := 0; n <= 500; n++ {
		got := EstimateTotalCost(cfg, n)
		if got < prev {
			t.Fatalf("EstimateTotalCost(%d) = %v < EstimateTotalCost(%d) = %v", n, got, n-1, prev)
		}
		prev = got
	}
}

func TestEstimateTotalCost_SubsetOfTiers(t *testing.T) {
	cfg := policy.Default()
	cfg.Tiers = []models.Tier{models.TierCapable, models.TierPremium}

	// 100*0.015 + 10*0.05
	if got := EstimateTotalCost(cfg, 100); got != 2.0 {
		t.Errorf("EstimateTotalCost(100) = %v, want 2.0", got)
	}
}

func TestEstimateTotalCost_NegativePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for negative item count")
		}
	}()
	EstimateTotalCost(policy.Default(), -1)
}

func TestEstimateTierCost(t *testing.T) {
	cfg := policy.Default()
	if got := EstimateTierCost(cfg, models.TierCapable, 100); got != 1.5 {
		t.Errorf("EstimateTierCost(capable, 100) = %v, want 1.5", got)
	}
	if got := PremiumBaseline(cfg, 100); got != 5.0 {
		t.Errorf("PremiumBaseline(100) = %v, want 5.0", got)
	}
}

func TestCheckBudget(t *testing.T) {
	tests := []struct {
		name    string
		costs   []float64
		abort   bool
		warn    bool
		status  BudgetStatus
		wantErr bool
	}{
		{"under budget", []float64{1, 2}, true, true, BudgetOK, false},
		{"exactly at budget", []float64{2.5, 2.5}, true, true, BudgetOK, false},
		{"over budget aborts", []float64{10}, true, false, BudgetExhausted, true},
		{"over budget warns", []float64{3, 3}, false, true, BudgetWarning, false},
		{"over budget silent", []float64{6}, false, false, BudgetWarning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := policy.Default()
			cfg.Budget.MaxCost = 5.00
			cfg.Budget.AbortOnExceeded = tt.abort
			cfg.Budget.WarnOnExceeded = tt.warn

			var results []*models.TierResult
			for _, c := range tt.costs {
				results = append(results, &models.TierResult{Cost: c})
			}

			status, err := CheckBudget(cfg, results, nil)
			if status != tt.status {
				t.Errorf("expected status %s, got %s", tt.status, status)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if err != nil {
				var budgetErr *BudgetExceededError
				if !errors.As(err, &budgetErr) {
					t.Fatalf("expected *BudgetExceededError, got %T", err)
				}
				if !strings.Contains(err.Error(), "exceeds budget") {
					t.Errorf("expected message to contain 'exceeds budget', got %q", err.Error())
				}
				if budgetErr.MaxCost != 5.00 {
					t.Errorf("expected max cost 5.00, got %v", budgetErr.MaxCost)
				}
			}
		})
	}
}

func TestCheckBudget_LogsWarning(t *testing.T) {
	var buf strings.Builder
	cfg := policy.Default()
	cfg.Budget.MaxCost = 1
	cfg.Budget.WarnOnExceeded = true

	_, _ = CheckBudget(cfg, []*models.TierResult{{Cost: 2}}, orchestrator.NewWriterLogger(&buf))
	if !strings.Contains(buf.String(), "BUDGET") {
		t.Errorf("expected budget warning in log, got %q", buf.String())
	}
}

func TestBudgetStatus_String(t *testing.T) {
	tests := []struct {
		status BudgetStatus
		want   string
	}{
		{BudgetOK, "OK"},
		{BudgetWarning, "Warning"},
		{BudgetExhausted, "Exhausted"},
		{BudgetStatus(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("BudgetStatus(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestTotalCost_SkipsNil(t *testing.T) {
	got := TotalCost([]*models.TierResult{{Cost: 1.5}, nil, {Cost: 0.25}})
	if got != 1.75 {
		t.Errorf("TotalCost() = %v, want 1.75", got)
	}
}
