// Package policy defines the configurable parameters for progressive tier
// escalation. Every threshold used by the orchestrator and workflow driver
// lives here so it can be tuned and tested without touching decision code.
package policy

import (
	"fmt"

	"github.com/ShayCichocki/tierup/pkg/models"
)

// Config is the immutable configuration for one workflow run.
// Callers build it once (Default, then overrides) and never mutate it after
// handing it to an orchestrator or workflow.
type Config struct {
	// Tiers is the ordered list of tiers to try. Defaults to all three.
	Tiers []models.Tier

	// Per-tier attempt bounds
	Cheap   AttemptPolicy
	Capable AttemptPolicy
	Premium AttemptPolicy

	// Quality thresholds
	Thresholds ThresholdPolicy

	// Stagnation detection at the capable tier
	Stagnation StagnationPolicy

	// Cost ceilings and approval gating
	Budget BudgetPolicy

	// Flat per-item prices used for estimates
	Pricing PricingPolicy
}

// AttemptPolicy bounds how many times a tier is attempted.
type AttemptPolicy struct {
	// Min is the number of attempts made before escalation is considered.
	Min int
	// Max is the hard cap on attempts at the tier.
	Max int
}

// ThresholdPolicy holds the CQS boundaries between tiers.
type ThresholdPolicy struct {
	// CheapToCapableMinCQS is the CQS a cheap result needs to avoid escalation.
	CheapToCapableMinCQS float64
	// CapableToPremiumMinCQS is the CQS a capable result needs to be accepted.
	CapableToPremiumMinCQS float64
	// MaxSyntaxErrors is the syntax error count above which cheap output is
	// escalated even when every other metric looks acceptable.
	MaxSyntaxErrors int
}

// StagnationPolicy controls detection of flat CQS progress.
type StagnationPolicy struct {
	// ImprovementThreshold is the minimum percent CQS improvement between
	// consecutive attempts that counts as progress.
	ImprovementThreshold float64
	// ConsecutiveLimit is how many consecutive low-improvement attempts mark
	// the tier as stagnant.
	ConsecutiveLimit int
}

// BudgetPolicy controls cost enforcement.
type BudgetPolicy struct {
	// MaxCost is the cumulative USD ceiling for one run.
	MaxCost float64
	// AbortOnExceeded stops the run with a BudgetExceededError.
	AbortOnExceeded bool
	// WarnOnExceeded logs and records the violation but keeps going.
	WarnOnExceeded bool
	// AutoApproveUnder skips interactive approval for estimates below it.
	AutoApproveUnder float64
}

// PricingPolicy holds flat per-item prices and expected escalation shares.
type PricingPolicy struct {
	CheapPerItem   float64
	CapablePerItem float64
	PremiumPerItem float64
	// CapableFraction is the share of items expected to reach capable.
	CapableFraction float64
	// PremiumFraction is the share of items expected to reach premium.
	PremiumFraction float64
}

// Default values. These are tuning knobs, not invariants.
const (
	DefaultCheapMinAttempts   = 2
	DefaultCheapMaxAttempts   = 3
	DefaultCapableMinAttempts = 2
	DefaultCapableMaxAttempts = 6
	DefaultPremiumMinAttempts = 1
	DefaultPremiumMaxAttempts = 1

	DefaultCheapToCapableMinCQS   = 75.0
	DefaultCapableToPremiumMinCQS = 85.0
	DefaultMaxSyntaxErrors        = 3

	DefaultImprovementThreshold = 5.0
	DefaultConsecutiveLimit     = 2

	DefaultMaxCost          = 5.00
	DefaultAutoApproveUnder = 1.00

	DefaultCheapPerItem    = 0.003
	DefaultCapablePerItem  = 0.015
	DefaultPremiumPerItem  = 0.05
	DefaultCapableFraction = 0.30
	DefaultPremiumFraction = 0.10
)

// Default returns the default escalation configuration.
func Default() *Config {
	return &Config{
		Tiers:   append([]models.Tier{}, models.AllTiers...),
		Cheap:   AttemptPolicy{Min: DefaultCheapMinAttempts, Max: DefaultCheapMaxAttempts},
		Capable: AttemptPolicy{Min: DefaultCapableMinAttempts, Max: DefaultCapableMaxAttempts},
		Premium: AttemptPolicy{Min: DefaultPremiumMinAttempts, Max: DefaultPremiumMaxAttempts},
		Thresholds: ThresholdPolicy{
			CheapToCapableMinCQS:   DefaultCheapToCapableMinCQS,
			CapableToPremiumMinCQS: DefaultCapableToPremiumMinCQS,
			MaxSyntaxErrors:        DefaultMaxSyntaxErrors,
		},
		Stagnation: StagnationPolicy{
			ImprovementThreshold: DefaultImprovementThreshold,
			ConsecutiveLimit:     DefaultConsecutiveLimit,
		},
		Budget: BudgetPolicy{
			MaxCost:          DefaultMaxCost,
			AbortOnExceeded:  false,
			WarnOnExceeded:   true,
			AutoApproveUnder: DefaultAutoApproveUnder,
		},
		Pricing: PricingPolicy{
			CheapPerItem:    DefaultCheapPerItem,
			CapablePerItem:  DefaultCapablePerItem,
			PremiumPerItem:  DefaultPremiumPerItem,
			CapableFraction: DefaultCapableFraction,
			PremiumFraction: DefaultPremiumFraction,
		},
	}
}

// Clone returns a copy of c that shares no memory with it.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Tiers = append([]models.Tier(nil), c.Tiers...)
	return &cp
}

// Validate checks the tier list and clamps out-of-range values back to
// defaults. Only a malformed tier list is reported as an error.
func (c *Config) Validate() error {
	if len(c.Tiers) == 0 {
		c.Tiers = append([]models.Tier{}, models.AllTiers...)
	}
	for i, t := range c.Tiers {
		if !t.Valid() {
			return fmt.Errorf("invalid tier %q at position %d", t, i)
		}
		if i > 0 && !c.Tiers[i-1].Less(t) {
			return fmt.Errorf("tiers must be strictly ascending: %q does not follow %q", t, c.Tiers[i-1])
		}
	}

	clampAttempts(&c.Cheap, DefaultCheapMinAttempts, DefaultCheapMaxAttempts)
	clampAttempts(&c.Capable, DefaultCapableMinAttempts, DefaultCapableMaxAttempts)
	clampAttempts(&c.Premium, DefaultPremiumMinAttempts, DefaultPremiumMaxAttempts)

	if c.Thresholds.CheapToCapableMinCQS < 0 || c.Thresholds.CheapToCapableMinCQS > 100 {
		c.Thresholds.CheapToCapableMinCQS = DefaultCheapToCapableMinCQS
	}
	if c.Thresholds.CapableToPremiumMinCQS < 0 || c.Thresholds.CapableToPremiumMinCQS > 100 {
		c.Thresholds.CapableToPremiumMinCQS = DefaultCapableToPremiumMinCQS
	}
	if c.Thresholds.MaxSyntaxErrors < 0 {
		c.Thresholds.MaxSyntaxErrors = DefaultMaxSyntaxErrors
	}
	if c.Stagnation.ImprovementThreshold <= 0 {
		c.Stagnation.ImprovementThreshold = DefaultImprovementThreshold
	}
	if c.Stagnation.ConsecutiveLimit < 1 {
		c.Stagnation.ConsecutiveLimit = DefaultConsecutiveLimit
	}
	if c.Budget.MaxCost < 0 {
		c.Budget.MaxCost = DefaultMaxCost
	}
	if c.Budget.AutoApproveUnder < 0 {
		c.Budget.AutoApproveUnder = DefaultAutoApproveUnder
	}
	if c.Pricing.CheapPerItem < 0 {
		c.Pricing.CheapPerItem = DefaultCheapPerItem
	}
	if c.Pricing.CapablePerItem < 0 {
		c.Pricing.CapablePerItem = DefaultCapablePerItem
	}
	if c.Pricing.PremiumPerItem < 0 {
		c.Pricing.PremiumPerItem = DefaultPremiumPerItem
	}
	if c.Pricing.CapableFraction < 0 || c.Pricing.CapableFraction > 1 {
		c.Pricing.CapableFraction = DefaultCapableFraction
	}
	if c.Pricing.PremiumFraction < 0 || c.Pricing.PremiumFraction > 1 {
		c.Pricing.PremiumFraction = DefaultPremiumFraction
	}
	return nil
}

func clampAttempts(p *AttemptPolicy, defMin, defMax int) {
	if p.Min < 1 {
		p.Min = defMin
	}
	if p.Max < 1 {
		p.Max = defMax
	}
	if p.Max < p.Min {
		p.Max = p.Min
	}
}

// attempts returns the attempt policy for a tier.
func (c *Config) attempts(t models.Tier) AttemptPolicy {
	switch t {
	case models.TierCheap:
		return c.Cheap
	case models.TierCapable:
		return c.Capable
	default:
		return c.Premium
	}
}

// GetMinAttempts returns the minimum attempts for a tier.
func (c *Config) GetMinAttempts(t models.Tier) int {
	return c.attempts(t).Min
}

// GetMaxAttempts returns the maximum attempts for a tier.
func (c *Config) GetMaxAttempts(t models.Tier) int {
	return c.attempts(t).Max
}

// AcceptableCQS returns the CQS at which a result from tier t is accepted
// and the run stops.
func (c *Config) AcceptableCQS(t models.Tier) float64 {
	if t == models.TierCheap {
		return c.Thresholds.CheapToCapableMinCQS
	}
	return c.Thresholds.CapableToPremiumMinCQS
}

// UnitPrice returns the flat per-item price for a tier.
func (c *Config) UnitPrice(t models.Tier) float64 {
	switch t {
	case models.TierCheap:
		return c.Pricing.CheapPerItem
	case models.TierCapable:
		return c.Pricing.CapablePerItem
	case models.TierPremium:
		return c.Pricing.PremiumPerItem
	default:
		panic(fmt.Sprintf("policy: no unit price for tier %q", t))
	}
}

// HasTier reports whether t is part of the configured tier list.
func (c *Config) HasTier(t models.Tier) bool {
	for _, ct := range c.Tiers {
		if ct == t {
			return true
		}
	}
	return false
}
