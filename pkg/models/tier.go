package models

import (
	"fmt"
	"strings"
)

// Tier represents the model cost/capability level used for generation.
// Tiers are totally ordered: cheap < capable < premium.
type Tier string

const (
	// TierCheap is the lowest-cost tier, tried first for every item.
	TierCheap Tier = "cheap"
	// TierCapable is the mid-cost tier used when cheap output is insufficient.
	TierCapable Tier = "capable"
	// TierPremium is the most capable tier. It never escalates further.
	TierPremium Tier = "premium"
)

// AllTiers lists every tier in escalation order.
var AllTiers = []Tier{TierCheap, TierCapable, TierPremium}

// Valid returns true if the tier is a known value.
func (t Tier) Valid() bool {
	switch t {
	case TierCheap, TierCapable, TierPremium:
		return true
	default:
		return false
	}
}

// Rank returns the position of the tier in escalation order, or -1 for
// unknown tiers.
func (t Tier) Rank() int {
	switch t {
	case TierCheap:
		return 0
	case TierCapable:
		return 1
	case TierPremium:
		return 2
	default:
		return -1
	}
}

// Less reports whether t sorts strictly before other.
func (t Tier) Less(other Tier) bool {
	return t.Rank() < other.Rank()
}

// Next returns the tier after t. The second result is false when t is the
// final tier or unknown.
func (t Tier) Next() (Tier, bool) {
	switch t {
	case TierCheap:
		return TierCapable, true
	case TierCapable:
		return TierPremium, true
	default:
		return "", false
	}
}

// IsFinal returns true for the terminal tier.
func (t Tier) IsFinal() bool {
	return t == TierPremium
}

// ParseTier converts a case-insensitive tier name into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q (expected cheap, capable or premium)", s)
	}
	return t, nil
}
