package orchestrator

import (
	"fmt"

	"github.com/ShayCichocki/tierup/pkg/models"
)

// EscalationState is the mutable state of one task run: per-tier CQS history
// and the contexts of tiers already left behind. It is owned by exactly one
// run and must not be shared between tasks.
type EscalationState struct {
	current models.Tier
	history map[models.Tier][]float64
	visited []models.PreviousTierContext
}

// NewEscalationState creates state for a run starting at the given tier.
func NewEscalationState(start models.Tier) *EscalationState {
	return &EscalationState{
		current: start,
		history: make(map[models.Tier][]float64),
	}
}

// Current returns the tier the run is on.
func (s *EscalationState) Current() models.Tier {
	return s.current
}

// RecordScore appends a CQS to the tier's history.
func (s *EscalationState) RecordScore(tier models.Tier, cqs float64) {
	s.history[tier] = append(s.history[tier], cqs)
}

// History returns a copy of the tier's CQS history.
func (s *EscalationState) History(tier models.Tier) []float64 {
	return append([]float64(nil), s.history[tier]...)
}

// Advance moves the run to a later tier, recording the context of the tier
// being left. Escalation never moves backward.
func (s *EscalationState) Advance(to models.Tier, left models.PreviousTierContext) error {
	if !s.current.Less(to) {
		return fmt.Errorf("cannot move from %s to %s: escalation only moves forward", s.current, to)
	}
	s.visited = append(s.visited, left)
	s.current = to
	return nil
}

// FailureContext returns the cumulative context for the current tier's
// prompt, or nil if no tier has been left yet.
func (s *EscalationState) FailureContext() *models.FailureContext {
	if len(s.visited) == 0 {
		return nil
	}
	return &models.FailureContext{
		Tiers: append([]models.PreviousTierContext(nil), s.visited...),
	}
}

// Reset clears all history so the state can be reused for a new task.
func (s *EscalationState) Reset(start models.Tier) {
	s.current = start
	s.history = make(map[models.Tier][]float64)
	s.visited = nil
}
