package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ShayCichocki/tierup/internal/state"
)

// StoreSink persists events, runs and tier results to the state store.
type StoreSink struct {
	store state.Store
}

// NewStoreSink creates a sink writing to store. The sink does not own the
// store; Close leaves it open.
func NewStoreSink(store state.Store) *StoreSink {
	return &StoreSink{store: store}
}

// Emit stores the raw event, then updates the run tables it affects.
func (s *StoreSink) Emit(_ context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.store.InsertEvent(&state.EventRecord{
		ID:        e.ID,
		RunID:     e.RunID,
		Type:      string(e.Type),
		Payload:   string(payload),
		CreatedAt: e.Timestamp,
	}); err != nil {
		return err
	}

	switch e.Type {
	case EventRunStarted:
		run := &state.Run{ID: e.RunID, UserHash: e.UserHash, StartedAt: e.Timestamp}
		if e.RunStarted != nil {
			run.PremiumBaseline = e.RunStarted.PremiumBaseline
		}
		return s.store.EnsureRun(run)

	case EventTierExecution:
		if e.TierExecution == nil {
			return nil
		}
		if err := s.store.EnsureRun(&state.Run{ID: e.RunID, UserHash: e.UserHash, StartedAt: e.Timestamp}); err != nil {
			return err
		}
		te := e.TierExecution
		return s.store.InsertTierResult(&state.TierResultRecord{
			RunID:            e.RunID,
			Tier:             string(te.Tier),
			Model:            te.Model,
			Provider:         te.Provider,
			Attempt:          te.Attempt,
			CQS:              te.QualityScore,
			Cost:             te.Cost,
			TokensInput:      te.TokensInput,
			TokensOutput:     te.TokensOutput,
			DurationMs:       te.DurationMs,
			Escalated:        te.Escalated,
			EscalationReason: te.EscalationReason,
			CreatedAt:        e.Timestamp,
		})

	case EventWorkflowCompletion:
		c := e.Completion
		if c == nil {
			return nil
		}
		status := state.RunFailed
		if c.Success {
			status = state.RunSucceeded
		}
		completed := e.Timestamp
		return s.store.CompleteRun(&state.Run{
			ID:          e.RunID,
			UserHash:    e.UserHash,
			Status:      status,
			FinalTier:   string(c.FinalTier),
			Attempts:    len(c.Tiers),
			TotalCost:   c.TotalCost,
			DurationMs:  c.TotalDurationMs,
			StartedAt:   completed.Add(-time.Duration(c.TotalDurationMs) * time.Millisecond),
			CompletedAt: &completed,
		})
	}
	return nil
}

// Close is a no-op; the store belongs to the caller.
func (s *StoreSink) Close() error {
	return nil
}
