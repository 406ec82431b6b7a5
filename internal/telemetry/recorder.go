package telemetry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/tierup/internal/orchestrator"
	"github.com/ShayCichocki/tierup/internal/workflow"
	"github.com/ShayCichocki/tierup/pkg/models"
)

// AnonymousUser is recorded when no user id is configured.
const AnonymousUser = "anonymous"

// HashUserID returns the hex SHA-256 of id, or AnonymousUser when id is empty.
func HashUserID(id string) string {
	if id == "" {
		return AnonymousUser
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// Recorder implements workflow.EventRecorder by emitting typed events to a
// Sink. Sink failures are logged and never reach the workflow.
type Recorder struct {
	sink     Sink
	userHash string
	logger   *orchestrator.DebugLogger
	now      func() time.Time
}

var (
	_ workflow.EventRecorder    = (*Recorder)(nil)
	_ workflow.RunStartRecorder = (*Recorder)(nil)
)

// NewRecorder creates a Recorder. The raw userID is hashed immediately and
// never stored.
func NewRecorder(sink Sink, userID string, logger *orchestrator.DebugLogger) *Recorder {
	if sink == nil {
		sink = MultiSink{}
	}
	return &Recorder{
		sink:     sink,
		userHash: HashUserID(userID),
		logger:   logger,
		now:      time.Now,
	}
}

// UserHash returns the hashed user identifier attached to events.
func (r *Recorder) UserHash() string {
	return r.userHash
}

// Close closes the underlying sink.
func (r *Recorder) Close() error {
	return r.sink.Close()
}

func (r *Recorder) emit(ctx context.Context, e Event) {
	e.ID = uuid.NewString()
	e.UserHash = r.userHash
	e.Timestamp = r.now()
	if err := r.sink.Emit(ctx, e); err != nil {
		r.logger.Log("TELEMETRY", "emit %s for run %s: %v", e.Type, e.RunID, err)
	}
}

// RecordRunStart emits a run_started event.
func (r *Recorder) RecordRunStart(ctx context.Context, runID string, task workflow.Task, estimatedCost, premiumBaseline float64) {
	r.emit(ctx, Event{
		Type:  EventRunStarted,
		RunID: runID,
		RunStarted: &RunStarted{
			Objective:       task.Objective,
			ItemCount:       task.ItemCount,
			EstimatedCost:   estimatedCost,
			PremiumBaseline: premiumBaseline,
		},
	})
}

// RecordTierExecution emits a tier_execution event.
func (r *Recorder) RecordTierExecution(ctx context.Context, runID string, result *models.TierResult) {
	if result == nil {
		return
	}
	te := tierExecution(result)
	r.emit(ctx, Event{Type: EventTierExecution, RunID: runID, TierExecution: &te})
}

// RecordEscalation emits an escalation event.
func (r *Recorder) RecordEscalation(ctx context.Context, runID string, from, to models.Tier, reason string, itemCount int, costSoFar float64) {
	r.emit(ctx, Event{
		Type:  EventEscalation,
		RunID: runID,
		Escalation: &Escalation{
			From:      from,
			To:        to,
			Reason:    reason,
			ItemCount: itemCount,
			CostSoFar: costSoFar,
		},
	})
}

// RecordBudgetExceeded emits a budget_exceeded event.
func (r *Recorder) RecordBudgetExceeded(ctx context.Context, runID string, currentCost, maxCost float64, action string) {
	r.emit(ctx, Event{
		Type:           EventBudgetExceeded,
		RunID:          runID,
		BudgetExceeded: &BudgetExceeded{CurrentCost: currentCost, MaxCost: maxCost, Action: action},
	})
}

// RecordWorkflowCompletion emits a workflow_completion event with the full
// tier breakdown.
func (r *Recorder) RecordWorkflowCompletion(ctx context.Context, runID string, results []*models.TierResult, totalCost float64, totalDuration time.Duration, success bool) {
	c := &WorkflowCompletion{
		TotalCost:       totalCost,
		TotalDurationMs: totalDuration.Milliseconds(),
		Success:         success,
	}
	for _, tr := range results {
		if tr == nil {
			continue
		}
		c.Tiers = append(c.Tiers, tierExecution(tr))
		c.FinalTier = tr.Tier
	}
	r.emit(ctx, Event{Type: EventWorkflowCompletion, RunID: runID, Completion: c})
}
